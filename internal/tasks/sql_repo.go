package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type dialect struct {
	name   string
	driver string
	schema string
	// rebind rewrites ? placeholders into the driver's syntax.
	rebind     func(q string) string
	encodeTime func(t time.Time) any
	// resyncSequence moves the id generator past MAX(id) after rows were
	// inserted with explicit ids. Empty when the engine does that itself.
	resyncSequence string
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: `
CREATE TABLE IF NOT EXISTS todo_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_description TEXT,
	datetime_created TEXT NOT NULL,
	datetime_modified TEXT,
	is_complete INTEGER NOT NULL DEFAULT 0
);`,
	rebind: func(q string) string { return q },
	encodeTime: func(t time.Time) any {
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	},
}

var postgresDialect = dialect{
	name:   "postgres",
	driver: "pgx",
	schema: `
CREATE TABLE IF NOT EXISTS todo_items (
	id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	task_description TEXT,
	datetime_created TIMESTAMPTZ NOT NULL,
	datetime_modified TIMESTAMPTZ,
	is_complete BOOLEAN NOT NULL DEFAULT FALSE
);`,
	rebind: dollarPlaceholders,
	encodeTime: func(t time.Time) any {
		if t.IsZero() {
			return nil
		}
		return t.UTC()
	},
	resyncSequence: `SELECT setval(pg_get_serial_sequence('todo_items', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM todo_items), 1))`,
}

// SQLRepo stores the list in the todo_items table and saves by reconciling
// the incoming collection against the stored rows in one transaction.
type SQLRepo struct {
	db     *sql.DB
	d      dialect
	logger *slog.Logger
}

func NewSQLiteRepo(dsn string, logger *slog.Logger) (*SQLRepo, error) {
	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, storageErr(sqliteDialect.name, "open", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	return newSQLRepo(db, sqliteDialect, logger), nil
}

func NewPostgresRepo(ctx context.Context, dsn string, logger *slog.Logger) (*SQLRepo, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, storageErr(postgresDialect.name, "open", err)
	}
	r := newSQLRepo(db, postgresDialect, logger)
	if err := r.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, storageErr(postgresDialect.name, "open", err)
	}
	return r, nil
}

func newSQLRepo(db *sql.DB, d dialect, logger *slog.Logger) *SQLRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLRepo{db: db, d: d, logger: logger}
}

func (r *SQLRepo) Close() error { return r.db.Close() }

func (r *SQLRepo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

// EnsureSchema creates the todo_items table when it does not exist.
func (r *SQLRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, r.d.schema)
	return storageErr(r.d.name, "ensure_schema", err)
}

// CreateItem inserts one row and returns it with the id the database chose.
func (r *SQLRepo) CreateItem(ctx context.Context, description string) (Task, error) {
	t := Task{
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	err := r.db.QueryRowContext(ctx, r.d.rebind(`
		INSERT INTO todo_items (task_description, datetime_created, is_complete)
		VALUES (?, ?, ?)
		RETURNING id
	`), nullString(description), r.d.encodeTime(t.CreatedAt), false).Scan(&t.ID)
	if err != nil {
		return Task{}, storageErr(r.d.name, "create", err)
	}
	return t, nil
}

func (r *SQLRepo) Load(ctx context.Context) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_description, datetime_created, datetime_modified, is_complete
		FROM todo_items
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, storageErr(r.d.name, "load", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		var (
			t        Task
			desc     sql.NullString
			created  scanTime
			modified scanTime
		)
		if err := rows.Scan(&t.ID, &desc, &created, &modified, &t.IsComplete); err != nil {
			return nil, storageErr(r.d.name, "load", err)
		}
		t.Description = desc.String
		t.CreatedAt = created.t
		t.ModifiedAt = modified.t
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(r.d.name, "load", err)
	}
	return out, nil
}

// Save makes the table hold exactly items. Rows whose id is already stored
// are updated, unknown positive ids are inserted as given, placeholders are
// inserted with a database id, and stored ids missing from items are
// deleted. Either all of it commits or none of it does.
func (r *SQLRepo) Save(ctx context.Context, items []Task) ([]Task, error) {
	if err := checkUnique(items); err != nil {
		return nil, err
	}
	out := slices.Clone(items)

	var plan reconcilePlan
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := r.storedIDs(ctx, tx)
		if err != nil {
			return err
		}
		plan = planReconcile(existing, out)

		for _, t := range plan.updates {
			if _, err := tx.ExecContext(ctx, r.d.rebind(`
				UPDATE todo_items
				SET task_description = ?, is_complete = ?, datetime_created = ?, datetime_modified = ?
				WHERE id = ?
			`), nullString(t.Description), t.IsComplete, r.d.encodeTime(t.CreatedAt), r.d.encodeTime(t.ModifiedAt), t.ID); err != nil {
				return fmt.Errorf("update id %d: %w", t.ID, err)
			}
		}

		for _, t := range plan.inserts {
			if _, err := tx.ExecContext(ctx, r.d.rebind(`
				INSERT INTO todo_items (id, task_description, datetime_created, datetime_modified, is_complete)
				VALUES (?, ?, ?, ?, ?)
			`), t.ID, nullString(t.Description), r.d.encodeTime(t.CreatedAt), r.d.encodeTime(t.ModifiedAt), t.IsComplete); err != nil {
				return fmt.Errorf("insert id %d: %w", t.ID, err)
			}
		}
		if len(plan.inserts) > 0 && r.d.resyncSequence != "" {
			if _, err := tx.ExecContext(ctx, r.d.resyncSequence); err != nil {
				return fmt.Errorf("resync id sequence: %w", err)
			}
		}

		for _, i := range plan.creates {
			t := out[i]
			if err := tx.QueryRowContext(ctx, r.d.rebind(`
				INSERT INTO todo_items (task_description, datetime_created, datetime_modified, is_complete)
				VALUES (?, ?, ?, ?)
				RETURNING id
			`), nullString(t.Description), r.d.encodeTime(t.CreatedAt), r.d.encodeTime(t.ModifiedAt), t.IsComplete).Scan(&out[i].ID); err != nil {
				return fmt.Errorf("insert new item: %w", err)
			}
		}

		if len(plan.deletes) > 0 {
			args := make([]any, len(plan.deletes))
			for i, id := range plan.deletes {
				args[i] = id
			}
			q := "DELETE FROM todo_items WHERE id IN (" + placeholders(len(args)) + ")"
			if _, err := tx.ExecContext(ctx, r.d.rebind(q), args...); err != nil {
				return fmt.Errorf("delete %d ids: %w", len(args), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(r.d.name, "save", err)
	}
	r.recordPlan(plan)
	return out, nil
}

func (r *SQLRepo) storedIDs(ctx context.Context, tx *sql.Tx) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM todo_items`)
	if err != nil {
		return nil, fmt.Errorf("read stored ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLRepo) recordPlan(p reconcilePlan) {
	reconcileRows.WithLabelValues(r.d.name, "update").Add(float64(len(p.updates)))
	reconcileRows.WithLabelValues(r.d.name, "insert").Add(float64(len(p.inserts) + len(p.creates)))
	reconcileRows.WithLabelValues(r.d.name, "delete").Add(float64(len(p.deletes)))
	if p.empty() {
		return
	}
	r.logger.Debug("reconcile_applied",
		slog.String("backend", r.d.name),
		slog.Int("updated", len(p.updates)),
		slog.Int("inserted", len(p.inserts)),
		slog.Int("created", len(p.creates)),
		slog.Int("deleted", len(p.deletes)),
	)
}

// scanTime reads a timestamp stored either natively or as RFC 3339 text.
type scanTime struct{ t time.Time }

func (s *scanTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		s.t = time.Time{}
	case time.Time:
		s.t = x.UTC()
	case string:
		return s.parse(x)
	case []byte:
		return s.parse(string(x))
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
	return nil
}

func (s *scanTime) parse(v string) error {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return err
	}
	s.t = t.UTC()
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// dollarPlaceholders turns each ? into $1, $2, ... in order.
func dollarPlaceholders(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// SQLiteFileDSN builds a DSN like file:/absolute/path?_pragma=busy_timeout(5000)
func SQLiteFileDSN(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file:" + filepath.ToSlash(abs) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", nil
}
