package tasks

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const fileBackend = "file"

// FileRepo keeps the list in a text file, one item per line:
//
//	id|description|created_at|is_complete[|modified_at]
//
// Pipes inside a description are not escaped; such lines fail to parse on
// reload and are reported as malformed. Line breaks would split a record,
// so Save and CreateItem refuse them with ErrLineBreak.
type FileRepo struct {
	mu     sync.Mutex
	path   string
	seq    Sequence
	logger *slog.Logger
}

func NewFileRepo(path string, logger *slog.Logger) (*FileRepo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageErr(fileBackend, "open", err)
	}
	r := &FileRepo{path: path, logger: logger}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, _, err := r.readLocked(); err != nil {
		return nil, storageErr(fileBackend, "open", err)
	}
	return r, nil
}

func (r *FileRepo) Load(ctx context.Context) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	items, _, err := r.readLocked()
	if err != nil {
		return nil, storageErr(fileBackend, "load", err)
	}
	return items, nil
}

// LoadReport is Load that also returns the lines it had to skip.
func (r *FileRepo) LoadReport(ctx context.Context) ([]Task, []*MalformedRecordError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	items, bad, err := r.readLocked()
	if err != nil {
		return nil, nil, storageErr(fileBackend, "load", err)
	}
	return items, bad, nil
}

// Save rewrites the whole file. The new content goes to a temporary file in
// the same directory which is then renamed over the old one.
func (r *FileRepo) Save(ctx context.Context, items []Task) ([]Task, error) {
	if err := checkUnique(items); err != nil {
		return nil, err
	}
	for _, t := range items {
		if err := checkSingleLine(t.Description); err != nil {
			return nil, fmt.Errorf("id %d: %w", t.ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := assignIDs(items, &r.seq)
	if err := r.writeLocked(out); err != nil {
		return nil, storageErr(fileBackend, "save", err)
	}
	return out, nil
}

func (r *FileRepo) CreateItem(ctx context.Context, description string) (Task, error) {
	if err := checkSingleLine(description); err != nil {
		return Task{}, err
	}
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	items, _, err := r.readLocked()
	if err != nil {
		return Task{}, storageErr(fileBackend, "create", err)
	}
	t := Task{
		ID:          r.seq.Next(),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.writeLocked(append(items, t)); err != nil {
		return Task{}, storageErr(fileBackend, "create", err)
	}
	return t, nil
}

func (r *FileRepo) Close() error { return nil }

func (r *FileRepo) readLocked() ([]Task, []*MalformedRecordError, error) {
	items, bad, err := readTaskFile(r.path)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range bad {
		malformedRecords.Inc()
		r.logger.Warn("malformed_record",
			slog.String("path", r.path),
			slog.Int("line", m.Line),
			slog.String("error", m.Err.Error()),
		)
	}
	for _, t := range items {
		r.seq.Observe(t.ID)
	}
	return items, bad, nil
}

func (r *FileRepo) writeLocked(items []Task) error {
	var buf bytes.Buffer
	for _, t := range items {
		buf.WriteString(formatLine(t))
		buf.WriteByte('\n')
	}
	return writeFileAtomic(r.path, buf.Bytes(), 0o644)
}

// readTaskFile parses path. A missing file is an empty list.
func readTaskFile(path string) ([]Task, []*MalformedRecordError, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Task{}, nil, nil
		}
		return nil, nil, err
	}
	defer f.Close()
	return parseTasks(f)
}

func parseTasks(rd io.Reader) ([]Task, []*MalformedRecordError, error) {
	items := []Task{}
	var bad []*MalformedRecordError

	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		t, err := parseLine(line)
		if err != nil {
			bad = append(bad, &MalformedRecordError{Line: n, Text: line, Err: err})
			continue
		}
		items = append(items, t)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return items, bad, nil
}

func parseLine(line string) (Task, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 4 && len(parts) != 5 {
		return Task{}, fmt.Errorf("expected 4 or 5 fields, got %d", len(parts))
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Task{}, fmt.Errorf("id: %w", err)
	}
	if id <= 0 {
		return Task{}, fmt.Errorf("id: %d is not a stored id", id)
	}
	created, err := time.Parse(time.RFC3339Nano, parts[2])
	if err != nil {
		return Task{}, fmt.Errorf("created_at: %w", err)
	}
	done, err := parseBool(parts[3])
	if err != nil {
		return Task{}, fmt.Errorf("is_complete: %w", err)
	}

	t := Task{
		ID:          id,
		Description: parts[1],
		CreatedAt:   created.UTC(),
		IsComplete:  done,
	}
	if len(parts) == 5 && parts[4] != "" {
		modified, err := time.Parse(time.RFC3339Nano, parts[4])
		if err != nil {
			return Task{}, fmt.Errorf("modified_at: %w", err)
		}
		t.ModifiedAt = modified.UTC()
	}
	return t, nil
}

func checkSingleLine(description string) error {
	if strings.ContainsAny(description, "\r\n") {
		return ErrLineBreak
	}
	return nil
}

func formatLine(t Task) string {
	line := fmt.Sprintf("%d|%s|%s|%t", t.ID, t.Description, t.CreatedAt.UTC().Format(time.RFC3339Nano), t.IsComplete)
	if !t.ModifiedAt.IsZero() {
		line += "|" + t.ModifiedAt.UTC().Format(time.RFC3339Nano)
	}
	return line
}

// parseBool accepts true/false in any letter case.
func parseBool(s string) (bool, error) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, nil
	case strings.EqualFold(s, "false"):
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
