package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type RepoOptions struct {
	Backend string
	// Path is the list file for the file backend and the database file for
	// sqlite when DSN is empty.
	Path string
	DSN  string
}

// OpenRepository builds the configured backend, creates its schema if it
// has one, and wraps it with metrics and tracing.
func OpenRepository(ctx context.Context, opts RepoOptions, logger *slog.Logger) (Repository, error) {
	var repo Repository
	switch opts.Backend {
	case BackendMemory:
		repo = NewInMemoryRepo()

	case BackendFile:
		r, err := NewFileRepo(opts.Path, logger)
		if err != nil {
			return nil, err
		}
		repo = r

	case BackendSQLite:
		dsn := opts.DSN
		if dsn == "" {
			var err error
			if dsn, err = SQLiteFileDSN(opts.Path); err != nil {
				return nil, storageErr(BackendSQLite, "open", err)
			}
		}
		r, err := NewSQLiteRepo(dsn, logger)
		if err != nil {
			return nil, err
		}
		if err := r.EnsureSchema(ctx); err != nil {
			_ = r.Close()
			return nil, err
		}
		repo = r

	case BackendPostgres:
		r, err := NewPostgresRepo(ctx, opts.DSN, logger)
		if err != nil {
			return nil, err
		}
		if err := r.EnsureSchema(ctx); err != nil {
			_ = r.Close()
			return nil, err
		}
		repo = r

	default:
		return nil, fmt.Errorf("unknown repository backend %q", opts.Backend)
	}
	return Instrument(repo, opts.Backend), nil
}
