// Package storage is the SQLite backend. The statements in queries.go are
// shared with the Postgres backend.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"circolo/internal/adapters"
	"circolo/internal/sequence"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	*Reader
	db      *sql.DB
	queries *Queries
	// serializes numbering within the process; BEGIN IMMEDIATE covers other processes
	numbering sync.Mutex
}

var _ sequence.Store = (*SQLiteRepository)(nil)

// DSN adds the pragmas the repository relies on to a database path.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	q := New(db)
	return &SQLiteRepository{Reader: NewReader(q), db: db, queries: q}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithNumberingLock runs fn inside a BEGIN IMMEDIATE transaction on a
// dedicated connection, so no other writer can interleave between the scan
// of existing numbers and the write.
func (r *SQLiteRepository) WithNumberingLock(ctx context.Context, fn func(tx sequence.NumberingTx) error) (err error) {
	r.numbering.Lock()
	defer r.numbering.Unlock()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin numbering transaction: %w", err)
	}
	defer func() {
		if err != nil {
			// the caller's context may already be done
			if _, rbErr := conn.ExecContext(context.Background(), "ROLLBACK"); rbErr != nil {
				slog.ErrorContext(ctx, "Failed to roll back numbering transaction", "error", rbErr)
			}
		}
	}()

	if err = fn(NewNumberingTx(r.queries.WithTx(conn))); err != nil {
		return err
	}
	if _, err = conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit numbering transaction: %w", err)
	}
	return nil
}

// Import loads a seed in one transaction.
func (r *SQLiteRepository) Import(ctx context.Context, seed adapters.Seed) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	if err := Import(ctx, r.queries.WithTx(tx), seed); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	slog.InfoContext(ctx, "Seed imported into SQLite",
		"receipts", len(seed.Receipts),
		"expenses", len(seed.Expenses),
		"third_party", len(seed.ThirdParty),
		"subscriptions", len(seed.Subscriptions))
	return nil
}

// AnnulReceipt marks a receipt as annulled. It reports whether a live receipt was found.
func (r *SQLiteRepository) AnnulReceipt(ctx context.Context, id int64) (bool, error) {
	ok, err := r.queries.AnnulReceipt(ctx, id)
	if err != nil {
		return false, fmt.Errorf("annul receipt: %w", err)
	}
	return ok, nil
}
