// Package postgres is the PostgreSQL backend. It shares its statements with
// the SQLite backend and serializes numbering with a transaction-scoped
// advisory lock, so several service instances can allocate safely.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"circolo/internal/adapters"
	"circolo/internal/sequence"
	"circolo/internal/storage"
)

// NumberingLockKey identifies the advisory lock guarding membership numbers.
const NumberingLockKey int64 = 0x636972636f6c6f // "circolo"

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	*storage.Reader
	db      *sql.DB
	queries *storage.Queries
}

var _ sequence.Store = (*Store)(nil)

// New wraps an open database. It does not run migrations.
func New(db *sql.DB) *Store {
	q := storage.NewWithDialect(db, storage.Postgres)
	return &Store{Reader: storage.NewReader(q), db: db, queries: q}
}

// Open connects to dsn, checks the connection and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "Connected to PostgreSQL")
	return New(db), nil
}

// RunMigrations brings the schema up to date. It does not close db.
func RunMigrations(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithNumberingLock takes the advisory lock inside a transaction. The lock is
// released by commit or rollback.
func (s *Store) WithNumberingLock(ctx context.Context, fn func(tx sequence.NumberingTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin numbering transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", NumberingLockKey); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("acquire numbering lock: %w", err)
	}
	if err := fn(storage.NewNumberingTx(s.queries.WithTx(tx))); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back numbering transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit numbering transaction: %w", err)
	}
	return nil
}

func (s *Store) Import(ctx context.Context, seed adapters.Seed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	if err := storage.Import(ctx, s.queries.WithTx(tx), seed); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	slog.InfoContext(ctx, "Seed imported into PostgreSQL",
		"receipts", len(seed.Receipts),
		"expenses", len(seed.Expenses),
		"third_party", len(seed.ThirdParty),
		"subscriptions", len(seed.Subscriptions))
	return nil
}

func (s *Store) AnnulReceipt(ctx context.Context, id int64) (bool, error) {
	ok, err := s.queries.AnnulReceipt(ctx, id)
	if err != nil {
		return false, fmt.Errorf("annul receipt: %w", err)
	}
	return ok, nil
}
