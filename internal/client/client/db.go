package client

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/manisoft/subman/internal/client/migrations"
	"github.com/manisoft/subman/internal/client/repositories/categories"
	"github.com/manisoft/subman/internal/client/repositories/metadata"
	"github.com/manisoft/subman/internal/client/repositories/payments"
	"github.com/manisoft/subman/internal/client/repositories/subscriptions"
	"github.com/manisoft/subman/internal/client/repositories/syncqueue"
	"github.com/manisoft/subman/internal/client/repositories/users"
	"github.com/manisoft/subman/internal/dbx"
	"github.com/manisoft/subman/internal/filex"

	_ "modernc.org/sqlite"
)

// Repositories bundles every local repository bound to one DBTX.
type Repositories struct {
	Metadata      metadata.Repository
	Users         users.Repository
	Categories    categories.Repository
	Subscriptions subscriptions.Repository
	Payments      payments.Repository
	Queue         syncqueue.Repository
}

// NewRepositories binds the repositories to db, which may be a transaction.
func NewRepositories(db dbx.DBTX) *Repositories {
	return &Repositories{
		Metadata:      metadata.NewSQLiteRepository(db),
		Users:         users.NewSQLiteRepository(db),
		Categories:    categories.NewSQLiteRepository(db),
		Subscriptions: subscriptions.NewSQLiteRepository(db),
		Payments:      payments.NewSQLiteRepository(db),
		Queue:         syncqueue.NewSQLiteRepository(db),
	}
}

// Store is the local database together with its repositories.
type Store struct {
	DB *sql.DB
	*Repositories
}

// NewStore wraps an already migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, Repositories: NewRepositories(db)}
}

// InTx runs fn with repositories bound to a single transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewRepositories(tx))
	})
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// RunMigrations brings the schema of db up to date.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrations.Up(ctx, db)
}

// InitDatabase opens (creating when needed) the SQLite database at path and
// applies migrations.
func InitDatabase(ctx context.Context, path string) (*sql.DB, error) {
	if err := filex.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("failed to prepare database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps shared
	// in-memory databases alive.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenStore is InitDatabase followed by NewStore.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := InitDatabase(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
