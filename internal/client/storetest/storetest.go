// Package storetest opens throwaway migrated SQLite databases for tests.
package storetest

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/manisoft/subman/internal/client/migrations"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// NewDB returns an in-memory database with all migrations applied. Each test
// gets its own database; it is closed on cleanup.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}
