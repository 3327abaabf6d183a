// Package databasetest opens migrated in-memory databases for tests.
package databasetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/isdelr/teambuilder-be/internal/database"
)

// New returns a fresh in-memory SQLite database with the schema applied.
// It is closed when the test finishes.
func New(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(string(database.SQLite), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}
