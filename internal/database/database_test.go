package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(string(SQLite), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New("oracle", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newMemoryDB(t)
	require.NoError(t, Migrate(context.Background(), db))

	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'pokemonteams')`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRebind(t *testing.T) {
	q := "UPDATE users SET password_hash = ? WHERE id = ?"

	lite := &DB{Dialect: SQLite}
	assert.Equal(t, q, lite.Rebind(q))

	pg := &DB{Dialect: Postgres}
	assert.Equal(t, "UPDATE users SET password_hash = $1 WHERE id = $2", pg.Rebind(q))
}

func TestWithPragmas(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", withPragmas(":memory:"))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", withPragmas("file:x.db?mode=rwc"))
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO users (username, password_hash) VALUES (?, ?)`, "alice", "x")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO users (username, password_hash) VALUES (?, ?)`, "alice", "y")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsForeignKeyViolation(err))
}

func TestIsForeignKeyViolation_SQLite(t *testing.T) {
	db := newMemoryDB(t)

	_, err := db.ExecContext(context.Background(), `INSERT INTO pokemonteams (user_id) VALUES (?)`, 999)
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))
	assert.False(t, IsUniqueViolation(err))
}

func TestConstraintChecks_Postgres(t *testing.T) {
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	fk := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(errors.New("boom")))
}

func TestCascadeDelete(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	var uid int64
	require.NoError(t, db.QueryRowContext(ctx, `INSERT INTO users (username, password_hash) VALUES (?, ?) RETURNING id`, "bob", "x").Scan(&uid))
	_, err := db.ExecContext(ctx, `INSERT INTO pokemonteams (user_id) VALUES (?)`, uid)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, uid)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pokemonteams WHERE user_id = ?`, uid).Scan(&n))
	assert.Zero(t, n)
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	err := WithTx(ctx, db, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO users (username, password_hash) VALUES (?, ?)`, "kept", "x")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTx(ctx, db, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (username, password_hash) VALUES (?, ?)`, "dropped", "x"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWithTx_PanicRollsBack(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = WithTx(ctx, db, func(ctx context.Context, tx DBTX) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO users (username, password_hash) VALUES (?, ?)`, "ghost", "x")
			panic("kaboom")
		})
	})

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Zero(t, n)
}
