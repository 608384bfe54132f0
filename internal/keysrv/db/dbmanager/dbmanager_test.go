package dbmanager

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSetStatements(t *testing.T) {
	stmts := sessionSetStatements(map[string]string{
		"statement_timeout":                   "5s",
		"lock_timeout":                        "5s",
		"idle_in_transaction_session_timeout": "it's",
	})
	assert.Equal(t, []string{
		`SET "lock_timeout" = '5s'`,
		`SET "statement_timeout" = '5s'`,
		`SET "idle_in_transaction_session_timeout" = 'it''s'`,
	}, stmts)
}

func TestSqlitePool(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "keygate.db")

	db, err := NewManagedDb(ctx, Options{Dialect: DialectSQLite, Path: path, StatementTimeout: "2s"})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DialectSQLite, db.Dialect())

	for i := 0; i < 3; i++ {
		conn, err := db.Conn(ctx)
		require.NoError(t, err)
		var one int
		require.NoError(t, conn.Conn().QueryRowContext(ctx, "SELECT 1").Scan(&one))
		assert.Equal(t, 1, one)
		conn.Close(ctx)
		conn.Close(ctx)
	}

	requests, returns := db.Stats()
	assert.Equal(t, uint64(3), requests)
	assert.Equal(t, uint64(3), returns)
}

func TestNewManagedDbErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewManagedDb(ctx, Options{Dialect: "mysql"})
	assert.Error(t, err)

	_, err = NewManagedDb(ctx, Options{Dialect: DialectSQLite})
	assert.Error(t, err)
}
