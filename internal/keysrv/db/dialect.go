package db

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/keygate/keygate/internal/keysrv/db/dbmanager"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

type dialect struct {
	name   string
	schema []string
}

var sqliteDialect = &dialect{
	name: dbmanager.DialectSQLite,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS license_keys (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key_value TEXT NOT NULL,
			plan_type TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME,
			is_active BOOLEAN NOT NULL DEFAULT 1
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_license_keys_key_value ON license_keys (key_value)`,
	},
}

var postgresDialect = &dialect{
	name: dbmanager.DialectPostgreSQL,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS license_keys (
			id BIGSERIAL PRIMARY KEY,
			key_value TEXT NOT NULL,
			plan_type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT true
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_license_keys_key_value ON license_keys (key_value)`,
	},
}

func dialectFor(name string) *dialect {
	if name == dbmanager.DialectPostgreSQL {
		return postgresDialect
	}
	return sqliteDialect
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d *dialect) rebind(query string) string {
	if d.name != dbmanager.DialectPostgreSQL {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports whether err was raised by a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}
