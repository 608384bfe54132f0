// Package dbmanager owns the connection pools behind the key store. Each
// operation borrows one connection and returns it when done.
package dbmanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

const (
	DialectSQLite     = "sqlite"
	DialectPostgreSQL = "postgresql"
)

type ManagedDb interface {
	// Conn returns a connection prepared for the dialect's session settings.
	Conn(ctx context.Context) (ManagedConn, error)
	// Dialect returns DialectSQLite or DialectPostgreSQL.
	Dialect() string
	// Stats returns the number of connection requests and returns.
	Stats() (requests, returns uint64)
	// Close closes the pool.
	Close() error
}

type ManagedConn interface {
	// Conn returns the underlying *sql.Conn. Do not close this directly.
	Conn() *sql.Conn
	// Close returns the connection to the pool.
	Close(ctx context.Context)
}

// Options configures a pool.
type Options struct {
	Dialect string
	// DSN is the PostgreSQL connection string.
	DSN string
	// Path is the SQLite database file.
	Path             string
	StatementTimeout string
}

// NewManagedDb opens a pool for the configured dialect.
func NewManagedDb(ctx context.Context, opts Options) (ManagedDb, error) {
	switch opts.Dialect {
	case DialectPostgreSQL:
		db, err := NewPostgresqlDb(opts.DSN, opts.StatementTimeout)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to create PostgreSQL DB")
			return nil, err
		}
		return db, nil
	case DialectSQLite:
		db, err := NewSqliteDb(opts.Path, opts.StatementTimeout)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("path", opts.Path).Msg("failed to create SQLite DB")
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unsupported db dialect: %q", opts.Dialect)
}

// pooledConn is shared by both dialects.
type pooledConn struct {
	conn   *sql.Conn
	cancel context.CancelFunc
	stats  *connStats
}

type connStats struct {
	connRequests uint64
	connReturns  uint64
}

func (s *connStats) Stats() (requests, returns uint64) {
	return atomic.LoadUint64(&s.connRequests), atomic.LoadUint64(&s.connReturns)
}

func (h *pooledConn) Conn() *sql.Conn {
	return h.conn
}

func (h *pooledConn) Close(ctx context.Context) {
	if h.conn == nil {
		return
	}
	if err := h.conn.Close(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to return connection")
	}
	h.conn = nil
	if h.cancel != nil {
		h.cancel()
	}
	atomic.AddUint64(&h.stats.connReturns, 1)
}
