package dbmanager

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// sqlitePool holds a single connection so writes are serialized.
type sqlitePool struct {
	connStats
	db   *sql.DB
	path string
}

func sqliteDSN(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_time_format=sqlite",
		path, busyTimeout.Milliseconds())
}

// NewSqliteDb opens (creating if needed) the SQLite database at path.
func NewSqliteDb(path, busyTimeout string) (ManagedDb, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	timeout, err := time.ParseDuration(busyTimeout)
	if err != nil || timeout <= 0 {
		timeout = 5 * time.Second
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", sqliteDSN(path, timeout))
	if err != nil {
		log.Error().Err(err).Msg("failed to open db")
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err = sqlDB.Ping(); err != nil {
		log.Error().Err(err).Msg("failed to ping db")
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &sqlitePool{db: sqlDB, path: path}, nil
}

func (p *sqlitePool) Dialect() string {
	return DialectSQLite
}

func (p *sqlitePool) Conn(ctx context.Context) (ManagedConn, error) {
	ctx, cancel := context.WithCancel(ctx)
	conn, err := p.db.Conn(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to obtain connection")
		cancel()
		return nil, fmt.Errorf("failed to obtain database connection: %w", err)
	}
	atomic.AddUint64(&p.connRequests, 1)
	return &pooledConn{conn: conn, cancel: cancel, stats: &p.connStats}, nil
}

func (p *sqlitePool) Close() error {
	return p.db.Close()
}
