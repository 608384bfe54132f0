package dbmanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// postgresPool represents a pool of PostgreSQL database connections.
type postgresPool struct {
	connStats
	db            *sql.DB
	sessionParams map[string]string
}

// formatSQLIdentifier formats a parameter name for use in SQL using proper identifier quoting.
func formatSQLIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// sessionSetStatements returns the SET statements applied to every borrowed
// connection, in a stable order.
func sessionSetStatements(params map[string]string) []string {
	order := []string{"lock_timeout", "statement_timeout", "idle_in_transaction_session_timeout"}
	stmts := make([]string, 0, len(params))
	for _, param := range order {
		if value, ok := params[param]; ok {
			stmts = append(stmts, fmt.Sprintf("SET %s = %s", formatSQLIdentifier(param), pq.QuoteLiteral(value)))
		}
	}
	return stmts
}

// NewPostgresqlDb creates a new PostgreSQL connection pool.
func NewPostgresqlDb(dsn, statementTimeout string) (ManagedDb, error) {
	if statementTimeout == "" {
		statementTimeout = "5s"
	}

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Error().Err(err).Msg("failed to open db")
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err = sqlDB.Ping(); err != nil {
		log.Error().Err(err).Msg("failed to ping db")
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &postgresPool{
		db: sqlDB,
		sessionParams: map[string]string{
			"lock_timeout":                        statementTimeout,
			"statement_timeout":                   statementTimeout,
			"idle_in_transaction_session_timeout": statementTimeout,
		},
	}, nil
}

func (p *postgresPool) Dialect() string {
	return DialectPostgreSQL
}

// Conn returns a connection from the pool with the session timeouts applied.
func (p *postgresPool) Conn(ctx context.Context) (ManagedConn, error) {
	ctx, cancel := context.WithCancel(ctx)

	conn, err := p.db.Conn(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to obtain connection")
		cancel()
		return nil, fmt.Errorf("failed to obtain database connection: %w", err)
	}

	for _, query := range sessionSetStatements(p.sessionParams) {
		if _, err = conn.ExecContext(ctx, query); err != nil {
			cancel()
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", query, err)
		}
	}

	atomic.AddUint64(&p.connRequests, 1)
	return &pooledConn{conn: conn, cancel: cancel, stats: &p.connStats}, nil
}

// OpenConns returns the number of open connections in the pool.
func (p *postgresPool) OpenConns() int {
	return p.db.Stats().OpenConnections
}

func (p *postgresPool) Close() error {
	return p.db.Close()
}
