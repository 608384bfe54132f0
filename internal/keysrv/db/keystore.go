// Package db provides the durable store for issued license keys. One
// implementation serves both SQL dialects; dialect differences are confined
// to DDL, placeholders and constraint-violation detection.
package db

import (
	"context"

	"github.com/keygate/keygate/internal/common/apperrors"
	"github.com/keygate/keygate/internal/keysrv/config"
	"github.com/keygate/keygate/internal/keysrv/db/dbmanager"
	"github.com/keygate/keygate/internal/keysrv/db/models"
)

// KeyStore owns the persisted license keys. All operations require a valid
// context and return dberror values on failure.
type KeyStore interface {
	// InitSchema creates the table and unique index if absent. Idempotent.
	InitSchema(ctx context.Context) apperrors.Error
	// CreateKey inserts key and fills its ID. A duplicate key value yields ErrAlreadyExists.
	CreateKey(ctx context.Context, key *models.LicenseKey) apperrors.Error
	GetKey(ctx context.Context, keyValue string) (*models.LicenseKey, apperrors.Error)
	// ListKeys returns all keys, newest first.
	ListKeys(ctx context.Context) ([]*models.LicenseKey, apperrors.Error)
	DeactivateKey(ctx context.Context, keyValue string) apperrors.Error
	// DeleteKey removes the key. Deleting an absent key is not an error.
	DeleteKey(ctx context.Context, keyValue string) apperrors.Error
	CountKeys(ctx context.Context) (int, apperrors.Error)

	Close() error
}

// Options converts the server db configuration into pool options.
func Options(c *config.DBConfig) dbmanager.Options {
	opts := dbmanager.Options{
		Dialect:          c.Driver,
		Path:             c.Path,
		StatementTimeout: c.StatementTimeout,
	}
	if c.Driver == config.DriverPostgreSQL {
		opts.DSN = c.DSN()
	}
	return opts
}

// Open creates the pool described by c and returns a store on top of it. The
// schema is not touched; call InitSchema explicitly.
func Open(ctx context.Context, c *config.DBConfig) (KeyStore, error) {
	pool, err := dbmanager.NewManagedDb(ctx, Options(c))
	if err != nil {
		return nil, err
	}
	return NewKeyStore(pool), nil
}

// NewKeyStore returns a store backed by pool.
func NewKeyStore(pool dbmanager.ManagedDb) KeyStore {
	return &keyStore{
		pool:    pool,
		dialect: dialectFor(pool.Dialect()),
	}
}

type keyStore struct {
	pool    dbmanager.ManagedDb
	dialect *dialect
}

func (s *keyStore) Close() error {
	return s.pool.Close()
}
