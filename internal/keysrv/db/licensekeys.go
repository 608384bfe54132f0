package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/keygate/keygate/internal/common/apperrors"
	"github.com/keygate/keygate/internal/keysrv/db/dberror"
	"github.com/keygate/keygate/internal/keysrv/db/dbmanager"
	"github.com/keygate/keygate/internal/keysrv/db/models"
	"github.com/rs/zerolog/log"
)

// storageError wraps a driver error in ErrDatabase under msg and logs the
// full chain. Clients only see msg.
func storageError(ctx context.Context, msg string, err error) apperrors.Error {
	e := dberror.ErrDatabase.MsgErr(msg, err)
	log.Ctx(ctx).Error().Str("error", e.SetExpandError(true).ErrorAll()).Msg("storage failure")
	return e
}

func (s *keyStore) conn(ctx context.Context) (dbmanager.ManagedConn, apperrors.Error) {
	c, err := s.pool.Conn(ctx)
	if err != nil {
		e := dberror.ErrDatabase.Err(err)
		log.Ctx(ctx).Error().Str("error", e.SetExpandError(true).ErrorAll()).Msg("unable to acquire connection")
		return nil, e
	}
	return c, nil
}

// InitSchema creates the license_keys table and its unique index.
func (s *keyStore) InitSchema(ctx context.Context) apperrors.Error {
	c, aerr := s.conn(ctx)
	if aerr != nil {
		return aerr
	}
	defer c.Close(ctx)

	for _, stmt := range s.dialect.schema {
		if _, err := c.Conn().ExecContext(ctx, stmt); err != nil {
			return storageError(ctx, "failed to initialize schema", err)
		}
	}
	return nil
}

// normalizeTime stores instants in UTC at microsecond precision, the finest
// both dialects round-trip.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// CreateKey inserts a new license key.
func (s *keyStore) CreateKey(ctx context.Context, key *models.LicenseKey) apperrors.Error {
	if key == nil || key.KeyValue == "" || key.PlanType == "" {
		return dberror.ErrInvalidInput.Msg("key value and plan type are required")
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	key.CreatedAt = normalizeTime(key.CreatedAt)
	var expiresAt sql.NullTime
	if key.ExpiresAt != nil {
		t := normalizeTime(*key.ExpiresAt)
		key.ExpiresAt = &t
		expiresAt = sql.NullTime{Time: t, Valid: true}
	}

	c, aerr := s.conn(ctx)
	if aerr != nil {
		return aerr
	}
	defer c.Close(ctx)

	query := s.dialect.rebind(`
		INSERT INTO license_keys (key_value, plan_type, created_at, expires_at, is_active)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	err := c.Conn().QueryRowContext(ctx, query,
		key.KeyValue, key.PlanType, key.CreatedAt, expiresAt, key.IsActive).Scan(&key.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return dberror.ErrAlreadyExists.Msg("license key already exists")
		}
		return storageError(ctx, "failed to create license key", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*models.LicenseKey, error) {
	var key models.LicenseKey
	var expiresAt sql.NullTime
	if err := row.Scan(&key.ID, &key.KeyValue, &key.PlanType, &key.CreatedAt, &expiresAt, &key.IsActive); err != nil {
		return nil, err
	}
	key.CreatedAt = key.CreatedAt.UTC()
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		key.ExpiresAt = &t
	}
	return &key, nil
}

const keyColumns = `id, key_value, plan_type, created_at, expires_at, is_active`

// GetKey retrieves a license key by value.
func (s *keyStore) GetKey(ctx context.Context, keyValue string) (*models.LicenseKey, apperrors.Error) {
	c, aerr := s.conn(ctx)
	if aerr != nil {
		return nil, aerr
	}
	defer c.Close(ctx)

	query := s.dialect.rebind(`SELECT ` + keyColumns + ` FROM license_keys WHERE key_value = ?`)
	key, err := scanKey(c.Conn().QueryRowContext(ctx, query, keyValue))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("license key not found")
		}
		return nil, storageError(ctx, "failed to get license key", err)
	}
	return key, nil
}

// ListKeys returns every key ordered by creation time, newest first.
func (s *keyStore) ListKeys(ctx context.Context) ([]*models.LicenseKey, apperrors.Error) {
	c, aerr := s.conn(ctx)
	if aerr != nil {
		return nil, aerr
	}
	defer c.Close(ctx)

	rows, err := c.Conn().QueryContext(ctx,
		`SELECT `+keyColumns+` FROM license_keys ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storageError(ctx, "failed to list license keys", err)
	}
	defer rows.Close()

	keys := []*models.LicenseKey{}
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, storageError(ctx, "failed to scan license key", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(ctx, "failed to iterate license keys", err)
	}
	return keys, nil
}

// DeactivateKey marks the key inactive.
func (s *keyStore) DeactivateKey(ctx context.Context, keyValue string) apperrors.Error {
	c, aerr := s.conn(ctx)
	if aerr != nil {
		return aerr
	}
	defer c.Close(ctx)

	query := s.dialect.rebind(`UPDATE license_keys SET is_active = ? WHERE key_value = ?`)
	result, err := c.Conn().ExecContext(ctx, query, false, keyValue)
	if err != nil {
		return storageError(ctx, "failed to deactivate license key", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return storageError(ctx, "failed to deactivate license key", err)
	}
	if n == 0 {
		return dberror.ErrNotFound.Msg("license key not found")
	}
	return nil
}

// DeleteKey removes the key if present.
func (s *keyStore) DeleteKey(ctx context.Context, keyValue string) apperrors.Error {
	c, aerr := s.conn(ctx)
	if aerr != nil {
		return aerr
	}
	defer c.Close(ctx)

	query := s.dialect.rebind(`DELETE FROM license_keys WHERE key_value = ?`)
	if _, err := c.Conn().ExecContext(ctx, query, keyValue); err != nil {
		return storageError(ctx, "failed to delete license key", err)
	}
	return nil
}

// CountKeys returns the number of stored keys.
func (s *keyStore) CountKeys(ctx context.Context) (int, apperrors.Error) {
	c, aerr := s.conn(ctx)
	if aerr != nil {
		return 0, aerr
	}
	defer c.Close(ctx)

	var n int
	if err := c.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM license_keys`).Scan(&n); err != nil {
		return 0, storageError(ctx, "failed to count license keys", err)
	}
	return n, nil
}
