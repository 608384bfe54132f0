// Package license issues license keys and decides whether a presented key
// grants access. Storage faults are recovered once by re-initializing the
// schema and retrying the operation.
package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/keygate/keygate/internal/common/uuid"
	"github.com/keygate/keygate/internal/keysrv/db"
	"github.com/keygate/keygate/internal/keysrv/db/dberror"
	"github.com/keygate/keygate/internal/keysrv/db/models"
	"github.com/rs/zerolog/log"
)

const (
	MsgKeyMissing     = "key missing"
	MsgInvalidKey     = "invalid key"
	MsgKeyDeactivated = "key deactivated"
	MsgKeyExpired     = "key expired"
	MsgKeyValid       = "key valid"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Message string
}

type Service struct {
	store db.KeyStore
	// Now is the clock used for key creation and expiry checks.
	Now func() time.Time
	// NewKeyID returns the random part of a key value.
	NewKeyID func() string
}

func NewService(store db.KeyStore) *Service {
	return &Service{
		store:    store,
		Now:      time.Now,
		NewKeyID: randomKeyID,
	}
}

func randomKeyID() string {
	return uuid.ShortID(8)
}

// KeyValue formats a key value for plan.
func KeyValue(id string, plan Plan) string {
	return fmt.Sprintf("DARK-%s-%s", id, plan.Code())
}

// recoveryAttempts bounds withRecovery to the first call plus one retry.
const recoveryAttempts = 2

// withRecovery runs op and, on a storage fault, re-initializes the schema and
// runs it one more time.
func withRecovery[T any](ctx context.Context, s *Service, op func() (T, error)) (T, error) {
	return retry.DoWithData(op,
		retry.Context(ctx),
		retry.Attempts(recoveryAttempts),
		retry.LastErrorOnly(true),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(0),
		retry.RetryIf(dberror.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			// also called after the final attempt, when no retry follows
			if n+1 >= recoveryAttempts {
				return
			}
			log.Ctx(ctx).Error().Err(err).Uint("attempt", n+1).Msg("storage failure, re-initializing schema")
			if ierr := s.store.InitSchema(ctx); ierr != nil {
				log.Ctx(ctx).Error().Err(ierr).Msg("schema re-initialization failed")
			}
		}),
	)
}

// InitSchema prepares the key store.
func (s *Service) InitSchema(ctx context.Context) error {
	return s.store.InitSchema(ctx)
}

// Generate issues and persists a new key for planName.
func (s *Service) Generate(ctx context.Context, planName string) (*models.LicenseKey, error) {
	plan, err := ParsePlan(planName)
	if err != nil {
		log.Ctx(ctx).Debug().Str("plan", planName).Msg("rejected key generation")
		return nil, err
	}
	now := s.Now()
	key := &models.LicenseKey{
		KeyValue:  KeyValue(s.NewKeyID(), plan),
		PlanType:  plan.String(),
		CreatedAt: now,
		ExpiresAt: plan.ExpiresAt(now),
		IsActive:  true,
	}
	_, err = withRecovery(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.store.CreateKey(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("plan", key.PlanType).Msg("license key generated")
	return key, nil
}

// CheckAccess evaluates keyValue against the store. The first matching rule
// wins: missing, unknown, deactivated, expired, valid.
func (s *Service) CheckAccess(ctx context.Context, keyValue string) (Decision, error) {
	if keyValue == "" {
		return Decision{Message: MsgKeyMissing}, nil
	}
	key, err := withRecovery(ctx, s, func() (*models.LicenseKey, error) {
		return s.store.GetKey(ctx, keyValue)
	})
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return Decision{Message: MsgInvalidKey}, nil
		}
		return Decision{}, err
	}
	if !key.IsActive {
		return Decision{Message: MsgKeyDeactivated}, nil
	}
	if key.ExpiresAt != nil && s.Now().After(*key.ExpiresAt) {
		return Decision{Message: MsgKeyExpired}, nil
	}
	return Decision{Allowed: true, Message: MsgKeyValid}, nil
}

// List returns all issued keys, newest first.
func (s *Service) List(ctx context.Context) ([]*models.LicenseKey, error) {
	return withRecovery(ctx, s, func() ([]*models.LicenseKey, error) {
		return s.store.ListKeys(ctx)
	})
}

// Delete removes a key. Absent keys are not an error.
func (s *Service) Delete(ctx context.Context, keyValue string) error {
	if keyValue == "" {
		return ErrKeyRequired
	}
	_, err := withRecovery(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.store.DeleteKey(ctx, keyValue)
	})
	return err
}

// Deactivate marks a key inactive. Unknown keys yield dberror.ErrNotFound.
func (s *Service) Deactivate(ctx context.Context, keyValue string) error {
	if keyValue == "" {
		return ErrKeyRequired
	}
	_, err := withRecovery(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.store.DeactivateKey(ctx, keyValue)
	})
	return err
}

// Count returns the number of stored keys.
func (s *Service) Count(ctx context.Context) (int, error) {
	return withRecovery(ctx, s, func() (int, error) {
		return s.store.CountKeys(ctx)
	})
}
