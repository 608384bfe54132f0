package license

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/keygate/keygate/internal/common/apperrors"
	"github.com/keygate/keygate/internal/keysrv/config"
	"github.com/keygate/keygate/internal/keysrv/db"
	"github.com/keygate/keygate/internal/keysrv/db/dberror"
	"github.com/keygate/keygate/internal/keysrv/db/models"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T) (context.Context, *Service, *fakeClock) {
	t.Helper()
	ctx := log.Logger.WithContext(context.Background())
	store, err := db.Open(ctx, &config.DBConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "keygate.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewService(store)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc.Now = clock.Now
	require.NoError(t, svc.InitSchema(ctx))
	return ctx, svc, clock
}

func TestParsePlan(t *testing.T) {
	for _, p := range Plans() {
		got, err := ParsePlan(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	for _, bad := range []string{"", "premium", "Gold", "Mensuel"} {
		_, err := ParsePlan(bad)
		assert.ErrorIs(t, err, ErrInvalidPlan, bad)
	}
}

func TestPlanExpiry(t *testing.T) {
	created := time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, created.Add(30*24*time.Hour), *PlanPremium.ExpiresAt(created))
	assert.Equal(t, created.Add(90*24*time.Hour), *PlanTrimestriel.ExpiresAt(created))
	assert.Nil(t, PlanPermanent.ExpiresAt(created))

	assert.Equal(t, "PRE", PlanPremium.Code())
	assert.Equal(t, "TRI", PlanTrimestriel.Code())
	assert.Equal(t, "PER", PlanPermanent.Code())
}

func TestGenerate(t *testing.T) {
	ctx, svc, clock := newTestService(t)

	for _, plan := range Plans() {
		t.Run(plan.String(), func(t *testing.T) {
			key, err := svc.Generate(ctx, plan.String())
			require.NoError(t, err)
			assert.Regexp(t, `^DARK-[0-9A-F]{8}-`+plan.Code()+`$`, key.KeyValue)
			assert.Equal(t, plan.String(), key.PlanType)
			assert.True(t, key.IsActive)
			assert.True(t, clock.now.Equal(key.CreatedAt))

			stored, err := svc.store.GetKey(ctx, key.KeyValue)
			require.NoError(t, err)
			if plan == PlanPermanent {
				assert.Nil(t, stored.ExpiresAt)
			} else {
				require.NotNil(t, stored.ExpiresAt)
				assert.True(t, plan.ExpiresAt(clock.now).Equal(*stored.ExpiresAt))
			}
		})
	}

	t.Run("invalid plan", func(t *testing.T) {
		before, err := svc.Count(ctx)
		require.NoError(t, err)
		key, err := svc.Generate(ctx, "Lifetime")
		assert.Nil(t, key)
		assert.ErrorIs(t, err, ErrInvalidPlan)
		after, err := svc.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("collision fails cleanly", func(t *testing.T) {
		svc.NewKeyID = func() string { return "0BADC0DE" }
		_, err := svc.Generate(ctx, "Premium")
		require.NoError(t, err)
		_, err = svc.Generate(ctx, "Premium")
		assert.ErrorIs(t, err, dberror.ErrAlreadyExists)
	})
}

func TestCheckAccess(t *testing.T) {
	ctx, svc, clock := newTestService(t)

	t.Run("key missing", func(t *testing.T) {
		d, err := svc.CheckAccess(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, Decision{Message: MsgKeyMissing}, d)
	})

	t.Run("invalid key", func(t *testing.T) {
		d, err := svc.CheckAccess(ctx, "DARK-00000000-PRE")
		require.NoError(t, err)
		assert.Equal(t, Decision{Message: MsgInvalidKey}, d)
	})

	t.Run("valid key", func(t *testing.T) {
		key, err := svc.Generate(ctx, "Premium")
		require.NoError(t, err)
		d, err := svc.CheckAccess(ctx, key.KeyValue)
		require.NoError(t, err)
		assert.Equal(t, Decision{Allowed: true, Message: MsgKeyValid}, d)

		// repeated checks have no side effects
		for i := 0; i < 3; i++ {
			d, err = svc.CheckAccess(ctx, key.KeyValue)
			require.NoError(t, err)
			assert.True(t, d.Allowed)
		}
	})

	t.Run("deactivated takes precedence over expiry", func(t *testing.T) {
		key, err := svc.Generate(ctx, "Premium")
		require.NoError(t, err)
		require.NoError(t, svc.Deactivate(ctx, key.KeyValue))

		d, err := svc.CheckAccess(ctx, key.KeyValue)
		require.NoError(t, err)
		assert.Equal(t, Decision{Message: MsgKeyDeactivated}, d)

		clock.Advance(365 * 24 * time.Hour)
		defer clock.Advance(-365 * 24 * time.Hour)
		d, err = svc.CheckAccess(ctx, key.KeyValue)
		require.NoError(t, err)
		assert.Equal(t, MsgKeyDeactivated, d.Message)
	})

	t.Run("expired key", func(t *testing.T) {
		key, err := svc.Generate(ctx, "Premium")
		require.NoError(t, err)

		clock.Advance(30 * 24 * time.Hour)
		d, err := svc.CheckAccess(ctx, key.KeyValue)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "the expiry instant itself is still valid")

		clock.Advance(time.Second)
		defer clock.Advance(-(30*24*time.Hour + time.Second))
		d, err = svc.CheckAccess(ctx, key.KeyValue)
		require.NoError(t, err)
		assert.Equal(t, Decision{Message: MsgKeyExpired}, d)
	})

	t.Run("delete then validate", func(t *testing.T) {
		key, err := svc.Generate(ctx, "Permanent")
		require.NoError(t, err)
		require.NoError(t, svc.Delete(ctx, key.KeyValue))

		d, err := svc.CheckAccess(ctx, key.KeyValue)
		require.NoError(t, err)
		assert.Equal(t, Decision{Message: MsgInvalidKey}, d)

		assert.NoError(t, svc.Delete(ctx, key.KeyValue))
	})

	t.Run("permanent key never expires", func(t *testing.T) {
		key, err := svc.Generate(ctx, "Permanent")
		require.NoError(t, err)
		clock.Advance(100 * 365 * 24 * time.Hour)
		defer clock.Advance(-100 * 365 * 24 * time.Hour)
		d, err := svc.CheckAccess(ctx, key.KeyValue)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}

func TestTrimestrielLifecycle(t *testing.T) {
	ctx, svc, clock := newTestService(t)

	key, err := svc.Generate(ctx, "Trimestriel")
	require.NoError(t, err)

	d, err := svc.CheckAccess(ctx, key.KeyValue)
	require.NoError(t, err)
	assert.Equal(t, Decision{Allowed: true, Message: MsgKeyValid}, d)

	clock.Advance(91 * 24 * time.Hour)
	d, err = svc.CheckAccess(ctx, key.KeyValue)
	require.NoError(t, err)
	assert.Equal(t, Decision{Message: MsgKeyExpired}, d)
}

func TestDeactivate(t *testing.T) {
	ctx, svc, _ := newTestService(t)

	assert.ErrorIs(t, svc.Deactivate(ctx, "DARK-FFFFFFFF-PRE"), dberror.ErrNotFound)
	assert.ErrorIs(t, svc.Deactivate(ctx, ""), ErrKeyRequired)
	assert.ErrorIs(t, svc.Delete(ctx, ""), ErrKeyRequired)
}

func TestList(t *testing.T) {
	ctx, svc, clock := newTestService(t)

	first, err := svc.Generate(ctx, "Premium")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := svc.Generate(ctx, "Permanent")
	require.NoError(t, err)

	keys, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, second.KeyValue, keys[0].KeyValue)
	assert.Equal(t, first.KeyValue, keys[1].KeyValue)
}

// flakyStore fails the first n GetKey calls with failWith.
type flakyStore struct {
	db.KeyStore
	failures  int
	calls     int
	initCalls int
	failWith  apperrors.Error
}

func (f *flakyStore) InitSchema(ctx context.Context) apperrors.Error {
	f.initCalls++
	return f.KeyStore.InitSchema(ctx)
}

func (f *flakyStore) GetKey(ctx context.Context, keyValue string) (*models.LicenseKey, apperrors.Error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.failWith
	}
	return f.KeyStore.GetKey(ctx, keyValue)
}

func TestStorageRecovery(t *testing.T) {
	ctx, base, _ := newTestService(t)
	key, err := base.Generate(ctx, "Premium")
	require.NoError(t, err)

	storageErr := dberror.ErrDatabase.Err(errors.New("no such table: license_keys"))

	t.Run("recovers after one re-initialization", func(t *testing.T) {
		fs := &flakyStore{KeyStore: base.store, failures: 1, failWith: storageErr}
		svc := NewService(fs)
		svc.Now = base.Now

		d, err := svc.CheckAccess(ctx, key.KeyValue)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, fs.calls)
		assert.Equal(t, 1, fs.initCalls)
	})

	t.Run("second failure surfaces", func(t *testing.T) {
		fs := &flakyStore{KeyStore: base.store, failures: 2, failWith: storageErr}
		svc := NewService(fs)

		_, err := svc.CheckAccess(ctx, key.KeyValue)
		assert.ErrorIs(t, err, dberror.ErrDatabase)
		assert.Equal(t, 2, fs.calls)
		assert.Equal(t, 1, fs.initCalls)
	})

	t.Run("persistent failure re-initializes once", func(t *testing.T) {
		fs := &flakyStore{KeyStore: base.store, failures: 10, failWith: storageErr}
		svc := NewService(fs)

		_, err := svc.CheckAccess(ctx, key.KeyValue)
		assert.ErrorIs(t, err, dberror.ErrDatabase)
		assert.Equal(t, 2, fs.calls)
		assert.Equal(t, 1, fs.initCalls)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		fs := &flakyStore{KeyStore: base.store}
		svc := NewService(fs)

		d, err := svc.CheckAccess(ctx, "DARK-11111111-PRE")
		require.NoError(t, err)
		assert.Equal(t, MsgInvalidKey, d.Message)
		assert.Equal(t, 1, fs.calls)
		assert.Equal(t, 0, fs.initCalls)
	})
}
