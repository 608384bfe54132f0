package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/keygate/keygate/internal/keysrv/config"
	"github.com/keygate/keygate/internal/keysrv/db"
	"github.com/keygate/keygate/internal/keysrv/gateway"
	"github.com/keygate/keygate/internal/keysrv/license"
	"github.com/keygate/keygate/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testAdminPassword = "s3cret"

type testEnv struct {
	server        *KeyServer
	licenses      *license.Service
	providerHits  *atomic.Int32
	providerReply func(w http.ResponseWriter, r *http.Request)
}

type envOptions struct {
	adminPassword string
	primaryKey    string
	secondaryKey  string
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	cfg := config.TestInit(t.TempDir())
	cfg.Admin.Password = opts.adminPassword

	ctx := log.Logger.WithContext(context.Background())
	store, err := db.Open(ctx, &cfg.DB)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	licenses := license.NewService(store)
	require.NoError(t, licenses.InitSchema(ctx))

	env := &testEnv{licenses: licenses, providerHits: &atomic.Int32{}}
	env.providerReply = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"}}]}`)
	}
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.providerHits.Add(1)
		env.providerReply(w, r)
	}))
	t.Cleanup(provider.Close)

	gw := gateway.New(gateway.Options{
		Primary:   gateway.Provider{Name: "Groq", BaseURL: provider.URL, APIKey: opts.primaryKey, Model: "llama-3.3-70b-versatile", ForceModel: true},
		Secondary: gateway.Provider{Name: "OpenRouter", BaseURL: provider.URL, APIKey: opts.secondaryKey, Model: "nousresearch/hermes-3-llama-3.1-405b:free"},
	})

	s, err := CreateNewServer(cfg, licenses, gw)
	require.NoError(t, err)
	s.MountHandlers()
	env.server = s
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, auth string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	e.server.Router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) generate(t *testing.T, plan string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/admin/generate-key", api.GenerateKeyReq{PlanType: plan}, "Bearer "+testAdminPassword)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	key := gjson.Get(rr.Body.String(), "key").String()
	require.NotEmpty(t, key)
	return key
}

func TestGetVersion(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rr := env.do(t, http.MethodGet, "/version", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Keygate-Request-ID"))
	assert.JSONEq(t, `{"serverVersion":"`+api.ServerVersion+`","apiVersion":"`+api.ApiVersion+`"}`, rr.Body.String())
}

func TestGetReadiness(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rr := env.do(t, http.MethodGet, "/ready", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rr.Body.String())
}

func TestValidateKey(t *testing.T) {
	env := newTestEnv(t, envOptions{adminPassword: testAdminPassword})

	t.Run("missing key", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/validate-key", api.ValidateKeyReq{}, "")
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"valid":false,"message":"key missing"}`, rr.Body.String())
	})

	t.Run("unknown key", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/validate-key", api.ValidateKeyReq{Key: "DARK-00000000-PRE"}, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"valid":false,"message":"invalid key"}`, rr.Body.String())
	})

	t.Run("valid then deactivated", func(t *testing.T) {
		key := env.generate(t, "Premium")
		rr := env.do(t, http.MethodPost, "/api/validate-key", api.ValidateKeyReq{Key: key}, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"valid":true,"message":"key valid"}`, rr.Body.String())

		rr = env.do(t, http.MethodPost, "/api/admin/deactivate-key", api.KeyReq{Key: key}, "Bearer "+testAdminPassword)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true}`, rr.Body.String())

		rr = env.do(t, http.MethodPost, "/api/validate-key", api.ValidateKeyReq{Key: key}, "")
		assert.JSONEq(t, `{"valid":false,"message":"key deactivated"}`, rr.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/validate-key", bytes.NewBufferString("{not json"))
		rr := httptest.NewRecorder()
		env.server.Router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, int64(0), gjson.Get(rr.Body.String(), "result").Int())
	})
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, envOptions{adminPassword: testAdminPassword, primaryKey: "gsk-test"})

	t.Run("empty license key is rejected before any outbound call", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/chat", api.ChatReq{Prompt: "hi"}, "")
		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.JSONEq(t, `{"reply":"Error: key missing"}`, rr.Body.String())
		assert.Equal(t, int32(0), env.providerHits.Load())
	})

	t.Run("unknown license key", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/chat", api.ChatReq{Prompt: "hi", LicenseKey: "DARK-DEADBEEF-PER"}, "")
		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.JSONEq(t, `{"reply":"Error: invalid key"}`, rr.Body.String())
		assert.Equal(t, int32(0), env.providerHits.Load())
	})

	key := env.generate(t, "Permanent")

	t.Run("admitted request is forwarded", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/chat", api.ChatReq{Prompt: "ping", LicenseKey: key, Mode: "casual"}, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.JSONEq(t, `{"reply":"pong"}`, rr.Body.String())
		assert.Equal(t, int32(1), env.providerHits.Load())
	})

	t.Run("empty prompt", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/chat", api.ChatReq{LicenseKey: key}, "")
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"reply":"Error: prompt is required"}`, rr.Body.String())
	})

	t.Run("upstream failure is reported in the reply", func(t *testing.T) {
		env.providerReply = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, "overloaded")
		}
		rr := env.do(t, http.MethodPost, "/api/chat", api.ChatReq{Prompt: "ping", LicenseKey: key}, "")
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Error: Groq API error (code 503): overloaded", gjson.Get(rr.Body.String(), "reply").String())
	})
}

func TestChatWithoutCredential(t *testing.T) {
	env := newTestEnv(t, envOptions{adminPassword: testAdminPassword})
	key := env.generate(t, "Premium")

	rr := env.do(t, http.MethodPost, "/api/chat", api.ChatReq{Prompt: "hi", LicenseKey: key}, "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"reply":"Error: no API key configured"}`, rr.Body.String())
	assert.Equal(t, int32(0), env.providerHits.Load())
}

func TestAdminAuth(t *testing.T) {
	t.Run("wrong credential", func(t *testing.T) {
		env := newTestEnv(t, envOptions{adminPassword: testAdminPassword})
		for _, auth := range []string{"", "Bearer wrong", testAdminPassword, "Basic " + testAdminPassword} {
			rr := env.do(t, http.MethodGet, "/api/admin/keys", nil, auth)
			assert.Equal(t, http.StatusUnauthorized, rr.Code, auth)
			assert.JSONEq(t, `{"result":0,"error":"unauthorized"}`, rr.Body.String())
		}
	})

	t.Run("no credential configured", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		rr := env.do(t, http.MethodPost, "/api/admin/init-db", nil, "Bearer ")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		rr = env.do(t, http.MethodGet, "/api/admin/keys", nil, "Bearer admin123")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestAdminKeys(t *testing.T) {
	env := newTestEnv(t, envOptions{adminPassword: testAdminPassword})
	auth := "Bearer " + testAdminPassword

	rr := env.do(t, http.MethodGet, "/api/admin/keys", nil, auth)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	premium := env.generate(t, "Premium")
	permanent := env.generate(t, "Permanent")

	t.Run("list", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/admin/keys", nil, auth)
		require.Equal(t, http.StatusOK, rr.Code)
		var keys []api.KeyInfo
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &keys))
		require.Len(t, keys, 2)
		byKey := map[string]api.KeyInfo{}
		for _, k := range keys {
			byKey[k.Key] = k
		}
		assert.Equal(t, "Premium", byKey[premium].Plan)
		assert.NotNil(t, byKey[premium].ExpiresAt)
		assert.True(t, byKey[premium].IsActive)
		assert.Equal(t, "Permanent", byKey[permanent].Plan)
		assert.Nil(t, byKey[permanent].ExpiresAt)
		assert.True(t, gjson.Get(rr.Body.String(), `#(key=="`+permanent+`").expires_at`).Type == gjson.Null)
	})

	t.Run("invalid plan", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/admin/generate-key", api.GenerateKeyReq{PlanType: "Gold"}, auth)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid plan type: Gold", gjson.Get(rr.Body.String(), "error").String())
	})

	t.Run("deactivate unknown key", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/admin/deactivate-key", api.KeyReq{Key: "DARK-00000000-PRE"}, auth)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/admin/delete-key", api.KeyReq{Key: premium}, auth)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true}`, rr.Body.String())

		rr = env.do(t, http.MethodPost, "/api/validate-key", api.ValidateKeyReq{Key: premium}, "")
		assert.JSONEq(t, `{"valid":false,"message":"invalid key"}`, rr.Body.String())

		rr = env.do(t, http.MethodPost, "/api/admin/delete-key", api.KeyReq{Key: premium}, auth)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("init-db keeps existing keys", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/admin/init-db", nil, auth)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true,"message":"database initialized"}`, rr.Body.String())

		n, err := env.licenses.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	env.server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
