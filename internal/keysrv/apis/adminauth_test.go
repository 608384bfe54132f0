package apis

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdminAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		password string
		header   string
		want     int
	}{
		{"matching bearer", "pw", "Bearer pw", http.StatusNoContent},
		{"wrong password", "pw", "Bearer nope", http.StatusUnauthorized},
		{"missing scheme", "pw", "pw", http.StatusUnauthorized},
		{"no header", "pw", "", http.StatusUnauthorized},
		{"prefix of password", "pw", "Bearer p", http.StatusUnauthorized},
		{"unset password", "", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/keys", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			AdminAuth(tt.password)(ok).ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}
