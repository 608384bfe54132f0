package apis

import (
	"crypto/subtle"
	"net/http"

	"github.com/keygate/keygate/internal/common/httpx"
	"github.com/rs/zerolog/log"
)

// AdminAuth admits requests carrying "Authorization: Bearer <password>". With
// no password configured every admin request is rejected.
func AdminAuth(password string) func(http.Handler) http.Handler {
	expected := []byte("Bearer " + password)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				log.Ctx(r.Context()).Error().Msg("admin credential not configured")
				httpx.ErrUnAuthorized("unauthorized").Send(w)
				return
			}
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				log.Ctx(r.Context()).Debug().Msg("admin authentication failed")
				httpx.ErrUnAuthorized("unauthorized").Send(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
