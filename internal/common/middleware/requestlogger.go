// Package middleware holds the HTTP middleware shared by the keygate server:
// request logging with request ids, panic recovery, request timeouts and body
// size limits.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/keygate/keygate/internal/common/logtrace"
	"github.com/keygate/keygate/internal/common/uuid"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Keygate-Request-ID"

// RequestLogger tags each request with an id, puts a request-scoped logger in
// the context and logs the request and its duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := newRequestId()
		ctx := logtrace.WithRequestId(r.Context(), requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		w.Header().Set(RequestIDHeader, requestID)

		log.Ctx(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_ip", r.RemoteAddr).
			Str("proto", r.Proto).
			Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestId() string {
	u, err := uuid.NewV7()
	if err == nil {
		return u.String()
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}
