package gateway

import (
	"fmt"
	"net/http"

	"github.com/keygate/keygate/internal/common/apperrors"
)

var (
	ErrGateway         apperrors.Error = apperrors.New("completion gateway error").SetStatusCode(http.StatusInternalServerError)
	ErrNoCredential    apperrors.Error = ErrGateway.New("no API key configured")
	ErrEmptyCompletion apperrors.Error = ErrGateway.New("no completion returned by provider").SetStatusCode(http.StatusBadGateway)
)

// UpstreamError is a non-200 answer from a provider. Excerpt holds at most the
// configured number of bytes of the response body.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Excerpt    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error (code %d): %s", e.Provider, e.StatusCode, e.Excerpt)
}

// TransportError is a failure to obtain a usable answer: connection errors,
// timeouts and undecodable bodies.
type TransportError struct {
	Provider string
	Cause    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("connection error with %s: %v", e.Provider, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
