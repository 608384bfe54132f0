package logtrace

import (
	"context"
)

type requestIdKeyType struct{}

var requestIdKey requestIdKeyType

// WithRequestId returns a context carrying the request id.
func WithRequestId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIdKey, id)
}

// RequestIdFromContext returns the request id, or "" if there is none.
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, _ := ctx.Value(requestIdKey).(string)
	return r
}

// IsTraceEnabled reports whether route tracing is on. Set from config at startup.
func IsTraceEnabled() bool {
	return traceEnabled
}

var traceEnabled bool

func SetTraceEnabled(enabled bool) {
	traceEnabled = enabled
}
