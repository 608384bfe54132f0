package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/keygate/keygate/internal/common/httpx"
	"github.com/rs/zerolog/log"
)

// timeoutWriter buffers the handler's response. Once the deadline has been
// answered, further writes fail with http.ErrHandlerTimeout and never reach
// the underlying writer.
type timeoutWriter struct {
	mu       sync.Mutex
	header   http.Header
	buf      bytes.Buffer
	status   int
	written  bool
	timedOut bool
}

func newTimeoutWriter() *timeoutWriter {
	return &timeoutWriter{header: make(http.Header)}
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.header
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.written {
		return
	}
	tw.status = code
	tw.written = true
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.written {
		tw.status = http.StatusOK
		tw.written = true
	}
	return tw.buf.Write(b)
}

// flushTo copies the buffered response to w. The handler must have returned.
func (tw *timeoutWriter) flushTo(w http.ResponseWriter) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	dst := w.Header()
	for k, v := range tw.header {
		dst[k] = v
	}
	status := tw.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write(tw.buf.Bytes())
}

// expire marks the writer timed out. After it returns the handler can no
// longer produce output.
func (tw *timeoutWriter) expire() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.timedOut = true
}

// SetTimeout bounds request handling. The request context is cancelled after
// timeout; if the handler has not returned by then the client gets a 408 and
// anything the handler writes later is discarded.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			w.Header().Set("X-Keygate-Timeout", timeout.String())
			r = r.WithContext(ctx)

			tw := newTimeoutWriter()
			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
					close(done)
				}()
				next.ServeHTTP(tw, r)
			}()

			select {
			case <-done:
				select {
				case p := <-panicked:
					log.Ctx(ctx).Error().Msgf("panic in handler: %v", p)
					httpx.ErrApplicationError().Send(w)
				default:
					tw.flushTo(w)
				}
			case <-ctx.Done():
				tw.expire()
				if ctx.Err() == context.DeadlineExceeded {
					log.Ctx(ctx).Error().Msg("request timed out")
					httpx.ErrRequestTimeout().Send(w)
				}
			}
		})
	}
}

// LimitBody caps request bodies at limit bytes. Zero or less disables the cap.
func LimitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
