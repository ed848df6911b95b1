package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/logger"
)

// Timeout cancels the request context after timeout. If the handler has
// not written anything by then the client gets 504 and the handler's later
// writes fail with http.ErrHandlerTimeout. A response already in progress
// is allowed to finish. A non-positive timeout disables the wrapper.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			gw := &guardedWriter{w: w, header: make(http.Header)}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
			}
			if !gw.expire() {
				<-done
				return
			}
			logger.FromContext(r.Context()).Warn("request timed out",
				"method", r.Method,
				"path", r.URL.Path,
				"timeout", timeout,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusGatewayTimeout)
			w.Write([]byte(`{"error":"request timeout"}` + "\n"))
		})
	}
}

// guardedWriter buffers headers privately so the timeout path never shares
// a header map with a still-running handler.
type guardedWriter struct {
	w      http.ResponseWriter
	header http.Header

	mu       sync.Mutex
	started  bool
	timedOut bool
}

func (gw *guardedWriter) Header() http.Header {
	return gw.header
}

// expire reports whether the response is still untouched and, if so,
// claims it for the timeout reply.
func (gw *guardedWriter) expire() bool {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.started {
		return false
	}
	gw.timedOut = true
	return true
}

func (gw *guardedWriter) WriteHeader(code int) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.timedOut || gw.started {
		return
	}
	gw.start(code)
}

func (gw *guardedWriter) Write(b []byte) (int, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !gw.started {
		gw.start(http.StatusOK)
	}
	return gw.w.Write(b)
}

func (gw *guardedWriter) start(code int) {
	dst := gw.w.Header()
	for k, v := range gw.header {
		dst[k] = v
	}
	gw.started = true
	gw.w.WriteHeader(code)
}
