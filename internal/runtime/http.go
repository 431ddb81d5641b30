package runtime

import (
	"net/http"

	loggingpkg "github.com/drblury/faultline/internal/runtime/logging"
	"github.com/drblury/faultline/internal/runtime/severity"
)

// HTTPOptions tunes HTTPMiddleware.
type HTTPOptions struct {
	// Repanic re-raises a captured panic after it was recorded so outer
	// recovery middleware still sees it.
	Repanic bool
	// CaptureStatus captures a message event for every response whose
	// status is at or above this value. Zero disables it.
	CaptureStatus int
}

// HTTPMiddleware wraps next so that captures made while serving a request
// carry that request, and panics are reported as unhandled errors. The
// returned function fits any router accepting func(http.Handler) http.Handler.
func (c *Client) HTTPMiddleware(opts HTTPOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ContextWithRequest(r.Context(), r)
			r = r.WithContext(ctx)
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if _, err := c.CapturePanic(ctx, recovered); err != nil {
					c.Logger.Error("Failed to capture panic", err, loggingpkg.LogFields{"url": r.URL.String()})
				}
				if opts.Repanic {
					panic(recovered)
				}
				if !rw.wrote {
					rw.WriteHeader(http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(rw, r)

			if opts.CaptureStatus > 0 && rw.status >= opts.CaptureStatus {
				if _, err := c.CaptureMessageWithLevel(ctx, severity.FromHTTPStatus(rw.status), "HTTP %d %s %s", rw.status, r.Method, r.URL.Path); err != nil {
					c.Logger.Error("Failed to capture response status", err, loggingpkg.LogFields{"status": rw.status})
				}
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
