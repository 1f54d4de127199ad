package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/idx"
)

// RequestIDHeader carries the per-attempt id between the console client and
// the API so both sides log the same req_id.
const RequestIDHeader = "X-Request-ID"

// HTTPMiddleware logs inbound requests and attaches a contextual logger into
// the request context.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = idx.New().String()
			}

			ctx := WithContext(r.Context(), base.With(
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			))
			ctx = WithRequestID(ctx, reqID)
			logger := FromContext(ctx)

			r = r.WithContext(ctx)
			next.ServeHTTP(rw, r)

			logger.Info("http_request",
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter

	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
