package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/idx"
)

// Transport is the client-side twin of HTTPMiddleware. It stamps every
// outbound request with a request id and logs the attempt once the response
// headers arrive. A header set by the caller wins, then an id recorded with
// WithRequestID, and otherwise a fresh one is minted. Header values are never
// logged so bearer tokens stay out of the logs.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqID := req.Header.Get(RequestIDHeader)
	if reqID == "" {
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		if id, ok := RequestID(req.Context()); ok {
			reqID = id
		} else {
			reqID = idx.New().String()
		}
		req.Header.Set(RequestIDHeader, reqID)
	}

	logger := t.Logger.With(
		"req_id", reqID,
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_client_request_failed", "duration_ms", duration, "error", err)
		return nil, err
	}

	logger.Debug("http_client_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
