package slogx

import (
	"context"
	"log/slog"
)

// scope is what slogx keeps in a context: the logger to use and the id of the
// request being served or sent, once one is known.
type scope struct {
	logger *slog.Logger
	reqID  string
}

type scopeKey struct{}

func scopeOf(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// WithContext returns a copy of ctx carrying logger. A request id already
// recorded in ctx is kept.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	s := scopeOf(ctx)
	s.logger = logger
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the logger carried by ctx, falling back to
// slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l := scopeOf(ctx).logger; l != nil {
		return l
	}
	return slog.Default()
}

// WithRequestID records reqID in ctx and tags the context logger with it.
// Transport sends a recorded id instead of minting a new one.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	s := scopeOf(ctx)
	if reqID == "" || s.reqID == reqID {
		return ctx
	}
	s.logger = FromContext(ctx).With("req_id", reqID)
	s.reqID = reqID
	return context.WithValue(ctx, scopeKey{}, s)
}

// RequestID returns the id recorded by WithRequestID.
func RequestID(ctx context.Context) (string, bool) {
	id := scopeOf(ctx).reqID
	return id, id != ""
}
