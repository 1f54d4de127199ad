package authclient

import (
	"context"
	"log/slog"
)

// Notifier is told when a session ends without the user asking: the refresh
// was rejected or timed out. It fires once per session no matter how many
// requests failed with it.
type Notifier interface {
	SessionExpired(ctx context.Context, cause error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, cause error)

func (f NotifierFunc) SessionExpired(ctx context.Context, cause error) { f(ctx, cause) }

// LogNotifier reports expiry at warn level.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SessionExpired(_ context.Context, cause error) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("session_expired", "error", cause)
}
