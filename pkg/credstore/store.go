// Package credstore persists the console session between runs: the access
// token, the refresh token and the serialized identity, stored as three
// string keys in a pluggable Backend.
package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
)

// Keys of the persisted record.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserInfo     = "user_info"
)

// Record is the persisted form of a session.
type Record struct {
	Credential authsdk.Credential
	Identity   *authsdk.Identity
}

// IsEmpty reports whether the record holds no usable session.
func (r Record) IsEmpty() bool { return r.Credential.IsZero() }

// Backend is a durable key/value medium. Put replaces the whole record in one
// atomic unit (keys missing from values are removed) and Get returns a
// consistent snapshot, so a reader never sees half of a write.
type Backend interface {
	Get(ctx context.Context) (map[string]string, error)
	Put(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context) error
	Close() error
}

// Store adds the record encoding and the degrade-to-empty policy on top of a
// Backend. The mutex orders Save and Clear against Load within the process;
// the backend provides the same guarantee on disk.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	logger  *slog.Logger
}

// New wraps backend. A nil logger falls back to slog.Default().
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

// Load returns the persisted record. It never fails: unreadable or corrupt
// storage is logged and reported as an empty record, because running
// unauthenticated is always safe.
func (s *Store) Load(ctx context.Context) Record {
	s.mu.RLock()
	values, err := s.backend.Get(ctx)
	s.mu.RUnlock()

	if err != nil {
		s.logger.Warn("credential store unreadable, starting without a session", "error", err)
		return Record{}
	}

	rec := Record{
		Credential: authsdk.NewCredential(values[KeyAccessToken], values[KeyRefreshToken]),
	}
	if rec.IsEmpty() {
		return Record{}
	}

	if raw := values[KeyUserInfo]; raw != "" {
		var identity authsdk.Identity
		if err := json.Unmarshal([]byte(raw), &identity); err != nil {
			s.logger.Warn("stored identity is corrupt, ignoring stored session", "error", err)
			return Record{}
		}
		rec.Identity = &identity
	}

	return rec
}

// Save replaces the persisted record.
func (s *Store) Save(ctx context.Context, rec Record) error {
	values := map[string]string{
		KeyAccessToken: rec.Credential.AccessToken,
	}
	if rec.Credential.RefreshToken != "" {
		values[KeyRefreshToken] = rec.Credential.RefreshToken
	}
	if rec.Identity != nil {
		raw, err := json.Marshal(rec.Identity)
		if err != nil {
			return fmt.Errorf("%w: failed to encode identity: %w", authsdk.ErrStorageUnavailable, err)
		}
		values[KeyUserInfo] = string(raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Put(ctx, values); err != nil {
		return fmt.Errorf("%w: failed to save credentials: %w", authsdk.ErrStorageUnavailable, err)
	}
	return nil
}

// Clear removes the persisted record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx); err != nil {
		return fmt.Errorf("%w: failed to clear credentials: %w", authsdk.ErrStorageUnavailable, err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }
