package authclient

import (
	"sync"

	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
)

// Session is the in-memory pairing of credential and identity shared by the
// Client, the Coordinator and the Controller. Only the Controller and the
// Coordinator's refresh handlers mutate it; everyone else reads a Snapshot.
//
// The generation increases on every credential change (login, rotation,
// logout). Comparing generations tells a refresh whether it was superseded
// and tells a 401 whether its token was already rotated away.
//
// The epoch increases when the session is replaced or ended but survives
// rotation. A request may only be replayed within the epoch it was sent in,
// so one user's request never goes out with another user's token.
type Session struct {
	mu         sync.RWMutex
	credential authsdk.Credential
	identity   *authsdk.Identity
	generation uint64
	epoch      uint64
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Credential authsdk.Credential
	Identity   *authsdk.Identity
	Generation uint64
	Epoch      uint64
}

// IsAuthenticated reports whether the snapshot holds an access token.
func (s Snapshot) IsAuthenticated() bool { return s.Credential.AccessToken != "" }

func NewSession() *Session { return &Session{} }

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// snapshot must be called with mu held.
func (s *Session) snapshot() Snapshot {
	return Snapshot{
		Credential: s.credential,
		Identity:   copyIdentity(s.identity),
		Generation: s.generation,
		Epoch:      s.epoch,
	}
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential.AccessToken != ""
}

func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Session) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Set replaces credential and identity wholesale and returns the new
// generation.
func (s *Session) Set(cred authsdk.Credential, identity *authsdk.Identity) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = cred
	s.identity = copyIdentity(identity)
	s.generation++
	s.epoch++
	return s.generation
}

// Rotate swaps in a refreshed credential if the session is still at
// generation gen. The identity is kept.
func (s *Session) Rotate(gen uint64, cred authsdk.Credential) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.credential.AccessToken == "" {
		return Snapshot{}, false
	}
	s.credential = cred
	s.generation++
	return s.snapshot(), true
}

// ReplaceIdentity swaps the identity of an authenticated session at
// generation gen. The credential and generation are untouched.
func (s *Session) ReplaceIdentity(gen uint64, identity *authsdk.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.credential.AccessToken == "" {
		return false
	}
	s.identity = copyIdentity(identity)
	return true
}

// Clear empties the session and returns what it held. Clearing an empty
// session still bumps the generation.
func (s *Session) Clear() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snapshot()
	s.credential = authsdk.Credential{}
	s.identity = nil
	s.generation++
	s.epoch++
	return prev
}

// ClearIf empties the session only if it is still at generation gen.
func (s *Session) ClearIf(gen uint64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return Snapshot{}, false
	}
	prev := s.snapshot()
	s.credential = authsdk.Credential{}
	s.identity = nil
	s.generation++
	s.epoch++
	return prev, true
}

func copyIdentity(identity *authsdk.Identity) *authsdk.Identity {
	if identity == nil {
		return nil
	}
	cp := *identity
	return &cp
}
