package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/cryptox"
	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
	"github.com/aussiebroadwan/opsconsole/pkg/jwtx"
	"github.com/aussiebroadwan/opsconsole/pkg/slogx"
)

var (
	ErrInvalidRefresh = errors.New("invalid refresh token")
	ErrRevoked        = errors.New("token revoked")
)

// TokenPair is a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type refreshEntry struct {
	userID    int64
	expiresAt time.Time
	revoked   bool
}

// TokenService issues HS256 token pairs and rotates refresh tokens. Every
// refresh token is single use: presenting one that was already rotated is
// treated as theft and revokes every refresh token of that user.
type TokenService struct {
	Users      *UserService
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Metrics    *Metrics

	signer          jwtx.Signer
	accessVerifier  jwtx.Verifier
	refreshVerifier jwtx.Verifier
	now             func() time.Time

	mu            sync.Mutex
	refresh       map[string]*refreshEntry // fingerprint -> entry
	issuedAccess  map[string]time.Time     // jti -> expiry
	revokedAccess map[string]time.Time     // jti -> expiry
}

func NewTokenService(secret []byte, issuer string, accessTTL, refreshTTL time.Duration, users *UserService) (*TokenService, error) {
	signer, err := jwtx.NewSignerHS256(secret)
	if err != nil {
		return nil, err
	}
	if accessTTL <= 0 {
		accessTTL = jwtx.DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = jwtx.DefaultRefreshTokenTTL
	}

	return &TokenService{
		Users:      users,
		Issuer:     issuer,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		signer:     signer,
		accessVerifier: jwtx.NewVerifierHS256(secret, jwtx.VerifyOptions{
			Issuer: issuer,
			Type:   jwtx.TypeAccess,
			Leeway: 5 * time.Second,
		}),
		refreshVerifier: jwtx.NewVerifierHS256(secret, jwtx.VerifyOptions{
			Issuer: issuer,
			Type:   jwtx.TypeRefresh,
		}),
		now:           time.Now,
		refresh:       map[string]*refreshEntry{},
		issuedAccess:  map[string]time.Time{},
		revokedAccess: map[string]time.Time{},
	}, nil
}

// Issue mints a new pair for u.
func (s *TokenService) Issue(_ context.Context, u User) (TokenPair, error) {
	now := s.now()

	access := jwtx.NewClaims(jwtx.TypeAccess, u.ID, u.Username, string(u.Role), s.AccessTTL, s.Issuer, now)
	accessToken, err := s.signer.Sign(access)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := jwtx.NewClaims(jwtx.TypeRefresh, u.ID, u.Username, string(u.Role), s.RefreshTTL, s.Issuer, now)
	refreshToken, err := s.signer.Sign(refresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	s.mu.Lock()
	s.issuedAccess[access.ID] = access.ExpiresAt.Time
	s.refresh[cryptox.FingerprintToken(refreshToken)] = &refreshEntry{
		userID:    u.ID,
		expiresAt: refresh.ExpiresAt.Time,
	}
	s.mu.Unlock()

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
func (s *TokenService) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.refreshVerifier.Verify(raw)
	if err != nil {
		s.Metrics.recordRefresh("invalid")
		return TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidRefresh, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		s.Metrics.recordRefresh("invalid")
		return TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidRefresh, err)
	}

	fp := cryptox.FingerprintToken(raw)

	s.mu.Lock()
	entry, ok := s.refresh[fp]
	switch {
	case !ok:
		s.mu.Unlock()
		s.Metrics.recordRefresh("unknown")
		return TokenPair{}, ErrInvalidRefresh
	case entry.revoked:
		revoked := s.revokeUserLocked(userID)
		s.mu.Unlock()
		s.Metrics.recordRefresh("reused")
		l.Warn("refresh token reuse detected, revoking user tokens", "user_id", userID, "revoked", revoked)
		return TokenPair{}, ErrRevoked
	}
	entry.revoked = true
	s.mu.Unlock()

	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		s.Metrics.recordRefresh("unknown")
		return TokenPair{}, ErrInvalidRefresh
	}
	if u.Status != StatusActive {
		s.Metrics.recordRefresh("disabled")
		return TokenPair{}, ErrUserDisabled
	}

	pair, err := s.Issue(ctx, u)
	if err != nil {
		return TokenPair{}, err
	}
	s.Metrics.recordRefresh("ok")
	return pair, nil
}

// VerifyAccess implements httpx.TokenVerifier.
func (s *TokenService) VerifyAccess(raw string) (httpx.Principal, error) {
	claims, err := s.accessVerifier.Verify(raw)
	if err != nil {
		return httpx.Principal{}, err
	}

	s.mu.Lock()
	_, revoked := s.revokedAccess[claims.ID]
	s.mu.Unlock()
	if revoked {
		return httpx.Principal{}, ErrRevoked
	}

	userID, err := claims.UserID()
	if err != nil {
		return httpx.Principal{}, err
	}

	return httpx.Principal{
		UserID:   userID,
		Username: claims.Username,
		Role:     claims.Role,
		TokenID:  claims.ID,
	}, nil
}

// Revoke ends the session of p: its access token and every refresh token of
// the user stop working.
func (s *TokenService) Revoke(_ context.Context, p httpx.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.issuedAccess[p.TokenID]; ok {
		s.revokedAccess[p.TokenID] = exp
		delete(s.issuedAccess, p.TokenID)
	}
	s.revokeUserLocked(p.UserID)
}

// ExpireAccessTokens revokes every outstanding access token while leaving
// refresh tokens valid, forcing all clients through a refresh.
func (s *TokenService) ExpireAccessTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.issuedAccess)
	for jti, exp := range s.issuedAccess {
		s.revokedAccess[jti] = exp
	}
	clear(s.issuedAccess)
	return n
}

// Cleanup drops bookkeeping for tokens that have expired anyway.
func (s *TokenService) Cleanup(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for fp, e := range s.refresh {
		if now.After(e.expiresAt) {
			delete(s.refresh, fp)
			removed++
		}
	}
	for _, m := range []map[string]time.Time{s.issuedAccess, s.revokedAccess} {
		for jti, exp := range m {
			if now.After(exp) {
				delete(m, jti)
				removed++
			}
		}
	}
	return removed, nil
}

func (s *TokenService) revokeUserLocked(userID int64) int {
	n := 0
	for _, e := range s.refresh {
		if e.userID == userID && !e.revoked {
			e.revoked = true
			n++
		}
	}
	return n
}

// IdentityOf loads the identity behind p.
func (s *TokenService) IdentityOf(ctx context.Context, p httpx.Principal) (authsdk.Identity, error) {
	u, err := s.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return authsdk.Identity{}, err
	}
	return u.Identity(), nil
}

var _ httpx.TokenVerifier = (*TokenService)(nil)
