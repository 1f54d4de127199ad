package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/cryptox"
)

// User status values.
const (
	StatusDisabled = 0
	StatusActive   = 1
)

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserDisabled       = errors.New("account disabled")
	ErrUserExists         = errors.New("username already taken")
)

type User struct {
	ID           int64
	Username     string
	Email        string
	Role         authsdk.Role
	Status       int
	PasswordHash string
}

// Identity is the wire form of the user.
func (u User) Identity() authsdk.Identity {
	return authsdk.Identity{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
	}
}

// UserService is an in-memory user directory with bcrypt passwords.
type UserService struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*User
	byName map[string]*User
}

func NewUserService() *UserService {
	return &UserService{
		byID:   map[int64]*User{},
		byName: map[string]*User{},
	}
}

// Add creates an active user.
func (s *UserService) Add(username, email, password string, role authsdk.Role) (User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[username]; ok {
		return User{}, ErrUserExists
	}

	s.nextID++
	u := &User{
		ID:           s.nextID,
		Username:     username,
		Email:        email,
		Role:         role,
		Status:       StatusActive,
		PasswordHash: hash,
	}
	s.byID[u.ID] = u
	s.byName[u.Username] = u
	return *u, nil
}

// SetStatus enables or disables a user.
func (s *UserService) SetStatus(id int64, status int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	return nil
}

// Authenticate checks username and password. Unknown users and wrong
// passwords give the same error.
func (s *UserService) Authenticate(_ context.Context, username, password string) (User, error) {
	s.mu.RLock()
	u, ok := s.byName[username]
	var user User
	if ok {
		user = *u
	}
	s.mu.RUnlock()

	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if user.Status != StatusActive {
		return User{}, ErrUserDisabled
	}
	return user, nil
}

func (s *UserService) GetByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

// List returns every user ordered by id.
func (s *UserService) List(_ context.Context) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *u)
	}
	slices.SortFunc(out, func(a, b User) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
