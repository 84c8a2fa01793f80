// internal/auth/session.go
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/cart-engine/internal/storage"
)

// Authenticator is the only view of authentication the cart engine has.
type Authenticator interface {
	IsAuthenticated() bool
	OnAuthChange(fn func(authenticated bool)) (unsubscribe func())
}

// TokenSource supplies the bearer token for remote calls.
type TokenSource interface {
	Token() string
}

var ErrEmptyToken = errors.New("token is empty")

// Session keeps the shopper's access token in the local slot and notifies
// subscribers when the authenticated state flips.
type Session struct {
	mu      sync.RWMutex
	storage storage.Storage
	key     string
	token   string
	now     func() time.Time

	subsMu sync.Mutex
	subs   map[int]func(bool)
	nextID int
}

// NewSession restores a previously persisted token, if any.
func NewSession(ctx context.Context, s storage.Storage, key string) (*Session, error) {
	session := &Session{
		storage: s,
		key:     key,
		now:     time.Now,
		subs:    make(map[int]func(bool)),
	}

	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		session.token = strings.TrimSpace(string(raw))
	}
	return session, nil
}

// WithClock replaces the time source, for tests.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated reports whether a token is held and, when it is a JWT
// carrying exp, that it has not expired. Opaque tokens count as valid.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	return s.valid(token)
}

func (s *Session) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	before := s.valid(s.token)
	if err := s.storage.Set(ctx, s.key, []byte(token)); err != nil {
		s.mu.Unlock()
		return err
	}
	s.token = token
	after := s.valid(token)
	s.mu.Unlock()

	logrus.WithField("authenticated", after).Info("Session token stored")
	if !before && after {
		s.notify(true)
	}
	return nil
}

func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	before := s.valid(s.token)
	if err := s.storage.Remove(ctx, s.key); err != nil {
		s.mu.Unlock()
		return err
	}
	s.token = ""
	s.mu.Unlock()

	logrus.Info("Session token removed")
	if before {
		s.notify(false)
	}
	return nil
}

func (s *Session) OnAuthChange(fn func(authenticated bool)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) notify(authenticated bool) {
	s.subsMu.Lock()
	subs := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn(authenticated)
	}
}

func (s *Session) valid(token string) bool {
	if token == "" {
		return false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return s.now().Before(claims.ExpiresAt.Time)
}
