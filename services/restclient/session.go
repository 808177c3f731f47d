package restclient

import (
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

var nowFunc = time.Now

// Session holds the bearer token of the logged in operator.
type Session struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time // zero when the token carries no expiry
	hooks     []func()
}

func NewSession() *Session {
	return &Session{}
}

// Set stores token. Its expiry is read from the `exp` claim; the signature is checked by the API, not here.
func (s *Session) Set(token string) error {
	claims := new(jwt.StandardClaims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return errors.Wrap(err, "parsing session token")
	}

	var expiresAt time.Time
	if claims.ExpiresAt > 0 {
		expiresAt = time.Unix(claims.ExpiresAt, 0)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
	return nil
}

// Token returns the current token, or "" when there is none or it has expired.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiredLocked() {
		return ""
	}
	return s.token
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Expired reports whether the session holds no usable token.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiredLocked()
}

func (s *Session) expiredLocked() bool {
	if s.token == "" {
		return true
	}
	return !s.expiresAt.IsZero() && !nowFunc().Before(s.expiresAt)
}

// OnInvalidate registers fn to run every time the session is invalidated, e.g. to send the operator back to login.
func (s *Session) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Invalidate clears the token and runs the OnInvalidate hooks.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
