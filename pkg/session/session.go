// Package session holds the authenticated principal and its bearer token in
// device-local persisted storage. At most one session exists per device;
// absence of the record means unauthenticated.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"shopfront/pkg/domain"
	"shopfront/pkg/localdata"
)

const recordName = "session"

// Session is the persisted principal. Both fields are written atomically:
// a record with only one of them is never observable.
type Session struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

// Store reads and writes the device's session record.
type Store struct {
	mu      sync.Mutex
	backend localdata.Backend
}

// New builds a session store over the given backend.
func New(backend localdata.Backend) *Store {
	return &Store{backend: backend}
}

// SignIn persists the user/token pair. The backend's atomic replace keeps the
// pair indivisible.
func (s *Store) SignIn(user domain.User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(Session{User: user, Token: token})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.backend.Store(recordName, data); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// SignOut clears the session record and then runs the continuation. The
// continuation (typically a redirect) always runs, even when the clear
// failed; the error is still returned so the caller can log it.
func (s *Store) SignOut(after func()) error {
	s.mu.Lock()
	err := s.backend.Delete(recordName)
	s.mu.Unlock()
	if after != nil {
		after()
	}
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current returns the active session. It never fails outward: a missing,
// unreadable, or expired record all read as unauthenticated.
func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok, err := s.backend.Load(recordName)
	if err != nil {
		slog.Warn("session record unreadable", "err", err)
		return Session{}, false
	}
	if !ok {
		return Session{}, false
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		slog.Warn("session record corrupt", "err", err)
		return Session{}, false
	}
	if sess.Token == "" {
		return Session{}, false
	}
	if tokenExpired(sess.Token, time.Now()) {
		return Session{}, false
	}
	return sess, true
}

// IsAdmin reports whether the current session belongs to an admin.
func (s *Store) IsAdmin() bool {
	sess, ok := s.Current()
	return ok && sess.User.Role == domain.RoleAdmin
}

// tokenExpired honors a server-side TTL locally. The token is opaque to this
// client, but when it happens to be a JWT with an exp claim there is no point
// treating it as live past that instant. Signature verification stays on the
// server; only the unverified exp claim is read here.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false // not a JWT; nothing to check locally
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
