package session

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"shopfront/pkg/domain"
	"shopfront/pkg/localdata"
)

func TestSignInThenCurrent(t *testing.T) {
	s := New(localdata.NewMemoryBackend())

	if _, ok := s.Current(); ok {
		t.Fatalf("fresh store should be unauthenticated")
	}
	user := domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleStandard}
	if err := s.SignIn(user, "opaque-token"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	sess, ok := s.Current()
	if !ok {
		t.Fatalf("expected authenticated session")
	}
	if sess.User.ID != "u1" || sess.Token != "opaque-token" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if s.IsAdmin() {
		t.Fatalf("standard role must not be admin")
	}
}

func TestIsAdminRequiresRoleOne(t *testing.T) {
	s := New(localdata.NewMemoryBackend())
	if err := s.SignIn(domain.User{ID: "a1", Role: domain.RoleAdmin}, "tok"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !s.IsAdmin() {
		t.Fatalf("role 1 session should be admin")
	}
}

func TestSignOutClearsBeforeContinuation(t *testing.T) {
	s := New(localdata.NewMemoryBackend())
	if err := s.SignIn(domain.User{ID: "u1"}, "tok"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	sawSessionDuringContinuation := true
	err := s.SignOut(func() {
		_, sawSessionDuringContinuation = s.Current()
	})
	if err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if sawSessionDuringContinuation {
		t.Fatalf("continuation ran before the session was cleared")
	}
	if _, ok := s.Current(); ok {
		t.Fatalf("session survived sign out")
	}
}

func TestSignOutNilContinuation(t *testing.T) {
	s := New(localdata.NewMemoryBackend())
	if err := s.SignOut(nil); err != nil {
		t.Fatalf("sign out with nil continuation: %v", err)
	}
}

func TestCurrentNeverFailsOnCorruptRecord(t *testing.T) {
	backend := localdata.NewMemoryBackend()
	if err := backend.Store("session", []byte("not json")); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}
	s := New(backend)
	if _, ok := s.Current(); ok {
		t.Fatalf("corrupt record should read as unauthenticated")
	}
}

func TestExpiredJWTReadsAsUnauthenticated(t *testing.T) {
	s := New(localdata.NewMemoryBackend())

	expired := signTestToken(t, time.Now().Add(-time.Minute))
	if err := s.SignIn(domain.User{ID: "u1"}, expired); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, ok := s.Current(); ok {
		t.Fatalf("expired token should read as unauthenticated")
	}

	live := signTestToken(t, time.Now().Add(time.Hour))
	if err := s.SignIn(domain.User{ID: "u1"}, live); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, ok := s.Current(); !ok {
		t.Fatalf("live token should read as authenticated")
	}
}

func signTestToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
