package authmgr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/starfall-project/authcore/internal/logging"
	"github.com/starfall-project/authcore/internal/server/fop"
	"github.com/starfall-project/authcore/internal/server/ratelimit"
	"github.com/starfall-project/authcore/internal/server/store"
	"github.com/starfall-project/authcore/internal/server/token"
	"github.com/starfall-project/authcore/internal/userref"
)

func newTestManager(t *testing.T, limitMax int) *Manager {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	m := New(
		store.NewMemoryStore(100),
		token.NewService([]byte("test-secret")),
		ratelimit.New(limitMax, 15*time.Minute),
		logger,
		time.Hour,
	)
	m.bcryptCost = bcrypt.MinCost
	return m
}

func mustRegister(t *testing.T, m *Manager, username, email, password string) store.UserRecord {
	t.Helper()
	rec, err := m.Register(context.Background(), username, email, password)
	if err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
	return rec
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 5)
	ctx := context.Background()

	if _, err := m.Register(ctx, "9lives", "ok@example.org", "pw"); !errors.Is(err, fop.ErrUserNameNotValid) {
		t.Fatalf("leading digit: want ErrUserNameNotValid, got %v", err)
	}
	if _, err := m.Register(ctx, "has space", "ok@example.org", "pw"); !errors.Is(err, fop.ErrUserNameNotValid) {
		t.Fatalf("space: want ErrUserNameNotValid, got %v", err)
	}
	if _, err := m.Register(ctx, "alice", "no-at-sign", "pw"); !errors.Is(err, fop.ErrEmailNotValid) {
		t.Fatalf("no @: want ErrEmailNotValid, got %v", err)
	}
	if _, err := m.Register(ctx, "alice", "a@@b", "pw"); !errors.Is(err, fop.ErrEmailNotValid) {
		t.Fatalf("double @: want ErrEmailNotValid, got %v", err)
	}
	if _, err := m.Register(ctx, "alice", "a@", "pw"); !errors.Is(err, fop.ErrEmailNotValid) {
		t.Fatalf("empty domain: want ErrEmailNotValid, got %v", err)
	}

	rec, err := m.Register(ctx, "a.b_c+d(e)", "alice@example.org", "pw")
	if err != nil {
		t.Fatalf("punctuation set rejected: %v", err)
	}
	if !rec.IsActive {
		t.Fatal("new accounts must start active")
	}
}

func TestLoginRoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 5)
	ctx := context.Background()
	reg := mustRegister(t, m, "alice", "alice@example.org", "secret")

	tok, rec, err := m.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if rec.UID != reg.UID {
		t.Fatalf("login resolved uid %d, want %d", rec.UID, reg.UID)
	}

	got, err := m.Authenticate(ctx, tok.Value)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "alice" {
		t.Fatalf("authenticated as %q", got.Username)
	}
}

func TestLoginResolvesUIDUsernameEmail(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)
	ctx := context.Background()
	reg := mustRegister(t, m, "bob", "bob@example.org", "pw")

	for _, ident := range []string{"bob", "bob@example.org", "1"} {
		if _, rec, err := m.Login(ctx, ident, "pw"); err != nil || rec.UID != reg.UID {
			t.Fatalf("Login(%q) = uid %d, err %v", ident, rec.UID, err)
		}
	}
}

func TestLoginUnknownAndWrongPasswordLookAlike(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 5)
	ctx := context.Background()
	mustRegister(t, m, "carol", "carol@example.org", "right")

	_, _, unknownErr := m.Login(ctx, "nobody", "x")
	_, _, wrongErr := m.Login(ctx, "carol", "wrong")

	if fop.Classify(unknownErr) != fop.Classify(wrongErr) {
		t.Fatalf("existence leak: %v vs %v classify differently", unknownErr, wrongErr)
	}
}

func TestLoginRateLimiting(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 2)
	ctx := context.Background()
	mustRegister(t, m, "dave", "dave@example.org", "right")

	for i := 0; i < 2; i++ {
		if _, _, err := m.Login(ctx, "dave", "wrong"); !errors.Is(err, fop.ErrPasswordMismatch) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	// Budget exhausted: even the correct password is refused.
	if _, _, err := m.Login(ctx, "dave", "right"); !errors.Is(err, fop.ErrTooManyRequests) {
		t.Fatalf("want ErrTooManyRequests, got %v", err)
	}
	// Case variation shares the same budget.
	if _, _, err := m.Login(ctx, "DAVE", "right"); !errors.Is(err, fop.ErrTooManyRequests) {
		t.Fatalf("folded identity escaped the limiter: %v", err)
	}
}

func TestLoginSuccessResetsLimiter(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 3)
	ctx := context.Background()
	mustRegister(t, m, "erin", "erin@example.org", "pw")

	for i := 0; i < 2; i++ {
		m.Login(ctx, "erin", "wrong")
	}
	if _, _, err := m.Login(ctx, "erin", "pw"); err != nil {
		t.Fatal(err)
	}
	// Counter restarted: two more failures stay under the budget.
	for i := 0; i < 2; i++ {
		if _, _, err := m.Login(ctx, "erin", "wrong"); !errors.Is(err, fop.ErrPasswordMismatch) {
			t.Fatalf("post-reset attempt %d: %v", i, err)
		}
	}
}

func TestAuthenticateRejectsTokenOfMissingUser(t *testing.T) {
	t.Parallel()

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	tokens := token.NewService([]byte("test-secret"))
	m := New(store.NewMemoryStore(100), tokens, ratelimit.New(5, time.Minute), logger, time.Hour)
	m.bcryptCost = bcrypt.MinCost

	// A well-signed token for a uid that was never created.
	tok, err := tokens.Issue(userref.NewLocal(999), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Authenticate(context.Background(), tok.Value); !errors.Is(err, fop.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 5)
	ctx := context.Background()
	mustRegister(t, m, "frank", "frank@example.org", "pw")

	tok, _, err := m.Login(ctx, "frank", "pw")
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := m.Refresh(ctx, tok.Value)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Authenticate(ctx, tok.Value); !errors.Is(err, fop.ErrTokenInvalid) {
		t.Fatal("old token survived refresh")
	}
	if _, err := m.Authenticate(ctx, fresh.Value); err != nil {
		t.Fatal(err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 5)
	ctx := context.Background()
	mustRegister(t, m, "grace", "grace@example.org", "pw")

	tok, _, err := m.Login(ctx, "grace", "pw")
	if err != nil {
		t.Fatal(err)
	}
	m.Logout(ctx, tok.Value)
	m.Logout(ctx, tok.Value)
	m.Logout(ctx, "garbage")

	if _, err := m.Authenticate(ctx, tok.Value); !errors.Is(err, fop.ErrTokenInvalid) {
		t.Fatal("token survived logout")
	}
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)
	ctx := context.Background()
	mustRegister(t, m, "heidi", "heidi@example.org", "old-pw")

	tok, _, err := m.Login(ctx, "heidi", "old-pw")
	if err != nil {
		t.Fatal(err)
	}

	if err := m.ChangePassword(ctx, tok.Value, "wrong", "new-pw"); !errors.Is(err, fop.ErrPasswordMismatch) {
		t.Fatalf("wrong old password: want ErrPasswordMismatch, got %v", err)
	}
	if err := m.ChangePassword(ctx, tok.Value, "old-pw", "new-pw"); err != nil {
		t.Fatal(err)
	}

	// Session survives the change; the old password does not.
	if _, err := m.Authenticate(ctx, tok.Value); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.Login(ctx, "heidi", "old-pw"); !errors.Is(err, fop.ErrPasswordMismatch) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, _, err := m.Login(ctx, "heidi", "new-pw"); err != nil {
		t.Fatal(err)
	}
}

func TestValidUsernameTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ok   bool
	}{
		{"alice", true},
		{"A", true},
		{"a1,._+-()[]{}|", true},
		{"", false},
		{"1abc", false},
		{"_abc", false},
		{"has space", false},
		{"tab\tchar", false},
		{"ünïcode", false},
	}
	for _, tt := range tests {
		if got := ValidUsername(tt.name); got != tt.ok {
			t.Errorf("ValidUsername(%q) = %v, want %v", tt.name, got, tt.ok)
		}
	}
}

func TestValidEmailTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email string
		ok    bool
	}{
		{"a@b", true},
		{"alice+tag@example.org", true},
		{"", false},
		{"1a@b", false},
		{"@b", false},
		{"a@", false},
		{"a@@b", false},
		{"a b@c", false},
	}
	for _, tt := range tests {
		if got := ValidEmail(tt.email); got != tt.ok {
			t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, got, tt.ok)
		}
	}
}
