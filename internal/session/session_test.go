package session

import (
	"testing"
	"time"
)

func TestEnsureToken_Idempotent(t *testing.T) {
	t.Parallel()

	s := New("sid", time.Now(), time.Hour)
	a, err := s.EnsureToken()
	if err != nil {
		t.Fatalf("EnsureToken: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("token len=%d, want 64", len(a))
	}
	b, err := s.EnsureToken()
	if err != nil {
		t.Fatalf("EnsureToken(2): %v", err)
	}
	if a != b {
		t.Fatalf("EnsureToken not idempotent: %q vs %q", a, b)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	s := New("sid", time.Now(), time.Hour)
	if s.Verify("") || s.Verify("anything") {
		t.Fatalf("Verify must fail without a token")
	}
	tok, _ := s.EnsureToken()
	if !s.Verify(tok) {
		t.Fatalf("Verify(own token) = false")
	}
	if s.Verify(tok[:63] + "x") {
		t.Fatalf("Verify accepted a different token")
	}
	if s.Verify("") {
		t.Fatalf("Verify accepted empty token")
	}
}

func TestRotateToken_Changes(t *testing.T) {
	t.Parallel()

	s := New("sid", time.Now(), time.Hour)
	a, _ := s.EnsureToken()
	b, err := s.RotateToken()
	if err != nil {
		t.Fatalf("RotateToken: %v", err)
	}
	if a == b {
		t.Fatalf("RotateToken kept the token")
	}
	if s.Verify(a) || !s.Verify(b) {
		t.Fatalf("old token must stop verifying")
	}
}

func TestAuthenticated_RequiresBoth(t *testing.T) {
	t.Parallel()

	s := New("sid", time.Now(), time.Hour)
	if s.Authenticated() {
		t.Fatalf("fresh session is anonymous")
	}
	s.UserID = "1"
	if s.Authenticated() {
		t.Fatalf("user id alone is not enough")
	}
	s.Authenticate("1", "tok")
	if !s.Authenticated() {
		t.Fatalf("want authenticated")
	}
}

func TestPreferencesAndFlash(t *testing.T) {
	t.Parallel()

	s := New("sid", time.Now(), time.Hour)
	if s.Theme != "light" || s.Language != "ru" {
		t.Fatalf("defaults: %q %q", s.Theme, s.Language)
	}
	s.SetPreferences("dark", "xx")
	if s.Theme != "dark" || s.Language != "ru" {
		t.Fatalf("unknown language must be ignored: %q %q", s.Theme, s.Language)
	}

	s.SetFlash("saved")
	if got := s.PopFlash(); got != "saved" {
		t.Fatalf("PopFlash=%q", got)
	}
	if got := s.PopFlash(); got != "" {
		t.Fatalf("flash must be one-shot, got %q", got)
	}
}

func TestExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := New("sid", now, time.Minute)
	if s.Expired(now) {
		t.Fatalf("not expired yet")
	}
	if !s.Expired(now.Add(time.Minute)) {
		t.Fatalf("expired at deadline")
	}
}
