// Package session implements server-side sessions, the CSRF guard and the signed session cookie.
//
// A session starts anonymous on the first visit so that login and registration forms already carry
// a CSRF token. It is stored only once that token is handed out or the session is modified. It becomes
// authenticated once both a user id and an auth token are stored, and is destroyed entirely on logout
// or expiry.
package session

import (
	"crypto/subtle"
	"time"

	"github.com/and161185/noteskeeper/internal/crypto"
	"github.com/and161185/noteskeeper/internal/model"
)

// csrfBytes is the CSRF token entropy; the token is its hex encoding.
const csrfBytes = 32

// Session is the per-browser state kept on the server.
type Session struct {
	ID        string
	UserID    string
	AuthToken string
	CSRFToken string
	Theme     string
	Language  string
	Flash     string
	CreatedAt time.Time
	ExpiresAt time.Time

	destroyed bool
	// stored is set once the session exists in the Store; changed once it was handed out or modified.
	stored  bool
	changed bool
}

// New returns an anonymous session with default preferences.
func New(id string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		Theme:     model.ThemeLight,
		Language:  model.LangRU,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// EnsureToken returns the current CSRF token, generating one if absent.
// The session counts as handed out from then on and is persisted.
func (s *Session) EnsureToken() (string, error) {
	if s.CSRFToken != "" {
		s.changed = true
		return s.CSRFToken, nil
	}
	return s.RotateToken()
}

// RotateToken replaces the CSRF token unconditionally.
func (s *Session) RotateToken() (string, error) {
	tok, err := crypto.RandHex(csrfBytes)
	if err != nil {
		return "", err
	}
	s.CSRFToken = tok
	s.changed = true
	return tok, nil
}

// Verify reports whether a token exists and equals token.
func (s *Session) Verify(token string) bool {
	if s.CSRFToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.CSRFToken), []byte(token)) == 1
}

// Authenticated reports whether both the user id and auth token are present.
func (s *Session) Authenticated() bool {
	return s.UserID != "" && s.AuthToken != ""
}

// Authenticate stores the credentials returned by a successful login.
func (s *Session) Authenticate(userID, token string) {
	s.UserID = userID
	s.AuthToken = token
	s.changed = true
}

// SetPreferences stores theme and language, ignoring unknown values.
func (s *Session) SetPreferences(theme, language string) {
	s.changed = true
	if model.ValidTheme(theme) {
		s.Theme = theme
	}
	if model.ValidLanguage(language) {
		s.Language = language
	}
}

// SetFlash stores a one-shot message shown on the next page render.
func (s *Session) SetFlash(msg string) {
	s.Flash = msg
	s.changed = true
}

// PopFlash returns the pending flash message and clears it.
func (s *Session) PopFlash() string {
	m := s.Flash
	s.Flash = ""
	return m
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Changed reports whether the session was handed out or modified during this request.
func (s *Session) Changed() bool { return s.changed }

// Destroyed reports whether Destroy was called on the session during this request.
func (s *Session) Destroyed() bool { return s.destroyed }

// clone returns a detached copy safe to hand across goroutines.
func (s *Session) clone() *Session {
	c := *s
	return &c
}
