package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/noteskeeper/internal/errs"
)

// Options configure a Manager.
type Options struct {
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// Manager binds a Store to the signed session cookie.
type Manager struct {
	store Store
	codec *Codec
	opts  Options
	now   func() time.Time
}

// NewManager constructs a Manager.
func NewManager(store Store, codec *Codec, opts Options) *Manager {
	return &Manager{store: store, codec: codec, opts: opts, now: time.Now}
}

// Load returns the session referenced by the request cookie, or a fresh anonymous session
// when the cookie is missing, forged, or points to an unknown or expired session.
// The returned flag reports whether the session is new.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, bool, error) {
	if c, err := r.Cookie(m.opts.CookieName); err == nil {
		if sid, err := m.codec.Decode(c.Value); err == nil {
			s, err := m.store.Get(ctx, sid)
			switch {
			case err == nil:
				s.stored = true
				return s, false, nil
			case !errors.Is(err, errs.ErrNotFound):
				return nil, false, fmt.Errorf("load session: %w", err)
			}
		}
	}
	s, err := m.fresh()
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Touch slides the expiry of s and refreshes the cookie. It must run before the response is written.
func (m *Manager) Touch(w http.ResponseWriter, s *Session) error {
	s.ExpiresAt = m.now().Add(m.opts.TTL)
	return m.setCookie(w, s)
}

// Save persists s unless it was destroyed during the request. A new session that was never
// handed out nor modified is dropped, so cookieless probes leave no records behind.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s.destroyed || (!s.stored && !s.changed) {
		return nil
	}
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	s.stored = true
	return nil
}

// Regenerate moves s to a new id, dropping the old record. Used on login against session fixation.
func (m *Manager) Regenerate(ctx context.Context, w http.ResponseWriter, s *Session) error {
	old := s.ID
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	s.ID = id.String()
	if err := m.store.Delete(ctx, old); err != nil {
		return fmt.Errorf("drop old session: %w", err)
	}
	return m.setCookie(w, s)
}

// Destroy removes s from the store and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	s.destroyed = true
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return m.store.Delete(ctx, s.ID)
}

func (m *Manager) fresh() (*Session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	s := New(id.String(), m.now(), m.opts.TTL)
	if _, err := s.RotateToken(); err != nil {
		return nil, err
	}
	s.changed = false
	return s, nil
}

func (m *Manager) setCookie(w http.ResponseWriter, s *Session) error {
	tok, err := m.codec.Encode(s.ID, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    tok,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
