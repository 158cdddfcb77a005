package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/noteskeeper/internal/crypto"
	"github.com/and161185/noteskeeper/internal/errs"
	"github.com/and161185/noteskeeper/internal/session"
)

// SessionRepo implements session.Store using PostgreSQL.
// The backend auth token is sealed at rest with the session id as associated data.
type SessionRepo struct {
	db  *DB
	key []byte
}

// NewSessionRepo constructs a session repository; key must be crypto.KeyLen bytes.
func NewSessionRepo(db *DB, key []byte) *SessionRepo { return &SessionRepo{db: db, key: key} }

// Get selects a live session by id.
func (r *SessionRepo) Get(ctx context.Context, id string) (*session.Session, error) {
	const q = `
SELECT id, user_id, auth_token, csrf_token, theme, language, flash, created_at, expires_at
FROM sessions WHERE id=$1 AND expires_at > now()`
	var (
		s      session.Session
		sealed []byte
	)
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.UserID, &sealed, &s.CSRFToken, &s.Theme, &s.Language, &s.Flash, &s.CreatedAt, &s.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(sealed) > 0 {
		pt, err := crypto.Open(r.key, sealed, []byte(s.ID))
		if err != nil {
			return nil, fmt.Errorf("open auth token: %w", err)
		}
		s.AuthToken = string(pt)
	}
	return &s, nil
}

// Save upserts the session row.
func (r *SessionRepo) Save(ctx context.Context, s *session.Session) error {
	var sealed []byte
	if s.AuthToken != "" {
		var err error
		sealed, err = crypto.Seal(r.key, []byte(s.AuthToken), []byte(s.ID))
		if err != nil {
			return fmt.Errorf("seal auth token: %w", err)
		}
	}
	const q = `
INSERT INTO sessions (id, user_id, auth_token, csrf_token, theme, language, flash, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  user_id=EXCLUDED.user_id, auth_token=EXCLUDED.auth_token, csrf_token=EXCLUDED.csrf_token,
  theme=EXCLUDED.theme, language=EXCLUDED.language, flash=EXCLUDED.flash, expires_at=EXCLUDED.expires_at`
	_, err := r.db.Pool.Exec(ctx, q,
		s.ID, s.UserID, sealed, s.CSRFToken, s.Theme, s.Language, s.Flash, s.CreatedAt, s.ExpiresAt)
	return err
}

// Delete removes a session row; a missing row is not an error.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	return err
}

// DeleteExpired removes expired rows and returns how many were dropped.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
