package session

import "context"

// Store persists sessions by id.
// Get returns errs.ErrNotFound for missing or expired sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
