package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/noteskeeper/internal/crypto"
	"github.com/and161185/noteskeeper/internal/errs"
	"github.com/and161185/noteskeeper/internal/session"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func sealKey(t *testing.T) []byte {
	t.Helper()
	k, err := crypto.DeriveKey([]byte("test-secret-0123456789"), crypto.PurposeSeal)
	require.NoError(t, err)
	return k
}

var sessionCols = []string{"id", "user_id", "auth_token", "csrf_token", "theme", "language", "flash", "created_at", "expires_at"}

const selectSession = `SELECT id, user_id, auth_token, csrf_token, theme, language, flash, created_at, expires_at FROM sessions WHERE id=\$1 AND expires_at > now\(\)`

func TestSessionRepo_Get_OpensSealedToken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	key := sealKey(t)
	r := NewSessionRepo(db, key)
	ctx := context.Background()

	sealed, err := crypto.Seal(key, []byte("backend-token"), []byte("sid"))
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery(selectSession).
		WithArgs("sid").
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("sid", "42", sealed, "csrf", "dark", "en", "", now, now.Add(time.Hour)))

	s, err := r.Get(ctx, "sid")
	require.NoError(t, err)
	require.Equal(t, "42", s.UserID)
	require.Equal(t, "backend-token", s.AuthToken)
	require.True(t, s.Authenticated())
	require.Equal(t, "dark", s.Theme)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_Get_Anonymous(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db, sealKey(t))
	now := time.Now()

	mock.ExpectQuery(selectSession).
		WithArgs("sid").
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("sid", "", []byte(nil), "csrf", "light", "ru", "hello", now, now.Add(time.Hour)))

	s, err := r.Get(context.Background(), "sid")
	require.NoError(t, err)
	require.False(t, s.Authenticated())
	require.Equal(t, "hello", s.Flash)
}

func TestSessionRepo_Get_NotFoundAndErrors(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db, sealKey(t))
	ctx := context.Background()

	mock.ExpectQuery(selectSession).WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	_, err := r.Get(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)

	boom := errors.New("db down")
	mock.ExpectQuery(selectSession).WithArgs("x").WillReturnError(boom)
	_, err = r.Get(ctx, "x")
	require.ErrorIs(t, err, boom)
}

func TestSessionRepo_Get_TokenBoundToSessionID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	key := sealKey(t)
	r := NewSessionRepo(db, key)
	now := time.Now()

	// sealed for another session: copying the column between rows must not work
	sealed, err := crypto.Seal(key, []byte("tok"), []byte("other"))
	require.NoError(t, err)
	mock.ExpectQuery(selectSession).
		WithArgs("sid").
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow("sid", "1", sealed, "c", "light", "ru", "", now, now.Add(time.Hour)))

	_, err = r.Get(context.Background(), "sid")
	require.Error(t, err)
}

func TestSessionRepo_Save(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db, sealKey(t))
	now := time.Now()

	s := session.New("sid", now, time.Hour)
	s.Authenticate("42", "tok")
	s.CSRFToken = "csrf"

	mock.ExpectExec(`INSERT INTO sessions \(id, user_id, auth_token, csrf_token, theme, language, flash, created_at, expires_at\)`).
		WithArgs("sid", "42", pgxmock.AnyArg(), "csrf", "light", "ru", "", s.CreatedAt, s.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Save(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_DeleteAndSweep(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db, sealKey(t))
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM sessions WHERE id=\$1`).
		WithArgs("sid").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, "sid"))

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	n, err := r.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
