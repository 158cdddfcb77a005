package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/and161185/noteskeeper/internal/errs"
	"github.com/and161185/noteskeeper/internal/gateway"
	"github.com/and161185/noteskeeper/internal/limiter"
	"github.com/and161185/noteskeeper/internal/model"
)

// MinPasswordLen is the minimum length of a new password.
const MinPasswordLen = 8

// AuthService defines account operations.
type AuthService interface {
	// Register creates an account.
	Register(ctx context.Context, username, password, email string) (model.Ack, error)
	// Login applies rate limiting by (username, ip) and authenticates against the backend.
	Login(ctx context.Context, username, password, ip string) (model.Login, error)
	// Profile returns the account view used for theme, language and file paths.
	Profile(ctx context.Context, userID string) (model.Profile, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (model.Ack, error)
	UpdateSettings(ctx context.Context, userID, theme, language string) (model.Ack, error)
	RequestPasswordReset(ctx context.Context, email string) (model.Ack, error)
	ResetPassword(ctx context.Context, token, newPassword string) (model.Ack, error)
}

type AuthServiceImpl struct {
	gw  gateway.Invoker
	lim limiter.Limiter
	log *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(gw gateway.Invoker, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{gw: gw, lim: lim, log: log}
}

// Register creates an account; every field is required.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password, email string) (model.Ack, error) {
	if username == "" || password == "" || email == "" {
		return model.Ack{}, errs.Invalid("All fields are required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdRegister, username, password, email)
	return ack, err
}

// Login authenticates the user. The answer must carry both user_id and token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, ip string) (model.Login, error) {
	if username == "" || password == "" {
		return model.Login{}, errs.Invalid("Username and password are required")
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Login{}, err
	}
	if !allowed {
		return model.Login{}, errs.ErrRateLimited
	}

	var out model.Login
	err = call(ctx, s.gw, &out, gateway.CmdLogin, username, password)
	var de *errs.DomainError
	if errors.As(err, &de) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr != nil {
			s.log.Warn("limiter failure not recorded", zap.Error(ferr))
		} else if blocked {
			return model.Login{}, errs.ErrRateLimited
		}
		return model.Login{}, err
	}
	if err != nil {
		return model.Login{}, err
	}
	if out.UserID == "" || out.Token == "" {
		return model.Login{}, fmt.Errorf("%w: login answer lacks user_id or token", errs.ErrInvalidResponse)
	}

	if err := s.lim.Success(ctx, username, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}
	return out, nil
}

// Profile returns the account view for userID.
func (s *AuthServiceImpl) Profile(ctx context.Context, userID string) (model.Profile, error) {
	var p model.Profile
	if err := call(ctx, s.gw, &p, gateway.CmdGetUsername, userID); err != nil {
		return model.Profile{}, err
	}
	if p.Username == "" {
		return model.Profile{}, fmt.Errorf("%w: empty username", errs.ErrInvalidResponse)
	}
	return p, nil
}

// ChangePassword replaces the password after checking the new one locally.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (model.Ack, error) {
	if oldPassword == "" || newPassword == "" {
		return model.Ack{}, errs.Invalid("Old and new passwords are required")
	}
	if err := checkNewPassword(newPassword); err != nil {
		return model.Ack{}, err
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdChangePassword, userID, oldPassword, newPassword)
	return ack, err
}

// UpdateSettings stores theme and language preferences.
func (s *AuthServiceImpl) UpdateSettings(ctx context.Context, userID, theme, language string) (model.Ack, error) {
	if !model.ValidTheme(theme) {
		return model.Ack{}, errs.Invalid("Invalid theme value")
	}
	if !model.ValidLanguage(language) {
		return model.Ack{}, errs.Invalid("Invalid language value")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdUpdateSettings, userID, theme, language)
	return ack, err
}

// RequestPasswordReset asks the backend to mail a reset token.
func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) (model.Ack, error) {
	if email == "" {
		return model.Ack{}, errs.Invalid("Email is required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdRequestPasswordReset, email)
	return ack, err
}

// ResetPassword sets a new password using a mailed token.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) (model.Ack, error) {
	if token == "" || newPassword == "" {
		return model.Ack{}, errs.Invalid("Token and new password are required")
	}
	if err := checkNewPassword(newPassword); err != nil {
		return model.Ack{}, err
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdResetPassword, token, newPassword)
	return ack, err
}

func checkNewPassword(pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLen {
		return errs.Invalid(fmt.Sprintf("New password must be at least %d characters long", MinPasswordLen))
	}
	return nil
}
