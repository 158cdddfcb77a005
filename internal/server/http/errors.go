package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/noteskeeper/internal/errs"
)

// API error texts.
const (
	msgUnauthorized   = "Unauthorized"
	msgInvalidCSRF    = "Invalid CSRF token"
	msgInvalidAction  = "Invalid action"
	msgInvalidMethod  = "Invalid request method"
	msgRateLimited    = "Too many login attempts"
	msgExecFailed     = "execution failed"
	msgInvalidReply   = "invalid response"
	msgInternal       = "internal error"
	msgFileNotFound   = "File not found"
	msgDownloadArgs   = "Note ID and file name are required"
	msgUploadTooLarge = "Upload exceeds size limit"
)

var (
	errPasswordsMismatch = errs.Invalid("Passwords do not match")
	errHideCompleted     = errs.Invalid("Invalid hide_completed value")
)

// apiMessage maps err onto the client-visible API text. Unknown errors are logged.
func (s *Server) apiMessage(err error) string {
	var ve *errs.ValidationError
	var de *errs.DomainError
	switch {
	case errors.As(err, &ve):
		return ve.Msg
	case errors.As(err, &de):
		return de.Msg
	case errors.Is(err, errs.ErrUnauthorized):
		return msgUnauthorized
	case errors.Is(err, errs.ErrInvalidCSRF):
		return msgInvalidCSRF
	case errors.Is(err, errs.ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, errs.ErrInvalidResponse):
		return msgInvalidReply
	case errors.Is(err, errs.ErrExecFailed):
		return msgExecFailed
	}
	s.log.Error("unmapped error", zap.Error(err))
	return msgInternal
}

// pageMessage maps err onto a localized flash text; backend and validation messages pass through.
func (s *Server) pageMessage(t Translator, err error) string {
	var ve *errs.ValidationError
	var de *errs.DomainError
	switch {
	case errors.Is(err, errPasswordsMismatch):
		return t.Get("passwords_mismatch")
	case errors.As(err, &ve):
		return ve.Msg
	case errors.As(err, &de):
		return de.Msg
	case errors.Is(err, errs.ErrInvalidCSRF):
		return t.Get("invalid_csrf_token")
	case errors.Is(err, errs.ErrRateLimited):
		return t.Get("too_many_attempts")
	case errors.Is(err, errs.ErrInvalidResponse):
		return t.Get("invalid_response")
	case errors.Is(err, errs.ErrExecFailed):
		return t.Get("execution_failed")
	}
	s.log.Error("unmapped error", zap.Error(err))
	return t.Get("internal_error")
}

func apiError(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"error": msg})
}

// fail aborts with a 500 for infrastructure errors (session store, token generation).
func (s *Server) fail(c *gin.Context, err error) {
	s.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	if isAPI(c) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}
	c.AbortWithStatus(http.StatusInternalServerError)
}

func isAPI(c *gin.Context) bool { return c.Request.URL.Path == "/api" }
