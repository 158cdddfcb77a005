package httpserver

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/noteskeeper/internal/session"
)

// recoverMW turns panics into a logged 500.
func (s *Server) recoverMW() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request.URL.Path),
				)
				if isAPI(c) {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// requestLogMW logs request metadata only; query strings and bodies may carry tokens.
func (s *Server) requestLogMW() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			if id, err := uuid.NewV4(); err == nil {
				rid = id.String()
			}
		}
		c.Header("X-Request-ID", rid)

		c.Next()

		s.log.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("remote", c.ClientIP()),
			zap.String("request_id", rid),
		)
	}
}

func (s *Server) bodyLimitMW() gin.HandlerFunc {
	limit := s.uploadBodyLimit()
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// sessionMW loads or creates the session, refreshes its cookie before the handler writes,
// and persists it afterwards.
func (s *Server) sessionMW() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sess, _, err := s.sessions.Load(ctx, c.Request)
		if err != nil {
			s.fail(c, err)
			return
		}
		if err := s.sessions.Touch(c.Writer, sess); err != nil {
			s.fail(c, err)
			return
		}
		c.Request = c.Request.WithContext(session.WithSession(ctx, sess))

		c.Next()

		if err := s.sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
			s.log.Error("save session", zap.Error(err))
		}
	}
}

// current returns the request session installed by sessionMW.
func current(c *gin.Context) *session.Session {
	sess, ok := session.FromContext(c.Request.Context())
	if !ok {
		panic("session middleware not installed")
	}
	return sess
}

func (s *Server) requirePage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !current(c).Authenticated() {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) anonymousOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if current(c).Authenticated() {
			c.Redirect(http.StatusSeeOther, "/notes")
			c.Abort()
			return
		}
		c.Next()
	}
}

// pageCSRF rejects form posts whose csrf_token differs from the session token.
// The stored token is kept on failure so that other open forms stay valid.
func (s *Server) pageCSRF(back string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := current(c)
		t := s.i18n.For(sess.Language)
		if err := parseForm(c.Request); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				flashRedirect(c, sess, t.Get("upload_too_large"), back)
				c.Abort()
				return
			}
		}
		if !sess.Verify(c.PostForm("csrf_token")) {
			flashRedirect(c, sess, t.Get("invalid_csrf_token"), back)
			c.Abort()
			return
		}
		c.Next()
	}
}

// parseForm parses url-encoded and multipart bodies alike.
func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if r.MultipartForm != nil {
			return nil
		}
		return r.ParseMultipartForm(8 << 20)
	}
	return r.ParseForm()
}

// rotateCSRF issues a fresh token after a successful mutating action.
func (s *Server) rotateCSRF(c *gin.Context, sess *session.Session) {
	tok, err := sess.RotateToken()
	if err != nil {
		s.log.Error("rotate csrf token", zap.Error(err))
		return
	}
	if isAPI(c) {
		c.Header("X-CSRF-Token", tok)
	}
}
