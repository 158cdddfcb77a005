package httpserver

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/noteskeeper/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "register", "reset", "notes", "tasks", "profile"}

// pages maps a page name to the layout combined with that page's content block.
type pages map[string]*template.Template

func loadPages() (pages, error) {
	base, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, err
	}
	p := make(pages, len(pageNames))
	for _, name := range pageNames {
		t, err := template.Must(base.Clone()).ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		p[name] = t
	}
	return p, nil
}

// view is the data every page template receives.
type view struct {
	T      Translator
	Lang   string
	Theme  string
	CSRF   string
	Flash  string
	Authed bool
	Page   string
	Data   any
}

// render executes page for sess, consuming its pending flash message.
func (s *Server) render(c *gin.Context, sess *session.Session, page string, data any) {
	tok, err := sess.EnsureToken()
	if err != nil {
		s.fail(c, err)
		return
	}
	v := view{
		T:      s.i18n.For(sess.Language),
		Lang:   sess.Language,
		Theme:  sess.Theme,
		CSRF:   tok,
		Flash:  sess.PopFlash(),
		Authed: sess.Authenticated(),
		Page:   page,
		Data:   data,
	}
	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout", v); err != nil {
		s.log.Error("render page", zap.String("page", page), zap.Error(err))
		c.String(http.StatusInternalServerError, v.T.Get("internal_error"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// flashRedirect stores msg for the next render and redirects with 303 See Other.
func flashRedirect(c *gin.Context, sess *session.Session, msg, location string) {
	sess.SetFlash(msg)
	c.Redirect(http.StatusSeeOther, location)
}
