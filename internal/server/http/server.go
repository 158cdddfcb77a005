// Package httpserver implements the browser-facing page controllers and the JSON API over gin.
//
// Every request is logged and guarded against panics. Pages and the API additionally pass the body
// limit and session loading, then apply their own authentication and CSRF rules.
package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/noteskeeper/internal/files"
	"github.com/and161185/noteskeeper/internal/service"
	"github.com/and161185/noteskeeper/internal/session"
	"github.com/and161185/noteskeeper/internal/upload"
)

// maxFilesPerUpload bounds a single attach request together with the per-file limit.
const maxFilesPerUpload = 10

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Sessions *session.Manager
	Auth     service.AuthService
	Notes    service.NoteService
	Tasks    service.TaskService
	Files    *files.Store
	Uploads  *upload.Spooler
	Log      *zap.Logger
}

// Server owns the gin engine and the page renderer.
type Server struct {
	sessions *session.Manager
	auth     service.AuthService
	notes    service.NoteService
	tasks    service.TaskService
	files    *files.Store
	uploads  *upload.Spooler
	log      *zap.Logger

	pages  pages
	i18n   catalog
	engine *gin.Engine
}

// New builds the server and its routes.
func New(d Deps) (*Server, error) {
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	s := &Server{
		sessions: d.Sessions,
		auth:     d.Auth,
		notes:    d.Notes,
		tasks:    d.Tasks,
		files:    d.Files,
		uploads:  d.Uploads,
		log:      d.Log,
		pages:    p,
		i18n:     cat,
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.MaxMultipartMemory = 8 << 20
	r.Use(s.requestLogMW(), s.recoverMW())

	// liveness stays outside the session chain
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	app := r.Group("/", s.bodyLimitMW(), s.sessionMW())
	app.GET("/", s.home)

	app.GET("/login", s.anonymousOnly(), s.loginPage)
	app.POST("/login", s.anonymousOnly(), s.pageCSRF("/login"), s.loginSubmit)
	app.GET("/register", s.anonymousOnly(), s.registerPage)
	app.POST("/register", s.anonymousOnly(), s.pageCSRF("/register"), s.registerSubmit)
	app.GET("/reset", s.anonymousOnly(), s.resetPage)
	app.POST("/reset", s.anonymousOnly(), s.pageCSRF("/reset"), s.resetSubmit)

	authed := app.Group("/", s.requirePage())
	authed.GET("/notes", s.notesPage)
	authed.POST("/notes", s.pageCSRF("/notes"), s.notesSubmit)
	authed.GET("/tasks", s.tasksPage)
	authed.POST("/tasks", s.pageCSRF("/tasks"), s.tasksSubmit)
	authed.GET("/profile", s.profilePage)
	authed.POST("/profile", s.pageCSRF("/profile"), s.profileSubmit)

	app.POST("/logout", s.pageCSRF("/"), s.logout)

	app.Any("/api", s.api)
	return r
}

// uploadBodyLimit is the largest request body accepted on any route.
func (s *Server) uploadBodyLimit() int64 {
	return s.uploads.MaxSize()*maxFilesPerUpload + 1<<20
}
