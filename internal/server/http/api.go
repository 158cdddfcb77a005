package httpserver

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/and161185/noteskeeper/internal/errs"
	"github.com/and161185/noteskeeper/internal/model"
	"github.com/and161185/noteskeeper/internal/sanitize"
	"github.com/and161185/noteskeeper/internal/session"
)

// apiHandler runs one action and returns the JSON payload.
type apiHandler func(s *Server, c *gin.Context, sess *session.Session) (any, error)

type apiAction struct {
	anonymous bool // allowed without an authenticated session
	noCSRF    bool // read of the token itself
	get       bool // allowed over GET
	mutating  bool // rotates the CSRF token on success
	handle    apiHandler
}

const actionDownload = "download_file"

var apiActions = map[string]apiAction{
	"get_csrf_token": {anonymous: true, noCSRF: true, get: true, handle: apiCSRFToken},
	"login":          {anonymous: true, mutating: true, handle: apiLogin},
	"register":       {anonymous: true, mutating: true, handle: apiRegister},
	"logout":         {anonymous: true, handle: apiLogout},

	"get_notes":        {handle: apiGetNotes},
	"get_shared_notes": {handle: apiGetSharedNotes},
	"create_note":      {mutating: true, handle: apiCreateNote},
	"edit_note":        {mutating: true, handle: apiEditNote},
	"delete_note":      {mutating: true, handle: apiDeleteNote},
	"share_note":       {mutating: true, handle: apiShareNote},
	"get_files":        {handle: apiGetFiles},
	"attach_file":      {mutating: true, handle: apiAttachFile},
	"delete_file":      {mutating: true, handle: apiDeleteFile},
	actionDownload:     {get: true},

	"get_tasks":        {handle: apiGetTasks},
	"create_task":      {mutating: true, handle: apiCreateTask},
	"delete_task":      {mutating: true, handle: apiDeleteTask},
	"share_task":       {mutating: true, handle: apiShareTask},
	"get_subtasks":     {handle: apiGetSubtasks},
	"create_subtask":   {mutating: true, handle: apiCreateSubtask},
	"complete_subtask": {mutating: true, handle: apiCompleteSubtask},
	"delete_subtask":   {mutating: true, handle: apiDeleteSubtask},

	"get_username":    {handle: apiGetUsername},
	"change_password": {mutating: true, handle: apiChangePassword},
	"update_settings": {mutating: true, handle: apiUpdateSettings},
}

// api dispatches on the action field. Every answer is a JSON object with HTTP 200;
// failures carry an "error" key.
func (s *Server) api(c *gin.Context) {
	sess := current(c)
	if err := parseForm(c.Request); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			apiError(c, msgUploadTooLarge)
			return
		}
	}

	a, ok := apiActions[c.Request.FormValue("action")]
	if !ok {
		apiError(c, msgInvalidAction)
		return
	}
	switch c.Request.Method {
	case http.MethodPost:
	case http.MethodGet:
		if !a.get {
			apiError(c, msgInvalidMethod)
			return
		}
	default:
		apiError(c, msgInvalidMethod)
		return
	}
	if !a.anonymous && !sess.Authenticated() {
		apiError(c, msgUnauthorized)
		return
	}
	if !a.noCSRF && !sess.Verify(csrfFrom(c)) {
		apiError(c, msgInvalidCSRF)
		return
	}

	if a.handle == nil {
		s.download(c, sess)
		return
	}
	out, err := a.handle(s, c, sess)
	if err != nil {
		apiError(c, s.apiMessage(err))
		return
	}
	if a.mutating {
		s.rotateCSRF(c, sess)
	}
	c.JSON(http.StatusOK, out)
}

// csrfFrom reads the request token from the header, the form body or, for GET, the query.
func csrfFrom(c *gin.Context) string {
	if v := c.GetHeader("X-CSRF-Token"); v != "" {
		return v
	}
	return c.Request.FormValue("csrf_token")
}

// text returns a sanitized form value.
func text(c *gin.Context, key string) string {
	return sanitize.String(c.Request.FormValue(key))
}

// raw returns a form value as sent; used for secrets and identifiers matched verbatim.
func raw(c *gin.Context, key string) string {
	return c.Request.FormValue(key)
}

func truthy(v string) bool {
	switch v {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// list keeps empty results serialized as [] rather than null.
func list[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func apiCSRFToken(_ *Server, _ *gin.Context, sess *session.Session) (any, error) {
	tok, err := sess.EnsureToken()
	if err != nil {
		return nil, err
	}
	return gin.H{"csrf_token": tok}, nil
}

func apiLogin(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	out, err := s.signIn(c, sess, text(c, "username"), raw(c, "password"))
	if err != nil {
		return nil, err
	}
	return gin.H{"message": out.Message, "user_id": out.UserID, "token": out.Token}, nil
}

func apiRegister(s *Server, c *gin.Context, _ *session.Session) (any, error) {
	return s.auth.Register(c.Request.Context(), text(c, "username"), raw(c, "password"), text(c, "email"))
}

func apiLogout(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	if err := s.sessions.Destroy(c.Request.Context(), c.Writer, sess); err != nil {
		return nil, err
	}
	return gin.H{"message": "Logged out"}, nil
}

func apiGetNotes(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	notes, err := s.notes.List(c.Request.Context(), sess.UserID, text(c, "sort_by"))
	if err != nil {
		return nil, err
	}
	return gin.H{"notes": list(notes)}, nil
}

func apiGetSharedNotes(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	notes, err := s.notes.Shared(c.Request.Context(), sess.UserID)
	if err != nil {
		return nil, err
	}
	return gin.H{"shared_notes": list(notes)}, nil
}

func apiCreateNote(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.notes.Create(c.Request.Context(), sess.UserID, text(c, "title"), text(c, "content"))
}

func apiEditNote(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.notes.Edit(c.Request.Context(), sess.UserID, text(c, "note_id"), text(c, "title"), text(c, "content"))
}

func apiDeleteNote(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.notes.Delete(c.Request.Context(), sess.UserID, text(c, "note_id"))
}

func apiShareNote(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.notes.Share(c.Request.Context(), sess.UserID, text(c, "note_id"), text(c, "target_username"))
}

func apiGetFiles(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	names, err := s.notes.Files(c.Request.Context(), sess.UserID, text(c, "note_id"))
	if err != nil {
		return nil, err
	}
	return gin.H{"files": list(names)}, nil
}

func apiAttachFile(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.attach(c, sess.UserID, text(c, "note_id"), "files", "files[]", "file")
}

func apiDeleteFile(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.notes.DeleteFile(c.Request.Context(), sess.UserID, text(c, "note_id"), raw(c, "file_name"))
}

func apiGetTasks(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	var hide bool
	switch raw(c, "hide_completed") {
	case "", "0":
	case "1":
		hide = true
	default:
		return nil, errHideCompleted
	}
	tasks, err := s.tasks.List(c.Request.Context(), sess.UserID, text(c, "sort_by"), hide)
	if err != nil {
		return nil, err
	}
	return gin.H{"tasks": list(tasks)}, nil
}

func apiCreateTask(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.tasks.Create(c.Request.Context(), sess.UserID,
		text(c, "title"), text(c, "description"), text(c, "shared_with"), subtaskTitles(c))
}

func apiDeleteTask(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.tasks.Delete(c.Request.Context(), sess.UserID, text(c, "task_id"))
}

func apiShareTask(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.tasks.Share(c.Request.Context(), sess.UserID, text(c, "task_id"), text(c, "target_username"))
}

func apiGetSubtasks(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	subs, err := s.tasks.Subtasks(c.Request.Context(), sess.UserID, text(c, "task_id"))
	if err != nil {
		return nil, err
	}
	return gin.H{"subtasks": list(subs)}, nil
}

func apiCreateSubtask(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.tasks.CreateSubtask(c.Request.Context(), sess.UserID, text(c, "task_id"), text(c, "title"))
}

func apiCompleteSubtask(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.tasks.CompleteSubtask(c.Request.Context(), sess.UserID, text(c, "subtask_id"))
}

func apiDeleteSubtask(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.tasks.DeleteSubtask(c.Request.Context(), sess.UserID, text(c, "subtask_id"))
}

func apiGetUsername(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.auth.Profile(c.Request.Context(), sess.UserID)
}

func apiChangePassword(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	next := raw(c, "new_password")
	if confirm, ok := c.Request.Form["confirm_password"]; ok && (len(confirm) == 0 || confirm[0] != next) {
		return nil, errPasswordsMismatch
	}
	return s.auth.ChangePassword(c.Request.Context(), sess.UserID, raw(c, "old_password"), next)
}

func apiUpdateSettings(s *Server, c *gin.Context, sess *session.Session) (any, error) {
	return s.updateSettings(c, sess, text(c, "theme"), text(c, "language"))
}

// download streams an attachment of the current user. Missing files answer
// {"error":"File not found"} without streaming any bytes.
func (s *Server) download(c *gin.Context, sess *session.Session) {
	noteID, name := raw(c, "note_id"), raw(c, "file_name")
	if noteID == "" || name == "" {
		apiError(c, msgDownloadArgs)
		return
	}
	ctx := c.Request.Context()
	p, err := s.auth.Profile(ctx, sess.UserID)
	if err != nil {
		apiError(c, s.apiMessage(err))
		return
	}
	f, err := s.files.Open(p.Username, noteID, name)
	if errors.Is(err, errs.ErrNotFound) {
		apiError(c, msgFileNotFound)
		return
	}
	if err != nil {
		apiError(c, s.apiMessage(err))
		return
	}
	defer f.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": f.Name})
	c.DataFromReader(http.StatusOK, f.Size, f.ContentType, f, map[string]string{
		"Content-Disposition":    disposition,
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "private, no-store",
	})
}

// signIn authenticates against the backend and promotes sess under a fresh id.
// Theme and language are taken from the profile when it can be read.
func (s *Server) signIn(c *gin.Context, sess *session.Session, username, password string) (model.Login, error) {
	ctx := c.Request.Context()
	out, err := s.auth.Login(ctx, username, password, c.ClientIP())
	if err != nil {
		return model.Login{}, err
	}
	if err := s.sessions.Regenerate(ctx, c.Writer, sess); err != nil {
		return model.Login{}, err
	}
	sess.Authenticate(out.UserID.String(), out.Token)
	if p, err := s.auth.Profile(ctx, sess.UserID); err == nil {
		sess.SetPreferences(p.Theme, p.Language)
	}
	return out, nil
}

func (s *Server) updateSettings(c *gin.Context, sess *session.Session, theme, language string) (model.Ack, error) {
	ack, err := s.auth.UpdateSettings(c.Request.Context(), sess.UserID, theme, language)
	if err != nil {
		return model.Ack{}, err
	}
	sess.SetPreferences(theme, language)
	return ack, nil
}

// attach spools the multipart files found under any of fields and hands them to the backend.
// Temp files are removed on every path.
func (s *Server) attach(c *gin.Context, userID, noteID string, fields ...string) (model.Ack, error) {
	var headers []*multipart.FileHeader
	if mf := c.Request.MultipartForm; mf != nil {
		for _, f := range fields {
			headers = append(headers, mf.File[f]...)
		}
	}
	if noteID == "" {
		return model.Ack{}, errs.Invalid("Note ID is required")
	}
	if len(headers) == 0 {
		return model.Ack{}, errs.Invalid("No valid files uploaded")
	}
	if len(headers) > maxFilesPerUpload {
		return model.Ack{}, errs.Invalid("Too many files")
	}
	uploads, cleanup, err := s.uploads.Spool(headers)
	if err != nil {
		return model.Ack{}, err
	}
	defer cleanup()
	return s.notes.Attach(c.Request.Context(), userID, noteID, uploads)
}

// subtaskTitles collects the repeated subtasks field, accepting the bracketed form too.
func subtaskTitles(c *gin.Context) []string {
	form := c.Request.Form
	titles := append(append([]string{}, form["subtasks"]...), form["subtasks[]"]...)
	return sanitize.Strings(titles)
}
