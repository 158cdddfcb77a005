package httpserver

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/noteskeeper/internal/model"
	"github.com/and161185/noteskeeper/internal/sanitize"
	"github.com/and161185/noteskeeper/internal/session"
)

// formAction is one named-submit branch of a page POST.
type formAction struct {
	submit string // name of the submit button that selects the branch
	keep   string // query parameter carried to the redirect target, if any
	ok     string // locale key of the success flash
	run    func(c *gin.Context, sess *session.Session) error
}

// dispatch runs the first action whose submit field is present and redirects back to page
// with a flash message. The CSRF token rotates only on success.
func (s *Server) dispatch(c *gin.Context, page string, actions []formAction) {
	sess := current(c)
	t := s.i18n.For(sess.Language)
	for _, a := range actions {
		if _, ok := c.Request.PostForm[a.submit]; !ok {
			continue
		}
		back := page
		if a.keep != "" {
			if v := c.Request.PostForm.Get(a.keep); v != "" {
				back += "?" + url.Values{a.keep: {v}}.Encode()
			}
		}
		if err := a.run(c, sess); err != nil {
			flashRedirect(c, sess, s.pageMessage(t, err), back)
			return
		}
		s.rotateCSRF(c, sess)
		// settings may have switched the language
		flashRedirect(c, sess, s.i18n.For(sess.Language).Get(a.ok), back)
		return
	}
	flashRedirect(c, sess, t.Get("unknown_action"), page)
}

func (s *Server) home(c *gin.Context) {
	if current(c).Authenticated() {
		c.Redirect(http.StatusSeeOther, "/notes")
		return
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

func (s *Server) loginPage(c *gin.Context) {
	s.render(c, current(c), "login", nil)
}

func (s *Server) loginSubmit(c *gin.Context) {
	sess := current(c)
	if _, err := s.signIn(c, sess, text(c, "username"), raw(c, "password")); err != nil {
		flashRedirect(c, sess, s.pageMessage(s.i18n.For(sess.Language), err), "/login")
		return
	}
	s.rotateCSRF(c, sess)
	c.Redirect(http.StatusSeeOther, "/notes")
}

func (s *Server) registerPage(c *gin.Context) {
	s.render(c, current(c), "register", nil)
}

func (s *Server) registerSubmit(c *gin.Context) {
	sess := current(c)
	t := s.i18n.For(sess.Language)
	password := raw(c, "password")
	if password != raw(c, "confirm_password") {
		flashRedirect(c, sess, t.Get("passwords_mismatch"), "/register")
		return
	}
	if _, err := s.auth.Register(c.Request.Context(), text(c, "username"), password, text(c, "email")); err != nil {
		flashRedirect(c, sess, s.pageMessage(t, err), "/register")
		return
	}
	s.rotateCSRF(c, sess)
	flashRedirect(c, sess, t.Get("registration_successful"), "/login")
}

func (s *Server) resetPage(c *gin.Context) {
	s.render(c, current(c), "reset", gin.H{"Token": c.Query("token")})
}

func (s *Server) resetSubmit(c *gin.Context) {
	s.dispatch(c, "/reset", []formAction{
		{submit: "request_reset", ok: "reset_requested", run: func(c *gin.Context, _ *session.Session) error {
			_, err := s.auth.RequestPasswordReset(c.Request.Context(), text(c, "email"))
			return err
		}},
		{submit: "reset_password", ok: "password_reset", run: func(c *gin.Context, _ *session.Session) error {
			_, err := s.auth.ResetPassword(c.Request.Context(), raw(c, "token"), raw(c, "new_password"))
			return err
		}},
	})
}

type notesView struct {
	SortBy   string
	Notes    []model.Note
	Shared   []model.Note
	Selected *model.Note
}

func (s *Server) notesPage(c *gin.Context) {
	sess := current(c)
	t := s.i18n.For(sess.Language)
	ctx := c.Request.Context()

	v := notesView{SortBy: c.DefaultQuery("sort_by", model.SortCreatedAt)}
	if !model.ValidSort(v.SortBy) {
		v.SortBy = model.SortCreatedAt
	}
	notes, err := s.notes.List(ctx, sess.UserID, v.SortBy)
	if err != nil {
		sess.SetFlash(s.pageMessage(t, err))
	}
	v.Notes = notes
	if shared, err := s.notes.Shared(ctx, sess.UserID); err == nil {
		v.Shared = shared
	} else {
		s.log.Warn("shared notes", zap.Error(err))
	}

	if id := sanitize.String(c.Query("note_id")); id != "" {
		for i := range v.Notes {
			if v.Notes[i].ID.String() != id {
				continue
			}
			sel := v.Notes[i]
			names, err := s.notes.Files(ctx, sess.UserID, id)
			if err != nil {
				sess.SetFlash(s.pageMessage(t, err))
			}
			sel.Files = names
			v.Selected = &sel
			break
		}
	}
	s.render(c, sess, "notes", v)
}

func (s *Server) notesSubmit(c *gin.Context) {
	s.dispatch(c, "/notes", []formAction{
		{submit: "create_note", ok: "note_created", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.notes.Create(c.Request.Context(), sess.UserID, text(c, "title"), text(c, "content"))
			return err
		}},
		{submit: "edit_note", keep: "note_id", ok: "note_updated", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.notes.Edit(c.Request.Context(), sess.UserID, text(c, "note_id"), text(c, "title"), text(c, "content"))
			return err
		}},
		{submit: "delete_note", ok: "note_deleted", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.notes.Delete(c.Request.Context(), sess.UserID, text(c, "note_id"))
			return err
		}},
		{submit: "share_note", keep: "note_id", ok: "note_shared", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.notes.Share(c.Request.Context(), sess.UserID, text(c, "note_id"), text(c, "target_username"))
			return err
		}},
		{submit: "upload_file", keep: "note_id", ok: "file_uploaded", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.attach(c, sess.UserID, text(c, "note_id"), "file")
			return err
		}},
		{submit: "delete_file", keep: "note_id", ok: "file_deleted", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.notes.DeleteFile(c.Request.Context(), sess.UserID, text(c, "note_id"), raw(c, "file_name"))
			return err
		}},
	})
}

type tasksView struct {
	SortBy        string
	HideCompleted bool
	Tasks         []model.Task
	Selected      *selectedTask
}

type selectedTask struct {
	ID       model.ID
	Subtasks []model.Subtask
}

func (s *Server) tasksPage(c *gin.Context) {
	sess := current(c)
	t := s.i18n.For(sess.Language)
	ctx := c.Request.Context()

	v := tasksView{
		SortBy:        c.DefaultQuery("sort_by", model.SortCreatedAt),
		HideCompleted: truthy(c.Query("hide_completed")),
	}
	if !model.ValidSort(v.SortBy) {
		v.SortBy = model.SortCreatedAt
	}
	tasks, err := s.tasks.List(ctx, sess.UserID, v.SortBy, v.HideCompleted)
	if err != nil {
		sess.SetFlash(s.pageMessage(t, err))
	}
	v.Tasks = tasks

	if id := sanitize.String(c.Query("task_id")); id != "" {
		subs, err := s.tasks.Subtasks(ctx, sess.UserID, id)
		if err != nil {
			sess.SetFlash(s.pageMessage(t, err))
		} else {
			v.Selected = &selectedTask{ID: model.ID(id), Subtasks: subs}
		}
	}
	s.render(c, sess, "tasks", v)
}

func (s *Server) tasksSubmit(c *gin.Context) {
	s.dispatch(c, "/tasks", []formAction{
		{submit: "create_task", ok: "task_created", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.tasks.Create(c.Request.Context(), sess.UserID,
				text(c, "title"), text(c, "description"), text(c, "shared_with"), subtaskTitles(c))
			return err
		}},
		{submit: "delete_task", ok: "task_deleted", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.tasks.Delete(c.Request.Context(), sess.UserID, text(c, "task_id"))
			return err
		}},
		{submit: "share_task", keep: "task_id", ok: "task_shared", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.tasks.Share(c.Request.Context(), sess.UserID, text(c, "task_id"), text(c, "target_username"))
			return err
		}},
		{submit: "create_subtask", keep: "task_id", ok: "subtask_created", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.tasks.CreateSubtask(c.Request.Context(), sess.UserID, text(c, "task_id"), text(c, "title"))
			return err
		}},
		{submit: "complete_subtask", keep: "task_id", ok: "subtask_completed", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.tasks.CompleteSubtask(c.Request.Context(), sess.UserID, text(c, "subtask_id"))
			return err
		}},
		{submit: "delete_subtask", keep: "task_id", ok: "subtask_deleted", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.tasks.DeleteSubtask(c.Request.Context(), sess.UserID, text(c, "subtask_id"))
			return err
		}},
	})
}

func (s *Server) profilePage(c *gin.Context) {
	sess := current(c)
	p, err := s.auth.Profile(c.Request.Context(), sess.UserID)
	if err != nil {
		sess.SetFlash(s.pageMessage(s.i18n.For(sess.Language), err))
	}
	s.render(c, sess, "profile", gin.H{"Profile": p})
}

func (s *Server) profileSubmit(c *gin.Context) {
	s.dispatch(c, "/profile", []formAction{
		{submit: "change_password", ok: "password_changed", run: func(c *gin.Context, sess *session.Session) error {
			next := raw(c, "new_password")
			if next != raw(c, "confirm_password") {
				return errPasswordsMismatch
			}
			_, err := s.auth.ChangePassword(c.Request.Context(), sess.UserID, raw(c, "old_password"), next)
			return err
		}},
		{submit: "update_settings", ok: "settings_updated", run: func(c *gin.Context, sess *session.Session) error {
			_, err := s.updateSettings(c, sess, text(c, "theme"), text(c, "language"))
			return err
		}},
	})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.sessions.Destroy(c.Request.Context(), c.Writer, current(c)); err != nil {
		s.log.Error("destroy session", zap.Error(err))
	}
	c.Redirect(http.StatusSeeOther, "/login")
}
