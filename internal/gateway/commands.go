package gateway

// Param is a positional parameter of a backend command.
type Param struct {
	Name string
	// Secret params are redacted in the command log.
	Secret bool
}

// Command describes a backend command and its positional parameters.
type Command struct {
	Name   string
	Params []Param
	// QuietOutput commands have their output omitted from the command log.
	QuietOutput bool
}

// Backend command names.
const (
	CmdRegister             = "register"
	CmdLogin                = "login"
	CmdGetUsername          = "get_username"
	CmdChangePassword       = "change_password"
	CmdUpdateSettings       = "update_settings"
	CmdRequestPasswordReset = "request_password_reset"
	CmdResetPassword        = "reset_password"

	CmdGetNotes       = "get_notes"
	CmdCreateNote     = "create_note"
	CmdEditNote       = "edit_note"
	CmdDeleteNote     = "delete_note"
	CmdShareNote      = "share_note"
	CmdGetSharedNotes = "get_shared_notes"
	CmdGetFiles       = "get_files"
	CmdAttachFile     = "attach_file"
	CmdDeleteFile     = "delete_file"

	CmdGetTasks        = "get_tasks"
	CmdCreateTask      = "create_task"
	CmdDeleteTask      = "delete_task"
	CmdShareTask       = "share_task"
	CmdGetSubtasks     = "get_subtasks"
	CmdCreateSubtask   = "create_subtask"
	CmdCompleteSubtask = "complete_subtask"
	CmdDeleteSubtask   = "delete_subtask"
)

func p(name string) Param                  { return Param{Name: name} }
func secret(name string) Param             { return Param{Name: name, Secret: true} }
func cmd(name string, ps ...Param) Command { return Command{Name: name, Params: ps} }

// DefaultCommands is the command table of the notes backend.
func DefaultCommands() map[string]Command {
	list := []Command{
		cmd(CmdRegister, p("username"), secret("password"), p("email")),
		{Name: CmdLogin, Params: []Param{p("username"), secret("password")}, QuietOutput: true},
		cmd(CmdGetUsername, p("user_id")),
		cmd(CmdChangePassword, p("user_id"), secret("old_password"), secret("new_password")),
		cmd(CmdUpdateSettings, p("user_id"), p("theme"), p("language")),
		{Name: CmdRequestPasswordReset, Params: []Param{p("email")}, QuietOutput: true},
		cmd(CmdResetPassword, secret("token"), secret("new_password")),

		cmd(CmdGetNotes, p("user_id"), p("sort_by")),
		cmd(CmdCreateNote, p("user_id"), p("title"), p("content")),
		cmd(CmdEditNote, p("user_id"), p("note_id"), p("title"), p("content")),
		cmd(CmdDeleteNote, p("user_id"), p("note_id")),
		cmd(CmdShareNote, p("user_id"), p("note_id"), p("target_username")),
		cmd(CmdGetSharedNotes, p("user_id")),
		cmd(CmdGetFiles, p("user_id"), p("note_id")),
		cmd(CmdAttachFile, p("user_id"), p("note_id"), p("files")),
		cmd(CmdDeleteFile, p("user_id"), p("note_id"), p("file_name")),

		cmd(CmdGetTasks, p("user_id"), p("sort_by"), p("hide_completed")),
		cmd(CmdCreateTask, p("user_id"), p("title"), p("description"), p("shared_with")),
		cmd(CmdDeleteTask, p("user_id"), p("task_id")),
		cmd(CmdShareTask, p("user_id"), p("task_id"), p("target_username")),
		cmd(CmdGetSubtasks, p("user_id"), p("task_id")),
		cmd(CmdCreateSubtask, p("user_id"), p("task_id"), p("title")),
		cmd(CmdCompleteSubtask, p("user_id"), p("subtask_id")),
		cmd(CmdDeleteSubtask, p("user_id"), p("subtask_id")),
	}
	m := make(map[string]Command, len(list))
	for _, c := range list {
		m[c.Name] = c
	}
	return m
}

// redact returns args with secret positions replaced.
func (c Command) redact(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if i < len(c.Params) && c.Params[i].Secret {
			out[i] = "***"
			continue
		}
		out[i] = a
	}
	return out
}
