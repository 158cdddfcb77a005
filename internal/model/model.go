// Package model defines the typed views of entities owned by the external backend process.
package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Sort orders accepted by list commands.
const (
	SortCreatedAt = "created_at"
	SortTitle     = "title"
)

// Themes and languages stored in the session and profile.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	LangRU = "ru"
	LangEN = "en"
)

// ValidSort reports whether s is an accepted sort_by value.
func ValidSort(s string) bool { return s == SortCreatedAt || s == SortTitle }

// ValidTheme reports whether s is a known theme.
func ValidTheme(s string) bool { return s == ThemeLight || s == ThemeDark }

// ValidLanguage reports whether s is a supported UI language.
func ValidLanguage(s string) bool { return s == LangRU || s == LangEN }

// ID is an entity identifier; the backend emits it as a JSON string or number.
type ID string

// UnmarshalJSON accepts both JSON strings and numbers.
func (id *ID) UnmarshalJSON(b []byte) error {
	v, err := flexString(b)
	*id = ID(v)
	return err
}

func (id ID) String() string { return string(id) }

// Stamp is a creation time as reported by the backend: either an ISO string or a unix float.
type Stamp string

// UnmarshalJSON accepts both JSON strings and numbers.
func (s *Stamp) UnmarshalJSON(b []byte) error {
	v, err := flexString(b)
	*s = Stamp(v)
	return err
}

// flexString decodes a JSON string, number or null into its string form.
func flexString(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	if b[0] == '"' {
		var v string
		err := json.Unmarshal(b, &v)
		return v, err
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// Note is a user note.
type Note struct {
	ID        ID       `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content,omitempty"`
	Preview   string   `json:"preview,omitempty"`
	CreatedAt Stamp    `json:"created_at,omitempty"`
	Owner     string   `json:"owner,omitempty"` // set for notes shared with the user
	Files     []string `json:"files,omitempty"`
}

// Task is a to-do item with optional subtasks.
type Task struct {
	ID          ID     `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	CreatedAt   Stamp  `json:"created_at,omitempty"`
	SharedWith  string `json:"shared_with,omitempty"`
}

// Completed reports whether the task is finished.
func (t Task) Completed() bool { return t.Status == "completed" }

// Subtask is a checklist entry of a task.
type Subtask struct {
	ID        ID     `json:"subtask_id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Profile is the account view returned by get_username.
type Profile struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Theme    string `json:"theme,omitempty"`
	Language string `json:"language,omitempty"`
}

// Ack is a plain confirmation with an optional created id.
type Ack struct {
	Message   string `json:"message"`
	UserID    ID     `json:"user_id,omitempty"`
	NoteID    ID     `json:"note_id,omitempty"`
	TaskID    ID     `json:"task_id,omitempty"`
	SubtaskID ID     `json:"subtask_id,omitempty"`
}

// Login is a successful authentication answer.
type Login struct {
	Message string `json:"message"`
	UserID  ID     `json:"user_id"`
	Token   string `json:"token"`
}

// Upload is a spooled file handed to attach_file.
type Upload struct {
	TempPath string
	Name     string
	Size     int64
}
