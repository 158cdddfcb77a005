package service

import (
	"context"
	"strings"

	"github.com/and161185/noteskeeper/internal/errs"
	"github.com/and161185/noteskeeper/internal/gateway"
	"github.com/and161185/noteskeeper/internal/model"
)

// NoteService defines note and attachment operations for the current user.
type NoteService interface {
	List(ctx context.Context, userID, sortBy string) ([]model.Note, error)
	Shared(ctx context.Context, userID string) ([]model.Note, error)
	Create(ctx context.Context, userID, title, content string) (model.Ack, error)
	Edit(ctx context.Context, userID, noteID, title, content string) (model.Ack, error)
	Delete(ctx context.Context, userID, noteID string) (model.Ack, error)
	Share(ctx context.Context, userID, noteID, targetUsername string) (model.Ack, error)
	Files(ctx context.Context, userID, noteID string) ([]string, error)
	// Attach hands spooled uploads to the backend as `tmp:name` pairs.
	Attach(ctx context.Context, userID, noteID string, files []model.Upload) (model.Ack, error)
	DeleteFile(ctx context.Context, userID, noteID, fileName string) (model.Ack, error)
}

type NoteServiceImpl struct {
	gw gateway.Invoker
}

// NewNoteService constructs NoteService.
func NewNoteService(gw gateway.Invoker) *NoteServiceImpl { return &NoteServiceImpl{gw: gw} }

// List returns the user's notes ordered by sortBy (created_at when empty).
func (s *NoteServiceImpl) List(ctx context.Context, userID, sortBy string) ([]model.Note, error) {
	if sortBy == "" {
		sortBy = model.SortCreatedAt
	}
	if !model.ValidSort(sortBy) {
		return nil, errs.Invalid("Invalid sort_by value")
	}
	var out struct {
		Notes []model.Note `json:"notes"`
	}
	if err := call(ctx, s.gw, &out, gateway.CmdGetNotes, userID, sortBy); err != nil {
		return nil, err
	}
	return out.Notes, nil
}

// Shared returns notes other users shared with userID.
func (s *NoteServiceImpl) Shared(ctx context.Context, userID string) ([]model.Note, error) {
	var out struct {
		Notes []model.Note `json:"shared_notes"`
	}
	if err := call(ctx, s.gw, &out, gateway.CmdGetSharedNotes, userID); err != nil {
		return nil, err
	}
	return out.Notes, nil
}

func (s *NoteServiceImpl) Create(ctx context.Context, userID, title, content string) (model.Ack, error) {
	if title == "" || content == "" {
		return model.Ack{}, errs.Invalid("Title and content are required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdCreateNote, userID, title, content)
	return ack, err
}

func (s *NoteServiceImpl) Edit(ctx context.Context, userID, noteID, title, content string) (model.Ack, error) {
	if noteID == "" || title == "" || content == "" {
		return model.Ack{}, errs.Invalid("Note ID, title, and content are required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdEditNote, userID, noteID, title, content)
	return ack, err
}

func (s *NoteServiceImpl) Delete(ctx context.Context, userID, noteID string) (model.Ack, error) {
	if noteID == "" {
		return model.Ack{}, errs.Invalid("Note ID is required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdDeleteNote, userID, noteID)
	return ack, err
}

func (s *NoteServiceImpl) Share(ctx context.Context, userID, noteID, targetUsername string) (model.Ack, error) {
	if noteID == "" || targetUsername == "" {
		return model.Ack{}, errs.Invalid("Note ID and username are required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdShareNote, userID, noteID, targetUsername)
	return ack, err
}

func (s *NoteServiceImpl) Files(ctx context.Context, userID, noteID string) ([]string, error) {
	if noteID == "" {
		return nil, errs.Invalid("Note ID is required")
	}
	var out struct {
		Files []string `json:"files"`
	}
	if err := call(ctx, s.gw, &out, gateway.CmdGetFiles, userID, noteID); err != nil {
		return nil, err
	}
	return out.Files, nil
}

func (s *NoteServiceImpl) Attach(ctx context.Context, userID, noteID string, files []model.Upload) (model.Ack, error) {
	if noteID == "" {
		return model.Ack{}, errs.Invalid("Note ID is required")
	}
	if len(files) == 0 {
		return model.Ack{}, errs.Invalid("No valid files uploaded")
	}
	pairs := make([]string, 0, len(files))
	for _, f := range files {
		if f.Name == "" || strings.ContainsAny(f.Name, ",:") || strings.ContainsAny(f.TempPath, ",:") {
			return model.Ack{}, errs.Invalid("Invalid file name")
		}
		pairs = append(pairs, f.TempPath+":"+f.Name)
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdAttachFile, userID, noteID, strings.Join(pairs, ","))
	return ack, err
}

func (s *NoteServiceImpl) DeleteFile(ctx context.Context, userID, noteID, fileName string) (model.Ack, error) {
	if noteID == "" || fileName == "" {
		return model.Ack{}, errs.Invalid("Note ID and file name are required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdDeleteFile, userID, noteID, fileName)
	return ack, err
}
