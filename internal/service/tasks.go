package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/noteskeeper/internal/errs"
	"github.com/and161185/noteskeeper/internal/gateway"
	"github.com/and161185/noteskeeper/internal/model"
)

// TaskService defines task and subtask operations for the current user.
type TaskService interface {
	List(ctx context.Context, userID, sortBy string, hideCompleted bool) ([]model.Task, error)
	// Create adds a task, then each non-empty subtask title; subtask failures are logged, not returned.
	Create(ctx context.Context, userID, title, description, sharedWith string, subtasks []string) (model.Ack, error)
	Delete(ctx context.Context, userID, taskID string) (model.Ack, error)
	Share(ctx context.Context, userID, taskID, targetUsername string) (model.Ack, error)
	Subtasks(ctx context.Context, userID, taskID string) ([]model.Subtask, error)
	CreateSubtask(ctx context.Context, userID, taskID, title string) (model.Ack, error)
	CompleteSubtask(ctx context.Context, userID, subtaskID string) (model.Ack, error)
	DeleteSubtask(ctx context.Context, userID, subtaskID string) (model.Ack, error)
}

type TaskServiceImpl struct {
	gw  gateway.Invoker
	log *zap.Logger
}

// NewTaskService constructs TaskService.
func NewTaskService(gw gateway.Invoker, log *zap.Logger) *TaskServiceImpl {
	return &TaskServiceImpl{gw: gw, log: log}
}

// List returns the user's tasks; completed ones are dropped when hideCompleted is set.
func (s *TaskServiceImpl) List(ctx context.Context, userID, sortBy string, hideCompleted bool) ([]model.Task, error) {
	if sortBy == "" {
		sortBy = model.SortCreatedAt
	}
	if !model.ValidSort(sortBy) {
		return nil, errs.Invalid("Invalid sort_by value")
	}
	hide := "0"
	if hideCompleted {
		hide = "1"
	}
	var out struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := call(ctx, s.gw, &out, gateway.CmdGetTasks, userID, sortBy, hide); err != nil {
		return nil, err
	}
	if !hideCompleted {
		return out.Tasks, nil
	}
	// the backend may ignore the flag
	kept := out.Tasks[:0]
	for _, t := range out.Tasks {
		if !t.Completed() {
			kept = append(kept, t)
		}
	}
	return kept, nil
}

func (s *TaskServiceImpl) Create(ctx context.Context, userID, title, description, sharedWith string, subtasks []string) (model.Ack, error) {
	if title == "" {
		return model.Ack{}, errs.Invalid("Title is required")
	}
	var ack model.Ack
	if err := call(ctx, s.gw, &ack, gateway.CmdCreateTask, userID, title, description, sharedWith); err != nil {
		return model.Ack{}, err
	}
	if ack.TaskID == "" {
		return ack, nil
	}
	for _, st := range subtasks {
		if st == "" {
			continue
		}
		if err := call(ctx, s.gw, nil, gateway.CmdCreateSubtask, userID, ack.TaskID.String(), st); err != nil {
			s.log.Warn("subtask not created",
				zap.String("task_id", ack.TaskID.String()),
				zap.Error(err),
			)
		}
	}
	return ack, nil
}

func (s *TaskServiceImpl) Delete(ctx context.Context, userID, taskID string) (model.Ack, error) {
	if taskID == "" {
		return model.Ack{}, errs.Invalid("Task ID is required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdDeleteTask, userID, taskID)
	return ack, err
}

func (s *TaskServiceImpl) Share(ctx context.Context, userID, taskID, targetUsername string) (model.Ack, error) {
	if taskID == "" || targetUsername == "" {
		return model.Ack{}, errs.Invalid("Task ID and username are required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdShareTask, userID, taskID, targetUsername)
	return ack, err
}

func (s *TaskServiceImpl) Subtasks(ctx context.Context, userID, taskID string) ([]model.Subtask, error) {
	if taskID == "" {
		return nil, errs.Invalid("Task ID is required")
	}
	var out struct {
		Subtasks []model.Subtask `json:"subtasks"`
	}
	if err := call(ctx, s.gw, &out, gateway.CmdGetSubtasks, userID, taskID); err != nil {
		return nil, err
	}
	return out.Subtasks, nil
}

func (s *TaskServiceImpl) CreateSubtask(ctx context.Context, userID, taskID, title string) (model.Ack, error) {
	if taskID == "" || title == "" {
		return model.Ack{}, errs.Invalid("Task ID and title are required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdCreateSubtask, userID, taskID, title)
	return ack, err
}

func (s *TaskServiceImpl) CompleteSubtask(ctx context.Context, userID, subtaskID string) (model.Ack, error) {
	if subtaskID == "" {
		return model.Ack{}, errs.Invalid("Subtask ID is required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdCompleteSubtask, userID, subtaskID)
	return ack, err
}

func (s *TaskServiceImpl) DeleteSubtask(ctx context.Context, userID, subtaskID string) (model.Ack, error) {
	if subtaskID == "" {
		return model.Ack{}, errs.Invalid("Subtask ID is required")
	}
	var ack model.Ack
	err := call(ctx, s.gw, &ack, gateway.CmdDeleteSubtask, userID, subtaskID)
	return ack, err
}
