package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/noteskeeper/internal/errs"
	"github.com/and161185/noteskeeper/internal/gateway"
	"github.com/and161185/noteskeeper/internal/model"
)

func TestTasks_ListHideCompleted(t *testing.T) {
	t.Parallel()

	f := newFake(map[string]string{
		gateway.CmdGetTasks: `{"tasks":[
			{"task_id":1,"title":"a","status":"pending","created_at":"2024-01-01T10:00:00"},
			{"task_id":2,"title":"b","status":"completed","created_at":"2024-01-02T10:00:00"}]}`,
	})
	s := NewTaskService(f, zaptest.NewLogger(t))
	ctx := context.Background()

	all, err := s.List(ctx, "7", "title", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, []string{"7", "title", "0"}, f.last().args)

	open, err := s.List(ctx, "7", "", true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, model.ID("1"), open[0].ID)
	require.Equal(t, []string{"7", "created_at", "1"}, f.last().args)

	_, err = s.List(ctx, "7", "status", false)
	require.EqualError(t, err, "Invalid sort_by value")
}

func TestTasks_CreateWithSubtasks(t *testing.T) {
	t.Parallel()

	f := newFake(map[string]string{
		gateway.CmdCreateTask:    `{"message":"Task created","task_id":"t1"}`,
		gateway.CmdCreateSubtask: `{"message":"Subtask created","subtask_id":1}`,
	})
	s := NewTaskService(f, zaptest.NewLogger(t))

	_, err := s.Create(context.Background(), "7", "", "d", "", nil)
	require.EqualError(t, err, "Title is required")

	ack, err := s.Create(context.Background(), "7", "trip", "pack", "bob", []string{"socks", "", "tent"})
	require.NoError(t, err)
	require.Equal(t, model.ID("t1"), ack.TaskID)
	require.Equal(t, 2, f.count(gateway.CmdCreateSubtask))
	require.Equal(t, []string{"7", "t1", "tent"}, f.last().args)
}

func TestTasks_SubtaskFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newFake(map[string]string{
		gateway.CmdCreateTask:    `{"message":"Task created","task_id":3}`,
		gateway.CmdCreateSubtask: `{"error":"Subtask title must be 1-100 characters long"}`,
	})
	ack, err := NewTaskService(f, zaptest.NewLogger(t)).Create(context.Background(), "7", "t", "", "", []string{"x"})
	require.NoError(t, err)
	require.Equal(t, "Task created", ack.Message)
}

func TestTasks_SubtaskOps(t *testing.T) {
	t.Parallel()

	f := newFake(map[string]string{
		gateway.CmdGetSubtasks:     `{"subtasks":[{"subtask_id":1,"title":"a","completed":true}]}`,
		gateway.CmdCompleteSubtask: `{"message":"Subtask marked as completed"}`,
		gateway.CmdDeleteSubtask:   `{"error":"Subtask not found"}`,
		gateway.CmdDeleteTask:      `{"message":"Task deleted"}`,
		gateway.CmdShareTask:       `{"message":"Task shared"}`,
	})
	s := NewTaskService(f, zaptest.NewLogger(t))
	ctx := context.Background()

	subs, err := s.Subtasks(ctx, "7", "3")
	require.NoError(t, err)
	require.True(t, subs[0].Completed)

	_, err = s.CompleteSubtask(ctx, "7", "")
	require.EqualError(t, err, "Subtask ID is required")
	_, err = s.CompleteSubtask(ctx, "7", "1")
	require.NoError(t, err)

	_, err = s.DeleteSubtask(ctx, "7", "1")
	var de *errs.DomainError
	require.ErrorAs(t, err, &de)

	_, err = s.CreateSubtask(ctx, "7", "3", "")
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Delete(ctx, "7", "3")
	require.NoError(t, err)
	_, err = s.Share(ctx, "7", "3", "bob")
	require.NoError(t, err)
}
