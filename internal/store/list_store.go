package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lhoang/tasksync/internal/model"
)

const taskListColumns = "local_id, remote_id, etag, title, last_update, sorting"

// CreateTaskList inserts a new task list and returns it with its
// assigned local id.
func (s *SQLiteStore) CreateTaskList(
	ctx context.Context,
	list model.TaskList,
) (model.TaskList, error) {
	if strings.TrimSpace(list.Title) == "" {
		return model.TaskList{}, fmt.Errorf("task list title must not be empty")
	}
	if list.Sorting == "" {
		list.Sorting = model.SortingManual
	}
	if list.LastUpdate.IsZero() {
		list.LastUpdate = time.Now().UTC()
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO task_list (remote_id, etag, title, last_update, sorting)
		VALUES (?, ?, ?, ?, ?)`,
		list.RemoteID, list.Etag, list.Title, list.LastUpdate, list.Sorting,
	)
	if err != nil {
		return model.TaskList{}, fmt.Errorf("creating task list: %w", err)
	}

	list.LocalID, err = res.LastInsertId()
	if err != nil {
		return model.TaskList{}, fmt.Errorf("reading task list id: %w", err)
	}
	return list, nil
}

// GetTaskList retrieves a single task list by local id.
func (s *SQLiteStore) GetTaskList(
	ctx context.Context,
	localID int64,
) (*model.TaskList, error) {
	var list model.TaskList
	err := s.q.GetContext(ctx, &list,
		"SELECT "+taskListColumns+" FROM task_list WHERE local_id = ?", localID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task list %d: %w", localID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task list %d: %w", localID, err)
	}
	return &list, nil
}

// GetTaskLists retrieves all task lists ordered by title.
func (s *SQLiteStore) GetTaskLists(ctx context.Context) ([]model.TaskList, error) {
	var lists []model.TaskList
	err := s.q.SelectContext(ctx, &lists,
		"SELECT "+taskListColumns+" FROM task_list ORDER BY title")
	if err != nil {
		return nil, fmt.Errorf("querying task lists: %w", err)
	}
	return lists, nil
}

// GetTaskListByRemoteID retrieves a task list by its remote identifier.
func (s *SQLiteStore) GetTaskListByRemoteID(
	ctx context.Context,
	remoteID string,
) (*model.TaskList, error) {
	var list model.TaskList
	err := s.q.GetContext(ctx, &list,
		"SELECT "+taskListColumns+" FROM task_list WHERE remote_id = ?", remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task list with remote id %q: %w", remoteID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task list by remote id %q: %w", remoteID, err)
	}
	return &list, nil
}

// GetUnsyncedTaskLists retrieves lists that have never been pushed
// (remote id still unset).
func (s *SQLiteStore) GetUnsyncedTaskLists(ctx context.Context) ([]model.TaskList, error) {
	var lists []model.TaskList
	err := s.q.SelectContext(ctx, &lists,
		"SELECT "+taskListColumns+" FROM task_list WHERE remote_id IS NULL ORDER BY local_id")
	if err != nil {
		return nil, fmt.Errorf("querying unsynced task lists: %w", err)
	}
	return lists, nil
}

// UpdateTaskList updates an existing task list by local id.
func (s *SQLiteStore) UpdateTaskList(ctx context.Context, list model.TaskList) error {
	if strings.TrimSpace(list.Title) == "" {
		return fmt.Errorf("task list title must not be empty")
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE task_list SET
			remote_id = ?, etag = ?, title = ?, last_update = ?, sorting = ?
		WHERE local_id = ?`,
		list.RemoteID, list.Etag, list.Title, list.LastUpdate, list.Sorting,
		list.LocalID,
	)
	if err != nil {
		return fmt.Errorf("updating task list %d: %w", list.LocalID, err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task list %d: %w", list.LocalID, ErrNotFound)
	}
	return nil
}

// DeleteTaskList removes a task list by local id. Tasks in the list are
// removed by the ON DELETE CASCADE constraint.
func (s *SQLiteStore) DeleteTaskList(ctx context.Context, localID int64) error {
	res, err := s.q.ExecContext(ctx,
		"DELETE FROM task_list WHERE local_id = ?", localID)
	if err != nil {
		return fmt.Errorf("deleting task list %d: %w", localID, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task list %d: %w", localID, ErrNotFound)
	}
	return nil
}
