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

const taskColumns = `local_id, remote_id, list_local_id, parent_local_id,
	parent_remote_id, etag, title, notes, due_date, last_update,
	completed_at, completed, position`

// CreateTask inserts a new task and returns it with its assigned local id.
func (s *SQLiteStore) CreateTask(
	ctx context.Context,
	task model.Task,
) (model.Task, error) {
	if strings.TrimSpace(task.Title) == "" {
		return model.Task{}, fmt.Errorf("task title must not be empty")
	}
	if task.LastUpdate.IsZero() {
		task.LastUpdate = time.Now().UTC()
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO task (
			remote_id, list_local_id, parent_local_id, parent_remote_id,
			etag, title, notes, due_date, last_update,
			completed_at, completed, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.RemoteID, task.ListLocalID, task.ParentLocalID, task.ParentRemoteID,
		task.Etag, task.Title, task.Notes, task.DueDate, task.LastUpdate,
		task.CompletedAt, boolToInt(task.Completed), task.Position,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}

	task.LocalID, err = res.LastInsertId()
	if err != nil {
		return model.Task{}, fmt.Errorf("reading task id: %w", err)
	}
	return task, nil
}

// GetTask retrieves a single task by local id.
func (s *SQLiteStore) GetTask(ctx context.Context, localID int64) (*model.Task, error) {
	var task model.Task
	err := s.q.GetContext(ctx, &task,
		"SELECT "+taskColumns+" FROM task WHERE local_id = ?", localID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", localID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %d: %w", localID, err)
	}
	return &task, nil
}

// GetTasks retrieves every task in a list, ordered by position.
func (s *SQLiteStore) GetTasks(
	ctx context.Context,
	listLocalID int64,
) ([]model.Task, error) {
	var tasks []model.Task
	err := s.q.SelectContext(ctx, &tasks,
		"SELECT "+taskColumns+" FROM task WHERE list_local_id = ? ORDER BY position",
		listLocalID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks for list %d: %w", listLocalID, err)
	}
	return tasks, nil
}

// GetSiblings retrieves one sibling group ordered by position: the tasks
// of a list sharing the same parent (nil for the root group). Positions
// are only meaningful within such a group.
func (s *SQLiteStore) GetSiblings(
	ctx context.Context,
	listLocalID int64,
	parentLocalID *int64,
) ([]model.Task, error) {
	var tasks []model.Task
	var err error
	if parentLocalID == nil {
		err = s.q.SelectContext(ctx, &tasks,
			"SELECT "+taskColumns+` FROM task
			WHERE list_local_id = ? AND parent_local_id IS NULL
			ORDER BY position`,
			listLocalID)
	} else {
		err = s.q.SelectContext(ctx, &tasks,
			"SELECT "+taskColumns+` FROM task
			WHERE list_local_id = ? AND parent_local_id = ?
			ORDER BY position`,
			listLocalID, *parentLocalID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying siblings in list %d: %w", listLocalID, err)
	}
	return tasks, nil
}

// GetChildren retrieves the direct children of a task, ordered by position.
func (s *SQLiteStore) GetChildren(
	ctx context.Context,
	parentLocalID int64,
) ([]model.Task, error) {
	var tasks []model.Task
	err := s.q.SelectContext(ctx, &tasks,
		"SELECT "+taskColumns+" FROM task WHERE parent_local_id = ? ORDER BY position",
		parentLocalID)
	if err != nil {
		return nil, fmt.Errorf("querying children of task %d: %w", parentLocalID, err)
	}
	return tasks, nil
}

// GetCompletedTasks retrieves the completed tasks of a list, ordered by
// position (most recently completed first).
func (s *SQLiteStore) GetCompletedTasks(
	ctx context.Context,
	listLocalID int64,
) ([]model.Task, error) {
	var tasks []model.Task
	err := s.q.SelectContext(ctx, &tasks,
		"SELECT "+taskColumns+` FROM task
		WHERE list_local_id = ? AND completed = 1
		ORDER BY position`,
		listLocalID)
	if err != nil {
		return nil, fmt.Errorf("querying completed tasks for list %d: %w", listLocalID, err)
	}
	return tasks, nil
}

// GetTaskByRemoteID retrieves a task by its remote identifier.
func (s *SQLiteStore) GetTaskByRemoteID(
	ctx context.Context,
	remoteID string,
) (*model.Task, error) {
	var task model.Task
	err := s.q.GetContext(ctx, &task,
		"SELECT "+taskColumns+" FROM task WHERE remote_id = ?", remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task with remote id %q: %w", remoteID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task by remote id %q: %w", remoteID, err)
	}
	return &task, nil
}

// GetUnsyncedTasks retrieves the tasks of a list that have never been
// pushed (remote id still unset), ordered by position so the push phase
// can thread previous-sibling hints.
func (s *SQLiteStore) GetUnsyncedTasks(
	ctx context.Context,
	listLocalID int64,
) ([]model.Task, error) {
	var tasks []model.Task
	err := s.q.SelectContext(ctx, &tasks,
		"SELECT "+taskColumns+` FROM task
		WHERE list_local_id = ? AND remote_id IS NULL
		ORDER BY position`,
		listLocalID)
	if err != nil {
		return nil, fmt.Errorf("querying unsynced tasks for list %d: %w", listLocalID, err)
	}
	return tasks, nil
}

// UpdateTask updates an existing task by local id.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task model.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE task SET
			remote_id = ?, list_local_id = ?, parent_local_id = ?,
			parent_remote_id = ?, etag = ?, title = ?, notes = ?,
			due_date = ?, last_update = ?, completed_at = ?,
			completed = ?, position = ?
		WHERE local_id = ?`,
		task.RemoteID, task.ListLocalID, task.ParentLocalID,
		task.ParentRemoteID, task.Etag, task.Title, task.Notes,
		task.DueDate, task.LastUpdate, task.CompletedAt,
		boolToInt(task.Completed), task.Position,
		task.LocalID,
	)
	if err != nil {
		return fmt.Errorf("updating task %d: %w", task.LocalID, err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %d: %w", task.LocalID, ErrNotFound)
	}
	return nil
}

// DeleteTask removes a task by local id. Children are removed by the
// ON DELETE CASCADE constraint.
func (s *SQLiteStore) DeleteTask(ctx context.Context, localID int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM task WHERE local_id = ?", localID)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", localID, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %d: %w", localID, ErrNotFound)
	}
	return nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
