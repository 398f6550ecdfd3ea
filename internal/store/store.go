package store

import (
	"context"
	"errors"
	"time"

	"github.com/lhoang/tasksync/internal/model"
)

// ErrNotFound is returned (wrapped) when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for task lists, tasks, delete
// tombstones, and the sync engine's own state.
//
// WithTx runs fn against a store bound to a single transaction; every
// multi-step mutation (delete plus sibling recompute, indent plus two
// recomputes, push bookkeeping) must go through it so a crash can never
// leave positions half-updated.
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error

	// === Task lists ===

	CreateTaskList(ctx context.Context, list model.TaskList) (model.TaskList, error)
	GetTaskList(ctx context.Context, localID int64) (*model.TaskList, error)
	GetTaskLists(ctx context.Context) ([]model.TaskList, error)
	GetTaskListByRemoteID(ctx context.Context, remoteID string) (*model.TaskList, error)
	GetUnsyncedTaskLists(ctx context.Context) ([]model.TaskList, error)
	UpdateTaskList(ctx context.Context, list model.TaskList) error
	DeleteTaskList(ctx context.Context, localID int64) error

	// === Tasks ===

	CreateTask(ctx context.Context, task model.Task) (model.Task, error)
	GetTask(ctx context.Context, localID int64) (*model.Task, error)
	GetTasks(ctx context.Context, listLocalID int64) ([]model.Task, error)
	GetSiblings(ctx context.Context, listLocalID int64, parentLocalID *int64) ([]model.Task, error)
	GetChildren(ctx context.Context, parentLocalID int64) ([]model.Task, error)
	GetCompletedTasks(ctx context.Context, listLocalID int64) ([]model.Task, error)
	GetTaskByRemoteID(ctx context.Context, remoteID string) (*model.Task, error)
	GetUnsyncedTasks(ctx context.Context, listLocalID int64) ([]model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) error
	DeleteTask(ctx context.Context, localID int64) error

	// === Tombstones ===

	AddTombstone(ctx context.Context, ts model.Tombstone) error
	GetTombstones(ctx context.Context) ([]model.Tombstone, error)
	DeleteTombstone(ctx context.Context, id int64) error
	DeleteTombstoneForRemoteID(ctx context.Context, kind model.TombstoneKind, remoteID string) error

	// === Sync state ===

	// LastSync returns the timestamp of the last fully successful sync
	// pass, or nil if no pass has ever completed (forcing a full pull).
	LastSync(ctx context.Context) (*time.Time, error)
	SetLastSync(ctx context.Context, t time.Time) error
}

// IsNotFound reports whether err (or its chain) means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
