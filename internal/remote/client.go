// Package remote defines the contract with the remote task service and
// provides its REST implementation. The engine treats the service as an
// external collaborator: every call either returns the canonical remote
// representation (server-assigned id, etag, and recomputed position) or
// a classified error.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TaskList is the remote representation of a task list.
type TaskList struct {
	ID      string    `json:"id"`
	Etag    string    `json:"etag"`
	Title   string    `json:"title"`
	Updated time.Time `json:"updated"`
}

// Task status values used on the wire.
const (
	StatusNeedsAction = "needsAction"
	StatusCompleted   = "completed"
)

// Task is the remote representation of a task. Position is the same
// 20-digit zero-padded decimal string the local engine produces; the two
// must stay comparable.
type Task struct {
	ID        string     `json:"id"`
	Etag      string     `json:"etag"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	Parent    string     `json:"parent,omitempty"`
	Position  string     `json:"position"`
	Status    string     `json:"status"`
	Due       *time.Time `json:"due,omitempty"`
	Completed *time.Time `json:"completed,omitempty"`
	Updated   time.Time  `json:"updated"`
	Deleted   bool       `json:"deleted,omitempty"`
	Hidden    bool       `json:"hidden,omitempty"`
}

// ListTasksOptions filters a task listing.
type ListTasksOptions struct {
	// UpdatedSince limits results to tasks modified at or after the
	// given time. Zero means no filter (full listing).
	UpdatedSince time.Time

	// ShowCompleted includes completed tasks in the listing.
	ShowCompleted bool

	// ShowHidden includes tasks the service has hidden from default
	// views (completed tasks cleared from the UI).
	ShowHidden bool
}

// Client is the remote task-service contract consumed by the mutation
// layer and the sync engine. Implementations classify failures as
// *AuthError, *NotFoundError, *ValidationError, or a wrapped transport
// error.
type Client interface {
	ListTaskLists(ctx context.Context) ([]TaskList, error)

	// DefaultTaskList returns the account's default list. The service
	// reports this explicitly; it is never inferred from id shape.
	DefaultTaskList(ctx context.Context) (*TaskList, error)

	InsertTaskList(ctx context.Context, title string) (*TaskList, error)
	UpdateTaskList(ctx context.Context, list TaskList) (*TaskList, error)
	DeleteTaskList(ctx context.Context, listID string) error

	ListTasks(ctx context.Context, listID string, opts ListTasksOptions) ([]Task, error)

	// InsertTask creates a task in the given list. parentID and
	// previousID are optional ordering hints: the new task becomes a
	// child of parentID (or a root task if empty) and is placed after
	// previousID (or first if empty).
	InsertTask(ctx context.Context, listID string, task Task, parentID, previousID string) (*Task, error)

	UpdateTask(ctx context.Context, listID string, task Task) (*Task, error)
	DeleteTask(ctx context.Context, listID, taskID string) error

	// MoveTask repositions a task. destinationListID moves it to another
	// list; parentID and previousID behave as in InsertTask.
	MoveTask(ctx context.Context, listID, taskID, parentID, previousID, destinationListID string) (*Task, error)

	// ClearCompleted hides all completed tasks of a list.
	ClearCompleted(ctx context.Context, listID string) error
}

// AuthError indicates that authentication has failed or expired.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// NotFoundError indicates that the referenced remote entity is gone.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("remote entity not found: %s", e.Resource)
}

// ValidationError indicates the service rejected a request as malformed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// IsAuth reports whether err (or any error in its chain) is an AuthError.
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNotFound reports whether err means the remote entity is gone.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// IsValidation reports whether err is a request-validation failure.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
