package model

import "time"

// Sorting identifies the display ordering preference of a task list.
// It is a local preference only and is never sent to the remote service.
type Sorting string

const (
	SortingManual  Sorting = "manual"
	SortingDueDate Sorting = "duedate"
	SortingTitle   Sorting = "title"
)

// TaskList is a locally persisted task list. LocalID is the surrogate key
// and is stable for the lifetime of the database; RemoteID is nil until
// the list has been pushed to the remote service.
type TaskList struct {
	LocalID    int64     `json:"local_id" db:"local_id"`
	RemoteID   *string   `json:"remote_id,omitempty" db:"remote_id"`
	Etag       string    `json:"etag" db:"etag"`
	Title      string    `json:"title" db:"title"`
	LastUpdate time.Time `json:"last_update" db:"last_update"`
	Sorting    Sorting   `json:"sorting" db:"sorting"`
}

// Synced reports whether the list has a remote counterpart.
func (l TaskList) Synced() bool {
	return l.RemoteID != nil && *l.RemoteID != ""
}

// Task is a locally persisted task. A task belongs to exactly one list and
// may have at most one parent task; only root tasks may themselves have
// children, so nesting never exceeds two levels.
//
// Position is a 20-digit zero-padded decimal string (see the position
// package). Positions order siblings within the same
// (ListLocalID, ParentLocalID) group only.
type Task struct {
	LocalID  int64   `json:"local_id" db:"local_id"`
	RemoteID *string `json:"remote_id,omitempty" db:"remote_id"`

	ListLocalID   int64  `json:"list_local_id" db:"list_local_id"`
	ParentLocalID *int64 `json:"parent_local_id,omitempty" db:"parent_local_id"`

	// ParentRemoteID mirrors the remote parent linkage. It is consulted
	// only while reconciling rows pulled from the remote service, never
	// for local ordering decisions.
	ParentRemoteID *string `json:"parent_remote_id,omitempty" db:"parent_remote_id"`

	Etag        string     `json:"etag" db:"etag"`
	Title       string     `json:"title" db:"title"`
	Notes       string     `json:"notes" db:"notes"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	LastUpdate  time.Time  `json:"last_update" db:"last_update"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Completed   bool       `json:"completed" db:"completed"`
	Position    string     `json:"position" db:"position"`
}

// Synced reports whether the task has a remote counterpart.
func (t Task) Synced() bool {
	return t.RemoteID != nil && *t.RemoteID != ""
}

// IsRoot reports whether the task sits at the top level of its list.
func (t Task) IsRoot() bool {
	return t.ParentLocalID == nil
}

// TombstoneKind distinguishes the entity type a tombstone refers to.
type TombstoneKind string

const (
	TombstoneList TombstoneKind = "list"
	TombstoneTask TombstoneKind = "task"
)

// Tombstone records the remote identity of a locally deleted record so
// that the deletion can still be pushed after a restart. Rows are written
// in the same transaction as the local delete and cleared once the
// remote delete has been acknowledged.
type Tombstone struct {
	ID           int64         `json:"id" db:"id"`
	Kind         TombstoneKind `json:"kind" db:"kind"`
	ListRemoteID string        `json:"list_remote_id" db:"list_remote_id"`
	RemoteID     string        `json:"remote_id" db:"remote_id"`
	DeletedAt    time.Time     `json:"deleted_at" db:"deleted_at"`
}
