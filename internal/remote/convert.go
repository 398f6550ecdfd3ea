package remote

import (
	"github.com/lhoang/tasksync/internal/model"
)

// FromModel builds the wire representation of a local task for insert
// and update calls. Local-only fields (local ids, parent linkage) are
// carried as query parameters by the relevant calls, not in the body.
func FromModel(t model.Task) Task {
	rt := Task{
		Title:    t.Title,
		Notes:    t.Notes,
		Position: t.Position,
		Status:   StatusNeedsAction,
		Due:      t.DueDate,
		Updated:  t.LastUpdate,
	}
	if t.RemoteID != nil {
		rt.ID = *t.RemoteID
	}
	if t.Etag != "" {
		rt.Etag = t.Etag
	}
	if t.Completed {
		rt.Status = StatusCompleted
		rt.Completed = t.CompletedAt
	}
	return rt
}

// ApplyToModel copies the canonical remote representation onto a local
// task row: server-assigned id, etag, recomputed position, and content
// fields. Local linkage (list and parent local ids) is left untouched;
// the remote parent id is recorded for reconciliation.
func ApplyToModel(rt Task, t *model.Task) {
	id := rt.ID
	t.RemoteID = &id
	t.Etag = rt.Etag
	t.Title = rt.Title
	t.Notes = rt.Notes
	t.DueDate = rt.Due
	t.Position = rt.Position
	t.LastUpdate = rt.Updated
	t.Completed = rt.Status == StatusCompleted
	t.CompletedAt = rt.Completed
	if rt.Parent != "" {
		parent := rt.Parent
		t.ParentRemoteID = &parent
	} else {
		t.ParentRemoteID = nil
	}
}
