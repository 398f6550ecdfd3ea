// Package tasks implements the user-facing mutation operations. Every
// operation is local-first: the local store is updated synchronously
// inside a single transaction and treated as ground truth, then a
// mirroring remote call is attempted. Remote failures are consumed and
// logged, never returned; the local record is the durable intent picked
// up by the next sync pass. Only structural failures against local
// state (missing ids, illegal indent targets) propagate to the caller.
package tasks

import (
	"context"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/lhoang/tasksync/internal/model"
	"github.com/lhoang/tasksync/internal/position"
	"github.com/lhoang/tasksync/internal/remote"
	"github.com/lhoang/tasksync/internal/store"
)

// Service exposes the mutation operations over the local store and the
// remote task service.
type Service struct {
	store  store.Store
	remote remote.Client

	// now is the clock used for timestamps; replaced in tests.
	now func() time.Time
}

// NewService creates a mutation service.
func NewService(st store.Store, client remote.Client) *Service {
	return &Service{store: st, remote: client, now: time.Now}
}

// consumeRemoteError implements the best-effort mirror policy: the
// failure is logged for diagnostics and otherwise discarded, because the
// local store remains authoritative and the next sync pass retries.
func consumeRemoteError(op string, err error) {
	if err == nil {
		return
	}
	log.Printf("tasks: remote %s failed, keeping local state for next sync: %v", op, err)
}

// === Task list operations ===

// CreateTaskList inserts a new list locally and mirrors it remotely.
func (s *Service) CreateTaskList(ctx context.Context, title string) (model.TaskList, error) {
	list, err := s.store.CreateTaskList(ctx, model.TaskList{
		Title:      title,
		Sorting:    model.SortingManual,
		LastUpdate: s.now().UTC(),
	})
	if err != nil {
		return model.TaskList{}, err
	}

	created, err := s.remote.InsertTaskList(ctx, title)
	if err != nil {
		consumeRemoteError("insert task list", err)
		return list, nil
	}
	list.RemoteID = &created.ID
	list.Etag = created.Etag
	if err := s.store.UpdateTaskList(ctx, list); err != nil {
		return model.TaskList{}, fmt.Errorf("attaching remote id to list %d: %w", list.LocalID, err)
	}
	return list, nil
}

// DeleteTaskList removes a list and all its tasks. If the list was known
// remotely, a tombstone is written in the same transaction so the remote
// delete survives a restart; the tombstone is cleared once the remote
// delete is acknowledged.
func (s *Service) DeleteTaskList(ctx context.Context, listID int64) error {
	list, err := s.getList(ctx, listID)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(st store.Store) error {
		if list.Synced() {
			ts := model.Tombstone{
				Kind:      model.TombstoneList,
				RemoteID:  *list.RemoteID,
				DeletedAt: s.now().UTC(),
			}
			if err := st.AddTombstone(ctx, ts); err != nil {
				return err
			}
		}
		return st.DeleteTaskList(ctx, listID)
	})
	if err != nil {
		return err
	}

	if list.Synced() {
		err := s.remote.DeleteTaskList(ctx, *list.RemoteID)
		if err != nil && !remote.IsNotFound(err) {
			consumeRemoteError("delete task list", err)
			return nil
		}
		s.clearTombstone(ctx, model.TombstoneList, *list.RemoteID)
	}
	return nil
}

// RenameTaskList changes a list's title.
func (s *Service) RenameTaskList(ctx context.Context, listID int64, title string) error {
	list, err := s.getList(ctx, listID)
	if err != nil {
		return err
	}

	list.Title = title
	list.LastUpdate = s.now().UTC()
	if err := s.store.UpdateTaskList(ctx, *list); err != nil {
		return err
	}

	if list.Synced() {
		updated, err := s.remote.UpdateTaskList(ctx, remote.TaskList{
			ID:    *list.RemoteID,
			Etag:  list.Etag,
			Title: list.Title,
		})
		if err != nil {
			consumeRemoteError("rename task list", err)
			return nil
		}
		list.Etag = updated.Etag
		if err := s.store.UpdateTaskList(ctx, *list); err != nil {
			return err
		}
	}
	return nil
}

// SortBy updates a list's display ordering preference. The preference is
// local-only and is never mirrored.
func (s *Service) SortBy(ctx context.Context, listID int64, mode model.Sorting) error {
	list, err := s.getList(ctx, listID)
	if err != nil {
		return err
	}
	list.Sorting = mode
	return s.store.UpdateTaskList(ctx, *list)
}

// DefaultList resolves the account's remote default list to its local
// row. The service reports the default explicitly; it is never inferred
// from id shape. The remote call is required here, so unlike the
// mutation mirrors its failure propagates.
func (s *Service) DefaultList(ctx context.Context) (*model.TaskList, error) {
	rl, err := s.remote.DefaultTaskList(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving default task list: %w", err)
	}
	list, err := s.store.GetTaskListByRemoteID(ctx, rl.ID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ClearCompletedTasks deletes every completed task of a list. Remote
// deletes for remotely-known tasks are issued concurrently afterwards;
// each one is independent and best-effort.
func (s *Service) ClearCompletedTasks(ctx context.Context, listID int64) error {
	list, err := s.getList(ctx, listID)
	if err != nil {
		return err
	}

	completed, err := s.store.GetCompletedTasks(ctx, listID)
	if err != nil {
		return err
	}
	if len(completed) == 0 {
		return nil
	}

	err = s.store.WithTx(ctx, func(st store.Store) error {
		for _, t := range completed {
			if list.Synced() && t.Synced() {
				ts := model.Tombstone{
					Kind:         model.TombstoneTask,
					ListRemoteID: *list.RemoteID,
					RemoteID:     *t.RemoteID,
					DeletedAt:    s.now().UTC(),
				}
				if err := st.AddTombstone(ctx, ts); err != nil {
					return err
				}
			}
			// A completed child may already be gone if its parent was
			// deleted first in this loop (ON DELETE CASCADE).
			if err := st.DeleteTask(ctx, t.LocalID); err != nil && !store.IsNotFound(err) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !list.Synced() {
		return nil
	}

	var wg gosync.WaitGroup
	for _, t := range completed {
		if !t.Synced() {
			continue
		}
		wg.Add(1)
		go func(remoteID string) {
			defer wg.Done()
			err := s.remote.DeleteTask(ctx, *list.RemoteID, remoteID)
			if err != nil && !remote.IsNotFound(err) {
				consumeRemoteError("delete completed task", err)
				return
			}
			s.clearTombstone(ctx, model.TombstoneTask, remoteID)
		}(*t.RemoteID)
	}
	wg.Wait()
	return nil
}

// === Task operations ===

// CreateTask inserts a task at the top of its sibling group (index 0),
// shifting existing pending siblings, and mirrors the insert remotely.
// On remote success the returned canonical task is stored verbatim.
func (s *Service) CreateTask(
	ctx context.Context,
	listID int64,
	parentID *int64,
	title, notes string,
	dueDate *time.Time,
) (model.Task, error) {
	list, err := s.getList(ctx, listID)
	if err != nil {
		return model.Task{}, err
	}

	var parent *model.Task
	if parentID != nil {
		parent, err = s.getTask(ctx, *parentID)
		if err != nil {
			return model.Task{}, err
		}
		if parent.ListLocalID != listID {
			return model.Task{}, &InvalidStructureError{Reason: "parent task belongs to a different list"}
		}
		if !parent.IsRoot() {
			return model.Task{}, &InvalidStructureError{Reason: "tasks nest at most one level deep"}
		}
	}

	task := model.Task{
		ListLocalID:   listID,
		ParentLocalID: parentID,
		Title:         title,
		Notes:         notes,
		DueDate:       dueDate,
		LastUpdate:    s.now().UTC(),
		Position:      position.FromIndex(0).Value(),
	}
	if parent != nil {
		task.ParentRemoteID = parent.RemoteID
	}

	err = s.store.WithTx(ctx, func(st store.Store) error {
		siblings, err := st.GetSiblings(ctx, listID, parentID)
		if err != nil {
			return err
		}
		task, err = st.CreateTask(ctx, task)
		if err != nil {
			return err
		}
		return renumberPending(ctx, st, prepend(task, pendingOnly(siblings)))
	})
	if err != nil {
		return model.Task{}, err
	}

	if list.Synced() {
		parentRemoteID := ""
		if parent != nil && parent.Synced() {
			parentRemoteID = *parent.RemoteID
		}
		created, err := s.remote.InsertTask(ctx, *list.RemoteID, remote.FromModel(task), parentRemoteID, "")
		if err != nil {
			consumeRemoteError("insert task", err)
			return task, nil
		}
		remote.ApplyToModel(*created, &task)
		if err := s.store.UpdateTask(ctx, task); err != nil {
			return model.Task{}, fmt.Errorf("attaching remote id to task %d: %w", task.LocalID, err)
		}
	}
	return task, nil
}

// DeleteTask removes a task (and, via cascade, its children) and
// renumbers the remaining siblings.
func (s *Service) DeleteTask(ctx context.Context, taskID int64) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	list, err := s.store.GetTaskList(ctx, task.ListLocalID)
	if err != nil {
		return err
	}
	children, err := s.store.GetChildren(ctx, taskID)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(st store.Store) error {
		if list.Synced() {
			for _, t := range append(children, *task) {
				if !t.Synced() {
					continue
				}
				ts := model.Tombstone{
					Kind:         model.TombstoneTask,
					ListRemoteID: *list.RemoteID,
					RemoteID:     *t.RemoteID,
					DeletedAt:    s.now().UTC(),
				}
				if err := st.AddTombstone(ctx, ts); err != nil {
					return err
				}
			}
		}
		if err := st.DeleteTask(ctx, taskID); err != nil {
			return err
		}
		siblings, err := st.GetSiblings(ctx, task.ListLocalID, task.ParentLocalID)
		if err != nil {
			return err
		}
		return renumberPending(ctx, st, pendingOnly(siblings))
	})
	if err != nil {
		return err
	}

	if list.Synced() {
		for _, t := range append([]model.Task{*task}, children...) {
			if !t.Synced() {
				continue
			}
			err := s.remote.DeleteTask(ctx, *list.RemoteID, *t.RemoteID)
			if err != nil && !remote.IsNotFound(err) {
				consumeRemoteError("delete task", err)
				continue
			}
			s.clearTombstone(ctx, model.TombstoneTask, *t.RemoteID)
		}
	}
	return nil
}

// UpdateTask persists edits to a task's content fields and mirrors them.
func (s *Service) UpdateTask(ctx context.Context, task model.Task) error {
	current, err := s.getTask(ctx, task.LocalID)
	if err != nil {
		return err
	}
	current.Title = task.Title
	current.Notes = task.Notes
	current.DueDate = task.DueDate
	return s.saveAndMirror(ctx, *current)
}

// UpdateTaskTitle changes a task's title.
func (s *Service) UpdateTaskTitle(ctx context.Context, taskID int64, title string) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	task.Title = title
	return s.saveAndMirror(ctx, *task)
}

// UpdateTaskNotes changes a task's notes.
func (s *Service) UpdateTaskNotes(ctx context.Context, taskID int64, notes string) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	task.Notes = notes
	return s.saveAndMirror(ctx, *task)
}

// UpdateTaskDueDate changes or clears a task's due date.
func (s *Service) UpdateTaskDueDate(ctx context.Context, taskID int64, dueDate *time.Time) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	task.DueDate = dueDate
	return s.saveAndMirror(ctx, *task)
}

// ToggleTaskCompletionState flips a task between pending and completed.
// Completing a task gives it a completion-recency position and renumbers
// the pending siblings it left; un-completing places it back at the top
// of its pending sibling group.
func (s *Service) ToggleTaskCompletionState(ctx context.Context, taskID int64) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	err = s.store.WithTx(ctx, func(st store.Store) error {
		siblings, err := st.GetSiblings(ctx, task.ListLocalID, task.ParentLocalID)
		if err != nil {
			return err
		}
		others := exclude(pendingOnly(siblings), task.LocalID)

		if task.Completed {
			task.Completed = false
			task.CompletedAt = nil
			task.LastUpdate = now
			task.Position = position.FromIndex(0).Value()
			if err := st.UpdateTask(ctx, *task); err != nil {
				return err
			}
			return renumberPending(ctx, st, prepend(*task, others))
		}

		task.Completed = true
		task.CompletedAt = &now
		task.LastUpdate = now
		task.Position = position.FromCompletionDate(now).Value()
		if err := st.UpdateTask(ctx, *task); err != nil {
			return err
		}
		return renumberPending(ctx, st, others)
	})
	if err != nil {
		return err
	}

	s.mirrorUpdate(ctx, *task)
	return nil
}

// === helpers ===

func (s *Service) getList(ctx context.Context, listID int64) (*model.TaskList, error) {
	list, err := s.store.GetTaskList(ctx, listID)
	if store.IsNotFound(err) {
		return nil, &NotFoundError{Kind: "task list", ID: listID}
	}
	return list, err
}

func (s *Service) getTask(ctx context.Context, taskID int64) (*model.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if store.IsNotFound(err) {
		return nil, &NotFoundError{Kind: "task", ID: taskID}
	}
	return task, err
}

// saveAndMirror persists a content edit locally, then mirrors it.
func (s *Service) saveAndMirror(ctx context.Context, task model.Task) error {
	task.LastUpdate = s.now().UTC()
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return err
	}
	s.mirrorUpdate(ctx, task)
	return nil
}

// mirrorUpdate pushes a task's current state remotely, best-effort, and
// records the fresh etag on success.
func (s *Service) mirrorUpdate(ctx context.Context, task model.Task) {
	if !task.Synced() {
		return
	}
	list, err := s.store.GetTaskList(ctx, task.ListLocalID)
	if err != nil || !list.Synced() {
		return
	}
	updated, err := s.remote.UpdateTask(ctx, *list.RemoteID, remote.FromModel(task))
	if err != nil {
		consumeRemoteError("update task", err)
		return
	}
	task.Etag = updated.Etag
	if err := s.store.UpdateTask(ctx, task); err != nil {
		log.Printf("tasks: recording etag for task %d: %v", task.LocalID, err)
	}
}

// clearTombstone removes the tombstone of an acknowledged remote delete.
func (s *Service) clearTombstone(ctx context.Context, kind model.TombstoneKind, remoteID string) {
	if err := s.store.DeleteTombstoneForRemoteID(ctx, kind, remoteID); err != nil {
		log.Printf("tasks: clearing %s tombstone %q: %v", kind, remoteID, err)
	}
}

// renumberPending rewrites the positions of the given pending tasks so
// they are contiguous indexes 0..n-1 in slice order. Completed tasks
// keep their recency positions and must not be passed in.
func renumberPending(ctx context.Context, st store.Store, ordered []model.Task) error {
	idx := 0
	for _, t := range ordered {
		if t.Completed {
			continue
		}
		want := position.FromIndex(idx).Value()
		idx++
		if t.Position == want {
			continue
		}
		t.Position = want
		if err := st.UpdateTask(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func pendingOnly(tasks []model.Task) []model.Task {
	out := tasks[:0:0]
	for _, t := range tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

func prepend(first model.Task, rest []model.Task) []model.Task {
	return append([]model.Task{first}, rest...)
}

func exclude(tasks []model.Task, localID int64) []model.Task {
	out := tasks[:0:0]
	for _, t := range tasks {
		if t.LocalID != localID {
			out = append(out, t)
		}
	}
	return out
}
