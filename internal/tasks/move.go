package tasks

import (
	"context"
	"log"

	"github.com/lhoang/tasksync/internal/model"
	"github.com/lhoang/tasksync/internal/store"
)

// IndentTask makes a root task a child of the root sibling directly
// above it, placing it last among its new siblings. The root group and
// the new child group are renumbered in the same transaction.
func (s *Service) IndentTask(ctx context.Context, taskID int64) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.IsRoot() {
		return &InvalidStructureError{Reason: "task is already indented"}
	}
	if task.Completed {
		return &InvalidStructureError{Reason: "completed tasks cannot be indented"}
	}
	children, err := s.store.GetChildren(ctx, taskID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return &InvalidStructureError{Reason: "task with children cannot be indented"}
	}

	roots, err := s.store.GetSiblings(ctx, task.ListLocalID, nil)
	if err != nil {
		return err
	}
	rootPending := pendingOnly(roots)
	idx := indexOf(rootPending, taskID)
	if idx <= 0 {
		return &InvalidStructureError{Reason: "no previous sibling to indent under"}
	}
	parent := rootPending[idx-1]

	var newSiblings []model.Task
	err = s.store.WithTx(ctx, func(st store.Store) error {
		siblings, err := st.GetSiblings(ctx, task.ListLocalID, &parent.LocalID)
		if err != nil {
			return err
		}
		newSiblings = pendingOnly(siblings)

		task.ParentLocalID = &parent.LocalID
		task.ParentRemoteID = parent.RemoteID
		task.LastUpdate = s.now().UTC()
		if err := st.UpdateTask(ctx, *task); err != nil {
			return err
		}

		// Placed last among the new siblings; the old root group closes
		// the gap the task left.
		if err := renumberPending(ctx, st, append(newSiblings, *task)); err != nil {
			return err
		}
		return renumberPending(ctx, st, exclude(rootPending, taskID))
	})
	if err != nil {
		return err
	}

	s.mirrorMove(ctx, *task, remoteID(parent), lastSyncedRemoteID(newSiblings), "")
	return nil
}

// UnindentTask moves a child task back to the root level, positioned
// immediately after its former parent. The former child group and the
// root group are renumbered in the same transaction.
func (s *Service) UnindentTask(ctx context.Context, taskID int64) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.IsRoot() {
		return &InvalidStructureError{Reason: "task has no parent"}
	}

	parent, err := s.getTask(ctx, *task.ParentLocalID)
	if err != nil {
		return err
	}
	roots, err := s.store.GetSiblings(ctx, task.ListLocalID, nil)
	if err != nil {
		return err
	}
	rootPending := pendingOnly(roots)

	err = s.store.WithTx(ctx, func(st store.Store) error {
		task.ParentLocalID = nil
		task.ParentRemoteID = nil
		task.LastUpdate = s.now().UTC()
		if err := st.UpdateTask(ctx, *task); err != nil {
			return err
		}

		newOrder := insertAfter(rootPending, parent.LocalID, *task)
		if err := renumberPending(ctx, st, newOrder); err != nil {
			return err
		}

		former, err := st.GetSiblings(ctx, task.ListLocalID, &parent.LocalID)
		if err != nil {
			return err
		}
		return renumberPending(ctx, st, pendingOnly(former))
	})
	if err != nil {
		return err
	}

	s.mirrorMove(ctx, *task, "", remoteID(*parent), "")
	return nil
}

// MoveToTop repositions a pending task at index 0 of its list's root
// group, unindenting it if necessary.
func (s *Service) MoveToTop(ctx context.Context, taskID int64) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Completed {
		return &InvalidStructureError{Reason: "completed tasks cannot be moved to the top"}
	}

	oldParentID := task.ParentLocalID
	roots, err := s.store.GetSiblings(ctx, task.ListLocalID, nil)
	if err != nil {
		return err
	}
	rootPending := exclude(pendingOnly(roots), taskID)

	err = s.store.WithTx(ctx, func(st store.Store) error {
		task.ParentLocalID = nil
		task.ParentRemoteID = nil
		task.LastUpdate = s.now().UTC()
		if err := st.UpdateTask(ctx, *task); err != nil {
			return err
		}
		if err := renumberPending(ctx, st, prepend(*task, rootPending)); err != nil {
			return err
		}
		if oldParentID != nil {
			former, err := st.GetSiblings(ctx, task.ListLocalID, oldParentID)
			if err != nil {
				return err
			}
			return renumberPending(ctx, st, pendingOnly(former))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mirrorMove(ctx, *task, "", "", "")
	return nil
}

// MoveToList moves a task (and its direct children) to the root of
// another list at index 0, renumbering the group it left and the
// destination's root group in the same transaction.
func (s *Service) MoveToList(ctx context.Context, taskID, targetListID int64) error {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	target, err := s.getList(ctx, targetListID)
	if err != nil {
		return err
	}
	source, err := s.store.GetTaskList(ctx, task.ListLocalID)
	if err != nil {
		return err
	}
	if source.LocalID == target.LocalID {
		return nil
	}

	oldListID := task.ListLocalID
	oldParentID := task.ParentLocalID
	children, err := s.store.GetChildren(ctx, taskID)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(st store.Store) error {
		task.ListLocalID = targetListID
		task.ParentLocalID = nil
		task.ParentRemoteID = nil
		task.LastUpdate = s.now().UTC()
		if err := st.UpdateTask(ctx, *task); err != nil {
			return err
		}
		for _, child := range children {
			child.ListLocalID = targetListID
			if err := st.UpdateTask(ctx, child); err != nil {
				return err
			}
		}

		targetRoots, err := st.GetSiblings(ctx, targetListID, nil)
		if err != nil {
			return err
		}
		order := prepend(*task, exclude(pendingOnly(targetRoots), taskID))
		if err := renumberPending(ctx, st, order); err != nil {
			return err
		}

		former, err := st.GetSiblings(ctx, oldListID, oldParentID)
		if err != nil {
			return err
		}
		return renumberPending(ctx, st, pendingOnly(former))
	})
	if err != nil {
		return err
	}

	if task.Synced() && source.Synced() && target.Synced() {
		moved, err := s.remote.MoveTask(ctx, *source.RemoteID, *task.RemoteID, "", "", *target.RemoteID)
		if err != nil {
			consumeRemoteError("move task to list", err)
			return nil
		}
		task.Etag = moved.Etag
		if err := s.store.UpdateTask(ctx, *task); err != nil {
			return err
		}
	}
	return nil
}

// MoveToNewList creates a list with the given title and moves the task
// into it; it is the composition of CreateTaskList and MoveToList.
func (s *Service) MoveToNewList(ctx context.Context, taskID int64, title string) (model.TaskList, error) {
	list, err := s.CreateTaskList(ctx, title)
	if err != nil {
		return model.TaskList{}, err
	}
	if err := s.MoveToList(ctx, taskID, list.LocalID); err != nil {
		return model.TaskList{}, err
	}
	return list, nil
}

// mirrorMove pushes a reparent/reorder remotely, best-effort, recording
// the fresh etag on success.
func (s *Service) mirrorMove(ctx context.Context, task model.Task, parentID, previousID, destinationID string) {
	if !task.Synced() {
		return
	}
	list, err := s.store.GetTaskList(ctx, task.ListLocalID)
	if err != nil || !list.Synced() {
		return
	}
	moved, err := s.remote.MoveTask(ctx, *list.RemoteID, *task.RemoteID, parentID, previousID, destinationID)
	if err != nil {
		consumeRemoteError("move task", err)
		return
	}
	task.Etag = moved.Etag
	if err := s.store.UpdateTask(ctx, task); err != nil {
		log.Printf("tasks: recording etag for task %d: %v", task.LocalID, err)
	}
}

func remoteID(t model.Task) string {
	if t.RemoteID == nil {
		return ""
	}
	return *t.RemoteID
}

// lastSyncedRemoteID returns the remote id of the last remotely-known
// task in the slice, used as the previous-sibling hint when appending.
func lastSyncedRemoteID(tasks []model.Task) string {
	for i := len(tasks) - 1; i >= 0; i-- {
		if tasks[i].Synced() {
			return *tasks[i].RemoteID
		}
	}
	return ""
}

func indexOf(tasks []model.Task, localID int64) int {
	for i, t := range tasks {
		if t.LocalID == localID {
			return i
		}
	}
	return -1
}

// insertAfter returns tasks with item placed directly after the entry
// whose local id is afterID (or appended if absent), with any previous
// occurrence of item removed.
func insertAfter(tasks []model.Task, afterID int64, item model.Task) []model.Task {
	out := make([]model.Task, 0, len(tasks)+1)
	inserted := false
	for _, t := range tasks {
		if t.LocalID == item.LocalID {
			continue
		}
		out = append(out, t)
		if t.LocalID == afterID {
			out = append(out, item)
			inserted = true
		}
	}
	if !inserted {
		out = append(out, item)
	}
	return out
}
