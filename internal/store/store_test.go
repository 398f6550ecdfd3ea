package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/lhoang/tasksync/internal/model"
	"github.com/lhoang/tasksync/internal/position"
	"github.com/lhoang/tasksync/internal/store"
	"github.com/lhoang/tasksync/tests/testutil"
)

func createList(t *testing.T, s store.Store, title string) model.TaskList {
	t.Helper()
	list, err := s.CreateTaskList(context.Background(), model.TaskList{
		Title:      title,
		Sorting:    model.SortingManual,
		LastUpdate: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("creating list: %v", err)
	}
	return list
}

func createTask(t *testing.T, s store.Store, task model.Task) model.Task {
	t.Helper()
	if task.Position == "" {
		task.Position = position.FromIndex(0).Value()
	}
	if task.LastUpdate.IsZero() {
		task.LastUpdate = time.Now().UTC()
	}
	created, err := s.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("creating task: %v", err)
	}
	return created
}

func TestTaskListRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	list := createList(t, s, "Groceries")
	is.True(list.LocalID > 0)
	is.True(!list.Synced())

	remoteID := "r001"
	list.RemoteID = &remoteID
	list.Etag = "etag-1"
	is.NoErr(s.UpdateTaskList(ctx, list))

	got, err := s.GetTaskListByRemoteID(ctx, remoteID)
	is.NoErr(err)
	is.Equal(got.LocalID, list.LocalID)
	is.Equal(got.Title, "Groceries")
	is.True(got.Synced())

	unsynced, err := s.GetUnsyncedTaskLists(ctx)
	is.NoErr(err)
	is.Equal(len(unsynced), 0)

	is.NoErr(s.DeleteTaskList(ctx, list.LocalID))
	_, err = s.GetTaskList(ctx, list.LocalID)
	is.True(store.IsNotFound(err))
}

func TestGetSiblingsSeparatesGroups(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	list := createList(t, s, "Groceries")
	root1 := createTask(t, s, model.Task{
		ListLocalID: list.LocalID,
		Title:       "Milk",
		Position:    position.FromIndex(0).Value(),
	})
	createTask(t, s, model.Task{
		ListLocalID: list.LocalID,
		Title:       "Eggs",
		Position:    position.FromIndex(1).Value(),
	})
	createTask(t, s, model.Task{
		ListLocalID:   list.LocalID,
		ParentLocalID: &root1.LocalID,
		Title:         "Oat milk",
		Position:      position.FromIndex(0).Value(),
	})

	roots, err := s.GetSiblings(ctx, list.LocalID, nil)
	is.NoErr(err)
	is.Equal(len(roots), 2)
	is.Equal(roots[0].Title, "Milk")
	is.Equal(roots[1].Title, "Eggs")

	children, err := s.GetSiblings(ctx, list.LocalID, &root1.LocalID)
	is.NoErr(err)
	is.Equal(len(children), 1)
	is.Equal(children[0].Title, "Oat milk")
}

func TestDeleteListCascadesToTasks(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	list := createList(t, s, "Groceries")
	task := createTask(t, s, model.Task{ListLocalID: list.LocalID, Title: "Milk"})

	is.NoErr(s.DeleteTaskList(ctx, list.LocalID))
	_, err := s.GetTask(ctx, task.LocalID)
	is.True(store.IsNotFound(err))
}

func TestDeleteTaskCascadesToChildren(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	list := createList(t, s, "Groceries")
	parent := createTask(t, s, model.Task{ListLocalID: list.LocalID, Title: "Milk"})
	child := createTask(t, s, model.Task{
		ListLocalID:   list.LocalID,
		ParentLocalID: &parent.LocalID,
		Title:         "Oat milk",
	})

	is.NoErr(s.DeleteTask(ctx, parent.LocalID))
	_, err := s.GetTask(ctx, child.LocalID)
	is.True(store.IsNotFound(err))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	list := createList(t, s, "Groceries")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(st store.Store) error {
		if _, err := st.CreateTask(ctx, model.Task{
			ListLocalID: list.LocalID,
			Title:       "Milk",
			Position:    position.FromIndex(0).Value(),
			LastUpdate:  time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	is.True(errors.Is(err, boom))

	tasks, err := s.GetTasks(ctx, list.LocalID)
	is.NoErr(err)
	is.Equal(len(tasks), 0)
}

func TestTombstones(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	is.NoErr(s.AddTombstone(ctx, model.Tombstone{
		Kind:         model.TombstoneTask,
		ListRemoteID: "l1",
		RemoteID:     "t1",
		DeletedAt:    time.Now().UTC(),
	}))
	is.NoErr(s.AddTombstone(ctx, model.Tombstone{
		Kind:      model.TombstoneList,
		RemoteID:  "l2",
		DeletedAt: time.Now().UTC(),
	}))

	tombstones, err := s.GetTombstones(ctx)
	is.NoErr(err)
	is.Equal(len(tombstones), 2)

	is.NoErr(s.DeleteTombstoneForRemoteID(ctx, model.TombstoneTask, "t1"))
	is.NoErr(s.DeleteTombstone(ctx, tombstones[1].ID))

	tombstones, err = s.GetTombstones(ctx)
	is.NoErr(err)
	is.Equal(len(tombstones), 0)
}

func TestLastSyncWatermark(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	last, err := s.LastSync(ctx)
	is.NoErr(err)
	is.True(last == nil)

	at := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	is.NoErr(s.SetLastSync(ctx, at))

	last, err = s.LastSync(ctx)
	is.NoErr(err)
	is.True(last != nil)
	is.True(last.Equal(at))
}

func TestGetUnsyncedTasks(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	list := createList(t, s, "Groceries")
	createTask(t, s, model.Task{ListLocalID: list.LocalID, Title: "Milk"})
	remoteID := "r010"
	synced := createTask(t, s, model.Task{
		ListLocalID: list.LocalID,
		Title:       "Eggs",
		Position:    position.FromIndex(1).Value(),
	})
	synced.RemoteID = &remoteID
	is.NoErr(s.UpdateTask(ctx, synced))

	unsynced, err := s.GetUnsyncedTasks(ctx, list.LocalID)
	is.NoErr(err)
	is.Equal(len(unsynced), 1)
	is.Equal(unsynced[0].Title, "Milk")
}
