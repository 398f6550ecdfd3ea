package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/lhoang/tasksync/internal/model"
	"github.com/lhoang/tasksync/internal/position"
	"github.com/lhoang/tasksync/internal/remote/remotetest"
	"github.com/lhoang/tasksync/internal/store"
	"github.com/lhoang/tasksync/tests/testutil"
)

// newTestService wires a service against an in-memory store and fake
// remote, with a deterministic clock advancing one second per call.
func newTestService(t *testing.T) (*Service, store.Store, *remotetest.Fake) {
	t.Helper()
	st := testutil.NewTestStore(t)
	fake := remotetest.New()
	svc := NewService(st, fake)
	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, st, fake
}

func siblingTitles(t *testing.T, st store.Store, listID int64, parentID *int64) []string {
	t.Helper()
	siblings, err := st.GetSiblings(context.Background(), listID, parentID)
	if err != nil {
		t.Fatalf("loading siblings: %v", err)
	}
	var titles []string
	for _, task := range siblings {
		if !task.Completed {
			titles = append(titles, task.Title)
		}
	}
	return titles
}

func TestCreateTaskInsertsAtTopAndShiftsSiblings(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, st, fake := newTestService(t)
	fake.SetOffline(true)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	is.True(!list.Synced()) // offline mirror failure is consumed

	milk, err := svc.CreateTask(ctx, list.LocalID, nil, "Milk", "", nil)
	is.NoErr(err)
	is.Equal(milk.Position, position.FromIndex(0).Value())

	eggs, err := svc.CreateTask(ctx, list.LocalID, nil, "Eggs", "", nil)
	is.NoErr(err)
	is.Equal(eggs.Position, position.FromIndex(0).Value())

	is.Equal(siblingTitles(t, st, list.LocalID, nil), []string{"Eggs", "Milk"})

	shifted, err := st.GetTask(ctx, milk.LocalID)
	is.NoErr(err)
	is.Equal(shifted.Position, position.FromIndex(1).Value())
}

func TestCreateTaskRejectsBadParents(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, _, fake := newTestService(t)
	fake.SetOffline(true)

	groceries, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	errands, err := svc.CreateTaskList(ctx, "Errands")
	is.NoErr(err)

	milk, err := svc.CreateTask(ctx, groceries.LocalID, nil, "Milk", "", nil)
	is.NoErr(err)

	// Parent in another list.
	_, err = svc.CreateTask(ctx, errands.LocalID, &milk.LocalID, "Oat milk", "", nil)
	is.True(IsInvalidStructure(err))

	// Parent that is itself a child.
	oat, err := svc.CreateTask(ctx, groceries.LocalID, &milk.LocalID, "Oat milk", "", nil)
	is.NoErr(err)
	_, err = svc.CreateTask(ctx, groceries.LocalID, &oat.LocalID, "Barista blend", "", nil)
	is.True(IsInvalidStructure(err))

	// Unknown list.
	_, err = svc.CreateTask(ctx, 9999, nil, "Milk", "", nil)
	is.True(IsNotFound(err))
}

func TestCreateTaskMirrorsWhenSynced(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, _, fake := newTestService(t)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	is.True(list.Synced())

	milk, err := svc.CreateTask(ctx, list.LocalID, nil, "Milk", "", nil)
	is.NoErr(err)
	is.True(milk.Synced())
	is.True(milk.Etag != "")
	is.Equal(fake.TaskTitles(*list.RemoteID), []string{"Milk"})
}

func TestToggleCompletionOrdersByRecency(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, st, fake := newTestService(t)
	fake.SetOffline(true)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	milk, err := svc.CreateTask(ctx, list.LocalID, nil, "Milk", "", nil)
	is.NoErr(err)
	eggs, err := svc.CreateTask(ctx, list.LocalID, nil, "Eggs", "", nil)
	is.NoErr(err)

	// Eggs completes first, Milk later; the more recent completion
	// sorts first.
	is.NoErr(svc.ToggleTaskCompletionState(ctx, eggs.LocalID))
	is.NoErr(svc.ToggleTaskCompletionState(ctx, milk.LocalID))

	completed, err := st.GetCompletedTasks(ctx, list.LocalID)
	is.NoErr(err)
	is.Equal(len(completed), 2)
	is.Equal(completed[0].Title, "Milk")
	is.Equal(completed[1].Title, "Eggs")
	is.True(completed[0].Position > position.FromIndex(1 << 30).Value())
}

func TestToggleCompletionRenumbersRemainingSiblings(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, st, fake := newTestService(t)
	fake.SetOffline(true)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	_, err = svc.CreateTask(ctx, list.LocalID, nil, "Milk", "", nil)
	is.NoErr(err)
	eggs, err := svc.CreateTask(ctx, list.LocalID, nil, "Eggs", "", nil)
	is.NoErr(err)
	bread, err := svc.CreateTask(ctx, list.LocalID, nil, "Bread", "", nil)
	is.NoErr(err)

	// Bread, Eggs, Milk before; completing Eggs closes the gap.
	is.NoErr(svc.ToggleTaskCompletionState(ctx, eggs.LocalID))
	is.Equal(siblingTitles(t, st, list.LocalID, nil), []string{"Bread", "Milk"})

	shifted, err := st.GetTask(ctx, bread.LocalID)
	is.NoErr(err)
	is.Equal(shifted.Position, position.FromIndex(0).Value())

	// Un-completing puts the task back at the top of the pending group.
	is.NoErr(svc.ToggleTaskCompletionState(ctx, eggs.LocalID))
	is.Equal(siblingTitles(t, st, list.LocalID, nil), []string{"Eggs", "Bread", "Milk"})
}

func TestDeleteTaskRenumbersAndMirrors(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, st, fake := newTestService(t)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	milk, err := svc.CreateTask(ctx, list.LocalID, nil, "Milk", "", nil)
	is.NoErr(err)
	eggs, err := svc.CreateTask(ctx, list.LocalID, nil, "Eggs", "", nil)
	is.NoErr(err)

	is.NoErr(svc.DeleteTask(ctx, eggs.LocalID))

	is.Equal(siblingTitles(t, st, list.LocalID, nil), []string{"Milk"})
	remaining, err := st.GetTask(ctx, milk.LocalID)
	is.NoErr(err)
	is.Equal(remaining.Position, position.FromIndex(0).Value())

	// Remote delete was acknowledged, so no tombstone remains.
	is.True(fake.TaskByID(*list.RemoteID, *eggs.RemoteID) == nil)
	tombstones, err := st.GetTombstones(ctx)
	is.NoErr(err)
	is.Equal(len(tombstones), 0)
}

func TestDeleteTaskOfflineKeepsTombstone(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, st, fake := newTestService(t)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	milk, err := svc.CreateTask(ctx, list.LocalID, nil, "Milk", "", nil)
	is.NoErr(err)

	fake.SetOffline(true)
	is.NoErr(svc.DeleteTask(ctx, milk.LocalID))

	_, err = st.GetTask(ctx, milk.LocalID)
	is.True(store.IsNotFound(err))

	tombstones, err := st.GetTombstones(ctx)
	is.NoErr(err)
	is.Equal(len(tombstones), 1)
	is.Equal(tombstones[0].Kind, model.TombstoneTask)
	is.Equal(tombstones[0].RemoteID, *milk.RemoteID)
	is.Equal(tombstones[0].ListRemoteID, *list.RemoteID)
}

func TestDeleteTaskRemovesChildren(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, st, fake := newTestService(t)
	fake.SetOffline(true)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	milk, err := svc.CreateTask(ctx, list.LocalID, nil, "Milk", "", nil)
	is.NoErr(err)
	oat, err := svc.CreateTask(ctx, list.LocalID, &milk.LocalID, "Oat milk", "", nil)
	is.NoErr(err)

	is.NoErr(svc.DeleteTask(ctx, milk.LocalID))

	_, err = st.GetTask(ctx, oat.LocalID)
	is.True(store.IsNotFound(err))
}

func TestDeleteTaskListWritesTombstoneWhenOffline(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, st, fake := newTestService(t)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)

	fake.SetOffline(true)
	is.NoErr(svc.DeleteTaskList(ctx, list.LocalID))

	lists, err := st.GetTaskLists(ctx)
	is.NoErr(err)
	is.Equal(len(lists), 0)

	tombstones, err := st.GetTombstones(ctx)
	is.NoErr(err)
	is.Equal(len(tombstones), 1)
	is.Equal(tombstones[0].Kind, model.TombstoneList)
	is.Equal(tombstones[0].RemoteID, *list.RemoteID)
}

func TestClearCompletedTasks(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	milk, err := svc.CreateTask(ctx, list.LocalID, nil, "Milk", "", nil)
	is.NoErr(err)
	_, err = svc.CreateTask(ctx, list.LocalID, nil, "Eggs", "", nil)
	is.NoErr(err)

	is.NoErr(svc.ToggleTaskCompletionState(ctx, milk.LocalID))
	is.NoErr(svc.ClearCompletedTasks(ctx, list.LocalID))

	completed, err := st.GetCompletedTasks(ctx, list.LocalID)
	is.NoErr(err)
	is.Equal(len(completed), 0)
	is.Equal(siblingTitles(t, st, list.LocalID, nil), []string{"Eggs"})

	tombstones, err := st.GetTombstones(ctx)
	is.NoErr(err)
	is.Equal(len(tombstones), 0)
}

func TestRenameTaskListMirrorsAndRecordsEtag(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	before := list.Etag

	is.NoErr(svc.RenameTaskList(ctx, list.LocalID, "Weekly groceries"))

	renamed, err := st.GetTaskList(ctx, list.LocalID)
	is.NoErr(err)
	is.Equal(renamed.Title, "Weekly groceries")
	is.True(renamed.Etag != before)
}

func TestDefaultListResolvesToLocalRow(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, _, fake := newTestService(t)

	first, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	_, err = svc.CreateTaskList(ctx, "Errands")
	is.NoErr(err)

	got, err := svc.DefaultList(ctx)
	is.NoErr(err)
	is.Equal(got.LocalID, first.LocalID)

	fake.SetOffline(true)
	_, err = svc.DefaultList(ctx)
	is.True(err != nil)
}

func TestUpdateTaskFieldsAreLocalFirst(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, st, fake := newTestService(t)
	fake.SetOffline(true)

	list, err := svc.CreateTaskList(ctx, "Groceries")
	is.NoErr(err)
	milk, err := svc.CreateTask(ctx, list.LocalID, nil, "Milk", "", nil)
	is.NoErr(err)

	due := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	is.NoErr(svc.UpdateTaskTitle(ctx, milk.LocalID, "Whole milk"))
	is.NoErr(svc.UpdateTaskNotes(ctx, milk.LocalID, "2 liters"))
	is.NoErr(svc.UpdateTaskDueDate(ctx, milk.LocalID, &due))

	updated, err := st.GetTask(ctx, milk.LocalID)
	is.NoErr(err)
	is.Equal(updated.Title, "Whole milk")
	is.Equal(updated.Notes, "2 liters")
	is.True(updated.DueDate != nil)
	is.True(updated.DueDate.Equal(due))
}
