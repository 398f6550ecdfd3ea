package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/lhoang/tasksync/internal/model"
)

func TestListTasksManualOrdering(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, _, fake := newTestService(t)
	fake.SetOffline(true)

	list, tasks := seedList(t, svc, ctx)
	is.NoErr(svc.IndentTask(ctx, tasks["Eggs"].LocalID))
	is.NoErr(svc.ToggleTaskCompletionState(ctx, tasks["Milk"].LocalID))

	view, err := svc.ListTasks(ctx, list.LocalID)
	is.NoErr(err)

	// Bread root with Eggs indented beneath; Milk moved to completed.
	is.Equal(len(view.Pending), 2)
	is.Equal(view.Pending[0].Task.Title, "Bread")
	is.Equal(view.Pending[0].Indent, 0)
	is.Equal(view.Pending[1].Task.Title, "Eggs")
	is.Equal(view.Pending[1].Indent, 1)

	is.Equal(len(view.Completed), 1)
	is.Equal(view.Completed[0].Title, "Milk")
}

func TestListTasksHonorsSortingPreference(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, _, fake := newTestService(t)
	fake.SetOffline(true)

	list, tasks := seedList(t, svc, ctx)
	soon := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	later := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	is.NoErr(svc.UpdateTaskDueDate(ctx, tasks["Milk"].LocalID, &later))
	is.NoErr(svc.UpdateTaskDueDate(ctx, tasks["Eggs"].LocalID, &soon))

	is.NoErr(svc.SortBy(ctx, list.LocalID, model.SortingDueDate))
	view, err := svc.ListTasks(ctx, list.LocalID)
	is.NoErr(err)
	is.Equal(view.Pending[0].Task.Title, "Eggs")
	is.Equal(view.Pending[1].Task.Title, "Milk")
	is.Equal(view.Pending[2].Task.Title, "Bread") // undated sorts last

	is.NoErr(svc.SortBy(ctx, list.LocalID, model.SortingTitle))
	view, err = svc.ListTasks(ctx, list.LocalID)
	is.NoErr(err)
	is.Equal(view.Pending[0].Task.Title, "Bread")
	is.Equal(view.Pending[1].Task.Title, "Eggs")
	is.Equal(view.Pending[2].Task.Title, "Milk")
}

func TestDueOverviewBucketsPendingTasks(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	svc, _, fake := newTestService(t)
	fake.SetOffline(true)

	list, tasks := seedList(t, svc, ctx)
	// The service clock starts at 2024-03-01 08:00 UTC.
	yesterday := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	is.NoErr(svc.UpdateTaskDueDate(ctx, tasks["Milk"].LocalID, &yesterday))
	is.NoErr(svc.UpdateTaskDueDate(ctx, tasks["Eggs"].LocalID, &today))

	buckets, err := svc.DueOverview(ctx, list.LocalID)
	is.NoErr(err)

	kinds := make(map[string]string)
	for _, b := range buckets {
		for _, task := range b.Tasks {
			kinds[task.Title] = string(b.Kind)
		}
	}
	is.Equal(kinds["Milk"], "overdue")
	is.Equal(kinds["Eggs"], "today")
	is.Equal(kinds["Bread"], "no_date")
}
