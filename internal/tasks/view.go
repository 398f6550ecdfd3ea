package tasks

import (
	"context"

	"github.com/lhoang/tasksync/internal/model"
	"github.com/lhoang/tasksync/internal/ordering"
)

// TaskView is a list's display projection: pending tasks in the list's
// chosen order (with indentation for manual ordering) and completed
// tasks sorted by completion recency.
type TaskView struct {
	List      model.TaskList
	Pending   []ordering.Entry
	Completed []model.Task
}

// ListTasks builds the display projection of a list according to its
// sorting preference.
func (s *Service) ListTasks(ctx context.Context, listID int64) (*TaskView, error) {
	list, err := s.getList(ctx, listID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.GetTasks(ctx, listID)
	if err != nil {
		return nil, err
	}

	view := &TaskView{List: *list}
	switch list.Sorting {
	case model.SortingDueDate:
		g := ordering.ByDueDate(tasks)
		view.Pending = flatEntries(g.Pending)
		view.Completed = g.Completed
	case model.SortingTitle:
		g := ordering.ByTitle(tasks)
		view.Pending = flatEntries(g.Pending)
		view.Completed = g.Completed
	default:
		for _, e := range ordering.Manual(tasks) {
			if !e.Task.Completed {
				view.Pending = append(view.Pending, e)
			}
		}
		view.Completed = ordering.Split(tasks).Completed
	}
	return view, nil
}

// DueOverview partitions a list's pending tasks into due-date buckets
// (overdue, today, this week, later, no date). Empty buckets are
// omitted.
func (s *Service) DueOverview(ctx context.Context, listID int64) ([]ordering.Bucket, error) {
	if _, err := s.getList(ctx, listID); err != nil {
		return nil, err
	}
	tasks, err := s.store.GetTasks(ctx, listID)
	if err != nil {
		return nil, err
	}
	return ordering.DueBuckets(ordering.ByDueDate(tasks), s.now()), nil
}

func flatEntries(tasks []model.Task) []ordering.Entry {
	entries := make([]ordering.Entry, 0, len(tasks))
	for _, t := range tasks {
		entries = append(entries, ordering.Entry{Task: t})
	}
	return entries
}
