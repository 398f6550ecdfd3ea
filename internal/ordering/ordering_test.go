package ordering

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/lhoang/tasksync/internal/model"
	"github.com/lhoang/tasksync/internal/position"
)

func pending(id int64, parent *int64, index int, title string) model.Task {
	return model.Task{
		LocalID:       id,
		ListLocalID:   1,
		ParentLocalID: parent,
		Title:         title,
		Position:      position.FromIndex(index).Value(),
	}
}

func completed(id int64, parent *int64, at time.Time, title string) model.Task {
	t := at
	return model.Task{
		LocalID:       id,
		ListLocalID:   1,
		ParentLocalID: parent,
		Title:         title,
		Completed:     true,
		CompletedAt:   &t,
		Position:      position.FromCompletionDate(at).Value(),
	}
}

func TestManualIndentsChildren(t *testing.T) {
	is := is.New(t)

	a := pending(1, nil, 0, "A")
	b := pending(2, nil, 1, "B")
	c := pending(3, &a.LocalID, 0, "C")

	entries := Manual([]model.Task{b, c, a})

	is.Equal(len(entries), 3)
	is.Equal(entries[0].Task.Title, "A")
	is.Equal(entries[0].Indent, 0)
	is.Equal(entries[1].Task.Title, "C")
	is.Equal(entries[1].Indent, 1)
	is.Equal(entries[2].Task.Title, "B")
	is.Equal(entries[2].Indent, 0)
}

func TestManualIncludesCompletedChildren(t *testing.T) {
	is := is.New(t)

	a := pending(1, nil, 0, "A")
	done := completed(2, &a.LocalID, time.UnixMilli(5000), "done child")
	open := pending(3, &a.LocalID, 0, "open child")

	entries := Manual([]model.Task{done, a, open})

	is.Equal(len(entries), 3)
	// Pending children sort before completed ones within the group.
	is.Equal(entries[1].Task.Title, "open child")
	is.Equal(entries[2].Task.Title, "done child")
	is.Equal(entries[2].Indent, 1)
}

func TestManualSurvivesCyclicLinkage(t *testing.T) {
	is := is.New(t)

	// Corrupt linkage: two tasks claiming each other as parent must not
	// recurse forever. Neither is a root, so nothing is emitted.
	one, two := int64(1), int64(2)
	a := pending(one, &two, 0, "A")
	b := pending(two, &one, 0, "B")

	is.Equal(len(Manual([]model.Task{a, b})), 0)
}

func TestByDueDateUndatedSortsLast(t *testing.T) {
	is := is.New(t)

	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	dated := pending(1, nil, 5, "dated")
	dated.DueDate = &due
	undated := pending(2, nil, 0, "undated") // earlier position, no date

	g := ByDueDate([]model.Task{undated, dated})

	is.Equal(len(g.Pending), 2)
	is.Equal(g.Pending[0].Title, "dated")
	is.Equal(g.Pending[1].Title, "undated")
}

func TestByDueDateCompletedByRecency(t *testing.T) {
	is := is.New(t)

	older := completed(1, nil, time.UnixMilli(1000), "older")
	newer := completed(2, nil, time.UnixMilli(2000), "newer")

	g := ByDueDate([]model.Task{older, newer})

	is.Equal(len(g.Pending), 0)
	is.Equal(g.Completed[0].Title, "newer")
	is.Equal(g.Completed[1].Title, "older")
}

func TestByTitleCaseInsensitiveWithDescendingTieBreak(t *testing.T) {
	is := is.New(t)

	g := ByTitle([]model.Task{
		pending(1, nil, 0, "apple"),
		pending(2, nil, 1, "Apple"),
		pending(3, nil, 2, "Banana"),
	})

	is.Equal(len(g.Pending), 3)
	// Case-insensitive ascending, ties broken by raw title descending.
	is.Equal(g.Pending[0].Title, "apple")
	is.Equal(g.Pending[1].Title, "Apple")
	is.Equal(g.Pending[2].Title, "Banana")
}

func TestParentIDs(t *testing.T) {
	is := is.New(t)

	a := pending(1, nil, 0, "A")
	b := completed(2, nil, time.UnixMilli(1000), "B")
	childOfA := pending(3, &a.LocalID, 0, "child")
	childOfB := pending(4, &b.LocalID, 0, "child of completed")

	parents := ParentIDs([]model.Task{a, b, childOfA, childOfB})

	is.True(parents[a.LocalID])
	is.True(!parents[b.LocalID]) // completed tasks are never parents
	is.True(!parents[childOfA.LocalID])
}

func TestDueBuckets(t *testing.T) {
	is := is.New(t)

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	at := func(daysFromToday int) *time.Time {
		d := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC).AddDate(0, 0, daysFromToday)
		return &d
	}

	longOverdue := pending(1, nil, 0, "long overdue")
	longOverdue.DueDate = at(-30)
	overdue := pending(2, nil, 1, "overdue")
	overdue.DueDate = at(-1)
	today := pending(3, nil, 2, "today")
	today.DueDate = at(0)
	thisWeek := pending(4, nil, 3, "this week")
	thisWeek.DueDate = at(3)
	later := pending(5, nil, 4, "later")
	later.DueDate = at(30)
	noDate := pending(6, nil, 5, "no date")

	g := ByDueDate([]model.Task{noDate, later, thisWeek, today, overdue, longOverdue})
	buckets := DueBuckets(g, now)

	is.Equal(len(buckets), 5)
	is.Equal(buckets[0].Kind, BucketOverdue)
	is.Equal(len(buckets[0].Tasks), 2) // all overdue collapses into one bucket
	is.Equal(buckets[1].Kind, BucketToday)
	is.Equal(buckets[2].Kind, BucketThisWeek)
	is.Equal(buckets[3].Kind, BucketLater)
	is.Equal(buckets[4].Kind, BucketNoDate)
}
