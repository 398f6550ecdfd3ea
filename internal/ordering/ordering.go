// Package ordering builds display-ready projections of a flat task
// collection: the manual drag order with indentation, the due-date
// ordering, and the alphabetical ordering. All three separate completed
// from pending tasks. The builders are pure functions of their input and
// never touch the store.
package ordering

import (
	"sort"
	"strings"

	"github.com/lhoang/tasksync/internal/model"
)

// maxDepth guards the manual-order walk against an unexpectedly deep or
// cyclic parent chain. Nesting is capped at two levels by construction,
// so hitting this limit means corrupt linkage; the walk just stops
// descending.
const maxDepth = 10

// Entry is one row of the manual ordering: a task plus its indentation
// level (0 for root tasks, 1 for their children).
type Entry struct {
	Task   model.Task
	Indent int
}

// Grouped is the completed/pending partition used by the due-date and
// title orderings. Both slices are already sorted.
type Grouped struct {
	Pending   []model.Task
	Completed []model.Task
}

// Manual produces the drag-order projection: root tasks sorted by
// position, each immediately followed by its children sorted by
// position. Completed tasks participate so their indentation stays
// correct; splitting them out happens downstream.
//
// Parent linkage is resolved through the local parent id only. The
// remote parent id can disagree for not-yet-synced children and is never
// consulted here.
func Manual(tasks []model.Task) []Entry {
	children := make(map[int64][]model.Task)
	var roots []model.Task
	for _, t := range tasks {
		if t.ParentLocalID == nil {
			roots = append(roots, t)
			continue
		}
		children[*t.ParentLocalID] = append(children[*t.ParentLocalID], t)
	}
	byPosition(roots)
	for id := range children {
		byPosition(children[id])
	}

	entries := make([]Entry, 0, len(tasks))
	var walk func(t model.Task, depth int)
	walk = func(t model.Task, depth int) {
		entries = append(entries, Entry{Task: t, Indent: depth})
		if depth+1 >= maxDepth {
			return
		}
		for _, c := range children[t.LocalID] {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
	return entries
}

// ByDueDate produces the due-date ordering. Pending tasks sort by due
// date ascending with undated tasks after all dated ones; completed
// tasks sort by position, i.e. most recently completed first. The result
// is flat; date bucketing is a separate step (see DueBuckets).
func ByDueDate(tasks []model.Task) Grouped {
	g := Split(tasks)
	sort.SliceStable(g.Pending, func(i, j int) bool {
		a, b := g.Pending[i].DueDate, g.Pending[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return g
}

// ByTitle produces the alphabetical ordering. Pending tasks sort by
// case-insensitive title ascending; a tie in the folded title is broken
// by raw title descending, which keeps the order deterministic without
// being a plain case-insensitive sort. Completed tasks sort by position.
func ByTitle(tasks []model.Task) Grouped {
	g := Split(tasks)
	sort.SliceStable(g.Pending, func(i, j int) bool {
		a := strings.ToLower(g.Pending[i].Title)
		b := strings.ToLower(g.Pending[j].Title)
		if a != b {
			return a < b
		}
		return g.Pending[i].Title > g.Pending[j].Title
	})
	return g
}

// ParentIDs returns the local ids of tasks that can act as parents for
// UI affordances: not completed and referenced as a parent by at least
// one other task.
func ParentIDs(tasks []model.Task) map[int64]bool {
	referenced := make(map[int64]bool)
	for _, t := range tasks {
		if t.ParentLocalID != nil {
			referenced[*t.ParentLocalID] = true
		}
	}
	parents := make(map[int64]bool)
	for _, t := range tasks {
		if !t.Completed && referenced[t.LocalID] {
			parents[t.LocalID] = true
		}
	}
	return parents
}

// Split partitions tasks into the pending/completed groups, with the
// completed group sorted by position (most recently completed first).
// The pending group keeps its input order.
func Split(tasks []model.Task) Grouped {
	var g Grouped
	for _, t := range tasks {
		if t.Completed {
			g.Completed = append(g.Completed, t)
		} else {
			g.Pending = append(g.Pending, t)
		}
	}
	byPosition(g.Completed)
	return g
}

func byPosition(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Position < tasks[j].Position
	})
}
