// Package remotetest provides an in-memory remote.Client for tests. It
// mimics the service's observable contract: server-assigned ids, fresh
// etags on every write, and sibling positions recomputed from the
// parent/previous insertion hints.
package remotetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lhoang/tasksync/internal/position"
	"github.com/lhoang/tasksync/internal/remote"
)

// ErrOffline is the transport error every call returns while the fake
// is offline. It is deliberately unclassified.
var ErrOffline = errors.New("remotetest: service unreachable")

// Fake is an in-memory remote.Client.
type Fake struct {
	mu      sync.Mutex
	offline bool
	nextID  int
	etagSeq int
	clock   time.Time

	lists     []*remote.TaskList
	tasks     map[string][]*remote.Task // list id, sibling-ordered
	defaultID string

	// Calls records every method invocation, e.g. "InsertTask(Milk)".
	Calls []string
}

// New returns an empty fake service.
func New() *Fake {
	return &Fake{
		tasks: make(map[string][]*remote.Task),
		clock: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// SetOffline makes every subsequent call fail with ErrOffline.
func (f *Fake) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// SeedList creates a list directly on the server, bypassing call
// recording, and returns its id.
func (f *Fake) SeedList(title string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.newList(title)
	return l.ID
}

// SeedTask creates a task directly on the server. parentID may be empty.
func (f *Fake) SeedTask(listID, parentID, title string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &remote.Task{
		ID:      f.id(),
		Etag:    f.etag(),
		Title:   title,
		Parent:  parentID,
		Status:  remote.StatusNeedsAction,
		Updated: f.tick(),
	}
	f.tasks[listID] = append(f.tasks[listID], t)
	f.renumber(listID)
	return t.ID
}

// RemoveTask deletes a task server-side without recording a call,
// simulating another client.
func (f *Fake) RemoveTask(listID, taskID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeTask(listID, taskID)
}

// TaskByID returns a copy of the stored task, or nil.
func (f *Fake) TaskByID(listID, taskID string) *remote.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t := f.findTask(listID, taskID); t != nil {
		cp := *t
		return &cp
	}
	return nil
}

// TaskTitles returns the list's task titles in sibling order, roots
// interleaved with their children as stored.
func (f *Fake) TaskTitles(listID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var titles []string
	for _, t := range f.tasks[listID] {
		titles = append(titles, t.Title)
	}
	return titles
}

func (f *Fake) ListTaskLists(ctx context.Context) ([]remote.TaskList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTaskLists()")
	if f.offline {
		return nil, ErrOffline
	}
	out := make([]remote.TaskList, 0, len(f.lists))
	for _, l := range f.lists {
		out = append(out, *l)
	}
	return out, nil
}

func (f *Fake) DefaultTaskList(ctx context.Context) (*remote.TaskList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DefaultTaskList()")
	if f.offline {
		return nil, ErrOffline
	}
	id := f.defaultID
	if id == "" && len(f.lists) > 0 {
		id = f.lists[0].ID
	}
	for _, l := range f.lists {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, &remote.NotFoundError{Resource: "default task list"}
}

func (f *Fake) InsertTaskList(ctx context.Context, title string) (*remote.TaskList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertTaskList(%s)", title)
	if f.offline {
		return nil, ErrOffline
	}
	l := f.newList(title)
	cp := *l
	return &cp, nil
}

func (f *Fake) UpdateTaskList(ctx context.Context, list remote.TaskList) (*remote.TaskList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTaskList(%s)", list.Title)
	if f.offline {
		return nil, ErrOffline
	}
	for _, l := range f.lists {
		if l.ID == list.ID {
			l.Title = list.Title
			l.Etag = f.etag()
			l.Updated = f.tick()
			cp := *l
			return &cp, nil
		}
	}
	return nil, &remote.NotFoundError{Resource: "task list " + list.ID}
}

func (f *Fake) DeleteTaskList(ctx context.Context, listID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTaskList(%s)", listID)
	if f.offline {
		return ErrOffline
	}
	for i, l := range f.lists {
		if l.ID == listID {
			f.lists = append(f.lists[:i], f.lists[i+1:]...)
			delete(f.tasks, listID)
			return nil
		}
	}
	return &remote.NotFoundError{Resource: "task list " + listID}
}

func (f *Fake) ListTasks(ctx context.Context, listID string, opts remote.ListTasksOptions) ([]remote.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTasks(%s)", listID)
	if f.offline {
		return nil, ErrOffline
	}
	var out []remote.Task
	for _, t := range f.tasks[listID] {
		if t.Status == remote.StatusCompleted && !opts.ShowCompleted {
			continue
		}
		if t.Hidden && !opts.ShowHidden {
			continue
		}
		if !opts.UpdatedSince.IsZero() && t.Updated.Before(opts.UpdatedSince) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *Fake) InsertTask(
	ctx context.Context,
	listID string,
	task remote.Task,
	parentID, previousID string,
) (*remote.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertTask(%s)", task.Title)
	if f.offline {
		return nil, ErrOffline
	}
	if parentID != "" && f.findTask(listID, parentID) == nil {
		return nil, &remote.NotFoundError{Resource: "parent task " + parentID}
	}
	t := task
	t.ID = f.id()
	t.Parent = parentID
	t.Updated = f.tick()
	t.Etag = f.etag()
	f.place(listID, &t, previousID)
	f.renumber(listID)
	cp := t
	return &cp, nil
}

func (f *Fake) UpdateTask(ctx context.Context, listID string, task remote.Task) (*remote.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTask(%s)", task.ID)
	if f.offline {
		return nil, ErrOffline
	}
	t := f.findTask(listID, task.ID)
	if t == nil {
		return nil, &remote.NotFoundError{Resource: "task " + task.ID}
	}
	t.Title = task.Title
	t.Notes = task.Notes
	t.Due = task.Due
	t.Status = task.Status
	t.Completed = task.Completed
	t.Etag = f.etag()
	t.Updated = f.tick()
	f.renumber(listID)
	cp := *t
	return &cp, nil
}

func (f *Fake) DeleteTask(ctx context.Context, listID, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTask(%s)", taskID)
	if f.offline {
		return ErrOffline
	}
	if f.findTask(listID, taskID) == nil {
		return &remote.NotFoundError{Resource: "task " + taskID}
	}
	f.removeTask(listID, taskID)
	return nil
}

func (f *Fake) MoveTask(
	ctx context.Context,
	listID, taskID, parentID, previousID, destinationListID string,
) (*remote.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MoveTask(%s)", taskID)
	if f.offline {
		return nil, ErrOffline
	}
	t := f.findTask(listID, taskID)
	if t == nil {
		return nil, &remote.NotFoundError{Resource: "task " + taskID}
	}
	target := listID
	if destinationListID != "" {
		target = destinationListID
	}
	moved := *t
	f.removeTask(listID, taskID)
	moved.Parent = parentID
	moved.Etag = f.etag()
	moved.Updated = f.tick()
	f.place(target, &moved, previousID)
	f.renumber(listID)
	f.renumber(target)
	cp := *f.findTask(target, taskID)
	return &cp, nil
}

func (f *Fake) ClearCompleted(ctx context.Context, listID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ClearCompleted(%s)", listID)
	if f.offline {
		return ErrOffline
	}
	for _, t := range f.tasks[listID] {
		if t.Status == remote.StatusCompleted {
			t.Hidden = true
		}
	}
	return nil
}

// place inserts t into the list's slice after previousID, or before the
// first sibling sharing t.Parent when previousID is empty.
func (f *Fake) place(listID string, t *remote.Task, previousID string) {
	siblings := f.tasks[listID]
	if previousID != "" {
		for i, s := range siblings {
			if s.ID == previousID {
				siblings = append(siblings[:i+1], append([]*remote.Task{t}, siblings[i+1:]...)...)
				f.tasks[listID] = siblings
				return
			}
		}
	}
	for i, s := range siblings {
		if s.Parent == t.Parent {
			siblings = append(siblings[:i], append([]*remote.Task{t}, siblings[i:]...)...)
			f.tasks[listID] = siblings
			return
		}
	}
	f.tasks[listID] = append(siblings, t)
}

// renumber assigns contiguous positions per sibling group to pending
// tasks and completion-recency positions to completed ones, matching
// the service's position semantics.
func (f *Fake) renumber(listID string) {
	indexes := make(map[string]int)
	for _, t := range f.tasks[listID] {
		if t.Status == remote.StatusCompleted {
			completed := t.Updated
			if t.Completed != nil {
				completed = *t.Completed
			}
			t.Position = position.FromCompletionDate(completed).Value()
			continue
		}
		t.Position = position.FromIndex(indexes[t.Parent]).Value()
		indexes[t.Parent]++
	}
	sort.SliceStable(f.tasks[listID], func(i, j int) bool {
		a, b := f.tasks[listID][i], f.tasks[listID][j]
		if a.Parent != b.Parent {
			return a.Parent < b.Parent
		}
		return a.Position < b.Position
	})
}

func (f *Fake) newList(title string) *remote.TaskList {
	l := &remote.TaskList{
		ID:      f.id(),
		Etag:    f.etag(),
		Title:   title,
		Updated: f.tick(),
	}
	f.lists = append(f.lists, l)
	if f.defaultID == "" {
		f.defaultID = l.ID
	}
	return l
}

func (f *Fake) findTask(listID, taskID string) *remote.Task {
	for _, t := range f.tasks[listID] {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

func (f *Fake) removeTask(listID, taskID string) {
	siblings := f.tasks[listID]
	for i, t := range siblings {
		if t.ID == taskID {
			f.tasks[listID] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	// Children of a removed task are orphaned server-side too.
	var kept []*remote.Task
	for _, t := range f.tasks[listID] {
		if t.Parent != taskID {
			kept = append(kept, t)
		}
	}
	f.tasks[listID] = kept
	f.renumber(listID)
}

func (f *Fake) record(format string, args ...any) {
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

func (f *Fake) id() string {
	f.nextID++
	return fmt.Sprintf("r%03d", f.nextID)
}

func (f *Fake) etag() string {
	f.etagSeq++
	return fmt.Sprintf("etag-%d", f.etagSeq)
}

func (f *Fake) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}
