// Package sync reconciles the local store with the remote task service.
// A pass replays pending delete tombstones, pulls remote changes,
// removes stale local records (on the first pass or on demand), and
// pushes local-only records in dependency order.
// Every unit of work fails independently: one bad list or task never
// blocks its siblings, and un-pushed records simply remain for the next
// pass.
package sync

import (
	"context"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/lhoang/tasksync/internal/model"
	"github.com/lhoang/tasksync/internal/remote"
	"github.com/lhoang/tasksync/internal/store"
)

// State represents the current state of the sync engine.
type State int

const (
	Idle State = iota
	Running
	Failed
)

// Status reports the outcome of the most recent sync pass.
type Status struct {
	State   State
	LastRun time.Time
	Err     error
}

// Engine coordinates bidirectional synchronization between the local
// store and the remote task service.
type Engine struct {
	store    store.Store
	remote   remote.Client
	interval time.Duration
	now      func() time.Time

	mu        gosync.Mutex
	status    Status
	triggerCh chan struct{}
}

// New creates a sync engine. interval governs the periodic loop started
// by Run; Sync can always be called directly.
func New(st store.Store, client remote.Client, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Engine{
		store:     st,
		remote:    client,
		interval:  interval,
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
	}
}

// Run repeats sync passes on a fixed interval until ctx is cancelled.
// An initial pass runs immediately. Trigger forces an extra pass.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	if err := e.Sync(ctx); err != nil {
		log.Printf("sync: pass failed: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.triggerCh:
		}
		if err := e.Sync(ctx); err != nil {
			log.Printf("sync: pass failed: %v", err)
		}
	}
}

// Trigger requests an immediate pass from a running loop without
// blocking; if a trigger is already pending it is coalesced.
func (e *Engine) Trigger() {
	select {
	case e.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the outcome of the most recent pass.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Sync runs one reconciliation pass. Stale cleanup runs only if no pass
// has ever completed (full pull).
func (e *Engine) Sync(ctx context.Context) error {
	return e.pass(ctx, false)
}

// SyncFull runs one reconciliation pass with stale cleanup forced.
func (e *Engine) SyncFull(ctx context.Context) error {
	return e.pass(ctx, true)
}

func (e *Engine) pass(ctx context.Context, forceCleanup bool) error {
	e.setStatus(Running, nil)

	last, err := e.store.LastSync(ctx)
	if err != nil {
		e.setStatus(Failed, err)
		return err
	}
	firstSync := last == nil

	// If the service is unreachable the whole pass aborts here, leaving
	// the last-sync watermark untouched; retrying later is safe.
	remoteLists, err := e.remote.ListTaskLists(ctx)
	if err != nil {
		err = fmt.Errorf("listing remote task lists: %w", err)
		e.setStatus(Failed, err)
		return err
	}

	started := e.now().UTC()

	e.replayTombstones(ctx)
	e.pull(ctx, remoteLists, last)
	// Cleanup precedes the push: it works off the listing snapshot taken
	// above, which cannot know about records pushed in this pass.
	if firstSync || forceCleanup {
		e.staleCleanup(ctx, remoteLists)
	}
	e.push(ctx)

	if err := e.store.SetLastSync(ctx, started); err != nil {
		e.setStatus(Failed, err)
		return err
	}
	e.setStatus(Idle, nil)
	return nil
}

// === pull ===

func (e *Engine) pull(ctx context.Context, remoteLists []remote.TaskList, since *time.Time) {
	for _, rl := range remoteLists {
		if err := e.pullList(ctx, rl, since); err != nil {
			log.Printf("sync: pulling list %q: %v", rl.Title, err)
		}
	}
}

func (e *Engine) pullList(ctx context.Context, rl remote.TaskList, since *time.Time) error {
	local, err := e.upsertList(ctx, rl)
	if err != nil {
		return err
	}

	// The first pull must be unfiltered: an update-filtered listing can
	// omit unmodified parents, leaving child linkage unresolvable.
	opts := remote.ListTasksOptions{ShowCompleted: true, ShowHidden: true}
	if since != nil {
		opts.UpdatedSince = *since
	}
	remoteTasks, err := e.remote.ListTasks(ctx, rl.ID, opts)
	if err != nil {
		return err
	}

	for _, rt := range remoteTasks {
		if err := e.upsertTask(ctx, local.LocalID, rt); err != nil {
			log.Printf("sync: upserting task %q: %v", rt.Title, err)
		}
	}
	if err := e.resolveParentLinks(ctx, local.LocalID); err != nil {
		log.Printf("sync: resolving parent links in list %q: %v", local.Title, err)
	}
	return nil
}

// upsertList updates the local row matching the remote list in place,
// preserving its local id, or creates one.
func (e *Engine) upsertList(ctx context.Context, rl remote.TaskList) (*model.TaskList, error) {
	local, err := e.store.GetTaskListByRemoteID(ctx, rl.ID)
	if store.IsNotFound(err) {
		created, err := e.store.CreateTaskList(ctx, model.TaskList{
			RemoteID:   &rl.ID,
			Etag:       rl.Etag,
			Title:      rl.Title,
			LastUpdate: rl.Updated,
			Sorting:    model.SortingManual,
		})
		if err != nil {
			return nil, err
		}
		return &created, nil
	}
	if err != nil {
		return nil, err
	}

	if local.Etag != rl.Etag {
		local.Title = rl.Title
		local.Etag = rl.Etag
		local.LastUpdate = rl.Updated
		if err := e.store.UpdateTaskList(ctx, *local); err != nil {
			return nil, err
		}
	}
	return local, nil
}

// upsertTask applies one remote task to the local store, keyed by remote
// id and preserving the existing local id on update. Last writer wins:
// the remote copy replaces local fields wholesale.
func (e *Engine) upsertTask(ctx context.Context, listLocalID int64, rt remote.Task) error {
	local, err := e.store.GetTaskByRemoteID(ctx, rt.ID)

	if rt.Deleted {
		if store.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		return e.store.DeleteTask(ctx, local.LocalID)
	}

	if store.IsNotFound(err) {
		task := model.Task{ListLocalID: listLocalID}
		remote.ApplyToModel(rt, &task)
		_, err := e.store.CreateTask(ctx, task)
		return err
	}
	if err != nil {
		return err
	}

	local.ListLocalID = listLocalID
	remote.ApplyToModel(rt, local)
	return e.store.UpdateTask(ctx, *local)
}

// resolveParentLinks rewires parent_local_id from the remote parent ids
// recorded during the pull. Tasks never pushed keep their local linkage
// untouched; for synced tasks the remote linkage is authoritative.
func (e *Engine) resolveParentLinks(ctx context.Context, listLocalID int64) error {
	tasks, err := e.store.GetTasks(ctx, listLocalID)
	if err != nil {
		return err
	}

	byRemoteID := make(map[string]int64, len(tasks))
	for _, t := range tasks {
		if t.Synced() {
			byRemoteID[*t.RemoteID] = t.LocalID
		}
	}

	for _, t := range tasks {
		if !t.Synced() {
			continue
		}
		var want *int64
		if t.ParentRemoteID != nil {
			id, ok := byRemoteID[*t.ParentRemoteID]
			if !ok {
				// Parent not pulled in this (incremental) pass and not
				// known locally; leave linkage for a later full pull.
				continue
			}
			want = &id
		}
		if sameParent(t.ParentLocalID, want) {
			continue
		}
		t.ParentLocalID = want
		if err := e.store.UpdateTask(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// === push ===

func (e *Engine) push(ctx context.Context) {
	unsyncedLists, err := e.store.GetUnsyncedTaskLists(ctx)
	if err != nil {
		log.Printf("sync: loading unsynced lists: %v", err)
		return
	}
	for _, l := range unsyncedLists {
		created, err := e.remote.InsertTaskList(ctx, l.Title)
		if err != nil {
			log.Printf("sync: pushing list %q: %v", l.Title, err)
			continue
		}
		l.RemoteID = &created.ID
		l.Etag = created.Etag
		if err := e.store.UpdateTaskList(ctx, l); err != nil {
			log.Printf("sync: attaching remote id to list %q: %v", l.Title, err)
		}
	}

	lists, err := e.store.GetTaskLists(ctx)
	if err != nil {
		log.Printf("sync: loading lists: %v", err)
		return
	}
	for _, l := range lists {
		if !l.Synced() {
			// The list insert above failed; its tasks wait for the next pass.
			continue
		}
		if err := e.pushListTasks(ctx, l); err != nil {
			log.Printf("sync: pushing tasks of list %q: %v", l.Title, err)
		}
	}
}

// pushListTasks inserts the list's never-pushed tasks remotely in
// dependency order: the root sibling group first, then each root's
// children, threading every insert with the previous sibling's remote id
// so remote ordering matches local ordering. A failed parent insert
// skips its children; they retry next pass since their remote id is
// still unset.
func (e *Engine) pushListTasks(ctx context.Context, list model.TaskList) error {
	tasks, err := e.store.GetTasks(ctx, list.LocalID)
	if err != nil {
		return err
	}

	// GetTasks orders by position, so groups come out position-ordered.
	const rootKey = int64(0)
	groups := make(map[int64][]model.Task)
	var roots []model.Task
	for _, t := range tasks {
		key := rootKey
		if t.ParentLocalID != nil {
			key = *t.ParentLocalID
		} else {
			roots = append(roots, t)
		}
		groups[key] = append(groups[key], t)
	}

	remoteIDs := make(map[int64]string, len(tasks))
	for _, t := range tasks {
		if t.Synced() {
			remoteIDs[t.LocalID] = *t.RemoteID
		}
	}

	pushGroup := func(group []model.Task, parentRemoteID string) {
		previousID := ""
		for _, t := range group {
			if t.Synced() {
				previousID = *t.RemoteID
				continue
			}
			created, err := e.remote.InsertTask(ctx, *list.RemoteID, remote.FromModel(t), parentRemoteID, previousID)
			if err != nil {
				log.Printf("sync: pushing task %q: %v", t.Title, err)
				continue
			}
			parentLocalID := t.ParentLocalID
			remote.ApplyToModel(*created, &t)
			t.ParentLocalID = parentLocalID
			if err := e.store.UpdateTask(ctx, t); err != nil {
				log.Printf("sync: attaching remote id to task %q: %v", t.Title, err)
				continue
			}
			remoteIDs[t.LocalID] = created.ID
			previousID = created.ID
		}
	}

	pushGroup(groups[rootKey], "")
	for _, root := range roots {
		children := groups[root.LocalID]
		if len(children) == 0 {
			continue
		}
		parentRemoteID, ok := remoteIDs[root.LocalID]
		if !ok {
			continue
		}
		pushGroup(children, parentRemoteID)
	}
	return nil
}

// === tombstones ===

// replayTombstones pushes deletes recorded while offline. It runs
// before the pull so a record deleted locally is removed remotely
// rather than resurrected by its still-live remote copy.
func (e *Engine) replayTombstones(ctx context.Context) {
	tombstones, err := e.store.GetTombstones(ctx)
	if err != nil {
		log.Printf("sync: loading tombstones: %v", err)
		return
	}
	for _, ts := range tombstones {
		var err error
		switch ts.Kind {
		case model.TombstoneList:
			err = e.remote.DeleteTaskList(ctx, ts.RemoteID)
		case model.TombstoneTask:
			err = e.remote.DeleteTask(ctx, ts.ListRemoteID, ts.RemoteID)
		}
		// A remote not-found means someone else already deleted it.
		if err != nil && !remote.IsNotFound(err) {
			log.Printf("sync: replaying %s delete %q: %v", ts.Kind, ts.RemoteID, err)
			continue
		}
		if err := e.store.DeleteTombstone(ctx, ts.ID); err != nil {
			log.Printf("sync: clearing tombstone %d: %v", ts.ID, err)
		}
	}
}

// === stale cleanup ===

// staleCleanup deletes local records whose remote counterpart no longer
// exists (deleted from another client). It requires full remote
// listings, so it runs only on the first sync or on demand.
func (e *Engine) staleCleanup(ctx context.Context, remoteLists []remote.TaskList) {
	liveListIDs := make(map[string]bool, len(remoteLists))
	for _, rl := range remoteLists {
		liveListIDs[rl.ID] = true
	}

	lists, err := e.store.GetTaskLists(ctx)
	if err != nil {
		log.Printf("sync: loading lists for cleanup: %v", err)
		return
	}
	for _, l := range lists {
		if !l.Synced() {
			continue
		}
		if !liveListIDs[*l.RemoteID] {
			if err := e.store.DeleteTaskList(ctx, l.LocalID); err != nil {
				log.Printf("sync: removing stale list %q: %v", l.Title, err)
			}
			continue
		}
		if err := e.cleanupListTasks(ctx, l); err != nil {
			log.Printf("sync: cleaning up tasks of list %q: %v", l.Title, err)
		}
	}
}

func (e *Engine) cleanupListTasks(ctx context.Context, list model.TaskList) error {
	remoteTasks, err := e.remote.ListTasks(ctx, *list.RemoteID, remote.ListTasksOptions{
		ShowCompleted: true,
		ShowHidden:    true,
	})
	if err != nil {
		return err
	}
	live := make(map[string]bool, len(remoteTasks))
	for _, rt := range remoteTasks {
		if !rt.Deleted {
			live[rt.ID] = true
		}
	}

	tasks, err := e.store.GetTasks(ctx, list.LocalID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if !t.Synced() || live[*t.RemoteID] {
			continue
		}
		if err := e.store.DeleteTask(ctx, t.LocalID); err != nil && !store.IsNotFound(err) {
			log.Printf("sync: removing stale task %q: %v", t.Title, err)
		}
	}
	return nil
}

func (e *Engine) setStatus(state State, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.State = state
	e.status.Err = err
	if state != Running {
		e.status.LastRun = e.now()
	}
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
