package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lhoang/tasksync/internal/model"
)

// AddTombstone records the remote identity of a locally deleted record.
// Callers invoke this inside the same transaction as the delete itself
// so an offline delete survives a process restart.
func (s *SQLiteStore) AddTombstone(ctx context.Context, ts model.Tombstone) error {
	if ts.DeletedAt.IsZero() {
		ts.DeletedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tombstone (kind, list_remote_id, remote_id, deleted_at)
		VALUES (?, ?, ?, ?)`,
		ts.Kind, ts.ListRemoteID, ts.RemoteID, ts.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("adding %s tombstone for %q: %w", ts.Kind, ts.RemoteID, err)
	}
	return nil
}

// GetTombstones retrieves all pending tombstones, oldest first.
func (s *SQLiteStore) GetTombstones(ctx context.Context) ([]model.Tombstone, error) {
	var tombstones []model.Tombstone
	err := s.q.SelectContext(ctx, &tombstones,
		"SELECT id, kind, list_remote_id, remote_id, deleted_at FROM tombstone ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying tombstones: %w", err)
	}
	return tombstones, nil
}

// DeleteTombstone clears a tombstone once its remote delete has been
// acknowledged.
func (s *SQLiteStore) DeleteTombstone(ctx context.Context, id int64) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM tombstone WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting tombstone %d: %w", id, err)
	}
	return nil
}

// DeleteTombstoneForRemoteID clears any tombstones recorded for the
// given remote identity, used when a delete was mirrored immediately.
func (s *SQLiteStore) DeleteTombstoneForRemoteID(
	ctx context.Context,
	kind model.TombstoneKind,
	remoteID string,
) error {
	_, err := s.q.ExecContext(ctx,
		"DELETE FROM tombstone WHERE kind = ? AND remote_id = ?", kind, remoteID)
	if err != nil {
		return fmt.Errorf("deleting %s tombstone for %q: %w", kind, remoteID, err)
	}
	return nil
}

// LastSync returns the timestamp of the last fully successful sync pass,
// or nil if no pass has ever completed.
func (s *SQLiteStore) LastSync(ctx context.Context) (*time.Time, error) {
	var last *time.Time
	err := s.q.GetContext(ctx, &last, "SELECT last_sync FROM sync_state WHERE id = 1")
	if err != nil {
		return nil, fmt.Errorf("reading last sync time: %w", err)
	}
	return last, nil
}

// SetLastSync records the completion time of a successful sync pass.
func (s *SQLiteStore) SetLastSync(ctx context.Context, t time.Time) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE sync_state SET last_sync = ? WHERE id = 1", t.UTC())
	if err != nil {
		return fmt.Errorf("writing last sync time: %w", err)
	}
	return nil
}
