package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// lastSyncKey is the sync_metadata key holding the pull low-water mark.
const lastSyncKey = "last_sync_timestamp"

// LastSyncTime returns the timestamp of the last successful pull, or the
// zero time if no pull has completed yet.
func (db *DB) LastSyncTime(ctx context.Context) (time.Time, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx,
		"SELECT value FROM sync_metadata WHERE key = ?", lastSyncKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last sync time: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed last sync time %q: %w", raw, err)
	}
	return t, nil
}

// SetLastSyncTime records the pull low-water mark. Overwritten after
// every successful pull.
func (db *DB) SetLastSyncTime(ctx context.Context, t time.Time) error {
	query := `
	INSERT INTO sync_metadata (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := db.conn.ExecContext(ctx, query, lastSyncKey, formatTime(t)); err != nil {
		return fmt.Errorf("failed to set last sync time: %w", err)
	}
	return nil
}
