package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openpharm/pharmsync/internal/schema"
)

// Enqueue appends an outbound operation to the sync queue.
//
// The entry's status is forced to pending and its enqueue timestamp is
// set if unset. The assigned queue ID is written back to the entry.
func (db *DB) Enqueue(ctx context.Context, entry *schema.QueueEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid queue entry: %w", err)
	}

	entry.Status = schema.StatusPending
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now()
	}

	query := `
	INSERT INTO sync_queue (table_name, record_id, operation, data, status, retry_count, timestamp)
	VALUES (?, ?, ?, ?, ?, 0, ?)
	`
	res, err := db.conn.ExecContext(ctx, query,
		entry.TableName, entry.RecordID, entry.Operation,
		string(entry.Data), entry.Status,
		formatTime(entry.EnqueuedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s/%s: %w",
			entry.Operation, entry.TableName, entry.RecordID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read queue entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListPending returns queue entries eligible for upload, oldest first.
//
// Pending, failed and syncing entries are all eligible: failed entries are
// simply retried on the next pass, and a syncing entry means a previous
// pass was interrupted mid-flight (crash, or a status write that never
// landed), so it must be re-attempted rather than stranded. The remote
// apply is idempotent, so re-applying an already-uploaded entry is safe.
// Limit restricts the batch size (0 = no limit).
func (db *DB) ListPending(ctx context.Context, limit int) ([]*schema.QueueEntry, error) {
	query := `
	SELECT id, table_name, record_id, operation, data, status, retry_count, timestamp
	FROM sync_queue
	WHERE status IN (?, ?, ?)
	ORDER BY timestamp ASC, id ASC
	`
	args := []interface{}{schema.StatusPending, schema.StatusFailed, schema.StatusSyncing}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending queue entries: %w", err)
	}
	defer rows.Close()

	var entries []*schema.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue entries: %w", err)
	}
	return entries, nil
}

// MarkSyncing flags an entry as currently being applied remotely.
func (db *DB) MarkSyncing(ctx context.Context, id int64) error {
	return db.setQueueStatus(ctx, id, schema.StatusSyncing)
}

// MarkSynced flags an entry as successfully applied to the remote store.
func (db *DB) MarkSynced(ctx context.Context, id int64) error {
	return db.setQueueStatus(ctx, id, schema.StatusSynced)
}

// MarkFailed flags an entry's attempt as failed and increments its retry
// count. Failed entries remain eligible for the next drain pass.
func (db *DB) MarkFailed(ctx context.Context, id int64) error {
	query := `UPDATE sync_queue SET status = ?, retry_count = retry_count + 1 WHERE id = ?`
	if _, err := db.conn.ExecContext(ctx, query, schema.StatusFailed, id); err != nil {
		return fmt.Errorf("failed to mark queue entry %d failed: %w", id, err)
	}
	return nil
}

func (db *DB) setQueueStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE sync_queue SET status = ? WHERE id = ?`
	if _, err := db.conn.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("failed to set queue entry %d status %s: %w", id, status, err)
	}
	return nil
}

// PendingCount returns the number of entries still awaiting upload
// (pending, failed or currently syncing).
func (db *DB) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_queue WHERE status IN (?, ?, ?)",
		schema.StatusPending, schema.StatusFailed, schema.StatusSyncing,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending queue entries: %w", err)
	}
	return count, nil
}

// QueueStats summarizes the sync queue by status.
type QueueStats struct {
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}

// GetQueueStats returns per-status counts for the sync queue.
func (db *DB) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM sync_queue GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to query queue stats: %w", err)
	}
	defer rows.Close()

	stats := &QueueStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue stats: %w", err)
		}
		switch status {
		case schema.StatusPending:
			stats.Pending = count
		case schema.StatusSyncing:
			stats.Syncing = count
		case schema.StatusSynced:
			stats.Synced = count
		case schema.StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue stats: %w", err)
	}
	return stats, nil
}

// PurgeSynced deletes synced queue entries enqueued before the cutoff and
// returns the number of rows removed. Pending, failed and in-flight
// entries are never purged.
func (db *DB) PurgeSynced(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM sync_queue WHERE status = ? AND timestamp < ?",
		schema.StatusSynced, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("failed to purge synced queue entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged entries: %w", err)
	}
	return n, nil
}

func scanQueueEntry(rows *sql.Rows) (*schema.QueueEntry, error) {
	var entry schema.QueueEntry
	var data sql.NullString
	var enqueuedAt string

	err := rows.Scan(&entry.ID, &entry.TableName, &entry.RecordID,
		&entry.Operation, &data, &entry.Status, &entry.RetryCount, &enqueuedAt)
	if err != nil {
		return nil, err
	}

	if data.Valid {
		entry.Data = []byte(data.String)
	}
	if t, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
		entry.EnqueuedAt = t
	}
	return &entry, nil
}
