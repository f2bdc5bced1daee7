package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// Queue operations.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Queue entry statuses.
const (
	// StatusPending marks an entry awaiting its first or next upload attempt.
	StatusPending = "pending"
	// StatusSyncing marks an entry currently being applied remotely.
	StatusSyncing = "syncing"
	// StatusSynced marks an entry successfully applied to the remote store.
	StatusSynced = "synced"
	// StatusFailed marks an entry whose last attempt failed. Failed entries
	// stay eligible for retry on the next drain pass.
	StatusFailed = "failed"
)

// QueueEntry is one outbound sync operation: a recorded intent to apply
// an insert, update or delete for a single record against the remote
// store. Data holds a JSON snapshot of the record taken at enqueue time,
// treated as opaque by the coordinator.
type QueueEntry struct {
	ID int64 `json:"id"`

	TableName string `json:"table_name"`
	RecordID  string `json:"record_id"`
	Operation string `json:"operation"`

	Data json.RawMessage `json:"data,omitempty"`

	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	EnqueuedAt time.Time `json:"timestamp"`
}

// Validate checks required fields and enum values.
func (e *QueueEntry) Validate() error {
	if e.TableName == "" {
		return fmt.Errorf("table_name is required")
	}
	if !KnownTable(e.TableName) {
		return fmt.Errorf("unknown table %q", e.TableName)
	}
	if e.RecordID == "" {
		return fmt.Errorf("record_id is required")
	}
	switch e.Operation {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("operation must be insert, update or delete (got %q)", e.Operation)
	}
	if e.Operation != OpDelete && len(e.Data) == 0 {
		return fmt.Errorf("data snapshot is required for %s", e.Operation)
	}
	return nil
}
