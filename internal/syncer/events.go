package syncer

import "time"

// EventType identifies a sync lifecycle event.
type EventType string

const (
	// EventOnline fires when the connectivity probe transitions to reachable.
	EventOnline EventType = "online"

	// EventOffline fires when the connectivity probe transitions to unreachable.
	EventOffline EventType = "offline"

	// EventDrainComplete fires after each draining pass.
	EventDrainComplete EventType = "drain_complete"

	// EventPullComplete fires after each successful pulling pass.
	EventPullComplete EventType = "pull_complete"

	// EventConflictSkipped fires when a pulled record loses last-write-wins
	// and the local copy is kept. Informational, not an error.
	EventConflictSkipped EventType = "conflict_skipped"

	// EventQueuePurged fires when the retention pass removes synced entries.
	EventQueuePurged EventType = "queue_purged"
)

// Event is one sync lifecycle notification. Only the fields relevant to
// the event type are populated.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`

	Drain *DrainResult `json:"drain,omitempty"`
	Pull  *PullResult  `json:"pull,omitempty"`

	Table    string `json:"table,omitempty"`
	RecordID string `json:"record_id,omitempty"`

	Purged int64 `json:"purged,omitempty"`
}
