package dashboard

import (
	"encoding/json"
	"time"
)

// MessageType defines the type of dashboard message.
type MessageType string

const (
	// MessageTypeSyncEvent carries a sync coordinator event (online,
	// offline, drain_complete, pull_complete, conflict_skipped,
	// queue_purged).
	MessageTypeSyncEvent MessageType = "sync_event"

	// MessageTypeStatus carries a connectivity/queue status snapshot.
	MessageTypeStatus MessageType = "status"
)

// Message is a dashboard broadcast frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StatusData is the payload of a status snapshot message.
type StatusData struct {
	Online       bool `json:"online"`
	Syncing      bool `json:"syncing"`
	PendingCount int  `json:"pending_count"`
}
