package schema

import (
	"fmt"
	"time"
)

// Stock movement types.
const (
	// MovementIn records stock received (deliveries, returns to shelf).
	MovementIn = "in"
	// MovementOut records stock leaving (sales, disposal).
	MovementOut = "out"
	// MovementAdjustment records a manual correction to an absolute count.
	MovementAdjustment = "adjustment"
)

// StockMovement is an append-only record of one quantity delta for a
// product. Movements are never updated or deleted after creation; the
// inventory quantity is derived from them through the stock-update path.
type StockMovement struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`

	// Type is one of MovementIn, MovementOut, MovementAdjustment.
	Type string `json:"type"`

	// Quantity is the magnitude of the change, always positive.
	// The direction comes from Type.
	Quantity int `json:"quantity"`

	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordID implements Record.
func (m *StockMovement) RecordID() string { return m.ID }

// Table implements Record.
func (m *StockMovement) Table() string { return TableStockMovements }

// ModifiedAt implements Record.
func (m *StockMovement) ModifiedAt() time.Time { return m.UpdatedAt }

// Touch implements Record.
func (m *StockMovement) Touch(now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	m.UpdatedAt = now
}

// Validate implements Record.
func (m *StockMovement) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	switch m.Type {
	case MovementIn, MovementOut, MovementAdjustment:
	default:
		return fmt.Errorf("type must be in, out or adjustment (got %q)", m.Type)
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive (got %d)", m.Quantity)
	}
	return nil
}
