package schema

import (
	"fmt"
	"time"
)

// InventoryItem tracks on-hand stock for one product.
//
// Quantity must only be changed through the stock-update path, which
// also appends a StockMovement describing the delta. One inventory row
// per product is assumed but not enforced by the store.
type InventoryItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`

	Quantity     int `json:"quantity"`
	ReorderPoint int `json:"reorder_point"`

	BatchNumber string     `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordID implements Record.
func (i *InventoryItem) RecordID() string { return i.ID }

// Table implements Record.
func (i *InventoryItem) Table() string { return TableInventory }

// ModifiedAt implements Record.
func (i *InventoryItem) ModifiedAt() time.Time { return i.UpdatedAt }

// Touch implements Record.
func (i *InventoryItem) Touch(now time.Time) {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
}

// Validate implements Record.
func (i *InventoryItem) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("id is required")
	}
	if i.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	if i.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative (got %d)", i.Quantity)
	}
	if i.ReorderPoint < 0 {
		return fmt.Errorf("reorder_point must not be negative (got %d)", i.ReorderPoint)
	}
	return nil
}

// LowStock reports whether the item is at or below its reorder point.
func (i *InventoryItem) LowStock() bool {
	return i.Quantity <= i.ReorderPoint
}

// Expired reports whether the item's batch has expired as of now.
func (i *InventoryItem) Expired(now time.Time) bool {
	return i.ExpiryDate != nil && i.ExpiryDate.Before(now)
}
