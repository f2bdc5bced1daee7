package schema

import (
	"fmt"
	"time"
)

// Product represents one catalog entry in the pharmacy.
//
// Products are referenced by InventoryItem, SaleItem and StockMovement
// rows via ProductID. Price is stored in the pharmacy's base currency.
type Product struct {
	ID string `json:"id"`

	Name        string `json:"name"`
	GenericName string `json:"generic_name,omitempty"`
	Category    string `json:"category,omitempty"`
	Barcode     string `json:"barcode,omitempty"`

	Price                float64 `json:"price"`
	RequiresPrescription bool    `json:"requires_prescription,omitempty"`
	Manufacturer         string  `json:"manufacturer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordID implements Record.
func (p *Product) RecordID() string { return p.ID }

// Table implements Record.
func (p *Product) Table() string { return TableProducts }

// ModifiedAt implements Record.
func (p *Product) ModifiedAt() time.Time { return p.UpdatedAt }

// Touch implements Record.
func (p *Product) Touch(now time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

// Validate implements Record.
func (p *Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Price < 0 {
		return fmt.Errorf("price must not be negative (got %v)", p.Price)
	}
	return nil
}
