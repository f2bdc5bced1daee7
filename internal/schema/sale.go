package schema

import (
	"fmt"
	"time"
)

// Payment methods accepted at the counter.
const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentMobile = "mobile"
)

// Sale represents one completed point-of-sale transaction.
// Line items live in SaleItem rows referencing the sale's ID.
type Sale struct {
	ID string `json:"id"`

	Total         float64 `json:"total"`
	PaymentMethod string  `json:"payment_method"`
	CashierName   string  `json:"cashier_name,omitempty"`

	SoldAt time.Time `json:"sold_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordID implements Record.
func (s *Sale) RecordID() string { return s.ID }

// Table implements Record.
func (s *Sale) Table() string { return TableSales }

// ModifiedAt implements Record.
func (s *Sale) ModifiedAt() time.Time { return s.UpdatedAt }

// Touch implements Record.
func (s *Sale) Touch(now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.SoldAt.IsZero() {
		s.SoldAt = now
	}
	s.UpdatedAt = now
}

// Validate implements Record.
func (s *Sale) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.Total < 0 {
		return fmt.Errorf("total must not be negative (got %v)", s.Total)
	}
	if s.PaymentMethod == "" {
		return fmt.Errorf("payment_method is required")
	}
	return nil
}

// SaleItem is one line of a sale: a product, the quantity sold and the
// unit price at the time of sale.
type SaleItem struct {
	ID        string `json:"id"`
	SaleID    string `json:"sale_id"`
	ProductID string `json:"product_id"`

	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordID implements Record.
func (si *SaleItem) RecordID() string { return si.ID }

// Table implements Record.
func (si *SaleItem) Table() string { return TableSaleItems }

// ModifiedAt implements Record.
func (si *SaleItem) ModifiedAt() time.Time { return si.UpdatedAt }

// Touch implements Record.
func (si *SaleItem) Touch(now time.Time) {
	if si.CreatedAt.IsZero() {
		si.CreatedAt = now
	}
	si.UpdatedAt = now
}

// Validate implements Record.
func (si *SaleItem) Validate() error {
	if si.ID == "" {
		return fmt.Errorf("id is required")
	}
	if si.SaleID == "" {
		return fmt.Errorf("sale_id is required")
	}
	if si.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	if si.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive (got %d)", si.Quantity)
	}
	if si.UnitPrice < 0 {
		return fmt.Errorf("unit_price must not be negative (got %v)", si.UnitPrice)
	}
	return nil
}
