package schema

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Table names for all synced business records.
const (
	TableProducts       = "products"
	TableInventory      = "inventory"
	TableSales          = "sales"
	TableSaleItems      = "sale_items"
	TableStockMovements = "stock_movements"
)

// Tables lists all synced tables in pull order. Products come first so
// that foreign references resolve when a fresh device hydrates from the
// remote store.
var Tables = []string{
	TableProducts,
	TableInventory,
	TableSales,
	TableSaleItems,
	TableStockMovements,
}

// KnownTable reports whether name is one of the synced business tables.
func KnownTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

// Record is implemented by every synced business record.
//
// Records are flat structs with string IDs and an updated_at timestamp
// used for last-write-wins conflict resolution. Implementations live in
// this package; callers receive concrete types from Decode or from the
// store and may type-assert when they need table-specific fields.
type Record interface {
	// RecordID returns the record's globally unique ID.
	RecordID() string

	// Table returns the table this record belongs to.
	Table() string

	// ModifiedAt returns the record's updated_at timestamp.
	ModifiedAt() time.Time

	// Touch refreshes updated_at (and created_at if unset) to now.
	// Every mutation path must call Touch before the record is written
	// locally or queued for upload.
	Touch(now time.Time)

	// Validate checks required fields and value ranges.
	Validate() error
}

// NewID returns a fresh record ID.
func NewID() string {
	return uuid.NewString()
}

// Decode unmarshals a JSON snapshot into the concrete record type for
// the given table. The record is validated before being returned.
func Decode(table string, data []byte) (Record, error) {
	var rec Record
	switch table {
	case TableProducts:
		rec = &Product{}
	case TableInventory:
		rec = &InventoryItem{}
	case TableSales:
		rec = &Sale{}
	case TableSaleItems:
		rec = &SaleItem{}
	case TableStockMovements:
		rec = &StockMovement{}
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}

	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to parse %s record: %w", table, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s record: %w", table, err)
	}
	return rec, nil
}

// Encode marshals a record to its JSON snapshot form.
func Encode(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s record %s: %w", rec.Table(), rec.RecordID(), err)
	}
	return data, nil
}
