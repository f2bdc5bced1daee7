// Package pharmacy provides the single entry point used by all callers
// of the sync engine: local-first reads and writes over the store, with
// every write queued for asynchronous upload to the remote store.
package pharmacy

import (
	"context"
	"time"

	"github.com/openpharm/pharmsync/internal/schema"
	"github.com/openpharm/pharmsync/internal/syncer"
)

// Facade is the local-first API surface for the pharmacy.
//
// Writes go to the local store synchronously and are queued for remote
// upload before the call returns; the remote write is never awaited.
// Reads hit the local store only and never block on network activity.
type Facade interface {
	// Create stamps updated_at, writes the record locally, queues an
	// insert for upload and returns the record's ID. A record without
	// an ID is assigned a fresh one.
	Create(ctx context.Context, rec schema.Record) (string, error)

	// Update stamps updated_at, replaces the local record and queues an
	// update for upload.
	Update(ctx context.Context, rec schema.Record) error

	// Delete removes the local record and queues a delete for upload.
	Delete(ctx context.Context, table, id string) error

	// Get returns a record from the local store.
	// Returns store.ErrNotFound if no record matches.
	Get(ctx context.Context, table, id string) (schema.Record, error)

	// List returns all local records in a table, most recently
	// changed first.
	List(ctx context.Context, table string) ([]schema.Record, error)

	// AdjustStock changes a product's on-hand quantity through the
	// movement path: the inventory row is updated AND a StockMovement
	// describing the delta is appended. This is the only supported way
	// to change quantity.
	//
	// For MovementIn, quantity units are added; for MovementOut,
	// removed (ErrInsufficientStock if not available); for
	// MovementAdjustment, quantity is the new absolute count and the
	// movement records the magnitude of the correction.
	AdjustStock(ctx context.Context, productID, movementType string, quantity int, reason string) (*schema.InventoryItem, error)

	// RecordSale writes a sale with its line items and moves stock out
	// for each line. Stock levels for every line are checked before
	// anything is written.
	RecordSale(ctx context.Context, sale *schema.Sale, lines []SaleLine) (*schema.Sale, error)

	// ForceSync runs one draining pass immediately. Fails fast with
	// syncer.ErrOffline when the remote is unreachable.
	ForceSync(ctx context.Context) (*syncer.DrainResult, error)

	// SyncStatus returns the coordinator's observable state.
	SyncStatus() syncer.Status

	// PendingSyncCount returns the number of queue entries still
	// awaiting upload.
	PendingSyncCount(ctx context.Context) (int, error)

	// LowStock returns inventory items at or below their reorder point.
	LowStock(ctx context.Context) ([]*schema.InventoryItem, error)

	// Expiring returns inventory items whose batch expires within the
	// given window from now.
	Expiring(ctx context.Context, window time.Duration) ([]*schema.InventoryItem, error)

	// Movements returns a product's stock movements, newest first.
	Movements(ctx context.Context, productID string, limit int) ([]*schema.StockMovement, error)
}

// SaleLine is one requested line of a sale: the product and how many
// units to sell. Prices are looked up from the local catalog.
type SaleLine struct {
	ProductID string
	Quantity  int
}
