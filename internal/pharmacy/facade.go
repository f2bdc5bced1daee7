package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/openpharm/pharmsync/internal/schema"
	"github.com/openpharm/pharmsync/internal/store"
	"github.com/openpharm/pharmsync/internal/syncer"
)

// ErrInsufficientStock is returned when a sale or outbound movement
// requests more units than are on hand.
var ErrInsufficientStock = errors.New("insufficient stock")

// facade implements the Facade interface.
type facade struct {
	db     *store.DB
	coord  *syncer.Coordinator
	logger *log.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Facade over the given store and coordinator.
//
// The store must be opened and have its schema initialized. If logger is
// nil, a default logger writing to stderr is used.
func New(db *store.DB, coord *syncer.Coordinator, logger *log.Logger) Facade {
	if logger == nil {
		logger = log.New(os.Stderr, "[pharmacy] ", log.LstdFlags)
	}
	return &facade{
		db:     db,
		coord:  coord,
		logger: logger,
		now:    time.Now,
	}
}

// Create implements Facade.Create.
func (f *facade) Create(ctx context.Context, rec schema.Record) (string, error) {
	if rec.RecordID() == "" {
		if err := assignID(rec); err != nil {
			return "", err
		}
	}
	if err := f.put(ctx, rec, schema.OpInsert); err != nil {
		return "", err
	}
	return rec.RecordID(), nil
}

// Update implements Facade.Update.
func (f *facade) Update(ctx context.Context, rec schema.Record) error {
	if rec.RecordID() == "" {
		return fmt.Errorf("cannot update %s record without id", rec.Table())
	}
	return f.put(ctx, rec, schema.OpUpdate)
}

// put is the shared write path: stamp updated_at, write locally, queue a
// snapshot for upload, return. Local durability is guaranteed before the
// call returns; remote durability is best-effort and asynchronous.
func (f *facade) put(ctx context.Context, rec schema.Record, op string) error {
	rec.Touch(f.now())

	if err := f.db.UpsertRecord(ctx, rec); err != nil {
		return fmt.Errorf("local write failed: %w", err)
	}

	snapshot, err := schema.Encode(rec)
	if err != nil {
		return err
	}

	entry := &schema.QueueEntry{
		TableName:  rec.Table(),
		RecordID:   rec.RecordID(),
		Operation:  op,
		Data:       snapshot,
		EnqueuedAt: f.now(),
	}
	if err := f.db.Enqueue(ctx, entry); err != nil {
		return fmt.Errorf("failed to queue %s for upload: %w", rec.Table(), err)
	}
	return nil
}

// Delete implements Facade.Delete.
func (f *facade) Delete(ctx context.Context, table, id string) error {
	if err := f.db.DeleteRecord(ctx, table, id); err != nil {
		return fmt.Errorf("local delete failed: %w", err)
	}

	entry := &schema.QueueEntry{
		TableName:  table,
		RecordID:   id,
		Operation:  schema.OpDelete,
		EnqueuedAt: f.now(),
	}
	if err := f.db.Enqueue(ctx, entry); err != nil {
		return fmt.Errorf("failed to queue delete for upload: %w", err)
	}
	return nil
}

// Get implements Facade.Get.
func (f *facade) Get(ctx context.Context, table, id string) (schema.Record, error) {
	return f.db.GetRecord(ctx, table, id)
}

// List implements Facade.List.
func (f *facade) List(ctx context.Context, table string) ([]schema.Record, error) {
	return f.db.ListRecords(ctx, table)
}

// AdjustStock implements Facade.AdjustStock.
func (f *facade) AdjustStock(ctx context.Context, productID, movementType string, quantity int, reason string) (*schema.InventoryItem, error) {
	if quantity <= 0 && movementType != schema.MovementAdjustment {
		return nil, fmt.Errorf("quantity must be positive (got %d)", quantity)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative (got %d)", quantity)
	}

	item, err := f.db.InventoryForProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		item = &schema.InventoryItem{
			ID:        schema.NewID(),
			ProductID: productID,
		}
	} else if err != nil {
		return nil, err
	}

	var next, delta int
	switch movementType {
	case schema.MovementIn:
		next = item.Quantity + quantity
		delta = quantity
	case schema.MovementOut:
		if quantity > item.Quantity {
			return nil, fmt.Errorf("%w: have %d, want %d", ErrInsufficientStock, item.Quantity, quantity)
		}
		next = item.Quantity - quantity
		delta = quantity
	case schema.MovementAdjustment:
		next = quantity
		delta = quantity - item.Quantity
		if delta < 0 {
			delta = -delta
		}
	default:
		return nil, fmt.Errorf("movement type must be in, out or adjustment (got %q)", movementType)
	}

	item.Quantity = next
	if err := f.put(ctx, item, upsertOp(item.CreatedAt)); err != nil {
		return nil, err
	}

	if delta == 0 {
		// Adjustment to the current count; nothing moved.
		return item, nil
	}

	movement := &schema.StockMovement{
		ID:        schema.NewID(),
		ProductID: productID,
		Type:      movementType,
		Quantity:  delta,
		Reason:    reason,
		Timestamp: f.now(),
	}
	if err := f.put(ctx, movement, schema.OpInsert); err != nil {
		return nil, err
	}

	f.logger.Printf("Stock %s for %s: %d units (%s), now %d on hand",
		movementType, productID, delta, reason, item.Quantity)
	return item, nil
}

// RecordSale implements Facade.RecordSale.
func (f *facade) RecordSale(ctx context.Context, sale *schema.Sale, lines []SaleLine) (*schema.Sale, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("sale requires at least one line")
	}

	// Check every line before writing anything.
	type pricedLine struct {
		product *schema.Product
		qty     int
	}
	priced := make([]pricedLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("line quantity must be positive (got %d)", line.Quantity)
		}

		rec, err := f.db.GetRecord(ctx, schema.TableProducts, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("unknown product %s: %w", line.ProductID, err)
		}
		product := rec.(*schema.Product)

		item, err := f.db.InventoryForProduct(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no inventory for %s", ErrInsufficientStock, product.Name)
		}
		if err != nil {
			return nil, err
		}
		if item.Quantity < line.Quantity {
			return nil, fmt.Errorf("%w: %s has %d, want %d",
				ErrInsufficientStock, product.Name, item.Quantity, line.Quantity)
		}
		priced = append(priced, pricedLine{product: product, qty: line.Quantity})
	}

	if sale == nil {
		sale = &schema.Sale{}
	}
	if sale.ID == "" {
		sale.ID = schema.NewID()
	}
	if sale.PaymentMethod == "" {
		sale.PaymentMethod = schema.PaymentCash
	}

	var total float64
	for _, pl := range priced {
		total += pl.product.Price * float64(pl.qty)
	}
	sale.Total = total

	if err := f.put(ctx, sale, schema.OpInsert); err != nil {
		return nil, err
	}

	for _, pl := range priced {
		item := &schema.SaleItem{
			ID:        schema.NewID(),
			SaleID:    sale.ID,
			ProductID: pl.product.ID,
			Quantity:  pl.qty,
			UnitPrice: pl.product.Price,
			Subtotal:  pl.product.Price * float64(pl.qty),
		}
		if err := f.put(ctx, item, schema.OpInsert); err != nil {
			return nil, err
		}

		if _, err := f.AdjustStock(ctx, pl.product.ID, schema.MovementOut, pl.qty,
			fmt.Sprintf("sale %s", sale.ID)); err != nil {
			return nil, err
		}
	}

	f.logger.Printf("Recorded sale %s: %d lines, total %.2f", sale.ID, len(priced), sale.Total)
	return sale, nil
}

// ForceSync implements Facade.ForceSync.
func (f *facade) ForceSync(ctx context.Context) (*syncer.DrainResult, error) {
	return f.coord.ForceSync(ctx)
}

// SyncStatus implements Facade.SyncStatus.
func (f *facade) SyncStatus() syncer.Status {
	return f.coord.Status()
}

// PendingSyncCount implements Facade.PendingSyncCount.
func (f *facade) PendingSyncCount(ctx context.Context) (int, error) {
	return f.db.PendingCount(ctx)
}

// LowStock implements Facade.LowStock.
func (f *facade) LowStock(ctx context.Context) ([]*schema.InventoryItem, error) {
	return f.db.ListLowStock(ctx)
}

// Expiring implements Facade.Expiring.
func (f *facade) Expiring(ctx context.Context, window time.Duration) ([]*schema.InventoryItem, error) {
	return f.db.ListExpiring(ctx, f.now().Add(window))
}

// Movements implements Facade.Movements.
func (f *facade) Movements(ctx context.Context, productID string, limit int) ([]*schema.StockMovement, error) {
	return f.db.MovementsForProduct(ctx, productID, limit)
}

// assignID gives a fresh ID to a record missing one.
func assignID(rec schema.Record) error {
	id := schema.NewID()
	switch r := rec.(type) {
	case *schema.Product:
		r.ID = id
	case *schema.InventoryItem:
		r.ID = id
	case *schema.Sale:
		r.ID = id
	case *schema.SaleItem:
		r.ID = id
	case *schema.StockMovement:
		r.ID = id
	default:
		return fmt.Errorf("unsupported record type %T", rec)
	}
	return nil
}

// upsertOp picks insert for a record never written before, update
// otherwise. CreatedAt is only zero before the first Touch.
func upsertOp(createdAt time.Time) string {
	if createdAt.IsZero() {
		return schema.OpInsert
	}
	return schema.OpUpdate
}
