package pharmacy

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openpharm/pharmsync/internal/schema"
	"github.com/openpharm/pharmsync/internal/store"
	"github.com/openpharm/pharmsync/internal/syncer"
)

// flakyRemote is a syncer.RemoteStore whose reachability is switchable.
type flakyRemote struct {
	mu      sync.Mutex
	online  bool
	applied []*schema.QueueEntry
}

func (r *flakyRemote) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.online {
		return errors.New("unreachable")
	}
	return nil
}

func (r *flakyRemote) Apply(ctx context.Context, entry *schema.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.online {
		return errors.New("unreachable")
	}
	r.applied = append(r.applied, entry)
	return nil
}

func (r *flakyRemote) ChangedSince(ctx context.Context, table string, since time.Time) ([]schema.Record, error) {
	return nil, nil
}

func (r *flakyRemote) setOnline(online bool) {
	r.mu.Lock()
	r.online = online
	r.mu.Unlock()
}

func (r *flakyRemote) appliedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.applied)
}

func testFacade(t *testing.T) (Facade, *store.DB, *flakyRemote) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	remote := &flakyRemote{online: true}
	logger := log.New(io.Discard, "", 0)
	coord, err := syncer.New(db, remote, &syncer.Config{Logger: logger})
	if err != nil {
		t.Fatalf("syncer.New() failed: %v", err)
	}
	return New(db, coord, logger), db, remote
}

func addProduct(t *testing.T, f Facade, name string, price float64) string {
	t.Helper()

	id, err := f.Create(context.Background(), &schema.Product{Name: name, Price: price})
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", name, err)
	}
	return id
}

// The offline counter scenario: a sale-floor write with the network down
// must complete locally, wait in the queue, and upload when the network
// returns.
func TestCreate_OfflineThenSync(t *testing.T) {
	f, _, remote := testFacade(t)
	ctx := context.Background()
	remote.setOnline(false)

	id, err := f.Create(ctx, &schema.Product{Name: "Paracetamol 500mg", Price: 4.5})
	if err != nil {
		t.Fatalf("Create() while offline failed: %v", err)
	}

	// Immediately readable locally.
	rec, err := f.Get(ctx, schema.TableProducts, id)
	if err != nil {
		t.Fatalf("Get() after offline create failed: %v", err)
	}
	if rec.(*schema.Product).Name != "Paracetamol 500mg" {
		t.Error("local read returned wrong record")
	}

	pending, err := f.PendingSyncCount(ctx)
	if err != nil {
		t.Fatalf("PendingSyncCount() failed: %v", err)
	}
	if pending != 1 {
		t.Errorf("PendingSyncCount() = %d, want 1", pending)
	}

	// Force sync fails fast while unreachable; nothing is lost.
	if _, err := f.ForceSync(ctx); !errors.Is(err, syncer.ErrOffline) {
		t.Fatalf("ForceSync() offline = %v, want ErrOffline", err)
	}

	// Connectivity returns; the queued write drains.
	remote.setOnline(true)
	result, err := f.ForceSync(ctx)
	if err != nil {
		t.Fatalf("ForceSync() after reconnect failed: %v", err)
	}
	if result.Applied != 1 {
		t.Errorf("Applied = %d, want 1", result.Applied)
	}
	if remote.appliedCount() != 1 {
		t.Errorf("remote received %d ops, want 1", remote.appliedCount())
	}

	pending, _ = f.PendingSyncCount(ctx)
	if pending != 0 {
		t.Errorf("PendingSyncCount() after drain = %d, want 0", pending)
	}
}

// The delivery scenario: receiving stock creates the inventory row and
// logs a movement, all locally.
func TestAdjustStock_ReceiveDelivery(t *testing.T) {
	f, _, remote := testFacade(t)
	ctx := context.Background()
	remote.setOnline(false)

	productID := addProduct(t, f, "Amoxicillin 250mg", 12)

	item, err := f.AdjustStock(ctx, productID, schema.MovementIn, 150, "delivery PO-100")
	if err != nil {
		t.Fatalf("AdjustStock() failed: %v", err)
	}
	if item.Quantity != 150 {
		t.Errorf("Quantity = %d, want 150", item.Quantity)
	}

	movements, err := f.Movements(ctx, productID, 0)
	if err != nil {
		t.Fatalf("Movements() failed: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("%d movements, want 1", len(movements))
	}
	if movements[0].Type != schema.MovementIn || movements[0].Quantity != 150 {
		t.Errorf("movement = %s %d, want in 150", movements[0].Type, movements[0].Quantity)
	}
	if movements[0].Reason != "delivery PO-100" {
		t.Errorf("Reason = %q", movements[0].Reason)
	}

	// Product create + inventory write + movement are all queued.
	pending, _ := f.PendingSyncCount(ctx)
	if pending != 3 {
		t.Errorf("PendingSyncCount() = %d, want 3", pending)
	}
}

func TestAdjustStock_OutChecksStock(t *testing.T) {
	f, _, _ := testFacade(t)
	ctx := context.Background()

	productID := addProduct(t, f, "Ibuprofen 200mg", 6)
	if _, err := f.AdjustStock(ctx, productID, schema.MovementIn, 10, "delivery"); err != nil {
		t.Fatalf("AdjustStock(in) failed: %v", err)
	}

	if _, err := f.AdjustStock(ctx, productID, schema.MovementOut, 11, "disposal"); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("AdjustStock(out 11 of 10) = %v, want ErrInsufficientStock", err)
	}

	item, err := f.AdjustStock(ctx, productID, schema.MovementOut, 10, "disposal")
	if err != nil {
		t.Fatalf("AdjustStock(out) failed: %v", err)
	}
	if item.Quantity != 0 {
		t.Errorf("Quantity = %d, want 0", item.Quantity)
	}
}

func TestAdjustStock_AdjustmentSetsAbsoluteCount(t *testing.T) {
	f, _, _ := testFacade(t)
	ctx := context.Background()

	productID := addProduct(t, f, "Cetirizine 10mg", 3)
	if _, err := f.AdjustStock(ctx, productID, schema.MovementIn, 100, "delivery"); err != nil {
		t.Fatalf("AdjustStock(in) failed: %v", err)
	}

	// Physical recount found 92 on the shelf.
	item, err := f.AdjustStock(ctx, productID, schema.MovementAdjustment, 92, "shelf count")
	if err != nil {
		t.Fatalf("AdjustStock(adjustment) failed: %v", err)
	}
	if item.Quantity != 92 {
		t.Errorf("Quantity = %d, want 92", item.Quantity)
	}

	movements, _ := f.Movements(ctx, productID, 0)
	if len(movements) != 2 {
		t.Fatalf("%d movements, want 2", len(movements))
	}
	var adj *schema.StockMovement
	for _, m := range movements {
		if m.Type == schema.MovementAdjustment {
			adj = m
		}
	}
	if adj == nil || adj.Quantity != 8 {
		t.Errorf("adjustment movement missing or wrong, want magnitude 8")
	}

	// Adjusting to the current count moves nothing.
	if _, err := f.AdjustStock(ctx, productID, schema.MovementAdjustment, 92, "recount"); err != nil {
		t.Fatalf("no-op adjustment failed: %v", err)
	}
	movements, _ = f.Movements(ctx, productID, 0)
	if len(movements) != 2 {
		t.Errorf("no-op adjustment appended a movement")
	}
}

func TestRecordSale_ComputesTotalAndMovesStock(t *testing.T) {
	f, db, _ := testFacade(t)
	ctx := context.Background()

	para := addProduct(t, f, "Paracetamol 500mg", 4.5)
	amox := addProduct(t, f, "Amoxicillin 250mg", 12)
	for _, id := range []string{para, amox} {
		if _, err := f.AdjustStock(ctx, id, schema.MovementIn, 20, "delivery"); err != nil {
			t.Fatalf("AdjustStock() failed: %v", err)
		}
	}

	sale, err := f.RecordSale(ctx, &schema.Sale{CashierName: "A. Mensah"}, []SaleLine{
		{ProductID: para, Quantity: 2},
		{ProductID: amox, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("RecordSale() failed: %v", err)
	}

	if want := 2*4.5 + 12.0; sale.Total != want {
		t.Errorf("Total = %v, want %v", sale.Total, want)
	}
	if sale.PaymentMethod != schema.PaymentCash {
		t.Errorf("PaymentMethod defaulted to %q, want cash", sale.PaymentMethod)
	}

	items, err := db.ItemsForSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("ItemsForSale() failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("%d line items, want 2", len(items))
	}

	inv, err := db.InventoryForProduct(ctx, para)
	if err != nil {
		t.Fatalf("InventoryForProduct() failed: %v", err)
	}
	if inv.Quantity != 18 {
		t.Errorf("stock after sale = %d, want 18", inv.Quantity)
	}

	movements, _ := f.Movements(ctx, para, 0)
	var out *schema.StockMovement
	for _, m := range movements {
		if m.Type == schema.MovementOut {
			out = m
		}
	}
	if out == nil {
		t.Fatal("sale did not log an outbound movement")
	}
	if out.Quantity != 2 || out.Reason != "sale "+sale.ID {
		t.Errorf("outbound movement = %d %q, want 2 %q", out.Quantity, out.Reason, "sale "+sale.ID)
	}
}

func TestRecordSale_RefusedBeforeAnyWrite(t *testing.T) {
	f, db, _ := testFacade(t)
	ctx := context.Background()

	para := addProduct(t, f, "Paracetamol 500mg", 4.5)
	amox := addProduct(t, f, "Amoxicillin 250mg", 12)
	if _, err := f.AdjustStock(ctx, para, schema.MovementIn, 20, "delivery"); err != nil {
		t.Fatalf("AdjustStock() failed: %v", err)
	}
	// amox has no stock at all.

	pendingBefore, _ := f.PendingSyncCount(ctx)

	_, err := f.RecordSale(ctx, nil, []SaleLine{
		{ProductID: para, Quantity: 2},
		{ProductID: amox, Quantity: 1},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("RecordSale() = %v, want ErrInsufficientStock", err)
	}

	// Nothing was written: no sale rows, stock untouched, queue unchanged.
	sales, _ := f.List(ctx, schema.TableSales)
	if len(sales) != 0 {
		t.Error("refused sale left a sale row behind")
	}
	inv, _ := db.InventoryForProduct(ctx, para)
	if inv.Quantity != 20 {
		t.Errorf("stock after refused sale = %d, want 20", inv.Quantity)
	}
	pendingAfter, _ := f.PendingSyncCount(ctx)
	if pendingAfter != pendingBefore {
		t.Errorf("queue grew from %d to %d on a refused sale", pendingBefore, pendingAfter)
	}
}

func TestDelete_QueuesDeleteWithoutSnapshot(t *testing.T) {
	f, db, _ := testFacade(t)
	ctx := context.Background()

	id := addProduct(t, f, "Loratadine 10mg", 3)

	if err := f.Delete(ctx, schema.TableProducts, id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := f.Get(ctx, schema.TableProducts, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}

	entries, err := db.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("ListPending() failed: %v", err)
	}
	if len(entries) != 2 { // create + delete
		t.Fatalf("%d queue entries, want 2", len(entries))
	}
	del := entries[1]
	if del.Operation != schema.OpDelete || len(del.Data) != 0 {
		t.Errorf("delete entry = op %q with %d data bytes", del.Operation, len(del.Data))
	}
}

func TestUpdate_RequiresID(t *testing.T) {
	f, _, _ := testFacade(t)

	err := f.Update(context.Background(), &schema.Product{Name: "X", Price: 1})
	if err == nil {
		t.Error("Update() accepted a record without an ID")
	}
}
