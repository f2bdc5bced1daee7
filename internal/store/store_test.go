package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/openpharm/pharmsync/internal/schema"
)

// testDB opens a fresh database with its schema initialized.
func testDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func testProduct(t *testing.T, db *DB, name string, at time.Time) *schema.Product {
	t.Helper()

	p := &schema.Product{
		ID:    schema.NewID(),
		Name:  name,
		Price: 4.50,
	}
	p.Touch(at)
	if err := db.UpsertRecord(context.Background(), p); err != nil {
		t.Fatalf("UpsertRecord(%s) failed: %v", name, err)
	}
	return p
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := testDB(t)
	if err := db.InitSchema(); err != nil {
		t.Errorf("Second InitSchema() failed: %v", err)
	}
}

func TestUpsertRecord_InsertAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := testProduct(t, db, "Paracetamol 500mg", time.Now())

	rec, err := db.GetRecord(ctx, schema.TableProducts, p.ID)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	got := rec.(*schema.Product)
	if got.Name != p.Name {
		t.Errorf("Name = %q, want %q", got.Name, p.Name)
	}
	if got.Price != p.Price {
		t.Errorf("Price = %v, want %v", got.Price, p.Price)
	}
}

func TestUpsertRecord_UpdateByID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := testProduct(t, db, "Amoxicillin 250mg", time.Now())

	p.Price = 9.99
	p.Touch(time.Now().Add(time.Second))
	if err := db.UpsertRecord(ctx, p); err != nil {
		t.Fatalf("Second UpsertRecord() failed: %v", err)
	}

	rec, err := db.GetRecord(ctx, schema.TableProducts, p.ID)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got := rec.(*schema.Product).Price; got != 9.99 {
		t.Errorf("Price after update = %v, want 9.99", got)
	}

	records, err := db.ListRecords(ctx, schema.TableProducts)
	if err != nil {
		t.Fatalf("ListRecords() failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("ListRecords() returned %d rows, want 1", len(records))
	}
}

func TestUpsertRecord_RejectsInvalid(t *testing.T) {
	db := testDB(t)

	p := &schema.Product{ID: schema.NewID()} // no name
	p.Touch(time.Now())
	if err := db.UpsertRecord(context.Background(), p); err == nil {
		t.Error("UpsertRecord() accepted a product without a name")
	}
}

func TestGetRecord_NotFound(t *testing.T) {
	db := testDB(t)

	_, err := db.GetRecord(context.Background(), schema.TableProducts, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRecord() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRecord_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := testProduct(t, db, "Ibuprofen 200mg", time.Now())

	if err := db.DeleteRecord(ctx, schema.TableProducts, p.ID); err != nil {
		t.Fatalf("DeleteRecord() failed: %v", err)
	}
	if err := db.DeleteRecord(ctx, schema.TableProducts, p.ID); err != nil {
		t.Errorf("Second DeleteRecord() failed: %v", err)
	}

	_, err := db.GetRecord(ctx, schema.TableProducts, p.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRecord() after delete = %v, want ErrNotFound", err)
	}
}

func TestListChangedSince_StrictlyAfter(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Millisecond)
	old := testProduct(t, db, "Old", base.Add(-time.Hour))
	boundary := testProduct(t, db, "Boundary", base)
	newer := testProduct(t, db, "Newer", base.Add(time.Hour))

	records, err := db.ListChangedSince(ctx, schema.TableProducts, base)
	if err != nil {
		t.Fatalf("ListChangedSince() failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("ListChangedSince() returned %d records, want 1", len(records))
	}
	if got := records[0].RecordID(); got != newer.ID {
		t.Errorf("ListChangedSince() returned %s, want %s", got, newer.ID)
	}

	// Zero since returns everything, oldest first.
	all, err := db.ListChangedSince(ctx, schema.TableProducts, time.Time{})
	if err != nil {
		t.Fatalf("ListChangedSince(zero) failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListChangedSince(zero) returned %d records, want 3", len(all))
	}
	wantOrder := []string{old.ID, boundary.ID, newer.ID}
	for i, rec := range all {
		if rec.RecordID() != wantOrder[i] {
			t.Errorf("position %d = %s, want %s", i, rec.RecordID(), wantOrder[i])
		}
	}
}

func TestRecordUpdatedAt(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	at := time.Now().Truncate(time.Millisecond)
	p := testProduct(t, db, "Cetirizine 10mg", at)

	got, found, err := db.RecordUpdatedAt(ctx, schema.TableProducts, p.ID)
	if err != nil {
		t.Fatalf("RecordUpdatedAt() failed: %v", err)
	}
	if !found {
		t.Fatal("RecordUpdatedAt() found = false for existing record")
	}
	if !got.Equal(at.UTC()) {
		t.Errorf("updated_at = %v, want %v", got, at.UTC())
	}

	_, found, err = db.RecordUpdatedAt(ctx, schema.TableProducts, "missing")
	if err != nil {
		t.Fatalf("RecordUpdatedAt(missing) failed: %v", err)
	}
	if found {
		t.Error("RecordUpdatedAt() found = true for missing record")
	}
}

func TestFindProductByBarcode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := &schema.Product{ID: schema.NewID(), Name: "Loratadine", Barcode: "615099", Price: 3}
	p.Touch(time.Now())
	if err := db.UpsertRecord(ctx, p); err != nil {
		t.Fatalf("UpsertRecord() failed: %v", err)
	}

	got, err := db.FindProductByBarcode(ctx, "615099")
	if err != nil {
		t.Fatalf("FindProductByBarcode() failed: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("found product %s, want %s", got.ID, p.ID)
	}

	if _, err := db.FindProductByBarcode(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindProductByBarcode(unknown) = %v, want ErrNotFound", err)
	}
}

func TestListLowStock(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()

	low := &schema.InventoryItem{ID: schema.NewID(), ProductID: "p1", Quantity: 3, ReorderPoint: 10}
	low.Touch(now)
	ok := &schema.InventoryItem{ID: schema.NewID(), ProductID: "p2", Quantity: 50, ReorderPoint: 10}
	ok.Touch(now)
	for _, item := range []*schema.InventoryItem{low, ok} {
		if err := db.UpsertRecord(ctx, item); err != nil {
			t.Fatalf("UpsertRecord() failed: %v", err)
		}
	}

	items, err := db.ListLowStock(ctx)
	if err != nil {
		t.Fatalf("ListLowStock() failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != low.ID {
		t.Errorf("ListLowStock() = %v items, want exactly the low one", len(items))
	}
}

func TestListExpiring(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()

	soon := now.Add(24 * time.Hour)
	later := now.Add(120 * 24 * time.Hour)

	expiring := &schema.InventoryItem{ID: schema.NewID(), ProductID: "p1", Quantity: 5, ExpiryDate: &soon}
	expiring.Touch(now)
	fine := &schema.InventoryItem{ID: schema.NewID(), ProductID: "p2", Quantity: 5, ExpiryDate: &later}
	fine.Touch(now)
	noExpiry := &schema.InventoryItem{ID: schema.NewID(), ProductID: "p3", Quantity: 5}
	noExpiry.Touch(now)
	for _, item := range []*schema.InventoryItem{expiring, fine, noExpiry} {
		if err := db.UpsertRecord(ctx, item); err != nil {
			t.Fatalf("UpsertRecord() failed: %v", err)
		}
	}

	items, err := db.ListExpiring(ctx, now.Add(90*24*time.Hour))
	if err != nil {
		t.Fatalf("ListExpiring() failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != expiring.ID {
		t.Errorf("ListExpiring() returned %d items, want only the soon batch", len(items))
	}
}

func TestUpsertStockMovement_AppendOnly(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := &schema.StockMovement{
		ID:        schema.NewID(),
		ProductID: "p1",
		Type:      schema.MovementIn,
		Quantity:  10,
	}
	m.Touch(time.Now())
	if err := db.UpsertRecord(ctx, m); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	// A second arrival of the same movement must not change the row.
	clone := *m
	clone.Quantity = 999
	clone.Touch(time.Now().Add(time.Minute))
	if err := db.UpsertRecord(ctx, &clone); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	rec, err := db.GetRecord(ctx, schema.TableStockMovements, m.ID)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got := rec.(*schema.StockMovement).Quantity; got != 10 {
		t.Errorf("Quantity after duplicate write = %d, want 10", got)
	}
}
