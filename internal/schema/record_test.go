package schema

import (
	"testing"
	"time"
)

func TestProduct_Validate(t *testing.T) {
	p := &Product{ID: NewID(), Name: "Paracetamol 500mg", Price: 4.5}
	if err := p.Validate(); err != nil {
		t.Errorf("valid product rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Product)
		wantErr bool
	}{
		{"missing id", func(p *Product) { p.ID = "" }, true},
		{"missing name", func(p *Product) { p.Name = "" }, true},
		{"negative price", func(p *Product) { p.Price = -1 }, true},
		{"zero price allowed", func(p *Product) { p.Price = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Product{ID: NewID(), Name: "X", Price: 1}
			tc.mutate(p)
			err := p.Validate()
			if tc.wantErr && err == nil {
				t.Error("Validate() accepted invalid product")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate() rejected valid product: %v", err)
			}
		})
	}
}

func TestQueueEntry_Validate(t *testing.T) {
	entry := &QueueEntry{
		TableName: TableProducts,
		RecordID:  "r1",
		Operation: OpInsert,
		Data:      []byte(`{}`),
	}
	if err := entry.Validate(); err != nil {
		t.Errorf("valid entry rejected: %v", err)
	}

	// A delete carries no snapshot.
	del := &QueueEntry{TableName: TableProducts, RecordID: "r1", Operation: OpDelete}
	if err := del.Validate(); err != nil {
		t.Errorf("delete without data rejected: %v", err)
	}

	// Everything else requires one.
	ins := &QueueEntry{TableName: TableProducts, RecordID: "r1", Operation: OpInsert}
	if err := ins.Validate(); err == nil {
		t.Error("insert without data accepted")
	}

	bad := &QueueEntry{TableName: "nope", RecordID: "r1", Operation: OpInsert, Data: []byte(`{}`)}
	if err := bad.Validate(); err == nil {
		t.Error("unknown table accepted")
	}

	badOp := &QueueEntry{TableName: TableProducts, RecordID: "r1", Operation: "merge", Data: []byte(`{}`)}
	if err := badOp.Validate(); err == nil {
		t.Error("unknown operation accepted")
	}
}

func TestTouch_StampsTimestamps(t *testing.T) {
	now := time.Now()

	p := &Product{ID: NewID(), Name: "X", Price: 1}
	p.Touch(now)
	if !p.CreatedAt.Equal(now) || !p.UpdatedAt.Equal(now) {
		t.Error("first Touch() did not stamp created_at and updated_at")
	}

	later := now.Add(time.Minute)
	p.Touch(later)
	if !p.CreatedAt.Equal(now) {
		t.Error("second Touch() changed created_at")
	}
	if !p.UpdatedAt.Equal(later) {
		t.Error("second Touch() did not advance updated_at")
	}
}

func TestDecode(t *testing.T) {
	raw := []byte(`{"id":"p1","name":"Paracetamol","price":4.5}`)

	rec, err := Decode(TableProducts, raw)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	p, ok := rec.(*Product)
	if !ok {
		t.Fatalf("Decode() returned %T, want *Product", rec)
	}
	if p.Name != "Paracetamol" {
		t.Errorf("Name = %q, want Paracetamol", p.Name)
	}

	if _, err := Decode("nope", raw); err == nil {
		t.Error("Decode() accepted unknown table")
	}
	if _, err := Decode(TableProducts, []byte(`{`)); err == nil {
		t.Error("Decode() accepted malformed JSON")
	}
	// Decode validates: a product without a name must be rejected.
	if _, err := Decode(TableProducts, []byte(`{"id":"p1"}`)); err == nil {
		t.Error("Decode() accepted invalid record")
	}
}

func TestInventoryItem_Flags(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	item := &InventoryItem{ID: NewID(), ProductID: "p1", Quantity: 5, ReorderPoint: 10, ExpiryDate: &past}
	if !item.LowStock() {
		t.Error("LowStock() = false at quantity below reorder point")
	}
	if !item.Expired(now) {
		t.Error("Expired() = false for past expiry date")
	}

	item.Quantity = 11
	item.ExpiryDate = nil
	if item.LowStock() {
		t.Error("LowStock() = true above reorder point")
	}
	if item.Expired(now) {
		t.Error("Expired() = true with no expiry date")
	}
}
