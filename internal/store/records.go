package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openpharm/pharmsync/internal/schema"
)

// UpsertRecord inserts or replaces a business record by ID.
//
// The write is atomic: the caller sees success or failure, never a
// partial row. The record is validated before being written.
func (db *DB) UpsertRecord(ctx context.Context, rec schema.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid %s record: %w", rec.Table(), err)
	}

	switch r := rec.(type) {
	case *schema.Product:
		return db.upsertProduct(ctx, r)
	case *schema.InventoryItem:
		return db.upsertInventoryItem(ctx, r)
	case *schema.Sale:
		return db.upsertSale(ctx, r)
	case *schema.SaleItem:
		return db.upsertSaleItem(ctx, r)
	case *schema.StockMovement:
		return db.upsertStockMovement(ctx, r)
	default:
		return fmt.Errorf("unsupported record type %T", rec)
	}
}

// GetRecord retrieves a single record by table and ID.
// Returns ErrNotFound if no row matches.
func (db *DB) GetRecord(ctx context.Context, table, id string) (schema.Record, error) {
	switch table {
	case schema.TableProducts:
		return db.getProduct(ctx, id)
	case schema.TableInventory:
		return db.getInventoryItem(ctx, id)
	case schema.TableSales:
		return db.getSale(ctx, id)
	case schema.TableSaleItems:
		return db.getSaleItem(ctx, id)
	case schema.TableStockMovements:
		return db.getStockMovement(ctx, id)
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}

// ListRecords returns all records in a table ordered by updated_at
// descending (most recently changed first).
func (db *DB) ListRecords(ctx context.Context, table string) ([]schema.Record, error) {
	switch table {
	case schema.TableProducts:
		return db.listRecords(ctx, table, db.scanProduct)
	case schema.TableInventory:
		return db.listRecords(ctx, table, db.scanInventoryItem)
	case schema.TableSales:
		return db.listRecords(ctx, table, db.scanSale)
	case schema.TableSaleItems:
		return db.listRecords(ctx, table, db.scanSaleItem)
	case schema.TableStockMovements:
		return db.listRecords(ctx, table, db.scanStockMovement)
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}

// ListChangedSince returns records updated strictly after the given
// timestamp, oldest change first. A zero timestamp returns the whole
// table. This backs the remote server's changed-since endpoint.
func (db *DB) ListChangedSince(ctx context.Context, table string, since time.Time) ([]schema.Record, error) {
	var scan scanFunc
	switch table {
	case schema.TableProducts:
		scan = db.scanProduct
	case schema.TableInventory:
		scan = db.scanInventoryItem
	case schema.TableSales:
		scan = db.scanSale
	case schema.TableSaleItems:
		scan = db.scanSaleItem
	case schema.TableStockMovements:
		scan = db.scanStockMovement
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE updated_at > ? ORDER BY updated_at ASC", table)
	return db.queryRecords(ctx, table, query, scan, formatTime(since))
}

// DeleteRecord removes a record by table and ID.
// Returns nil if the record doesn't exist (idempotent).
func (db *DB) DeleteRecord(ctx context.Context, table, id string) error {
	if !schema.KnownTable(table) {
		return fmt.Errorf("unknown table %q", table)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", table)
	if _, err := db.conn.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete %s record %s: %w", table, id, err)
	}
	return nil
}

// RecordUpdatedAt returns the updated_at timestamp of a record, or
// found=false if no local copy exists. Used by the pull-side conflict
// resolution to decide whether a remote copy is strictly newer.
func (db *DB) RecordUpdatedAt(ctx context.Context, table, id string) (updatedAt time.Time, found bool, err error) {
	if !schema.KnownTable(table) {
		return time.Time{}, false, fmt.Errorf("unknown table %q", table)
	}
	query := fmt.Sprintf("SELECT updated_at FROM %s WHERE id = ?", table)

	var raw string
	err = db.conn.QueryRowContext(ctx, query, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read %s updated_at: %w", table, err)
	}
	return parseTime(raw), true, nil
}

// scanFunc scans the current row into a concrete record.
type scanFunc func(scanner) (schema.Record, error)

// scanner is the shared subset of sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) listRecords(ctx context.Context, table string, scan scanFunc) ([]schema.Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY updated_at DESC", table)
	return db.queryRecords(ctx, table, query, scan)
}

func (db *DB) queryRecords(ctx context.Context, table, query string, scan scanFunc, args ...interface{}) ([]schema.Record, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var records []schema.Record
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}
	return records, nil
}

// ----- products -----

func (db *DB) upsertProduct(ctx context.Context, p *schema.Product) error {
	query := `
	INSERT INTO products (
		id, name, generic_name, category, barcode, price,
		requires_prescription, manufacturer, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		generic_name = excluded.generic_name,
		category = excluded.category,
		barcode = excluded.barcode,
		price = excluded.price,
		requires_prescription = excluded.requires_prescription,
		manufacturer = excluded.manufacturer,
		updated_at = excluded.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		p.ID, p.Name, p.GenericName, p.Category, p.Barcode, p.Price,
		boolToInt(p.RequiresPrescription), p.Manufacturer,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

func (db *DB) scanProduct(s scanner) (schema.Record, error) {
	var p schema.Product
	var prescription int
	var createdAt, updatedAt string
	var genericName, category, barcode, manufacturer sql.NullString

	err := s.Scan(&p.ID, &p.Name, &genericName, &category, &barcode, &p.Price,
		&prescription, &manufacturer, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.GenericName = genericName.String
	p.Category = category.String
	p.Barcode = barcode.String
	p.Manufacturer = manufacturer.String
	p.RequiresPrescription = prescription != 0
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func (db *DB) getProduct(ctx context.Context, id string) (schema.Record, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT * FROM products WHERE id = ?", id)
	rec, err := db.scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return rec, nil
}

// FindProductByBarcode looks up a product by its barcode.
// Returns ErrNotFound if no product carries the barcode.
func (db *DB) FindProductByBarcode(ctx context.Context, barcode string) (*schema.Product, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT * FROM products WHERE barcode = ?", barcode)
	rec, err := db.scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by barcode: %w", err)
	}
	return rec.(*schema.Product), nil
}

// ----- inventory -----

func (db *DB) upsertInventoryItem(ctx context.Context, i *schema.InventoryItem) error {
	query := `
	INSERT INTO inventory (
		id, product_id, quantity, reorder_point, batch_number,
		expiry_date, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		product_id = excluded.product_id,
		quantity = excluded.quantity,
		reorder_point = excluded.reorder_point,
		batch_number = excluded.batch_number,
		expiry_date = excluded.expiry_date,
		updated_at = excluded.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		i.ID, i.ProductID, i.Quantity, i.ReorderPoint, i.BatchNumber,
		timeToNullString(i.ExpiryDate),
		formatTime(i.CreatedAt), formatTime(i.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert inventory item %s: %w", i.ID, err)
	}
	return nil
}

func (db *DB) scanInventoryItem(s scanner) (schema.Record, error) {
	var i schema.InventoryItem
	var createdAt, updatedAt string
	var batchNumber, expiryDate sql.NullString

	err := s.Scan(&i.ID, &i.ProductID, &i.Quantity, &i.ReorderPoint,
		&batchNumber, &expiryDate, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	i.BatchNumber = batchNumber.String
	i.ExpiryDate = nullStringToTime(expiryDate)
	i.CreatedAt = parseTime(createdAt)
	i.UpdatedAt = parseTime(updatedAt)
	return &i, nil
}

func (db *DB) getInventoryItem(ctx context.Context, id string) (schema.Record, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT * FROM inventory WHERE id = ?", id)
	rec, err := db.scanInventoryItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory item %s: %w", id, err)
	}
	return rec, nil
}

// InventoryForProduct returns the inventory row for a product.
// Returns ErrNotFound if the product has no inventory row yet.
func (db *DB) InventoryForProduct(ctx context.Context, productID string) (*schema.InventoryItem, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT * FROM inventory WHERE product_id = ? ORDER BY updated_at DESC LIMIT 1", productID)
	rec, err := db.scanInventoryItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory for product %s: %w", productID, err)
	}
	return rec.(*schema.InventoryItem), nil
}

// ListLowStock returns inventory items at or below their reorder point.
func (db *DB) ListLowStock(ctx context.Context) ([]*schema.InventoryItem, error) {
	records, err := db.queryRecords(ctx, schema.TableInventory,
		"SELECT * FROM inventory WHERE quantity <= reorder_point ORDER BY quantity ASC",
		db.scanInventoryItem)
	if err != nil {
		return nil, err
	}

	items := make([]*schema.InventoryItem, len(records))
	for n, rec := range records {
		items[n] = rec.(*schema.InventoryItem)
	}
	return items, nil
}

// ListExpiring returns inventory items whose batch expires on or before
// the cutoff, soonest first. Items without an expiry date are excluded.
func (db *DB) ListExpiring(ctx context.Context, cutoff time.Time) ([]*schema.InventoryItem, error) {
	records, err := db.queryRecords(ctx, schema.TableInventory,
		"SELECT * FROM inventory WHERE expiry_date IS NOT NULL AND expiry_date <= ? ORDER BY expiry_date ASC",
		db.scanInventoryItem, formatTime(cutoff))
	if err != nil {
		return nil, err
	}

	items := make([]*schema.InventoryItem, len(records))
	for n, rec := range records {
		items[n] = rec.(*schema.InventoryItem)
	}
	return items, nil
}

// ----- sales -----

func (db *DB) upsertSale(ctx context.Context, s *schema.Sale) error {
	query := `
	INSERT INTO sales (
		id, total, payment_method, cashier_name, sold_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		total = excluded.total,
		payment_method = excluded.payment_method,
		cashier_name = excluded.cashier_name,
		sold_at = excluded.sold_at,
		updated_at = excluded.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		s.ID, s.Total, s.PaymentMethod, s.CashierName,
		formatTime(s.SoldAt),
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sale %s: %w", s.ID, err)
	}
	return nil
}

func (db *DB) scanSale(s scanner) (schema.Record, error) {
	var sale schema.Sale
	var soldAt, createdAt, updatedAt string
	var cashier sql.NullString

	err := s.Scan(&sale.ID, &sale.Total, &sale.PaymentMethod, &cashier,
		&soldAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	sale.CashierName = cashier.String
	sale.SoldAt = parseTime(soldAt)
	sale.CreatedAt = parseTime(createdAt)
	sale.UpdatedAt = parseTime(updatedAt)
	return &sale, nil
}

func (db *DB) getSale(ctx context.Context, id string) (schema.Record, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT * FROM sales WHERE id = ?", id)
	rec, err := db.scanSale(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale %s: %w", id, err)
	}
	return rec, nil
}

// ----- sale items -----

func (db *DB) upsertSaleItem(ctx context.Context, si *schema.SaleItem) error {
	query := `
	INSERT INTO sale_items (
		id, sale_id, product_id, quantity, unit_price, subtotal, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		sale_id = excluded.sale_id,
		product_id = excluded.product_id,
		quantity = excluded.quantity,
		unit_price = excluded.unit_price,
		subtotal = excluded.subtotal,
		updated_at = excluded.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		si.ID, si.SaleID, si.ProductID, si.Quantity, si.UnitPrice, si.Subtotal,
		formatTime(si.CreatedAt), formatTime(si.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sale item %s: %w", si.ID, err)
	}
	return nil
}

func (db *DB) scanSaleItem(s scanner) (schema.Record, error) {
	var si schema.SaleItem
	var createdAt, updatedAt string

	err := s.Scan(&si.ID, &si.SaleID, &si.ProductID, &si.Quantity,
		&si.UnitPrice, &si.Subtotal, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	si.CreatedAt = parseTime(createdAt)
	si.UpdatedAt = parseTime(updatedAt)
	return &si, nil
}

func (db *DB) getSaleItem(ctx context.Context, id string) (schema.Record, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT * FROM sale_items WHERE id = ?", id)
	rec, err := db.scanSaleItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale item %s: %w", id, err)
	}
	return rec, nil
}

// ItemsForSale returns the line items of a sale in creation order.
func (db *DB) ItemsForSale(ctx context.Context, saleID string) ([]*schema.SaleItem, error) {
	records, err := db.queryRecords(ctx, schema.TableSaleItems,
		"SELECT * FROM sale_items WHERE sale_id = ? ORDER BY created_at ASC",
		db.scanSaleItem, saleID)
	if err != nil {
		return nil, err
	}

	items := make([]*schema.SaleItem, len(records))
	for n, rec := range records {
		items[n] = rec.(*schema.SaleItem)
	}
	return items, nil
}

// ----- stock movements -----

func (db *DB) upsertStockMovement(ctx context.Context, m *schema.StockMovement) error {
	// Movements are append-only; the upsert form keeps pull idempotent
	// when the same movement arrives twice.
	query := `
	INSERT INTO stock_movements (
		id, product_id, type, quantity, reason, timestamp, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`
	_, err := db.conn.ExecContext(ctx, query,
		m.ID, m.ProductID, m.Type, m.Quantity, m.Reason,
		formatTime(m.Timestamp),
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert stock movement %s: %w", m.ID, err)
	}
	return nil
}

func (db *DB) scanStockMovement(s scanner) (schema.Record, error) {
	var m schema.StockMovement
	var timestamp, createdAt, updatedAt string
	var reason sql.NullString

	err := s.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &reason,
		&timestamp, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.Reason = reason.String
	m.Timestamp = parseTime(timestamp)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func (db *DB) getStockMovement(ctx context.Context, id string) (schema.Record, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT * FROM stock_movements WHERE id = ?", id)
	rec, err := db.scanStockMovement(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock movement %s: %w", id, err)
	}
	return rec, nil
}

// MovementsForProduct returns a product's movements, newest first.
// Limit restricts the number of results (0 = no limit).
func (db *DB) MovementsForProduct(ctx context.Context, productID string, limit int) ([]*schema.StockMovement, error) {
	query := "SELECT * FROM stock_movements WHERE product_id = ? ORDER BY timestamp DESC"
	args := []interface{}{productID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	records, err := db.queryRecords(ctx, schema.TableStockMovements, query, db.scanStockMovement, args...)
	if err != nil {
		return nil, err
	}

	movements := make([]*schema.StockMovement, len(records))
	for n, rec := range records {
		movements[n] = rec.(*schema.StockMovement)
	}
	return movements, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
