// Package store provides the local embedded SQLite database for pharmsync.
//
// The store is the single source of truth for everything the application
// reads. It holds the five business tables (products, inventory, sales,
// sale_items, stock_movements) plus the outbound sync_queue and the
// sync_metadata key/value table. The database runs in WAL mode for
// concurrent readers during writes.
//
// The store never performs network I/O and is safe to operate fully
// offline indefinitely. Queueing a record for upload is the facade's
// responsibility, not the store's; the queue primitives here are consumed
// by the sync coordinator.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a record lookup matches no row.
var ErrNotFound = errors.New("record not found")

// DB wraps the SQLite connection with pharmsync-specific functionality.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it will be created; call InitSchema to
// create the tables. The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open(".pharmsync/local.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
// This is useful for integrating with other libraries that expect *sql.DB.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
//
// This creates the business tables, the sync queue and the sync metadata
// table along with indexes for the common queries. Idempotent - safe to
// call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	-- Business tables
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		generic_name TEXT,
		category TEXT,
		barcode TEXT,
		price REAL NOT NULL DEFAULT 0,
		requires_prescription INTEGER NOT NULL DEFAULT 0,
		manufacturer TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inventory (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		reorder_point INTEGER NOT NULL DEFAULT 0,
		batch_number TEXT,
		expiry_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		total REAL NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL,
		cashier_name TEXT,
		sold_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price REAL NOT NULL DEFAULT 0,
		subtotal REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Append-only movement log; rows are never updated or deleted
	CREATE TABLE IF NOT EXISTS stock_movements (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		reason TEXT,
		timestamp TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Outbound operation log
	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		data TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		timestamp TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Indexes for common queries
	CREATE INDEX IF NOT EXISTS idx_products_barcode ON products(barcode);
	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	CREATE INDEX IF NOT EXISTS idx_inventory_product ON inventory(product_id);
	CREATE INDEX IF NOT EXISTS idx_inventory_expiry ON inventory(expiry_date);
	CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);
	CREATE INDEX IF NOT EXISTS idx_movements_product ON stock_movements(product_id);
	CREATE INDEX IF NOT EXISTS idx_movements_time ON stock_movements(timestamp);

	-- Composite index for the drain query (oldest pending first)
	CREATE INDEX IF NOT EXISTS idx_queue_drain
	    ON sync_queue(status, timestamp);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// sqlTimeFormat is the fixed-width UTC timestamp format used for all
// TEXT timestamp columns. Fixed width keeps lexicographic comparison in
// SQL (ORDER BY, updated_at > ?) equivalent to chronological order,
// which RFC3339Nano's trimmed trailing zeros would break.
const sqlTimeFormat = "2006-01-02T15:04:05.000Z"

// formatTime renders a timestamp for storage in a TEXT column.
func formatTime(t time.Time) string {
	return t.UTC().Format(sqlTimeFormat)
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// parseTime parses an RFC3339 timestamp column, returning the zero time
// on malformed input rather than failing the whole scan.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
