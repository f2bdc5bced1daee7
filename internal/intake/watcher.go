// Package intake watches a drop directory for supplier delivery files.
//
// Suppliers (or an upstream ordering system) drop JSON delivery manifests
// into the directory; the watcher picks them up, records the received
// stock through the pharmacy facade and renames each file to mark the
// outcome (.done on success, .rejected on failure). Events are debounced
// so a file still being written is not read half-finished.
//
// Delivery manifest format:
//
//	{
//	  "supplier": "MedSupply Ltd",
//	  "reference": "PO-2025-0142",
//	  "lines": [
//	    {"product_id": "d3b0...", "quantity": 30}
//	  ]
//	}
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openpharm/pharmsync/internal/schema"
)

// StockReceiver applies received stock. Satisfied by pharmacy.Facade.
type StockReceiver interface {
	AdjustStock(ctx context.Context, productID, movementType string, quantity int, reason string) (*schema.InventoryItem, error)
}

// Delivery is a supplier delivery manifest dropped into the intake
// directory.
type Delivery struct {
	Supplier  string         `json:"supplier"`
	Reference string         `json:"reference"`
	Lines     []DeliveryLine `json:"lines"`
}

// DeliveryLine is one product line on a delivery manifest.
type DeliveryLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Validate checks that a delivery manifest is processable.
func (d *Delivery) Validate() error {
	if len(d.Lines) == 0 {
		return fmt.Errorf("delivery has no lines")
	}
	for i, line := range d.Lines {
		if line.ProductID == "" {
			return fmt.Errorf("line %d: product_id is required", i)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("line %d: quantity must be positive, got %d", i, line.Quantity)
		}
	}
	return nil
}

// Config holds intake watcher configuration.
type Config struct {
	// Dir is the drop directory to watch. Created if missing.
	Dir string

	// DebounceInterval is how long a file must sit unchanged before it
	// is processed (default: 500ms).
	DebounceInterval time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[intake] ", log.LstdFlags),
	}
}

// Watcher monitors the drop directory and applies delivery manifests.
type Watcher struct {
	receiver StockReceiver
	watcher  *fsnotify.Watcher
	config   *Config

	pending   map[string]time.Time
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an intake watcher delivering stock through receiver.
func New(receiver StockReceiver, config *Config) (*Watcher, error) {
	if receiver == nil {
		return nil, fmt.Errorf("stock receiver is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("intake directory is required")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[intake] ", log.LstdFlags)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		receiver: receiver,
		watcher:  fw,
		config:   config,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins watching the drop directory. Manifests already present
// at startup are queued immediately so nothing left over from a previous
// run is missed.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.config.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create intake directory: %w", err)
	}
	if err := w.watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("failed to watch intake directory %s: %w", w.config.Dir, err)
	}

	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		return fmt.Errorf("failed to scan intake directory: %w", err)
	}
	w.pendingMu.Lock()
	for _, entry := range entries {
		if !entry.IsDir() && isManifest(entry.Name()) {
			w.pending[filepath.Join(w.config.Dir, entry.Name())] = time.Time{}
		}
	}
	w.pendingMu.Unlock()

	w.wg.Add(2)
	go w.watchLoop()
	go w.processLoop()

	w.config.Logger.Printf("Watching %s for delivery manifests", w.config.Dir)
	return nil
}

// Stop stops the watcher and waits for in-flight processing to finish.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isManifest(event.Name) {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.processReady()
		}
	}
}

// processReady handles queued manifests whose debounce window elapsed.
func (w *Watcher) processReady() {
	now := time.Now()

	w.pendingMu.Lock()
	var ready []string
	for path, queuedAt := range w.pending {
		if now.Sub(queuedAt) < w.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(w.pending, path)
	}
	w.pendingMu.Unlock()

	for _, path := range ready {
		if err := w.processManifest(path); err != nil {
			w.config.Logger.Printf("Rejected %s: %v", filepath.Base(path), err)
			w.markFile(path, ".rejected")
			continue
		}
		w.config.Logger.Printf("Processed %s", filepath.Base(path))
		w.markFile(path, ".done")
	}
}

// processManifest reads, validates and applies one delivery manifest.
// Lines applied before a mid-manifest failure stay applied; the file is
// renamed .rejected so the failure is visible for manual review.
func (w *Watcher) processManifest(path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var delivery Delivery
	if err := json.Unmarshal(raw, &delivery); err != nil {
		return fmt.Errorf("malformed manifest: %w", err)
	}
	if err := delivery.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	reason := "delivery"
	if delivery.Reference != "" {
		reason = fmt.Sprintf("delivery %s", delivery.Reference)
	}

	for _, line := range delivery.Lines {
		_, err := w.receiver.AdjustStock(w.ctx, line.ProductID, schema.MovementIn, line.Quantity, reason)
		if err != nil {
			return fmt.Errorf("failed to receive %d x %s: %w", line.Quantity, line.ProductID, err)
		}
	}
	return nil
}

func (w *Watcher) markFile(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil && !os.IsNotExist(err) {
		w.config.Logger.Printf("Failed to rename %s: %v", path, err)
	}
}

// isManifest reports whether a path looks like an unprocessed delivery
// manifest. Already-marked files (.done, .rejected) are ignored.
func isManifest(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
