// Package schema provides the data model for pharmsync records.
//
// Overview
//
// Every business record (Product, InventoryItem, Sale, SaleItem,
// StockMovement) is a flat struct with last-write-wins friendly fields:
// a globally unique string ID and an UpdatedAt timestamp that is refreshed
// on every mutation. Conflict resolution during pulls compares only
// UpdatedAt, never individual fields.
//
// The package also defines QueueEntry, the outbound sync queue row that
// records one intended remote mutation (insert/update/delete) together
// with a JSON snapshot of the record taken at enqueue time.
//
// Serialization
//
// All records marshal to snake_case JSON, which is both the local queue
// snapshot format and the remote wire format. Decode reverses the mapping
// for a given table name:
//
//	rec, err := schema.Decode(schema.TableProducts, data)
//	if err != nil {
//	    return err
//	}
package schema
