package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/openpharm/pharmsync/internal/schema"
)

// Pull fetches remote changes since the last successful pull and
// reconciles them into the local store with last-write-wins.
//
// The low-water mark only advances after every table has been fetched
// and reconciled; a failed table aborts the pull so that nothing is
// skipped on the next attempt. A pull may momentarily overwrite a local
// change whose queue entry has not drained yet - the next drain
// re-asserts the local value (eventual, not strong, consistency).
func (c *Coordinator) Pull(ctx context.Context) (*PullResult, error) {
	since, err := c.db.LastSyncTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync time: %w", err)
	}

	// Taken before the fetches so records changing mid-pull are seen
	// again next time rather than missed.
	mark := time.Now()

	result := &PullResult{}
	for _, table := range schema.Tables {
		records, err := c.remote.ChangedSince(ctx, table, since)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s changes: %w", table, err)
		}
		result.Fetched += len(records)

		for _, rec := range records {
			applied, err := c.resolve(ctx, rec)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile %s/%s: %w", table, rec.RecordID(), err)
			}
			if applied {
				result.Applied++
			} else {
				result.Skipped++
			}
		}
	}

	if err := c.db.SetLastSyncTime(ctx, mark); err != nil {
		return nil, fmt.Errorf("failed to advance last sync time: %w", err)
	}

	c.config.Logger.Printf("Pull complete: fetched=%d applied=%d skipped=%d",
		result.Fetched, result.Applied, result.Skipped)
	c.emit(Event{Type: EventPullComplete, Time: time.Now(), Pull: result})
	return result, nil
}

// resolve decides whether a pulled record overwrites the local copy.
//
// Policy: last-write-wins by updated_at. A missing local copy is
// inserted unconditionally; an existing local copy is replaced only when
// the remote copy is strictly newer. Keeping the local copy is not an
// error - it is presumed still-pending upload.
func (c *Coordinator) resolve(ctx context.Context, rec schema.Record) (applied bool, err error) {
	localUpdated, found, err := c.db.RecordUpdatedAt(ctx, rec.Table(), rec.RecordID())
	if err != nil {
		return false, err
	}

	if found && !rec.ModifiedAt().After(localUpdated) {
		c.emit(Event{
			Type:     EventConflictSkipped,
			Time:     time.Now(),
			Table:    rec.Table(),
			RecordID: rec.RecordID(),
		})
		return false, nil
	}

	if err := c.db.UpsertRecord(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}
