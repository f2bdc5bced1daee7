// Package syncer provides the sync coordinator that bridges the local
// store and the remote store.
//
// Overview
//
// The coordinator owns all temporal and ordering logic of the sync
// subsystem:
//
//	Facade writes ──► Local Store ──► sync_queue
//	                                     │ drain (FIFO, batched)
//	                                     ▼
//	                               Remote Store
//	                                     │ pull (changed-since)
//	                                     ▼
//	                        conflict resolution ──► Local Store
//
// Two independent tickers run while the coordinator is started: a
// connectivity probe (HTTP HEAD against the remote health endpoint,
// fail-closed) and the sync tick. A tick that finds a pass already in
// flight is dropped, not deferred - mutual exclusion is a single atomic
// flag, never a blocking lock.
//
// Draining processes queue entries strictly in enqueue order across the
// whole queue, so two updates to the same record apply remotely in the
// order they happened locally. One entry's failure never aborts the
// batch: the entry is marked failed (retry count incremented) and the
// pass continues. Failed entries are retried on every subsequent pass
// with no backoff and no cap.
//
// Pulling fetches records changed since the last successful pull and
// reconciles them with last-write-wins on updated_at: a remote copy
// replaces the local copy only when strictly newer. A local copy that is
// kept is presumed still-pending upload and will win once its own queue
// entry drains. This is deliberately coarse - concurrent edits from two
// devices can drop one side's change with no merge and no audit trail.
//
// Usage
//
//	coord := syncer.New(db, remote.New(url, remote.StaticToken(tok)), nil)
//	go coord.Start(ctx)
//	...
//	result, err := coord.ForceSync(ctx)
package syncer
