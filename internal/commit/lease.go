// Package commit implements the two-phase commit coordinator (spec §4.D):
// staging frame/lex/vec artifacts into the archive's data region, publishing
// a new TOC atomically, replaying the WAL on open, and the offline
// rewrite_live_set compaction path.
package commit

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/ragarchive/internal/ragerr"
)

// WriterLease enforces the single-writer invariant (spec §5 "Shared-resource
// policy": frame store is writer-exclusive) with an advisory file lock
// sitting alongside the archive file, so two processes opening the same
// archive for writing never race on the TOC flip.
type WriterLease struct {
	flock *flock.Flock
	path  string
}

// NewWriterLease returns a lease over archivePath+".lock", unlocked.
func NewWriterLease(archivePath string) *WriterLease {
	return &WriterLease{flock: flock.New(archivePath + ".lock"), path: archivePath}
}

// Acquire polls for the lock every retryDelay until it succeeds or ctx is
// canceled, surfacing writer_contention if ctx expires first.
func (l *WriterLease) Acquire(ctx context.Context, retryDelay time.Duration) error {
	ok, err := l.flock.TryLockContext(ctx, retryDelay)
	if err != nil && ctx.Err() == nil {
		return ragerr.IOError(fmt.Sprintf("acquire writer lease for %s", l.path), err)
	}
	if !ok {
		return ragerr.WriterContention(fmt.Sprintf("timed out acquiring writer lease for %s", l.path))
	}
	return nil
}

// TryAcquire attempts the lock once, returning writer_contention immediately
// on failure rather than retrying (for callers that implement their own
// backoff loop, e.g. a batch-ingest pipeline that wants to fail fast).
func (l *WriterLease) TryAcquire() error {
	ok, err := l.flock.TryLock()
	if err != nil {
		return ragerr.IOError(fmt.Sprintf("acquire writer lease for %s", l.path), err)
	}
	if !ok {
		return ragerr.WriterContention(fmt.Sprintf("archive %s is held by another writer", l.path))
	}
	return nil
}

// AcquireWithRetry attempts the lock, retrying with exponential backoff on
// contention until cfg's budget is exhausted (spec §7: "writer_contention:
// caller retries with backoff").
func (l *WriterLease) AcquireWithRetry(ctx context.Context, cfg ragerr.RetryConfig) error {
	return ragerr.Retry(ctx, cfg, l.TryAcquire)
}

// Release unlocks the lease. Safe to call on an unheld lease.
func (l *WriterLease) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return ragerr.IOError(fmt.Sprintf("release writer lease for %s", l.path), err)
	}
	return nil
}
