// Package wal implements the bounded ring write-ahead log that every
// mutation (put/supersede/delete/stage_embedding) passes through before it
// is folded into the committed archive by the commit coordinator.
package wal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Aman-CERP/ragarchive/internal/config"
	"github.com/Aman-CERP/ragarchive/internal/ragerr"
)

// AutoCommitFunc is invoked synchronously by Append/AppendBatch when
// proactive auto-commit pressure is reached. It must fold all pending WAL
// records into the committed artifacts and call RecordCheckpoint.
type AutoCommitFunc func() error

// WAL is a ring buffer of framed records backed by a fixed-size region of
// an open file. head and checkpoint are monotonic absolute positions (never
// wrapped); the physical file offset for an absolute position p is
// base + (p % size). Using absolute positions instead of wrapped offsets is
// what lets capacity math ((head-checkpoint)+n <= size) stay unambiguous
// across any number of wraps.
type WAL struct {
	mu sync.Mutex

	file *os.File
	base int64 // file offset where the WAL region begins
	size int64

	head         uint64
	checkpoint   uint64
	lastSeq      uint64
	committedSeq uint64

	fsyncPolicy  config.FsyncPolicyKind
	fsyncEveryN  int64
	dirtyBytes   int64

	wrapCount             uint64
	checkpointCount       uint64
	autoCommitCount       uint64
	replaySnapshotHitCount uint64

	proactive  config.WALConfig
	autoCommit AutoCommitFunc
}

// Stats mirrors the recoverStats() contract from spec §4.B.
type Stats struct {
	WrapCount              uint64
	CheckpointCount        uint64
	AutoCommitCount        uint64
	PendingBytes           int64
	WALSize                int64
	LastSeq                uint64
	CommittedSeq           uint64
	ReplaySnapshotHitCount uint64
}

// New creates a WAL ring over file[base:base+size). The region must already
// be allocated (e.g. via Archive.Create); New does not grow the file.
func New(file *os.File, base, size int64, policy config.WALConfig) *WAL {
	return &WAL{
		file:        file,
		base:        base,
		size:        size,
		fsyncPolicy: policy.FsyncPolicy,
		fsyncEveryN: policy.FsyncEveryNBytes,
		proactive:   policy,
	}
}

// SetAutoCommit wires the callback invoked when proactive-commit pressure
// is reached. The commit coordinator calls this after constructing the WAL,
// breaking what would otherwise be an import cycle (commit depends on wal,
// not the reverse).
func (w *WAL) SetAutoCommit(fn AutoCommitFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.autoCommit = fn
}

// SetCommittedSeq seeds the sequence counter after a rewrite_live_set
// compaction, which leaves the destination WAL empty but must not reset the
// sequence numbering (spec.md open question: committed_seq carries
// forward).
func (w *WAL) SetCommittedSeq(seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeq = seq
	w.committedSeq = seq
}

// Append writes a single record and returns its assigned sequence number.
func (w *WAL) Append(kind RecordKind, payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	seqs, err := w.appendLocked([][]byte{payload}, []RecordKind{kind})
	if err != nil {
		return 0, err
	}
	return seqs[0], nil
}

// AppendBatch coalesces multiple payloads of the same kind into a single
// scatter/gather write, emitting one sentinel-terminated frame and
// returning contiguous sequence numbers (spec §4.B appendBatch).
func (w *WAL) AppendBatch(kind RecordKind, payloads [][]byte) ([]uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(payloads) == 0 {
		return nil, nil
	}
	if len(payloads) == 1 {
		return w.appendLocked(payloads, []RecordKind{kind})
	}

	batchPayload := encodeBatch(payloads)
	firstSeq := w.lastSeq + 1
	if err := w.writeRecordLocked(KindBatch, batchPayload); err != nil {
		return nil, err
	}
	w.lastSeq += uint64(len(payloads))

	seqs := make([]uint64, len(payloads))
	for i := range payloads {
		seqs[i] = firstSeq + uint64(i)
	}

	if err := w.maybeAutoCommitLocked(); err != nil {
		return seqs, err
	}
	return seqs, nil
}

func (w *WAL) appendLocked(payloads [][]byte, kinds []RecordKind) ([]uint64, error) {
	payload := payloads[0]
	kind := kinds[0]

	seq := w.lastSeq + 1
	if err := w.writeRecordLocked(kind, payload); err != nil {
		return nil, err
	}
	w.lastSeq = seq

	if err := w.maybeAutoCommitLocked(); err != nil {
		return []uint64{seq}, err
	}
	return []uint64{seq}, nil
}

// pendingBytes is how many ring bytes are occupied by records not yet
// covered by a checkpoint.
func (w *WAL) pendingBytes() int64 {
	return int64(w.head - w.checkpoint)
}

// writeRecordLocked writes one kind/payload record at the current head,
// wrapping the ring first if necessary, and advances head/dirtyBytes.
func (w *WAL) writeRecordLocked(kind RecordKind, payload []byte) error {
	need := int64(encodedSize(len(payload)))

	if err := w.ensureRoomLocked(need); err != nil {
		return err
	}

	buf := make([]byte, need)
	encodeRecord(buf, w.lastSeq+1, kind, payload)
	if err := w.writeAtRingLocked(buf); err != nil {
		return err
	}

	w.head += uint64(need)
	w.dirtyBytes += need

	return w.maybeFsyncLocked()
}

// ensureRoomLocked makes sure `need` bytes are available to write at head
// without crossing the checkpoint, performing a ring wrap first if the
// physical tail is too small to hold the record in place (spec §4.B "Wrap
// handling").
func (w *WAL) ensureRoomLocked(need int64) error {
	if !w.hasCapacityLocked(need) {
		return ragerr.WALFull(fmt.Sprintf("wal full: need %d bytes, checkpoint at %d, head at %d, size %d", need, w.checkpoint, w.head, w.size))
	}

	physOff := int64(w.head % uint64(w.size))
	remaining := w.size - physOff
	if remaining >= need {
		return nil
	}

	// The record would straddle the physical end of the ring. Either mark
	// the gap with an explicit wrap record (when there's room to frame
	// one) or, if the gap is smaller than any record can ever be, skip it
	// silently: both writer and replay derive that skip from the same
	// `remaining < minRecordSize` arithmetic, so no data needs to be
	// written or inspected to agree on it.
	if remaining >= minRecordSize {
		fillerPayloadLen := remaining - minRecordSize
		if !w.hasCapacityLocked(remaining) {
			return ragerr.WALFull("wal full: no room for wrap marker before committed tail")
		}
		filler := make([]byte, remaining)
		encodeRecord(filler, 0, KindWrap, make([]byte, fillerPayloadLen))
		if err := w.writeAtRingLocked(filler); err != nil {
			return err
		}
		w.head += uint64(remaining)
	} else {
		if !w.hasCapacityLocked(remaining) {
			return ragerr.WALFull("wal full: no room to skip dead tail bytes before committed tail")
		}
		w.head += uint64(remaining)
	}
	w.wrapCount++

	if !w.hasCapacityLocked(need) {
		return ragerr.WALFull(fmt.Sprintf("wal full after wrap: need %d bytes", need))
	}
	return nil
}

func (w *WAL) hasCapacityLocked(additional int64) bool {
	return w.pendingBytes()+additional <= w.size
}

func (w *WAL) writeAtRingLocked(buf []byte) error {
	physOff := int64(w.head % uint64(w.size))
	if physOff+int64(len(buf)) > w.size {
		return fmt.Errorf("wal: internal error, record of %d bytes crosses ring boundary at offset %d", len(buf), physOff)
	}
	if _, err := w.file.WriteAt(buf, w.base+physOff); err != nil {
		return ragerr.IOError("write wal record", err)
	}
	return nil
}

func (w *WAL) maybeFsyncLocked() error {
	switch w.fsyncPolicy {
	case config.FsyncEveryRecord:
		w.dirtyBytes = 0
		return w.syncLocked()
	case config.FsyncEveryNBytes:
		if w.fsyncEveryN > 0 && w.dirtyBytes >= w.fsyncEveryN {
			w.dirtyBytes = 0
			return w.syncLocked()
		}
	}
	return nil
}

func (w *WAL) syncLocked() error {
	if err := w.file.Sync(); err != nil {
		return ragerr.IOError("sync wal", err)
	}
	return nil
}

// maybeAutoCommitLocked invokes the wired AutoCommitFunc synchronously when
// pending bytes cross the configured threshold (spec §4.B "Proactive
// auto-commit"), to prevent a full-ring stall from surfacing as wal_full
// tail latency.
func (w *WAL) maybeAutoCommitLocked() error {
	if w.autoCommit == nil {
		return nil
	}
	if !w.proactive.ProactiveCommitThreshold(w.pendingBytes(), w.size) {
		return nil
	}
	w.autoCommitCount++
	return w.autoCommit()
}

// RecordCheckpoint marks all records up to the current head as durably
// applied to the committed artifacts, making that space reclaimable on the
// next wrap.
func (w *WAL) RecordCheckpoint() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checkpoint = w.head
	w.committedSeq = w.lastSeq
	w.checkpointCount++
}

// RecoverStats returns the recoverStats() snapshot from spec §4.B.
func (w *WAL) RecoverStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		WrapCount:              w.wrapCount,
		CheckpointCount:        w.checkpointCount,
		AutoCommitCount:        w.autoCommitCount,
		PendingBytes:           w.pendingBytes(),
		WALSize:                w.size,
		LastSeq:                w.lastSeq,
		CommittedSeq:           w.committedSeq,
		ReplaySnapshotHitCount: w.replaySnapshotHitCount,
	}
}

// Replay scans the ring forward from the last checkpoint, invoking fn for
// each put/supersede/delete/stage_embedding record in sequence order. It is
// used both at archive-open time and by rewrite_live_set to fold pending
// records into a fresh committed state.
func (w *WAL) Replay(fn func(Record) error) error {
	w.mu.Lock()
	pos := w.checkpoint
	head := w.head
	w.mu.Unlock()

	for pos < head {
		physOff := int64(pos % uint64(w.size))
		remaining := w.size - physOff

		if remaining < minRecordSize {
			pos += uint64(remaining)
			continue
		}

		header := make([]byte, headerSize)
		if _, err := w.file.ReadAt(header, w.base+physOff); err != nil && err != io.EOF {
			return ragerr.IOError("read wal record header", err)
		}

		length := decodeLength(header)
		total := encodedSize(int(length))
		if int64(total) > remaining {
			// A record cannot have been written straddling the boundary;
			// this only happens for a wrap marker, whose declared length
			// exactly fills `remaining`. Treat any mismatch defensively as
			// a truncated tail and stop replay here.
			return ragerr.Checksum("wal: replay found a record header wider than the remaining ring segment")
		}

		buf := make([]byte, total)
		if _, err := w.file.ReadAt(buf, w.base+physOff); err != nil && err != io.EOF {
			return ragerr.IOError("read wal record", err)
		}

		rec, consumed, err := decodeRecord(buf)
		if err != nil {
			return err
		}

		if rec.Kind == KindWrap {
			pos += uint64(consumed)
			continue
		}
		if rec.Kind == KindBatch {
			parts, err := decodeBatch(rec.Payload)
			if err != nil {
				return err
			}
			for i, p := range parts {
				if err := fn(Record{Sequence: rec.Sequence + uint64(i), Kind: KindPut, Payload: p}); err != nil {
					return err
				}
			}
			pos += uint64(consumed)
			continue
		}

		if err := fn(rec); err != nil {
			return err
		}
		pos += uint64(consumed)
	}

	return nil
}
