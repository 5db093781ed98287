package frame

import (
	"fmt"
	"sync"

	"github.com/Aman-CERP/ragarchive/internal/archive"
	"github.com/Aman-CERP/ragarchive/internal/ragerr"
	"github.com/Aman-CERP/ragarchive/internal/wal"
)

// PreviewLength is the default truncation length for frame_previews (spec
// §4.C), in bytes of the decoded payload.
const PreviewLength = 240

// Clock returns the current time in epoch milliseconds. Tests inject a
// fixed clock for deterministic timestamps.
type Clock func() uint64

// FrameStore is the write/read API described by spec §4.C: it assigns ids,
// appends WAL records, and maintains committed+pending views, delegating the
// view bookkeeping to Store and payload durability to the archive's data
// region. It does not itself perform two-phase commit publish — that is
// internal/commit's job, which is why FrameStore exposes Store() and Archive()
// accessors for the coordinator to drive staging directly.
type FrameStore struct {
	store   *Store
	wal     *wal.WAL
	archive *archive.Archive
	clock   Clock

	payloadMu sync.Mutex
	// pendingPayloads caches a staged frame's raw payload bytes until
	// commit moves them into the archive data region, so frame_content
	// can serve an uncommitted frame without re-decoding its WAL record.
	pendingPayloads map[uint64][]byte
}

// NewFrameStore wires a FrameStore over an already-open archive and WAL. The
// caller must replay any existing WAL tail (via ReplayOnOpen, in internal/commit)
// before serving traffic.
func NewFrameStore(store *Store, w *wal.WAL, a *archive.Archive, clock Clock) *FrameStore {
	if clock == nil {
		clock = func() uint64 { return 0 }
	}
	return &FrameStore{store: store, wal: w, archive: a, clock: clock, pendingPayloads: make(map[uint64][]byte)}
}

// Store returns the underlying committed/pending view map.
func (fs *FrameStore) Store() *Store { return fs.store }

// Put stages a new frame: allocates an id, builds the WAL put record, and
// installs the pending view (spec §4.C put). Returns the assigned id.
func (fs *FrameStore) Put(opts PutOptions, payload []byte) (uint64, error) {
	if opts.ParentID != 0 && !fs.store.ParentExists(opts.ParentID) {
		return 0, ragerr.FrameNotFound(opts.ParentID).WithDetail("role", "parent_id")
	}

	id := fs.store.AllocateID()
	ts := opts.TimestampMs
	if ts == 0 {
		ts = fs.clock()
	}

	f := &Frame{
		ID:            id,
		TimestampMs:   ts,
		Status:        StatusActive,
		Kind:          opts.Kind,
		Role:          opts.Role,
		ParentID:      opts.ParentID,
		HasSearchText: opts.HasSearchText,
		SearchText:    opts.SearchText,
		Encoding:      opts.Encoding,
		Metadata:      opts.Metadata,
	}

	payload = append([]byte(nil), payload...)
	f.Checksum = archive.Checksum32(payload)
	walPayload := EncodePut(f, payload)
	if _, err := fs.wal.Append(wal.KindPut, walPayload); err != nil {
		return 0, err
	}

	fs.store.ApplyPut(f)
	fs.payloadMu.Lock()
	fs.pendingPayloads[id] = payload
	fs.payloadMu.Unlock()
	return id, nil
}

// Supersede stages a supersede(old_id, new_id) record (spec §4.C).
func (fs *FrameStore) Supersede(oldID, newID uint64) error {
	if _, err := fs.wal.Append(wal.KindSupersede, EncodeSupersede(oldID, newID)); err != nil {
		return err
	}
	return fs.store.ApplySupersede(oldID, newID)
}

// Delete stages a delete(id) record (spec §4.C).
func (fs *FrameStore) Delete(id uint64) error {
	if _, err := fs.wal.Append(wal.KindDelete, EncodeDelete(id)); err != nil {
		return err
	}
	return fs.store.ApplyDelete(id)
}

// StageEmbedding stages an embedding mutation (spec §4.C stage_embedding).
func (fs *FrameStore) StageEmbedding(e *Embedding) error {
	seq, err := fs.wal.Append(wal.KindStageEmbedding, EncodeStageEmbedding(e))
	if err != nil {
		return err
	}
	e.Sequence = seq
	fs.store.ApplyStageEmbedding(e, seq)
	return nil
}

// ReplayPut installs a frame decoded from a WAL put record during
// replay-on-open, caching its payload exactly as Put does so frame_content
// can serve it before the next commit re-stages it into the archive.
func (fs *FrameStore) ReplayPut(f *Frame, payload []byte) {
	fs.store.ApplyPut(f)
	fs.payloadMu.Lock()
	fs.pendingPayloads[f.ID] = payload
	fs.payloadMu.Unlock()
}

// FrameMeta returns the current metadata view of a frame, committed or
// pending.
func (fs *FrameStore) FrameMeta(id uint64) (*Frame, error) {
	return fs.store.FrameMeta(id)
}

// FrameMetas returns metadata for every searchable frame.
func (fs *FrameStore) FrameMetas() []*Frame {
	return fs.store.FrameMetas()
}

// FrameContent returns the decoded payload bytes for id, serving from the
// pending-payload cache when the frame has not yet been committed, or from
// the archive data region (with checksum verification) otherwise.
func (fs *FrameStore) FrameContent(id uint64) ([]byte, error) {
	fs.payloadMu.Lock()
	payload, ok := fs.pendingPayloads[id]
	fs.payloadMu.Unlock()
	if ok {
		return payload, nil
	}

	f, err := fs.store.FrameMeta(id)
	if err != nil {
		return nil, err
	}
	if f.Payload.Length == 0 {
		return nil, nil
	}

	buf := make([]byte, f.Payload.Length)
	if _, err := fs.archive.File().ReadAt(buf, int64(f.Payload.Offset)); err != nil {
		return nil, ragerr.IOError(fmt.Sprintf("read frame %d payload", id), err)
	}
	if got := archive.Checksum32(buf); got != f.Checksum {
		return nil, ragerr.Checksum(fmt.Sprintf("frame %d payload checksum mismatch", id))
	}
	return buf, nil
}

// FramePreviews returns a truncated FrameContent for each id, best-effort
// (a missing frame is simply omitted rather than failing the whole batch,
// since previews are advisory listing data, not a correctness-bearing read).
func (fs *FrameStore) FramePreviews(ids []uint64) map[uint64]string {
	out := make(map[uint64]string, len(ids))
	for _, id := range ids {
		content, err := fs.FrameContent(id)
		if err != nil {
			continue
		}
		if len(content) > PreviewLength {
			content = content[:PreviewLength]
		}
		out[id] = string(content)
	}
	return out
}

// PendingPayload exposes a staged frame's cached raw bytes to the commit
// coordinator's stage phase.
func (fs *FrameStore) PendingPayload(id uint64) ([]byte, bool) {
	fs.payloadMu.Lock()
	defer fs.payloadMu.Unlock()
	p, ok := fs.pendingPayloads[id]
	return p, ok
}

// ClearPendingPayload drops a frame's cached raw payload once the commit
// coordinator has moved it into the archive data region.
func (fs *FrameStore) ClearPendingPayload(id uint64) {
	fs.payloadMu.Lock()
	delete(fs.pendingPayloads, id)
	fs.payloadMu.Unlock()
}

// WAL returns the underlying WAL, for the commit coordinator's replay and
// checkpoint calls.
func (fs *FrameStore) WAL() *wal.WAL { return fs.wal }

// Archive returns the underlying archive handle.
func (fs *FrameStore) Archive() *archive.Archive { return fs.archive }
