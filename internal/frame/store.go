package frame

import (
	"sort"
	"sync"

	"github.com/Aman-CERP/ragarchive/internal/ragerr"
)

// Mutation is a staged WAL write the caller must append before the in-memory
// view it describes becomes durable. Store never touches the WAL itself
// (avoiding an import cycle symmetric to wal's own AutoCommitFunc
// injection) — callers (the commit coordinator) append RecordKind/Payload
// and then call the matching Apply* method (ApplyStageEmbedding also takes
// the assigned sequence).
type Mutation struct {
	Kind    uint8 // mirrors wal.RecordKind's numeric values
	Payload []byte
}

// EmbeddingMutation pairs a staged embedding with the WAL sequence number it
// was appended under, for PendingEmbeddingMutations.
type EmbeddingMutation struct {
	Embedding *Embedding
	Sequence  uint64
}

// Store holds the committed view (folded from the archive's frame log at
// open time) overlaid by a pending view (mutations appended since the last
// commit), per spec §4.C. Reads always prefer pending over committed so a
// caller sees its own uncommitted writes immediately.
type Store struct {
	mu sync.RWMutex

	nextID uint64

	committed map[uint64]*Frame
	pending   map[uint64]*Frame

	// pendingEmbeddings holds staged embeddings keyed by frame id, each
	// tagged with the WAL sequence it was appended under so the vector
	// index can ask "what changed since sequence N".
	pendingEmbeddings map[uint64]EmbeddingMutation
}

// NewStore returns an empty store. Callers replay the archive's committed
// frame log and any pending WAL tail into it via LoadCommitted/Apply* before
// serving reads.
func NewStore() *Store {
	return &Store{
		committed:         make(map[uint64]*Frame),
		pending:           make(map[uint64]*Frame),
		pendingEmbeddings: make(map[uint64]EmbeddingMutation),
	}
}

// LoadCommitted installs a frame as already-committed state, used when
// replaying the archive's frame log at open time. It also advances nextID
// so newly allocated ids never collide with a replayed one (I1).
func (s *Store) LoadCommitted(f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed[f.ID] = f
	if f.ID >= s.nextID {
		s.nextID = f.ID + 1
	}
}

// AllocateID reserves the next monotone frame id without mutating any view.
// Used by the commit coordinator to assign an id before encoding the WAL
// put record (the id must be known to build the payload).
func (s *Store) AllocateID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextID == 0 {
		s.nextID = 1
	}
	id := s.nextID
	s.nextID++
	return id
}

// ApplyPut installs f (already carrying its allocated id) into the pending
// view. Called by the commit coordinator after the WAL append for a put
// record succeeds, and by replay when folding an existing WAL tail.
func (s *Store) ApplyPut(f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID >= s.nextID {
		s.nextID = f.ID + 1
	}
	s.pending[f.ID] = f
}

// ApplySupersede marks oldID as superseded by newID in whichever view
// currently holds it (pending takes priority, mirroring read semantics),
// and copies it into pending so the mutation is visible before commit.
func (s *Store) ApplySupersede(oldID, newID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.lookupLocked(oldID)
	if f == nil {
		return ragerr.FrameNotFound(oldID)
	}
	c := f.Clone()
	c.SupersededBy = newID
	s.pending[oldID] = c
	return nil
}

// ApplyDelete marks id deleted in the pending view.
func (s *Store) ApplyDelete(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.lookupLocked(id)
	if f == nil {
		return ragerr.FrameNotFound(id)
	}
	c := f.Clone()
	c.Status = StatusDeleted
	s.pending[id] = c
	return nil
}

// ApplyStageEmbedding records a staged embedding mutation at the given WAL
// sequence (I6-I8 are enforced by the vector index on commit, not here).
func (s *Store) ApplyStageEmbedding(e *Embedding, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingEmbeddings[e.FrameID] = EmbeddingMutation{Embedding: e, Sequence: seq}
}

// lookupLocked returns the pending view of id if present, else the
// committed view, else nil. Callers must hold s.mu.
func (s *Store) lookupLocked(id uint64) *Frame {
	if f, ok := s.pending[id]; ok {
		return f
	}
	if f, ok := s.committed[id]; ok {
		return f
	}
	return nil
}

// FrameMeta returns the current (pending-overlaid) view of a frame's
// metadata, without its payload.
func (s *Store) FrameMeta(id uint64) (*Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.lookupLocked(id)
	if f == nil {
		return nil, ragerr.FrameNotFound(id)
	}
	return f.Clone(), nil
}

// FrameMetas returns metadata for every searchable frame (active, not
// superseded), pending view overlaid onto committed, sorted by id.
func (s *Store) FrameMetas() []*Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[uint64]*Frame, len(s.committed)+len(s.pending))
	for id, f := range s.committed {
		merged[id] = f
	}
	for id, f := range s.pending {
		merged[id] = f
	}

	out := make([]*Frame, 0, len(merged))
	for _, f := range merged {
		if f.Searchable() {
			out = append(out, f.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllFrames returns every frame in the merged view regardless of
// searchability, for rewrite_live_set compaction, which must preserve
// deleted/superseded frames' ids and metadata even though they're hidden
// from search.
func (s *Store) AllFrames() []*Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[uint64]*Frame, len(s.committed)+len(s.pending))
	for id, f := range s.committed {
		merged[id] = f
	}
	for id, f := range s.pending {
		merged[id] = f
	}
	out := make([]*Frame, 0, len(merged))
	for _, f := range merged {
		out = append(out, f.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CommittedCount and PendingCount support the commit coordinator's
// proactive-commit and rewrite_live_set accounting.
func (s *Store) CommittedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.committed)
}

func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// PendingFrames returns a snapshot of every frame mutated since the last
// commit, for the commit coordinator's stage phase.
func (s *Store) PendingFrames() []*Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Frame, 0, len(s.pending))
	for _, f := range s.pending {
		out = append(out, f.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PendingEmbeddingMutations returns staged embeddings appended with a
// sequence strictly greater than since, ordered by sequence, for the
// vector index's incremental sync (spec §4.E "dirty-range" staging).
func (s *Store) PendingEmbeddingMutations(since uint64) []EmbeddingMutation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EmbeddingMutation, 0, len(s.pendingEmbeddings))
	for _, m := range s.pendingEmbeddings {
		if m.Sequence > since {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// MarkCommitted folds the pending view into committed and clears it,
// called by the commit coordinator once the publish phase (TOC flip +
// checkpoint) has succeeded.
func (s *Store) MarkCommitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.pending {
		s.committed[id] = f
	}
	s.pending = make(map[uint64]*Frame)
	s.pendingEmbeddings = make(map[uint64]EmbeddingMutation)
}

// Serialize encodes the full merged view (committed overlaid by pending)
// as the committed frame-log blob the commit coordinator writes to the
// data region during Phase 1 of a commit.
func (s *Store) Serialize() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[uint64]*Frame, len(s.committed)+len(s.pending))
	for id, f := range s.committed {
		merged[id] = f
	}
	for id, f := range s.pending {
		merged[id] = f
	}
	out := make([]*Frame, 0, len(merged))
	for _, f := range merged {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return EncodeFrameLog(out)
}

// LoadFrameLog replaces the committed view with the frames encoded in blob,
// used at archive-open time before WAL replay folds in any pending tail.
func (s *Store) LoadFrameLog(blob []byte) error {
	frames, err := DecodeFrameLog(blob)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = make(map[uint64]*Frame, len(frames))
	for _, f := range frames {
		s.committed[f.ID] = f
		if f.ID >= s.nextID {
			s.nextID = f.ID + 1
		}
	}
	return nil
}

// SetPayloadRef updates a pending frame's committed payload location, called
// by the commit coordinator after AppendData returns the offset a staged
// frame's payload landed at.
func (s *Store) SetPayloadRef(id uint64, ref PayloadRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.lookupLocked(id)
	if f == nil {
		return ragerr.FrameNotFound(id)
	}
	c := f.Clone()
	c.Payload = ref
	s.pending[id] = c
	return nil
}

// ParentExists reports whether id names a frame present in either view,
// for enforcing I3 (parent_id must reference an existing frame) before a
// put is accepted.
func (s *Store) ParentExists(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(id) != nil
}
