// Package ragstore is the public write-side facade over the archive: open
// or create a single-file archive, put/supersede/delete frames, stage
// embeddings, and commit — wiring internal/archive, internal/wal,
// internal/frame, internal/vector, internal/lexical and internal/commit
// together the way the teacher's pkg/indexer wires its own collaborators
// behind one entry point.
package ragstore

import (
	"context"
	"time"

	"github.com/Aman-CERP/ragarchive/internal/archive"
	"github.com/Aman-CERP/ragarchive/internal/commit"
	"github.com/Aman-CERP/ragarchive/internal/config"
	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/lexical"
	"github.com/Aman-CERP/ragarchive/internal/vector"
	"github.com/Aman-CERP/ragarchive/internal/wal"
)

// Clock returns the current time in epoch milliseconds.
type Clock func() uint64

func defaultClock() uint64 { return uint64(time.Now().UnixMilli()) }

// Store is the writer-side handle on one archive. It holds the writer
// lease for its lifetime (spec §5: "one writer lease per archive").
type Store struct {
	archive *archive.Archive
	wal     *wal.WAL
	frames  *frame.FrameStore
	vec     vector.Engine
	lex     *lexical.Index
	commit  *commit.Coordinator
	lease   *commit.WriterLease
	cfg     *config.Config
	clock   Clock
}

// Open opens an existing archive at path as its sole writer, acquiring the
// writer lease (retrying per cfg up to retryTimeout) and replaying the WAL
// tail into the pending view before returning.
func Open(ctx context.Context, path string, cfg *config.Config, retryTimeout time.Duration) (*Store, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	lease := commit.NewWriterLease(path)
	if err := lease.Acquire(ctx, retryTimeout); err != nil {
		return nil, err
	}

	ar, err := archive.Open(path)
	if err != nil {
		return nil, err
	}

	return openWith(ar, cfg, lease, defaultClock)
}

// Create initializes a fresh archive at path and opens it as its writer.
func Create(ctx context.Context, path string, dimensionHint uint32, cfg *config.Config) (*Store, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	lease := commit.NewWriterLease(path)
	if err := lease.Acquire(ctx, time.Second); err != nil {
		return nil, err
	}

	ar, err := archive.Create(path, dimensionHint, uint64(cfg.WAL.SizeBytes), defaultClock())
	if err != nil {
		return nil, err
	}

	return openWith(ar, cfg, lease, defaultClock)
}

func openWith(ar *archive.Archive, cfg *config.Config, lease *commit.WriterLease, clock Clock) (*Store, error) {
	region := ar.LiveTOC().WAL
	w := wal.New(ar.File(), int64(region.Offset), int64(region.Size), cfg.WAL)

	dim := uint32(cfg.Vector.Dimension)
	if dim == 0 {
		dim = ar.DimensionHint()
	}
	vec := vector.NewEngine(engineSelectionPreference(cfg.Vector.Engine), dim, vector.SimilarityCosine, cfg.Vector.InitialCapacity, 0)
	lex := lexical.New(cfg.Lexical.BM25K1, cfg.Lexical.BM25B, lexical.DefaultStopWords)

	store := frame.NewStore()
	fs := frame.NewFrameStore(store, w, ar, frame.Clock(clock))

	if err := commit.ReplayOnOpen(ar, w, fs, vec, lex); err != nil {
		return nil, err
	}

	coord := commit.New(commit.Config{
		Archive: ar,
		WAL:     w,
		Frames:  fs,
		Vector:  vec,
		Lexical: lex,
		Lease:   lease,
	})

	return &Store{
		archive: ar,
		wal:     w,
		frames:  fs,
		vec:     vec,
		lex:     lex,
		commit:  coord,
		lease:   lease,
		cfg:     cfg,
		clock:   clock,
	}, nil
}

func engineSelectionPreference(mode config.EngineMode) vector.Preference {
	switch mode {
	case config.EngineCPUOnly:
		return vector.PreferenceCPUOnly
	case config.EngineGPUPreferred:
		return vector.PreferenceGPUPreferred
	default:
		return vector.PreferenceAuto
	}
}

// Put stages a new frame and returns its assigned id (spec §4.C put).
func (s *Store) Put(opts frame.PutOptions, payload []byte) (uint64, error) {
	return s.frames.Put(opts, payload)
}

// Supersede stages a supersede(old_id, new_id) record.
func (s *Store) Supersede(oldID, newID uint64) error {
	return s.frames.Supersede(oldID, newID)
}

// Delete stages a delete(id) record.
func (s *Store) Delete(id uint64) error {
	return s.frames.Delete(id)
}

// StageEmbedding stages a pending embedding mutation for id.
func (s *Store) StageEmbedding(e *frame.Embedding) error {
	return s.frames.StageEmbedding(e)
}

// Commit runs the two-phase commit (spec §4.D).
func (s *Store) Commit() error {
	return s.commit.Commit()
}

// FrameMeta returns a frame's current metadata view, committed or pending.
func (s *Store) FrameMeta(id uint64) (*frame.Frame, error) {
	return s.frames.FrameMeta(id)
}

// FrameStore exposes the underlying FrameStore for callers (pkg/ragsearch,
// internal/context) that need read access without a writer lease.
func (s *Store) FrameStore() *frame.FrameStore { return s.frames }

// VectorEngine exposes the live vector engine for search wiring.
func (s *Store) VectorEngine() vector.Engine { return s.vec }

// LexicalIndex exposes the live lexical index for search wiring.
func (s *Store) LexicalIndex() *lexical.Index { return s.lex }

// Close releases the writer lease. It does not commit; callers must Commit
// explicitly before Close to persist staged changes.
func (s *Store) Close() error {
	return s.lease.Release()
}
