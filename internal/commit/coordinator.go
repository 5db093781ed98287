package commit

import (
	"sync"

	"github.com/Aman-CERP/ragarchive/internal/archive"
	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/ragerr"
	"github.com/Aman-CERP/ragarchive/internal/wal"
)

// Coordinator drives the two-phase commit described in spec §4.D: it owns
// the frame store, WAL, and the vector/lexical indexes as a unit, and is
// the only thing that calls archive.PublishTOC.
type Coordinator struct {
	mu sync.Mutex

	ar   *archive.Archive
	w    *wal.WAL
	fs   *frame.FrameStore
	vec  VectorIndex
	lex  LexicalIndex
	lease *WriterLease

	embeddingSyncSeq uint64
}

// Config bundles the already-open collaborators a Coordinator composes.
// Callers (pkg/ragstore) are responsible for opening the archive, wiring
// wal.SetAutoCommit back to the Coordinator's Commit method, and running
// ReplayOnOpen before serving traffic.
type Config struct {
	Archive *archive.Archive
	WAL     *wal.WAL
	Frames  *frame.FrameStore
	Vector  VectorIndex
	Lexical LexicalIndex
	Lease   *WriterLease
}

// New constructs a Coordinator and wires the WAL's proactive auto-commit
// callback back to it, breaking the wal->commit import cycle the same way
// internal/wal's own doc comment describes.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		ar:    cfg.Archive,
		w:     cfg.WAL,
		fs:    cfg.Frames,
		vec:   cfg.Vector,
		lex:   cfg.Lexical,
		lease: cfg.Lease,
	}
	cfg.WAL.SetAutoCommit(c.Commit)
	return c
}

// Commit executes the two-phase commit described in spec §4.D: stage every
// pending frame payload and the lex/vec blobs into the data region, then
// publish a new TOC and checkpoint the WAL. Any failure before the TOC
// flip (archive.PublishTOC's internal step 3) leaves the prior commit as
// the live state; Commit itself does not attempt partial rollback because
// AppendData never overwrites already-published extents.
func (c *Coordinator) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.fs.Store().PendingFrames()
	for _, f := range pending {
		payload, ok := c.fs.PendingPayload(f.ID)
		if !ok {
			continue // supersede/delete-only mutation, payload already committed
		}
		offset, err := c.ar.AppendData(payload)
		if err != nil {
			return err
		}
		if err := c.fs.Store().SetPayloadRef(f.ID, frame.PayloadRef{Offset: offset, Length: uint64(len(payload))}); err != nil {
			return err
		}
		c.fs.ClearPendingPayload(f.ID)
	}

	if err := c.syncLexical(pending); err != nil {
		return err
	}
	if err := c.syncVector(); err != nil {
		return err
	}

	lexBlob, err := c.lex.Serialize()
	if err != nil {
		return err
	}
	vecBlob, err := c.vec.Serialize()
	if err != nil {
		return err
	}
	frameLogBlob := c.fs.Store().Serialize()

	frameLogEntry, err := c.writeManifestEntry(frameLogBlob)
	if err != nil {
		return err
	}
	lexEntry, err := c.writeManifestEntry(lexBlob)
	if err != nil {
		return err
	}
	vecEntry, err := c.writeManifestEntry(vecBlob)
	if err != nil {
		return err
	}

	if err := c.ar.SyncData(); err != nil {
		return err
	}

	logicalStamp := c.w.RecoverStats().LastSeq
	frameLogEntry.Aux = logicalStamp
	lexEntry.Aux = logicalStamp
	vecEntry.Aux = logicalStamp

	newTOC := archive.TOC{
		LogicalStamp:     logicalStamp,
		FrameLogManifest: frameLogEntry,
		LexManifest:      lexEntry,
		VecManifest:      vecEntry,
		WAL:              c.ar.LiveTOC().WAL,
	}

	if err := c.ar.PublishTOC(newTOC); err != nil {
		return err
	}

	c.fs.Store().MarkCommitted()
	c.w.RecordCheckpoint()
	return nil
}

func (c *Coordinator) writeManifestEntry(blob []byte) (archive.ManifestEntry, error) {
	offset, err := c.ar.AppendData(blob)
	if err != nil {
		return archive.ManifestEntry{}, err
	}
	return archive.ManifestEntry{
		Offset:   offset,
		Length:   uint64(len(blob)),
		Checksum: archive.Checksum64(blob),
	}, nil
}

// syncLexical applies search-text additions/removals for frames mutated
// since the last commit, enforcing I4 (search_text presence implies lexical
// index membership, and vice versa on removal).
func (c *Coordinator) syncLexical(pending []*frame.Frame) error {
	for _, f := range pending {
		if !f.Searchable() || !f.HasSearchText || f.SearchText == "" {
			if err := c.lex.RemoveFrame(f.ID); err != nil {
				return err
			}
			continue
		}
		if err := c.lex.IndexFrame(f.ID, f.SearchText); err != nil {
			return err
		}
	}
	return nil
}

// syncVector folds embeddings staged since the last sync into the vector
// index, enforcing I5 (an embedding's presence tracks its frame's
// searchability — a superseded/deleted frame's row is dropped).
func (c *Coordinator) syncVector() error {
	mutations := c.fs.Store().PendingEmbeddingMutations(c.embeddingSyncSeq)
	for _, m := range mutations {
		f, err := c.fs.FrameMeta(m.Embedding.FrameID)
		if err != nil || !f.Searchable() {
			if rmErr := c.vec.Remove(m.Embedding.FrameID); rmErr != nil {
				return rmErr
			}
			c.embeddingSyncSeq = m.Sequence
			continue
		}
		if err := c.vec.Add(m.Embedding.FrameID, m.Embedding.Vector); err != nil {
			return err
		}
		c.embeddingSyncSeq = m.Sequence
	}
	return nil
}

// ReplayOnOpen loads the live TOC's committed artifacts into the frame
// store and vector/lexical indexes, then replays the WAL tail from the
// checkpoint forward into the pending view (spec §4.D "Replay on open").
func ReplayOnOpen(ar *archive.Archive, w *wal.WAL, fs *frame.FrameStore, vec VectorIndex, lex LexicalIndex) error {
	toc := ar.LiveTOC()
	store := fs.Store()

	if toc.FrameLogManifest.Length > 0 {
		blob, err := readManifest(ar, toc.FrameLogManifest)
		if err != nil {
			return err
		}
		if err := store.LoadFrameLog(blob); err != nil {
			return err
		}
	}
	if toc.LexManifest.Length > 0 {
		blob, err := readManifest(ar, toc.LexManifest)
		if err != nil {
			return err
		}
		if err := lex.Load(blob); err != nil {
			return err
		}
	}
	if toc.VecManifest.Length > 0 {
		blob, err := readManifest(ar, toc.VecManifest)
		if err != nil {
			return err
		}
		if err := vec.Load(blob); err != nil {
			return err
		}
	}

	return w.Replay(func(rec wal.Record) error {
		switch rec.Kind {
		case wal.KindPut:
			f, payload, err := frame.DecodePut(rec.Payload)
			if err != nil {
				return err
			}
			fs.ReplayPut(f, payload)
			return nil
		case wal.KindSupersede:
			oldID, newID, err := frame.DecodeSupersede(rec.Payload)
			if err != nil {
				return err
			}
			return store.ApplySupersede(oldID, newID)
		case wal.KindDelete:
			id, err := frame.DecodeDelete(rec.Payload)
			if err != nil {
				return err
			}
			return store.ApplyDelete(id)
		case wal.KindStageEmbedding:
			e, err := frame.DecodeStageEmbedding(rec.Payload)
			if err != nil {
				return err
			}
			store.ApplyStageEmbedding(e, rec.Sequence)
			return nil
		default:
			return nil
		}
	})
}

func readManifest(ar *archive.Archive, m archive.ManifestEntry) ([]byte, error) {
	buf := make([]byte, m.Length)
	if _, err := ar.File().ReadAt(buf, int64(m.Offset)); err != nil {
		return nil, ragerr.IOError("read manifest artifact", err)
	}
	if got := archive.Checksum64(buf); got != m.Checksum {
		return nil, ragerr.Checksum("manifest artifact checksum mismatch")
	}
	return buf, nil
}
