package ragstore

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/provider"
)

// IngestItem is one document queued for batch ingest.
type IngestItem struct {
	Opts    frame.PutOptions
	Payload []byte
	// EmbedText is the text handed to the embedder; empty skips embedding
	// for this item (e.g. a frame with no search-eligible content).
	EmbedText string
}

// IngestResult pairs an ingested item with its assigned frame id, in the
// same order as the input slice.
type IngestResult struct {
	FrameID uint64
	Err     error
}

// DefaultIngestWorkers is the fixed worker count used when callers don't
// override it (spec §5 "Backpressure": fixed worker counts, not an
// unbounded fan-out).
const DefaultIngestWorkers = 4

// BatchIngest runs items through a bounded pipeline — stage, then embed,
// then persist the embedding — with a fixed worker count. put/stage_embedding
// calls against the Store are serialized by FrameStore's own WAL append
// path (spec §5: "strictly serialized" per writer), so the concurrency here
// only parallelizes the embedder call, the one potentially slow step.
func (s *Store) BatchIngest(ctx context.Context, items []IngestItem, embedder provider.Embedder, workers int) ([]IngestResult, error) {
	if workers <= 0 {
		workers = DefaultIngestWorkers
	}

	results := make([]IngestResult, len(items))

	// Stage: strictly serialized put()s assign monotone ids (spec P1)
	// before any embedding work starts, so frame ids reflect ingestion
	// order regardless of embedding latency.
	for i, item := range items {
		id, err := s.Put(item.Opts, item.Payload)
		results[i] = IngestResult{FrameID: id, Err: err}
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)

	for i, item := range items {
		i, item := i, item
		if results[i].Err != nil || item.EmbedText == "" {
			continue
		}
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			vec, err := embedder.Embed(gctx, item.EmbedText)
			if err != nil {
				results[i].Err = err
				return nil // embedding failure is per-item, not pipeline-fatal
			}
			err = s.StageEmbedding(&frame.Embedding{
				FrameID:    results[i].FrameID,
				Dimension:  uint32(len(vec)),
				Vector:     vec,
				Normalized: embedder.Normalize(),
			})
			results[i].Err = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
