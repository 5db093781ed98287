package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/lexical"
	"github.com/Aman-CERP/ragarchive/internal/vector"
)

// poolMultiplier over-fetches from each lane when a filter is present, so
// post-filtering doesn't starve the final topK.
const poolMultiplier = 4

// FrameLookup resolves frame metadata for filtering; satisfied by
// *frame.FrameStore.
type FrameLookup interface {
	FrameMeta(id uint64) (*frame.Frame, error)
}

// Searcher runs unified queries against one materialized lexical/vector
// engine pair (spec §4.G.2).
type Searcher struct {
	Lexical *lexical.Index
	Vector  vector.Engine
	Frames  FrameLookup

	RRFConstant int
}

// Search executes req and returns results ordered by descending score,
// ties broken by ascending frame_id (spec §4.G.2/§4.G.3).
func (s *Searcher) Search(ctx context.Context, req Request) ([]Result, error) {
	pool := req.TopK
	if req.Filter != nil && pool > 0 {
		pool *= poolMultiplier
	}

	var textResults []lexical.Result
	var vectorResults []vector.ScoredFrame

	g, _ := errgroup.WithContext(ctx)
	if req.Mode != ModeVectorOnly && s.Lexical != nil && req.QueryText != "" {
		g.Go(func() error {
			r, err := s.Lexical.Search(req.QueryText, pool)
			if err != nil {
				return err
			}
			textResults = r
			return nil
		})
	}
	if req.Mode != ModeTextOnly && s.Vector != nil && len(req.QueryEmbedding) > 0 {
		g.Go(func() error {
			r, err := s.Vector.Search(req.QueryEmbedding, pool)
			if err != nil {
				return err
			}
			vectorResults = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []Result
	switch req.Mode {
	case ModeTextOnly:
		results = fromText(textResults)
	case ModeVectorOnly:
		results = fromVector(vectorResults)
	default:
		results = fuse(toTextHits(textResults), toVectorHits(vectorResults), alphaOrDefault(req.Alpha), s.rrfConstant())
	}

	results = s.applyFilter(results, req.Filter)

	if req.TopK > 0 && len(results) > req.TopK {
		results = results[:req.TopK]
	}
	return results, nil
}

func (s *Searcher) rrfConstant() int {
	if s.RRFConstant > 0 {
		return s.RRFConstant
	}
	return DefaultRRFConstant
}

func alphaOrDefault(alpha float64) float64 {
	if alpha <= 0 && alpha != 0 {
		return 0.5
	}
	return alpha
}

func (s *Searcher) applyFilter(results []Result, filter *FrameFilter) []Result {
	if filter == nil || s.Frames == nil {
		return results
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		meta, err := s.Frames.FrameMeta(r.FrameID)
		if err != nil {
			continue
		}
		if filter.Allows(meta) {
			out = append(out, r)
		}
	}
	return out
}

func fromText(hits []lexical.Result) []Result {
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{
			FrameID:      h.FrameID,
			Score:        h.Score,
			Sources:      map[Source]struct{}{SourceText: {}},
			MatchedTerms: h.MatchedTerms,
			TextRank:     i + 1,
		}
	}
	return out
}

func fromVector(hits []vector.ScoredFrame) []Result {
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{
			FrameID:    h.FrameID,
			Score:      float64(h.Score),
			Sources:    map[Source]struct{}{SourceVector: {}},
			VectorRank: i + 1,
		}
	}
	return out
}

func toTextHits(hits []lexical.Result) []textHit {
	out := make([]textHit, len(hits))
	for i, h := range hits {
		out[i] = textHit{FrameID: h.FrameID, MatchedTerms: h.MatchedTerms}
	}
	return out
}

func toVectorHits(hits []vector.ScoredFrame) []vectorHit {
	out := make([]vectorHit, len(hits))
	for i, h := range hits {
		out[i] = vectorHit{FrameID: h.FrameID}
	}
	return out
}
