package search

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter (k=60,
// the same value OpenSearch/Azure AI Search default to).
const DefaultRRFConstant = 60

// textHit and vectorHit are the minimal per-lane inputs fusion needs;
// callers (Searcher) build these from lexical.Result / vector.ScoredFrame.
type textHit struct {
	FrameID      uint64
	MatchedTerms []string
}

type vectorHit struct {
	FrameID uint64
}

// fuse combines text and vector hits with Reciprocal Rank Fusion (spec
// §4.G.2 step 3): score(f) = alpha/(k+r_t) + (1-alpha)/(k+r_v), treating
// an absent rank as contributing zero rather than a synthetic rank. Ties
// are broken by ascending frame_id, per spec.
func fuse(text []textHit, vec []vectorHit, alpha float64, k int) []Result {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	byFrame := make(map[uint64]*Result)

	get := func(id uint64) *Result {
		r, ok := byFrame[id]
		if !ok {
			r = &Result{FrameID: id, Sources: make(map[Source]struct{})}
			byFrame[id] = r
		}
		return r
	}

	for i, hit := range text {
		r := get(hit.FrameID)
		r.TextRank = i + 1
		r.MatchedTerms = hit.MatchedTerms
		r.Sources[SourceText] = struct{}{}
		r.Score += alpha / float64(k+i+1)
	}
	for i, hit := range vec {
		r := get(hit.FrameID)
		r.VectorRank = i + 1
		r.Sources[SourceVector] = struct{}{}
		r.Score += (1 - alpha) / float64(k+i+1)
	}

	results := make([]Result, 0, len(byFrame))
	for _, r := range byFrame {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].FrameID < results[j].FrameID
	})
	return results
}
