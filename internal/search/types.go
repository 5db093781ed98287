// Package search implements the unified text/vector search lane (spec
// §4.G): frame filtering, reciprocal-rank-fusion hybrid scoring, and an
// engine cache so repeated queries against an unchanged committed state
// don't re-materialize the lexical/vector engines from their blobs.
package search

import (
	"github.com/Aman-CERP/ragarchive/internal/frame"
)

// Mode selects which lane(s) a query runs against (spec §4.G.2).
type Mode uint8

const (
	ModeTextOnly Mode = iota
	ModeVectorOnly
	ModeHybrid
)

// Source tags which lane contributed a given result (spec §4.G.2 step 4).
type Source uint8

const (
	SourceText Source = iota
	SourceVector
)

func (s Source) String() string {
	if s == SourceVector {
		return "vector"
	}
	return "text"
}

// FrameFilter restricts candidate frames (spec §4.G.3). A nil/zero field
// means "no restriction" on that dimension.
type FrameFilter struct {
	Kinds        map[string]struct{}
	IDAllowlist  map[uint64]struct{}
	TimeRangeMin uint64
	TimeRangeMax uint64 // 0 means "no upper bound"
	Status       *frame.Status
}

// Allows reports whether meta passes the filter.
func (f *FrameFilter) Allows(meta *frame.Frame) bool {
	if f == nil {
		return true
	}
	if len(f.Kinds) > 0 {
		if _, ok := f.Kinds[meta.Kind]; !ok {
			return false
		}
	}
	if len(f.IDAllowlist) > 0 {
		if _, ok := f.IDAllowlist[meta.ID]; !ok {
			return false
		}
	}
	if f.TimeRangeMin > 0 && meta.TimestampMs < f.TimeRangeMin {
		return false
	}
	if f.TimeRangeMax > 0 && meta.TimestampMs > f.TimeRangeMax {
		return false
	}
	if f.Status != nil && meta.Status != *f.Status {
		return false
	}
	return true
}

// Request is a single unified search query.
type Request struct {
	Mode           Mode
	QueryText      string
	QueryEmbedding []float32
	TopK           int
	Alpha          float64 // hybrid fusion weight toward text, [0,1]
	Filter         *FrameFilter
}

// Result is one ranked, fused search hit.
type Result struct {
	FrameID      uint64
	Score        float64
	Sources      map[Source]struct{}
	MatchedTerms []string
	TextRank     int // 1-indexed, 0 if absent
	VectorRank   int // 1-indexed, 0 if absent
}
