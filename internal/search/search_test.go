package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/lexical"
	"github.com/Aman-CERP/ragarchive/internal/vector"
)

var errNotFound = errors.New("frame not found")

type fakeFrameLookup struct {
	metas map[uint64]*frame.Frame
}

func (f *fakeFrameLookup) FrameMeta(id uint64) (*frame.Frame, error) {
	m, ok := f.metas[id]
	if !ok {
		return nil, errNotFound
	}
	return m, nil
}

func newSearcher(t *testing.T) (*Searcher, *fakeFrameLookup) {
	t.Helper()
	lex := lexical.New(1.2, 0.75, nil)
	require.NoError(t, lex.IndexFrame(1, "database connection pooling"))
	require.NoError(t, lex.IndexFrame(2, "widget factory pattern"))

	vec := vector.NewCPUEngine(2, vector.SimilarityDot)
	require.NoError(t, vec.Add(1, []float32{1, 0}))
	require.NoError(t, vec.Add(2, []float32{0, 1}))

	lookup := &fakeFrameLookup{metas: map[uint64]*frame.Frame{
		1: {ID: 1, Kind: "chunk", Status: frame.StatusActive},
		2: {ID: 2, Kind: "document", Status: frame.StatusActive},
	}}

	return &Searcher{Lexical: lex, Vector: vec, Frames: lookup}, lookup
}

func TestSearchTextOnlyReturnsLexicalRanking(t *testing.T) {
	s, _ := newSearcher(t)
	results, err := s.Search(context.Background(), Request{
		Mode:      ModeTextOnly,
		QueryText: "database connection",
		TopK:      10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, uint64(1), results[0].FrameID)
}

func TestSearchVectorOnlyReturnsVectorRanking(t *testing.T) {
	s, _ := newSearcher(t)
	results, err := s.Search(context.Background(), Request{
		Mode:           ModeVectorOnly,
		QueryEmbedding: []float32{1, 0},
		TopK:           10,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), results[0].FrameID)
}

func TestSearchHybridFusesBothLanes(t *testing.T) {
	s, _ := newSearcher(t)
	results, err := s.Search(context.Background(), Request{
		Mode:           ModeHybrid,
		QueryText:      "widget factory",
		QueryEmbedding: []float32{0, 1},
		Alpha:          0.5,
		TopK:           10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, uint64(2), results[0].FrameID)
	_, inText := results[0].Sources[SourceText]
	_, inVector := results[0].Sources[SourceVector]
	require.True(t, inText)
	require.True(t, inVector)
}

func TestSearchFilterByKind(t *testing.T) {
	s, _ := newSearcher(t)
	results, err := s.Search(context.Background(), Request{
		Mode:           ModeVectorOnly,
		QueryEmbedding: []float32{1, 1},
		TopK:           10,
		Filter:         &FrameFilter{Kinds: map[string]struct{}{"document": {}}},
	})
	require.NoError(t, err)
	for _, r := range results {
		require.Equal(t, uint64(2), r.FrameID)
	}
}

func TestSearchRespectsTopK(t *testing.T) {
	s, _ := newSearcher(t)
	results, err := s.Search(context.Background(), Request{
		Mode:           ModeVectorOnly,
		QueryEmbedding: []float32{1, 1},
		TopK:           1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestFuseTieBreaksByAscendingFrameID(t *testing.T) {
	results := fuse(
		[]textHit{{FrameID: 5}},
		[]vectorHit{{FrameID: 1}},
		0.5,
		DefaultRRFConstant,
	)
	require.Len(t, results, 2)
	require.Equal(t, uint64(1), results[0].FrameID)
}
