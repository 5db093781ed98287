package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragarchive/internal/config"
	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/provider"
	"github.com/Aman-CERP/ragarchive/pkg/ragsearch"
	"github.com/Aman-CERP/ragarchive/pkg/ragstore"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ragarchive")

	cfg := config.NewConfig()
	cfg.Vector.Dimension = 4

	store, err := ragstore.Create(context.Background(), path, 4, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	id, err := store.Put(frame.PutOptions{
		Kind:          "doc.chunk",
		Role:          frame.RoleChunk,
		HasSearchText: true,
		SearchText:    "widget factory assembly",
	}, []byte("widget factory assembly instructions"))
	require.NoError(t, err)
	require.NoError(t, store.StageEmbedding(&frame.Embedding{FrameID: id, Dimension: 4, Vector: []float32{1, 0, 0, 0}}))
	require.NoError(t, store.Commit())

	reader := ragsearch.NewReader(store, ragsearch.Options{Tokens: provider.NewWordTokenCounter()})

	s, err := NewServer(store, reader)
	require.NoError(t, err)
	return s
}

func TestHandleSearchReturnsMatch(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "widget", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	require.Equal(t, uint64(1), out.Results[0].FrameID)
}

func TestHandleSearchRejectsEmptyQuery(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleSearch(context.Background(), nil, SearchInput{})
	require.Error(t, err)
}

func TestHandleBuildContextAssemblesSnippet(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleBuildContext(context.Background(), nil, BuildContextInput{Query: "widget"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Items)
	require.Contains(t, out.Items[0].Snippet, "widget")
}

func TestHandlePutStagesAndCommits(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handlePut(context.Background(), nil, PutInput{
		Kind:    "doc.chunk",
		Content: "second frame body",
		Commit:  true,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), out.FrameID)
	require.True(t, out.Committed)
}

func TestHandleStatsReportsCounts(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleStats(context.Background(), nil, StatsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, out.CommittedFrames)
	require.Equal(t, 1, out.LexicalDocs)
	require.Equal(t, 1, out.Vectors)
}
