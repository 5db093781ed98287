package ragstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragarchive/internal/config"
	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/provider"
)

func newTestConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Vector.Dimension = 4
	return cfg
}

func TestCreatePutCommitReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ragarchive")

	s, err := Create(context.Background(), path, 4, newTestConfig())
	require.NoError(t, err)

	id, err := s.Put(frame.PutOptions{
		Kind:          "doc.chunk",
		Role:          frame.RoleChunk,
		HasSearchText: true,
		SearchText:    "hello world",
	}, []byte("the chunk body"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	require.NoError(t, s.StageEmbedding(&frame.Embedding{FrameID: id, Dimension: 4, Vector: []float32{1, 0, 0, 0}}))
	require.NoError(t, s.Commit())
	require.NoError(t, s.Close())

	s2, err := Open(context.Background(), path, newTestConfig(), 0)
	require.NoError(t, err)
	defer s2.Close()

	meta, err := s2.FrameMeta(id)
	require.NoError(t, err)
	require.Equal(t, "doc.chunk", meta.Kind)
	require.Equal(t, 1, s2.LexicalIndex().DocCount())
	require.Equal(t, 1, s2.VectorEngine().Count())
}

func TestBatchIngestAssignsMonotoneIDsAndStagesEmbeddings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ragarchive")

	s, err := Create(context.Background(), path, 4, newTestConfig())
	require.NoError(t, err)
	defer s.Close()

	items := []IngestItem{
		{Opts: frame.PutOptions{Kind: "doc.chunk", SearchText: "alpha", HasSearchText: true}, Payload: []byte("alpha body"), EmbedText: "alpha"},
		{Opts: frame.PutOptions{Kind: "doc.chunk", SearchText: "beta", HasSearchText: true}, Payload: []byte("beta body"), EmbedText: "beta"},
	}

	results, err := s.BatchIngest(context.Background(), items, fakeEmbedder{dim: 4}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, uint64(1), results[0].FrameID)
	require.Equal(t, uint64(2), results[1].FrameID)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)

	require.NoError(t, s.Commit())
	require.Equal(t, 2, s.VectorEngine().Count())
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(len(text))
	}
	return v, nil
}
func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}
func (f fakeEmbedder) Dimension() int { return f.dim }
func (f fakeEmbedder) Normalize() bool { return false }
func (f fakeEmbedder) Identity() provider.Identity {
	return provider.Identity{Provider: "fake", Model: "fake", Dimensions: f.dim}
}
func (f fakeEmbedder) ExecutionMode() provider.ExecutionMode { return provider.OnDeviceOnly }
