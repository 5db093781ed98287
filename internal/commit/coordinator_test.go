package commit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragarchive/internal/archive"
	"github.com/Aman-CERP/ragarchive/internal/config"
	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/wal"
)

// fakeVectorIndex is a minimal in-memory VectorIndex for exercising the
// commit coordinator without depending on internal/vector.
type fakeVectorIndex struct {
	dim     uint32
	rows    map[uint64][]float32
	loaded  []byte
}

func newFakeVectorIndex() *fakeVectorIndex { return &fakeVectorIndex{rows: make(map[uint64][]float32)} }

func (f *fakeVectorIndex) Add(frameID uint64, vector []float32) error {
	if f.dim == 0 {
		f.dim = uint32(len(vector))
	}
	f.rows[frameID] = vector
	return nil
}
func (f *fakeVectorIndex) Remove(frameID uint64) error { delete(f.rows, frameID); return nil }
func (f *fakeVectorIndex) Serialize() ([]byte, error) {
	// Trivial encoding sufficient for round-trip tests: count then
	// frame_id/values pairs.
	buf := []byte{byte(len(f.rows))}
	for id, v := range f.rows {
		buf = append(buf, byte(id))
		for _, x := range v {
			buf = append(buf, byte(int8(x*10)))
		}
	}
	return buf, nil
}
func (f *fakeVectorIndex) Load(blob []byte) error { f.loaded = blob; return nil }
func (f *fakeVectorIndex) Count() int             { return len(f.rows) }
func (f *fakeVectorIndex) Dimension() uint32      { return f.dim }

// fakeLexicalIndex is a minimal in-memory LexicalIndex for the same purpose.
type fakeLexicalIndex struct {
	docs   map[uint64]string
	loaded []byte
}

func newFakeLexicalIndex() *fakeLexicalIndex { return &fakeLexicalIndex{docs: make(map[uint64]string)} }

func (l *fakeLexicalIndex) IndexFrame(frameID uint64, text string) error {
	l.docs[frameID] = text
	return nil
}
func (l *fakeLexicalIndex) RemoveFrame(frameID uint64) error { delete(l.docs, frameID); return nil }
func (l *fakeLexicalIndex) Serialize() ([]byte, error) {
	var buf []byte
	for id, t := range l.docs {
		buf = append(buf, byte(id))
		buf = append(buf, []byte(t)...)
		buf = append(buf, 0)
	}
	return buf, nil
}
func (l *fakeLexicalIndex) Load(blob []byte) error { l.loaded = blob; return nil }
func (l *fakeLexicalIndex) DocCount() int          { return len(l.docs) }

func setup(t *testing.T) (*Coordinator, *frame.FrameStore, *archive.Archive, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ragarchive")

	ar, err := archive.Create(path, 4, 0, 1700000000000)
	require.NoError(t, err)

	w := wal.New(ar.File(), int64(ar.LiveTOC().WAL.Offset), int64(ar.LiveTOC().WAL.Size), config.WALConfig{FsyncPolicy: config.FsyncOnCommit})
	store := frame.NewStore()
	fs := frame.NewFrameStore(store, w, ar, func() uint64 { return 1700000000001 })

	coord := New(Config{
		Archive: ar,
		WAL:     w,
		Frames:  fs,
		Vector:  newFakeVectorIndex(),
		Lexical: newFakeLexicalIndex(),
	})
	return coord, fs, ar, path
}

func TestCommitPersistsFrameAcrossReopen(t *testing.T) {
	coord, fs, ar, path := setup(t)

	id, err := fs.Put(frame.PutOptions{
		Kind:          "doc.chunk",
		Role:          frame.RoleChunk,
		HasSearchText: true,
		SearchText:    "hello world",
	}, []byte("the chunk body"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	require.NoError(t, coord.Commit())
	require.NoError(t, ar.Close())

	reopened, err := archive.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	w2 := wal.New(reopened.File(), int64(reopened.LiveTOC().WAL.Offset), int64(reopened.LiveTOC().WAL.Size), config.WALConfig{})
	store2 := frame.NewStore()
	fs2 := frame.NewFrameStore(store2, w2, reopened, nil)
	vec2 := newFakeVectorIndex()
	lex2 := newFakeLexicalIndex()

	require.NoError(t, ReplayOnOpen(reopened, w2, fs2, vec2, lex2))

	got, err := fs2.FrameMeta(id)
	require.NoError(t, err)
	require.Equal(t, "doc.chunk", got.Kind)

	content, err := fs2.FrameContent(id)
	require.NoError(t, err)
	require.Equal(t, "the chunk body", string(content))
}

func TestCommitTwiceAccumulatesFrames(t *testing.T) {
	coord, fs, _, _ := setup(t)

	id1, err := fs.Put(frame.PutOptions{Kind: "a"}, []byte("one"))
	require.NoError(t, err)
	require.NoError(t, coord.Commit())

	id2, err := fs.Put(frame.PutOptions{Kind: "b"}, []byte("two"))
	require.NoError(t, err)
	require.NoError(t, coord.Commit())

	require.NotEqual(t, id1, id2)
	metas := fs.FrameMetas()
	require.Len(t, metas, 2)
}

func TestDeleteHidesFrameAfterCommit(t *testing.T) {
	coord, fs, _, _ := setup(t)

	id, err := fs.Put(frame.PutOptions{Kind: "a"}, []byte("one"))
	require.NoError(t, err)
	require.NoError(t, coord.Commit())

	require.NoError(t, fs.Delete(id))
	require.NoError(t, coord.Commit())

	for _, f := range fs.FrameMetas() {
		require.NotEqual(t, id, f.ID)
	}
}

func TestSupersedeHidesOldFrameAfterCommit(t *testing.T) {
	coord, fs, _, _ := setup(t)

	oldID, err := fs.Put(frame.PutOptions{Kind: "a"}, []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, coord.Commit())

	newID, err := fs.Put(frame.PutOptions{Kind: "a"}, []byte("v2"))
	require.NoError(t, err)
	require.NoError(t, fs.Supersede(oldID, newID))
	require.NoError(t, coord.Commit())

	ids := map[uint64]bool{}
	for _, f := range fs.FrameMetas() {
		ids[f.ID] = true
	}
	require.False(t, ids[oldID])
	require.True(t, ids[newID])
}

func TestRewriteLiveSetPreservesDeadFrameMetadata(t *testing.T) {
	coord, fs, _, _ := setup(t)

	liveID, err := fs.Put(frame.PutOptions{Kind: "live"}, []byte("keep"))
	require.NoError(t, err)
	deadID, err := fs.Put(frame.PutOptions{Kind: "dead"}, []byte("secret"))
	require.NoError(t, err)
	require.NoError(t, coord.Commit())

	require.NoError(t, fs.Delete(deadID))
	require.NoError(t, coord.Commit())

	lexBlob, err := coord.lex.Serialize()
	require.NoError(t, err)
	vecBlob, err := coord.vec.Serialize()
	require.NoError(t, err)

	destPath := filepath.Join(t.TempDir(), "compacted.ragarchive")
	result, err := RewriteLiveSet(fs, lexBlob, vecBlob, destPath, config.WALConfig{SizeBytes: 1 << 20}, true, 1700000001000, coord.w.RecoverStats().LastSeq)
	require.NoError(t, err)
	defer result.Archive.Close()

	destStore := frame.NewStore()
	destFS := frame.NewFrameStore(destStore, result.WAL, result.Archive, nil)
	require.NoError(t, ReplayOnOpen(result.Archive, result.WAL, destFS, newFakeVectorIndex(), newFakeLexicalIndex()))

	all := destStore.AllFrames()
	require.Len(t, all, 2)

	deadMeta, err := destFS.FrameMeta(deadID)
	require.NoError(t, err)
	require.Equal(t, frame.StatusDeleted, deadMeta.Status)

	liveContent, err := destFS.FrameContent(liveID)
	require.NoError(t, err)
	require.Equal(t, "keep", string(liveContent))
}
