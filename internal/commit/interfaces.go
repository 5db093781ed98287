package commit

// VectorIndex is the subset of internal/vector.Engine the coordinator needs
// to fold staged embeddings into a vec blob and hand it to the archive.
// Declared here (rather than imported) so commit depends on vector only
// through this interface; internal/vector does not import commit.
type VectorIndex interface {
	Add(frameID uint64, vector []float32) error
	Remove(frameID uint64) error
	Serialize() ([]byte, error)
	Load(blob []byte) error
	Count() int
	Dimension() uint32
}

// LexicalIndex is the subset of internal/lexical.Index the coordinator
// needs to fold staged search_text into a lex blob.
type LexicalIndex interface {
	IndexFrame(frameID uint64, text string) error
	RemoveFrame(frameID uint64) error
	Serialize() ([]byte, error)
	Load(blob []byte) error
	DocCount() int
}
