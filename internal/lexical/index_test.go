package lexical

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexFrameAndSearchFindsMatchingTerm(t *testing.T) {
	ix := New(1.2, 0.75, DefaultStopWords)
	require.NoError(t, ix.IndexFrame(1, "parseHTTPRequest handles the incoming connection"))
	require.NoError(t, ix.IndexFrame(2, "totally unrelated content about cooking"))

	results, err := ix.Search("parse request", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, uint64(1), results[0].FrameID)
}

func TestIndexFrameReplacesPreviousPostings(t *testing.T) {
	ix := New(1.2, 0.75, DefaultStopWords)
	require.NoError(t, ix.IndexFrame(1, "apples bananas"))
	require.NoError(t, ix.IndexFrame(1, "oranges"))

	results, err := ix.Search("apples", 10)
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = ix.Search("oranges", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestRemoveFrameTombstonesPostings(t *testing.T) {
	ix := New(1.2, 0.75, DefaultStopWords)
	require.NoError(t, ix.IndexFrame(1, "database connection pooling"))
	require.Equal(t, 1, ix.DocCount())

	require.NoError(t, ix.RemoveFrame(1))
	require.Equal(t, 0, ix.DocCount())

	results, err := ix.Search("database", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestRemoveFrameUnknownIsNoop(t *testing.T) {
	ix := New(1.2, 0.75, DefaultStopWords)
	require.NoError(t, ix.RemoveFrame(999))
}

func TestSearchTieBreaksByAscendingFrameID(t *testing.T) {
	ix := New(1.2, 0.75, DefaultStopWords)
	require.NoError(t, ix.IndexFrame(5, "widget factory pattern"))
	require.NoError(t, ix.IndexFrame(2, "widget factory pattern"))

	results, err := ix.Search("widget factory pattern", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, uint64(2), results[0].FrameID)
	require.Equal(t, uint64(5), results[1].FrameID)
}

func TestSearchRespectsTopK(t *testing.T) {
	ix := New(1.2, 0.75, DefaultStopWords)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, ix.IndexFrame(i, "recurring keyword appears everywhere"))
	}
	results, err := ix.Search("recurring keyword", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestSearchEmptyIndexReturnsNil(t *testing.T) {
	ix := New(1.2, 0.75, DefaultStopWords)
	results, err := ix.Search("anything", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSerializeLoadRoundTrips(t *testing.T) {
	ix := New(1.2, 0.75, DefaultStopWords)
	require.NoError(t, ix.IndexFrame(1, "parseHTTPRequest handles connection"))
	require.NoError(t, ix.IndexFrame(2, "snake_case_identifier splitting works"))
	require.NoError(t, ix.RemoveFrame(2))
	require.NoError(t, ix.IndexFrame(3, "connection pooling strategy"))

	blob, err := ix.Serialize()
	require.NoError(t, err)

	loaded := New(0, 0, DefaultStopWords)
	require.NoError(t, loaded.Load(blob))
	require.Equal(t, 2, loaded.DocCount())
	require.Equal(t, 1.2, loaded.k1)
	require.Equal(t, 0.75, loaded.b)

	results, err := loaded.Search("connection", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestMutatingCallsFailOnReadOnlyIndex(t *testing.T) {
	ix := New(1.2, 0.75, DefaultStopWords)
	ix.readOnly = true
	require.ErrorIs(t, ix.IndexFrame(1, "x"), ErrReadOnly)
	require.ErrorIs(t, ix.RemoveFrame(1), ErrReadOnly)
}

func TestTokenizeSplitsCamelCaseAndSnakeCase(t *testing.T) {
	a := newAnalyzer(nil)
	terms := a.terms("parseHTTPRequest snake_case_name")
	require.Contains(t, terms, "parse")
	require.Contains(t, terms, "http")
	require.Contains(t, terms, "request")
	require.Contains(t, terms, "snake")
	require.Contains(t, terms, "case")
	require.Contains(t, terms, "name")
}

func TestTokenizeFiltersStopWords(t *testing.T) {
	a := newAnalyzer(DefaultStopWords)
	terms := a.terms("if err return value")
	require.Empty(t, terms)
}
