// Package ragsearch is the public read-side facade: unified text/vector
// search (spec §4.G) and token-budgeted context assembly (spec §4.H) over
// a live *ragstore.Store, mirroring the teacher's pkg/searcher as the
// query-side counterpart to pkg/ragstore's write-side facade.
package ragsearch

import (
	"context"

	ragcontext "github.com/Aman-CERP/ragarchive/internal/context"
	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/provider"
	"github.com/Aman-CERP/ragarchive/internal/search"
	"github.com/Aman-CERP/ragarchive/pkg/ragstore"
)

// Reader is the public query handle over one archive. It holds no writer
// lease and never mutates the store; any number of Readers may be built
// over the same *ragstore.Store concurrently (spec §5).
type Reader struct {
	searcher *search.Searcher
	builder  *ragcontext.Builder
}

// Options configures a Reader's search and context-assembly behavior.
type Options struct {
	RRFConstant  int
	TierSelector ragcontext.TierSelector
	GistExtractor *ragcontext.GistExtractor
	AccessTracker *ragcontext.AccessTracker
	Tokens       provider.TokenCounter
}

// NewReader builds a Reader over store's live frame/vector/lexical state.
// Tokens must be non-nil; the other Options fields fall back to sensible
// defaults (no tier selection beyond "full", no code-aware gist tier).
func NewReader(store *ragstore.Store, opts Options) *Reader {
	searcher := &search.Searcher{
		Lexical:     store.LexicalIndex(),
		Vector:      store.VectorEngine(),
		Frames:      store.FrameStore(),
		RRFConstant: opts.RRFConstant,
	}

	builder := &ragcontext.Builder{
		Searcher: searcher,
		Frames:   store.FrameStore(),
		Tokens:   opts.Tokens,
		Tier:     opts.TierSelector,
		Gist:     opts.GistExtractor,
		Access:   opts.AccessTracker,
	}

	return &Reader{searcher: searcher, builder: builder}
}

// Search runs a unified query (spec §4.G.2).
func (r *Reader) Search(ctx context.Context, req search.Request) ([]search.Result, error) {
	return r.searcher.Search(ctx, req)
}

// BuildContext assembles a bounded context stream (spec §4.H).
func (r *Reader) BuildContext(ctx context.Context, cfg ragcontext.Config, req ragcontext.Request) (*ragcontext.Result, error) {
	return r.builder.Build(ctx, cfg, req)
}

// FrameMeta resolves a single frame's metadata, for callers rendering raw
// search results without going through the context builder.
func (r *Reader) FrameMeta(id uint64) (*frame.Frame, error) {
	return r.builder.Frames.FrameMeta(id)
}
