// Package context implements the context builder (spec §4.H): a
// deterministic, token-budgeted greedy assembler that turns unified search
// results into a bounded stream of snippets plus optional parent surrogates.
package ragcontext

import "github.com/Aman-CERP/ragarchive/internal/search"

// Mode selects how much the builder assembles beyond the raw top-K hits.
type Mode uint8

const (
	// ModeFast returns raw top-K snippets with no parent expansion.
	ModeFast Mode = iota
	// ModeDenseCached also expands parents and includes surrogates.
	ModeDenseCached
)

// Tier is the fidelity level of a surrogate parent summary.
type Tier uint8

const (
	TierFull Tier = iota
	TierGist
	TierMicro
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierGist:
		return "gist"
	case TierMicro:
		return "micro"
	default:
		return "unknown"
	}
}

// Config carries the enumerated knobs from spec §4.H's configuration table.
type Config struct {
	Mode                Mode
	MaxContextTokens    int
	ExpansionMaxTokens  int
	SnippetMaxTokens    int
	MaxSnippets         int
	MaxSurrogates       int
	SurrogateMaxTokens  int
	SearchTopK          int
	SearchMode          search.Mode

	// DeterministicNowMs pins "now" for reproducible age_only/importance
	// tier selection in tests; 0 means "use wall-clock time".
	DeterministicNowMs uint64
}

// Request is one context-assembly query.
type Request struct {
	QueryText      string
	QueryEmbedding []float32
	Alpha          float64
	Filter         *search.FrameFilter
}

// Item is one assembled context entry: a snippet, optionally accompanied by
// a surrogate summary of its parent.
type Item struct {
	FrameID      uint64
	Score        float64
	Snippet      string
	SnippetTokens int

	HasSurrogate    bool
	ParentID        uint64
	SurrogateTier   Tier
	Surrogate       string
	SurrogateTokens int
}

// Result is the bounded output of one Build call.
type Result struct {
	Items       []Item
	TotalTokens int
	// Truncated reports whether the token budget cut off candidates that
	// would otherwise have been included.
	Truncated bool
}
