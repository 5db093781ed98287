package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the query text to search for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Kind  string `json:"kind,omitempty" jsonschema:"restrict results to frames of this kind"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of matching frames"`
}

// SearchResultOutput describes a single matched frame.
type SearchResultOutput struct {
	FrameID      uint64   `json:"frame_id" jsonschema:"the matched frame's identifier"`
	Score        float64  `json:"score" jsonschema:"BM25 relevance score"`
	MatchedTerms []string `json:"matched_terms,omitempty" jsonschema:"lexical terms that matched"`
}

// BuildContextInput defines the input schema for the build_context tool.
type BuildContextInput struct {
	Query            string `json:"query" jsonschema:"the query text to assemble context for"`
	MaxContextTokens int    `json:"max_context_tokens,omitempty" jsonschema:"token budget for the assembled context, default 4000"`
	SnippetMaxTokens int    `json:"snippet_max_tokens,omitempty" jsonschema:"per-snippet token cap, default 400"`
	TopK             int    `json:"top_k,omitempty" jsonschema:"number of candidate frames to consider, default 10"`
	DenseCached      bool   `json:"dense_cached,omitempty" jsonschema:"attach gist-tier parent surrogates when true"`
}

// BuildContextOutput defines the output schema for the build_context tool.
type BuildContextOutput struct {
	Items       []ContextItemOutput `json:"items" jsonschema:"assembled context items in retrieval order"`
	TotalTokens int                 `json:"total_tokens" jsonschema:"total tokens across all items"`
	Truncated   bool                `json:"truncated" jsonschema:"true if the token budget was exhausted before all candidates were included"`
}

// ContextItemOutput is a single assembled context item.
type ContextItemOutput struct {
	FrameID   uint64  `json:"frame_id"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
	Surrogate string  `json:"surrogate,omitempty"`
}

// PutInput defines the input schema for the put tool.
type PutInput struct {
	Kind       string `json:"kind" jsonschema:"frame kind, e.g. doc.chunk or code.go"`
	Content    string `json:"content" jsonschema:"the frame payload"`
	SearchText string `json:"search_text,omitempty" jsonschema:"text to index for lexical/vector search, defaults to content"`
	Commit     bool   `json:"commit,omitempty" jsonschema:"commit immediately after staging, default false"`
}

// PutOutput defines the output schema for the put tool.
type PutOutput struct {
	FrameID   uint64 `json:"frame_id"`
	Committed bool   `json:"committed"`
}

// CommitInput defines the input schema for the commit tool (no parameters).
type CommitInput struct{}

// CommitOutput defines the output schema for the commit tool.
type CommitOutput struct {
	Committed bool `json:"committed"`
}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput struct {
	CommittedFrames int `json:"committed_frames"`
	PendingFrames   int `json:"pending_frames"`
	LexicalDocs     int `json:"lexical_docs"`
	Vectors         int `json:"vectors"`
}
