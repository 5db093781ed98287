package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	ragcontext "github.com/Aman-CERP/ragarchive/internal/context"
	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/search"
	"github.com/Aman-CERP/ragarchive/pkg/ragsearch"
	"github.com/Aman-CERP/ragarchive/pkg/ragstore"
	"github.com/Aman-CERP/ragarchive/pkg/version"
)

// Server is the MCP server for ragarchive. It bridges AI clients (Claude
// Code, Cursor) to one open archive's write facade (*ragstore.Store) and
// read facade (*ragsearch.Reader).
type Server struct {
	mcp    *mcp.Server
	store  *ragstore.Store
	reader *ragsearch.Reader
	logger *slog.Logger
}

// NewServer creates a new MCP server over an already-open store/reader
// pair. Callers own the store's lifetime (Close it after the server
// stops).
func NewServer(store *ragstore.Store, reader *ragsearch.Reader) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if reader == nil {
		return nil, errors.New("reader is required")
	}

	s := &Server{
		store:  store,
		reader: reader,
		logger: slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "ragarchive",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Run a lexical (BM25) search against the archive and return matched frame ids with their BM25 scores.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "build_context",
		Description: "Assemble a token-budgeted context stream for a query: retrieval order, truncated snippets, and optional gist-tier surrogates of parent frames.",
	}, s.handleBuildContext)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "put",
		Description: "Stage a new frame in the archive and optionally commit immediately.",
	}, s.handlePut)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "commit",
		Description: "Flush all pending frame and index mutations to the archive.",
	}, s.handleCommit)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "stats",
		Description: "Report committed/pending frame counts and lexical/vector index sizes.",
	}, s.handleStats)

	s.logger.Info("MCP tools registered", slog.Int("count", 5))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	var filter *search.FrameFilter
	if input.Kind != "" {
		filter = &search.FrameFilter{Kinds: map[string]struct{}{input.Kind: {}}}
	}

	results, err := s.reader.Search(ctx, search.Request{
		Mode:      search.ModeTextOnly,
		QueryText: input.Query,
		TopK:      limit,
		Filter:    filter,
	})
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultOutput{
			FrameID:      r.FrameID,
			Score:        r.Score,
			MatchedTerms: r.MatchedTerms,
		})
	}
	return nil, out, nil
}

func (s *Server) handleBuildContext(ctx context.Context, _ *mcp.CallToolRequest, input BuildContextInput) (
	*mcp.CallToolResult, BuildContextOutput, error,
) {
	if input.Query == "" {
		return nil, BuildContextOutput{}, NewInvalidParamsError("query is required")
	}

	maxTokens := input.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	snippetTokens := input.SnippetMaxTokens
	if snippetTokens <= 0 {
		snippetTokens = 400
	}
	topK := input.TopK
	if topK <= 0 {
		topK = 10
	}

	mode := ragcontext.ModeFast
	if input.DenseCached {
		mode = ragcontext.ModeDenseCached
	}

	result, err := s.reader.BuildContext(ctx, ragcontext.Config{
		Mode:             mode,
		MaxContextTokens: maxTokens,
		SnippetMaxTokens: snippetTokens,
		SurrogateMaxTokens: snippetTokens,
		MaxSnippets:      topK,
		SearchTopK:       topK,
		SearchMode:       search.ModeTextOnly,
	}, ragcontext.Request{QueryText: input.Query})
	if err != nil {
		return nil, BuildContextOutput{}, MapError(err)
	}

	out := BuildContextOutput{TotalTokens: result.TotalTokens, Truncated: result.Truncated}
	for _, item := range result.Items {
		out.Items = append(out.Items, ContextItemOutput{
			FrameID:   item.FrameID,
			Score:     item.Score,
			Snippet:   item.Snippet,
			Surrogate: item.Surrogate,
		})
	}
	return nil, out, nil
}

func (s *Server) handlePut(_ context.Context, _ *mcp.CallToolRequest, input PutInput) (
	*mcp.CallToolResult, PutOutput, error,
) {
	if input.Content == "" {
		return nil, PutOutput{}, NewInvalidParamsError("content is required")
	}

	searchText := input.SearchText
	if searchText == "" {
		searchText = input.Content
	}

	id, err := s.store.Put(frame.PutOptions{
		Kind:          input.Kind,
		Role:          frame.RoleChunk,
		HasSearchText: true,
		SearchText:    searchText,
	}, []byte(input.Content))
	if err != nil {
		return nil, PutOutput{}, MapError(err)
	}

	committed := false
	if input.Commit {
		if err := s.store.Commit(); err != nil {
			return nil, PutOutput{FrameID: id}, MapError(err)
		}
		committed = true
	}

	return nil, PutOutput{FrameID: id, Committed: committed}, nil
}

func (s *Server) handleCommit(_ context.Context, _ *mcp.CallToolRequest, _ CommitInput) (
	*mcp.CallToolResult, CommitOutput, error,
) {
	if err := s.store.Commit(); err != nil {
		return nil, CommitOutput{}, MapError(err)
	}
	return nil, CommitOutput{Committed: true}, nil
}

func (s *Server) handleStats(_ context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult, StatsOutput, error,
) {
	fs := s.store.FrameStore().Store()
	return nil, StatsOutput{
		CommittedFrames: fs.CommittedCount(),
		PendingFrames:   fs.PendingCount(),
		LexicalDocs:     s.store.LexicalIndex().DocCount(),
		Vectors:         s.store.VectorEngine().Count(),
	}, nil
}

// Serve starts the server using the given transport ("stdio" is the only
// transport currently supported).
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
