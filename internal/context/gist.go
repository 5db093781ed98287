package ragcontext

import (
	"context"
	"strings"

	"github.com/Aman-CERP/ragarchive/internal/chunk"
)

// goDeclarationTypes are the top-level node types a gist-tier summary pulls
// a one-line signature from, mirroring the chunker's symbol extraction.
var goDeclarationTypes = map[string]struct{}{
	"function_declaration": {},
	"method_declaration":   {},
	"type_declaration":     {},
}

// GistExtractor produces a gist-tier surrogate for a source-code frame: the
// signature lines of its top-level declarations, one per line, rather than
// a naive head-of-file truncation. This is a supplement beyond the base
// algorithm (spec §4.H); it only enriches the gist tier's content, never
// token accounting or tier selection.
type GistExtractor struct {
	parser *chunk.Parser
}

// NewGistExtractor returns an extractor backed by a fresh tree-sitter parser
// with the default language registry.
func NewGistExtractor() *GistExtractor {
	return &GistExtractor{parser: chunk.NewParser()}
}

// Close releases the underlying tree-sitter parser.
func (g *GistExtractor) Close() {
	if g.parser != nil {
		g.parser.Close()
	}
}

// SupportsKind reports whether kind is a code surrogate this extractor can
// handle (namespaced under "code." per the kind taxonomy, spec §3.1).
func (g *GistExtractor) SupportsKind(kind string) bool {
	return strings.HasPrefix(kind, "code.") && codeLanguage(kind) == "go"
}

// codeLanguage maps a "code.<language>" kind to the chunk package's
// language name. Only "go" is wired; other code kinds fall back to naive
// truncation in the caller.
func codeLanguage(kind string) string {
	return strings.TrimPrefix(kind, "code.")
}

// Extract returns a newline-joined list of top-level declaration signatures
// found in source. Returns "" (never an error) if parsing fails or the
// source has no recognizable declarations, so callers fall back to naive
// truncation rather than surfacing a parse failure to the caller.
func (g *GistExtractor) Extract(ctx context.Context, kind string, source []byte) string {
	lang := codeLanguage(kind)
	tree, err := g.parser.Parse(ctx, source, lang)
	if err != nil || tree == nil || tree.Root == nil {
		return ""
	}

	var sigs []string
	for _, child := range tree.Root.Children {
		if _, ok := goDeclarationTypes[child.Type]; !ok {
			continue
		}
		sig := signatureLine(child, source)
		if sig != "" {
			sigs = append(sigs, sig)
		}
	}
	return strings.Join(sigs, "\n")
}

// signatureLine returns the first line of a declaration node's content,
// trimmed, up to (but not including) an opening brace.
func signatureLine(n *chunk.Node, source []byte) string {
	content := n.GetContent(source)
	if content == "" {
		return ""
	}
	firstLine := strings.SplitN(content, "\n", 2)[0]
	if idx := strings.IndexByte(firstLine, '{'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	return strings.TrimSpace(firstLine)
}
