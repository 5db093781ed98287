// Package lexical implements the inverted index and BM25 scoring backing
// the archive's text search lane (spec §4.F).
package lexical

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
)

// identifierRegex matches alphanumeric runs, the first split before
// camelCase/snake_case decomposition.
var identifierRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// DefaultStopWords are common tokens carrying little discriminative value
// in source text, filtered before postings are built.
var DefaultStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// MinTokenLength is the shortest token kept after tokenization.
const MinTokenLength = 2

// codeTokenizer splits text into identifier-aware tokens: camelCase,
// PascalCase and snake_case all decompose into their constituent words.
// It implements analysis.Tokenizer so it composes with bleve's
// analysis.TokenFilter chain without requiring a full bleve.Index.
type codeTokenizer struct{}

func (codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	words := identifierRegex.FindAllStringIndex(text, -1)

	stream := make(analysis.TokenStream, 0, len(words))
	pos := 1
	for _, span := range words {
		word := text[span[0]:span[1]]
		offset := span[0]
		for _, part := range splitIdentifier(word) {
			if len(part) < MinTokenLength {
				offset += len(part)
				continue
			}
			start := offset
			end := start + len(part)
			stream = append(stream, &analysis.Token{
				Term:     []byte(strings.ToLower(part)),
				Start:    start,
				End:      end,
				Position: pos,
				Type:     analysis.AlphaNumeric,
			})
			pos++
			offset = end
		}
	}
	return stream
}

// splitIdentifier decomposes a snake_case and/or camelCase identifier into
// its constituent words, preserving original casing (the caller
// lowercases).
func splitIdentifier(word string) []string {
	if strings.Contains(word, "_") {
		var parts []string
		for _, seg := range strings.Split(word, "_") {
			if seg != "" {
				parts = append(parts, splitCamelCase(seg)...)
			}
		}
		return parts
	}
	return splitCamelCase(word)
}

// splitCamelCase splits camelCase/PascalCase identifiers, keeping runs of
// uppercase letters (acronyms) together: "parseHTTPRequest" -> ["parse",
// "HTTP", "Request"].
func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// stopFilter implements analysis.TokenFilter, dropping stop-listed terms
// (case-insensitive, matched after the tokenizer has already lowercased).
type stopFilter struct {
	words map[string]struct{}
}

func newStopFilter(words []string) *stopFilter {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return &stopFilter{words: m}
}

func (f *stopFilter) Filter(in analysis.TokenStream) analysis.TokenStream {
	out := make(analysis.TokenStream, 0, len(in))
	for _, tok := range in {
		if _, stop := f.words[string(tok.Term)]; !stop {
			out = append(out, tok)
		}
	}
	return out
}

// analyzer wraps the tokenizer + stop filter pipeline behind a single
// text-to-terms entry point.
type analyzer struct {
	tokenizer codeTokenizer
	stop      *stopFilter
}

func newAnalyzer(stopWords []string) *analyzer {
	return &analyzer{stop: newStopFilter(stopWords)}
}

// terms tokenizes text and returns the surviving lowercase term list, in
// document order (duplicates retained; callers tally frequency).
func (a *analyzer) terms(text string) []string {
	stream := a.stop.Filter(a.tokenizer.Tokenize([]byte(text)))
	out := make([]string, len(stream))
	for i, tok := range stream {
		out[i] = string(tok.Term)
	}
	return out
}
