package provider

import (
	"regexp"
	"strings"
)

var wordRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// WordTokenCounter is a deterministic, dependency-free TokenCounter for
// tests and for callers without a model-specific tokenizer. It approximates
// a subword tokenizer by counting identifier-like runs (camelCase and
// snake_case components count as separate tokens, mirroring how the
// lexical index splits code identifiers for search).
type WordTokenCounter struct{}

// NewWordTokenCounter returns a WordTokenCounter.
func NewWordTokenCounter() WordTokenCounter { return WordTokenCounter{} }

// Count returns the number of identifier-like tokens in text.
func (WordTokenCounter) Count(text string) int {
	return len(splitWords(text))
}

// Truncate returns the longest prefix of text whose token count is at most
// maxTokens, cutting at a token boundary.
func (WordTokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	count := 0
	cut := 0
	for _, loc := range wordRegex.FindAllStringIndex(text, -1) {
		off := loc[0]
		for _, part := range splitIdentifier(text[loc[0]:loc[1]]) {
			if count == maxTokens {
				return text[:cut]
			}
			off += strings.Index(text[off:loc[1]], part) + len(part)
			cut = off
			count++
		}
	}
	return text
}

// splitWords performs the same camelCase/snake_case decomposition the
// lexical tokenizer uses, so token counts here are consistent with what
// actually gets indexed.
func splitWords(text string) []string {
	var tokens []string
	for _, word := range wordRegex.FindAllString(text, -1) {
		tokens = append(tokens, splitIdentifier(word)...)
	}
	return tokens
}

func splitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && isUpper(r) {
			prevLower := isLower(runes[i-1])
			nextLower := i+1 < len(runes) && isLower(runes[i+1])
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

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
