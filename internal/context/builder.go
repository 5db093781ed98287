package ragcontext

import (
	"context"
	"time"

	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/provider"
	"github.com/Aman-CERP/ragarchive/internal/search"
)

// microTierDivisor shrinks a surrogate's token budget for the micro tier
// relative to SurrogateMaxTokens; gist uses the full budget, micro a
// fraction of it.
const microTierDivisor = 4

// FrameReader is the subset of *frame.FrameStore the builder needs: frame
// metadata and lazily-loaded payload text. Declared locally so builder.go
// doesn't import a wider surface than it uses.
type FrameReader interface {
	FrameMeta(id uint64) (*frame.Frame, error)
	FrameContent(id uint64) ([]byte, error)
}

// Builder assembles bounded context from unified search results (spec
// §4.H). Tier and GistExtractor are optional; a nil GistExtractor falls
// back to naive truncation for every surrogate.
type Builder struct {
	Searcher *search.Searcher
	Frames   FrameReader
	Tokens   provider.TokenCounter
	Tier     TierSelector
	Gist     *GistExtractor
	Access   *AccessTracker

	// Now returns the current time in epoch ms; overridable for tests. A
	// Config's non-zero DeterministicNowMs takes precedence over it, and a
	// nil Now falls back to the wall clock.
	Now func() uint64
}

// Build runs the deterministic greedy assembly algorithm.
func (b *Builder) Build(ctx context.Context, cfg Config, req Request) (*Result, error) {
	nowMs := cfg.DeterministicNowMs
	if nowMs == 0 {
		if b.Now != nil {
			nowMs = b.Now()
		} else {
			nowMs = uint64(time.Now().UnixMilli())
		}
	}

	hits, err := b.Searcher.Search(ctx, search.Request{
		Mode:           cfg.SearchMode,
		QueryText:      req.QueryText,
		QueryEmbedding: req.QueryEmbedding,
		TopK:           cfg.SearchTopK,
		Alpha:          req.Alpha,
		Filter:         req.Filter,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{}
	surrogatesUsed := 0

	for _, hit := range hits {
		if cfg.MaxSnippets > 0 && len(res.Items) >= cfg.MaxSnippets {
			break
		}

		meta, err := b.Frames.FrameMeta(hit.FrameID)
		if err != nil || !meta.Searchable() {
			continue
		}

		content, err := b.Frames.FrameContent(hit.FrameID)
		if err != nil {
			continue
		}
		raw := string(content)
		if cfg.Mode == ModeDenseCached && cfg.ExpansionMaxTokens > 0 {
			raw = b.Tokens.Truncate(raw, cfg.ExpansionMaxTokens)
		}
		snippet := b.Tokens.Truncate(raw, cfg.SnippetMaxTokens)
		snippetTokens := b.Tokens.Count(snippet)

		item := Item{
			FrameID:       hit.FrameID,
			Score:         hit.Score,
			Snippet:       snippet,
			SnippetTokens: snippetTokens,
		}

		addedTokens := snippetTokens

		if cfg.Mode == ModeDenseCached && meta.Role == frame.RoleChunk && meta.ParentID != 0 &&
			(cfg.MaxSurrogates <= 0 || surrogatesUsed < cfg.MaxSurrogates) {
			if surrogate, ok := b.buildSurrogate(ctx, cfg, meta.ParentID, nowMs); ok {
				item.HasSurrogate = true
				item.ParentID = meta.ParentID
				item.SurrogateTier = surrogate.tier
				item.Surrogate = surrogate.text
				item.SurrogateTokens = surrogate.tokens
				addedTokens += surrogate.tokens
				surrogatesUsed++
			}
		}

		if cfg.MaxContextTokens > 0 && res.TotalTokens+addedTokens > cfg.MaxContextTokens {
			res.Truncated = true
			break
		}

		res.Items = append(res.Items, item)
		res.TotalTokens += addedTokens

		if b.Access != nil {
			b.Access.Record(hit.FrameID, nowMs)
			if item.HasSurrogate {
				b.Access.Record(item.ParentID, nowMs)
			}
		}
	}

	return res, nil
}

type surrogateResult struct {
	tier   Tier
	text   string
	tokens int
}

// buildSurrogate loads parentID's content and renders it at the tier the
// builder's TierSelector picks, bounded by SurrogateMaxTokens.
func (b *Builder) buildSurrogate(ctx context.Context, cfg Config, parentID uint64, nowMs uint64) (surrogateResult, bool) {
	parentMeta, err := b.Frames.FrameMeta(parentID)
	if err != nil || !parentMeta.Searchable() {
		return surrogateResult{}, false
	}
	content, err := b.Frames.FrameContent(parentID)
	if err != nil || len(content) == 0 {
		return surrogateResult{}, false
	}

	tier := TierFull
	if b.Tier != nil {
		access := AccessStats{}
		if b.Access != nil {
			access = b.Access.Stats(parentID)
		}
		tier = b.Tier.Select(parentMeta, nowMs, access)
	}

	budget := cfg.SurrogateMaxTokens
	var text string
	switch tier {
	case TierGist:
		if b.Gist != nil && b.Gist.SupportsKind(parentMeta.Kind) {
			if gist := b.Gist.Extract(ctx, parentMeta.Kind, content); gist != "" {
				text = b.Tokens.Truncate(gist, budget)
				break
			}
		}
		text = b.Tokens.Truncate(string(content), budget)
	case TierMicro:
		microBudget := budget / microTierDivisor
		if microBudget <= 0 {
			microBudget = 1
		}
		text = b.Tokens.Truncate(string(content), microBudget)
	default: // TierFull
		text = b.Tokens.Truncate(string(content), budget)
	}

	return surrogateResult{tier: tier, text: text, tokens: b.Tokens.Count(text)}, true
}
