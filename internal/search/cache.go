package search

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/ragarchive/internal/lexical"
	"github.com/Aman-CERP/ragarchive/internal/vector"
)

// TextSourceKey is the tagged union from spec §4.G.1 identifying what a
// cached text engine is backed by.
type TextSourceKey struct {
	Kind     string // "empty" | "committed" | "staged"
	Checksum uint64
	Stamp    uint64
}

func (k TextSourceKey) cacheKey() string {
	return fmt.Sprintf("text:%s:%d:%d", k.Kind, k.Checksum, k.Stamp)
}

// VectorSourceKey is the tagged union from spec §4.G.1 identifying what a
// cached vector engine is backed by.
type VectorSourceKey struct {
	Kind       string // "none" | "pending_only" | "committed" | "staged"
	Checksum   uint64
	Stamp      uint64
	Dimensions uint32
	EngineKind vector.EngineKind
}

func (k VectorSourceKey) cacheKey() string {
	return fmt.Sprintf("vec:%s:%d:%d:%d:%d", k.Kind, k.Checksum, k.Stamp, k.Dimensions, k.EngineKind)
}

// Entry is one materialized (lexical, vector) engine pair, tagged with the
// source keys it was built from and a watermark for incremental pending
// embedding application.
type Entry struct {
	TextKey             TextSourceKey
	VectorKey           VectorSourceKey
	Lexical             *lexical.Index
	Vector              vector.Engine
	LastPendingSequence uint64
}

// EngineCache holds the most recently materialized engine pair per
// archive identity (spec §4.G.1). Concurrent cache misses for the same
// key materialize the engine exactly once via singleflight.
type EngineCache struct {
	entries *lru.Cache[string, *Entry]
	group   singleflight.Group
}

// NewEngineCache returns a cache holding up to size archive identities.
func NewEngineCache(size int) (*EngineCache, error) {
	if size <= 0 {
		size = 64
	}
	c, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, fmt.Errorf("search: new engine cache: %w", err)
	}
	return &EngineCache{entries: c}, nil
}

// materializeFunc builds a fresh Entry for a cache miss.
type materializeFunc func() (*Entry, error)

// Resolve returns the cached entry for archiveID if its source keys still
// match; otherwise it materializes a fresh one via fn, deduplicating
// concurrent misses for the same archiveID.
func (c *EngineCache) Resolve(archiveID string, textKey TextSourceKey, vecKey VectorSourceKey, fn materializeFunc) (*Entry, error) {
	key := archiveID + "|" + textKey.cacheKey() + "|" + vecKey.cacheKey()

	if e, ok := c.entries.Get(key); ok {
		return e, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if e, ok := c.entries.Get(key); ok {
			return e, nil
		}
		e, err := fn()
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// Invalidate drops any cached entry across all keys previously resolved
// for archiveID's prefix. Used when a writer commit is observed so the
// next Resolve re-derives the source key rather than trusting a stale
// in-memory entry until its next natural eviction.
func (c *EngineCache) Invalidate(archiveID string) {
	for _, key := range c.entries.Keys() {
		if len(key) >= len(archiveID) && key[:len(archiveID)] == archiveID {
			c.entries.Remove(key)
		}
	}
}
