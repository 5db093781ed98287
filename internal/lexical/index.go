package lexical

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Result is one scored lexical search hit (spec §4.F "search").
type Result struct {
	FrameID      uint64
	Score        float64
	MatchedTerms []string
}

// Index is the mutable inverted index: term -> posting bitmap of frame
// ids, plus the per-(term,frame) frequency table BM25 scoring needs. It
// satisfies internal/commit.LexicalIndex structurally.
type Index struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	analyzer *analyzer

	postings  map[string]*roaring64.Bitmap
	termFreq  map[string]map[uint64]uint32
	docTerms  map[uint64][]string
	docLength map[uint64]int

	totalTokens uint64

	// readOnly is set on an mmap-backed Index; all mutating calls fail.
	readOnly bool
}

// New returns an empty mutable index.
func New(k1, b float64, stopWords []string) *Index {
	return &Index{
		k1:        k1,
		b:         b,
		analyzer:  newAnalyzer(stopWords),
		postings:  make(map[string]*roaring64.Bitmap),
		termFreq:  make(map[string]map[uint64]uint32),
		docTerms:  make(map[uint64][]string),
		docLength: make(map[uint64]int),
	}
}

// ErrReadOnly is returned by any mutating call on an mmap-backed index.
var ErrReadOnly = fmt.Errorf("lexical: index is read-only (mmap-backed)")

// IndexFrame tokenizes text and inserts its postings, replacing any
// previous postings for frameID (spec §4.F "index").
func (ix *Index) IndexFrame(frameID uint64, text string) error {
	if ix.readOnly {
		return ErrReadOnly
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(frameID)

	terms := ix.analyzer.terms(text)
	if len(terms) == 0 {
		return nil
	}

	freq := make(map[string]uint32, len(terms))
	for _, t := range terms {
		freq[t]++
	}

	distinct := make([]string, 0, len(freq))
	for term, count := range freq {
		bm, ok := ix.postings[term]
		if !ok {
			bm = roaring64.New()
			ix.postings[term] = bm
		}
		bm.Add(frameID)

		tf, ok := ix.termFreq[term]
		if !ok {
			tf = make(map[uint64]uint32)
			ix.termFreq[term] = tf
		}
		tf[frameID] = count
		distinct = append(distinct, term)
	}

	ix.docTerms[frameID] = distinct
	ix.docLength[frameID] = len(terms)
	ix.totalTokens += uint64(len(terms))
	return nil
}

// RemoveFrame tombstones frameID's postings (spec §4.F "remove").
func (ix *Index) RemoveFrame(frameID uint64) error {
	if ix.readOnly {
		return ErrReadOnly
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(frameID)
	return nil
}

func (ix *Index) removeLocked(frameID uint64) {
	terms, ok := ix.docTerms[frameID]
	if !ok {
		return
	}
	for _, term := range terms {
		if bm, ok := ix.postings[term]; ok {
			bm.Remove(frameID)
			if bm.IsEmpty() {
				delete(ix.postings, term)
			}
		}
		if tf, ok := ix.termFreq[term]; ok {
			delete(tf, frameID)
			if len(tf) == 0 {
				delete(ix.termFreq, term)
			}
		}
	}
	ix.totalTokens -= uint64(ix.docLength[frameID])
	delete(ix.docTerms, frameID)
	delete(ix.docLength, frameID)
}

// DocCount returns the number of indexed (non-tombstoned) frames.
func (ix *Index) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docLength)
}

// Search scores query against current postings with BM25 (spec §4.F
// "search"), returning the topK highest-scoring frames, ties broken by
// ascending frame_id.
func (ix *Index) Search(query string, topK int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if topK <= 0 || len(ix.docLength) == 0 {
		return nil, nil
	}

	terms := dedupe(ix.analyzer.terms(query))
	if len(terms) == 0 {
		return nil, nil
	}

	n := float64(len(ix.docLength))
	avgDocLen := float64(ix.totalTokens) / n

	scores := make(map[uint64]float64)
	matched := make(map[uint64][]string)

	for _, term := range terms {
		bm, ok := ix.postings[term]
		if !ok {
			continue
		}
		df := float64(bm.GetCardinality())
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		tf := ix.termFreq[term]
		for _, frameID := range bm.ToArray() {
			freq := float64(tf[frameID])
			dl := float64(ix.docLength[frameID])
			denom := freq + ix.k1*(1-ix.b+ix.b*dl/avgDocLen)
			if denom == 0 {
				continue
			}
			scores[frameID] += idf * (freq * (ix.k1 + 1)) / denom
			matched[frameID] = append(matched[frameID], term)
		}
	}

	results := make([]Result, 0, len(scores))
	for frameID, score := range scores {
		results = append(results, Result{FrameID: frameID, Score: score, MatchedTerms: matched[frameID]})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].FrameID < results[j].FrameID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
