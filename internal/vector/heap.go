package vector

// topKHeap is a fixed-capacity min-heap keyed by score (on a score tie the
// higher frame_id is the smaller element), used to find the
// top-K highest-scoring rows in one linear pass (spec §4.E.1 "min-heap of
// size k ... sift-up on insert and sift-down on replace ... O(n log k)").
type topKHeap struct {
	items []ScoredFrame
	cap   int
}

func newTopKHeap(k int) *topKHeap {
	return &topKHeap{items: make([]ScoredFrame, 0, k), cap: k}
}

// offer inserts (frameID, score) if it belongs in the current top-K,
// evicting the current minimum when the heap is already full.
func (h *topKHeap) offer(frameID uint64, score float32) {
	if len(h.items) < h.cap {
		h.items = append(h.items, ScoredFrame{FrameID: frameID, Score: score})
		h.siftUp(len(h.items) - 1)
		return
	}
	if h.cap == 0 {
		return
	}
	candidate := ScoredFrame{FrameID: frameID, Score: score}
	if !less(candidate, h.items[0]) {
		return
	}
	h.items[0] = candidate
	h.siftDown(0)
}

func (h *topKHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !less(h.items[parent], h.items[i]) {
			break
		}
		h.items[parent], h.items[i] = h.items[i], h.items[parent]
		i = parent
	}
}

func (h *topKHeap) siftDown(i int) {
	n := len(h.items)
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < n && less(h.items[smallest], h.items[left]) {
			smallest = left
		}
		if right < n && less(h.items[smallest], h.items[right]) {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// sorted returns the heap's contents ordered by descending score, with a
// deterministic ascending-frame_id tie-break (spec §4.E.1).
func (h *topKHeap) sorted() []ScoredFrame {
	out := make([]ScoredFrame, len(h.items))
	copy(out, h.items)
	// Simple insertion sort: k is bounded (MaxTopK), and this runs once per
	// search after the O(n log k) heap pass, so an O(k^2) worst case here
	// is not the dominant cost.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// less reports whether a should sort before b: higher score first, then
// lower frame_id on a tie.
func less(a, b ScoredFrame) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.FrameID < b.FrameID
}
