package vector

import (
	"sort"
	"sync"
)

// CPUEngine is the baseline flat-matrix engine (spec §4.E.2): a
// contiguous row-major float32 matrix of shape [count x dim], a parallel
// frame_id array, and a frame_id -> row map. Used whenever the GPU engine
// is unavailable or the workload exceeds its auto-thresholds.
type CPUEngine struct {
	mu sync.RWMutex

	dim        uint32
	similarity Similarity

	data     []float32 // row-major, len == count*dim
	frameIDs []uint64  // len == count
	idToRow  map[uint64]int
}

// NewCPUEngine returns an empty engine for vectors of the given dimension.
func NewCPUEngine(dim uint32, similarity Similarity) *CPUEngine {
	return &CPUEngine{dim: dim, similarity: similarity, idToRow: make(map[uint64]int)}
}

// Add inserts or overwrites frameID's row (spec §4.E.1 "O(1) amortized; if
// frame_id exists, overwrite row; else append").
func (e *CPUEngine) Add(frameID uint64, vec []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked(frameID, vec)
}

func (e *CPUEngine) addLocked(frameID uint64, vec []float32) error {
	if e.dim == 0 {
		e.dim = uint32(len(vec))
	}
	if uint32(len(vec)) != e.dim {
		return errDimensionMismatch(uint32(len(vec)), e.dim)
	}

	if row, ok := e.idToRow[frameID]; ok {
		copy(e.data[row*int(e.dim):(row+1)*int(e.dim)], vec)
		return nil
	}

	row := len(e.frameIDs)
	e.data = append(e.data, vec...)
	e.frameIDs = append(e.frameIDs, frameID)
	e.idToRow[frameID] = row
	return nil
}

// AddBatch validates a uniform dimension across vectors before inserting
// each (spec §4.E.1 "group version; validates equal dimensions").
func (e *CPUEngine) AddBatch(frameIDs []uint64, vectors [][]float32) error {
	if len(frameIDs) != len(vectors) {
		return errDimensionMismatch(uint32(len(frameIDs)), uint32(len(vectors)))
	}
	dim := e.dim
	for _, v := range vectors {
		if dim == 0 {
			dim = uint32(len(v))
		}
		if uint32(len(v)) != dim {
			return errDimensionMismatch(uint32(len(v)), dim)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, id := range frameIDs {
		if err := e.addLocked(id, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

// Remove swap-removes frameID's row: the last row moves into the freed
// slot and the frame_id -> row map is updated (spec §4.E.1).
func (e *CPUEngine) Remove(frameID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	row, ok := e.idToRow[frameID]
	if !ok {
		return nil
	}
	lastRow := len(e.frameIDs) - 1
	dim := int(e.dim)

	if row != lastRow {
		copy(e.data[row*dim:(row+1)*dim], e.data[lastRow*dim:(lastRow+1)*dim])
		movedID := e.frameIDs[lastRow]
		e.frameIDs[row] = movedID
		e.idToRow[movedID] = row
	}

	e.data = e.data[:lastRow*dim]
	e.frameIDs = e.frameIDs[:lastRow]
	delete(e.idToRow, frameID)
	return nil
}

// Search returns the top-K rows by similarity to query, deterministically
// tie-broken by ascending frame_id (spec §4.E.1).
func (e *CPUEngine) Search(query []float32, topK int) ([]ScoredFrame, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.searchLocked(query, topK, e.data)
}

func (e *CPUEngine) searchLocked(query []float32, topK int, data []float32) ([]ScoredFrame, error) {
	if uint32(len(query)) != e.dim {
		return nil, errDimensionMismatch(uint32(len(query)), e.dim)
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if topK <= 0 || len(e.frameIDs) == 0 {
		return nil, nil
	}

	heap := newTopKHeap(topK)
	dim := int(e.dim)
	for row, id := range e.frameIDs {
		score := dotProduct(data[row*dim:(row+1)*dim], query)
		heap.offer(id, score)
	}
	return heap.sorted(), nil
}

// Count returns the number of rows currently stored.
func (e *CPUEngine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.frameIDs)
}

// Dimension returns the configured vector dimension.
func (e *CPUEngine) Dimension() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dim
}

// snapshotRowOrder returns the row indices sorted by frame_id, for a stable
// Serialize() output. Callers must hold e.mu.
func (e *CPUEngine) snapshotRowOrder() []int {
	order := make([]int, len(e.frameIDs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return e.frameIDs[order[i]] < e.frameIDs[order[j]] })
	return order
}

// dotProduct is the plain (non-SIMD) fallback dot product used whenever no
// native kernel is available.
func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
