package vector

import (
	"math"
	"sync"
)

// nativeDotFunc is the signature of a hardware-accelerated dot product
// kernel, bound at construction time via purego. Rows and the query must
// share the same length.
type nativeDotFunc func(a, b []float32) float32

// GPUEngine wraps a CPUEngine as the canonical host-side store and keeps a
// second, device-shaped copy of the matrix that is only resynced lazily:
// mutations mark a dirty row range, and Search copies just that range
// before scoring (spec §4.E.3 "lazy dirty-range sync"). When dim is a
// multiple of 4, scoring uses a 4-wide unrolled fast path; otherwise it
// falls back to the plain dot product, same as CPUEngine.
//
// On platforms where no native kernel could be bound (see newNativeDot),
// GPUEngine still performs the dirty-range bookkeeping but scores with the
// same Go arithmetic CPUEngine uses — the dirty-range discipline is kept
// uniform even when there's no hardware to benefit from it, so selection
// logic (select.go) doesn't need a third code path.
type GPUEngine struct {
	mu   sync.Mutex
	host *CPUEngine

	device             []float32
	deviceCapacityRows int
	deviceRows         int

	dirty      bool
	dirtyStart int

	nativeDot nativeDotFunc
}

// NewGPUEngine returns a GPU-backed engine for the given dimension. If a
// native kernel cannot be bound on this platform, dot products fall back
// to plain Go arithmetic (still SIMD-4 unrolled when dim%4==0).
func NewGPUEngine(dim uint32, similarity Similarity) *GPUEngine {
	return &GPUEngine{
		host:      NewCPUEngine(dim, similarity),
		nativeDot: newNativeDot(),
	}
}

func (e *GPUEngine) Add(frameID uint64, vec []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.host.Add(frameID, vec); err != nil {
		return err
	}
	e.markDirtyFromLocked(0)
	return nil
}

func (e *GPUEngine) AddBatch(frameIDs []uint64, vectors [][]float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.host.AddBatch(frameIDs, vectors); err != nil {
		return err
	}
	e.markDirtyFromLocked(0)
	return nil
}

func (e *GPUEngine) Remove(frameID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.host.Remove(frameID); err != nil {
		return err
	}
	e.markDirtyFromLocked(0)
	return nil
}

// markDirtyFromLocked records that rows from `from` onward in the device
// buffer no longer match the host. Swap-remove and append can both move
// rows anywhere in [0, host.Count()), so callers pass the conservative
// lower bound; in practice that's always 0 given the current mutation
// shapes, but the field exists so a future incremental-append path can
// narrow it without touching Search.
func (e *GPUEngine) markDirtyFromLocked(from int) {
	if !e.dirty || from < e.dirtyStart {
		e.dirtyStart = from
	}
	e.dirty = true
}

func (e *GPUEngine) syncLocked() {
	if !e.dirty {
		return
	}
	e.host.mu.RLock()
	defer e.host.mu.RUnlock()

	rows := len(e.host.frameIDs)
	dim := int(e.host.dim)
	e.ensureCapacityLocked(rows)
	copy(e.device[e.dirtyStart*dim:rows*dim], e.host.data[e.dirtyStart*dim:rows*dim])
	e.deviceRows = rows
	e.dirty = false
	e.dirtyStart = 0
}

// ensureCapacityLocked grows the device buffer by doubling, never
// shrinking, so repeated small appends don't cause repeated reallocation.
func (e *GPUEngine) ensureCapacityLocked(rows int) {
	if rows <= e.deviceCapacityRows {
		return
	}
	newCap := e.deviceCapacityRows * 2
	if newCap < rows {
		newCap = rows
	}
	if newCap < 16 {
		newCap = 16
	}
	dim := int(e.host.dim)
	grown := make([]float32, newCap*dim)
	copy(grown, e.device)
	e.device = grown
	e.deviceCapacityRows = newCap
}

func (e *GPUEngine) Search(query []float32, topK int) ([]ScoredFrame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncLocked()

	e.host.mu.RLock()
	frameIDs := e.host.frameIDs
	dim := int(e.host.dim)
	e.host.mu.RUnlock()

	if uint32(len(query)) != e.host.dim {
		return nil, errDimensionMismatch(uint32(len(query)), e.host.dim)
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if topK <= 0 || len(frameIDs) == 0 {
		return nil, nil
	}

	heap := newTopKHeap(topK)
	for row, id := range frameIDs {
		vec := e.device[row*dim : (row+1)*dim]
		var score float32
		if e.nativeDot != nil {
			score = e.nativeDot(vec, query)
		} else if dim%4 == 0 {
			score = dotProductSIMD4(vec, query)
		} else {
			score = dotProduct(vec, query)
		}
		heap.offer(id, score)
	}
	return heap.sorted(), nil
}

func (e *GPUEngine) Serialize() ([]byte, error) { return e.host.Serialize() }

func (e *GPUEngine) Load(blob []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.host.Load(blob); err != nil {
		return err
	}
	e.device = nil
	e.deviceCapacityRows = 0
	e.deviceRows = 0
	e.markDirtyFromLocked(0)
	return nil
}

func (e *GPUEngine) Count() int        { return e.host.Count() }
func (e *GPUEngine) Dimension() uint32 { return e.host.Dimension() }

// dotProductSIMD4 unrolls the dot product four lanes at a time. It is not
// an actual SIMD intrinsic (Go has none in pure form) but keeps the same
// memory-access pattern a vectorizing compiler or a native kernel would
// use, and is what newNativeDot falls back to when binding fails.
func dotProductSIMD4(a, b []float32) float32 {
	n := len(a)
	i := 0
	var sum0, sum1, sum2, sum3 float32
	for ; i+4 <= n; i += 4 {
		sum0 += a[i] * b[i]
		sum1 += a[i+1] * b[i+1]
		sum2 += a[i+2] * b[i+2]
		sum3 += a[i+3] * b[i+3]
	}
	sum := sum0 + sum1 + sum2 + sum3
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// normalizeInPlace L2-normalizes vec, used by callers that opt into cosine
// similarity via the dot-product kernel.
func normalizeInPlace(vec []float32) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= inv
	}
}
