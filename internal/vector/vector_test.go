package vector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func vec(vals ...float32) []float32 { return vals }

func TestCPUEngineAddAndSearchOrdersByScoreDescending(t *testing.T) {
	e := NewCPUEngine(2, SimilarityDot)
	require.NoError(t, e.Add(1, vec(1, 0)))
	require.NoError(t, e.Add(2, vec(0, 1)))
	require.NoError(t, e.Add(3, vec(1, 1)))

	results, err := e.Search(vec(1, 1), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, uint64(3), results[0].FrameID)
}

func TestCPUEngineSearchTieBreaksByAscendingFrameID(t *testing.T) {
	e := NewCPUEngine(1, SimilarityDot)
	require.NoError(t, e.Add(5, vec(1)))
	require.NoError(t, e.Add(2, vec(1)))
	require.NoError(t, e.Add(8, vec(1)))

	results, err := e.Search(vec(1), 3)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 5, 8}, []uint64{results[0].FrameID, results[1].FrameID, results[2].FrameID})
}

func TestCPUEngineAddOverwritesExistingFrame(t *testing.T) {
	e := NewCPUEngine(1, SimilarityDot)
	require.NoError(t, e.Add(1, vec(1)))
	require.NoError(t, e.Add(1, vec(9)))
	require.Equal(t, 1, e.Count())

	results, err := e.Search(vec(1), 1)
	require.NoError(t, err)
	require.Equal(t, float32(9), results[0].Score)
}

func TestCPUEngineRemoveSwapsLastRowIntoFreedSlot(t *testing.T) {
	e := NewCPUEngine(1, SimilarityDot)
	require.NoError(t, e.Add(1, vec(1)))
	require.NoError(t, e.Add(2, vec(2)))
	require.NoError(t, e.Add(3, vec(3)))

	require.NoError(t, e.Remove(1))
	require.Equal(t, 2, e.Count())

	results, err := e.Search(vec(1), 2)
	require.NoError(t, err)
	ids := map[uint64]bool{}
	for _, r := range results {
		ids[r.FrameID] = true
	}
	require.True(t, ids[2])
	require.True(t, ids[3])
	require.False(t, ids[1])
}

func TestCPUEngineRemoveUnknownFrameIsNoop(t *testing.T) {
	e := NewCPUEngine(1, SimilarityDot)
	require.NoError(t, e.Add(1, vec(1)))
	require.NoError(t, e.Remove(404))
	require.Equal(t, 1, e.Count())
}

func TestCPUEngineAddRejectsDimensionMismatch(t *testing.T) {
	e := NewCPUEngine(2, SimilarityDot)
	err := e.Add(1, vec(1, 2, 3))
	require.Error(t, err)
}

func TestCPUEngineSearchCapsTopKAtMax(t *testing.T) {
	e := NewCPUEngine(1, SimilarityDot)
	require.NoError(t, e.Add(1, vec(1)))
	results, err := e.Search(vec(1), MaxTopK+1000)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestCPUEngineSerializeLoadRoundTrips(t *testing.T) {
	e := NewCPUEngine(3, SimilarityCosine)
	require.NoError(t, e.Add(10, vec(1, 2, 3)))
	require.NoError(t, e.Add(20, vec(4, 5, 6)))
	require.NoError(t, e.Remove(10))
	require.NoError(t, e.Add(30, vec(7, 8, 9)))

	blob, err := e.Serialize()
	require.NoError(t, err)

	loaded := NewCPUEngine(0, SimilarityDot)
	require.NoError(t, loaded.Load(blob))
	require.Equal(t, uint32(3), loaded.Dimension())
	require.Equal(t, 2, loaded.Count())

	results, err := loaded.Search(vec(7, 8, 9), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(30), results[0].FrameID)
}

func TestCPUEngineSerializeOrdersRowsByFrameID(t *testing.T) {
	e := NewCPUEngine(1, SimilarityDot)
	require.NoError(t, e.Add(9, vec(9)))
	require.NoError(t, e.Add(1, vec(1)))

	blob, err := e.Serialize()
	require.NoError(t, err)

	loaded := NewCPUEngine(0, SimilarityDot)
	require.NoError(t, loaded.Load(blob))
	require.Equal(t, []uint64{1, 9}, loaded.frameIDs)
}

func TestGPUEngineMatchesCPUEngineResults(t *testing.T) {
	cpu := NewCPUEngine(2, SimilarityDot)
	gpu := NewGPUEngine(2, SimilarityDot)

	for id, v := range map[uint64][]float32{1: {1, 0}, 2: {0, 1}, 3: {1, 1}, 4: {0.5, 0.5}} {
		require.NoError(t, cpu.Add(id, v))
		require.NoError(t, gpu.Add(id, v))
	}
	require.NoError(t, cpu.Remove(2))
	require.NoError(t, gpu.Remove(2))

	cpuResults, err := cpu.Search(vec(1, 1), 4)
	require.NoError(t, err)
	gpuResults, err := gpu.Search(vec(1, 1), 4)
	require.NoError(t, err)

	require.Equal(t, len(cpuResults), len(gpuResults))
	for i := range cpuResults {
		require.Equal(t, cpuResults[i].FrameID, gpuResults[i].FrameID)
		require.InDelta(t, cpuResults[i].Score, gpuResults[i].Score, 1e-6)
	}
}

func TestGPUEngineSerializeDelegatesToHost(t *testing.T) {
	gpu := NewGPUEngine(1, SimilarityDot)
	require.NoError(t, gpu.Add(1, vec(1)))
	blob, err := gpu.Serialize()
	require.NoError(t, err)

	loaded := NewGPUEngine(0, SimilarityDot)
	require.NoError(t, loaded.Load(blob))
	require.Equal(t, 1, loaded.Count())
}

func TestSelectionOrderCPUOnly(t *testing.T) {
	require.Equal(t, []EngineKind{EngineKindCPU}, SelectionOrder(PreferenceCPUOnly, 5, 5))
}

func TestSelectionOrderGPUPreferred(t *testing.T) {
	require.Equal(t, []EngineKind{EngineKindGPU, EngineKindCPU}, SelectionOrder(PreferenceGPUPreferred, 999999, 999))
}

func TestSelectionOrderAutoPrefersCPUWhenTopKExceedsCap(t *testing.T) {
	require.Equal(t, []EngineKind{EngineKindCPU, EngineKindGPU}, SelectionOrder(PreferenceAuto, 10, MetalAutoTopKCap+1))
}

func TestSelectionOrderAutoPrefersGPUBelowCountThreshold(t *testing.T) {
	require.Equal(t, []EngineKind{EngineKindGPU, EngineKindCPU}, SelectionOrder(PreferenceAuto, MetalAutoThreshold, 10))
}

func TestSelectionOrderAutoPrefersCPUAboveCountThreshold(t *testing.T) {
	require.Equal(t, []EngineKind{EngineKindCPU, EngineKindGPU}, SelectionOrder(PreferenceAuto, MetalAutoThreshold+1, 10))
}

func TestNewEngineConstructsRequestedKind(t *testing.T) {
	eng := NewEngine(PreferenceCPUOnly, 2, SimilarityDot, 0, 10)
	_, ok := eng.(*CPUEngine)
	require.True(t, ok)

	eng = NewEngine(PreferenceGPUPreferred, 2, SimilarityDot, 0, 10)
	_, ok = eng.(*GPUEngine)
	require.True(t, ok)
}

func TestTopKHeapDeterministicTieBreak(t *testing.T) {
	h := newTopKHeap(2)
	h.offer(5, 1.0)
	h.offer(1, 1.0)
	h.offer(9, 1.0)

	got := h.sorted()
	require.Len(t, got, 2)
	require.Equal(t, uint64(1), got[0].FrameID)
	require.Equal(t, uint64(5), got[1].FrameID)
}

func TestTopKHeapEvictsHigherFrameIDOnExactScoreTie(t *testing.T) {
	h := newTopKHeap(1)
	h.offer(2, 1.0)
	h.offer(1, 1.0)

	got := h.sorted()
	require.Len(t, got, 1)
	require.Equal(t, uint64(1), got[0].FrameID)
}

func TestTopKHeapEvictionTieBreakAgainstRoot(t *testing.T) {
	h := newTopKHeap(2)
	h.offer(5, 1.0)
	h.offer(9, 1.0)
	h.offer(1, 1.0)

	got := h.sorted()
	require.Len(t, got, 2)
	require.Equal(t, uint64(1), got[0].FrameID)
	require.Equal(t, uint64(5), got[1].FrameID)
}
