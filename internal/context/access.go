package ragcontext

import "sync"

// AccessStats is a frame's access_count/last_access_ms pair, per §3's note
// on metadata keys the importance tier policy reads.
type AccessStats struct {
	AccessCount  uint64
	LastAccessMs uint64
}

// AccessTracker records per-frame access stats opportunistically as the
// context builder includes frames. It is in-memory only: a best-effort
// heuristic input to tier selection, never a correctness-bearing record, so
// it is never persisted and never blocks assembly.
type AccessTracker struct {
	mu   sync.Mutex
	byID map[uint64]AccessStats
}

// NewAccessTracker returns an empty tracker.
func NewAccessTracker() *AccessTracker {
	return &AccessTracker{byID: make(map[uint64]AccessStats)}
}

// Record bumps frameID's access count and last-access timestamp.
func (t *AccessTracker) Record(frameID uint64, nowMs uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.byID[frameID]
	s.AccessCount++
	s.LastAccessMs = nowMs
	t.byID[frameID] = s
}

// Stats returns the current stats for frameID, the zero value if never
// recorded.
func (t *AccessTracker) Stats(frameID uint64) AccessStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byID[frameID]
}
