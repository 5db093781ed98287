package ragcontext

import (
	"math"

	"github.com/Aman-CERP/ragarchive/internal/config"
	"github.com/Aman-CERP/ragarchive/internal/frame"
)

const (
	msPerDay = 24 * 60 * 60 * 1000
)

// AgeOnlyThresholds configures the age_only tier policy.
type AgeOnlyThresholds struct {
	RecentDays int
	OldDays    int
}

// ImportanceThresholds configures the importance tier policy.
type ImportanceThresholds struct {
	FullThreshold float64
	GistThreshold float64
}

// TierSelector picks a surrogate's fidelity tier (spec §4.H "tier selection
// for surrogates"). nowMs is the caller's deterministic or wall-clock "now".
type TierSelector interface {
	Select(meta *frame.Frame, nowMs uint64, access AccessStats) Tier
}

// NewTierSelector builds the selector named by policy from the given
// age_only and importance thresholds; any other policy yields the disabled
// selector.
func NewTierSelector(policy config.TierPolicy, age AgeOnlyThresholds, importance ImportanceThresholds) TierSelector {
	switch policy {
	case config.TierAgeOnly:
		return ageOnlySelector{thresholds: age}
	case config.TierImportance:
		return importanceSelector{thresholds: importance}
	default:
		return disabledSelector{}
	}
}

// disabledSelector always returns the full tier.
type disabledSelector struct{}

func (disabledSelector) Select(*frame.Frame, uint64, AccessStats) Tier { return TierFull }

// ageOnlySelector buckets by timestamp age alone.
type ageOnlySelector struct {
	thresholds AgeOnlyThresholds
}

func (s ageOnlySelector) Select(meta *frame.Frame, nowMs uint64, _ AccessStats) Tier {
	ageDays := ageInDays(meta.TimestampMs, nowMs)
	switch {
	case ageDays <= float64(s.thresholds.RecentDays):
		return TierFull
	case ageDays <= float64(s.thresholds.OldDays):
		return TierGist
	default:
		return TierMicro
	}
}

// importanceSelector weighs recency against access frequency (spec §4.H),
// taking the access count and last-access time from the AccessStats the
// builder passes in (held in memory by AccessTracker, not in frame
// metadata). A frame with no recorded access counts as zero/never, never
// an error.
type importanceSelector struct {
	thresholds ImportanceThresholds
}

func (s importanceSelector) Select(meta *frame.Frame, nowMs uint64, access AccessStats) Tier {
	score := importanceScore(meta, nowMs, access)
	switch {
	case score >= s.thresholds.FullThreshold:
		return TierFull
	case score >= s.thresholds.GistThreshold:
		return TierGist
	default:
		return TierMicro
	}
}

// importanceScore combines recency and access frequency into a single
// dimensionless figure: recencyScore decays toward zero as a frame ages,
// freqScore grows (sub-linearly) with access count.
func importanceScore(meta *frame.Frame, nowMs uint64, access AccessStats) float64 {
	ageDays := ageInDays(meta.TimestampMs, nowMs)
	recencyScore := 1.0 / (1.0 + ageDays)
	freqScore := math.Log1p(float64(access.AccessCount))
	return 0.6*recencyScore + 0.4*freqScore
}

func ageInDays(timestampMs, nowMs uint64) float64 {
	if nowMs <= timestampMs {
		return 0
	}
	return float64(nowMs-timestampMs) / msPerDay
}
