package fusion

import (
	"github.com/tessera-health/tessera/internal/compat"
	"github.com/tessera-health/tessera/internal/model"
)

// Scoring constants. Bonuses and penalties are capped so a large batch or a
// long conflict list cannot swamp the base confidence.
const (
	multiAgentBonusStep = 0.1
	multiAgentBonusCap  = 0.3
	conflictPenaltyStep = 0.05
	conflictPenaltyCap  = 0.2
	compatBonusFactor   = 0.5
)

// scoreConfidence combines mean confidence with a multi-producer bonus,
// a compatibility bonus and a conflict penalty, clamped to [0,1].
func scoreConfidence(insights []model.AgentInsight, conflicts []model.ConflictAnalysis, matrix *compat.Matrix) float64 {
	if len(insights) == 0 {
		return 0
	}

	base := meanConfidence(insights)

	bonus := multiAgentBonusStep * float64(len(insights)-1)
	if bonus > multiAgentBonusCap {
		bonus = multiAgentBonusCap
	}

	penalty := conflictPenaltyStep * float64(len(conflicts))
	if penalty > conflictPenaltyCap {
		penalty = conflictPenaltyCap
	}

	return clamp01(base + bonus + compatibilityBonus(insights, matrix) - penalty)
}

// compatibilityBonus rewards batches whose producers historically agree.
// The average pairwise affinity above the 0.7 default converts to a bonus;
// a batch of fewer than two insights contributes nothing.
func compatibilityBonus(insights []model.AgentInsight, matrix *compat.Matrix) float64 {
	if len(insights) < 2 {
		return 0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(insights); i++ {
		for j := i + 1; j < len(insights); j++ {
			sum += matrix.Affinity(insights[i].Agent, insights[j].Agent)
			pairs++
		}
	}
	avg := sum / float64(pairs)
	bonus := (avg - compat.DefaultAffinity) * compatBonusFactor
	if bonus < 0 {
		return 0
	}
	return bonus
}

// consensusLevel derives agreement from confidence variance: tighter
// confidences imply tighter agreement. A batch of fewer than two insights
// has nothing to disagree, so consensus is 1.0.
func consensusLevel(insights []model.AgentInsight) float64 {
	if len(insights) < 2 {
		return 1.0
	}
	mean := meanConfidence(insights)
	var variance float64
	for _, in := range insights {
		d := in.Confidence - mean
		variance += d * d
	}
	variance /= float64(len(insights))
	if variance > 1.0 {
		variance = 1.0
	}
	return 1.0 - variance
}

func meanConfidence(insights []model.AgentInsight) float64 {
	var sum float64
	for _, in := range insights {
		sum += in.Confidence
	}
	return sum / float64(len(insights))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
