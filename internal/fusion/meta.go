package fusion

import (
	"fmt"
	"strings"
	"time"

	"github.com/tessera-health/tessera/internal/model"
)

// maxMetaInsights bounds the derived higher-order observations per fusion.
const maxMetaInsights = 3

// temporalCoherenceSpan is the maximum spread between the earliest and
// latest insight for the batch to count as real-time coherent.
const temporalCoherenceSpan = 5 * time.Minute

// generateMetaInsights derives up to three observations about the insight
// set itself. Conditions are evaluated independently in priority order:
// convergence, multi-domain coverage, temporal coherence, expertise
// validation. When none fire, a single generic completion note is emitted.
func generateMetaInsights(insights []model.AgentInsight) []string {
	var meta []string

	if len(insights) >= 3 {
		meta = append(meta, fmt.Sprintf(
			"Convergent analysis: %d specialist producers independently reached aligned findings at %.0f%% average confidence.",
			len(insights), meanConfidence(insights)*100))
	}

	if domains := distinctDomains(insights); len(domains) >= 3 {
		meta = append(meta, fmt.Sprintf(
			"Multi-domain coverage: this fusion spans %s.", strings.Join(domains, ", ")))
	}

	if span, ok := generationSpan(insights); ok && span < temporalCoherenceSpan {
		meta = append(meta, "Real-time coherence: all contributing analyses were generated within a five-minute window.")
	}

	if experts := highConfidenceAgents(insights); len(experts) >= 2 {
		meta = append(meta, fmt.Sprintf(
			"Expertise validation: %s reported high-confidence findings.", joinAgents(experts)))
	}

	if len(meta) == 0 {
		return []string{"Fusion completed across the available analyses."}
	}
	if len(meta) > maxMetaInsights {
		meta = meta[:maxMetaInsights]
	}
	return meta
}

// generationSpan returns the spread between the earliest and latest
// generation timestamps. ok is false for an empty batch.
func generationSpan(insights []model.AgentInsight) (time.Duration, bool) {
	if len(insights) == 0 {
		return 0, false
	}
	earliest, latest := insights[0].GeneratedAt, insights[0].GeneratedAt
	for _, in := range insights[1:] {
		if in.GeneratedAt.Before(earliest) {
			earliest = in.GeneratedAt
		}
		if in.GeneratedAt.After(latest) {
			latest = in.GeneratedAt
		}
	}
	return latest.Sub(earliest), true
}

// highConfidenceAgents returns producers whose confidence exceeds 0.8.
func highConfidenceAgents(insights []model.AgentInsight) []model.AgentRole {
	var agents []model.AgentRole
	for _, in := range insights {
		if in.Confidence > 0.8 {
			agents = append(agents, in.Agent)
		}
	}
	return agents
}

func joinAgents(agents []model.AgentRole) string {
	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
