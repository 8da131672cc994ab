package fusion

import (
	"time"

	"github.com/tessera-health/tessera/internal/model"
)

// filterInsights narrows the raw batch to insights that meet the context's
// confidence threshold, fall inside the temporal window, and (when a domain
// focus is set) come from a producer in that domain. Side-effect-free; the
// input slice is never modified.
func filterInsights(insights []model.AgentInsight, fctx model.FusionContext, now time.Time) []model.AgentInsight {
	filtered := make([]model.AgentInsight, 0, len(insights))
	for _, in := range insights {
		if in.Confidence < fctx.ConfidenceThreshold {
			continue
		}
		if now.Sub(in.GeneratedAt) > fctx.TemporalWindow {
			continue
		}
		if fctx.DomainFocus != "" && in.Agent.Domain() != fctx.DomainFocus {
			continue
		}
		filtered = append(filtered, in)
	}
	return filtered
}

// contributingAgents returns the producer identities of the filtered batch,
// in batch order.
func contributingAgents(insights []model.AgentInsight) []model.AgentRole {
	agents := make([]model.AgentRole, len(insights))
	for i, in := range insights {
		agents[i] = in.Agent
	}
	return agents
}

// dataSources returns the deduplicated <domain>_analysis tags inferred from
// the contributing producers, in first-seen order.
func dataSources(insights []model.AgentInsight) []string {
	seen := make(map[string]bool, len(insights))
	var sources []string
	for _, in := range insights {
		tag := in.Agent.Domain() + "_analysis"
		if !seen[tag] {
			seen[tag] = true
			sources = append(sources, tag)
		}
	}
	return sources
}
