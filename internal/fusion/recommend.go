package fusion

import (
	"fmt"

	"github.com/tessera-health/tessera/internal/model"
)

// maxSpecificRecommendations caps the deduplicated per-producer
// recommendations carried into the fused result.
const maxSpecificRecommendations = 4

// followUpRecommendation closes every non-empty recommendation list.
const followUpRecommendation = "Monitor progress over the next week and adjust based on how your body responds."

// synthesizeRecommendations merges every filtered insight's recommendations
// into one bounded, ordered list: a priority action naming all contributing
// producers (batches of two or more), up to four deduplicated specifics,
// then a fixed follow-up.
func synthesizeRecommendations(insights []model.AgentInsight) []string {
	if len(insights) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var specifics []string
	for _, in := range insights {
		for _, rec := range in.Recommendations {
			if rec == "" || seen[rec] {
				continue
			}
			seen[rec] = true
			specifics = append(specifics, rec)
		}
	}
	if len(specifics) > maxSpecificRecommendations {
		specifics = specifics[:maxSpecificRecommendations]
	}

	var out []string
	if len(insights) >= 2 {
		out = append(out, fmt.Sprintf(
			"Priority action: coordinate the guidance from %s into a single plan before changing your routine.",
			joinAgents(contributingAgents(insights))))
	}
	out = append(out, specifics...)
	out = append(out, followUpRecommendation)
	return out
}
