package fusion

import (
	"math"
	"strings"
	"unicode"

	"github.com/tessera-health/tessera/internal/model"
)

// Severity and resolution constants for the two active detectors.
// Recommendation conflicts carry a fixed severity — the keyword clusters
// give no finer gradation. Confidence disparity uses the raw delta.
const (
	recommendationSeverity    = 0.7
	recommendationResolveConf = 0.75
	disparityThreshold        = 0.3
	disparityResolveConf      = 0.9
	disparityResolutionMethod = string(model.PolicyConfidenceWeighted)
)

// clusterPair is one table entry of opposing recommendation keyword clusters.
// A pair of insights conflicts when one side's recommendations contain a
// term from left and the other side's contain a term from right.
type clusterPair struct {
	left  []string
	right []string
}

var opposingClusters = []clusterPair{
	{left: []string{"increase", "more", "higher"}, right: []string{"decrease", "less", "lower"}},
	{left: []string{"avoid", "stop", "reduce"}, right: []string{"continue", "maintain", "increase"}},
	{left: []string{"rest", "recovery"}, right: []string{"intense", "high-intensity", "push"}},
	{left: []string{"carbohydrate-forward", "carb-loading"}, right: []string{"low-carb", "keto"}},
}

// analyzeConflicts pairwise-compares the filtered batch with two independent
// detectors: opposing recommendation keywords and confidence disparity.
// Inputs are never mutated; the returned slice may be empty.
func analyzeConflicts(insights []model.AgentInsight, policy model.ConflictPolicy) []model.ConflictAnalysis {
	var conflicts []model.ConflictAnalysis
	for i := 0; i < len(insights); i++ {
		for j := i + 1; j < len(insights); j++ {
			a, b := insights[i], insights[j]

			if recommendationsOppose(a.Recommendations, b.Recommendations) {
				conflicts = append(conflicts, model.ConflictAnalysis{
					Kind:                 model.ConflictRecommendation,
					AgentA:               a.Agent,
					AgentB:               b.Agent,
					Severity:             recommendationSeverity,
					ResolutionMethod:     string(policy),
					ResolutionConfidence: recommendationResolveConf,
					Domains:              pairDomains(a.Agent, b.Agent),
				})
			}

			if gap := math.Abs(a.Confidence - b.Confidence); gap > disparityThreshold {
				conflicts = append(conflicts, model.ConflictAnalysis{
					Kind:                 model.ConflictConfidenceGap,
					AgentA:               a.Agent,
					AgentB:               b.Agent,
					Severity:             gap,
					ResolutionMethod:     disparityResolutionMethod,
					ResolutionConfidence: disparityResolveConf,
					Domains:              pairDomains(a.Agent, b.Agent),
				})
			}
		}
	}
	return conflicts
}

// recommendationsOppose reports whether any opposing cluster pair is hit,
// in either direction, by the two recommendation sets.
func recommendationsOppose(recsA, recsB []string) bool {
	tokensA := tokenizeRecommendations(recsA)
	tokensB := tokenizeRecommendations(recsB)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return false
	}
	for _, cp := range opposingClusters {
		hitAL, hitAR := containsAny(tokensA, cp.left), containsAny(tokensA, cp.right)
		hitBL, hitBR := containsAny(tokensB, cp.left), containsAny(tokensB, cp.right)
		if (hitAL && hitBR) || (hitAR && hitBL) {
			return true
		}
	}
	return false
}

// tokenizeRecommendations lowercases and splits recommendation strings into
// word tokens. Hyphens are kept so compound terms like "high-intensity" and
// "low-carb" survive as single tokens.
func tokenizeRecommendations(recs []string) map[string]bool {
	tokens := make(map[string]bool)
	for _, rec := range recs {
		fields := strings.FieldsFunc(strings.ToLower(rec), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
		})
		for _, f := range fields {
			tokens[strings.Trim(f, "-")] = true
		}
	}
	return tokens
}

func containsAny(tokens map[string]bool, terms []string) bool {
	for _, t := range terms {
		if tokens[t] {
			return true
		}
	}
	return false
}

// pairDomains returns the distinct domains of the two producers involved.
func pairDomains(a, b model.AgentRole) []string {
	da, db := a.Domain(), b.Domain()
	if da == db {
		return []string{da}
	}
	return []string{da, db}
}

// conflictIndicators reduces a conflict list to its kind strings, in order.
func conflictIndicators(conflicts []model.ConflictAnalysis) []string {
	indicators := make([]string, len(conflicts))
	for i, c := range conflicts {
		indicators[i] = string(c.Kind)
	}
	return indicators
}
