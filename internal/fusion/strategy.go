package fusion

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/tessera-health/tessera/internal/model"
)

// noInsightsText is the degraded unified content produced when every input
// insight was filtered out. Downstream components still run against the
// empty batch; only a zero-length original batch is an error.
const noInsightsText = "No insights available for fusion: all inputs were below the confidence threshold, outside the temporal window, or outside the domain focus."

// executeStrategy renders unified text for the filtered batch using the
// context's strategy. Dispatch is a closed switch over the strategy enum;
// ParseFusionStrategy has already mapped unknown names to weighted_average,
// so selection never fails.
func executeStrategy(insights []model.AgentInsight, fctx model.FusionContext) string {
	if len(insights) == 0 {
		return noInsightsText
	}
	switch fctx.Strategy {
	case model.StrategyConsensus:
		return consensusFusion(insights)
	case model.StrategyExpertPriority:
		return expertPriorityFusion(insights, fctx.DomainFocus)
	case model.StrategyConfidenceTiered:
		return confidenceTieredFusion(insights)
	default:
		return weightedAverageFusion(insights)
	}
}

// weightedAverageFusion lists each producer's contribution percentage
// (confidence over the batch's confidence sum) alongside its content,
// closing with a synthesis note over the contributing domains.
func weightedAverageFusion(insights []model.AgentInsight) string {
	var total float64
	for _, in := range insights {
		total += in.Confidence
	}

	var b strings.Builder
	b.WriteString("Weighted synthesis of specialist analyses:\n")
	for _, in := range insights {
		weight := 1.0 / float64(len(insights))
		if total > 0 {
			weight = in.Confidence / total
		}
		fmt.Fprintf(&b, "- %s (%.0f%% weight): %s\n", in.Agent, weight*100, in.Content)
	}

	domains := distinctDomains(insights)
	fmt.Fprintf(&b, "Combined view synthesized across %d domain(s): %s.", len(domains), strings.Join(domains, ", "))
	return b.String()
}

// consensusFusion surfaces themes shared by at least 60% of the batch,
// then lists each insight's raw content. A theme is a word longer than four
// characters appearing in at least two insights' text (case-insensitive
// whole-word match).
func consensusFusion(insights []model.AgentInsight) string {
	counts := make(map[string]int)
	for _, in := range insights {
		for word := range contentWords(in.Content) {
			counts[word]++
		}
	}

	quorum := int(math.Ceil(0.6 * float64(len(insights))))
	if quorum < 2 {
		quorum = 2
	}
	var themes []string
	for word, n := range counts {
		if n >= quorum {
			themes = append(themes, word)
		}
	}
	sort.Strings(themes)

	var b strings.Builder
	if len(themes) > 0 {
		fmt.Fprintf(&b, "Consensus themes across analyses: %s.\n", strings.Join(themes, ", "))
	} else {
		b.WriteString("No dominant consensus themes detected across analyses.\n")
	}
	b.WriteString("Contributing analyses:\n")
	for _, in := range insights {
		fmt.Fprintf(&b, "- %s: %s\n", in.Agent, in.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// expertPriorityFusion ranks insights by relevance x confidence, where
// relevance is 1.0 for producers whose domain matches the focus and 0.7
// otherwise. The top-ranked insight leads; the rest are complementary.
func expertPriorityFusion(insights []model.AgentInsight, domainFocus string) string {
	type ranked struct {
		insight model.AgentInsight
		score   float64
	}
	rankedInsights := make([]ranked, len(insights))
	for i, in := range insights {
		relevance := 0.7
		if domainFocus != "" && in.Agent.Domain() == domainFocus {
			relevance = 1.0
		}
		rankedInsights[i] = ranked{insight: in, score: relevance * in.Confidence}
	}
	sort.SliceStable(rankedInsights, func(i, j int) bool {
		return rankedInsights[i].score > rankedInsights[j].score
	})

	var b strings.Builder
	primary := rankedInsights[0].insight
	fmt.Fprintf(&b, "Primary perspective (%s, %s): %s", primary.Agent, primary.Agent.Domain(), primary.Content)
	if len(rankedInsights) > 1 {
		b.WriteString("\nComplementary perspectives:")
		for _, r := range rankedInsights[1:] {
			fmt.Fprintf(&b, "\n- %s: %s", r.insight.Agent, r.insight.Content)
		}
	}
	return b.String()
}

// confidenceTieredFusion buckets the batch into high (>=0.8),
// medium ([0.6,0.8)) and low (<0.6) confidence bands and renders each
// non-empty band as a labeled section, highest first.
func confidenceTieredFusion(insights []model.AgentInsight) string {
	var high, medium, low []model.AgentInsight
	for _, in := range insights {
		switch {
		case in.Confidence >= 0.8:
			high = append(high, in)
		case in.Confidence >= 0.6:
			medium = append(medium, in)
		default:
			low = append(low, in)
		}
	}

	var b strings.Builder
	writeBand := func(label string, band []model.AgentInsight) {
		if len(band) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s:", label)
		for _, in := range band {
			fmt.Fprintf(&b, "\n- %s (%.2f): %s", in.Agent, in.Confidence, in.Content)
		}
	}
	writeBand("High confidence findings", high)
	writeBand("Moderate confidence findings", medium)
	writeBand("Preliminary observations", low)
	return b.String()
}

// contentWords extracts the lowercase whole words longer than four
// characters from a content string.
func contentWords(content string) map[string]bool {
	words := make(map[string]bool)
	fields := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if len(f) > 4 {
			words[f] = true
		}
	}
	return words
}

// distinctDomains returns the distinct producer domains in batch order.
func distinctDomains(insights []model.AgentInsight) []string {
	seen := make(map[string]bool, len(insights))
	var domains []string
	for _, in := range insights {
		d := in.Agent.Domain()
		if !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	return domains
}
