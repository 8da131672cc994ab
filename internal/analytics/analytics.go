// Package analytics derives per-user fusion statistics from the bounded
// fusion history.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-health/tessera/internal/model"
	"github.com/tessera-health/tessera/internal/store"
)

// trendLength is how many recent confidence scores the trend reports.
const trendLength = 10

// topAgentCount is how many most-used producers the summary reports.
const topAgentCount = 3

// AgentUsage is one producer's appearance count across the history.
type AgentUsage struct {
	Agent model.AgentRole `json:"agent"`
	Count int             `json:"count"`
}

// Summary is the per-user analytics read model. A user with no history gets
// the zero-valued summary (frequency buckets present, all zero).
type Summary struct {
	TotalFusions      int            `json:"total_fusions"`
	AverageConfidence float64        `json:"average_confidence"`
	ConfidenceTrend   []float64      `json:"confidence_trend"` // oldest to newest, last 10 fusions
	MostUsedAgents    []AgentUsage   `json:"most_used_agents"`
	FusionFrequency   map[string]int `json:"fusion_frequency"` // 24h, 7d, 30d buckets
	LastFusionAt      *time.Time     `json:"last_fusion_at,omitempty"`
}

// Service computes summaries over the history store.
type Service struct {
	store store.Store
}

// New creates an analytics service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// Summary computes the analytics read model for one user from the most
// recent history entries (newest first from the store).
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (Summary, error) {
	history, err := s.store.History(ctx, userID, store.HistoryCap)
	if err != nil {
		return Summary{}, fmt.Errorf("analytics: load history: %w", err)
	}
	return summarize(history, time.Now()), nil
}

// summarize folds a newest-first history slice into a Summary.
func summarize(history []model.FusedInsight, now time.Time) Summary {
	sum := Summary{
		FusionFrequency: map[string]int{"24h": 0, "7d": 0, "30d": 0},
	}
	if len(history) == 0 {
		return sum
	}

	sum.TotalFusions = len(history)
	last := history[0].CreatedAt
	sum.LastFusionAt = &last

	var confTotal float64
	usage := make(map[model.AgentRole]int)
	for _, fi := range history {
		confTotal += fi.ConfidenceScore
		for _, a := range fi.ContributingAgents {
			usage[a]++
		}
		age := now.Sub(fi.CreatedAt)
		if age <= 24*time.Hour {
			sum.FusionFrequency["24h"]++
		}
		if age <= 7*24*time.Hour {
			sum.FusionFrequency["7d"]++
		}
		if age <= 30*24*time.Hour {
			sum.FusionFrequency["30d"]++
		}
	}
	sum.AverageConfidence = confTotal / float64(len(history))

	n := len(history)
	if n > trendLength {
		n = trendLength
	}
	trend := make([]float64, n)
	for i := 0; i < n; i++ {
		// history is newest first; the trend reads oldest to newest.
		trend[i] = history[n-1-i].ConfidenceScore
	}
	sum.ConfidenceTrend = trend

	ranked := make([]AgentUsage, 0, len(usage))
	for agent, count := range usage {
		ranked = append(ranked, AgentUsage{Agent: agent, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Agent < ranked[j].Agent
	})
	if len(ranked) > topAgentCount {
		ranked = ranked[:topAgentCount]
	}
	sum.MostUsedAgents = ranked

	return sum
}
