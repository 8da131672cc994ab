package fusion

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-health/tessera/internal/model"
)

// capturePersister records every fused insight handed to it.
type capturePersister struct {
	persisted []model.FusedInsight
}

func (c *capturePersister) Persist(fi model.FusedInsight) {
	c.persisted = append(c.persisted, fi)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFuseEmptyBatch(t *testing.T) {
	e := New(nil, model.FusionDefaults{}, nil, testLogger())

	_, err := e.Fuse(context.Background(), nil, model.FusionContext{UserID: uuid.New()})
	assert.ErrorIs(t, err, ErrNoInsights)
}

func TestFuseEndToEnd(t *testing.T) {
	now := time.Now()
	userID := uuid.New()
	persister := &capturePersister{}
	e := New(nil, model.FusionDefaults{}, persister, testLogger())

	insights := []model.AgentInsight{
		{
			Agent:           model.AgentNutrition,
			Content:         "Protein intake is on target for your training block",
			Confidence:      0.9,
			Recommendations: []string{"Keep protein at 1.6g per kg"},
			GeneratedAt:     now.Add(-2 * time.Minute),
		},
		{
			Agent:           model.AgentFitness,
			Content:         "Training load is well balanced this week",
			Confidence:      0.85,
			Recommendations: []string{"Hold your current training volume"},
			GeneratedAt:     now.Add(-time.Minute),
		},
		{
			Agent:           model.AgentSleep,
			Content:         "Sleep duration improved to a stable baseline",
			Confidence:      0.8,
			Recommendations: []string{"Keep your current bedtime"},
			GeneratedAt:     now,
		},
	}

	fused, err := e.Fuse(context.Background(), insights, model.FusionContext{UserID: userID})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, fused.ID)
	assert.Equal(t, userID, fused.UserID)
	assert.Equal(t, "weighted_average", fused.FusionMethod)
	assert.Equal(t,
		[]model.AgentRole{model.AgentNutrition, model.AgentFitness, model.AgentSleep},
		fused.ContributingAgents)
	assert.Equal(t,
		[]string{"nutrition_analysis", "fitness_analysis", "sleep_analysis"},
		fused.DataSources)
	assert.Empty(t, fused.ConflictIndicators)

	// High base confidence plus multi-producer and compatibility bonuses
	// saturate the score.
	assert.GreaterOrEqual(t, fused.ConfidenceScore, 0.85)
	assert.LessOrEqual(t, fused.ConfidenceScore, 1.0)
	assert.InDelta(t, 1.0, fused.ConsensusLevel, 0.01)

	// Convergence, multi-domain coverage and real-time coherence, in that
	// order, capped at three.
	require.Len(t, fused.MetaInsights, 3)
	assert.Contains(t, fused.MetaInsights[0], "Convergent analysis")
	assert.Contains(t, fused.MetaInsights[1], "Multi-domain coverage")
	assert.Contains(t, fused.MetaInsights[2], "Real-time coherence")

	require.NotEmpty(t, fused.Recommendations)
	assert.Contains(t, fused.Recommendations[0], "Priority action")
	assert.Equal(t, followUpRecommendation, fused.Recommendations[len(fused.Recommendations)-1])

	require.Len(t, persister.persisted, 1)
	assert.Equal(t, fused.ID, persister.persisted[0].ID)
}

func TestFuseConflictingInsights(t *testing.T) {
	now := time.Now()
	e := New(nil, model.FusionDefaults{}, nil, testLogger())

	insights := []model.AgentInsight{
		{
			Agent:           model.AgentFitness,
			Content:         "Capacity for more load",
			Confidence:      0.7,
			Recommendations: []string{"Increase training intensity"},
			GeneratedAt:     now,
		},
		{
			Agent:           model.AgentRecovery,
			Content:         "Fatigue markers are elevated",
			Confidence:      0.65,
			Recommendations: []string{"Reduce training intensity"},
			GeneratedAt:     now,
		},
	}

	fused, err := e.Fuse(context.Background(), insights, model.FusionContext{UserID: uuid.New()})
	require.NoError(t, err)

	assert.Equal(t, []string{"recommendation_conflict"}, fused.ConflictIndicators)

	// Conflict-free equivalent would score higher: the single conflict
	// costs one penalty step.
	noConflict := insights
	noConflict[0].Recommendations = []string{"Hold current load"}
	noConflict[1].Recommendations = []string{"Add a mobility session"}
	rescored, err := e.Fuse(context.Background(), noConflict, model.FusionContext{UserID: uuid.New()})
	require.NoError(t, err)
	assert.InDelta(t, 0.05, rescored.ConfidenceScore-fused.ConfidenceScore, 1e-9)
}

func TestFuseAllInsightsFilteredOut(t *testing.T) {
	e := New(nil, model.FusionDefaults{}, nil, testLogger())

	insights := []model.AgentInsight{
		{Agent: model.AgentSleep, Confidence: 0.2, GeneratedAt: time.Now()},
	}

	fused, err := e.Fuse(context.Background(), insights, model.FusionContext{UserID: uuid.New()})
	require.NoError(t, err)

	assert.Equal(t, noInsightsText, fused.UnifiedContent)
	assert.Empty(t, fused.ContributingAgents)
	assert.Empty(t, fused.Recommendations)
	assert.Zero(t, fused.ConfidenceScore)
	assert.Equal(t, 1.0, fused.ConsensusLevel)
	assert.Equal(t, []string{"Fusion completed across the available analyses."}, fused.MetaInsights)
}

func TestFuseStrategyFallback(t *testing.T) {
	e := New(nil, model.FusionDefaults{}, nil, testLogger())

	insights := []model.AgentInsight{
		{Agent: model.AgentSleep, Content: "Sleep is stable", Confidence: 0.8, GeneratedAt: time.Now()},
	}
	fctx := model.FusionContext{UserID: uuid.New(), Strategy: "quantum_fusion"}

	fused, err := e.Fuse(context.Background(), insights, fctx)
	require.NoError(t, err)
	assert.Equal(t, "weighted_average", fused.FusionMethod)
	assert.Contains(t, fused.UnifiedContent, "Weighted synthesis")
}

func TestFuseServiceDefaultsApplied(t *testing.T) {
	now := time.Now()
	e := New(nil, model.FusionDefaults{
		ConfidenceThreshold: 0.95,
		TemporalWindow:      time.Hour,
	}, nil, testLogger())

	insights := []model.AgentInsight{
		{Agent: model.AgentSleep, Content: "Sleep is stable", Confidence: 0.7, GeneratedAt: now},
		{Agent: model.AgentNutrition, Content: "Macros on target", Confidence: 0.97, GeneratedAt: now.Add(-2 * time.Hour)},
	}

	// The raised threshold excludes the 0.7 insight and the one-hour window
	// excludes the stale one, so nothing survives the filter.
	fused, err := e.Fuse(context.Background(), insights, model.FusionContext{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, fused.ContributingAgents)
	assert.Equal(t, noInsightsText, fused.UnifiedContent)

	// Request-level values still win over the service defaults.
	fctx := model.FusionContext{UserID: uuid.New(), ConfidenceThreshold: 0.5, TemporalWindow: 3 * time.Hour}
	fused, err = e.Fuse(context.Background(), insights, fctx)
	require.NoError(t, err)
	assert.Equal(t,
		[]model.AgentRole{model.AgentSleep, model.AgentNutrition},
		fused.ContributingAgents)
}

func TestFuseNilPersister(t *testing.T) {
	e := New(nil, model.FusionDefaults{}, nil, testLogger())
	insights := []model.AgentInsight{
		{Agent: model.AgentSleep, Content: "ok", Confidence: 0.8, GeneratedAt: time.Now()},
	}

	_, err := e.Fuse(context.Background(), insights, model.FusionContext{UserID: uuid.New()})
	assert.NoError(t, err)
}

func TestFallbackUnified(t *testing.T) {
	assert.Equal(t, noInsightsText, fallbackUnified(nil))

	insights := []model.AgentInsight{
		{Agent: model.AgentSleep},
		{Agent: model.AgentStress},
	}
	assert.Equal(t, "Combined analysis from sleep_agent, stress_agent.", fallbackUnified(insights))
}
