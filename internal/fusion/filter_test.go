package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-health/tessera/internal/model"
)

func TestFilterInsights(t *testing.T) {
	now := time.Now()
	fresh := func(agent model.AgentRole, confidence float64) model.AgentInsight {
		return model.AgentInsight{Agent: agent, Confidence: confidence, GeneratedAt: now.Add(-time.Hour)}
	}
	baseCtx := model.FusionContext{}.Normalize()

	t.Run("confidence threshold is inclusive", func(t *testing.T) {
		insights := []model.AgentInsight{
			fresh(model.AgentSleep, 0.6),
			fresh(model.AgentFitness, 0.59),
		}
		got := filterInsights(insights, baseCtx, now)
		require.Len(t, got, 1)
		assert.Equal(t, model.AgentSleep, got[0].Agent)
	})

	t.Run("temporal window drops stale insights", func(t *testing.T) {
		insights := []model.AgentInsight{
			fresh(model.AgentSleep, 0.9),
			{Agent: model.AgentFitness, Confidence: 0.9, GeneratedAt: now.Add(-25 * time.Hour)},
		}
		got := filterInsights(insights, baseCtx, now)
		require.Len(t, got, 1)
		assert.Equal(t, model.AgentSleep, got[0].Agent)
	})

	t.Run("domain focus keeps matching producers only", func(t *testing.T) {
		fctx := baseCtx
		fctx.DomainFocus = "sleep"
		insights := []model.AgentInsight{
			fresh(model.AgentSleep, 0.9),
			fresh(model.AgentNutrition, 0.9),
		}
		got := filterInsights(insights, fctx, now)
		require.Len(t, got, 1)
		assert.Equal(t, model.AgentSleep, got[0].Agent)
	})

	t.Run("unset focus admits every domain", func(t *testing.T) {
		insights := []model.AgentInsight{
			fresh(model.AgentSleep, 0.9),
			fresh(model.AgentNutrition, 0.9),
		}
		assert.Len(t, filterInsights(insights, baseCtx, now), 2)
	})

	t.Run("input order preserved", func(t *testing.T) {
		insights := []model.AgentInsight{
			fresh(model.AgentStress, 0.7),
			fresh(model.AgentSleep, 0.9),
			fresh(model.AgentBiometrics, 0.8),
		}
		got := filterInsights(insights, baseCtx, now)
		assert.Equal(t, []model.AgentRole{model.AgentStress, model.AgentSleep, model.AgentBiometrics},
			contributingAgents(got))
	})
}

func TestDataSources(t *testing.T) {
	insights := []model.AgentInsight{
		{Agent: model.AgentSleep},
		{Agent: model.AgentRecovery},
		{Agent: model.AgentSleep}, // duplicate domain, deduplicated
		{Agent: "mystery_agent"},  // unknown producers map to general
	}
	assert.Equal(t,
		[]string{"sleep_analysis", "recovery_analysis", "general_analysis"},
		dataSources(insights))
}
