package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-health/tessera/internal/model"
)

func TestSynthesizeRecommendationsEmptyBatch(t *testing.T) {
	assert.Nil(t, synthesizeRecommendations(nil))
}

func TestSynthesizeRecommendationsSingleInsight(t *testing.T) {
	insights := []model.AgentInsight{
		insight(model.AgentSleep, 0.8, "Keep a consistent bedtime"),
	}

	got := synthesizeRecommendations(insights)
	require.Len(t, got, 2)
	// One producer: no coordination action, just the specific and the
	// follow-up.
	assert.Equal(t, "Keep a consistent bedtime", got[0])
	assert.Equal(t, followUpRecommendation, got[1])
}

func TestSynthesizeRecommendationsMultiAgent(t *testing.T) {
	insights := []model.AgentInsight{
		insight(model.AgentSleep, 0.8, "Keep a consistent bedtime", "Dim lights after 9pm"),
		insight(model.AgentRecovery, 0.8, "Keep a consistent bedtime", "Take a rest day"),
	}

	got := synthesizeRecommendations(insights)
	require.Len(t, got, 5)
	assert.Contains(t, got[0], "Priority action")
	assert.Contains(t, got[0], "sleep_agent, recovery_agent")
	// Duplicate specifics collapse, first occurrence wins the slot.
	assert.Equal(t, []string{
		"Keep a consistent bedtime",
		"Dim lights after 9pm",
		"Take a rest day",
	}, got[1:4])
	assert.Equal(t, followUpRecommendation, got[4])
}

func TestSynthesizeRecommendationsCapsSpecifics(t *testing.T) {
	insights := []model.AgentInsight{
		insight(model.AgentSleep, 0.8, "a", "b", "c"),
		insight(model.AgentRecovery, 0.8, "d", "e", "f"),
	}

	got := synthesizeRecommendations(insights)
	// Priority action + 4 capped specifics + follow-up.
	require.Len(t, got, 6)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got[1:5])
}

func TestSynthesizeRecommendationsSkipsEmptyStrings(t *testing.T) {
	insights := []model.AgentInsight{
		insight(model.AgentSleep, 0.8, "", "Keep a consistent bedtime"),
	}

	got := synthesizeRecommendations(insights)
	require.Len(t, got, 2)
	assert.Equal(t, "Keep a consistent bedtime", got[0])
}
