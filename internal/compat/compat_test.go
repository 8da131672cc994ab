package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tessera-health/tessera/internal/model"
)

func TestAffinitySymmetric(t *testing.T) {
	m := NewDefault()

	// Seeded pair reads the same in either argument order.
	assert.Equal(t, 0.95, m.Affinity(model.AgentNutrition, model.AgentFitness))
	assert.Equal(t, 0.95, m.Affinity(model.AgentFitness, model.AgentNutrition))
}

func TestAffinityDefault(t *testing.T) {
	m := NewDefault()

	assert.Equal(t, DefaultAffinity, m.Affinity(model.AgentNutrition, model.AgentBiometrics))
	assert.Equal(t, DefaultAffinity, m.Affinity(model.AgentSleep, model.AgentSleep))
}

func TestSeededPairs(t *testing.T) {
	m := NewDefault()

	pairs := [][2]model.AgentRole{
		{model.AgentNutrition, model.AgentFitness},
		{model.AgentSleep, model.AgentRecovery},
		{model.AgentStress, model.AgentSleep},
		{model.AgentFitness, model.AgentRecovery},
	}
	for _, p := range pairs {
		assert.Equal(t, 0.95, m.Affinity(p[0], p[1]), "%s/%s", p[0], p[1])
	}
}

func TestDomainWeight(t *testing.T) {
	m := NewDefault()

	assert.Equal(t, 0.25, m.DomainWeight("nutrition"))
	assert.Equal(t, 0.10, m.DomainWeight("biometrics"))
	assert.Zero(t, m.DomainWeight("astrology"))
}
