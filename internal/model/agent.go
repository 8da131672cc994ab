// Package model defines the core data types for the insight fusion engine.
package model

// AgentRole identifies one of the specialized analysis producers.
type AgentRole string

const (
	AgentNutrition  AgentRole = "nutrition_agent"
	AgentFitness    AgentRole = "fitness_agent"
	AgentSleep      AgentRole = "sleep_agent"
	AgentStress     AgentRole = "stress_agent"
	AgentRecovery   AgentRole = "recovery_agent"
	AgentBiometrics AgentRole = "biometrics_agent"
)

// AllAgentRoles lists every known producer role.
var AllAgentRoles = []AgentRole{
	AgentNutrition,
	AgentFitness,
	AgentSleep,
	AgentStress,
	AgentRecovery,
	AgentBiometrics,
}

// agentDomains maps each producer role to its analysis domain.
var agentDomains = map[AgentRole]string{
	AgentNutrition:  "nutrition",
	AgentFitness:    "fitness",
	AgentSleep:      "sleep",
	AgentStress:     "mental_wellness",
	AgentRecovery:   "recovery",
	AgentBiometrics: "biometrics",
}

// Domain returns the analysis domain for a producer role.
// Unknown roles map to "general".
func (r AgentRole) Domain() string {
	if d, ok := agentDomains[r]; ok {
		return d
	}
	return "general"
}

// Valid reports whether r is one of the known producer roles.
func (r AgentRole) Valid() bool {
	_, ok := agentDomains[r]
	return ok
}
