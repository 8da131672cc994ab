// Package compat holds the static producer compatibility model: pairwise
// affinity between producers and per-domain weight priors. Both tables are
// read-only after construction and safe for unsynchronized concurrent reads.
package compat

import "github.com/tessera-health/tessera/internal/model"

// DefaultAffinity is the affinity assumed for producer pairs without a
// seeded historical value.
const DefaultAffinity = 0.7

// pairKey is a canonical (sorted) unordered pair of producer roles.
// Storing one ordering per pair avoids the duplicate-entry bugs that come
// with inserting both orderings.
type pairKey struct {
	lo, hi model.AgentRole
}

func keyFor(a, b model.AgentRole) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Matrix is the precomputed compatibility model.
type Matrix struct {
	affinity      map[pairKey]float64
	domainWeights map[string]float64
}

// NewDefault builds the matrix with the seeded high-affinity pairs and the
// standard domain weight priors. The weights are documentation-level priors
// and are not required to sum to 1.0.
func NewDefault() *Matrix {
	m := &Matrix{
		affinity:      make(map[pairKey]float64),
		domainWeights: make(map[string]float64),
	}

	// Producer pairs with strong historical agreement.
	seed := func(a, b model.AgentRole) { m.affinity[keyFor(a, b)] = 0.95 }
	seed(model.AgentNutrition, model.AgentFitness)
	seed(model.AgentSleep, model.AgentRecovery)
	seed(model.AgentStress, model.AgentSleep)
	seed(model.AgentFitness, model.AgentRecovery)

	m.domainWeights = map[string]float64{
		"nutrition":       0.25,
		"fitness":         0.25,
		"sleep":           0.20,
		"mental_wellness": 0.15,
		"recovery":        0.15,
		"biometrics":      0.10,
	}
	return m
}

// Affinity returns the pairwise affinity for two producers, in [0,1].
// Order of arguments does not matter.
func (m *Matrix) Affinity(a, b model.AgentRole) float64 {
	if v, ok := m.affinity[keyFor(a, b)]; ok {
		return v
	}
	return DefaultAffinity
}

// DomainWeight returns the relative prior weight for a domain, or 0 for
// unknown domains.
func (m *Matrix) DomainWeight(domain string) float64 {
	return m.domainWeights[domain]
}
