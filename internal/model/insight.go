package model

import (
	"time"

	"github.com/google/uuid"
)

// AgentInsight is one producer's independent analysis output.
// Produced outside the engine and never mutated by it.
type AgentInsight struct {
	Agent           AgentRole      `json:"agent"`
	Content         string         `json:"content"`
	Confidence      float64        `json:"confidence"` // [0,1]
	Recommendations []string       `json:"recommendations"`
	GeneratedAt     time.Time      `json:"generated_at"`
	SupportingData  map[string]any `json:"supporting_data,omitempty"`
}

// FusionStrategy selects the algorithm used to synthesize unified text.
type FusionStrategy string

const (
	StrategyWeightedAverage  FusionStrategy = "weighted_average"
	StrategyConsensus        FusionStrategy = "consensus"
	StrategyExpertPriority   FusionStrategy = "expert_priority"
	StrategyConfidenceTiered FusionStrategy = "confidence_tiered"
)

// ParseFusionStrategy maps a strategy name to a known strategy.
// Unknown names fall back to weighted_average; parsing never fails.
func ParseFusionStrategy(s string) FusionStrategy {
	switch FusionStrategy(s) {
	case StrategyConsensus, StrategyExpertPriority, StrategyConfidenceTiered:
		return FusionStrategy(s)
	default:
		return StrategyWeightedAverage
	}
}

// ConflictPolicy names the resolution method recorded on detected
// recommendation conflicts.
type ConflictPolicy string

const (
	PolicyConfidenceWeighted ConflictPolicy = "confidence_weighted"
	PolicyExpertDomain       ConflictPolicy = "expert_domain"
	PolicyConservative       ConflictPolicy = "conservative"
)

// ParseConflictPolicy maps a policy name to a known policy, falling back
// to confidence_weighted.
func ParseConflictPolicy(s string) ConflictPolicy {
	switch ConflictPolicy(s) {
	case PolicyExpertDomain, PolicyConservative:
		return ConflictPolicy(s)
	default:
		return PolicyConfidenceWeighted
	}
}

// Default fusion parameters. FusionContext fields left at their zero value
// are normalized to these before use.
const (
	DefaultConfidenceThreshold = 0.6
	DefaultTemporalWindow      = 24 * time.Hour
)

// FusionDefaults are service-level fusion defaults, typically sourced from
// configuration. Zero-valued fields fall back to the built-in constants.
type FusionDefaults struct {
	ConfidenceThreshold float64
	TemporalWindow      time.Duration
}

// FusionContext carries the per-call configuration for one fusion request.
// It exists only for the duration of one call and is never persisted.
type FusionContext struct {
	UserID              uuid.UUID         `json:"user_id"`
	DomainFocus         string            `json:"domain_focus,omitempty"`
	TemporalWindow      time.Duration     `json:"temporal_window"`
	ConfidenceThreshold float64           `json:"confidence_threshold"`
	ConflictPolicy      ConflictPolicy    `json:"conflict_policy"`
	Strategy            FusionStrategy    `json:"strategy"`
	Preferences         map[string]string `json:"preferences,omitempty"`
}

// Normalize fills zero-valued fields with the built-in defaults and
// canonicalizes the strategy and policy names.
func (c FusionContext) Normalize() FusionContext {
	return c.NormalizeWith(FusionDefaults{})
}

// NormalizeWith fills zero-valued fields from the given service-level
// defaults and canonicalizes the strategy and policy names. Request values
// always win over defaults; defaults win over the built-in constants.
func (c FusionContext) NormalizeWith(d FusionDefaults) FusionContext {
	if d.ConfidenceThreshold <= 0 {
		d.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if d.TemporalWindow <= 0 {
		d.TemporalWindow = DefaultTemporalWindow
	}
	if c.TemporalWindow <= 0 {
		c.TemporalWindow = d.TemporalWindow
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = d.ConfidenceThreshold
	}
	c.Strategy = ParseFusionStrategy(string(c.Strategy))
	c.ConflictPolicy = ParseConflictPolicy(string(c.ConflictPolicy))
	return c
}
