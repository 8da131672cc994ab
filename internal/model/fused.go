package model

import (
	"time"

	"github.com/google/uuid"
)

// ConflictKind classifies a detected conflict between two insights.
type ConflictKind string

const (
	// ConflictDataContradiction is reserved for contradicting supporting
	// data. No detector emits it today; it stays a distinct kind so stored
	// indicator strings remain stable if one is added.
	ConflictDataContradiction ConflictKind = "data_contradiction"
	ConflictRecommendation    ConflictKind = "recommendation_conflict"
	ConflictConfidenceGap     ConflictKind = "confidence_disparity"
)

// ConflictAnalysis describes one detected conflict between a pair of
// insights. Ephemeral: only the Kind string survives into the fused result.
type ConflictAnalysis struct {
	Kind                 ConflictKind `json:"kind"`
	AgentA               AgentRole    `json:"agent_a"`
	AgentB               AgentRole    `json:"agent_b"`
	Severity             float64      `json:"severity"` // [0,1]
	ResolutionMethod     string       `json:"resolution_method"`
	ResolutionConfidence float64      `json:"resolution_confidence"`
	Domains              []string     `json:"domains"`
}

// FusedInsight is the engine's output and the only long-lived artifact.
type FusedInsight struct {
	ID                 uuid.UUID   `json:"id"`
	UnifiedContent     string      `json:"unified_content"`
	ContributingAgents []AgentRole `json:"contributing_agents"` // post-filter producers only
	FusionMethod       string      `json:"fusion_method"`
	ConfidenceScore    float64     `json:"confidence_score"` // [0,1]
	ConsensusLevel     float64     `json:"consensus_level"`  // [0,1]
	ConflictIndicators []string    `json:"conflict_indicators"`
	MetaInsights       []string    `json:"meta_insights"` // at most 3
	Recommendations    []string    `json:"recommendations"`
	DataSources        []string    `json:"data_sources"`
	CreatedAt          time.Time   `json:"created_at"`
	UserID             uuid.UUID   `json:"user_id"`
}

// CacheKey returns the cache key for this fused insight.
func (f FusedInsight) CacheKey() string {
	return "fusion:fused:" + f.ID.String()
}
