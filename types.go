package tessera

import (
	"time"

	"github.com/google/uuid"
)

// Insight is the public form of one producer's analysis record.
type Insight struct {
	Agent           string         `json:"agent"`
	Content         string         `json:"content"`
	Confidence      float64        `json:"confidence"`
	Recommendations []string       `json:"recommendations"`
	GeneratedAt     time.Time      `json:"generated_at"`
	SupportingData  map[string]any `json:"supporting_data,omitempty"`
}

// FuseOptions is the public per-call fusion configuration. Zero-valued
// fields use the engine defaults (0.6 threshold, 24h window,
// weighted_average strategy).
type FuseOptions struct {
	UserID              uuid.UUID
	DomainFocus         string
	TemporalWindow      time.Duration
	ConfidenceThreshold float64
	Strategy            string
	ConflictPolicy      string
	Preferences         map[string]string
}

// Fused is the public form of a fused insight.
type Fused struct {
	ID                 uuid.UUID `json:"id"`
	UnifiedContent     string    `json:"unified_content"`
	ContributingAgents []string  `json:"contributing_agents"`
	FusionMethod       string    `json:"fusion_method"`
	ConfidenceScore    float64   `json:"confidence_score"`
	ConsensusLevel     float64   `json:"consensus_level"`
	ConflictIndicators []string  `json:"conflict_indicators"`
	MetaInsights       []string  `json:"meta_insights"`
	Recommendations    []string  `json:"recommendations"`
	DataSources        []string  `json:"data_sources"`
	CreatedAt          time.Time `json:"created_at"`
	UserID             uuid.UUID `json:"user_id"`
}

// AgentUsage is one producer's appearance count in a user's history.
type AgentUsage struct {
	Agent string `json:"agent"`
	Count int    `json:"count"`
}

// Analytics is the public per-user analytics summary.
type Analytics struct {
	TotalFusions      int            `json:"total_fusions"`
	AverageConfidence float64        `json:"average_confidence"`
	ConfidenceTrend   []float64      `json:"confidence_trend"`
	MostUsedAgents    []AgentUsage   `json:"most_used_agents"`
	FusionFrequency   map[string]int `json:"fusion_frequency"`
	LastFusionAt      *time.Time     `json:"last_fusion_at,omitempty"`
}
