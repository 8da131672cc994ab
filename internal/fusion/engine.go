// Package fusion implements the insight fusion engine: it synthesizes a
// batch of independently produced specialist insights into one unified,
// conflict-aware, confidence-scored result.
//
// The engine is a plain dependency-injected value. It owns no background
// goroutines and no global state; persistence is handed off through the
// optional Persister so the fusion path stays synchronous and fast.
package fusion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tessera-health/tessera/internal/compat"
	"github.com/tessera-health/tessera/internal/model"
	"github.com/tessera-health/tessera/internal/telemetry"
)

// ErrNoInsights is returned when Fuse is called with an empty batch.
// An empty batch is a caller bug, never retried or degraded.
var ErrNoInsights = errors.New("fusion: insight batch is empty")

// Persister receives a fused insight for best-effort persistence (cache
// write and history append). Implementations must not block; failures are
// theirs to log and swallow.
type Persister interface {
	Persist(fi model.FusedInsight)
}

// Engine fuses insight batches. Safe for concurrent use; all per-call state
// lives on the stack.
type Engine struct {
	matrix    *compat.Matrix
	defaults  model.FusionDefaults
	persister Persister // nil disables persistence
	logger    *slog.Logger
	now       func() time.Time

	fusionDuration metric.Float64Histogram
	fusionsTotal   metric.Int64Counter
	conflictsTotal metric.Int64Counter
}

// New creates a fusion engine. A nil matrix uses the default compatibility
// model, a zero defaults value uses the built-in fusion constants, and a
// nil persister disables the cache/history side effects.
func New(matrix *compat.Matrix, defaults model.FusionDefaults, persister Persister, logger *slog.Logger) *Engine {
	if matrix == nil {
		matrix = compat.NewDefault()
	}
	if logger == nil {
		logger = slog.Default()
	}
	meter := telemetry.Meter("tessera/fusion")
	dur, _ := meter.Float64Histogram("tessera.fusion.duration",
		metric.WithDescription("Time to fuse one insight batch (ms)"),
		metric.WithUnit("ms"),
	)
	total, _ := meter.Int64Counter("tessera.fusion.total",
		metric.WithDescription("Completed fusions"),
	)
	conflicts, _ := meter.Int64Counter("tessera.fusion.conflicts",
		metric.WithDescription("Conflicts detected across fusions"),
	)
	return &Engine{
		matrix:         matrix,
		defaults:       defaults,
		persister:      persister,
		logger:         logger,
		now:            time.Now,
		fusionDuration: dur,
		fusionsTotal:   total,
		conflictsTotal: conflicts,
	}
}

// Fuse synthesizes one fused insight from the batch under the given context.
// The only error it returns is ErrNoInsights; every other sub-step failure
// degrades to a safe default so the caller always receives a fully-formed
// result.
func (e *Engine) Fuse(ctx context.Context, insights []model.AgentInsight, fctx model.FusionContext) (model.FusedInsight, error) {
	if len(insights) == 0 {
		return model.FusedInsight{}, ErrNoInsights
	}
	fctx = fctx.NormalizeWith(e.defaults)
	start := e.now()

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("tessera.user_id", fctx.UserID.String()),
		attribute.String("tessera.strategy", string(fctx.Strategy)),
		attribute.Int("tessera.batch_size", len(insights)),
	)

	filtered := filterInsights(insights, fctx, start)

	conflicts := e.safeConflicts(filtered, fctx.ConflictPolicy)
	unified := e.safeUnified(filtered, fctx)
	meta := e.safeMeta(filtered)

	fused := model.FusedInsight{
		ID:                 uuid.New(),
		UnifiedContent:     unified,
		ContributingAgents: contributingAgents(filtered),
		FusionMethod:       string(fctx.Strategy),
		ConfidenceScore:    scoreConfidence(filtered, conflicts, e.matrix),
		ConsensusLevel:     consensusLevel(filtered),
		ConflictIndicators: conflictIndicators(conflicts),
		MetaInsights:       meta,
		Recommendations:    synthesizeRecommendations(filtered),
		DataSources:        dataSources(filtered),
		CreatedAt:          start,
		UserID:             fctx.UserID,
	}

	if e.persister != nil {
		e.persister.Persist(fused)
	}

	e.fusionDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	e.fusionsTotal.Add(ctx, 1)
	e.conflictsTotal.Add(ctx, int64(len(conflicts)))

	e.logger.Debug("fusion completed",
		"fused_id", fused.ID,
		"user_id", fctx.UserID,
		"strategy", fctx.Strategy,
		"batch", len(insights),
		"filtered", len(filtered),
		"conflicts", len(conflicts),
		"confidence", fused.ConfidenceScore,
	)
	return fused, nil
}

// safeConflicts runs conflict analysis, converting a panic in the detector
// into an empty conflict list so one bad pair never aborts the fusion.
func (e *Engine) safeConflicts(insights []model.AgentInsight, policy model.ConflictPolicy) (out []model.ConflictAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("conflict analysis failed, continuing without", "panic", r)
			out = nil
		}
	}()
	return analyzeConflicts(insights, policy)
}

// safeUnified runs the fusion strategy, falling back to a generic summary
// when the strategy panics.
func (e *Engine) safeUnified(insights []model.AgentInsight, fctx model.FusionContext) (out string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fusion strategy failed, using fallback text", "strategy", fctx.Strategy, "panic", r)
			out = fallbackUnified(insights)
		}
	}()
	return executeStrategy(insights, fctx)
}

// safeMeta runs meta-insight generation, degrading to no observations on
// panic.
func (e *Engine) safeMeta(insights []model.AgentInsight) (out []string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("meta-insight generation failed, continuing without", "panic", r)
			out = nil
		}
	}()
	return generateMetaInsights(insights)
}

// fallbackUnified is the degraded text used when a strategy implementation
// fails mid-render.
func fallbackUnified(insights []model.AgentInsight) string {
	if len(insights) == 0 {
		return noInsightsText
	}
	return "Combined analysis from " + joinAgents(contributingAgents(insights)) + "."
}
