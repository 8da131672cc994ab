package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/tessera-health/tessera/internal/model"
)

func (s *Server) registerTools() {
	// tessera_fuse — fuse a batch of specialist insights into one result.
	s.mcpServer.AddTool(
		mcplib.NewTool("tessera_fuse",
			mcplib.WithDescription(`Fuse a batch of specialist insight records into one unified, conflict-aware result.

Each insight carries a producer role, free-text content, a confidence in [0,1],
recommendation strings and a generation timestamp. The engine filters the batch,
detects conflicting recommendations and confidence gaps, synthesizes unified text
under the selected strategy, and returns the fused insight with its confidence
score, consensus level, meta-insights and deduplicated recommendations.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("user_id",
				mcplib.Description("Owning user id (UUID)"),
				mcplib.Required(),
			),
			mcplib.WithString("insights_json",
				mcplib.Description(`JSON array of insight records: [{"agent":"nutrition_agent","content":"...","confidence":0.8,"recommendations":["..."],"generated_at":"2026-01-02T15:04:05Z"}]`),
				mcplib.Required(),
			),
			mcplib.WithString("strategy",
				mcplib.Description("Fusion strategy: weighted_average, consensus, expert_priority or confidence_tiered. Unknown values fall back to weighted_average."),
			),
			mcplib.WithString("conflict_policy",
				mcplib.Description("Conflict resolution policy: confidence_weighted, expert_domain or conservative. Unknown values fall back to confidence_weighted."),
			),
			mcplib.WithString("domain_focus",
				mcplib.Description("Optional domain focus, e.g. nutrition or sleep"),
			),
			mcplib.WithNumber("confidence_threshold",
				mcplib.Description("Minimum insight confidence to include"),
				mcplib.Min(0),
				mcplib.Max(1),
			),
			mcplib.WithNumber("temporal_window_seconds",
				mcplib.Description("Insights older than this many seconds are excluded"),
				mcplib.Min(0),
			),
		),
		s.handleFuse,
	)

	// tessera_analytics — per-user fusion analytics.
	s.mcpServer.AddTool(
		mcplib.NewTool("tessera_analytics",
			mcplib.WithDescription(`Read fusion analytics for one user: total fusions, average confidence,
confidence trend over the last 10 fusions, most used producers, and fusion
frequency over 24h/7d/30d windows.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("user_id",
				mcplib.Description("User id (UUID)"),
				mcplib.Required(),
			),
		),
		s.handleAnalytics,
	)
}

func (s *Server) handleFuse(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	userID, err := uuid.Parse(request.GetString("user_id", ""))
	if err != nil {
		return errorResult("user_id must be a valid UUID"), nil
	}

	var insights []model.AgentInsight
	if err := json.Unmarshal([]byte(request.GetString("insights_json", "")), &insights); err != nil {
		return errorResult(fmt.Sprintf("insights_json is not a valid insight array: %v", err)), nil
	}

	fctx := model.FusionContext{
		UserID:              userID,
		DomainFocus:         request.GetString("domain_focus", ""),
		TemporalWindow:      time.Duration(request.GetFloat("temporal_window_seconds", 0) * float64(time.Second)),
		ConfidenceThreshold: request.GetFloat("confidence_threshold", 0),
		ConflictPolicy:      model.ConflictPolicy(request.GetString("conflict_policy", "")),
		Strategy:            model.FusionStrategy(request.GetString("strategy", "")),
	}

	fused, err := s.engine.Fuse(ctx, insights, fctx)
	if err != nil {
		return errorResult(fmt.Sprintf("fusion failed: %v", err)), nil
	}

	resultData, _ := json.MarshalIndent(fused, "", "  ")
	return textResult(string(resultData)), nil
}

func (s *Server) handleAnalytics(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	userID, err := uuid.Parse(request.GetString("user_id", ""))
	if err != nil {
		return errorResult("user_id must be a valid UUID"), nil
	}
	summary, err := s.analyticsSvc.Summary(ctx, userID)
	if err != nil {
		return errorResult(fmt.Sprintf("analytics failed: %v", err)), nil
	}
	resultData, _ := json.MarshalIndent(summary, "", "  ")
	return textResult(string(resultData)), nil
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
