package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Error codes used in API error responses.
const (
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"
)

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta carries per-response bookkeeping.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// FuseRequest is the wire form of one fusion call. The context block uses
// plain seconds for the temporal window so clients never deal with
// Go duration encoding.
type FuseRequest struct {
	Insights []AgentInsight     `json:"insights"`
	Context  FuseRequestContext `json:"context"`
}

// FuseRequestContext mirrors FusionContext for the wire.
type FuseRequestContext struct {
	UserID                uuid.UUID         `json:"user_id"`
	DomainFocus           string            `json:"domain_focus,omitempty"`
	TemporalWindowSeconds int64             `json:"temporal_window_seconds,omitempty"`
	ConfidenceThreshold   float64           `json:"confidence_threshold,omitempty"`
	ConflictPolicy        string            `json:"conflict_policy,omitempty"`
	Strategy              string            `json:"strategy,omitempty"`
	Preferences           map[string]string `json:"preferences,omitempty"`
}

// Validate checks the request beyond what the engine enforces itself.
func (r FuseRequest) Validate() error {
	if len(r.Insights) == 0 {
		return fmt.Errorf("insights must not be empty")
	}
	if r.Context.UserID == uuid.Nil {
		return fmt.Errorf("context.user_id is required")
	}
	for i, in := range r.Insights {
		if in.Confidence < 0 || in.Confidence > 1 {
			return fmt.Errorf("insights[%d].confidence must be in [0,1]", i)
		}
		if in.GeneratedAt.IsZero() {
			return fmt.Errorf("insights[%d].generated_at is required", i)
		}
	}
	return nil
}

// ToFusionContext converts the wire context into the engine's form.
// Zero-valued fields stay zero; FusionContext.Normalize fills defaults.
func (c FuseRequestContext) ToFusionContext() FusionContext {
	return FusionContext{
		UserID:              c.UserID,
		DomainFocus:         c.DomainFocus,
		TemporalWindow:      time.Duration(c.TemporalWindowSeconds) * time.Second,
		ConfidenceThreshold: c.ConfidenceThreshold,
		ConflictPolicy:      ConflictPolicy(c.ConflictPolicy),
		Strategy:            FusionStrategy(c.Strategy),
		Preferences:         c.Preferences,
	}
}

// AuthTokenRequest exchanges an API key for a bearer token.
type AuthTokenRequest struct {
	APIKey   string    `json:"api_key"`
	ClientID string    `json:"client_id"`
	UserID   uuid.UUID `json:"user_id,omitempty"`
}

// AuthTokenResponse returns the minted bearer token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
