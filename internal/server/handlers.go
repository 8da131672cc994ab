package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-health/tessera/internal/analytics"
	"github.com/tessera-health/tessera/internal/auth"
	"github.com/tessera-health/tessera/internal/fusion"
	"github.com/tessera-health/tessera/internal/model"
	"github.com/tessera-health/tessera/internal/store"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	engine       *fusion.Engine
	analyticsSvc *analytics.Service
	store        store.Store
	jwtMgr       *auth.JWTManager
	apiKeyHash   string // Argon2id hash of the static API key; empty disables token minting
	jwtTTL       time.Duration
	logger       *slog.Logger
	version      string
}

// HandlersDeps configures Handlers.
type HandlersDeps struct {
	Engine       *fusion.Engine
	AnalyticsSvc *analytics.Service
	Store        store.Store
	JWTMgr       *auth.JWTManager
	APIKeyHash   string
	JWTTTL       time.Duration
	Logger       *slog.Logger
	Version      string
}

// NewHandlers creates the handler set.
func NewHandlers(deps HandlersDeps) *Handlers {
	return &Handlers{
		engine:       deps.Engine,
		analyticsSvc: deps.AnalyticsSvc,
		store:        deps.Store,
		jwtMgr:       deps.JWTMgr,
		apiKeyHash:   deps.APIKeyHash,
		jwtTTL:       deps.JWTTTL,
		logger:       deps.Logger,
		version:      deps.Version,
	}
}

// HandleHealth reports liveness and the running version.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// HandleAuthToken exchanges a configured API key for a bearer token.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if h.apiKeyHash == "" {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "token minting is not configured")
		return
	}
	ok, err := auth.VerifyAPIKey(req.APIKey, h.apiKeyHash)
	if err != nil || !ok {
		auth.DummyVerify()
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}
	if req.ClientID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "client_id is required")
		return
	}
	token, err := h.jwtMgr.Mint(req.ClientID, req.UserID)
	if err != nil {
		h.logger.Error("token mint failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "could not mint token")
		return
	}
	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwtTTL),
	})
}

// HandleFuse runs one fusion call.
func (h *Handlers) HandleFuse(w http.ResponseWriter, r *http.Request) {
	var req model.FuseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	fused, err := h.engine.Fuse(r.Context(), req.Insights, req.Context.ToFusionContext())
	if err != nil {
		if errors.Is(err, fusion.ErrNoInsights) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
			return
		}
		h.logger.Error("fusion failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "fusion failed")
		return
	}
	writeJSON(w, r, http.StatusOK, fused)
}

// HandleGetFused reads a cached fused insight by id.
func (h *Handlers) HandleGetFused(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("fused_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid fused_id")
		return
	}
	fused, err := h.store.GetFused(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "fused insight not found or expired")
		return
	}
	if err != nil {
		h.logger.Error("cache read failed", "error", err, "fused_id", id)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "cache read failed")
		return
	}
	writeJSON(w, r, http.StatusOK, fused)
}

// HandleAnalytics returns the per-user fusion analytics summary.
func (h *Handlers) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid user_id")
		return
	}
	if claims := ClaimsFromContext(r.Context()); claims != nil && claims.UserID != uuid.Nil && claims.UserID != userID {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "token is scoped to a different user")
		return
	}
	summary, err := h.analyticsSvc.Summary(r.Context(), userID)
	if err != nil {
		h.logger.Error("analytics failed", "error", err, "user_id", userID)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "analytics failed")
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}
