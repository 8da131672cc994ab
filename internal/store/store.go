// Package store persists fused insights: a short-TTL cache of each result
// plus a bounded per-user history ring used for analytics.
//
// Three implementations share the Store contract: Memory (process-local),
// Postgres (pgx pool) and SQLite (embedded, single-node deployments).
// All writes are best-effort from the engine's point of view — the fusion
// path never fails because a store write did.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-health/tessera/internal/model"
)

// HistoryCap bounds the per-user fusion history. Appending beyond the cap
// evicts the oldest entries first.
const HistoryCap = 50

// DefaultCacheTTL is the lifetime of a cached fused insight.
const DefaultCacheTTL = 7200 * time.Second

// PriorityHigh tags fused-insight cache entries for eviction ordering in
// shared caches.
const PriorityHigh = "high"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract for fused insights.
type Store interface {
	// SaveFused writes the fused insight to the cache under its
	// fusion:fused:<id> key with the given TTL.
	SaveFused(ctx context.Context, fi model.FusedInsight, ttl time.Duration) error

	// AppendHistory appends to the user's history and trims it to
	// HistoryCap entries, atomically with respect to concurrent appends
	// for the same user.
	AppendHistory(ctx context.Context, userID uuid.UUID, fi model.FusedInsight) error

	// History returns up to limit history entries for the user, newest
	// first. A user with no history yields an empty slice, not an error.
	History(ctx context.Context, userID uuid.UUID, limit int) ([]model.FusedInsight, error)

	// GetFused looks up a cached fused insight by id. Expired entries
	// report ErrNotFound.
	GetFused(ctx context.Context, id uuid.UUID) (model.FusedInsight, error)

	// Close releases the store's resources.
	Close() error
}
