package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-health/tessera/internal/model"
)

// cacheEntry is one cached fused insight with its expiry and priority tag.
type cacheEntry struct {
	value     model.FusedInsight
	priority  string
	expiresAt time.Time
}

// userHistory is one user's bounded history ring. Its mutex makes the
// append-then-trim sequence atomic per user; different users hold
// different locks and never contend.
type userHistory struct {
	mu    sync.Mutex
	items []model.FusedInsight // oldest first
}

// Memory is an in-process Store. A background goroutine sweeps expired
// cache entries every minute; call Close to stop it.
type Memory struct {
	mu    sync.Mutex
	cache map[string]cacheEntry

	usersMu sync.Mutex
	users   map[uuid.UUID]*userHistory

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemory creates an in-process store.
func NewMemory() *Memory {
	m := &Memory{
		cache: make(map[string]cacheEntry),
		users: make(map[uuid.UUID]*userHistory),
		done:  make(chan struct{}),
	}
	go m.sweep()
	return m
}

// SaveFused writes the insight to the cache under fusion:fused:<id>.
func (m *Memory) SaveFused(_ context.Context, fi model.FusedInsight, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[fi.CacheKey()] = cacheEntry{
		value:     fi,
		priority:  PriorityHigh,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// GetFused looks up a cached insight; expired entries are treated as absent.
func (m *Memory) GetFused(_ context.Context, id uuid.UUID) (model.FusedInsight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache["fusion:fused:"+id.String()]
	if !ok || time.Now().After(e.expiresAt) {
		return model.FusedInsight{}, ErrNotFound
	}
	return e.value, nil
}

// AppendHistory appends one entry and trims the user's ring to HistoryCap,
// oldest evicted first.
func (m *Memory) AppendHistory(_ context.Context, userID uuid.UUID, fi model.FusedInsight) error {
	h := m.historyFor(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, fi)
	if excess := len(h.items) - HistoryCap; excess > 0 {
		h.items = append([]model.FusedInsight(nil), h.items[excess:]...)
	}
	return nil
}

// History returns up to limit entries, newest first.
func (m *Memory) History(_ context.Context, userID uuid.UUID, limit int) ([]model.FusedInsight, error) {
	if limit <= 0 || limit > HistoryCap {
		limit = HistoryCap
	}
	h := m.historyFor(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.items)
	if n > limit {
		n = limit
	}
	out := make([]model.FusedInsight, n)
	for i := 0; i < n; i++ {
		out[i] = h.items[len(h.items)-1-i]
	}
	return out, nil
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *Memory) historyFor(userID uuid.UUID) *userHistory {
	m.usersMu.Lock()
	defer m.usersMu.Unlock()
	h, ok := m.users[userID]
	if !ok {
		h = &userHistory{}
		m.users[userID] = h
	}
	return h
}

// sweep evicts expired cache entries once a minute.
func (m *Memory) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for key, e := range m.cache {
				if now.After(e.expiresAt) {
					delete(m.cache, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
