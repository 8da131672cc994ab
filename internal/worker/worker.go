// Package worker runs the best-effort persistence pipeline for fused
// insights. The engine hands results over a buffered channel and returns
// immediately; the worker performs the cache write and the history append
// with a short per-write timeout so a slow store never blocks a fusion.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tessera-health/tessera/internal/model"
	"github.com/tessera-health/tessera/internal/store"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 3 * time.Second
	purgeInterval       = time.Hour
)

// expiryPurger is implemented by stores that accumulate expired cache rows.
type expiryPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Persister buffers fused insights and writes them to the store in the
// background. Implements the engine's Persister contract.
type Persister struct {
	store        store.Store
	logger       *slog.Logger
	cacheTTL     time.Duration
	writeTimeout time.Duration
	queue        chan model.FusedInsight
	running      atomic.Bool
}

// New creates a persistence worker. While Run is active, writes queue and
// drain in the background; without it Persist writes synchronously, so
// embedders that skip Run still get cache and history.
func New(st store.Store, cacheTTL time.Duration, logger *slog.Logger) *Persister {
	if cacheTTL <= 0 {
		cacheTTL = store.DefaultCacheTTL
	}
	return &Persister{
		store:        st,
		logger:       logger,
		cacheTTL:     cacheTTL,
		writeTimeout: defaultWriteTimeout,
		queue:        make(chan model.FusedInsight, defaultQueueSize),
	}
}

// Persist hands a fused insight to the background loop without blocking.
// When the queue is full the write is dropped and logged; persistence is
// best-effort and the caller already holds a valid result. When the loop
// is not running the write happens inline instead, bounded by the usual
// per-write timeout.
func (p *Persister) Persist(fi model.FusedInsight) {
	if !p.running.Load() {
		p.write(context.Background(), fi)
		return
	}
	select {
	case p.queue <- fi:
	default:
		p.logger.Warn("persistence queue full, dropping write", "fused_id", fi.ID, "user_id", fi.UserID)
	}
}

// Run drains the queue until ctx is cancelled, purging expired cache rows
// once an hour when the store supports it.
func (p *Persister) Run(ctx context.Context) error {
	p.running.Store(true)
	defer p.running.Store(false)

	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case fi := <-p.queue:
			p.write(ctx, fi)
		case <-ticker.C:
			p.purge(ctx)
		}
	}
}

// write performs both side effects with a per-write timeout. Failures are
// logged and swallowed.
func (p *Persister) write(ctx context.Context, fi model.FusedInsight) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.writeTimeout)
	defer cancel()

	if err := p.store.SaveFused(wctx, fi, p.cacheTTL); err != nil {
		p.logger.Warn("cache write failed", "fused_id", fi.ID, "error", err)
	}
	if err := p.store.AppendHistory(wctx, fi.UserID, fi); err != nil {
		p.logger.Warn("history append failed", "fused_id", fi.ID, "user_id", fi.UserID, "error", err)
	}
}

// drain flushes writes still queued at shutdown, bounded by one final
// timeout per write.
func (p *Persister) drain() {
	for {
		select {
		case fi := <-p.queue:
			p.write(context.Background(), fi)
		default:
			return
		}
	}
}

func (p *Persister) purge(ctx context.Context) {
	purger, ok := p.store.(expiryPurger)
	if !ok {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	if n, err := purger.PurgeExpired(wctx); err != nil {
		p.logger.Warn("cache purge failed", "error", err)
	} else if n > 0 {
		p.logger.Debug("purged expired cache rows", "rows", n)
	}
}
