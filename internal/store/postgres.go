package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tessera-health/tessera/internal/model"
)

const (
	pgAppendRetries   = 3
	pgAppendBaseDelay = 20 * time.Millisecond
)

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects a pooled Postgres store.
func NewPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping pool: %w", err)
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// Pool returns the underlying connection pool.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

// RunMigrations executes unapplied SQL migration files from the filesystem
// in name order, tracking applied files in schema_migrations so each runs
// at most once.
func (p *Postgres) RunMigrations(ctx context.Context, migrationsFS fs.FS) error {
	if _, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("store: create schema_migrations: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := p.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("store: load applied migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: iterate migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("store: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || applied[name] {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("store: read migration %s: %w", name, err)
		}
		p.logger.Info("running migration", "file", name)
		if _, err := p.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("store: execute migration %s: %w", name, err)
		}
		if _, err := p.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, name,
		); err != nil {
			return fmt.Errorf("store: record migration %s: %w", name, err)
		}
	}
	return nil
}

// SaveFused upserts the cache row under fusion:fused:<id>.
func (p *Postgres) SaveFused(ctx context.Context, fi model.FusedInsight, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	payload, err := json.Marshal(fi)
	if err != nil {
		return fmt.Errorf("store: marshal fused insight: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO fused_cache (cache_key, payload, priority, expires_at)
		VALUES ($1, $2, $3, now() + $4)
		ON CONFLICT (cache_key) DO UPDATE
		SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at
	`, fi.CacheKey(), payload, PriorityHigh, ttl)
	if err != nil {
		return fmt.Errorf("store: save fused: %w", err)
	}
	return nil
}

// GetFused reads an unexpired cache row by id.
func (p *Postgres) GetFused(ctx context.Context, id uuid.UUID) (model.FusedInsight, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx, `
		SELECT payload FROM fused_cache
		WHERE cache_key = $1 AND expires_at > now()
	`, "fusion:fused:"+id.String()).Scan(&payload)
	if err == pgx.ErrNoRows {
		return model.FusedInsight{}, ErrNotFound
	}
	if err != nil {
		return model.FusedInsight{}, fmt.Errorf("store: get fused: %w", err)
	}
	var fi model.FusedInsight
	if err := json.Unmarshal(payload, &fi); err != nil {
		return model.FusedInsight{}, fmt.Errorf("store: unmarshal fused: %w", err)
	}
	return fi, nil
}

// AppendHistory inserts the entry and trims the user's history to
// HistoryCap rows in one transaction. The insert+trim runs under retry
// because concurrent appends for one user can deadlock on the trim delete.
func (p *Postgres) AppendHistory(ctx context.Context, userID uuid.UUID, fi model.FusedInsight) error {
	payload, err := json.Marshal(fi)
	if err != nil {
		return fmt.Errorf("store: marshal history entry: %w", err)
	}
	return withRetry(ctx, pgAppendRetries, pgAppendBaseDelay, func() error {
		return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `
				INSERT INTO fusion_history (user_id, fused_id, payload, created_at)
				VALUES ($1, $2, $3, $4)
			`, userID, fi.ID, payload, fi.CreatedAt); err != nil {
				return fmt.Errorf("store: append history: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				DELETE FROM fusion_history
				WHERE user_id = $1 AND seq NOT IN (
					SELECT seq FROM fusion_history
					WHERE user_id = $1
					ORDER BY seq DESC
					LIMIT $2
				)
			`, userID, HistoryCap); err != nil {
				return fmt.Errorf("store: trim history: %w", err)
			}
			return nil
		})
	})
}

// History returns up to limit entries for the user, newest first.
func (p *Postgres) History(ctx context.Context, userID uuid.UUID, limit int) ([]model.FusedInsight, error) {
	if limit <= 0 || limit > HistoryCap {
		limit = HistoryCap
	}
	rows, err := p.pool.Query(ctx, `
		SELECT payload FROM fusion_history
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	defer rows.Close()

	var out []model.FusedInsight
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		var fi model.FusedInsight
		if err := json.Unmarshal(payload, &fi); err != nil {
			return nil, fmt.Errorf("store: unmarshal history: %w", err)
		}
		out = append(out, fi)
	}
	return out, rows.Err()
}

// PurgeExpired deletes expired cache rows. Called opportunistically by the
// persistence worker.
func (p *Postgres) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM fused_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("store: purge expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
