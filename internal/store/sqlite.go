package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/tessera-health/tessera/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS fused_cache (
	cache_key  TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	priority   TEXT NOT NULL DEFAULT 'high',
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fused_cache_expires ON fused_cache (expires_at);

CREATE TABLE IF NOT EXISTS fusion_history (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	fused_id   TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fusion_history_user ON fusion_history (user_id, seq DESC);
`

// SQLite is an embedded Store for single-node deployments. SQLite allows a
// single writer, so all writes serialize behind one mutex.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger

	writeMu sync.Mutex
}

// NewSQLite opens (creating if necessary) an embedded store at path.
// Use ":memory:" for an ephemeral store.
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create sqlite schema: %w", err)
	}
	return &SQLite{db: db, logger: logger}, nil
}

// SaveFused upserts the cache row under fusion:fused:<id>.
func (s *SQLite) SaveFused(ctx context.Context, fi model.FusedInsight, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	payload, err := json.Marshal(fi)
	if err != nil {
		return fmt.Errorf("store: marshal fused insight: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fused_cache (cache_key, payload, priority, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE
		SET payload = excluded.payload, expires_at = excluded.expires_at
	`, fi.CacheKey(), string(payload), PriorityHigh, time.Now().Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("store: save fused: %w", err)
	}
	return nil
}

// GetFused reads an unexpired cache row by id.
func (s *SQLite) GetFused(ctx context.Context, id uuid.UUID) (model.FusedInsight, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM fused_cache
		WHERE cache_key = ? AND expires_at > ?
	`, "fusion:fused:"+id.String(), time.Now().Unix()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FusedInsight{}, ErrNotFound
	}
	if err != nil {
		return model.FusedInsight{}, fmt.Errorf("store: get fused: %w", err)
	}
	var fi model.FusedInsight
	if err := json.Unmarshal([]byte(payload), &fi); err != nil {
		return model.FusedInsight{}, fmt.Errorf("store: unmarshal fused: %w", err)
	}
	return fi, nil
}

// AppendHistory inserts and trims within one transaction; the write mutex
// makes the sequence atomic across goroutines.
func (s *SQLite) AppendHistory(ctx context.Context, userID uuid.UUID, fi model.FusedInsight) error {
	payload, err := json.Marshal(fi)
	if err != nil {
		return fmt.Errorf("store: marshal history entry: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fusion_history (user_id, fused_id, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, userID.String(), fi.ID.String(), string(payload), fi.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("store: append history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM fusion_history
		WHERE user_id = ? AND seq NOT IN (
			SELECT seq FROM fusion_history
			WHERE user_id = ?
			ORDER BY seq DESC
			LIMIT ?
		)
	`, userID.String(), userID.String(), HistoryCap); err != nil {
		return fmt.Errorf("store: trim history: %w", err)
	}
	return tx.Commit()
}

// History returns up to limit entries for the user, newest first.
func (s *SQLite) History(ctx context.Context, userID uuid.UUID, limit int) ([]model.FusedInsight, error) {
	if limit <= 0 || limit > HistoryCap {
		limit = HistoryCap
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM fusion_history
		WHERE user_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	defer rows.Close()

	var out []model.FusedInsight
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		var fi model.FusedInsight
		if err := json.Unmarshal([]byte(payload), &fi); err != nil {
			return nil, fmt.Errorf("store: unmarshal history: %w", err)
		}
		out = append(out, fi)
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
