package store_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-health/tessera/internal/model"
	"github.com/tessera-health/tessera/internal/store"
	"github.com/tessera-health/tessera/internal/testutil"
)

var (
	pgOnce  sync.Once
	pgStore *store.Postgres
	pgErr   error
)

// newPostgresStore lazily starts one shared Postgres container for the
// integration tests in this file. The in-memory and SQLite tests in this
// package never touch Docker; set TESSERA_SKIP_INTEGRATION to skip these
// tests explicitly, and a machine without Docker skips them on its own.
func newPostgresStore(t *testing.T) *store.Postgres {
	t.Helper()
	if os.Getenv("TESSERA_SKIP_INTEGRATION") != "" {
		t.Skip("TESSERA_SKIP_INTEGRATION is set")
	}
	pgOnce.Do(func() {
		tc, err := testutil.StartPostgres()
		if err != nil {
			pgErr = err
			return
		}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		pgStore, pgErr = tc.NewTestStore(context.Background(), logger)
	})
	if pgErr != nil {
		t.Skipf("postgres container unavailable: %v", pgErr)
	}
	return pgStore
}

func pgFused(userID uuid.UUID) model.FusedInsight {
	return model.FusedInsight{
		ID:                 uuid.New(),
		UnifiedContent:     "unified content",
		ContributingAgents: []model.AgentRole{model.AgentSleep, model.AgentRecovery},
		FusionMethod:       "weighted_average",
		ConfidenceScore:    0.85,
		ConsensusLevel:     0.9,
		MetaInsights:       []string{"Fusion completed across the available analyses."},
		Recommendations:    []string{"Keep a consistent bedtime"},
		DataSources:        []string{"sleep_analysis", "recovery_analysis"},
		CreatedAt:          time.Now().UTC().Truncate(time.Microsecond),
		UserID:             userID,
	}
}

func TestPostgresSaveAndGetFused(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()
	fi := pgFused(uuid.New())

	require.NoError(t, st.SaveFused(ctx, fi, time.Minute))

	got, err := st.GetFused(ctx, fi.ID)
	require.NoError(t, err)
	assert.Equal(t, fi.ID, got.ID)
	assert.Equal(t, fi.UnifiedContent, got.UnifiedContent)
	assert.Equal(t, fi.ContributingAgents, got.ContributingAgents)
	assert.InDelta(t, fi.ConfidenceScore, got.ConfidenceScore, 1e-9)
}

func TestPostgresSaveFusedUpserts(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()
	fi := pgFused(uuid.New())
	require.NoError(t, st.SaveFused(ctx, fi, time.Minute))

	fi.UnifiedContent = "revised content"
	require.NoError(t, st.SaveFused(ctx, fi, time.Minute))

	got, err := st.GetFused(ctx, fi.ID)
	require.NoError(t, err)
	assert.Equal(t, "revised content", got.UnifiedContent)
}

func TestPostgresGetFusedMissing(t *testing.T) {
	st := newPostgresStore(t)
	_, err := st.GetFused(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresExpiredEntryNotReturned(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()
	fi := pgFused(uuid.New())
	require.NoError(t, st.SaveFused(ctx, fi, time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	_, err := st.GetFused(ctx, fi.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresHistoryCapAndOrder(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()
	userID := uuid.New()

	ids := make([]uuid.UUID, 0, store.HistoryCap+5)
	for i := 0; i < store.HistoryCap+5; i++ {
		fi := pgFused(userID)
		ids = append(ids, fi.ID)
		require.NoError(t, st.AppendHistory(ctx, userID, fi))
	}

	history, err := st.History(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, history, store.HistoryCap)

	// Newest first; the five oldest appends were trimmed.
	assert.Equal(t, ids[len(ids)-1], history[0].ID)
	assert.Equal(t, ids[5], history[len(history)-1].ID)
}

func TestPostgresHistoryEmptyUser(t *testing.T) {
	st := newPostgresStore(t)
	history, err := st.History(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPostgresConcurrentAppendsStayBounded(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()
	userID := uuid.New()

	const writers = 6
	const perWriter = 12

	var wg sync.WaitGroup
	errCh := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := st.AppendHistory(ctx, userID, pgFused(userID)); err != nil {
					errCh <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("append failed: %v", err)
	}

	history, err := st.History(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, history, store.HistoryCap)
}

func TestPostgresPurgeExpired(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()
	fi := pgFused(uuid.New())
	require.NoError(t, st.SaveFused(ctx, fi, time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	n, err := st.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}
