package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-health/tessera/internal/model"
)

func newFused(userID uuid.UUID) model.FusedInsight {
	return model.FusedInsight{
		ID:              uuid.New(),
		UnifiedContent:  "unified",
		ConfidenceScore: 0.8,
		CreatedAt:       time.Now(),
		UserID:          userID,
	}
}

func TestMemorySaveAndGetFused(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	fi := newFused(uuid.New())
	require.NoError(t, m.SaveFused(ctx, fi, time.Minute))

	got, err := m.GetFused(ctx, fi.ID)
	require.NoError(t, err)
	assert.Equal(t, fi.ID, got.ID)
	assert.Equal(t, fi.UnifiedContent, got.UnifiedContent)
}

func TestMemoryGetFusedMissing(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	_, err := m.GetFused(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGetFusedExpired(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	fi := newFused(uuid.New())
	require.NoError(t, m.SaveFused(ctx, fi, time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, err := m.GetFused(ctx, fi.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryHistoryCapEvictsOldest(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()
	userID := uuid.New()

	ids := make([]uuid.UUID, 0, HistoryCap+1)
	for i := 0; i < HistoryCap+1; i++ {
		fi := newFused(userID)
		fi.UnifiedContent = fmt.Sprintf("entry %d", i)
		ids = append(ids, fi.ID)
		require.NoError(t, m.AppendHistory(ctx, userID, fi))
	}

	history, err := m.History(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, history, HistoryCap)

	// Newest first; the very first append fell off the ring.
	assert.Equal(t, ids[HistoryCap], history[0].ID)
	assert.Equal(t, ids[1], history[len(history)-1].ID)
	for _, fi := range history {
		assert.NotEqual(t, ids[0], fi.ID)
	}
}

func TestMemoryHistoryLimit(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 10; i++ {
		require.NoError(t, m.AppendHistory(ctx, userID, newFused(userID)))
	}

	history, err := m.History(ctx, userID, 3)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestMemoryHistoryIsolatedPerUser(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, m.AppendHistory(ctx, alice, newFused(alice)))

	history, err := m.History(ctx, bob, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryConcurrentAppends(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()
	userID := uuid.New()

	const writers = 8
	const perWriter = 20

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = m.AppendHistory(ctx, userID, newFused(userID))
			}
		}()
	}
	wg.Wait()

	// 160 appends against a cap of 50: the ring holds exactly the cap.
	history, err := m.History(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, history, HistoryCap)
}

func TestMemoryCloseIdempotent(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
