package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(1, 3)
	defer l.Close()

	assert.True(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New(1, 1)
	defer l.Close()

	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-b"))
}

func TestAllowRefills(t *testing.T) {
	l := New(100, 1)
	defer l.Close()

	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))

	// At 100 tokens/s a 50ms wait refills well over one token.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, l.Allow("client-a"))
}

func TestEvictStale(t *testing.T) {
	l := New(1, 1)
	defer l.Close()

	l.Allow("client-a")
	l.mu.Lock()
	l.buckets["client-a"].lastAccess = time.Now().Add(-staleThreshold - time.Minute)
	l.mu.Unlock()

	l.evictStale()

	l.mu.Lock()
	_, ok := l.buckets["client-a"]
	l.mu.Unlock()
	assert.False(t, ok)
}

func TestCloseIdempotent(t *testing.T) {
	l := New(1, 1)
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}
