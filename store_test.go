package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore(10, NewServerStats())
	s.Set("k", StringValue("v"), SetOptions{})

	res := s.Get("k")
	require.NoError(t, res.Err)
	assert.Equal(t, "v", res.Value.String)
}

func TestStore_DefaultTTLAppliesWhenSetOmitsExpiry(t *testing.T) {
	s := NewStore(10, NewServerStats()).WithDefaultTTL(20 * time.Millisecond)
	s.Set("k", StringValue("v"), SetOptions{})

	require.NoError(t, s.Get("k").Err)
	time.Sleep(50 * time.Millisecond)
	assert.Error(t, s.Get("k").Err)
}

func TestStore_ExplicitExpiryOverridesDefaultTTL(t *testing.T) {
	s := NewStore(10, NewServerStats()).WithDefaultTTL(20 * time.Millisecond)
	s.Set("k", StringValue("v"), SetOptions{HasExpiry: true, ExpireIn: time.Hour})

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Get("k").Err)
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore(10, NewServerStats())
	res := s.Get("missing")
	assert.True(t, errors.Is(res.Err, ErrKeyNotFound))
}

// S4: a key past its TTL reads as absent and is removed as a side
// effect of the read.
func TestStore_GetExpired(t *testing.T) {
	s := NewStore(10, NewServerStats())
	s.Set("k", StringValue("v"), SetOptions{HasExpiry: true, ExpireIn: time.Millisecond})
	time.Sleep(5 * time.Millisecond)

	res := s.Get("k")
	assert.True(t, errors.Is(res.Err, ErrKeyExpired))
	assert.Equal(t, 0, s.Len())
}

// Get never leaks a live reference into store-internal containers.
func TestStore_GetReturnsIndependentCopy(t *testing.T) {
	s := NewStore(10, NewServerStats())
	list := NewList()
	list.RightPush("a")
	s.Set("k", StoredValue{Tag: TypeList, List: list}, SetOptions{})

	res := s.Get("k")
	require.NoError(t, res.Err)
	res.Value.List.RightPush("b")

	again := s.Get("k")
	require.NoError(t, again.Err)
	assert.Equal(t, []string{"a"}, again.Value.List.Values())
}

// I2: the store never holds more live keys than its capacity.
func TestStore_EvictsAtCapacity(t *testing.T) {
	s := NewStore(2, NewServerStats())
	s.Set("a", StringValue("1"), SetOptions{})
	s.Set("b", StringValue("2"), SetOptions{})
	s.Set("c", StringValue("3"), SetOptions{})

	assert.Equal(t, 2, s.Len())

	res := s.Get("c")
	assert.NoError(t, res.Err)
}

// Eviction favors the untouched entry: the Get on "a" raises its
// frequency and refreshes its recency, lowering its hybrid score below
// "b"'s, so the next overflow should take "b" instead.
func TestStore_EvictionPrefersUntouchedKey(t *testing.T) {
	s := NewStore(2, NewServerStats())
	s.Set("a", StringValue("1"), SetOptions{})
	s.Set("b", StringValue("2"), SetOptions{})

	s.Get("a") // bump a's recency and frequency

	s.Set("c", StringValue("3"), SetOptions{})

	resA := s.Get("a")
	resB := s.Get("b")

	assert.NoError(t, resA.Err, "a was touched more recently and should survive")
	assert.True(t, errors.Is(resB.Err, ErrKeyNotFound), "b should have been evicted")
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(10, NewServerStats())
	s.Set("a", StringValue("1"), SetOptions{})
	s.Set("b", StringValue("2"), SetOptions{})

	count := s.Delete([]string{"a", "b", "missing"})
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, s.Len())
}

func TestStore_Invalidate(t *testing.T) {
	s := NewStore(10, NewServerStats())
	s.Set("a", StringValue("1"), SetOptions{HasExpiry: true, ExpireIn: time.Millisecond})
	s.Set("b", StringValue("2"), SetOptions{})
	time.Sleep(5 * time.Millisecond)

	removed := s.Invalidate()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())
}

func TestHybridScore_ExpiredIsAlwaysWorst(t *testing.T) {
	now := time.Now()
	expired := CacheEntry{LastAccessed: now, HasTTL: true, ExpiresAt: now.Add(-time.Second)}
	live := CacheEntry{LastAccessed: now.Add(-time.Hour), HasTTL: false}

	assert.Greater(t, hybridScore(expired, now), hybridScore(live, now))
}
