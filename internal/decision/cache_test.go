package decision

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewline/foreman/internal/model"
)

func testDecision(op, id string) *Decision {
	return &Decision{
		ID:         id,
		Operation:  op,
		CreatedAt:  time.Now().UTC(),
		Confidence: 0.85,
		Reasoning:  "AI-powered task prioritization",
	}
}

func TestCache_GetMiss(t *testing.T) {
	cache := NewCache(10, time.Minute)
	assert.Nil(t, cache.Get("absent"))
}

func TestCache_PutGet(t *testing.T) {
	cache := NewCache(10, time.Minute)

	d := testDecision(OpPrioritize, "dec_1756104000_00000001")
	cache.Put("k1", d)

	got := cache.Get("k1")
	require.NotNil(t, got)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.Operation, got.Operation)
}

func TestCache_GetReturnsCopy(t *testing.T) {
	cache := NewCache(10, time.Minute)

	d := testDecision(OpPrioritize, "dec_1756104000_00000001")
	d.Tasks = []model.Task{{ID: "t1", Name: "Pour foundation"}, {ID: "t2", Name: "Frame walls"}}
	cache.Put("k1", d)

	first := cache.Get("k1")
	require.NotNil(t, first)
	first.ID = "mutated"
	first.Tasks[0].Name = "mutated"

	second := cache.Get("k1")
	require.NotNil(t, second)
	assert.Equal(t, "dec_1756104000_00000001", second.ID)
	assert.NotEqual(t, "mutated", second.Tasks[0].Name)
}

func TestCache_InsertionOrderEviction(t *testing.T) {
	cache := NewCache(3, time.Minute)

	for i := 1; i <= 3; i++ {
		cache.Put(fmt.Sprintf("k%d", i), testDecision(OpPredict, fmt.Sprintf("dec_1756104000_0000000%d", i)))
	}
	require.Equal(t, 3, cache.Len())

	// Adding a fourth entry drops the earliest insertion.
	cache.Put("k4", testDecision(OpPredict, "dec_1756104000_00000004"))

	assert.Equal(t, 3, cache.Len())
	assert.Nil(t, cache.Get("k1"))
	assert.NotNil(t, cache.Get("k2"))
	assert.NotNil(t, cache.Get("k3"))
	assert.NotNil(t, cache.Get("k4"))
}

func TestCache_OverwriteKeepsInsertionPosition(t *testing.T) {
	cache := NewCache(3, time.Minute)

	cache.Put("k1", testDecision(OpPredict, "dec_1756104000_00000001"))
	cache.Put("k2", testDecision(OpPredict, "dec_1756104000_00000002"))
	cache.Put("k3", testDecision(OpPredict, "dec_1756104000_00000003"))

	// Overwriting k1 must not refresh its eviction position.
	cache.Put("k1", testDecision(OpPredict, "dec_1756104000_0000001a"))

	cache.Put("k4", testDecision(OpPredict, "dec_1756104000_00000004"))

	assert.Nil(t, cache.Get("k1"), "k1 is still the oldest insertion and must be evicted first")
	assert.NotNil(t, cache.Get("k2"))
}

func TestCache_OverwriteUpdatesValue(t *testing.T) {
	cache := NewCache(3, time.Minute)

	cache.Put("k1", testDecision(OpPredict, "dec_1756104000_00000001"))
	cache.Put("k1", testDecision(OpPredict, "dec_1756104000_0000001a"))

	got := cache.Get("k1")
	require.NotNil(t, got)
	assert.Equal(t, "dec_1756104000_0000001a", got.ID)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_LazyExpiry(t *testing.T) {
	cache := NewCache(10, 20*time.Millisecond)

	cache.Put("k1", testDecision(OpPredict, "dec_1756104000_00000001"))
	require.NotNil(t, cache.Get("k1"))

	time.Sleep(30 * time.Millisecond)

	assert.Nil(t, cache.Get("k1"))
	assert.Equal(t, 0, cache.Len(), "expired entry must be evicted when observed")
}

func TestCache_ClearExpired(t *testing.T) {
	cache := NewCache(10, 20*time.Millisecond)

	cache.Put("k1", testDecision(OpPredict, "dec_1756104000_00000001"))
	cache.Put("k2", testDecision(OpPredict, "dec_1756104000_00000002"))

	time.Sleep(30 * time.Millisecond)
	cache.Put("k3", testDecision(OpPredict, "dec_1756104000_00000003"))

	removed := cache.ClearExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, cache.Len())
	assert.NotNil(t, cache.Get("k3"))
}

func TestCache_Clear(t *testing.T) {
	cache := NewCache(10, time.Minute)

	cache.Put("k1", testDecision(OpPredict, "dec_1756104000_00000001"))
	cache.Put("k2", testDecision(OpPredict, "dec_1756104000_00000002"))

	cache.Clear()

	assert.Equal(t, 0, cache.Len())
	assert.Nil(t, cache.Get("k1"))
}

func TestCache_Resize(t *testing.T) {
	cache := NewCache(5, time.Minute)

	for i := 1; i <= 5; i++ {
		cache.Put(fmt.Sprintf("k%d", i), testDecision(OpPredict, fmt.Sprintf("dec_1756104000_0000000%d", i)))
	}

	cache.Resize(2, time.Minute)

	assert.Equal(t, 2, cache.Len())
	assert.Nil(t, cache.Get("k1"))
	assert.Nil(t, cache.Get("k2"))
	assert.Nil(t, cache.Get("k3"))
	assert.NotNil(t, cache.Get("k4"))
	assert.NotNil(t, cache.Get("k5"))
}

func TestCache_Stats(t *testing.T) {
	cache := NewCache(2, time.Minute)

	cache.Put("k1", testDecision(OpPredict, "dec_1756104000_00000001"))
	cache.Put("k2", testDecision(OpPredict, "dec_1756104000_00000002"))
	cache.Put("k3", testDecision(OpPredict, "dec_1756104000_00000003"))

	cache.Get("k2")
	cache.Get("k3")
	cache.Get("absent")

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 2, stats.MaxEntries)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Evictions)
}

func TestCache_EvictCallback(t *testing.T) {
	cache := NewCache(1, 20*time.Millisecond)

	type eviction struct {
		key    string
		reason string
	}
	var evicted []eviction
	cache.SetEvictFunc(func(key, reason string) {
		evicted = append(evicted, eviction{key, reason})
	})

	cache.Put("k1", testDecision(OpPredict, "dec_1756104000_00000001"))
	cache.Put("k2", testDecision(OpPredict, "dec_1756104000_00000002"))

	require.Len(t, evicted, 1)
	assert.Equal(t, eviction{"k1", "capacity"}, evicted[0])

	time.Sleep(30 * time.Millisecond)
	cache.Get("k2")

	require.Len(t, evicted, 2)
	assert.Equal(t, eviction{"k2", "expired"}, evicted[1])
}

func TestCache_ZeroConfigUsesDefaults(t *testing.T) {
	cache := NewCache(0, 0)

	stats := cache.Stats()
	assert.Equal(t, DefaultCacheMaxEntries, stats.MaxEntries)
}
