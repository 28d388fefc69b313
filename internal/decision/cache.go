package decision

import (
	"container/list"
	"sync"
	"time"

	"github.com/crewline/foreman/internal/model"
)

// Operation names carried on decisions, cache keys, and events.
const (
	OpPrioritize = "prioritize"
	OpNextTask   = "next_task"
	OpPredict    = "predict"
	OpResolve    = "resolve_conflict"
)

// Decision sources reported on events and stats.
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
	SourceCache    = "cache"
)

// Decision is the envelope every engine operation returns. Exactly one of
// Tasks, Prediction, or Resolution carries the payload, depending on the
// operation.
type Decision struct {
	ID           string                    `yaml:"id" json:"id"`
	Operation    string                    `yaml:"operation" json:"operation"`
	CreatedAt    time.Time                 `yaml:"created_at" json:"created_at"`
	Tasks        []model.Task              `yaml:"tasks,omitempty" json:"tasks,omitempty"`
	Prediction   *model.TaskPrediction     `yaml:"prediction,omitempty" json:"prediction,omitempty"`
	Resolution   *model.ConflictResolution `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	Confidence   float64                   `yaml:"confidence" json:"confidence"`
	Reasoning    string                    `yaml:"reasoning" json:"reasoning"`
	FallbackUsed bool                      `yaml:"fallback_used" json:"fallback_used"`
	CacheHit     bool                      `yaml:"cache_hit" json:"cache_hit"`
}

// Source names where the decision came from.
func (d *Decision) Source() string {
	if d.CacheHit {
		return SourceCache
	}
	if d.FallbackUsed {
		return SourceFallback
	}
	return SourcePrimary
}

// clone copies the decision so cached values stay isolated from callers.
func (d *Decision) clone() *Decision {
	cp := *d
	if d.Tasks != nil {
		cp.Tasks = make([]model.Task, len(d.Tasks))
		copy(cp.Tasks, d.Tasks)
	}
	if d.Prediction != nil {
		pred := *d.Prediction
		if d.Prediction.RiskFactors != nil {
			pred.RiskFactors = make([]string, len(d.Prediction.RiskFactors))
			copy(pred.RiskFactors, d.Prediction.RiskFactors)
		}
		if d.Prediction.RecommendedActions != nil {
			pred.RecommendedActions = make([]string, len(d.Prediction.RecommendedActions))
			copy(pred.RecommendedActions, d.Prediction.RecommendedActions)
		}
		cp.Prediction = &pred
	}
	if d.Resolution != nil {
		res := *d.Resolution
		cp.Resolution = &res
	}
	return &cp
}

// Cache is a thread-safe decision cache with per-entry TTL and
// insertion-order eviction. When the cache is full the entry inserted
// earliest is dropped first. Overwriting an existing key keeps its
// original insertion position.
type Cache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = oldest insertion
	maxEntries int
	ttl        time.Duration

	hits      uint64
	misses    uint64
	evictions uint64

	onEvict func(key, reason string)
}

// cacheEntry represents an entry in the cache
type cacheEntry struct {
	key       string
	decision  *Decision
	expiresAt time.Time
}

// NewCache creates a new decision cache.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTLSec * time.Second
	}
	return &Cache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// SetEvictFunc registers a callback invoked whenever an entry is dropped.
// The reason is either "capacity" or "expired".
func (c *Cache) SetEvictFunc(fn func(key, reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get retrieves a copy of the cached decision, or nil. An entry past its
// TTL is evicted on observation.
func (c *Cache) Get(key string) *Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.misses++
		return nil
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem, "expired")
		c.misses++
		return nil
	}

	c.hits++
	return entry.decision.clone()
}

// Put stores a decision. An existing key is updated in place so its
// insertion position, and therefore its eviction order, is preserved.
func (c *Cache) Put(key string, d *Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		entry := elem.Value.(*cacheEntry)
		entry.decision = d
		entry.expiresAt = time.Now().Add(c.ttl)
		return
	}

	entry := &cacheEntry{
		key:       key,
		decision:  d,
		expiresAt: time.Now().Add(c.ttl),
	}
	elem := c.order.PushBack(entry)
	c.items[key] = elem

	for c.order.Len() > c.maxEntries {
		c.removeElement(c.order.Front(), "capacity")
	}
}

// ClearExpired sweeps out all entries past their TTL and reports how many
// were dropped.
func (c *Cache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*cacheEntry)
		if now.After(entry.expiresAt) {
			c.removeElement(elem, "expired")
			removed++
		}
		elem = next
	}
	return removed
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order = list.New()
}

// Resize updates capacity and TTL, evicting oldest entries if the cache
// is now over capacity. The new TTL applies to subsequent insertions.
func (c *Cache) Resize(maxEntries int, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if maxEntries > 0 {
		c.maxEntries = maxEntries
	}
	if ttl > 0 {
		c.ttl = ttl
	}
	for c.order.Len() > c.maxEntries {
		c.removeElement(c.order.Front(), "capacity")
	}
}

// removeElement removes an element from the cache. Callers hold the lock.
func (c *Cache) removeElement(elem *list.Element, reason string) {
	c.order.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(entry.key, reason)
	}
}

// Len returns the current number of entries in the cache.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Entries:    c.order.Len(),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Entries    int
	MaxEntries int
	Hits       uint64
	Misses     uint64
	Evictions  uint64
}
