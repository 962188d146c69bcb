/*
Copyright 2025 The prediction-gate Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package resultcache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/predictlab/prediction-gate/internal/logging"
	"github.com/predictlab/prediction-gate/pkg/core"
)

const (
	// DefaultMaxSize bounds the entry count when none is configured.
	DefaultMaxSize = 500

	// DefaultTTL applies to categories without an override.
	DefaultTTL = 10 * time.Minute

	// DefaultSweepInterval is the cadence of the background expiry sweep.
	DefaultSweepInterval = 30 * time.Second

	// entryOverheadBytes is a flat per-entry bookkeeping estimate added to
	// the serialized payload size when reporting the memory footprint.
	entryOverheadBytes = 160
)

// Config holds construction parameters for a Cache.
type Config struct {
	// MaxSize is the maximum number of entries. <= 0 selects DefaultMaxSize.
	MaxSize int

	// DefaultTTL applies to categories absent from TTLByCategory.
	// <= 0 selects DefaultTTL.
	DefaultTTL time.Duration

	// TTLByCategory overrides the default TTL per category.
	TTLByCategory map[core.Category]time.Duration

	// SweepInterval is the cadence of the background expiry sweep.
	// <= 0 selects DefaultSweepInterval.
	SweepInterval time.Duration

	// Clock supplies time and tickers; nil selects the real clock.
	Clock clock.WithTicker
}

func (c *Config) withDefaults() {
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
}

// Stats is a point-in-time snapshot of cache bookkeeping. Hits and misses
// accumulate over the cache's lifetime; sweeps and evictions do not reset
// them.
type Stats struct {
	Entries     int
	Hits        uint64
	Misses      uint64
	HitRate     float64
	Evictions   uint64
	MemoryBytes uint64
}

// entry is the value stored in the LRU list elements. The key is kept here
// because eviction starts from list nodes.
type entry[T any] struct {
	key            string
	category       core.Category
	result         T
	createdAt      time.Time
	ttl            time.Duration
	accessCount    uint64
	lastAccessedAt time.Time
	payloadBytes   int
}

// Cache is a concurrency-safe memoization store for computation results.
// A map gives O(1) fingerprint lookup and a doubly-linked list maintains
// recency order: front is most recently accessed, back is the eviction
// candidate.
//
// Cache owns its sweep goroutine. Call Close to stop it.
type Cache[T any] struct {
	cfg Config
	log logr.Logger

	mu           sync.Mutex
	items        map[string]*list.Element
	lru          *list.List
	hits         uint64
	misses       uint64
	evictions    uint64
	payloadBytes uint64
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Cache and starts its background sweep.
func New[T any](cfg Config, log logr.Logger) *Cache[T] {
	cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache[T]{
		cfg:    cfg,
		log:    log.WithName("resultcache"),
		items:  make(map[string]*list.Element),
		lru:    list.New(),
		ctx:    ctx,
		cancel: cancel,
	}
	c.wg.Add(1)
	go c.sweepLoop()
	return c
}

// Close stops the background sweep. The cache remains readable afterwards;
// only the periodic expiry stops.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// TTLFor returns the effective TTL for a category.
func (c *Cache[T]) TTLFor(category core.Category) time.Duration {
	if ttl, ok := c.cfg.TTLByCategory[category]; ok {
		return ttl
	}
	return c.cfg.DefaultTTL
}

// Get looks up the result stored for (category, payload). An entry past its
// TTL is deleted and reported as a miss. A hit refreshes the entry's recency
// and access bookkeeping.
func (c *Cache[T]) Get(category core.Category, payload any) (T, bool) {
	var zero T
	key, _, err := Fingerprint(category, payload)
	if err != nil {
		c.log.V(logging.DEBUG).Info("unfingerprintable payload treated as miss",
			"category", category, "error", err)
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return zero, false
	}

	now := c.cfg.Clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*entry[T])
	if now.Sub(e.createdAt) > e.ttl {
		c.removeLocked(el)
		c.misses++
		return zero, false
	}

	e.accessCount++
	e.lastAccessedAt = now
	c.lru.MoveToFront(el)
	c.hits++
	return e.result, true
}

// Set stores a result for (category, payload), overwriting any existing
// entry. When the cache is full and the key is new, the least recently
// accessed entry is evicted first.
func (c *Cache[T]) Set(category core.Category, payload any, result T) {
	key, size, err := Fingerprint(category, payload)
	if err != nil {
		c.log.V(logging.DEBUG).Info("unfingerprintable payload not cached",
			"category", category, "error", err)
		return
	}

	now := c.cfg.Clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[T])
		c.payloadBytes -= uint64(e.payloadBytes)
		e.result = result
		e.createdAt = now
		e.ttl = c.TTLFor(category)
		e.accessCount = 0
		e.lastAccessedAt = now
		e.payloadBytes = size
		c.payloadBytes += uint64(size)
		c.lru.MoveToFront(el)
		return
	}

	if len(c.items) >= c.cfg.MaxSize {
		if back := c.lru.Back(); back != nil {
			evicted := back.Value.(*entry[T])
			c.removeLocked(back)
			c.evictions++
			c.log.V(logging.DEBUG).Info("evicted least recently used entry",
				"key", evicted.key, "category", evicted.category)
		}
	}

	e := &entry[T]{
		key:            key,
		category:       category,
		result:         result,
		createdAt:      now,
		ttl:            c.TTLFor(category),
		lastAccessedAt: now,
		payloadBytes:   size,
	}
	c.items[key] = c.lru.PushFront(e)
	c.payloadBytes += uint64(size)
}

// Invalidate removes the exact entry for (category, payload). It returns the
// number of entries removed (0 or 1).
func (c *Cache[T]) Invalidate(category core.Category, payload any) int {
	key, _, err := Fingerprint(category, payload)
	if err != nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
		return 1
	}
	return 0
}

// InvalidateCategory removes every entry of the given category and returns
// the count removed.
func (c *Cache[T]) InvalidateCategory(category core.Category) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry[T]).category == category {
			c.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

// Clear removes all entries and returns the count removed. Hit and miss
// counters are unaffected.
func (c *Cache[T]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := len(c.items)
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.payloadBytes = 0
	return removed
}

// Len returns the number of stored entries, including entries that have
// expired but not yet been swept.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of lifetime cache bookkeeping.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Entries:     len(c.items),
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		MemoryBytes: c.payloadBytes + uint64(len(c.items))*entryOverheadBytes,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *Cache[T]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[T])
	delete(c.items, e.key)
	c.lru.Remove(el)
	c.payloadBytes -= uint64(e.payloadBytes)
}

// sweepLoop deletes expired entries on a fixed interval, independent of lazy
// expiry on read.
func (c *Cache[T]) sweepLoop() {
	defer c.wg.Done()
	ticker := c.cfg.Clock.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C():
			if n := c.sweep(); n > 0 {
				c.log.V(logging.DEBUG).Info("swept expired entries", "count", n)
			}
		}
	}
}

func (c *Cache[T]) sweep() int {
	now := c.cfg.Clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry[T])
		if now.Sub(e.createdAt) > e.ttl {
			c.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}
