package resultcache

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/predictlab/prediction-gate/pkg/core"
)

func newTestCache(t *testing.T, cfg Config) (*Cache[string], *testingclock.FakeClock) {
	t.Helper()
	fc := testingclock.NewFakeClock(time.Unix(1_700_000_000, 0))
	cfg.Clock = fc
	c := New[string](cfg, logr.Discard())
	t.Cleanup(c.Close)
	return c, fc
}

func payload(series string) map[string]any {
	return map[string]any{"series": series, "window": map[string]any{"from": 0, "to": 60}}
}

func TestGetMissThenHit(t *testing.T) {
	c, _ := newTestCache(t, Config{MaxSize: 10, DefaultTTL: time.Minute})

	if _, ok := c.Get(core.CategoryTrend, payload("cpu")); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set(core.CategoryTrend, payload("cpu"), "rising")

	got, ok := c.Get(core.CategoryTrend, payload("cpu"))
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got != "rising" {
		t.Errorf("Get() = %q, want %q", got, "rising")
	}
}

func TestTTLBoundary(t *testing.T) {
	ttl := time.Minute
	c, fc := newTestCache(t, Config{MaxSize: 10, DefaultTTL: ttl})
	c.Set(core.CategoryTrend, payload("cpu"), "rising")

	fc.Step(ttl - time.Millisecond)
	if _, ok := c.Get(core.CategoryTrend, payload("cpu")); !ok {
		t.Error("entry just inside its TTL should be a hit")
	}

	fc.Step(2 * time.Millisecond)
	if _, ok := c.Get(core.CategoryTrend, payload("cpu")); ok {
		t.Error("entry past its TTL should be a miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on read, still have %d entries", c.Len())
	}
}

func TestPerCategoryTTLOverride(t *testing.T) {
	c, fc := newTestCache(t, Config{
		MaxSize:    10,
		DefaultTTL: time.Hour,
		TTLByCategory: map[core.Category]time.Duration{
			core.CategoryForecast: time.Second,
		},
	})
	c.Set(core.CategoryForecast, payload("cpu"), "short lived")
	c.Set(core.CategoryTrend, payload("cpu"), "long lived")

	fc.Step(2 * time.Second)

	if _, ok := c.Get(core.CategoryForecast, payload("cpu")); ok {
		t.Error("forecast entry should have expired under its category TTL")
	}
	if _, ok := c.Get(core.CategoryTrend, payload("cpu")); !ok {
		t.Error("trend entry should still be live under the default TTL")
	}
}

func TestLRUEviction(t *testing.T) {
	c, fc := newTestCache(t, Config{MaxSize: 3, DefaultTTL: time.Hour})

	c.Set(core.CategoryTrend, payload("a"), "a")
	fc.Step(time.Second)
	c.Set(core.CategoryTrend, payload("b"), "b")
	fc.Step(time.Second)
	c.Set(core.CategoryTrend, payload("c"), "c")
	fc.Step(time.Second)

	// Refresh "a" so "b" becomes the least recently accessed.
	if _, ok := c.Get(core.CategoryTrend, payload("a")); !ok {
		t.Fatal("expected hit for a")
	}
	fc.Step(time.Second)

	c.Set(core.CategoryTrend, payload("d"), "d")

	if _, ok := c.Get(core.CategoryTrend, payload("b")); ok {
		t.Error("b should have been evicted as least recently accessed")
	}
	for _, s := range []string{"a", "c", "d"} {
		if _, ok := c.Get(core.CategoryTrend, payload(s)); !ok {
			t.Errorf("%s should have survived eviction", s)
		}
	}
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c, _ := newTestCache(t, Config{MaxSize: 2, DefaultTTL: time.Hour})
	c.Set(core.CategoryTrend, payload("a"), "a1")
	c.Set(core.CategoryTrend, payload("b"), "b")
	c.Set(core.CategoryTrend, payload("a"), "a2")

	got, ok := c.Get(core.CategoryTrend, payload("a"))
	require.True(t, ok)
	assert.Equal(t, "a2", got)
	_, ok = c.Get(core.CategoryTrend, payload("b"))
	assert.True(t, ok, "overwriting an existing key must not evict")
	assert.Equal(t, uint64(0), c.Stats().Evictions)
}

func TestOverwriteResetsTTL(t *testing.T) {
	ttl := time.Minute
	c, fc := newTestCache(t, Config{MaxSize: 10, DefaultTTL: ttl})
	c.Set(core.CategoryTrend, payload("a"), "old")

	fc.Step(50 * time.Second)
	c.Set(core.CategoryTrend, payload("a"), "new")

	fc.Step(30 * time.Second)
	got, ok := c.Get(core.CategoryTrend, payload("a"))
	require.True(t, ok, "overwrite should restart the TTL window")
	assert.Equal(t, "new", got)
}

func TestHitRateBookkeeping(t *testing.T) {
	c, _ := newTestCache(t, Config{MaxSize: 10, DefaultTTL: time.Hour})

	for _, s := range []string{"a", "b", "c"} {
		c.Get(core.CategoryTrend, payload(s)) // 3 misses
	}
	c.Set(core.CategoryTrend, payload("a"), "a")
	for i := 0; i < 7; i++ {
		if _, ok := c.Get(core.CategoryTrend, payload("a")); !ok {
			t.Fatal("expected hit")
		}
	}

	s := c.Stats()
	assert.Equal(t, uint64(7), s.Hits)
	assert.Equal(t, uint64(3), s.Misses)
	assert.InDelta(t, 0.7, s.HitRate, 1e-9)
}

func TestInvalidateModes(t *testing.T) {
	c, _ := newTestCache(t, Config{MaxSize: 10, DefaultTTL: time.Hour})
	c.Set(core.CategoryTrend, payload("a"), "a")
	c.Set(core.CategoryTrend, payload("b"), "b")
	c.Set(core.CategoryAnomaly, payload("a"), "x")

	assert.Equal(t, 1, c.Invalidate(core.CategoryTrend, payload("a")))
	assert.Equal(t, 0, c.Invalidate(core.CategoryTrend, payload("a")))

	assert.Equal(t, 1, c.InvalidateCategory(core.CategoryTrend))
	assert.Equal(t, 0, c.InvalidateCategory(core.CategoryForecast))

	assert.Equal(t, 1, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestBackgroundSweep(t *testing.T) {
	c, fc := newTestCache(t, Config{
		MaxSize:       10,
		DefaultTTL:    time.Second,
		SweepInterval: 5 * time.Second,
	})
	c.Set(core.CategoryTrend, payload("a"), "a")
	c.Set(core.CategoryTrend, payload("b"), "b")
	require.Equal(t, 2, c.Len())

	// Wait for the sweep goroutine to arm its ticker before stepping time.
	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
	fc.Step(5 * time.Second)

	require.Eventually(t, func() bool { return c.Len() == 0 },
		time.Second, time.Millisecond, "sweep should remove expired entries without reads")

	// Sweeps are not evictions and not misses.
	s := c.Stats()
	assert.Equal(t, uint64(0), s.Evictions)
	assert.Equal(t, uint64(0), s.Misses)
}

func TestMemoryEstimateTracksEntries(t *testing.T) {
	c, _ := newTestCache(t, Config{MaxSize: 10, DefaultTTL: time.Hour})
	require.Equal(t, uint64(0), c.Stats().MemoryBytes)

	c.Set(core.CategoryTrend, payload("a"), "a")
	withOne := c.Stats().MemoryBytes
	assert.Greater(t, withOne, uint64(0))

	c.Clear()
	assert.Equal(t, uint64(0), c.Stats().MemoryBytes)
}
