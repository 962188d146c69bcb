// Package resultcache provides deterministic memoization of computation
// results with bounded memory and freshness guarantees.
//
// # Architecture
//
// The cache is a generic, concurrency-safe map from request fingerprints to
// stored results. A fingerprint is derived by canonically serializing
// (category, payload) and hashing the bytes, so structurally equal payloads
// always map to the same entry regardless of construction order.
//
// Freshness is enforced two ways:
//   - lazily: an expired entry encountered on read is deleted and counted
//     as a miss
//   - eagerly: a background sweep deletes expired entries on a fixed
//     interval, bounding memory held by entries that are never read again
//
// Capacity is enforced by LRU eviction: when the cache is full and a new key
// arrives, the entry with the oldest last access is removed. Only capacity
// eviction increments the eviction counter; TTL expiry does not.
//
// # Usage
//
//	cache := resultcache.New[Analysis](resultcache.Config{
//	    MaxSize:    500,
//	    DefaultTTL: 10 * time.Minute,
//	    TTLByCategory: map[core.Category]time.Duration{
//	        core.CategoryForecast: time.Minute,
//	    },
//	}, logger)
//	defer cache.Close()
//
//	if v, ok := cache.Get(core.CategoryForecast, payload); ok {
//	    return v, nil
//	}
//	v, err := compute(ctx, payload)
//	if err == nil {
//	    cache.Set(core.CategoryForecast, payload, v)
//	}
//
// Lookups never fail: a Get is always either a hit or a miss, and Set and
// the invalidation operations are total.
package resultcache
