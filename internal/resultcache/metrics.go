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

import "github.com/prometheus/client_golang/prometheus"

var (
	descEntries = prometheus.NewDesc("resultcache_entries",
		"Number of entries currently stored", nil, nil)
	descHits = prometheus.NewDesc("resultcache_hits_total",
		"Lifetime cache hits", nil, nil)
	descMisses = prometheus.NewDesc("resultcache_misses_total",
		"Lifetime cache misses", nil, nil)
	descEvictions = prometheus.NewDesc("resultcache_evictions_total",
		"Capacity-triggered LRU evictions", nil, nil)
	descMemory = prometheus.NewDesc("resultcache_memory_bytes",
		"Estimated memory footprint of stored entries", nil, nil)
)

type statsCollector struct {
	stats func() Stats
}

// Collector returns a prometheus.Collector exposing the cache's statistics.
// Registration is the caller's choice; the cache works without it.
func (c *Cache[T]) Collector() prometheus.Collector {
	return &statsCollector{stats: c.Stats}
}

func (sc *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descEntries
	ch <- descHits
	ch <- descMisses
	ch <- descEvictions
	ch <- descMemory
}

func (sc *statsCollector) Collect(ch chan<- prometheus.Metric) {
	s := sc.stats()
	ch <- prometheus.MustNewConstMetric(descEntries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(descHits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(descMisses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(descEvictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(descMemory, prometheus.GaugeValue, float64(s.MemoryBytes))
}
