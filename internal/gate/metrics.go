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

package gate

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	cpuUsageDesc = prometheus.NewDesc(
		"prediction_gate_cpu_usage_percent",
		"Smoothed CPU busy percentage used for admission decisions.",
		nil, nil)
	throttlingDesc = prometheus.NewDesc(
		"prediction_gate_throttling",
		"1 while the gate is queueing new admissions, 0 otherwise.",
		nil, nil)
	queueLengthDesc = prometheus.NewDesc(
		"prediction_gate_queue_length",
		"Number of requests waiting for admission.",
		nil, nil)
	processedDesc = prometheus.NewDesc(
		"prediction_gate_processed_total",
		"Requests whose computation was started.",
		nil, nil)
	throttledDesc = prometheus.NewDesc(
		"prediction_gate_throttled_total",
		"Requests rejected by rate limit, queue capacity or queue timeout.",
		nil, nil)
	avgResponseDesc = prometheus.NewDesc(
		"prediction_gate_avg_response_ms",
		"Running average computation latency in milliseconds.",
		nil, nil)
	adjustmentsDesc = prometheus.NewDesc(
		"prediction_gate_threshold_adjustments_total",
		"Adaptive threshold changes applied.",
		nil, nil)
	thresholdDesc = prometheus.NewDesc(
		"prediction_gate_max_cpu_threshold_percent",
		"Current throttle threshold, after any adaptive tuning.",
		nil, nil)
)

type gateCollector[T any] struct {
	c *Controller[T]
}

// Collector exposes the controller counters to a Prometheus registry. Values
// are read from a single snapshot per scrape.
func (c *Controller[T]) Collector() prometheus.Collector {
	return gateCollector[T]{c: c}
}

func (gc gateCollector[T]) Describe(ch chan<- *prometheus.Desc) {
	ch <- cpuUsageDesc
	ch <- throttlingDesc
	ch <- queueLengthDesc
	ch <- processedDesc
	ch <- throttledDesc
	ch <- avgResponseDesc
	ch <- adjustmentsDesc
	ch <- thresholdDesc
}

func (gc gateCollector[T]) Collect(ch chan<- prometheus.Metric) {
	m := gc.c.Metrics()
	throttling := 0.0
	if m.Throttling {
		throttling = 1.0
	}
	ch <- prometheus.MustNewConstMetric(cpuUsageDesc, prometheus.GaugeValue, m.CPUUsage)
	ch <- prometheus.MustNewConstMetric(throttlingDesc, prometheus.GaugeValue, throttling)
	ch <- prometheus.MustNewConstMetric(queueLengthDesc, prometheus.GaugeValue, float64(m.QueueLength))
	ch <- prometheus.MustNewConstMetric(processedDesc, prometheus.CounterValue, float64(m.Processed))
	ch <- prometheus.MustNewConstMetric(throttledDesc, prometheus.CounterValue, float64(m.Throttled))
	ch <- prometheus.MustNewConstMetric(avgResponseDesc, prometheus.GaugeValue, m.AvgResponseMs)
	ch <- prometheus.MustNewConstMetric(adjustmentsDesc, prometheus.CounterValue, float64(m.ThresholdAdjustments))
	ch <- prometheus.MustNewConstMetric(thresholdDesc, prometheus.GaugeValue, m.MaxCPUThreshold)
}
