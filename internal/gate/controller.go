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
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/predictlab/prediction-gate/internal/collector"
	"github.com/predictlab/prediction-gate/internal/logging"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxCPUThreshold  = 80.0
	DefaultMinCPUThreshold  = 30.0
	DefaultSampleInterval   = 5 * time.Second
	DefaultCPUWindowSize    = 10
	DefaultQueueMaxSize     = 100
	DefaultRequestTimeout   = 30 * time.Second
	DefaultDrainBatchSize   = 3
	DefaultDrainInterval    = 100 * time.Millisecond
	DefaultAdaptiveInterval = 30 * time.Second
	DefaultAdaptiveDownStep = 5.0
	DefaultAdaptiveUpStep   = 2.0
	DefaultAdaptiveFloor    = 60.0
	DefaultAdaptiveCeiling  = 90.0

	// trendSamples is the batch size for the short-term trend: mean of the
	// newest trendSamples minus the mean of the trendSamples before them.
	trendSamples = 3

	// Queue-pressure bands for adaptive tuning, as fractions of capacity.
	queuePressureHigh = 0.5
	queuePressureLow  = 0.25
)

// Config holds construction parameters for a Controller. The zero value
// selects all defaults.
type Config struct {
	// MaxCPUThreshold is the smoothed CPU percentage at or above which the
	// controller throttles.
	MaxCPUThreshold float64

	// MinCPUThreshold is the lowest value adaptive tuning may ever reach;
	// it also anchors validation of the adaptive bounds.
	MinCPUThreshold float64

	// SampleInterval is the CPU sampling cadence.
	SampleInterval time.Duration

	// CPUWindowSize is the number of samples in the smoothing window.
	CPUWindowSize int

	// QueueMaxSize bounds the wait queue.
	QueueMaxSize int

	// RequestTimeout is the default per-request queue wait bound.
	RequestTimeout time.Duration

	// DrainBatchSize bounds how many queued requests are dispatched per
	// drain tick, to avoid a CPU spike from mass-draining.
	DrainBatchSize int

	// DrainInterval is the pause between drain batches.
	DrainInterval time.Duration

	// AdaptiveMode enables threshold tuning.
	AdaptiveMode bool

	// AdaptiveInterval is the tuning cadence.
	AdaptiveInterval time.Duration

	// AdaptiveDownStep lowers the threshold when load is rising under
	// queue pressure. It must be at least AdaptiveUpStep (hysteresis).
	AdaptiveDownStep float64

	// AdaptiveUpStep raises the threshold when load is falling and the
	// queue is quiet.
	AdaptiveUpStep float64

	// AdaptiveFloor and AdaptiveCeiling bound the adapted threshold.
	AdaptiveFloor   float64
	AdaptiveCeiling float64

	// Clock supplies time, timers and tickers; nil selects the real clock.
	Clock clock.WithTicker
}

func (c *Config) withDefaults() {
	if c.MaxCPUThreshold <= 0 {
		c.MaxCPUThreshold = DefaultMaxCPUThreshold
	}
	if c.MinCPUThreshold <= 0 {
		c.MinCPUThreshold = DefaultMinCPUThreshold
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.CPUWindowSize <= 0 {
		c.CPUWindowSize = DefaultCPUWindowSize
	}
	if c.QueueMaxSize <= 0 {
		c.QueueMaxSize = DefaultQueueMaxSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.DrainBatchSize <= 0 {
		c.DrainBatchSize = DefaultDrainBatchSize
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = DefaultDrainInterval
	}
	if c.AdaptiveInterval <= 0 {
		c.AdaptiveInterval = DefaultAdaptiveInterval
	}
	if c.AdaptiveDownStep <= 0 {
		c.AdaptiveDownStep = DefaultAdaptiveDownStep
	}
	if c.AdaptiveUpStep <= 0 {
		c.AdaptiveUpStep = DefaultAdaptiveUpStep
	}
	if c.AdaptiveFloor <= 0 {
		c.AdaptiveFloor = DefaultAdaptiveFloor
	}
	if c.AdaptiveCeiling <= 0 {
		c.AdaptiveCeiling = DefaultAdaptiveCeiling
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
}

// Validate checks for invalid configuration values.
func (c *Config) Validate() error {
	if c.MaxCPUThreshold <= 0 || c.MaxCPUThreshold > 100 {
		return fmt.Errorf("maxCpuThreshold must be in (0, 100], got %.1f", c.MaxCPUThreshold)
	}
	if c.MinCPUThreshold < 0 || c.MinCPUThreshold >= c.MaxCPUThreshold {
		return fmt.Errorf("minCpuThreshold must be in [0, maxCpuThreshold), got %.1f", c.MinCPUThreshold)
	}
	if c.AdaptiveFloor > c.AdaptiveCeiling {
		return fmt.Errorf("adaptive floor (%.1f) must not exceed ceiling (%.1f)",
			c.AdaptiveFloor, c.AdaptiveCeiling)
	}
	if c.AdaptiveFloor < c.MinCPUThreshold {
		return fmt.Errorf("adaptive floor (%.1f) must not undercut minCpuThreshold (%.1f)",
			c.AdaptiveFloor, c.MinCPUThreshold)
	}
	if c.AdaptiveDownStep < c.AdaptiveUpStep {
		return fmt.Errorf("adaptive down step (%.1f) must be at least the up step (%.1f)",
			c.AdaptiveDownStep, c.AdaptiveUpStep)
	}
	return nil
}

// Controller gates concurrent access to the compute collaborator. See the
// package documentation for the admission model.
//
// Controller owns its sampling, draining and tuning goroutines. Call Close
// to stop them and purge the queue.
type Controller[T any] struct {
	cfg     Config
	compute ComputeFunc[T]
	source  collector.UsageSource
	policy  Policy
	clock   clock.WithTicker
	log     logr.Logger

	mu           sync.Mutex
	window       *collector.Window
	cpuUsage     float64
	maxThreshold float64
	throttling   bool
	queue        []*queued[T]
	draining     bool
	closed       bool

	processed   uint64
	throttled   uint64
	adjustments uint64
	completions uint64
	avgRespMs   float64

	subs []chan Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Controller and starts its background loops. A nil policy
// selects AllowAll.
func New[T any](cfg Config, compute ComputeFunc[T], source collector.UsageSource, policy Policy, log logr.Logger) (*Controller[T], error) {
	if compute == nil {
		return nil, fmt.Errorf("compute collaborator cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("usage source cannot be nil")
	}
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid admission config: %w", err)
	}
	if policy == nil {
		policy = AllowAll{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller[T]{
		cfg:          cfg,
		compute:      compute,
		source:       source,
		policy:       policy,
		clock:        cfg.Clock,
		log:          log.WithName("gate"),
		window:       collector.NewWindow(cfg.CPUWindowSize),
		maxThreshold: cfg.MaxCPUThreshold,
		ctx:          ctx,
		cancel:       cancel,
	}

	c.wg.Add(1)
	go c.sampleLoop()
	if cfg.AdaptiveMode {
		c.wg.Add(1)
		go c.adaptLoop()
	}
	return c, nil
}

// Submit runs the request now, parks it in the wait queue, or rejects it.
// It suspends the caller only while the request is queued; the suspension
// resolves on dispatch, timeout, caller cancellation, or shutdown.
func (c *Controller[T]) Submit(ctx context.Context, req Request) (T, error) {
	var zero T

	if !c.policy.Allow(req) {
		c.mu.Lock()
		c.throttled++
		c.mu.Unlock()
		c.notify()
		return zero, ErrRateLimitExceeded
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Timeout <= 0 {
		req.Timeout = c.cfg.RequestTimeout
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = c.clock.Now()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, ErrShuttingDown
	}

	// A non-empty queue forces queueing even when not throttled, so later
	// arrivals cannot overtake requests already waiting.
	if c.throttling || len(c.queue) > 0 {
		if len(c.queue) >= c.cfg.QueueMaxSize {
			c.throttled++
			c.mu.Unlock()
			c.notify()
			return zero, ErrQueueFull
		}
		q := &queued[T]{
			req:     req,
			done:    make(chan outcome[T], 1),
			settled: make(chan struct{}),
		}
		c.queue = append(c.queue, q)
		queueLen := len(c.queue)
		c.mu.Unlock()

		c.log.V(logging.DEBUG).Info("request queued",
			"id", req.ID, "category", req.Category, "queueLength", queueLen)
		c.notify()

		c.wg.Add(1)
		go c.watchTimeout(q)

		select {
		case out := <-q.done:
			return out.result, out.err
		case <-ctx.Done():
			c.takeOut(q)
			return zero, ctx.Err()
		}
	}
	c.mu.Unlock()

	return c.execute(ctx, req)
}

// Metrics returns a snapshot of controller state and lifetime counters.
func (c *Controller[T]) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Metrics{
		CPUUsage:             c.cpuUsage,
		Throttling:           c.throttling,
		QueueLength:          len(c.queue),
		Processed:            c.processed,
		Throttled:            c.throttled,
		AvgResponseMs:        c.avgRespMs,
		ThresholdAdjustments: c.adjustments,
		MaxCPUThreshold:      c.maxThreshold,
	}
}

// Subscribe returns a channel receiving metric snapshots on every state
// transition and completion. The channel is buffered; snapshots are dropped
// rather than blocking the controller. It is closed on Close.
func (c *Controller[T]) Subscribe() <-chan Metrics {
	ch := make(chan Metrics, 16)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

// Close stops the background loops and fails every queued request with
// ErrShuttingDown. Subsequent Submits are rejected with the same error.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	purged := c.queue
	c.queue = nil
	for _, q := range purged {
		q.removed = true
		close(q.settled)
	}
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, q := range purged {
		q.done <- outcome[T]{err: ErrShuttingDown}
	}
	for _, ch := range subs {
		close(ch)
	}

	c.cancel()
	c.wg.Wait()
	if len(purged) > 0 {
		c.log.Info("purged queued requests on shutdown", "count", len(purged))
	}
}

// execute runs the compute collaborator and records completion bookkeeping.
// Compute errors pass through unchanged.
func (c *Controller[T]) execute(ctx context.Context, req Request) (T, error) {
	c.mu.Lock()
	c.processed++
	c.mu.Unlock()

	start := c.clock.Now()
	res, err := c.compute(ctx, req)
	elapsed := c.clock.Since(start)

	c.mu.Lock()
	c.completions++
	ms := float64(elapsed) / float64(time.Millisecond)
	c.avgRespMs += (ms - c.avgRespMs) / float64(c.completions)
	c.mu.Unlock()
	c.notify()

	return res, err
}

// watchTimeout fails q with ErrQueueTimeout when its timer fires before the
// request leaves the queue. Expiry removes exactly this request; other
// queued requests are unaffected.
func (c *Controller[T]) watchTimeout(q *queued[T]) {
	defer c.wg.Done()
	timer := c.clock.NewTimer(q.req.Timeout)
	defer timer.Stop()
	select {
	case <-timer.C():
		if c.takeOut(q) {
			c.mu.Lock()
			c.throttled++
			c.mu.Unlock()
			c.log.V(logging.DEBUG).Info("queued request timed out",
				"id", q.req.ID, "category", q.req.Category, "timeout", q.req.Timeout)
			c.notify()
			q.done <- outcome[T]{err: ErrQueueTimeout}
		}
	case <-q.settled:
	}
}

// takeOut removes q from the queue if it is still waiting there. It reports
// whether the caller now owns q's completion.
func (c *Controller[T]) takeOut(q *queued[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q.removed {
		return false
	}
	for i, cand := range c.queue {
		if cand == q {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	q.removed = true
	close(q.settled)
	return true
}

// sampleLoop feeds the smoothing window on the configured cadence and
// manages throttle-state transitions.
func (c *Controller[T]) sampleLoop() {
	defer c.wg.Done()
	ticker := c.clock.NewTicker(c.cfg.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C():
			v, err := c.source.Sample(c.ctx)
			if err != nil {
				c.log.V(logging.DEBUG).Info("cpu sample failed",
					"source", c.source.Name(), "error", err)
				continue
			}
			c.observe(v)
		}
	}
}

// observe pushes one sample and recomputes the throttle state. Transitions
// are edge-triggered: logging and notification happen only when the boolean
// state flips.
func (c *Controller[T]) observe(v float64) {
	c.mu.Lock()
	c.window.Push(v)
	c.cpuUsage = c.window.Mean()
	was := c.throttling
	c.throttling = c.cpuUsage >= c.maxThreshold
	changed := c.throttling != was
	kickDrain := changed && !c.throttling && len(c.queue) > 0
	cpu, threshold, queueLen := c.cpuUsage, c.maxThreshold, len(c.queue)
	nowThrottling := c.throttling
	c.mu.Unlock()

	if !changed {
		return
	}
	if nowThrottling {
		c.log.Info("throttling activated",
			"cpu", cpu, "threshold", threshold, "queueLength", queueLen)
	} else {
		c.log.Info("throttling deactivated",
			"cpu", cpu, "threshold", threshold, "queueLength", queueLen)
	}
	c.notify()
	if kickDrain {
		c.startDrain()
	}
}

// startDrain launches the drain goroutine unless one is already running.
func (c *Controller[T]) startDrain() {
	c.mu.Lock()
	if c.draining || c.closed {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()
	c.wg.Add(1)
	go c.drainLoop()
}

// drainLoop dispatches queued requests in submission order, a bounded batch
// per tick, until the queue empties, throttling reactivates, or the
// controller closes. Batch members run sequentially so dispatch order is
// exactly submission order.
func (c *Controller[T]) drainLoop() {
	defer c.wg.Done()
	ticker := c.clock.NewTicker(c.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		batch := c.takeBatch()
		if len(batch) == 0 {
			return
		}
		for _, q := range batch {
			res, err := c.execute(c.ctx, q.req)
			q.done <- outcome[T]{result: res, err: err}
		}
		c.notify()

		select {
		case <-c.ctx.Done():
			c.mu.Lock()
			c.draining = false
			c.mu.Unlock()
			return
		case <-ticker.C():
		}
	}
}

// takeBatch removes up to DrainBatchSize requests from the head of the
// queue. It returns nil, clearing the draining flag, once draining must
// stop.
func (c *Controller[T]) takeBatch() []*queued[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.throttling || len(c.queue) == 0 {
		c.draining = false
		return nil
	}
	n := c.cfg.DrainBatchSize
	if n > len(c.queue) {
		n = len(c.queue)
	}
	batch := make([]*queued[T], n)
	copy(batch, c.queue[:n])
	c.queue = append(c.queue[:0:0], c.queue[n:]...)
	for _, q := range batch {
		q.removed = true
		close(q.settled)
	}
	return batch
}

// adaptLoop tunes the throttle threshold on a slow cadence.
func (c *Controller[T]) adaptLoop() {
	defer c.wg.Done()
	ticker := c.clock.NewTicker(c.cfg.AdaptiveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C():
			c.adapt()
		}
	}
}

// adapt applies one tuning step: a rising CPU trend under high queue
// pressure lowers the threshold by the large step; a falling trend under
// low pressure raises it by the small step. The asymmetry is hysteresis
// against oscillation.
func (c *Controller[T]) adapt() {
	c.mu.Lock()
	recent, okRecent := c.window.RecentMean(trendSamples)
	prior, okPrior := c.window.PriorMean(trendSamples)
	if !okRecent || !okPrior {
		c.mu.Unlock()
		return
	}
	trend := recent - prior
	pressure := float64(len(c.queue)) / float64(c.cfg.QueueMaxSize)
	old := c.maxThreshold
	switch {
	case trend > 0 && pressure >= queuePressureHigh:
		c.maxThreshold = math.Max(old-c.cfg.AdaptiveDownStep, c.cfg.AdaptiveFloor)
	case trend < 0 && pressure <= queuePressureLow:
		c.maxThreshold = math.Min(old+c.cfg.AdaptiveUpStep, c.cfg.AdaptiveCeiling)
	}
	changed := c.maxThreshold != old
	if changed {
		c.adjustments++
	}
	updated := c.maxThreshold
	c.mu.Unlock()

	if changed {
		c.log.Info("adaptive threshold adjusted",
			"from", old, "to", updated, "trend", trend, "queuePressure", pressure)
		c.notify()
	}
}

// notify fans a metrics snapshot out to subscribers without blocking.
func (c *Controller[T]) notify() {
	m := c.Metrics()
	c.mu.Lock()
	subs := c.subs
	c.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- m:
		default:
		}
	}
}
