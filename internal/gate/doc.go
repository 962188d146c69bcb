// Package gate implements adaptive admission control for an expensive,
// latency-variable computation.
//
// The gate decides, per request, whether the computation runs now, waits in
// a bounded FIFO queue, or is rejected. The decision signal is the smoothed
// system CPU load: a fixed-length window of periodic samples whose mean is
// compared against a threshold. Crossing the threshold flips the controller
// into a throttling state; transitions are edge-triggered so steady load
// does not spam logs or subscribers.
//
// # Request lifecycle
//
//	Submit
//	  ├─ rate-limit policy rejects        -> ErrRateLimitExceeded
//	  ├─ not throttled, queue empty       -> compute runs inline
//	  └─ throttled or queue non-empty     -> enqueue
//	       ├─ queue at capacity           -> ErrQueueFull
//	       ├─ per-request timer fires     -> ErrQueueTimeout
//	       ├─ controller closed           -> ErrShuttingDown
//	       └─ throttling lifts            -> drained FIFO, bounded batch
//	                                         per tick, compute runs
//
// A non-empty queue forces new arrivals to queue even when not throttled,
// preserving FIFO order against head-of-line overtaking. Compute failures
// pass through to the caller unchanged; the gate never retries.
//
// # Adaptive threshold tuning
//
// When enabled, a slower loop compares the short-term CPU trend (mean of the
// newest three samples minus the mean of the three before) with queue
// pressure. A rising trend under high pressure lowers the threshold by a
// large step; a falling trend under low pressure raises it by a smaller
// step. The asymmetric steps are deliberate hysteresis against oscillation.
// Both steps and both bounds are tunables.
//
// # Observability
//
// Metrics() returns a snapshot of the controller counters; Subscribe()
// delivers snapshots on every state transition and completion over a
// buffered channel that drops rather than blocks; Collector() exposes the
// same numbers to Prometheus.
package gate
