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
	"errors"
	"time"

	"github.com/predictlab/prediction-gate/pkg/core"
)

// Terminal admission errors. None of these is retried internally; retry
// policy belongs to the caller.
var (
	// ErrRateLimitExceeded rejects a request before queueing because its
	// category has exhausted the configured per-minute allowance.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrQueueFull rejects a request because the wait queue is at capacity.
	ErrQueueFull = errors.New("admission queue full")

	// ErrQueueTimeout fails a queued request whose timer expired before it
	// was dispatched.
	ErrQueueTimeout = errors.New("timed out waiting for admission")

	// ErrShuttingDown fails queued requests purged by Close and rejects
	// submissions after Close.
	ErrShuttingDown = errors.New("admission controller shutting down")
)

// Request describes one unit of work submitted to the controller. ID
// uniqueness is the caller's responsibility; an empty ID is filled in with a
// generated one.
type Request struct {
	// ID identifies the request in logs.
	ID string

	// Category is the analysis category, used by rate-limit policies.
	Category core.Category

	// Payload is the opaque input forwarded to the compute collaborator.
	Payload any

	// Priority is carried for rate-limit policies and future dispatch
	// extensions; it does not reorder the FIFO queue.
	Priority core.Priority

	// SubmittedAt is stamped by the controller when the request enters
	// Submit, if not already set.
	SubmittedAt time.Time

	// Timeout bounds how long the request may wait in the queue.
	// <= 0 selects the controller's default.
	Timeout time.Duration
}

// ComputeFunc is the external compute collaborator. It must not be assumed
// fast; bounding how many invocations run concurrently is the controller's
// whole purpose. Failures are surfaced to the submitting caller unchanged.
type ComputeFunc[T any] func(ctx context.Context, req Request) (T, error)

// Metrics is a point-in-time snapshot of controller state and lifetime
// counters. Counters are never reset except by constructing a new
// controller.
type Metrics struct {
	// CPUUsage is the current smoothed CPU busy percentage.
	CPUUsage float64

	// Throttling reports whether admissions are currently being queued.
	Throttling bool

	// QueueLength is the number of requests waiting for admission.
	QueueLength int

	// Processed counts requests whose computation was started.
	Processed uint64

	// Throttled counts rejections: rate-limited, queue-full and timed-out
	// requests.
	Throttled uint64

	// AvgResponseMs is the running average computation latency.
	AvgResponseMs float64

	// ThresholdAdjustments counts adaptive threshold changes.
	ThresholdAdjustments uint64

	// MaxCPUThreshold is the current (possibly adapted) throttle threshold.
	MaxCPUThreshold float64
}

// outcome carries a dispatch result to a waiting Submit caller.
type outcome[T any] struct {
	result T
	err    error
}

// queued is a request parked in the wait queue together with its completion
// handle. A queued request appears in the queue at most once; removed is set
// under the controller lock by whichever path takes it out (dispatch,
// timeout, caller cancellation, shutdown), and settled is closed at the same
// moment to release the timeout watcher.
type queued[T any] struct {
	req     Request
	done    chan outcome[T]
	settled chan struct{}
	removed bool
}
