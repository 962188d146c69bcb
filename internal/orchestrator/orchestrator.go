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

// Package orchestrator wires the result cache in front of the admission
// gate. The composition is cache-first: a live cached result answers
// immediately and never consumes admission capacity; only misses are
// submitted, and only successful computations are stored back.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/predictlab/prediction-gate/internal/gate"
	"github.com/predictlab/prediction-gate/internal/logging"
	"github.com/predictlab/prediction-gate/internal/resultcache"
	"github.com/predictlab/prediction-gate/pkg/core"
)

// Result is the outcome of one Analyze call.
//
// Available false with a nil error means the system declined the work under
// load (queue full or queue wait timed out): the caller may retry later.
// This is deliberately not an error; overload is an expected operating mode,
// not a failure of the request.
type Result[T any] struct {
	Value     T
	FromCache bool
	Available bool
}

// Orchestrator composes a result cache with an admission controller.
type Orchestrator[T any] struct {
	cache *resultcache.Cache[T]
	gate  *gate.Controller[T]
	log   logr.Logger
}

// New wires a cache and a controller together. Both collaborators remain
// owned by the caller; closing the orchestrator's parts is the caller's job.
func New[T any](cache *resultcache.Cache[T], controller *gate.Controller[T], log logr.Logger) (*Orchestrator[T], error) {
	if cache == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}
	if controller == nil {
		return nil, fmt.Errorf("admission controller cannot be nil")
	}
	return &Orchestrator[T]{
		cache: cache,
		gate:  controller,
		log:   log.WithName("orchestrator"),
	}, nil
}

// Analyze answers from the cache when possible, otherwise submits the
// request through the admission gate and stores a successful result.
//
// Load-shedding rejections (gate.ErrQueueFull, gate.ErrQueueTimeout) come
// back as Available false with a nil error. Rate-limit rejections, shutdown,
// caller cancellation and computation failures are returned as errors, and
// nothing is cached for them.
func (o *Orchestrator[T]) Analyze(ctx context.Context, req gate.Request) (Result[T], error) {
	if !req.Category.Valid() {
		return Result[T]{}, fmt.Errorf("unknown analysis category %q", req.Category)
	}

	if v, ok := o.cache.Get(req.Category, req.Payload); ok {
		o.log.V(logging.DEBUG).Info("served from cache",
			"id", req.ID, "category", req.Category)
		return Result[T]{Value: v, FromCache: true, Available: true}, nil
	}

	v, err := o.gate.Submit(ctx, req)
	if err != nil {
		if errors.Is(err, gate.ErrQueueFull) || errors.Is(err, gate.ErrQueueTimeout) {
			o.log.Info("analysis not available under load",
				"id", req.ID, "category", req.Category, "reason", err.Error())
			return Result[T]{}, nil
		}
		return Result[T]{}, err
	}

	o.cache.Set(req.Category, req.Payload, v)
	return Result[T]{Value: v, Available: true}, nil
}

// Invalidate drops any cached result for (category, payload), forcing the
// next Analyze to recompute. It reports whether an entry was removed.
func (o *Orchestrator[T]) Invalidate(category core.Category, payload any) bool {
	return o.cache.Invalidate(category, payload) > 0
}

// InvalidateCategory drops every cached result in a category and returns the
// number removed.
func (o *Orchestrator[T]) InvalidateCategory(category core.Category) int {
	return o.cache.InvalidateCategory(category)
}

// CacheStats exposes the cache bookkeeping snapshot.
func (o *Orchestrator[T]) CacheStats() resultcache.Stats {
	return o.cache.Stats()
}

// GateMetrics exposes the admission controller snapshot.
func (o *Orchestrator[T]) GateMetrics() gate.Metrics {
	return o.gate.Metrics()
}
