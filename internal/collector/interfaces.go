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

package collector

import (
	"context"
	"sync"
)

// UsageSource is the interface for pluggable CPU load sources.
// Implementations include ProcStatSource and test doubles.
//
// The admission gate owns the sampling cadence; a source only answers the
// instantaneous question "how busy is the machine right now".
type UsageSource interface {
	// Name returns the unique name of this source (e.g., "procstat").
	Name() string

	// Sample returns the system-wide CPU busy fraction as a percentage
	// in [0, 100]. Implementations that measure deltas between calls may
	// return a since-boot average on the first call.
	Sample(ctx context.Context) (float64, error)
}

// StaticSource is a UsageSource returning a settable fixed value.
// Used in tests and as a stand-in when no procfs is available.
type StaticSource struct {
	mu    sync.Mutex
	value float64
}

// NewStaticSource creates a StaticSource reporting the given percentage.
func NewStaticSource(value float64) *StaticSource {
	return &StaticSource{value: value}
}

// Name implements UsageSource.
func (s *StaticSource) Name() string { return "static" }

// Sample implements UsageSource.
func (s *StaticSource) Sample(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

// Set changes the reported value. Safe to call while the gate is sampling.
func (s *StaticSource) Set(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
}
