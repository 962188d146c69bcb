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
	"fmt"
	"sync"

	"github.com/prometheus/procfs"
)

// ProcStatSource reads the aggregate CPU line from /proc/stat and reports
// the busy fraction between consecutive samples. The first sample reports
// the since-boot busy fraction because there is no previous observation to
// delta against.
type ProcStatSource struct {
	fs procfs.FS

	mu      sync.Mutex
	prev    procfs.CPUStat
	hasPrev bool
}

// NewProcStatSource creates a ProcStatSource backed by the default /proc
// mount point.
func NewProcStatSource() (*ProcStatSource, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &ProcStatSource{fs: fs}, nil
}

// Name implements UsageSource.
func (s *ProcStatSource) Name() string { return "procstat" }

// Sample implements UsageSource.
func (s *ProcStatSource) Sample(_ context.Context) (float64, error) {
	stat, err := s.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("read /proc/stat: %w", err)
	}
	cur := stat.CPUTotal

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.prev
	if !s.hasPrev {
		prev = procfs.CPUStat{}
	}
	s.prev = cur
	s.hasPrev = true

	return busyPercent(prev, cur), nil
}

// busyPercent computes the busy fraction, as a percentage, of the interval
// between two cumulative CPU stat readings. Idle and iowait count as idle
// time; everything else counts as busy.
func busyPercent(prev, cur procfs.CPUStat) float64 {
	idle := (cur.Idle - prev.Idle) + (cur.Iowait - prev.Iowait)
	busy := (cur.User - prev.User) +
		(cur.Nice - prev.Nice) +
		(cur.System - prev.System) +
		(cur.IRQ - prev.IRQ) +
		(cur.SoftIRQ - prev.SoftIRQ) +
		(cur.Steal - prev.Steal)
	total := idle + busy
	if total <= 0 {
		return 0
	}
	pct := busy / total * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
