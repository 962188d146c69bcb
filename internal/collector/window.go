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

// Window is a fixed-capacity ring buffer of recent load samples. The mean of
// the window is the smoothed signal used for admission decisions; smoothing
// keeps transient spikes from flapping the throttle state.
//
// Note: Window is not thread-safe. Concurrency control is handled by the
// owning component.
type Window struct {
	samples []float64
	next    int
	count   int
}

// NewWindow creates a Window holding up to capacity samples.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{samples: make([]float64, capacity)}
}

// Push adds a sample, displacing the oldest once the window is full.
func (w *Window) Push(v float64) {
	w.samples[w.next] = v
	w.next = (w.next + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
}

// Len returns the number of samples currently held.
func (w *Window) Len() int { return w.count }

// Values returns the held samples in chronological order.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.count)
	start := w.next - w.count
	for i := 0; i < w.count; i++ {
		idx := (start + i + len(w.samples)) % len(w.samples)
		out = append(out, w.samples[idx])
	}
	return out
}

// Mean returns the arithmetic mean of the held samples, or 0 when empty.
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.Values() {
		sum += v
	}
	return sum / float64(w.count)
}

// RecentMean returns the mean of the most recent n samples. It returns false
// when fewer than n samples are held.
func (w *Window) RecentMean(n int) (float64, bool) {
	if n <= 0 || w.count < n {
		return 0, false
	}
	vals := w.Values()
	var sum float64
	for _, v := range vals[len(vals)-n:] {
		sum += v
	}
	return sum / float64(n), true
}

// PriorMean returns the mean of the n samples immediately preceding the most
// recent n. It returns false when fewer than 2n samples are held.
func (w *Window) PriorMean(n int) (float64, bool) {
	if n <= 0 || w.count < 2*n {
		return 0, false
	}
	vals := w.Values()
	var sum float64
	for _, v := range vals[len(vals)-2*n : len(vals)-n] {
		sum += v
	}
	return sum / float64(n), true
}
