// Package collector provides CPU load observation for the admission gate.
//
// The collector package implements a pluggable sampling system: the gate
// periodically asks a UsageSource for the system-wide CPU busy fraction and
// smooths the observations in a fixed-length Window.
//
// # Key Components
//
// UsageSource interface:
//   - Name(): identifies the source in logs
//   - Sample(): returns the current CPU busy fraction as a percentage
//
// Sources:
//   - ProcStatSource: default source reading /proc/stat deltas via
//     github.com/prometheus/procfs
//   - StaticSource: fixed-value source for tests and wiring checks
//
// Window:
//   - fixed-capacity ring of recent samples
//   - Mean() is the smoothed load signal used for admission decisions
//   - RecentMean/PriorMean expose the short-term trend inputs used by
//     adaptive threshold tuning
//
// Window is not thread-safe; the owning component synchronizes access.
package collector
