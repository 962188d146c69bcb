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

// Package logging wires zap into the logr.Logger interface used by every
// component in this module. Components never construct loggers themselves;
// they receive one at construction and use V(DEBUG)/V(TRACE) for detail.
package logging

import (
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for logger.V(...). Info-level messages use V(0).
const (
	DEBUG = 1
	TRACE = 2
)

var (
	mu     sync.Mutex
	global = logr.Discard()
)

// NewLogger builds a production zap logger at the given verbosity and returns
// it as a logr.Logger. Verbosity 0 logs Info and above; higher values enable
// the corresponding V levels.
func NewLogger(verbosity int) (logr.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	z, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	log := zapr.NewLogger(z)
	SetLogger(log)
	return log, nil
}

// NewTestLogger builds a development zap logger with all verbosity enabled
// and installs it as the package global. Intended for test suites.
func NewTestLogger() logr.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-TRACE))
	z, err := cfg.Build()
	if err != nil {
		// Development config only fails on invalid sink paths.
		return logr.Discard()
	}
	log := zapr.NewLogger(z)
	SetLogger(log)
	return log
}

// SetLogger replaces the package-global logger.
func SetLogger(log logr.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = log
}

// Log returns the package-global logger. It discards output until NewLogger
// or NewTestLogger has been called.
func Log() logr.Logger {
	mu.Lock()
	defer mu.Unlock()
	return global
}
