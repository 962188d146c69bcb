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

// Package config loads and validates the prediction-gate configuration.
//
// Configuration is resolved by viper in the usual order: explicit file,
// then environment variables prefixed PREDICTION_GATE_ (dots become
// underscores), then built-in defaults. Per-category tuning lives in
// override blocks of raw YAML, parsed separately; see categories.go.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for configuration keys.
const EnvPrefix = "PREDICTION_GATE"

// Config is the full prediction-gate configuration tree.
type Config struct {
	Admission AdmissionConfig `mapstructure:"admission"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`

	// CategoryOverrides maps an override entry name to a raw YAML block
	// tuning one analysis category. The entry named "default" supplies
	// values for categories without their own entry.
	CategoryOverrides map[string]string `mapstructure:"categoryOverrides"`
}

// AdmissionConfig tunes the admission controller.
type AdmissionConfig struct {
	// MaxCPUThreshold is the smoothed CPU percentage at which throttling
	// activates, in (0, 100].
	MaxCPUThreshold float64 `mapstructure:"maxCpuThreshold"`

	// MinCPUThreshold is the lowest value adaptive tuning may reach,
	// in [0, maxCpuThreshold).
	MinCPUThreshold float64 `mapstructure:"minCpuThreshold"`

	// SampleInterval is the CPU sampling cadence.
	SampleInterval time.Duration `mapstructure:"sampleInterval"`

	// CPUWindowSize is the number of samples in the smoothing window.
	CPUWindowSize int `mapstructure:"cpuWindowSize"`

	// QueueMaxSize bounds the wait queue.
	QueueMaxSize int `mapstructure:"queueMaxSize"`

	// RequestTimeout is the default queue wait bound per request.
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`

	// DrainBatchSize and DrainInterval pace queue draining after
	// throttling lifts.
	DrainBatchSize int           `mapstructure:"drainBatchSize"`
	DrainInterval  time.Duration `mapstructure:"drainInterval"`

	Adaptive AdaptiveConfig `mapstructure:"adaptive"`
}

// AdaptiveConfig tunes threshold adaptation.
type AdaptiveConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	DownStep float64       `mapstructure:"downStep"`
	UpStep   float64       `mapstructure:"upStep"`
	Floor    float64       `mapstructure:"floor"`
	Ceiling  float64       `mapstructure:"ceiling"`
}

// CacheConfig tunes the result cache.
type CacheConfig struct {
	MaxSize       int           `mapstructure:"maxSize"`
	DefaultTTL    time.Duration `mapstructure:"defaultTtl"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	// Verbosity is the logr V-level ceiling: 0 info, 1 debug, 2 trace.
	Verbosity int `mapstructure:"verbosity"`
}

// MetricsConfig tunes the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("admission.maxCpuThreshold", 80.0)
	v.SetDefault("admission.minCpuThreshold", 30.0)
	v.SetDefault("admission.sampleInterval", "5s")
	v.SetDefault("admission.cpuWindowSize", 10)
	v.SetDefault("admission.queueMaxSize", 100)
	v.SetDefault("admission.requestTimeout", "30s")
	v.SetDefault("admission.drainBatchSize", 3)
	v.SetDefault("admission.drainInterval", "100ms")
	v.SetDefault("admission.adaptive.enabled", false)
	v.SetDefault("admission.adaptive.interval", "30s")
	v.SetDefault("admission.adaptive.downStep", 5.0)
	v.SetDefault("admission.adaptive.upStep", 2.0)
	v.SetDefault("admission.adaptive.floor", 60.0)
	v.SetDefault("admission.adaptive.ceiling", 90.0)
	v.SetDefault("cache.maxSize", 500)
	v.SetDefault("cache.defaultTtl", "10m")
	v.SetDefault("cache.sweepInterval", "30s")
	v.SetDefault("logging.verbosity", 0)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
}

// Load reads configuration from the given file path. An empty path loads
// defaults and environment variables only. A named file that does not exist
// is an error; viper infers the format from the extension.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks for invalid configuration values.
func (c *Config) Validate() error {
	if err := c.Admission.Validate(); err != nil {
		return fmt.Errorf("admission: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if c.Logging.Verbosity < 0 {
		return fmt.Errorf("logging: verbosity must be >= 0, got %d", c.Logging.Verbosity)
	}
	return nil
}

// Validate checks for invalid admission values.
func (a *AdmissionConfig) Validate() error {
	if a.MaxCPUThreshold <= 0 || a.MaxCPUThreshold > 100 {
		return fmt.Errorf("maxCpuThreshold must be between 0 and 100, got %.1f", a.MaxCPUThreshold)
	}
	if a.MinCPUThreshold < 0 || a.MinCPUThreshold >= a.MaxCPUThreshold {
		return fmt.Errorf("minCpuThreshold must be >= 0 and below maxCpuThreshold, got %.1f", a.MinCPUThreshold)
	}
	if a.SampleInterval <= 0 {
		return fmt.Errorf("sampleInterval must be positive, got %s", a.SampleInterval)
	}
	if a.CPUWindowSize <= 0 {
		return fmt.Errorf("cpuWindowSize must be positive, got %d", a.CPUWindowSize)
	}
	if a.QueueMaxSize <= 0 {
		return fmt.Errorf("queueMaxSize must be positive, got %d", a.QueueMaxSize)
	}
	if a.RequestTimeout <= 0 {
		return fmt.Errorf("requestTimeout must be positive, got %s", a.RequestTimeout)
	}
	if a.DrainBatchSize <= 0 {
		return fmt.Errorf("drainBatchSize must be positive, got %d", a.DrainBatchSize)
	}
	if a.DrainInterval <= 0 {
		return fmt.Errorf("drainInterval must be positive, got %s", a.DrainInterval)
	}
	if a.Adaptive.Enabled {
		if a.Adaptive.Floor > a.Adaptive.Ceiling {
			return fmt.Errorf("adaptive floor (%.1f) should be <= ceiling (%.1f)",
				a.Adaptive.Floor, a.Adaptive.Ceiling)
		}
		if a.Adaptive.Floor < a.MinCPUThreshold {
			return fmt.Errorf("adaptive floor (%.1f) should be >= minCpuThreshold (%.1f)",
				a.Adaptive.Floor, a.MinCPUThreshold)
		}
		if a.Adaptive.DownStep < a.Adaptive.UpStep {
			return fmt.Errorf("adaptive downStep (%.1f) should be >= upStep (%.1f)",
				a.Adaptive.DownStep, a.Adaptive.UpStep)
		}
	}
	return nil
}

// Validate checks for invalid cache values.
func (c *CacheConfig) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("maxSize must be positive, got %d", c.MaxSize)
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("defaultTtl must be positive, got %s", c.DefaultTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweepInterval must be positive, got %s", c.SweepInterval)
	}
	return nil
}
