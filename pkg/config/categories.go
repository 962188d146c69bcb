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

package config

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/predictlab/prediction-gate/internal/logging"
	"github.com/predictlab/prediction-gate/pkg/core"
)

// GlobalDefaultsKey is the override entry supplying values for categories
// without an entry of their own.
const GlobalDefaultsKey = "default"

// CategoryConfig tunes one analysis category. Zero values inherit from the
// global defaults entry.
type CategoryConfig struct {
	// Category is the category identifier (only used in override entries).
	Category string `yaml:"category,omitempty"`

	// TTL is how long cached results of this category stay valid, as a
	// duration string (e.g. "5m", "1h").
	TTL string `yaml:"ttl,omitempty"`

	// RateLimitPerMinute caps admissions for this category. 0 means
	// unlimited.
	RateLimitPerMinute int `yaml:"rateLimitPerMinute,omitempty"`
}

// CategoryConfigData holds parsed per-category configuration, keyed by
// category name plus the GlobalDefaultsKey entry.
type CategoryConfigData map[string]CategoryConfig

// Validate checks for invalid override values.
func (c *CategoryConfig) Validate() error {
	if c.Category != "" && !core.Category(c.Category).Valid() {
		return fmt.Errorf("unknown category %q", c.Category)
	}
	if c.TTL != "" {
		d, err := time.ParseDuration(c.TTL)
		if err != nil {
			return fmt.Errorf("invalid ttl: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("ttl must be positive, got %s", d)
		}
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rateLimitPerMinute must be >= 0, got %d", c.RateLimitPerMinute)
	}
	return nil
}

// ParseCategoryOverrides parses per-category tuning from raw YAML blocks.
// The format:
//   - "default": global defaults for all categories
//   - "<override-name>": per-category configuration with a category field
//
// Malformed or invalid entries are skipped with a log line rather than
// failing the whole load. When two entries name the same category, the
// first key in sorted order wins.
func ParseCategoryOverrides(data map[string]string) CategoryConfigData {
	out := make(CategoryConfigData)
	if data == nil {
		return out
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	categoryToKey := make(map[string]string)
	for _, key := range keys {
		var cfg CategoryConfig
		if err := yaml.Unmarshal([]byte(data[key]), &cfg); err != nil {
			logging.Log().Info("Failed to parse category override entry, skipping",
				"key", key, "error", err)
			continue
		}
		if err := cfg.Validate(); err != nil {
			logging.Log().Info("Invalid category override entry, skipping",
				"key", key, "error", err)
			continue
		}

		if key == GlobalDefaultsKey {
			out[GlobalDefaultsKey] = cfg
			continue
		}
		if cfg.Category == "" {
			logging.Log().Info("Skipping category override without category field", "key", key)
			continue
		}
		if winner, exists := categoryToKey[cfg.Category]; exists {
			logging.Log().Info("Duplicate category in overrides - first key wins",
				"category", cfg.Category, "winningKey", winner, "duplicateKey", key)
			continue
		}
		categoryToKey[cfg.Category] = key
		out[cfg.Category] = cfg
	}

	logging.Log().V(logging.DEBUG).Info("Parsed category overrides", "count", len(out))
	return out
}

// GetCategoryConfig returns the effective configuration for a category,
// merging its entry over the global defaults.
func (data CategoryConfigData) GetCategoryConfig(category core.Category) CategoryConfig {
	defaults := data[GlobalDefaultsKey]
	override, ok := data[string(category)]
	if !ok {
		return defaults
	}

	result := defaults
	result.Category = override.Category
	if override.TTL != "" {
		result.TTL = override.TTL
	}
	if override.RateLimitPerMinute != 0 {
		result.RateLimitPerMinute = override.RateLimitPerMinute
	}
	return result
}

// TTLByCategory returns the effective cache TTL overrides. Categories whose
// effective TTL is unset are absent from the result and fall back to the
// cache-wide default.
func (data CategoryConfigData) TTLByCategory() map[core.Category]time.Duration {
	out := make(map[core.Category]time.Duration)
	for _, category := range core.Categories {
		cfg := data.GetCategoryConfig(category)
		if cfg.TTL == "" {
			continue
		}
		if d, err := time.ParseDuration(cfg.TTL); err == nil {
			out[category] = d
		}
	}
	return out
}

// RateLimits returns the effective per-minute admission caps. Categories
// without a cap are absent and unlimited.
func (data CategoryConfigData) RateLimits() map[core.Category]int {
	out := make(map[core.Category]int)
	for _, category := range core.Categories {
		cfg := data.GetCategoryConfig(category)
		if cfg.RateLimitPerMinute > 0 {
			out[category] = cfg.RateLimitPerMinute
		}
	}
	return out
}
