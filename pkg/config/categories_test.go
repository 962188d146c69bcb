package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/predictlab/prediction-gate/pkg/core"
)

func TestParseCategoryOverrides(t *testing.T) {
	data := map[string]string{
		"default":       "ttl: 10m\nrateLimitPerMinute: 60",
		"forecast-fast": "category: forecast\nttl: 30s",
		"anomaly-caps":  "category: anomaly\nrateLimitPerMinute: 5",
	}
	parsed := ParseCategoryOverrides(data)
	assert.Len(t, parsed, 3)

	forecast := parsed.GetCategoryConfig(core.CategoryForecast)
	assert.Equal(t, "30s", forecast.TTL)
	assert.Equal(t, 60, forecast.RateLimitPerMinute, "unset fields inherit from default")

	anomaly := parsed.GetCategoryConfig(core.CategoryAnomaly)
	assert.Equal(t, "10m", anomaly.TTL)
	assert.Equal(t, 5, anomaly.RateLimitPerMinute)

	// A category with no entry gets the defaults verbatim.
	trend := parsed.GetCategoryConfig(core.CategoryTrend)
	assert.Equal(t, "10m", trend.TTL)
	assert.Equal(t, 60, trend.RateLimitPerMinute)
}

func TestParseCategoryOverridesSkipsBadEntries(t *testing.T) {
	data := map[string]string{
		"broken-yaml":      "ttl: [unclosed",
		"bad-ttl":          "category: trend\nttl: soon",
		"unknown-category": "category: weather\nttl: 1m",
		"no-category":      "ttl: 1m",
		"good":             "category: trend\nttl: 1m",
	}
	parsed := ParseCategoryOverrides(data)
	assert.Len(t, parsed, 1)
	assert.Equal(t, "1m", parsed.GetCategoryConfig(core.CategoryTrend).TTL)
}

func TestParseCategoryOverridesFirstKeyWins(t *testing.T) {
	data := map[string]string{
		"a-first":  "category: trend\nttl: 1m",
		"b-second": "category: trend\nttl: 2m",
	}
	parsed := ParseCategoryOverrides(data)
	assert.Equal(t, "1m", parsed.GetCategoryConfig(core.CategoryTrend).TTL)
}

func TestParseCategoryOverridesNilData(t *testing.T) {
	parsed := ParseCategoryOverrides(nil)
	assert.Empty(t, parsed)
	assert.Empty(t, parsed.TTLByCategory())
	assert.Empty(t, parsed.RateLimits())
}

func TestTTLByCategoryAndRateLimits(t *testing.T) {
	parsed := ParseCategoryOverrides(map[string]string{
		"default": "ttl: 10m",
		"fc":      "category: forecast\nttl: 30s\nrateLimitPerMinute: 10",
	})

	ttls := parsed.TTLByCategory()
	assert.Equal(t, 30*time.Second, ttls[core.CategoryForecast])
	assert.Equal(t, 10*time.Minute, ttls[core.CategoryTrend], "default ttl applies to all categories")

	limits := parsed.RateLimits()
	assert.Equal(t, map[core.Category]int{core.CategoryForecast: 10}, limits)
}
