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

package core

import "fmt"

// Category identifies the kind of predictive analysis a request asks for.
// The set is fixed; categories participate in cache-key derivation and in
// per-category TTL and rate-limit configuration.
type Category string

const (
	CategoryTrend          Category = "trend"
	CategoryAnomaly        Category = "anomaly"
	CategoryForecast       Category = "forecast"
	CategoryRecommendation Category = "recommendation"
)

// Categories lists all valid categories in a stable order.
var Categories = []Category{
	CategoryTrend,
	CategoryAnomaly,
	CategoryForecast,
	CategoryRecommendation,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTrend, CategoryAnomaly, CategoryForecast, CategoryRecommendation:
		return true
	}
	return false
}

// ParseCategory converts a string into a Category, rejecting unknown values.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Priority is the ordered urgency class of a request. Higher values are more
// urgent. Priority does not reorder the admission queue; it is carried for
// rate-limit policies and future dispatch extensions.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority converts a string into a Priority, rejecting unknown values.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}
