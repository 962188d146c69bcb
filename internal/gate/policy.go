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

package gate

import (
	"golang.org/x/time/rate"

	"github.com/predictlab/prediction-gate/pkg/core"
)

// Policy is the pre-queue admission hook. Allow is consulted before any
// queueing decision; returning false rejects the request with
// ErrRateLimitExceeded. Implementations must be safe for concurrent use.
type Policy interface {
	Allow(req Request) bool
}

// AllowAll is the default permissive policy.
type AllowAll struct{}

// Allow implements Policy.
func (AllowAll) Allow(Request) bool { return true }

// CategoryRateLimiter enforces a requests-per-minute allowance per category
// using token buckets. Categories without a configured limit are unlimited.
type CategoryRateLimiter struct {
	limiters map[core.Category]*rate.Limiter
}

// NewCategoryRateLimiter builds a policy from per-minute allowances.
// Non-positive allowances are ignored.
func NewCategoryRateLimiter(perMinute map[core.Category]int) *CategoryRateLimiter {
	limiters := make(map[core.Category]*rate.Limiter, len(perMinute))
	for category, n := range perMinute {
		if n <= 0 {
			continue
		}
		limiters[category] = rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
	}
	return &CategoryRateLimiter{limiters: limiters}
}

// Allow implements Policy.
func (p *CategoryRateLimiter) Allow(req Request) bool {
	lim, ok := p.limiters[req.Category]
	if !ok {
		return true
	}
	return lim.Allow()
}
