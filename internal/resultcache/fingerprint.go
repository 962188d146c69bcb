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

package resultcache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/predictlab/prediction-gate/pkg/core"
)

// Fingerprint derives the cache key for a (category, payload) pair.
//
// The payload is serialized to canonical JSON: encoding/json emits map keys
// in sorted order at every nesting level, so structurally equal payloads
// serialize identically regardless of construction order. The serialized
// bytes are hashed with xxhash and folded into a fixed-width hex string
// prefixed with the category.
//
// The returned size is the length of the serialized payload in bytes, used
// by the cache for its memory footprint estimate.
func Fingerprint(category core.Category, payload any) (key string, size int, err error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", 0, fmt.Errorf("serialize payload for fingerprint: %w", err)
	}
	h := xxhash.New()
	_, _ = h.Write([]byte(category))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(data)
	return fmt.Sprintf("%s-%016x", category, h.Sum64()), len(data), nil
}
