// Package core provides the fundamental domain types shared by the admission
// and caching layers.
//
// This package contains the request-shape vocabulary used throughout the
// library:
//
//   - Category: the fixed set of analysis categories a request can target
//   - Priority: the ordered urgency classes carried by requests
//
// These types are deliberately free of any scheduling or storage behavior so
// that the gate and resultcache packages can depend on them without depending
// on each other.
//
// The core package is designed to be:
//   - Immutable value types only
//   - Independent of the admission and caching machinery
//   - Stable: categories are part of cache-key derivation and must not change
package core
