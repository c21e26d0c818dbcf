// Package domain defines the core domain models for confmesh.
//
// Domain models are pure values without any IO dependencies or
// framework coupling. This package contains:
//
//   - Value: the closed set of storable configuration values
//   - Entry: one keyed record of the entry store
//   - Default: a registered fallback used by explicit resets
//   - Errors: status taxonomy and coded domain errors
package domain
