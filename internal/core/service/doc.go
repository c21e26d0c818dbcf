// Package service implements the confmesh configuration manager.
//
// A Manager owns every piece of mutable state:
//
//   - Entry store: typed values keyed by (namespace, key)
//   - Namespaces: isolated key spaces opened by name
//   - Default registry: fallbacks applied only by explicit resets
//   - Callback registry: key-filtered and wildcard change subscriptions
//   - Crypto context: the active key for transparent value encryption
//   - Backend: the injected persistence provider used by Commit and Load
//
// A single mutex guards all of it. Callbacks, iteration functions and
// backend I/O run after the mutex is released, on snapshots taken while it
// was held, so a callback may call back into the Manager freely.
package service
