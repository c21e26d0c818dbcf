// Package storage provides persistence backends for confmesh.
//
// A backend is a flat byte store with a staging area: Write and Erase are
// staged, Read observes staged changes, and Commit makes them durable as a
// unit.
//
// Backends:
//
//   - RAMBackend: staging and committed images in sharded maps; volatile,
//     used for tests and hosts without persistent storage
//   - BadgerBackend: staged changes flushed to Badger in one transaction,
//     with periodic value-log GC and optional Prometheus size gauges
//
// Both are safe for concurrent use.
package storage
