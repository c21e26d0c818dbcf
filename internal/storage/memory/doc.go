// Package memory provides the fixed-capacity entry store for confmesh.
//
// The store keeps every live entry of every namespace in a single table:
//
//   - Capacity: one budget shared by all namespaces
//   - Ordering: entries iterate in insertion order; overwriting a key keeps
//     its position
//   - Scoping: keys are unique per namespace id, never globally
//
// Thread Safety:
//
// Store is not safe for concurrent use. The manager serializes access with
// its own lock so that store updates, namespace bookkeeping and snapshots
// happen under one critical section.
package memory
