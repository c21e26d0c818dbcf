// Package metric provides Prometheus metrics for confmesh.
//
//   - prometheus.go: counters and histograms updated by the manager
//   - collector.go: a custom collector reporting manager gauges on scrape
//
// Metrics include:
//
//   - Operation counts by operation and status
//   - Callback dispatches and recovered callback panics
//   - Commit counts and latency
//   - Entry, namespace, default and callback gauges
//
// All metrics register on a caller-supplied prometheus.Registerer; a nil
// *Metrics is a valid no-op.
package metric
