package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is the manager state reported on each scrape.
type Snapshot struct {
	Entries          int
	Namespaces       int
	Defaults         int
	Callbacks        int
	EncryptionActive bool
}

// Collector reports manager gauges from a snapshot function.
type Collector struct {
	source func() Snapshot

	entries    *prometheus.Desc
	namespaces *prometheus.Desc
	defaults   *prometheus.Desc
	callbacks  *prometheus.Desc
	encryption *prometheus.Desc
}

// NewCollector creates a collector that calls source on every scrape.
func NewCollector(source func() Snapshot) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "manager", name), help, nil, nil)
	}
	return &Collector{
		source:     source,
		entries:    desc("entries", "Live entries across all namespaces"),
		namespaces: desc("namespaces", "Named namespaces created"),
		defaults:   desc("defaults", "Registered default values"),
		callbacks:  desc("callbacks", "Registered change callbacks"),
		encryption: desc("encryption_active", "1 when an encryption key is installed"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.namespaces
	ch <- c.defaults
	ch <- c.callbacks
	ch <- c.encryption
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source()
	enc := 0.0
	if s.EncryptionActive {
		enc = 1
	}
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.namespaces, prometheus.GaugeValue, float64(s.Namespaces))
	ch <- prometheus.MustNewConstMetric(c.defaults, prometheus.GaugeValue, float64(s.Defaults))
	ch <- prometheus.MustNewConstMetric(c.callbacks, prometheus.GaugeValue, float64(s.Callbacks))
	ch <- prometheus.MustNewConstMetric(c.encryption, prometheus.GaugeValue, enc)
}
