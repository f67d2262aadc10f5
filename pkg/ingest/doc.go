// Package ingest feeds signals from Prometheus text expositions. A Poller
// fetches a /metrics endpoint, maps selected metric families onto signal
// names, and records them through a metrics.Writer: gauges as current
// values, counters as deltas against the previous poll.
package ingest
