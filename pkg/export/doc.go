// Package export publishes engine state as Prometheus metrics. The
// Collector evaluates the engine on every scrape, so the exposed health
// score and decision values are as fresh as the scrape itself.
package export
