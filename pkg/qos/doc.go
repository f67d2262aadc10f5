// Package qos composes the signal registry, derived metrics, the health
// evaluator, and the decision engine into one adaptive quality-of-service
// engine.
//
// Callers record raw observations and ask for a Snapshot: the current
// health score, a coarse status band, every configured decision value,
// and the metric readings behind them. Everything runs on the caller's
// goroutine; the engine owns no background work.
//
// Reads across different signals are not taken under one lock, so a
// snapshot may mix readings that are microseconds apart. For load
// shedding that skew is irrelevant and the lock-free write path is worth
// it.
package qos
