// Package metrics implements the windowed signal layer: per-signal sliding
// window stores, the routed registry that validates and fans samples out to
// them, and derived metrics computed from arithmetic formulas over base
// signals.
//
// Samples flow Registry.Record → per-signal filter → Store.Write. Reads go
// the other way: Store.Read filters to a caller-specified window and
// computes one Aggregation over the matching samples, returning ok=false
// when the window is empty so a true zero stays distinguishable from
// absence. Stores prune from the oldest end on every write, so memory is
// bounded by the retention window regardless of write rate.
//
// All exported types are safe for concurrent use. Nothing in this package
// performs I/O or owns a goroutine.
package metrics
