package metrics

import (
	"fmt"
	"time"
)

// SignalType tags a store as point-in-time or cumulative. The tag is a
// convention indicating which aggregations are meaningful; it is not
// enforced on reads.
type SignalType string

const (
	// Gauge signals hold point-in-time values (latency, queue depth).
	// Meaningful aggregations: P50, P90, P95, P99, AVG.
	Gauge SignalType = "gauge"

	// Counter signals hold cumulative values (request counts, bytes).
	// Meaningful aggregations: SUM, RATE, COUNT.
	Counter SignalType = "counter"
)

// Aggregation selects the summary function applied to a window of samples.
type Aggregation string

const (
	P50   Aggregation = "P50"
	P90   Aggregation = "P90"
	P95   Aggregation = "P95"
	P99   Aggregation = "P99"
	AVG   Aggregation = "AVG"
	SUM   Aggregation = "SUM"
	RATE  Aggregation = "RATE"
	COUNT Aggregation = "COUNT"
)

// ParseAggregation converts a config string like "P95" into an Aggregation.
func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(s) {
	case P50, P90, P95, P99, AVG, SUM, RATE, COUNT:
		return Aggregation(s), nil
	}
	return "", fmt.Errorf("metrics: unknown aggregation %q", s)
}

// percentile returns the rank fraction for percentile aggregations and
// ok=false for AVG/SUM/RATE/COUNT.
func (a Aggregation) percentile() (float64, bool) {
	switch a {
	case P50:
		return 0.50, true
	case P90:
		return 0.90, true
	case P95:
		return 0.95, true
	case P99:
		return 0.99, true
	}
	return 0, false
}

// IsGaugeStyle reports whether the aggregation summarizes point-in-time
// values (percentiles and AVG).
func (a Aggregation) IsGaugeStyle() bool {
	switch a {
	case P50, P90, P95, P99, AVG:
		return true
	}
	return false
}

// Sample is one observation of a named signal. Samples are ephemeral: the
// registry consumes them immediately and they carry no identity beyond
// name and time.
type Sample struct {
	Name  string
	Value float64
	Time  time.Time
}

// NewSample returns a Sample stamped with the current time.
func NewSample(name string, value float64) Sample {
	return Sample{Name: name, Value: value, Time: time.Now()}
}

// Filter holds the per-signal ingestion bounds applied before a sample
// reaches a store. A sample failing any configured bound is dropped
// silently: not stored, not counted anywhere.
type Filter struct {
	// DropNegative rejects values < 0.
	DropNegative bool

	// Min rejects values below the bound when non-nil.
	Min *float64

	// Max rejects values above the bound when non-nil.
	Max *float64
}

// Drops reports whether v fails any configured bound.
func (f Filter) Drops(v float64) bool {
	if f.DropNegative && v < 0 {
		return true
	}
	if f.Min != nil && v < *f.Min {
		return true
	}
	if f.Max != nil && v > *f.Max {
		return true
	}
	return false
}
