package metrics

import "time"

// Reader is the read side of the signal layer. Both the aggregation and
// the window are chosen by the caller, so the same samples can back a fast
// 30s P95 rule and a slow 5m AVG rule.
type Reader interface {
	// Read returns the aggregated value over the window, or ok=false when
	// no samples match.
	Read(name string, agg Aggregation, window time.Duration) (float64, bool)
}

// Writer is the write side of the signal layer.
type Writer interface {
	Record(s Sample)
}

// CompositeReader resolves derived metric names before falling through to
// the base reader. Health rules can then reference "error_rate" the same
// way they reference a raw signal.
//
// A derived metric's formula resolves its leaves against the base reader
// only, so derived metrics cannot reference each other.
type CompositeReader struct {
	base    Reader
	derived map[string]*DerivedMetric
}

// NewCompositeReader wraps base with the given derived metrics.
func NewCompositeReader(base Reader, derived []*DerivedMetric) *CompositeReader {
	m := make(map[string]*DerivedMetric, len(derived))
	for _, d := range derived {
		m[d.Name()] = d
	}
	return &CompositeReader{base: base, derived: m}
}

// Read resolves name as a derived metric first, then as a base signal.
// The aggregation and window arguments apply to base reads only; a derived
// metric always uses its own configured aggregation and window.
func (c *CompositeReader) Read(name string, agg Aggregation, window time.Duration) (float64, bool) {
	if d, ok := c.derived[name]; ok {
		return d.Compute(c.base)
	}
	return c.base.Read(name, agg, window)
}

// Derived returns the derived metric registered under name, if any.
func (c *CompositeReader) Derived(name string) (*DerivedMetric, bool) {
	d, ok := c.derived[name]
	return d, ok
}
