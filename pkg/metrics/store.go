package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// cacheValidity bounds how long a cached default-window aggregate set may
// be served before it is recomputed.
const cacheValidity = 100 * time.Millisecond

// timedValue is one retained observation.
type timedValue struct {
	at    time.Time
	value float64
}

// Store holds the recent history of one signal and computes aggregates over
// any caller-specified window, not only its own retention window.
//
// Writes append and prune from the oldest end, so memory stays bounded by
// the retention window under any write rate. Reads over an explicit window
// always recompute from the raw filtered samples. Reads over the store's
// own window (ReadDefault, SampleCount) may be served from a short-lived
// aggregate snapshot that is swapped atomically and invalidated by every
// write.
//
// All methods are safe for concurrent use.
type Store struct {
	name   string
	typ    SignalType
	window time.Duration

	mu      sync.RWMutex
	samples []timedValue

	cached   atomic.Pointer[aggregates]
	lastCalc atomic.Int64 // unix nanos of last cache fill; 0 = invalid

	now func() time.Time // injectable for deterministic tests
}

// aggregates is the immutable cached summary of the default window.
type aggregates struct {
	p50, p90, p95, p99 float64
	avg, sum, rate     float64
	count              int
}

// NewStore creates a Store retaining window worth of samples for one
// signal name.
func NewStore(name string, typ SignalType, window time.Duration) *Store {
	return &Store{
		name:   name,
		typ:    typ,
		window: window,
		now:    time.Now,
	}
}

// Name returns the signal name this store holds.
func (s *Store) Name() string { return s.name }

// Type returns the store's signal type tag.
func (s *Store) Type() SignalType { return s.typ }

// Window returns the store's retention window.
func (s *Store) Window() time.Duration { return s.window }

// Write appends a sample and prunes anything older than the retention
// window. The aggregate cache is invalidated immediately.
func (s *Store) Write(value float64, at time.Time) {
	s.mu.Lock()
	s.samples = append(s.samples, timedValue{at: at, value: value})
	s.pruneLocked(at)
	s.mu.Unlock()

	s.lastCalc.Store(0)
}

// pruneLocked drops samples older than at minus the retention window.
// Append order is preserved; removal happens only at the oldest end.
func (s *Store) pruneLocked(at time.Time) {
	cutoff := at.Add(-s.window)
	i := 0
	for i < len(s.samples) && s.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		n := copy(s.samples, s.samples[i:])
		s.samples = s.samples[:n]
	}
}

// Read computes one aggregation over the samples inside the given window.
// ok is false when no samples match; a zero value never stands in for an
// empty window. Explicit-window reads always recompute from the raw
// filtered set; they never touch the aggregate cache.
func (s *Store) Read(agg Aggregation, window time.Duration) (float64, bool) {
	values := s.collect(window)
	if len(values) == 0 {
		return 0, false
	}
	return summarize(values, agg, window), true
}

// ReadDefault computes one aggregation over the store's own retention
// window, served from the short-lived aggregate cache when it is fresh.
func (s *Store) ReadDefault(agg Aggregation) (float64, bool) {
	a := s.cachedAggregates()
	if a.count == 0 {
		return 0, false
	}
	switch agg {
	case P50:
		return a.p50, true
	case P90:
		return a.p90, true
	case P95:
		return a.p95, true
	case P99:
		return a.p99, true
	case AVG:
		return a.avg, true
	case SUM:
		return a.sum, true
	case RATE:
		return a.rate, true
	case COUNT:
		return float64(a.count), true
	}
	return 0, false
}

// SampleCount returns the number of samples inside the store's own window.
// Introspection only; served from the aggregate cache.
func (s *Store) SampleCount() int {
	return s.cachedAggregates().count
}

// Clear removes all samples and invalidates the cache.
func (s *Store) Clear() {
	s.mu.Lock()
	s.samples = nil
	s.mu.Unlock()

	s.cached.Store(&aggregates{})
	s.lastCalc.Store(0)
}

// collect copies the values inside the window, oldest first.
func (s *Store) collect(window time.Duration) []float64 {
	cutoff := s.now().Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]float64, 0, len(s.samples))
	for _, sv := range s.samples {
		if !sv.at.Before(cutoff) {
			values = append(values, sv.value)
		}
	}
	return values
}

// cachedAggregates returns the default-window summary, recomputing when the
// cache is stale or invalidated. A single CAS on the last-computed marker
// elects one reader to recompute; everyone else keeps the previous
// snapshot until the swap lands.
func (s *Store) cachedAggregates() *aggregates {
	now := s.now().UnixNano()
	last := s.lastCalc.Load()
	if last != 0 && now-last < int64(cacheValidity) {
		if a := s.cached.Load(); a != nil {
			return a
		}
	}

	if s.lastCalc.CompareAndSwap(last, now) {
		a := s.computeAggregates()
		s.cached.Store(a)
		return a
	}

	// Lost the election; another reader is filling the cache. The
	// snapshot served here may predate a write from a few instructions
	// ago, staying well inside the cache validity bound.
	if a := s.cached.Load(); a != nil {
		return a
	}
	return s.computeAggregates()
}

func (s *Store) computeAggregates() *aggregates {
	values := s.collect(s.window)
	if len(values) == 0 {
		return &aggregates{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range values {
		sum += v
	}

	return &aggregates{
		p50:   percentileOf(sorted, 0.50),
		p90:   percentileOf(sorted, 0.90),
		p95:   percentileOf(sorted, 0.95),
		p99:   percentileOf(sorted, 0.99),
		avg:   sum / float64(len(values)),
		sum:   sum,
		rate:  sum / s.window.Seconds(),
		count: len(values),
	}
}

// summarize computes one aggregation over a non-empty value set.
func summarize(values []float64, agg Aggregation, window time.Duration) float64 {
	if p, ok := agg.percentile(); ok {
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		return percentileOf(sorted, p)
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	switch agg {
	case AVG:
		return sum / float64(len(values))
	case SUM:
		return sum
	case RATE:
		return sum / window.Seconds()
	case COUNT:
		return float64(len(values))
	}
	return 0
}

// percentileOf computes the nearest-rank percentile with linear
// interpolation at rank (n-1)*p. 100 samples of 1..100 give P50=50.5 and
// P95≈95.05.
func percentileOf(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := float64(len(sorted)-1) * p
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	if frac == 0 {
		return sorted[lower]
	}
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}
