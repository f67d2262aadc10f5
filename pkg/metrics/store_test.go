package metrics

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// fixedStore returns a store whose clock is pinned to base.
func fixedStore(typ SignalType, window time.Duration, base time.Time) *Store {
	s := NewStore("test", typ, window)
	s.now = func() time.Time { return base }
	return s
}

func TestStoreRead_Aggregations(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedStore(Gauge, time.Minute, base)

	// 100 samples of 1..100, all inside the window.
	for i := 1; i <= 100; i++ {
		s.Write(float64(i), base.Add(-time.Duration(i)*time.Millisecond))
	}

	tests := []struct {
		agg  Aggregation
		want float64
	}{
		{P50, 50.5},
		{P90, 90.1},
		{P95, 95.05},
		{P99, 99.01},
		{AVG, 50.5},
		{SUM, 5050},
		{RATE, 5050.0 / 60.0},
		{COUNT, 100},
	}
	for _, tc := range tests {
		t.Run(string(tc.agg), func(t *testing.T) {
			got, ok := s.Read(tc.agg, time.Minute)
			if !ok {
				t.Fatalf("Read(%s) reported no value", tc.agg)
			}
			if !almostEqual(got, tc.want, 0.0001) {
				t.Errorf("Read(%s) = %.4f, want %.4f", tc.agg, got, tc.want)
			}
		})
	}
}

func TestStoreRead_OrderIndependent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	values := make([]float64, 200)
	for i := range values {
		values[i] = float64(i + 1)
	}

	ordered := fixedStore(Gauge, time.Minute, base)
	for _, v := range values {
		ordered.Write(v, base)
	}

	shuffled := fixedStore(Gauge, time.Minute, base)
	rand.New(rand.NewSource(7)).Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})
	for _, v := range values {
		shuffled.Write(v, base)
	}

	for _, agg := range []Aggregation{P50, P95, P99} {
		a, _ := ordered.Read(agg, time.Minute)
		b, _ := shuffled.Read(agg, time.Minute)
		if a != b {
			t.Errorf("%s differs by arrival order: %.4f vs %.4f", agg, a, b)
		}
	}
}

func TestStoreRead_EmptyNeverZero(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedStore(Gauge, time.Minute, base)

	for _, agg := range []Aggregation{P50, P90, P95, P99, AVG, SUM, RATE, COUNT} {
		if _, ok := s.Read(agg, time.Minute); ok {
			t.Errorf("empty store Read(%s) reported a value", agg)
		}
		if _, ok := s.ReadDefault(agg); ok {
			t.Errorf("empty store ReadDefault(%s) reported a value", agg)
		}
	}
	if got := s.SampleCount(); got != 0 {
		t.Errorf("SampleCount on empty store = %d, want 0", got)
	}
}

func TestStoreRead_SingleSample(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedStore(Gauge, time.Minute, base)
	s.Write(42, base)

	for _, agg := range []Aggregation{P50, P95, P99, AVG} {
		got, ok := s.Read(agg, time.Minute)
		if !ok || got != 42 {
			t.Errorf("Read(%s) = %.2f ok=%v, want 42", agg, got, ok)
		}
	}
}

func TestStoreRead_WindowFiltering(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedStore(Gauge, 10*time.Minute, base)

	s.Write(100, base.Add(-5*time.Minute)) // outside a 1m window
	s.Write(200, base.Add(-30*time.Second))
	s.Write(300, base.Add(-10*time.Second))

	got, ok := s.Read(AVG, time.Minute)
	if !ok {
		t.Fatal("Read reported no value")
	}
	if got != 250 {
		t.Errorf("AVG over 1m = %.2f, want 250 (old sample must be excluded)", got)
	}

	// The wider window still sees all three.
	got, _ = s.Read(COUNT, 10*time.Minute)
	if got != 3 {
		t.Errorf("COUNT over 10m = %.0f, want 3", got)
	}

	// A window with no matching samples is a miss, not zero.
	if _, ok := s.Read(AVG, time.Second); ok {
		t.Error("Read over 1s window reported a value; want no value")
	}
}

func TestStoreWrite_PrunesOldest(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedStore(Gauge, time.Minute, base)

	s.Write(1, base.Add(-2*time.Minute)) // already stale
	s.Write(2, base.Add(-90*time.Second))
	s.Write(3, base) // this write prunes both older samples

	got, ok := s.Read(COUNT, time.Hour)
	if !ok || got != 1 {
		t.Errorf("COUNT after prune = %.0f ok=%v, want 1", got, ok)
	}
}

func TestStoreCache_InvalidatedByWrite(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedStore(Gauge, time.Minute, base)

	s.Write(10, base)
	if got, _ := s.ReadDefault(AVG); got != 10 {
		t.Fatalf("ReadDefault(AVG) = %.2f, want 10", got)
	}

	// A write must invalidate the cached aggregates immediately, even
	// though the clock has not advanced past the cache validity.
	s.Write(30, base)
	if got, _ := s.ReadDefault(AVG); got != 20 {
		t.Errorf("ReadDefault(AVG) after write = %.2f, want 20", got)
	}
	if got := s.SampleCount(); got != 2 {
		t.Errorf("SampleCount = %d, want 2", got)
	}
}

func TestStoreClear(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedStore(Counter, time.Minute, base)
	s.Write(5, base)
	s.Clear()

	if _, ok := s.Read(SUM, time.Minute); ok {
		t.Error("Read after Clear reported a value")
	}
	if got := s.SampleCount(); got != 0 {
		t.Errorf("SampleCount after Clear = %d, want 0", got)
	}
}

func TestStoreWrite_Concurrent(t *testing.T) {
	s := NewStore("latency", Gauge, time.Minute)

	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 500; i++ {
				s.Write(float64(i), time.Now())
				s.Read(P95, time.Minute)
				s.ReadDefault(P95)
			}
		}()
	}
	for w := 0; w < 8; w++ {
		<-done
	}

	got, ok := s.Read(COUNT, time.Minute)
	if !ok || got != 8*500 {
		t.Errorf("COUNT after concurrent writes = %.0f ok=%v, want %d", got, ok, 8*500)
	}
}

func TestPercentileOf(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"median of two", []float64{10, 20}, 0.5, 15},
		{"exact rank", []float64{1, 2, 3, 4, 5}, 0.5, 3},
		{"interpolated", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p0 is min", []float64{3, 7, 9}, 0, 3},
		{"p100 is max", []float64{3, 7, 9}, 1, 9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileOf(tc.sorted, tc.p); !almostEqual(got, tc.want, 1e-9) {
				t.Errorf("percentileOf(%v, %.2f) = %.4f, want %.4f", tc.sorted, tc.p, got, tc.want)
			}
		})
	}
}
