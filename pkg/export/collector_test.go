package export

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lifecache/lifecache/pkg/decision"
	"github.com/lifecache/lifecache/pkg/health"
	"github.com/lifecache/lifecache/pkg/metrics"
	"github.com/lifecache/lifecache/pkg/qos"
)

func testEngine(t *testing.T) *qos.Engine {
	t.Helper()

	evaluator, err := health.NewEvaluator(health.WeightedAvg, []health.Rule{{
		Metric:      "latency_ms",
		Aggregation: metrics.P95,
		Window:      time.Minute,
		Weight:      1,
		Thresholds: []health.Threshold{
			{Value: 100, Score: 1.0},
			{Value: 300, Score: 0.5},
		},
	}})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	decisions, err := decision.New([]decision.Spec{
		{Name: "allowStaleness", Output: decision.Duration, Function: decision.Linear},
		{Name: "cacheEnabled", Output: decision.Boolean, Function: decision.Linear},
		{Name: "mode", Output: decision.String, Function: decision.ThreshFn,
			Params: decision.Params{Below: "degraded", Above: "full"}},
	})
	if err != nil {
		t.Fatalf("decision.New: %v", err)
	}

	e, err := qos.New(qos.Options{
		Signals: map[string]metrics.SignalConfig{
			"latency_ms": {Window: time.Minute},
		},
		Evaluator: evaluator,
		Decisions: decisions,
	})
	if err != nil {
		t.Fatalf("qos.New: %v", err)
	}
	return e
}

func TestCollector(t *testing.T) {
	e := testEngine(t)
	for i := 0; i < 20; i++ {
		e.Record("latency_ms", 200) // health 0.75
	}

	// Duration at h=0.75: 30 + 1770*0.25 = 472s. Boolean 0.75 >= 0.5 → 1.
	// The string decision has no numeric form and must not appear.
	want := `# HELP lifecache_decision_value Current numeric decision outputs. Durations in seconds, booleans as 0/1.
# TYPE lifecache_decision_value gauge
lifecache_decision_value{decision="allowStaleness"} 472
lifecache_decision_value{decision="cacheEnabled"} 1
# HELP lifecache_health_score Current health score in [0, 1].
# TYPE lifecache_health_score gauge
lifecache_health_score 0.75
# HELP lifecache_signal_reading Metric readings feeding the health rules.
# TYPE lifecache_signal_reading gauge
lifecache_signal_reading{reading="latency_ms_p95"} 200
`
	err := testutil.CollectAndCompare(NewCollector(e), strings.NewReader(want))
	if err != nil {
		t.Errorf("unexpected exposition:\n%v", err)
	}
}

func TestCollector_EmptyEngine(t *testing.T) {
	e := testEngine(t)

	// No samples: health fails open to 1.0 and no readings are exposed.
	want := `# HELP lifecache_health_score Current health score in [0, 1].
# TYPE lifecache_health_score gauge
lifecache_health_score 1
`
	err := testutil.CollectAndCompare(NewCollector(e), strings.NewReader(want), "lifecache_health_score", "lifecache_signal_reading")
	if err != nil {
		t.Errorf("unexpected exposition:\n%v", err)
	}
}

func TestCollector_MetricCount(t *testing.T) {
	c := NewCollector(testEngine(t))

	// health + 2 numeric decisions; no samples means no readings.
	if got := testutil.CollectAndCount(c); got != 3 {
		t.Errorf("CollectAndCount = %d, want 3", got)
	}
}
