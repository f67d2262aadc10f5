package export

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lifecache/lifecache/pkg/decision"
	"github.com/lifecache/lifecache/pkg/qos"
)

// Collector exposes a qos.Engine as Prometheus metrics:
//
//	lifecache_health_score                      current health in [0, 1]
//	lifecache_decision_value{decision="..."}    numeric decision outputs
//	lifecache_signal_reading{reading="..."}     rule readings behind the score
//
// Boolean decisions export as 0/1, durations as seconds. String decisions
// have no numeric rendering and are skipped.
type Collector struct {
	engine *qos.Engine

	healthDesc   *prometheus.Desc
	decisionDesc *prometheus.Desc
	readingDesc  *prometheus.Desc
}

// NewCollector wraps the engine. Register it with a prometheus.Registerer.
func NewCollector(e *qos.Engine) *Collector {
	return &Collector{
		engine: e,
		healthDesc: prometheus.NewDesc(
			"lifecache_health_score",
			"Current health score in [0, 1].",
			nil, nil,
		),
		decisionDesc: prometheus.NewDesc(
			"lifecache_decision_value",
			"Current numeric decision outputs. Durations in seconds, booleans as 0/1.",
			[]string{"decision"}, nil,
		),
		readingDesc: prometheus.NewDesc(
			"lifecache_signal_reading",
			"Metric readings feeding the health rules.",
			[]string{"reading"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.healthDesc
	ch <- c.decisionDesc
	ch <- c.readingDesc
}

// Collect implements prometheus.Collector with a fresh evaluation.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.engine.Evaluate()

	ch <- prometheus.MustNewConstMetric(c.healthDesc, prometheus.GaugeValue, snap.HealthScore)

	for name, v := range snap.Decisions {
		num, ok := numericRendering(v)
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.decisionDesc, prometheus.GaugeValue, num, name)
	}

	for name, v := range snap.Metrics {
		ch <- prometheus.MustNewConstMetric(c.readingDesc, prometheus.GaugeValue, v, name)
	}
}

// numericRendering flattens a decision value to a float, reporting false
// for kinds with no numeric form.
func numericRendering(v decision.Value) (float64, bool) {
	switch v.Kind() {
	case decision.KindDouble, decision.KindInt, decision.KindDuration:
		return v.AsDouble(), true
	case decision.KindBool:
		if v.AsBool() {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
