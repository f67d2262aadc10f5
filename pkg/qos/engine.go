package qos

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/lifecache/lifecache/pkg/decision"
	"github.com/lifecache/lifecache/pkg/health"
	"github.com/lifecache/lifecache/pkg/metrics"
)

// ThrottleDecision is the conventional output name ShouldThrottle reads.
const ThrottleDecision = "throttleRate"

// Options assembles an Engine. Signals must cover every metric the
// derived formulas and health rules reference; New fails eagerly on a
// dangling name so misconfiguration surfaces at startup, not mid-traffic.
type Options struct {
	// DefaultWindow applies to signals recorded without configuration.
	DefaultWindow time.Duration

	// Signals declares the raw inputs: type, retention window, filter.
	Signals map[string]metrics.SignalConfig

	// Derived metrics computed from the raw signals. Formulas may only
	// reference declared signals, not other derived metrics.
	Derived []*metrics.DerivedMetric

	// Evaluator scores health. Nil means no rules: health is always 1.0.
	Evaluator *health.Evaluator

	// Decisions maps health to outputs. Nil means no decisions.
	Decisions *decision.Engine
}

// Engine is the composed QoS evaluator. Safe for concurrent use.
type Engine struct {
	registry  *metrics.Registry
	reader    *metrics.CompositeReader
	evaluator *health.Evaluator
	decisions *decision.Engine

	now func() time.Time
	rnd func() float64
}

// New validates the options and builds the engine.
func New(opts Options) (*Engine, error) {
	signals := make(map[string]struct{}, len(opts.Signals))
	for name := range opts.Signals {
		signals[name] = struct{}{}
	}

	known := make(map[string]struct{}, len(signals)+len(opts.Derived))
	for name := range signals {
		known[name] = struct{}{}
	}
	for _, d := range opts.Derived {
		if _, dup := known[d.Name()]; dup {
			return nil, fmt.Errorf("qos: derived metric %q collides with another metric", d.Name())
		}
		known[d.Name()] = struct{}{}
	}
	for _, d := range opts.Derived {
		for _, ref := range d.ReferencedMetrics() {
			if _, ok := signals[ref]; !ok {
				return nil, fmt.Errorf("qos: derived metric %q references unknown signal %q", d.Name(), ref)
			}
		}
	}

	evaluator := opts.Evaluator
	if evaluator == nil {
		var err error
		evaluator, err = health.NewEvaluator(health.WeightedAvg, nil)
		if err != nil {
			return nil, err
		}
	}
	for _, rule := range evaluator.Rules() {
		if _, ok := known[rule.Metric]; !ok {
			return nil, fmt.Errorf("qos: health rule references unknown metric %q", rule.Metric)
		}
	}

	decisions := opts.Decisions
	if decisions == nil {
		var err error
		decisions, err = decision.New(nil)
		if err != nil {
			return nil, err
		}
	}

	registry := metrics.NewRegistry(opts.DefaultWindow)
	for name, cfg := range opts.Signals {
		registry.ConfigureSignal(name, cfg)
	}

	return &Engine{
		registry:  registry,
		reader:    metrics.NewCompositeReader(registry, opts.Derived),
		evaluator: evaluator,
		decisions: decisions,
		now:       time.Now,
		rnd:       rand.Float64,
	}, nil
}

// Record stores one observation of a named signal, timestamped now.
func (e *Engine) Record(name string, value float64) {
	e.registry.Record(metrics.Sample{Name: name, Value: value})
}

// RecordSample stores one pre-built sample.
func (e *Engine) RecordSample(s metrics.Sample) {
	e.registry.Record(s)
}

// HealthScore evaluates the rules against the current readings.
func (e *Engine) HealthScore() float64 {
	return e.evaluator.Evaluate(e.reader)
}

// Evaluate produces a fresh snapshot: health, status band, every decision
// output, and the rule readings that fed the score.
func (e *Engine) Evaluate() Snapshot {
	score, breakdown := e.evaluator.EvaluateDetailed(e.reader)

	readings := make(map[string]float64, len(breakdown))
	rules := e.evaluator.Rules()
	for i, rs := range breakdown {
		if rs.Skipped {
			continue
		}
		key := rs.Metric + "_" + strings.ToLower(string(rules[i].Aggregation))
		readings[key] = rs.Value
	}

	return Snapshot{
		Time:        e.now(),
		HealthScore: score,
		Status:      StatusFromScore(score),
		Decisions:   e.decisions.Evaluate(score),
		Metrics:     readings,
	}
}

// ShouldDrop interprets the named Double decision as a drop probability
// and draws once against it. Unknown names, non-double outputs, and
// non-positive rates never drop.
func (e *Engine) ShouldDrop(name string) bool {
	v, err := e.decisions.EvaluateOne(name, e.HealthScore())
	if err != nil || v.Kind() != decision.KindDouble {
		return false
	}
	rate := v.AsDouble()
	if rate <= 0 {
		return false
	}
	return e.rnd() < rate
}

// ShouldThrottle draws against the conventional throttle-rate output.
func (e *Engine) ShouldThrottle() bool {
	return e.ShouldDrop(ThrottleDecision)
}

// Reader exposes the composed metric reader, derived metrics included.
func (e *Engine) Reader() metrics.Reader { return e.reader }

// Registry exposes the underlying signal registry.
func (e *Engine) Registry() *metrics.Registry { return e.registry }

// Decisions exposes the decision engine.
func (e *Engine) Decisions() *decision.Engine { return e.decisions }

// Evaluator exposes the health evaluator.
func (e *Engine) Evaluator() *health.Evaluator { return e.evaluator }

// Clear empties every signal store, keeping all configuration.
func (e *Engine) Clear() {
	e.registry.Clear()
}
