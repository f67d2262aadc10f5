package health

import (
	"fmt"
	"time"

	"github.com/lifecache/lifecache/pkg/metrics"
)

// Strategy selects how per-rule scores fold into the overall score.
type Strategy string

const (
	// WeightedAvg is the weighted average of all scored rules.
	WeightedAvg Strategy = "weighted_avg"

	// WeightedMin takes the worst rule score. Use when any single
	// overloaded dimension should dominate.
	WeightedMin Strategy = "min"

	// WeightedMax takes the best rule score.
	WeightedMax Strategy = "max"

	// FirstMatch takes the score of the first configured rule whose
	// metric has a value, ignoring all later rules.
	FirstMatch Strategy = "first_match"
)

// ParseStrategy maps a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case WeightedAvg, WeightedMin, WeightedMax, FirstMatch:
		return Strategy(s), nil
	case "":
		return WeightedAvg, nil
	}
	return "", fmt.Errorf("health: unknown strategy %q", s)
}

// Threshold maps a metric value to a health score. A rule's thresholds
// must ascend by Value; scores may rise or fall along the way.
type Threshold struct {
	Value float64
	Score float64
}

// Rule scores one metric reading. Example for a latency signal:
//
//	Rule{
//	    Metric:      "request_latency_ms",
//	    Aggregation: metrics.P95,
//	    Window:      30 * time.Second,
//	    Weight:      1,
//	    Thresholds:  []Threshold{{100, 1.0}, {300, 0.5}, {500, 0.0}},
//	}
//
// reads 1.0 at or below 100ms, 0.0 at or above 500ms, and interpolates
// linearly in between.
type Rule struct {
	Metric      string
	Aggregation metrics.Aggregation
	Window      time.Duration
	Weight      float64
	Thresholds  []Threshold
}

// validate checks the rule at construction so Evaluate never has to.
func (r Rule) validate() error {
	if r.Metric == "" {
		return fmt.Errorf("metric name is required")
	}
	if r.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if r.Weight <= 0 {
		return fmt.Errorf("weight must be positive")
	}
	if len(r.Thresholds) == 0 {
		return fmt.Errorf("at least one threshold is required")
	}
	for i, th := range r.Thresholds {
		if th.Score < 0 || th.Score > 1 {
			return fmt.Errorf("threshold %d: score %.3f outside [0, 1]", i, th.Score)
		}
		if i > 0 && th.Value <= r.Thresholds[i-1].Value {
			return fmt.Errorf("threshold %d: values must strictly ascend", i)
		}
	}
	return nil
}

// score maps a metric value onto [0, 1] via the rule's thresholds. Values
// outside the threshold range clamp to the endpoint scores.
func (r Rule) score(value float64) float64 {
	ths := r.Thresholds
	if value <= ths[0].Value {
		return ths[0].Score
	}
	last := ths[len(ths)-1]
	if value >= last.Value {
		return last.Score
	}
	for i := 1; i < len(ths); i++ {
		if value <= ths[i].Value {
			prev, curr := ths[i-1], ths[i]
			ratio := (value - prev.Value) / (curr.Value - prev.Value)
			return prev.Score + (curr.Score-prev.Score)*ratio
		}
	}
	return last.Score
}

// RuleScore is one rule's contribution to an evaluation, kept for
// diagnostics and snapshots.
type RuleScore struct {
	Metric string
	Value  float64
	Score  float64
	Weight float64

	// Skipped is true when the rule's metric had no value in its window.
	Skipped bool
}

// Evaluator combines weighted rules into one health score.
type Evaluator struct {
	strategy Strategy
	rules    []Rule
}

// NewEvaluator validates every rule eagerly and returns the evaluator.
func NewEvaluator(strategy Strategy, rules []Rule) (*Evaluator, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = WeightedAvg
	}
	for i, r := range rules {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("health: rule %d (%s): %w", i, r.Metric, err)
		}
	}
	return &Evaluator{strategy: strategy, rules: append([]Rule(nil), rules...)}, nil
}

// Strategy returns the configured combination strategy.
func (e *Evaluator) Strategy() Strategy { return e.strategy }

// Rules returns a copy of the configured rules.
func (e *Evaluator) Rules() []Rule { return append([]Rule(nil), e.rules...) }

// Evaluate reads every rule's metric and folds the scores per the
// strategy. Pure with respect to the evaluator: the score depends only on
// what the reader returns right now.
func (e *Evaluator) Evaluate(r metrics.Reader) float64 {
	score, _ := e.EvaluateDetailed(r)
	return score
}

// EvaluateDetailed is Evaluate plus the per-rule breakdown.
func (e *Evaluator) EvaluateDetailed(r metrics.Reader) (float64, []RuleScore) {
	breakdown := make([]RuleScore, 0, len(e.rules))

	var (
		weightedSum float64
		weightTotal float64
		minScore    = 1.0
		maxScore    = 0.0
		scored      int
	)

	for _, rule := range e.rules {
		value, ok := r.Read(rule.Metric, rule.Aggregation, rule.Window)
		if !ok {
			breakdown = append(breakdown, RuleScore{Metric: rule.Metric, Skipped: true})
			continue
		}

		s := rule.score(value)
		breakdown = append(breakdown, RuleScore{
			Metric: rule.Metric,
			Value:  value,
			Score:  s,
			Weight: rule.Weight,
		})

		if e.strategy == FirstMatch {
			return s, breakdown
		}

		weightedSum += s * rule.Weight
		weightTotal += rule.Weight
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
		scored++
	}

	if scored == 0 {
		return 1.0, breakdown
	}

	switch e.strategy {
	case WeightedMin:
		return minScore, breakdown
	case WeightedMax:
		return maxScore, breakdown
	default:
		return weightedSum / weightTotal, breakdown
	}
}
