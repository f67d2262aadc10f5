package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lifecache/lifecache/pkg/decision"
	"github.com/lifecache/lifecache/pkg/health"
	"github.com/lifecache/lifecache/pkg/metrics"
	"github.com/lifecache/lifecache/pkg/qos"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultWindow     = 60 * time.Second
	DefaultRuleWindow = 30 * time.Second
	DefaultRuleWeight = 1.0
)

// Config is the top-level configuration. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	// DefaultWindow is the retention window for signals that do not set
	// their own.
	DefaultWindow time.Duration `yaml:"default_window"`

	// Signals declares the raw inputs recorded into the registry.
	Signals []SignalConfig `yaml:"signals"`

	// DerivedMetrics are computed from the raw signals by formula.
	DerivedMetrics []DerivedMetricConfig `yaml:"derived_metrics"`

	// Evaluator holds the health rules and combination strategy.
	Evaluator EvaluatorConfig `yaml:"evaluator"`

	// Decisions declares the typed outputs derived from the health score.
	Decisions []DecisionConfig `yaml:"decisions"`
}

// SignalConfig declares one raw signal.
type SignalConfig struct {
	// Name is the unique signal identifier.
	Name string `yaml:"name"`

	// Type is gauge or counter. Defaults to gauge.
	Type string `yaml:"type"`

	// Window is the retention window. When zero it is derived from
	// bucket_seconds × max_buckets, and failing that the default window.
	Window time.Duration `yaml:"window"`

	// BucketSeconds and MaxBuckets express the window as a bucketed ring,
	// the shape older deployments configure.
	BucketSeconds int `yaml:"bucket_seconds"`
	MaxBuckets    int `yaml:"max_buckets"`

	// Filter bounds ingested values; samples outside are dropped silently.
	Filter FilterConfig `yaml:"filter"`
}

// FilterConfig bounds one signal's ingested values.
type FilterConfig struct {
	DropNegative bool     `yaml:"drop_negative"`
	Min          *float64 `yaml:"min"`
	Max          *float64 `yaml:"max"`
}

// DerivedMetricConfig declares one formula-computed metric.
type DerivedMetricConfig struct {
	Name string `yaml:"name"`

	// Formula is arithmetic over signal names, e.g.
	// "errors / (errors + successes)".
	Formula string `yaml:"formula"`

	// Aggregation applies to every signal the formula references.
	Aggregation string `yaml:"aggregation"`

	Window time.Duration `yaml:"window"`
}

// EvaluatorConfig holds the health rules.
type EvaluatorConfig struct {
	// Strategy is weighted_avg | min | max | first_match.
	Strategy string `yaml:"strategy"`

	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig scores one metric reading.
type RuleConfig struct {
	Metric      string            `yaml:"metric"`
	Aggregation string            `yaml:"aggregation"`
	Window      time.Duration     `yaml:"window"`
	Weight      float64           `yaml:"weight"`
	Thresholds  []ThresholdConfig `yaml:"thresholds"`
}

// ThresholdConfig maps a metric value to a health score.
type ThresholdConfig struct {
	Value float64 `yaml:"value"`
	Score float64 `yaml:"score"`
}

// DecisionConfig declares one decision output.
type DecisionConfig struct {
	Name string `yaml:"name"`

	// Type is DOUBLE | INTEGER | BOOLEAN | DURATION | STRING.
	Type string `yaml:"type"`

	// Function is LINEAR | STEP | SIGMOID | THRESHOLD | CONSTANT.
	Function string `yaml:"function"`

	Params ParamsConfig `yaml:"params"`
}

// ParamsConfig carries the function parameters; which fields apply
// depends on the function family.
type ParamsConfig struct {
	Min            *float64     `yaml:"min"`
	Max            *float64     `yaml:"max"`
	StartThreshold *float64     `yaml:"start_threshold"`
	MaxRate        *float64     `yaml:"max_rate"`
	Steepness      *float64     `yaml:"steepness"`
	Threshold      *float64     `yaml:"threshold"`
	Interpolate    bool         `yaml:"interpolate"`
	Steps          []StepConfig `yaml:"steps"`
	Below          interface{}  `yaml:"below"`
	Above          interface{}  `yaml:"above"`
	Value          interface{}  `yaml:"value"`
}

// StepConfig is one rung of a step function.
type StepConfig struct {
	HealthMin float64     `yaml:"health_min"`
	Value     interface{} `yaml:"value"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		DefaultWindow: DefaultWindow,
	}
}

// applyDefaults fills per-entry defaults that depend on sibling fields.
func applyDefaults(cfg *Config) {
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = DefaultWindow
	}
	for i := range cfg.Signals {
		s := &cfg.Signals[i]
		if s.Type == "" {
			s.Type = "gauge"
		}
		if s.Window <= 0 && s.BucketSeconds > 0 && s.MaxBuckets > 0 {
			s.Window = time.Duration(s.BucketSeconds*s.MaxBuckets) * time.Second
		}
		if s.Window <= 0 {
			s.Window = cfg.DefaultWindow
		}
	}
	for i := range cfg.DerivedMetrics {
		d := &cfg.DerivedMetrics[i]
		if d.Aggregation == "" {
			d.Aggregation = string(metrics.AVG)
		}
		if d.Window <= 0 {
			d.Window = cfg.DefaultWindow
		}
	}
	for i := range cfg.Evaluator.Rules {
		r := &cfg.Evaluator.Rules[i]
		if r.Aggregation == "" {
			r.Aggregation = string(metrics.P95)
		}
		if r.Window <= 0 {
			r.Window = DefaultRuleWindow
		}
		if r.Weight == 0 {
			r.Weight = DefaultRuleWeight
		}
	}
}

// validate checks required fields and structural constraints. Semantic
// checks (formula syntax, threshold ordering, parameter coherence) run in
// Build through the package constructors.
func validate(cfg *Config) error {
	seen := make(map[string]bool)
	for i, s := range cfg.Signals {
		if s.Name == "" {
			return fmt.Errorf("signals[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("signals[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		switch s.Type {
		case "gauge", "counter":
		default:
			return fmt.Errorf("signals[%d] %q: unknown type %q", i, s.Name, s.Type)
		}
	}
	for i, d := range cfg.DerivedMetrics {
		if d.Name == "" {
			return fmt.Errorf("derived_metrics[%d]: name is required", i)
		}
		if d.Formula == "" {
			return fmt.Errorf("derived_metrics[%d] %q: formula is required", i, d.Name)
		}
		if _, err := metrics.ParseAggregation(d.Aggregation); err != nil {
			return fmt.Errorf("derived_metrics[%d] %q: %w", i, d.Name, err)
		}
	}
	if _, err := health.ParseStrategy(cfg.Evaluator.Strategy); err != nil {
		return fmt.Errorf("evaluator: %w", err)
	}
	for i, r := range cfg.Evaluator.Rules {
		if r.Metric == "" {
			return fmt.Errorf("evaluator.rules[%d]: metric is required", i)
		}
		if _, err := metrics.ParseAggregation(r.Aggregation); err != nil {
			return fmt.Errorf("evaluator.rules[%d] %q: %w", i, r.Metric, err)
		}
		if len(r.Thresholds) == 0 {
			return fmt.Errorf("evaluator.rules[%d] %q: at least one threshold is required", i, r.Metric)
		}
	}
	for i, d := range cfg.Decisions {
		if d.Name == "" {
			return fmt.Errorf("decisions[%d]: name is required", i)
		}
		if _, err := decision.ParseOutputType(d.Type); err != nil {
			return fmt.Errorf("decisions[%d] %q: %w", i, d.Name, err)
		}
		if _, err := decision.ParseFunctionType(d.Function); err != nil {
			return fmt.Errorf("decisions[%d] %q: %w", i, d.Name, err)
		}
	}
	return nil
}

// Build constructs the QoS engine this config describes.
func (c *Config) Build() (*qos.Engine, error) {
	signals := make(map[string]metrics.SignalConfig, len(c.Signals))
	for _, s := range c.Signals {
		typ := metrics.Gauge
		if s.Type == "counter" {
			typ = metrics.Counter
		}
		signals[s.Name] = metrics.SignalConfig{
			Type:   typ,
			Window: s.Window,
			Filter: metrics.Filter{
				DropNegative: s.Filter.DropNegative,
				Min:          s.Filter.Min,
				Max:          s.Filter.Max,
			},
		}
	}

	derived := make([]*metrics.DerivedMetric, 0, len(c.DerivedMetrics))
	for _, d := range c.DerivedMetrics {
		agg, err := metrics.ParseAggregation(d.Aggregation)
		if err != nil {
			return nil, fmt.Errorf("config: derived metric %q: %w", d.Name, err)
		}
		dm, err := metrics.NewDerivedMetric(d.Name, d.Formula, agg, d.Window)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		derived = append(derived, dm)
	}

	strategy, err := health.ParseStrategy(c.Evaluator.Strategy)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	rules := make([]health.Rule, 0, len(c.Evaluator.Rules))
	for _, r := range c.Evaluator.Rules {
		agg, err := metrics.ParseAggregation(r.Aggregation)
		if err != nil {
			return nil, fmt.Errorf("config: rule %q: %w", r.Metric, err)
		}
		thresholds := make([]health.Threshold, len(r.Thresholds))
		for i, th := range r.Thresholds {
			thresholds[i] = health.Threshold{Value: th.Value, Score: th.Score}
		}
		rules = append(rules, health.Rule{
			Metric:      r.Metric,
			Aggregation: agg,
			Window:      r.Window,
			Weight:      r.Weight,
			Thresholds:  thresholds,
		})
	}
	evaluator, err := health.NewEvaluator(strategy, rules)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	specs := make([]decision.Spec, 0, len(c.Decisions))
	for _, d := range c.Decisions {
		steps := make([]decision.Step, len(d.Params.Steps))
		for i, st := range d.Params.Steps {
			steps[i] = decision.Step{HealthMin: st.HealthMin, Value: st.Value}
		}
		specs = append(specs, decision.Spec{
			Name:     d.Name,
			Output:   decision.OutputType(d.Type),
			Function: decision.FunctionType(d.Function),
			Params: decision.Params{
				Min:            d.Params.Min,
				Max:            d.Params.Max,
				StartThreshold: d.Params.StartThreshold,
				MaxRate:        d.Params.MaxRate,
				Steepness:      d.Params.Steepness,
				Threshold:      d.Params.Threshold,
				Interpolate:    d.Params.Interpolate,
				Steps:          steps,
				Below:          d.Params.Below,
				Above:          d.Params.Above,
				Value:          d.Params.Value,
			},
		})
	}
	decisions, err := decision.New(specs)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	engine, err := qos.New(qos.Options{
		DefaultWindow: c.DefaultWindow,
		Signals:       signals,
		Derived:       derived,
		Evaluator:     evaluator,
		Decisions:     decisions,
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return engine, nil
}
