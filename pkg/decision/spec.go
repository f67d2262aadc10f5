package decision

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// OutputType declares the concrete type a decision produces.
type OutputType string

const (
	Double   OutputType = "DOUBLE"
	Integer  OutputType = "INTEGER"
	Boolean  OutputType = "BOOLEAN"
	Duration OutputType = "DURATION"
	String   OutputType = "STRING"
)

// ParseOutputType maps a config string to an OutputType. Empty defaults
// to Double.
func ParseOutputType(s string) (OutputType, error) {
	switch OutputType(s) {
	case Double, Integer, Boolean, Duration, String:
		return OutputType(s), nil
	case "":
		return Double, nil
	}
	return "", fmt.Errorf("decision: unknown output type %q", s)
}

func (t OutputType) numeric() bool {
	return t == Double || t == Integer || t == Duration
}

// FunctionType selects the health-to-value mapping shape.
type FunctionType string

const (
	Linear   FunctionType = "LINEAR"
	StepFn   FunctionType = "STEP"
	Sigmoid  FunctionType = "SIGMOID"
	ThreshFn FunctionType = "THRESHOLD"
	ConstFn  FunctionType = "CONSTANT"
)

// ParseFunctionType maps a config string to a FunctionType. Empty
// defaults to Linear.
func ParseFunctionType(s string) (FunctionType, error) {
	switch FunctionType(s) {
	case Linear, StepFn, Sigmoid, ThreshFn, ConstFn:
		return FunctionType(s), nil
	case "":
		return Linear, nil
	}
	return "", fmt.Errorf("decision: unknown function type %q", s)
}

// Step is one rung of a step function: the value that applies while
// health is at or above HealthMin.
type Step struct {
	HealthMin float64
	Value     interface{}
}

// Params carries the knobs for every function family. Unset pointers fall
// back to per-family defaults at compile time.
type Params struct {
	// Min and Max bound linear and sigmoid numeric outputs.
	// Defaults: duration 30..1800 seconds, integer 1..10, double 0..1.
	Min *float64
	Max *float64

	// StartThreshold and MaxRate shape the rate-style linear double:
	// zero while health >= StartThreshold, rising to MaxRate at zero
	// health. Defaults 0.5 and 0.9.
	StartThreshold *float64
	MaxRate        *float64

	// Steepness controls the sigmoid transition width. Default 10.
	Steepness *float64

	// Threshold splits boolean linear and threshold functions. Default 0.5.
	Threshold *float64

	// Steps drive the step function, Interpolate blends between numeric
	// steps instead of jumping.
	Steps       []Step
	Interpolate bool

	// Below and Above are the two threshold-function outcomes.
	Below interface{}
	Above interface{}

	// Value is the constant-function output.
	Value interface{}
}

// Spec declares one named decision output.
type Spec struct {
	Name     string
	Output   OutputType
	Function FunctionType
	Params   Params
}

// evalFunc is a compiled spec: pure health → value.
type evalFunc func(health float64) Value

// compile validates the spec and returns its evaluation function. All
// parameter problems surface here, never during evaluation.
func compile(s Spec) (evalFunc, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("decision: output name is required")
	}
	out, err := ParseOutputType(string(s.Output))
	if err != nil {
		return nil, err
	}
	fn, err := ParseFunctionType(string(s.Function))
	if err != nil {
		return nil, err
	}

	switch fn {
	case Linear:
		return compileLinear(out, s.Params)
	case StepFn:
		return compileStep(out, s.Params)
	case Sigmoid:
		return compileSigmoid(out, s.Params)
	case ThreshFn:
		return compileThreshold(out, s.Params)
	default:
		return compileConstant(out, s.Params)
	}
}

func compileLinear(out OutputType, p Params) (evalFunc, error) {
	switch out {
	case Duration:
		min := paramOr(p.Min, 30)
		max := paramOr(p.Max, 1800)
		return func(h float64) Value {
			secs := int64(min + (max-min)*(1-h))
			return DurationValue(time.Duration(secs) * time.Second)
		}, nil

	case Double:
		// Rate style: silent at high health, ramping to MaxRate as
		// health falls below StartThreshold.
		start := paramOr(p.StartThreshold, 0.5)
		maxRate := paramOr(p.MaxRate, 0.9)
		if start <= 0 {
			return nil, fmt.Errorf("decision: linear double: start threshold must be positive")
		}
		return func(h float64) Value {
			if h >= start {
				return DoubleValue(0)
			}
			rate := (start - h) / start * maxRate
			return DoubleValue(math.Min(math.Max(rate, 0), maxRate))
		}, nil

	case Integer:
		min := paramOr(p.Min, 1)
		max := paramOr(p.Max, 10)
		return func(h float64) Value {
			return IntValue(int(min + (max-min)*(1-h)))
		}, nil

	case Boolean:
		threshold := paramOr(p.Threshold, 0.5)
		return func(h float64) Value {
			return BoolValue(h >= threshold)
		}, nil

	default: // String
		return func(h float64) Value {
			return StringValue(strconv.FormatFloat(h, 'g', -1, 64))
		}, nil
	}
}

// compiledStep is a coerced step, sorted by HealthMin descending.
type compiledStep struct {
	healthMin float64
	value     Value
	num       float64
}

func compileStep(out OutputType, p Params) (evalFunc, error) {
	if len(p.Steps) == 0 {
		return nil, fmt.Errorf("decision: step function requires at least one step")
	}

	steps := make([]compiledStep, len(p.Steps))
	for i, st := range p.Steps {
		v, err := coerce(out, st.Value)
		if err != nil {
			return nil, fmt.Errorf("decision: step %d: %w", i, err)
		}
		steps[i] = compiledStep{healthMin: st.HealthMin, value: v, num: v.AsDouble()}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].healthMin > steps[j].healthMin })
	for i := 1; i < len(steps); i++ {
		if steps[i].healthMin == steps[i-1].healthMin {
			return nil, fmt.Errorf("decision: duplicate step health_min %g", steps[i].healthMin)
		}
	}

	interpolate := p.Interpolate && out.numeric() && len(steps) >= 2

	return func(h float64) Value {
		if interpolate {
			for i := 0; i < len(steps)-1; i++ {
				upper, lower := steps[i], steps[i+1]
				if h <= upper.healthMin && h >= lower.healthMin {
					ratio := (upper.healthMin - h) / (upper.healthMin - lower.healthMin)
					return numericValue(out, upper.num+(lower.num-upper.num)*ratio)
				}
			}
		}
		for _, st := range steps {
			if h >= st.healthMin {
				return st.value
			}
		}
		return steps[len(steps)-1].value
	}, nil
}

func compileSigmoid(out OutputType, p Params) (evalFunc, error) {
	steepness := paramOr(p.Steepness, 10)

	weight := func(h float64) float64 {
		return 1 / (1 + math.Exp(-(0.5-h)*steepness))
	}

	switch out {
	case Duration:
		min := paramOr(p.Min, 30)
		max := paramOr(p.Max, 1800)
		return func(h float64) Value {
			secs := int64(min + (max-min)*weight(h))
			return DurationValue(time.Duration(secs) * time.Second)
		}, nil

	case Double:
		min := paramOr(p.Min, 0)
		max := paramOr(p.Max, 1)
		return func(h float64) Value {
			return DoubleValue(min + (max-min)*weight(h))
		}, nil

	default:
		// Non-numeric sigmoids fall back to the linear handling.
		return compileLinear(out, p)
	}
}

func compileThreshold(out OutputType, p Params) (evalFunc, error) {
	threshold := paramOr(p.Threshold, 0.5)

	below, err := coerce(out, p.Below)
	if err != nil {
		return nil, fmt.Errorf("decision: threshold below value: %w", err)
	}
	above, err := coerce(out, p.Above)
	if err != nil {
		return nil, fmt.Errorf("decision: threshold above value: %w", err)
	}

	return func(h float64) Value {
		if h >= threshold {
			return above
		}
		return below
	}, nil
}

func compileConstant(out OutputType, p Params) (evalFunc, error) {
	v, err := coerce(out, p.Value)
	if err != nil {
		return nil, fmt.Errorf("decision: constant value: %w", err)
	}
	return func(float64) Value { return v }, nil
}

// numericValue wraps an interpolated number in the output's kind.
// Integer and duration outputs truncate toward zero.
func numericValue(out OutputType, v float64) Value {
	switch out {
	case Integer:
		return IntValue(int(v))
	case Duration:
		return DurationValue(time.Duration(int64(v)) * time.Second)
	default:
		return DoubleValue(v)
	}
}

// coerce converts a raw parameter into a Value of the output type.
// Numbers arriving from config decode as int or float64; durations are
// whole seconds.
func coerce(out OutputType, raw interface{}) (Value, error) {
	if raw == nil {
		return Value{}, fmt.Errorf("value is required")
	}

	switch out {
	case Boolean:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("expected a boolean, got %T", raw)
		}
		return BoolValue(b), nil

	case String:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected a string, got %T", raw)
		}
		return StringValue(s), nil
	}

	n, ok := toFloat(raw)
	if !ok {
		return Value{}, fmt.Errorf("expected a number, got %T", raw)
	}
	switch out {
	case Integer:
		return IntValue(int(n)), nil
	case Duration:
		return DurationValue(time.Duration(int64(n)) * time.Second), nil
	default:
		return DoubleValue(n), nil
	}
}

func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func paramOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
