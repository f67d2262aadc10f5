package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// formulaLexer tokenizes derived-metric formulas. Identifiers follow
// [A-Za-z_][A-Za-z0-9_]*; there is no unary minus and no function syntax.
var formulaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[\s]+`},
	{Name: "Number", Pattern: `[0-9]*\.?[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[+\-*/()]`},
})

// formulaParser parses the grammar
//
//	expr   := term (('+'|'-') term)*
//	term   := factor (('*'|'/') factor)*
//	factor := NUMBER | IDENT | '(' expr ')'
//
// with standard precedence. Unbalanced parentheses, trailing tokens, and
// unexpected characters all fail here, at construction, never at
// evaluation time.
var formulaParser = participle.MustBuild[rawExpr](
	participle.Lexer(formulaLexer),
	participle.Elide("Whitespace"),
)

// Raw grammar nodes. These mirror the token stream; they are folded into
// the immutable evaluation tree right after parsing.

type rawExpr struct {
	First *rawTerm     `parser:"@@"`
	Rest  []*rawExprOp `parser:"@@*"`
}

type rawExprOp struct {
	Op   string   `parser:"@('+' | '-')"`
	Term *rawTerm `parser:"@@"`
}

type rawTerm struct {
	First *rawFactor   `parser:"@@"`
	Rest  []*rawTermOp `parser:"@@*"`
}

type rawTermOp struct {
	Op     string     `parser:"@('*' | '/')"`
	Factor *rawFactor `parser:"@@"`
}

type rawFactor struct {
	Number *float64 `parser:"@Number"`
	Metric *string  `parser:"| @Ident"`
	Sub    *rawExpr `parser:"| '(' @@ ')'"`
}

// expr is one node of the parsed formula tree. The tree is immutable after
// construction and shared read-only across all evaluations.
type expr interface {
	// eval resolves the node. ok is false when any referenced metric has
	// no value or a division by exactly zero occurs; the miss propagates
	// to the whole expression.
	eval(resolve func(name string) (float64, bool)) (float64, bool)

	// addMetricNames collects every metric reference in the subtree.
	addMetricNames(set map[string]struct{})
}

type constExpr float64

func (c constExpr) eval(func(string) (float64, bool)) (float64, bool) { return float64(c), true }
func (c constExpr) addMetricNames(map[string]struct{})                {}

type metricExpr string

func (m metricExpr) eval(resolve func(string) (float64, bool)) (float64, bool) {
	return resolve(string(m))
}

func (m metricExpr) addMetricNames(set map[string]struct{}) {
	set[string(m)] = struct{}{}
}

type binaryExpr struct {
	op          byte
	left, right expr
}

func (b *binaryExpr) eval(resolve func(string) (float64, bool)) (float64, bool) {
	l, ok := b.left.eval(resolve)
	if !ok {
		return 0, false
	}
	r, ok := b.right.eval(resolve)
	if !ok {
		return 0, false
	}
	switch b.op {
	case '+':
		return l + r, true
	case '-':
		return l - r, true
	case '*':
		return l * r, true
	case '/':
		if r == 0 {
			// Division by exactly zero is a missing value, never an Inf.
			return 0, false
		}
		return l / r, true
	}
	return 0, false
}

func (b *binaryExpr) addMetricNames(set map[string]struct{}) {
	b.left.addMetricNames(set)
	b.right.addMetricNames(set)
}

// Raw → evaluation tree folding. Left-associative, as the grammar implies.

func foldExpr(raw *rawExpr) expr {
	node := foldTerm(raw.First)
	for _, op := range raw.Rest {
		node = &binaryExpr{op: op.Op[0], left: node, right: foldTerm(op.Term)}
	}
	return node
}

func foldTerm(raw *rawTerm) expr {
	node := foldFactor(raw.First)
	for _, op := range raw.Rest {
		node = &binaryExpr{op: op.Op[0], left: node, right: foldFactor(op.Factor)}
	}
	return node
}

func foldFactor(raw *rawFactor) expr {
	switch {
	case raw.Number != nil:
		return constExpr(*raw.Number)
	case raw.Metric != nil:
		return metricExpr(*raw.Metric)
	default:
		return foldExpr(raw.Sub)
	}
}

// DerivedMetric computes a value from an arithmetic formula over other
// metrics, e.g. "error_count / (error_count + success_count)". The formula
// is parsed once at construction; every referenced metric resolves with
// the derived metric's own aggregation and window, shared across the whole
// formula.
type DerivedMetric struct {
	name    string
	formula string
	agg     Aggregation
	window  time.Duration
	root    expr
}

// NewDerivedMetric parses the formula and returns the metric, or an error
// for malformed input.
func NewDerivedMetric(name, formula string, agg Aggregation, window time.Duration) (*DerivedMetric, error) {
	if name == "" {
		return nil, fmt.Errorf("metrics: derived metric name is required")
	}
	if window <= 0 {
		return nil, fmt.Errorf("metrics: derived metric %q: window must be positive", name)
	}
	raw, err := formulaParser.ParseString(name, formula)
	if err != nil {
		return nil, fmt.Errorf("metrics: derived metric %q: parse formula: %w", name, err)
	}
	return &DerivedMetric{
		name:    name,
		formula: formula,
		agg:     agg,
		window:  window,
		root:    foldExpr(raw),
	}, nil
}

// Name returns the derived metric's name.
func (d *DerivedMetric) Name() string { return d.name }

// Formula returns the original formula text.
func (d *DerivedMetric) Formula() string { return d.formula }

// Compute evaluates the formula against the reader. ok is false when any
// referenced metric has no value in the window or a division by zero
// occurs.
func (d *DerivedMetric) Compute(r Reader) (float64, bool) {
	return d.root.eval(func(name string) (float64, bool) {
		return r.Read(name, d.agg, d.window)
	})
}

// ReferencedMetrics returns the sorted set of metric names the formula
// mentions, for validating configured inputs before first evaluation.
func (d *DerivedMetric) ReferencedMetrics() []string {
	set := make(map[string]struct{})
	d.root.addMetricNames(set)

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
