package decision

import "fmt"

// Engine evaluates a fixed set of compiled decision outputs.
type Engine struct {
	order []string
	funcs map[string]evalFunc
	specs map[string]Spec
}

// New compiles every spec, failing on the first invalid one. Output names
// must be unique.
func New(specs []Spec) (*Engine, error) {
	e := &Engine{
		order: make([]string, 0, len(specs)),
		funcs: make(map[string]evalFunc, len(specs)),
		specs: make(map[string]Spec, len(specs)),
	}
	for _, s := range specs {
		if _, dup := e.funcs[s.Name]; dup {
			return nil, fmt.Errorf("decision: duplicate output %q", s.Name)
		}
		fn, err := compile(s)
		if err != nil {
			return nil, fmt.Errorf("decision: output %q: %w", s.Name, err)
		}
		e.order = append(e.order, s.Name)
		e.funcs[s.Name] = fn
		e.specs[s.Name] = s
	}
	return e, nil
}

// Names returns the output names in declaration order.
func (e *Engine) Names() []string {
	return append([]string(nil), e.order...)
}

// Spec returns the declaration behind an output name.
func (e *Engine) Spec(name string) (Spec, bool) {
	s, ok := e.specs[name]
	return s, ok
}

// Evaluate computes every output for the given health score.
func (e *Engine) Evaluate(health float64) map[string]Value {
	out := make(map[string]Value, len(e.funcs))
	for name, fn := range e.funcs {
		out[name] = fn(health)
	}
	return out
}

// EvaluateOne computes a single output, or errors for an unknown name.
func (e *Engine) EvaluateOne(name string, health float64) (Value, error) {
	fn, ok := e.funcs[name]
	if !ok {
		return Value{}, fmt.Errorf("decision: unknown output %q", name)
	}
	return fn(health), nil
}
