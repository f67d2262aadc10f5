// Package decision maps a health score in [0, 1] onto typed operational
// values: throttle rates, staleness budgets, priorities, feature switches.
//
// Each output is declared as a Spec naming its output type and the shape
// of the mapping (linear, step, sigmoid, threshold, constant). An Engine
// compiles the specs once, validating parameters eagerly, and then
// evaluates them as pure functions of the health score. There is no
// hysteresis: the same score always produces the same decisions.
package decision
