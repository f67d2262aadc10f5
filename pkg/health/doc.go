// Package health turns raw metric readings into a single health score in
// [0, 1].
//
// An Evaluator holds a set of weighted rules. Each rule reads one metric
// through a metrics.Reader and maps the value to a per-rule score by linear
// interpolation over its thresholds. A combination strategy then folds the
// per-rule scores into the overall score.
//
// Rules whose metric has no current value are skipped entirely: they
// contribute neither score nor weight. When every rule is skipped the
// evaluator reports 1.0, so a system with no traffic is treated as healthy
// rather than broken.
package health
