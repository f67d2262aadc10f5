package qos

import (
	"time"

	"github.com/lifecache/lifecache/pkg/decision"
)

// Status is the coarse health band reported alongside the numeric score.
type Status string

const (
	Healthy  Status = "HEALTHY"
	Degraded Status = "DEGRADED"
	Stressed Status = "STRESSED"
	Critical Status = "CRITICAL"
)

// StatusFromScore buckets a health score into its band.
func StatusFromScore(health float64) Status {
	switch {
	case health >= 0.8:
		return Healthy
	case health >= 0.5:
		return Degraded
	case health >= 0.2:
		return Stressed
	default:
		return Critical
	}
}

// Snapshot is one immutable evaluation result. Metrics keys are the rule
// readings behind the score, named "<metric>_<aggregation>".
type Snapshot struct {
	Time        time.Time                 `json:"timestamp"`
	HealthScore float64                   `json:"healthScore"`
	Status      Status                    `json:"status"`
	Decisions   map[string]decision.Value `json:"decisions"`
	Metrics     map[string]float64        `json:"metrics"`
}

// Decision returns a named decision value from the snapshot.
func (s Snapshot) Decision(name string) (decision.Value, bool) {
	v, ok := s.Decisions[name]
	return v, ok
}
