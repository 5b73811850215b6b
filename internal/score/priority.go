// SPDX-License-Identifier: Apache-2.0

package score

import (
	"fmt"
	"math"

	"github.com/lendproj/defreview/internal/oracle"
)

// PriorityWeights blend the four judged dimensions into one priority.
// Complexity contributes inverted: simpler fixes rank higher, all else equal.
type PriorityWeights struct {
	Severity   float64 `json:"severity" yaml:"severity"`
	Impact     float64 `json:"impact" yaml:"impact"`
	Urgency    float64 `json:"urgency" yaml:"urgency"`
	Complexity float64 `json:"complexity" yaml:"complexity"`
}

// DefaultPriorityWeights returns the reference blend.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{Severity: 0.40, Impact: 0.30, Urgency: 0.20, Complexity: 0.10}
}

// Validate checks that the weights sum to 1.0 and are non-negative.
func (w PriorityWeights) Validate() error {
	for name, v := range map[string]float64{
		"severity": w.Severity, "impact": w.Impact, "urgency": w.Urgency, "complexity": w.Complexity,
	} {
		if v < 0 {
			return fmt.Errorf("priority weight %q is negative: %v", name, v)
		}
	}
	sum := w.Severity + w.Impact + w.Urgency + w.Complexity
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("priority weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// Priority combines a judgment into one scalar in [0, 1].
func Priority(j oracle.Judgment, w PriorityWeights) float64 {
	return clamp01(j.Severity*w.Severity +
		j.Impact*w.Impact +
		j.Urgency*w.Urgency +
		(1-j.Complexity)*w.Complexity)
}
