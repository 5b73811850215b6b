// SPDX-License-Identifier: Apache-2.0

// Package score turns detection results into ranked, two-axis scored
// deficiencies: an empirical detection confidence computed locally and a
// priority judged by the reasoning oracle. The two axes are never merged;
// ranking uses priority only, with confidence carried for display and audit.
package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/lendproj/defreview/internal/detect"
)

// ConfidenceWeights blend the five confidence sub-scores. They must sum to
// 1.0 and are validated at load.
type ConfidenceWeights struct {
	EvidenceCompleteness float64 `json:"evidence_completeness" yaml:"evidence_completeness"`
	DeficiencyCount      float64 `json:"deficiency_count" yaml:"deficiency_count"`
	FieldSpecificity     float64 `json:"field_specificity" yaml:"field_specificity"`
	EvidenceType         float64 `json:"evidence_type" yaml:"evidence_type"`
	ReasoningQuality     float64 `json:"reasoning_quality" yaml:"reasoning_quality"`
}

// DefaultConfidenceWeights returns the reference blend.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		EvidenceCompleteness: 0.30,
		DeficiencyCount:      0.20,
		FieldSpecificity:     0.20,
		EvidenceType:         0.20,
		ReasoningQuality:     0.10,
	}
}

// Validate checks that the weights sum to 1.0 (within float tolerance) and
// are individually non-negative.
func (w ConfidenceWeights) Validate() error {
	for name, v := range map[string]float64{
		"evidence_completeness": w.EvidenceCompleteness,
		"deficiency_count":      w.DeficiencyCount,
		"field_specificity":     w.FieldSpecificity,
		"evidence_type":         w.EvidenceType,
		"reasoning_quality":     w.ReasoningQuality,
	} {
		if v < 0 {
			return fmt.Errorf("confidence weight %q is negative: %v", name, v)
		}
	}
	sum := w.EvidenceCompleteness + w.DeficiencyCount + w.FieldSpecificity + w.EvidenceType + w.ReasoningQuality
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("confidence weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// EvidenceTypeScores grade how strongly the evidence kind supports the
// verdict: a wrong value present is stronger evidence than an absent value.
type EvidenceTypeScores struct {
	EmptyArray      float64 `json:"empty_array" yaml:"empty_array"`
	MissingRequired float64 `json:"missing_required" yaml:"missing_required"`
	WrongValue      float64 `json:"wrong_value" yaml:"wrong_value"`
	Unclear         float64 `json:"unclear" yaml:"unclear"`
}

// ConfidenceConfig is the full confidence-calculation configuration.
type ConfidenceConfig struct {
	Weights         ConfidenceWeights  `json:"weights" yaml:"weights"`
	EvidenceScores  EvidenceTypeScores `json:"evidence_type_scores" yaml:"evidence_type_scores"`
	MissingKeywords []string           `json:"missing_keywords" yaml:"missing_keywords"`
	WrongKeywords   []string           `json:"wrong_keywords" yaml:"wrong_keywords"`
}

// DefaultConfidenceConfig returns the reference tables.
func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		Weights: DefaultConfidenceWeights(),
		EvidenceScores: EvidenceTypeScores{
			EmptyArray:      0.4,
			MissingRequired: 0.5,
			WrongValue:      0.9,
			Unclear:         0.6,
		},
		MissingKeywords: []string{"missing", "not found", "absent", "empty", "null", "no ", "lacks", "does not contain"},
		WrongKeywords:   []string{"incorrect", "invalid", "wrong", "mismatch", "does not match", "exceeds", "below", "inconsistent"},
	}
}

// ConfidenceBreakdown carries the overall confidence and its sub-scores, all
// in [0, 1].
type ConfidenceBreakdown struct {
	Overall              float64 `json:"overall"`
	EvidenceCompleteness float64 `json:"evidence_completeness"`
	DeficiencyCount      float64 `json:"deficiency_count_score"`
	FieldSpecificity     float64 `json:"field_specificity"`
	EvidenceType         float64 `json:"evidence_type_score"`
	ReasoningQuality     float64 `json:"reasoning_quality"`
}

// Confidence computes the empirical detection confidence of one result.
// The computation is pure: no oracle involvement.
func Confidence(res detect.Result, cfg ConfidenceConfig) ConfidenceBreakdown {
	b := ConfidenceBreakdown{
		EvidenceCompleteness: clamp01(evidenceCompleteness(res)),
		DeficiencyCount:      clamp01(deficiencyCount(res)),
		FieldSpecificity:     clamp01(fieldSpecificity(res)),
		EvidenceType:         clamp01(evidenceType(res, cfg)),
		ReasoningQuality:     clamp01(reasoningQuality(res)),
	}
	w := cfg.Weights
	b.Overall = clamp01(b.EvidenceCompleteness*w.EvidenceCompleteness +
		b.DeficiencyCount*w.DeficiencyCount +
		b.FieldSpecificity*w.FieldSpecificity +
		b.EvidenceType*w.EvidenceType +
		b.ReasoningQuality*w.ReasoningQuality)
	return b
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

// evidenceCompleteness is the fraction of present fields among the four
// expected per deficiency item; a deficient result with no items at all
// scores a flat 0.2.
func evidenceCompleteness(res detect.Result) float64 {
	if len(res.Deficiencies) == 0 {
		return 0.2
	}
	total := len(res.Deficiencies) * 4
	present := 0
	for _, item := range res.Deficiencies {
		for _, field := range []string{item.Requirement, item.Issue, item.FieldChecked, item.Evidence} {
			if strings.TrimSpace(field) != "" {
				present++
			}
		}
	}
	return float64(present) / float64(total)
}

// deficiencyCount saturates with corroborating items: 1 item 0.5, 2 items
// 0.8, 3 or more 1.0.
func deficiencyCount(res detect.Result) float64 {
	switch len(res.Deficiencies) {
	case 0:
		return 0.3
	case 1:
		return 0.5
	case 2:
		return 0.8
	default:
		return 1.0
	}
}

// specificityIndicators mark concrete field paths ("scheduleGPartII[].percentageOwned")
// as opposed to vague references ("the document").
var specificityIndicators = []string{".", "[", "]", "_", "line", "schedule", "form"}

func fieldSpecificity(res detect.Result) float64 {
	total, specific := 0, 0
	count := func(field string) {
		if strings.TrimSpace(field) == "" {
			return
		}
		total++
		lower := strings.ToLower(field)
		for _, ind := range specificityIndicators {
			if strings.Contains(lower, ind) {
				specific++
				return
			}
		}
	}
	for _, field := range res.CheckedFields {
		count(field)
	}
	for _, item := range res.Deficiencies {
		count(item.FieldChecked)
	}
	if total == 0 {
		if len(res.CheckedFields) == 0 && len(res.Deficiencies) == 0 {
			return 0.2
		}
		return 0.3
	}
	ratio := float64(specific) / float64(total)
	switch {
	case ratio >= 0.8:
		return 1.0
	case ratio >= 0.5:
		return 0.7
	default:
		return 0.4
	}
}

// evidenceType classifies each item as wrong-value vs missing-value evidence
// and averages the grades.
func evidenceType(res detect.Result, cfg ConfidenceConfig) float64 {
	if len(res.Deficiencies) == 0 {
		return 0.3
	}
	var sum float64
	for _, item := range res.Deficiencies {
		text := strings.ToLower(item.Issue + " " + item.Evidence)
		switch {
		case containsAny(text, cfg.WrongKeywords):
			sum += cfg.EvidenceScores.WrongValue
		case containsAny(text, cfg.MissingKeywords) && strings.Contains(text, "[]"):
			sum += cfg.EvidenceScores.EmptyArray
		case containsAny(text, cfg.MissingKeywords):
			sum += cfg.EvidenceScores.MissingRequired
		default:
			sum += cfg.EvidenceScores.Unclear
		}
	}
	return sum / float64(len(res.Deficiencies))
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// structureIndicators suggest reasoned explanation rather than a bare claim.
var structureIndicators = []string{"because", "since", "therefore", "however", "should", "must", "would"}

// reasoningQuality is a bounded function of explanation length and structure:
// 70% length band, 30% structure keywords capped at three.
func reasoningQuality(res detect.Result) float64 {
	reasoning := strings.TrimSpace(res.Reasoning)
	if reasoning == "" {
		return 0.1
	}
	var lengthScore float64
	switch n := len(reasoning); {
	case n < 50:
		lengthScore = 0.3
	case n < 150:
		lengthScore = 0.5
	case n < 300:
		lengthScore = 0.7
	default:
		lengthScore = 1.0
	}
	lower := strings.ToLower(reasoning)
	hits := 0
	for _, ind := range structureIndicators {
		if strings.Contains(lower, ind) {
			hits++
		}
	}
	structureScore := math.Min(float64(hits)/3, 1.0)
	return lengthScore*0.7 + structureScore*0.3
}
