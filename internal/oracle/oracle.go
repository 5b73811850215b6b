// SPDX-License-Identifier: Apache-2.0

// Package oracle defines the narrow interfaces to the two external
// collaborators the pipeline depends on: an embedding service for semantic
// similarity and a reasoning service for natural-language judgment. Both are
// pure request/response; deterministic stubs substitute for them in tests.
package oracle

import (
	"context"
	"math"

	"github.com/lendproj/defreview/internal/catalog"
	"github.com/lendproj/defreview/internal/document"
)

// SimilarityOracle converts text to embedding vectors. Similarity between
// vectors is pure arithmetic (Cosine below); only Embed suspends.
type SimilarityOracle interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cosine computes cosine similarity clamped to [0, 1].
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(1, sim))
}

// Status is the oracle's verdict on one condition.
type Status string

const (
	StatusSatisfied     Status = "satisfied"
	StatusDeficient     Status = "deficient"
	StatusNotApplicable Status = "not_applicable"
	// StatusError marks a condition whose detection batch failed; it is
	// assigned locally, never returned by the oracle itself.
	StatusError Status = "error"
)

// DeficiencyItem is one concrete, evidenced failure inside a condition result.
type DeficiencyItem struct {
	Requirement  string `json:"requirement"`
	Issue        string `json:"issue"`
	FieldChecked string `json:"field_checked"`
	Evidence     string `json:"evidence"`
}

// ConditionResult is the structured per-condition output of Evaluate.
type ConditionResult struct {
	ConditionID           string           `json:"condition_id"`
	Status                Status           `json:"status"`
	Deficiencies          []DeficiencyItem `json:"deficiencies,omitempty"`
	Reasoning             string           `json:"reasoning"`
	CheckedFields         []string         `json:"checked_fields,omitempty"`
	DocumentsChecked      []string         `json:"documents_checked,omitempty"`
	SatisfiedBy           string           `json:"satisfied_by,omitempty"`
	ActionableInstruction string           `json:"actionable_instruction,omitempty"`
}

// Usage reports token consumption of one reasoning call, kept for batch
// failure diagnostics and run metadata.
type Usage struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(other Usage) {
	if other.Model != "" {
		u.Model = other.Model
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// EvaluateRequest presents a batch of conditions together with the full
// document set as one reasoning context, so evidence for a condition may come
// from any subset of documents.
type EvaluateRequest struct {
	Conditions []catalog.Condition
	Documents  document.Set
}

// EvaluateResponse carries the per-condition results of one batch.
type EvaluateResponse struct {
	Results []ConditionResult
	Usage   Usage
}

// Judgment is the four-dimension priority assessment of one deficiency.
// All dimensions are in [0, 1].
type Judgment struct {
	Severity    float64 `json:"severity"`
	Impact      float64 `json:"impact"`
	Urgency     float64 `json:"urgency"`
	Complexity  float64 `json:"complexity"`
	Explanation string  `json:"explanation"`
}

// JudgeRequest asks for a priority judgment of a single deficient condition.
// DetectionConfidence is supplied as context only; the oracle never combines
// the two axes.
type JudgeRequest struct {
	Result              ConditionResult
	RelatedDocuments    []string
	DetectionConfidence float64
}

// ReasoningOracle is the external natural-language judgment service.
type ReasoningOracle interface {
	Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResponse, error)
	Judge(ctx context.Context, req JudgeRequest) (Judgment, error)
}
