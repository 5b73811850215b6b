// SPDX-License-Identifier: Apache-2.0

package pipeline_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lendproj/defreview/internal/catalog"
	"github.com/lendproj/defreview/internal/detect"
	"github.com/lendproj/defreview/internal/document"
	"github.com/lendproj/defreview/internal/filter"
	"github.com/lendproj/defreview/internal/oracle"
	"github.com/lendproj/defreview/internal/pipeline"
	"github.com/lendproj/defreview/internal/rank"
	"github.com/lendproj/defreview/internal/score"
)

// stubOracle plays both oracle roles deterministically.
type stubOracle struct {
	verdicts map[string]oracle.ConditionResult
}

func (s stubOracle) Embed(_ context.Context, text string) ([]float32, error) {
	// Arbitrary but deterministic: spreads texts over a few directions.
	vec := []float32{0, 0, 0, 0}
	vec[len(text)%4] = 1
	return vec, nil
}

func (s stubOracle) Evaluate(_ context.Context, req oracle.EvaluateRequest) (oracle.EvaluateResponse, error) {
	var resp oracle.EvaluateResponse
	for _, cond := range req.Conditions {
		if cr, ok := s.verdicts[cond.Title]; ok {
			resp.Results = append(resp.Results, cr)
		}
	}
	resp.Usage = oracle.Usage{Model: "stub", InputTokens: 100, OutputTokens: 20}
	return resp, nil
}

func (s stubOracle) Judge(_ context.Context, req oracle.JudgeRequest) (oracle.Judgment, error) {
	return oracle.Judgment{Severity: 0.9, Impact: 0.8, Urgency: 0.7, Complexity: 0.2, Explanation: "blocking"}, nil
}

func buildPipeline(t *testing.T, reason stubOracle, cat *catalog.Catalog) *pipeline.Pipeline {
	t.Helper()
	log := zap.NewNop()
	return pipeline.New(
		cat,
		filter.New(filter.DefaultConfig(), reason, log),
		rank.New(reason, log),
		detect.New(reason, cat, detect.DefaultConfig(), log),
		score.New(reason, cat, score.DefaultConfig(), log),
		pipeline.Options{RankMethod: rank.MethodMax},
		log,
	)
}

func TestPipeline_Run(t *testing.T) {
	cat := catalog.New([]catalog.Condition{
		{Title: "k1", Description: "ownership sums to 100", DocumentTypes: []string{"1040 Schedule G"}},
		{Title: "k2", Description: "all documents legible", DocumentTypes: []string{"All Docs"}},
	})
	reason := stubOracle{verdicts: map[string]oracle.ConditionResult{
		"k1": {
			ConditionID:           "k1",
			Status:                oracle.StatusDeficient,
			Deficiencies:          []oracle.DeficiencyItem{{Requirement: "sum to 100", Issue: "sums to 90, incorrect total", FieldChecked: "scheduleGPartII[].percentageOwned", Evidence: "60 + 30"}},
			Reasoning:             "percentages total 90, therefore one shareholder entry must be missing from the schedule",
			DocumentsChecked:      []string{"1040 Schedule G"},
			ActionableInstruction: "Provide complete Schedule G ownership listing",
		},
		"k2": {
			ConditionID:      "k2",
			Status:           oracle.StatusSatisfied,
			Reasoning:        "document is legible",
			SatisfiedBy:      "doc-1:1040 Schedule G",
			DocumentsChecked: []string{"1040 Schedule G"},
		},
	}}

	docs := document.Set{
		LoanProgram: "Flex Supreme",
		Documents: []document.Document{{
			ID:             "doc-1:1040 Schedule G",
			Classification: "1040 Schedule G",
			Fields:         map[string]document.Value{"percentageOwned": 60.0},
		}},
	}

	report, err := buildPipeline(t, reason, cat).Run(context.Background(), docs)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.GeneratedAt.IsZero())
	assert.Equal(t, "Flex Supreme", report.LoanProgram)
	assert.Equal(t, 1, report.DocumentCount)
	assert.Equal(t, 2, report.CatalogSize)

	// k1 selected by classification; k2 is not (universal conditions only
	// enter when nothing else matches), so exactly one candidate and result.
	require.Len(t, report.Candidates, 1)
	assert.Equal(t, "k1", report.Candidates[0].ConditionID)
	assert.Equal(t, string(filter.PathClassification), report.Candidates[0].SelectionPath)

	require.Len(t, report.Results, 1)
	require.Len(t, report.Scored, 1)

	want := oracle.ConditionResult{
		ConditionID:           "k1",
		Status:                oracle.StatusDeficient,
		Deficiencies:          []oracle.DeficiencyItem{{Requirement: "sum to 100", Issue: "sums to 90, incorrect total", FieldChecked: "scheduleGPartII[].percentageOwned", Evidence: "60 + 30"}},
		Reasoning:             "percentages total 90, therefore one shareholder entry must be missing from the schedule",
		DocumentsChecked:      []string{"1040 Schedule G"},
		ActionableInstruction: "Provide complete Schedule G ownership listing",
	}
	if diff := cmp.Diff(want, report.Results[0].ConditionResult); diff != "" {
		t.Fatalf("condition result mismatch (-want +got):\n%s", diff)
	}

	entry := report.Scored[0]
	assert.Greater(t, entry.DetectionConfidence, 0.0)
	require.NotNil(t, entry.PriorityScore)
	assert.InDelta(t, 0.9*0.4+0.8*0.3+0.7*0.2+0.8*0.1, *entry.PriorityScore, 1e-9)

	assert.Equal(t, 1, report.Summary.TotalDeficiencies)
	assert.Equal(t, 100, report.Usage.InputTokens)
	assert.Equal(t, 20, report.Usage.OutputTokens)

	stages := make([]string, len(report.Timings))
	for i, timing := range report.Timings {
		stages[i] = timing.Stage
	}
	assert.Equal(t, []string{"filter", "rank", "detect", "score"}, stages)
}

func TestPipeline_Run_EmptyDocumentSet(t *testing.T) {
	cat := catalog.New([]catalog.Condition{{Title: "k1", Description: "d"}})
	_, err := buildPipeline(t, stubOracle{}, cat).Run(context.Background(), document.Set{})
	assert.Error(t, err)
}

func TestPipeline_Run_EmptyCatalog(t *testing.T) {
	docs := document.Set{Documents: []document.Document{{Classification: "W-2"}}}
	_, err := buildPipeline(t, stubOracle{}, catalog.New(nil)).Run(context.Background(), docs)
	assert.Error(t, err)
}
