// SPDX-License-Identifier: Apache-2.0

// Package pipeline sequences the review stages: candidate filtering, ranking,
// deficiency detection, and scoring, and assembles the final report.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lendproj/defreview/internal/catalog"
	"github.com/lendproj/defreview/internal/detect"
	"github.com/lendproj/defreview/internal/document"
	"github.com/lendproj/defreview/internal/filter"
	"github.com/lendproj/defreview/internal/oracle"
	"github.com/lendproj/defreview/internal/rank"
	"github.com/lendproj/defreview/internal/score"
)

// CandidateInfo records one selected condition for the report: which pass
// admitted it and, when ranking ran, its relevance score.
type CandidateInfo struct {
	ConditionID   string  `json:"condition_id"`
	SelectionPath string  `json:"selection_path"`
	Relevance     float64 `json:"relevance,omitempty"`
}

// StageTiming is one stage's wall-clock duration.
type StageTiming struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
}

// Report is the complete review output.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	LoanProgram   string `json:"loan_program,omitempty"`
	DocumentCount int    `json:"document_count"`
	CatalogSize   int    `json:"catalog_size"`

	Candidates []CandidateInfo          `json:"candidates"`
	Results    []detect.Result          `json:"condition_results"`
	Scored     []score.ScoredDeficiency `json:"scored_deficiencies"`
	Top        []score.ScoredDeficiency `json:"top_deficiencies"`
	Summary    score.Summary            `json:"summary"`

	Timings []StageTiming `json:"stage_timings"`
	Usage   oracle.Usage  `json:"token_usage"`
}

// Options tune the orchestration-level knobs. Stage internals are configured
// on the stages themselves.
type Options struct {
	RankMethod rank.Method
	RankTopN   int
}

// Pipeline wires the stages together. Ranker may be nil, in which case
// candidates are detected in selection order.
type Pipeline struct {
	cat      *catalog.Catalog
	filter   *filter.Filter
	ranker   *rank.Ranker
	detector *detect.Detector
	scorer   *score.Scorer
	opts     Options
	log      *zap.Logger
}

// New creates a Pipeline.
func New(cat *catalog.Catalog, f *filter.Filter, r *rank.Ranker, d *detect.Detector, s *score.Scorer, opts Options, log *zap.Logger) *Pipeline {
	return &Pipeline{cat: cat, filter: f, ranker: r, detector: d, scorer: s, opts: opts, log: log}
}

// Run reviews one document set end to end. The returned report covers every
// candidate condition: satisfied, deficient, not applicable, and error-status
// entries alike.
func (p *Pipeline) Run(ctx context.Context, docs document.Set) (Report, error) {
	if err := docs.Validate(); err != nil {
		return Report{}, fmt.Errorf("invalid document set: %w", err)
	}
	if p.cat.Len() == 0 {
		return Report{}, fmt.Errorf("condition catalog is empty")
	}

	report := Report{
		RunID:         uuid.NewString(),
		GeneratedAt:   time.Now().UTC(),
		LoanProgram:   docs.LoanProgram,
		DocumentCount: len(docs.Documents),
		CatalogSize:   p.cat.Len(),
	}
	p.log.Info("review started",
		zap.String("run_id", report.RunID),
		zap.Int("documents", report.DocumentCount),
		zap.Int("catalog_size", report.CatalogSize))

	timer := newStageTimer(&report)

	candidates := p.filter.Select(ctx, p.cat, docs)
	timer.mark("filter")

	conditions, infos := p.rankCandidates(ctx, candidates, docs)
	report.Candidates = infos
	timer.mark("rank")

	results, usage := p.detector.Detect(ctx, conditions, docs)
	report.Results = results
	report.Usage = usage
	timer.mark("detect")

	scored := p.scorer.Score(ctx, results)
	report.Scored = scored.Scored
	report.Top = scored.Top
	report.Summary = scored.Summary
	timer.mark("score")

	p.log.Info("review finished",
		zap.String("run_id", report.RunID),
		zap.Int("candidates", len(report.Candidates)),
		zap.Int("deficiencies", report.Summary.TotalDeficiencies),
		zap.Int("input_tokens", report.Usage.InputTokens),
		zap.Int("output_tokens", report.Usage.OutputTokens))
	return report, nil
}

// rankCandidates orders the candidate set by semantic relevance when a ranker
// is configured. A ranking failure degrades to selection order; it never
// aborts the review.
func (p *Pipeline) rankCandidates(ctx context.Context, candidates filter.CandidateSet, docs document.Set) ([]catalog.Condition, []CandidateInfo) {
	paths := make(map[string]filter.SelectionPath, len(candidates.Candidates))
	for _, cand := range candidates.Candidates {
		paths[cand.Title] = cand.Path
	}

	if p.ranker != nil {
		ranked, err := p.ranker.Rank(ctx, candidates.Conditions(), docs.Entities(), p.opts.RankMethod, p.opts.RankTopN)
		if err == nil {
			conditions := make([]catalog.Condition, len(ranked))
			infos := make([]CandidateInfo, len(ranked))
			for i, r := range ranked {
				conditions[i] = r.Condition
				infos[i] = CandidateInfo{
					ConditionID:   r.Condition.Title,
					SelectionPath: string(paths[r.Condition.Title]),
					Relevance:     r.Score,
				}
			}
			return conditions, infos
		}
		p.log.Warn("ranking failed, keeping selection order", zap.Error(err))
	}

	conditions := candidates.Conditions()
	infos := make([]CandidateInfo, len(conditions))
	for i, cond := range conditions {
		infos[i] = CandidateInfo{ConditionID: cond.Title, SelectionPath: string(paths[cond.Title])}
	}
	return conditions, infos
}

type stageTimer struct {
	report *Report
	last   time.Time
}

func newStageTimer(report *Report) *stageTimer {
	return &stageTimer{report: report, last: time.Now()}
}

func (t *stageTimer) mark(stage string) {
	now := time.Now()
	t.report.Timings = append(t.report.Timings, StageTiming{
		Stage:      stage,
		DurationMS: now.Sub(t.last).Milliseconds(),
	})
	t.last = now
}
