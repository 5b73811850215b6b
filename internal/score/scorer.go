// SPDX-License-Identifier: Apache-2.0

package score

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lendproj/defreview/internal/catalog"
	"github.com/lendproj/defreview/internal/detect"
	"github.com/lendproj/defreview/internal/oracle"
)

// ScoredDeficiency is one deficient condition with both scoring axes
// attached. PriorityScore and Priority are nil when the judge call failed;
// such entries carry JudgmentError instead of fabricated mid-range scores.
type ScoredDeficiency struct {
	detect.Result

	DetectionConfidence float64             `json:"detection_confidence"`
	Confidence          ConfidenceBreakdown `json:"confidence_breakdown"`
	PriorityScore       *float64            `json:"priority_score"`
	Priority            *oracle.Judgment    `json:"priority_dimensions,omitempty"`
	JudgmentError       string              `json:"judgment_error,omitempty"`
}

// Summary aggregates the scored deficiencies for the report header.
type Summary struct {
	TotalDeficiencies int     `json:"total_deficiencies"`
	HighPriority      int     `json:"high_priority"`
	MediumPriority    int     `json:"medium_priority"`
	LowPriority       int     `json:"low_priority"`
	AverageConfidence float64 `json:"average_confidence"`
	AveragePriority   float64 `json:"average_priority"`
}

// Output is the scorer's full product: every deficient condition scored and
// ranked, the top slice for reviewer attention, and the aggregate summary.
type Output struct {
	Scored  []ScoredDeficiency `json:"scored_deficiencies"`
	Top     []ScoredDeficiency `json:"top_deficiencies"`
	Summary Summary            `json:"summary"`
}

// Config tunes scoring.
type Config struct {
	Confidence  ConfidenceConfig `yaml:"confidence"`
	Priority    PriorityWeights  `yaml:"priority_weights"`
	Concurrency int              `yaml:"concurrency"`
	// TopN bounds the Top slice; <= 0 means all.
	TopN int `yaml:"top_n"`
}

// DefaultConfig returns the reference configuration: full tables, two judge
// calls in flight, top 10 surfaced.
func DefaultConfig() Config {
	return Config{
		Confidence:  DefaultConfidenceConfig(),
		Priority:    DefaultPriorityWeights(),
		Concurrency: 2,
		TopN:        10,
	}
}

// Validate checks both weight blends.
func (c Config) Validate() error {
	if err := c.Confidence.Weights.Validate(); err != nil {
		return err
	}
	return c.Priority.Validate()
}

// Scorer attaches confidence and priority to detection results.
type Scorer struct {
	reason oracle.ReasoningOracle
	cat    *catalog.Catalog
	cfg    Config
	log    *zap.Logger
}

// New creates a Scorer.
func New(reason oracle.ReasoningOracle, cat *catalog.Catalog, cfg Config, log *zap.Logger) *Scorer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &Scorer{reason: reason, cat: cat, cfg: cfg, log: log}
}

// Score filters the detection results down to deficient conditions, computes
// detection confidence locally, judges priority through the oracle, and
// ranks. Priority-judge failures never drop an entry: the deficiency stays in
// the output with a judgment error and nil priority, ranked after every
// successfully judged entry.
func (s *Scorer) Score(ctx context.Context, results []detect.Result) Output {
	var scored []ScoredDeficiency
	for _, res := range results {
		if res.Status != oracle.StatusDeficient {
			continue
		}
		b := Confidence(res, s.cfg.Confidence)
		scored = append(scored, ScoredDeficiency{
			Result:              res,
			DetectionConfidence: b.Overall,
			Confidence:          b,
		})
	}
	if len(scored) == 0 {
		return Output{}
	}

	s.judgeAll(ctx, scored)
	s.rank(scored)

	top := scored
	if s.cfg.TopN > 0 && len(top) > s.cfg.TopN {
		top = top[:s.cfg.TopN]
	}
	return Output{Scored: scored, Top: top, Summary: summarize(scored)}
}

// judgeAll requests the four priority dimensions for each deficiency, bounded
// by the configured concurrency.
func (s *Scorer) judgeAll(ctx context.Context, scored []ScoredDeficiency) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range scored {
		g.Go(func() error {
			entry := scored[i]
			judgment, err := s.reason.Judge(gctx, oracle.JudgeRequest{
				Result:              entry.ConditionResult,
				RelatedDocuments:    entry.RelatedDocuments,
				DetectionConfidence: entry.DetectionConfidence,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Error("priority judgment failed",
					zap.String("condition", entry.ConditionID),
					zap.Error(err))
				scored[i].JudgmentError = err.Error()
				return nil
			}
			priority := Priority(judgment, s.cfg.Priority)
			scored[i].Priority = &judgment
			scored[i].PriorityScore = &priority
			return nil
		})
	}
	_ = g.Wait()
}

// rank orders by priority descending; unjudged entries sort after judged
// ones. Ties break on detection confidence descending, then catalog order.
func (s *Scorer) rank(scored []ScoredDeficiency) {
	sort.SliceStable(scored, func(a, b int) bool {
		pa, pb := scored[a].PriorityScore, scored[b].PriorityScore
		switch {
		case pa != nil && pb == nil:
			return true
		case pa == nil && pb != nil:
			return false
		case pa != nil && pb != nil && *pa != *pb:
			return *pa > *pb
		}
		if scored[a].DetectionConfidence != scored[b].DetectionConfidence {
			return scored[a].DetectionConfidence > scored[b].DetectionConfidence
		}
		return s.cat.Index(scored[a].ConditionID) < s.cat.Index(scored[b].ConditionID)
	})
}

func summarize(scored []ScoredDeficiency) Summary {
	sum := Summary{TotalDeficiencies: len(scored)}
	var confTotal, prioTotal float64
	judged := 0
	for _, entry := range scored {
		confTotal += entry.DetectionConfidence
		if entry.PriorityScore == nil {
			continue
		}
		judged++
		p := *entry.PriorityScore
		prioTotal += p
		switch {
		case p >= 0.7:
			sum.HighPriority++
		case p >= 0.4:
			sum.MediumPriority++
		default:
			sum.LowPriority++
		}
	}
	sum.AverageConfidence = confTotal / float64(len(scored))
	if judged > 0 {
		sum.AveragePriority = prioTotal / float64(judged)
	}
	return sum
}
