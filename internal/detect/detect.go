// SPDX-License-Identifier: Apache-2.0

// Package detect determines, per candidate condition, whether the document
// set satisfies it. Judgment is delegated to the reasoning oracle; this
// package owns the protocol: batching, concurrency, response validation, and
// the locally computed enrichment fields.
package detect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lendproj/defreview/internal/catalog"
	"github.com/lendproj/defreview/internal/document"
	"github.com/lendproj/defreview/internal/oracle"
)

// Failure records why a condition could not actually be checked. Conditions
// with a Failure appear in the report with an explicit error status rather
// than being omitted.
type Failure struct {
	Message   string `json:"message"`
	RawLength int    `json:"raw_length,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Result is one condition's detection outcome, enriched with the
// catalog-derived document associations the oracle is never trusted to
// report.
type Result struct {
	oracle.ConditionResult

	// RelatedDocuments lists every document type the catalog associates
	// with the condition.
	RelatedDocuments []string `json:"related_documents"`
	// ActionableDocuments is the subset of RelatedDocuments whose
	// classifications are actually present in the input.
	ActionableDocuments []string `json:"actionable_documents"`
	// Failure is non-nil when the condition's detection batch failed.
	Failure *Failure `json:"detection_error,omitempty"`
}

// Config bounds batch size and concurrent oracle calls.
type Config struct {
	BatchSize   int `yaml:"batch_size"`
	Concurrency int `yaml:"concurrency"`
}

// DefaultConfig caps batches at 50 conditions and runs two batches in flight,
// respecting external rate limits.
func DefaultConfig() Config {
	return Config{BatchSize: 50, Concurrency: 2}
}

// Detector evaluates candidate conditions against a document set.
type Detector struct {
	reason oracle.ReasoningOracle
	cat    *catalog.Catalog
	cfg    Config
	log    *zap.Logger
}

// New creates a Detector.
func New(reason oracle.ReasoningOracle, cat *catalog.Catalog, cfg Config, log *zap.Logger) *Detector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &Detector{reason: reason, cat: cat, cfg: cfg, log: log}
}

// Detect checks every candidate condition against the full document set.
// Independent batches run concurrently; one failed batch surfaces as
// error-status results for its conditions and does not poison the others.
// Output order is catalog insertion order regardless of completion order.
// The returned usage is the summed reasoning cost across all batches.
func (d *Detector) Detect(ctx context.Context, candidates []catalog.Condition, docs document.Set) ([]Result, oracle.Usage) {
	if len(candidates) == 0 {
		return nil, oracle.Usage{}
	}

	batches := splitBatches(candidates, d.cfg.BatchSize)

	var mu sync.Mutex
	collected := make([]Result, 0, len(candidates))
	var total oracle.Usage

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for _, batch := range batches {
		g.Go(func() error {
			results, usage := d.evaluateBatch(gctx, batch, docs)
			mu.Lock()
			collected = append(collected, results...)
			total.Add(usage)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures are embedded in results.
	_ = g.Wait()

	sort.SliceStable(collected, func(a, b int) bool {
		return d.cat.Index(collected[a].ConditionID) < d.cat.Index(collected[b].ConditionID)
	})
	return collected, total
}

func splitBatches(conditions []catalog.Condition, size int) [][]catalog.Condition {
	var out [][]catalog.Condition
	for start := 0; start < len(conditions); start += size {
		end := min(start+size, len(conditions))
		out = append(out, conditions[start:end])
	}
	return out
}

// evaluateBatch runs one oracle call for a batch. An oversized or truncated
// response is never parsed as-is: the batch is split in half and each half
// retried, down to single conditions. Exhausted batches yield explicit error
// results.
func (d *Detector) evaluateBatch(ctx context.Context, batch []catalog.Condition, docs document.Set) ([]Result, oracle.Usage) {
	resp, err := d.reason.Evaluate(ctx, oracle.EvaluateRequest{Conditions: batch, Documents: docs})
	if err == nil {
		if len(resp.Results) > len(batch) {
			err = &oracle.MalformedResponseError{
				Op:        "evaluate",
				Oversized: true,
				Err:       fmt.Errorf("response carries %d results for %d requested conditions", len(resp.Results), len(batch)),
			}
		}
	}
	if err != nil {
		var malformed *oracle.MalformedResponseError
		splittable := len(batch) > 1 && errors.As(err, &malformed) && (malformed.Truncated || malformed.Oversized)
		if splittable {
			d.log.Warn("batch response rejected, splitting",
				zap.Int("batch_size", len(batch)),
				zap.Int("raw_length", malformed.RawLength),
				zap.Bool("truncated", malformed.Truncated),
				zap.Bool("oversized", malformed.Oversized))
			mid := len(batch) / 2
			left, leftUsage := d.evaluateBatch(ctx, batch[:mid], docs)
			right, rightUsage := d.evaluateBatch(ctx, batch[mid:], docs)
			leftUsage.Add(rightUsage)
			return append(left, right...), leftUsage
		}
		d.log.Error("detection batch failed",
			zap.Int("batch_size", len(batch)),
			zap.Error(err))
		return d.failBatch(batch, err), resp.Usage
	}

	return d.assemble(batch, docs, resp), resp.Usage
}

// failBatch marks every condition in a failed batch with an explicit error
// result so reviewers know it was never actually checked.
func (d *Detector) failBatch(batch []catalog.Condition, err error) []Result {
	failure := &Failure{Message: err.Error()}
	var malformed *oracle.MalformedResponseError
	if errors.As(err, &malformed) {
		failure.RawLength = malformed.RawLength
		failure.Truncated = malformed.Truncated
	}
	out := make([]Result, len(batch))
	for i, cond := range batch {
		out[i] = Result{
			ConditionResult: oracle.ConditionResult{
				ConditionID: cond.Title,
				Status:      oracle.StatusError,
				Reasoning:   "condition was not checked: " + failure.Message,
			},
			RelatedDocuments:    cond.DocumentTypes,
			ActionableDocuments: nil,
			Failure:             failure,
		}
	}
	return out
}

// assemble validates the oracle's verdicts against the requested batch and
// attaches the locally computed fields. Conditions the oracle omitted get
// error results; verdicts for conditions never requested are dropped.
func (d *Detector) assemble(batch []catalog.Condition, docs document.Set, resp oracle.EvaluateResponse) []Result {
	requested := make(map[string]catalog.Condition, len(batch))
	for _, cond := range batch {
		requested[cond.Title] = cond
	}
	present := docs.Classifications()

	answered := make(map[string]bool, len(resp.Results))
	var out []Result
	for _, cr := range resp.Results {
		cond, ok := requested[cr.ConditionID]
		if !ok {
			d.log.Warn("dropping verdict for condition outside batch",
				zap.String("condition", cr.ConditionID))
			continue
		}
		answered[cr.ConditionID] = true
		out = append(out, d.enrich(cond, docs, present, cr))
	}
	for _, cond := range batch {
		if answered[cond.Title] {
			continue
		}
		out = append(out, Result{
			ConditionResult: oracle.ConditionResult{
				ConditionID: cond.Title,
				Status:      oracle.StatusError,
				Reasoning:   "condition was not checked: missing from oracle response",
			},
			RelatedDocuments: cond.DocumentTypes,
			Failure:          &Failure{Message: "missing from oracle response"},
		})
	}
	return out
}

func (d *Detector) enrich(cond catalog.Condition, docs document.Set, present []string, cr oracle.ConditionResult) Result {
	// satisfied_by is meaningful only for satisfied verdicts, and only when
	// the decisive document is one we actually supplied.
	if cr.Status != oracle.StatusSatisfied {
		cr.SatisfiedBy = ""
	} else if cr.SatisfiedBy != "" && !knownDocument(docs, cr.SatisfiedBy) {
		d.log.Warn("discarding satisfied_by referencing unknown document",
			zap.String("condition", cr.ConditionID),
			zap.String("satisfied_by", cr.SatisfiedBy))
		cr.SatisfiedBy = ""
	}

	// documents_checked must name classifications that exist in the input.
	cr.DocumentsChecked = intersectLabels(cr.DocumentsChecked, present)

	return Result{
		ConditionResult:     cr,
		RelatedDocuments:    cond.DocumentTypes,
		ActionableDocuments: actionableDocuments(cond, present),
	}
}

func knownDocument(docs document.Set, id string) bool {
	for _, doc := range docs.Documents {
		if doc.ID == id || strings.EqualFold(doc.Classification, id) {
			return true
		}
	}
	return false
}

func intersectLabels(reported, present []string) []string {
	var out []string
	for _, label := range reported {
		for _, cls := range present {
			if strings.EqualFold(strings.TrimSpace(label), strings.TrimSpace(cls)) {
				out = append(out, cls)
				break
			}
		}
	}
	return out
}

// actionableDocuments intersects the condition's catalog document types with
// the classifications actually present: of all documents theoretically
// relevant, only the ones the user has.
func actionableDocuments(cond catalog.Condition, present []string) []string {
	var out []string
	for _, dt := range cond.DocumentTypes {
		label := strings.ToLower(strings.TrimSpace(dt))
		if label == "" {
			continue
		}
		for _, cls := range present {
			lower := strings.ToLower(strings.TrimSpace(cls))
			if strings.Contains(label, lower) || strings.Contains(lower, label) {
				out = append(out, dt)
				break
			}
		}
	}
	return out
}
