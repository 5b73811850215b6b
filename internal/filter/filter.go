// SPDX-License-Identifier: Apache-2.0

// Package filter narrows the condition catalog to the candidates relevant to
// a document set. Selection runs as an ordered cascade of passes; the first
// pass chain that yields a non-empty result wins, and a final fallback
// guarantees a non-empty candidate set for any non-empty catalog.
package filter

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lendproj/defreview/internal/catalog"
	"github.com/lendproj/defreview/internal/document"
	"github.com/lendproj/defreview/internal/oracle"
)

// SelectionPath records which pass admitted a candidate. Retained for
// auditability; never consulted by downstream scoring.
type SelectionPath string

const (
	PathClassification SelectionPath = "classification_match"
	PathField          SelectionPath = "field_match"
	PathCompartment    SelectionPath = "compartment_match"
	PathUniversal      SelectionPath = "universal_fallback"
	PathSemantic       SelectionPath = "semantic_fallback"
	PathCatalog        SelectionPath = "catalog_fallback"
)

// Candidate is a condition admitted into the working set, annotated with the
// pass that selected it.
type Candidate struct {
	catalog.Condition
	Path SelectionPath `json:"selection_path"`
}

// CandidateSet is the ordered output of selection. Order follows catalog
// insertion order within each pass.
type CandidateSet struct {
	Candidates []Candidate
}

// Conditions strips the selection annotations.
func (s CandidateSet) Conditions() []catalog.Condition {
	out := make([]catalog.Condition, len(s.Candidates))
	for i, c := range s.Candidates {
		out[i] = c.Condition
	}
	return out
}

// Titles returns the candidate identifiers in set order.
func (s CandidateSet) Titles() []string {
	out := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		out[i] = c.Title
	}
	return out
}

// Config tunes the semantic fallback pass.
type Config struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TopKPerEntity       int     `yaml:"top_k_per_entity"`
}

// DefaultConfig mirrors the reference thresholds: 0.5 similarity, top 20 per
// entity.
func DefaultConfig() Config {
	return Config{SimilarityThreshold: 0.5, TopKPerEntity: 20}
}

// Filter selects candidate conditions for a document set.
type Filter struct {
	cfg Config
	sim oracle.SimilarityOracle // nil disables the semantic pass
	log *zap.Logger
}

// New creates a Filter. sim may be nil, in which case the semantic fallback
// pass is skipped.
func New(cfg Config, sim oracle.SimilarityOracle, log *zap.Logger) *Filter {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.5
	}
	if cfg.TopKPerEntity <= 0 {
		cfg.TopKPerEntity = 20
	}
	return &Filter{cfg: cfg, sim: sim, log: log}
}

// selection carries the working state through the pass cascade.
type selection struct {
	cat  *catalog.Catalog
	docs document.Set

	classifications []string
	leafNames       map[string]bool

	// lastNonEmpty remembers the most recent pass output that produced
	// anything, for the final-fallback rule.
	lastNonEmpty []Candidate
}

// Select runs the cascade. The result is non-empty whenever the catalog is
// non-empty.
func (f *Filter) Select(ctx context.Context, cat *catalog.Catalog, docs document.Set) CandidateSet {
	st := &selection{
		cat:             cat,
		docs:            docs,
		classifications: docs.Classifications(),
		leafNames:       docs.LeafNames(),
	}

	// Compartment matches are computed up front as an intermediate only:
	// they never win outright but count as a "last non-empty computation"
	// for the final fallback.
	if comp := f.compartmentPass(st); len(comp) > 0 {
		st.lastNonEmpty = comp
	}

	byClass := f.classificationPass(st)
	if len(byClass) > 0 {
		st.lastNonEmpty = byClass
	}

	// Field intersection: an AND against the classification result when that
	// result is non-empty, a standalone inclusion criterion over the whole
	// catalog otherwise.
	byField := f.fieldPass(st, byClass)
	if len(byField) > 0 {
		return CandidateSet{Candidates: byField}
	}
	if len(byClass) > 0 {
		return CandidateSet{Candidates: byClass}
	}

	if universal := f.universalPass(st); len(universal) > 0 {
		return CandidateSet{Candidates: universal}
	}

	if semantic := f.semanticPass(ctx, st); len(semantic) > 0 {
		return CandidateSet{Candidates: semantic}
	}

	if len(st.lastNonEmpty) > 0 {
		return CandidateSet{Candidates: st.lastNonEmpty}
	}

	// Nothing matched any criterion. Surface the whole catalog rather than
	// an empty review: reviewers must always receive something actionable.
	all := make([]Candidate, 0, cat.Len())
	for _, cond := range cat.Conditions() {
		all = append(all, Candidate{Condition: cond, Path: PathCatalog})
	}
	return CandidateSet{Candidates: all}
}

// classificationPass admits conditions whose document-type labels match any
// of the set's classifications, honouring the optional loan-program
// restriction.
func (f *Filter) classificationPass(st *selection) []Candidate {
	var out []Candidate
	for _, cond := range st.cat.Conditions() {
		if !cond.MatchesLoanProgram(st.docs.LoanProgram) {
			continue
		}
		for _, cls := range st.classifications {
			if cond.MatchesClassification(cls) {
				out = append(out, Candidate{Condition: cond, Path: PathClassification})
				break
			}
		}
	}
	return out
}

// fieldPass retains conditions whose data-element keywords intersect the leaf
// field names present anywhere in the document set. Scope is the
// classification result when non-empty, the whole catalog otherwise.
func (f *Filter) fieldPass(st *selection, byClass []Candidate) []Candidate {
	scope := byClass
	if len(scope) == 0 {
		scope = make([]Candidate, 0, st.cat.Len())
		for _, cond := range st.cat.Conditions() {
			if cond.MatchesLoanProgram(st.docs.LoanProgram) {
				scope = append(scope, Candidate{Condition: cond})
			}
		}
	}
	var out []Candidate
	for _, cand := range scope {
		if f.keywordsIntersect(cand.DataElements, st.leafNames) {
			out = append(out, Candidate{Condition: cand.Condition, Path: PathField})
		}
	}
	return out
}

func (f *Filter) keywordsIntersect(elements []string, leaves map[string]bool) bool {
	for _, elem := range elements {
		keyword := strings.ToLower(strings.TrimSpace(elem))
		if keyword == "" {
			continue
		}
		for leaf := range leaves {
			if strings.Contains(keyword, leaf) || strings.Contains(leaf, keyword) {
				return true
			}
		}
	}
	return false
}

// compartmentPass matches entity texts against condition compartment labels.
func (f *Filter) compartmentPass(st *selection) []Candidate {
	entities := st.docs.Entities()
	var out []Candidate
	for _, cond := range st.cat.Conditions() {
		if f.compartmentMatches(cond, entities) {
			out = append(out, Candidate{Condition: cond, Path: PathCompartment})
		}
	}
	return out
}

func (f *Filter) compartmentMatches(cond catalog.Condition, entities []string) bool {
	for _, comp := range cond.Compartments {
		label := strings.ToLower(strings.TrimSpace(comp))
		if label == "" {
			continue
		}
		for _, entity := range entities {
			text := strings.ToLower(entity)
			if strings.Contains(label, text) || strings.Contains(text, label) {
				return true
			}
		}
	}
	return false
}

// universalPass admits conditions carrying the universal wildcard label.
func (f *Filter) universalPass(st *selection) []Candidate {
	var out []Candidate
	for _, cond := range st.cat.Universal() {
		out = append(out, Candidate{Condition: cond, Path: PathUniversal})
	}
	return out
}

// semanticPass embeds the set's entity texts and admits the top-K conditions
// per entity above the similarity threshold. An unreachable similarity
// oracle degrades to zero additional results, never a failure.
func (f *Filter) semanticPass(ctx context.Context, st *selection) []Candidate {
	if f.sim == nil {
		return nil
	}
	conditions := st.cat.Conditions()
	condVectors := make([][]float32, len(conditions))
	for i, cond := range conditions {
		if len(cond.Embedding) > 0 {
			condVectors[i] = cond.Embedding
			continue
		}
		vec, err := f.sim.Embed(ctx, cond.Description)
		if err != nil {
			f.log.Warn("semantic pass: condition embed failed, skipping pass",
				zap.String("condition", cond.Title), zap.Error(err))
			return nil
		}
		condVectors[i] = vec
	}

	seen := make(map[string]bool)
	var out []Candidate
	for _, entity := range st.docs.Entities() {
		entityVec, err := f.sim.Embed(ctx, entity)
		if err != nil {
			f.log.Warn("semantic pass: entity embed failed",
				zap.String("entity", entity), zap.Error(err))
			continue
		}
		type scored struct {
			idx int
			sim float64
		}
		var matches []scored
		for i := range conditions {
			if sim := oracle.Cosine(entityVec, condVectors[i]); sim >= f.cfg.SimilarityThreshold {
				matches = append(matches, scored{idx: i, sim: sim})
			}
		}
		sort.SliceStable(matches, func(a, b int) bool { return matches[a].sim > matches[b].sim })
		if len(matches) > f.cfg.TopKPerEntity {
			matches = matches[:f.cfg.TopKPerEntity]
		}
		for _, m := range matches {
			cond := conditions[m.idx]
			if seen[cond.Title] {
				continue
			}
			seen[cond.Title] = true
			out = append(out, Candidate{Condition: cond, Path: PathSemantic})
		}
	}
	// Deterministic output order regardless of entity iteration effects.
	sort.SliceStable(out, func(a, b int) bool {
		return st.cat.Index(out[a].Title) < st.cat.Index(out[b].Title)
	})
	return out
}
