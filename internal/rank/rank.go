// SPDX-License-Identifier: Apache-2.0

// Package rank orders candidate conditions by semantic relevance to the
// document set's extracted entities.
package rank

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/lendproj/defreview/internal/catalog"
	"github.com/lendproj/defreview/internal/oracle"
)

// Method selects how per-entity similarities aggregate into one score.
type Method string

const (
	// MethodMax takes the best single-entity match: relevance to any entity.
	MethodMax Method = "max"
	// MethodAvg takes the mean across entities: relevance to all entities.
	MethodAvg Method = "avg"
)

// Ranked pairs a condition with its aggregate relevance score in [0, 1].
type Ranked struct {
	Condition catalog.Condition
	Score     float64
}

// Ranker computes similarity-ordered candidate lists.
type Ranker struct {
	sim oracle.SimilarityOracle
	log *zap.Logger
}

// New creates a Ranker backed by the given similarity oracle.
func New(sim oracle.SimilarityOracle, log *zap.Logger) *Ranker {
	return &Ranker{sim: sim, log: log}
}

// Rank scores each candidate against the entity texts and returns the list
// sorted non-increasing by score. The sort is stable, so ties keep catalog
// insertion order (candidates arrive in that order). topN <= 0 returns all.
func (r *Ranker) Rank(ctx context.Context, candidates []catalog.Condition, entities []string, method Method, topN int) ([]Ranked, error) {
	switch method {
	case MethodMax, MethodAvg:
	case "":
		method = MethodMax
	default:
		return nil, fmt.Errorf("unknown ranking method %q", method)
	}

	entityVectors := make([][]float32, 0, len(entities))
	for _, entity := range entities {
		vec, err := r.sim.Embed(ctx, entity)
		if err != nil {
			r.log.Warn("entity embed failed, excluded from ranking",
				zap.String("entity", entity), zap.Error(err))
			continue
		}
		entityVectors = append(entityVectors, vec)
	}

	out := make([]Ranked, len(candidates))
	for i, cond := range candidates {
		score, err := r.score(ctx, cond, entityVectors, method)
		if err != nil {
			return nil, err
		}
		out[i] = Ranked{Condition: cond, Score: score}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

func (r *Ranker) score(ctx context.Context, cond catalog.Condition, entityVectors [][]float32, method Method) (float64, error) {
	if len(entityVectors) == 0 {
		return 0, nil
	}
	condVec := cond.Embedding
	if len(condVec) == 0 {
		vec, err := r.sim.Embed(ctx, cond.Description)
		if err != nil {
			return 0, fmt.Errorf("embed condition %q: %w", cond.Title, err)
		}
		condVec = vec
	}

	var best, sum float64
	for _, entityVec := range entityVectors {
		sim := oracle.Cosine(condVec, entityVec)
		if sim > best {
			best = sim
		}
		sum += sim
	}
	if method == MethodAvg {
		return sum / float64(len(entityVectors)), nil
	}
	return best, nil
}
