// SPDX-License-Identifier: Apache-2.0

package rank_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lendproj/defreview/internal/catalog"
	"github.com/lendproj/defreview/internal/oracle"
	"github.com/lendproj/defreview/internal/rank"
)

type stubSim struct {
	vectors map[string][]float32
}

func (s stubSim) Embed(_ context.Context, text string) ([]float32, error) {
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

type partialSim struct {
	stubSim
	fail map[string]bool
}

func (s partialSim) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.fail[text] {
		return nil, &oracle.TransportError{Op: "embed", Err: errors.New("unreachable")}
	}
	return s.stubSim.Embed(ctx, text)
}

func testCandidates() []catalog.Condition {
	return []catalog.Condition{
		{Title: "k1", Description: "ownership percentages"},
		{Title: "k2", Description: "insurance coverage"},
		{Title: "k3", Description: "wage verification"},
	}
}

func testSim() stubSim {
	return stubSim{vectors: map[string][]float32{
		"ownership percentages": {1, 0, 0},
		"insurance coverage":    {0, 1, 0},
		"wage verification":     {0.6, 0.8, 0},
		"percentageOwned":       {1, 0, 0},
		"policyNumber":          {0, 1, 0},
	}}
}

func TestRank_MaxAggregation(t *testing.T) {
	r := rank.New(testSim(), zap.NewNop())

	ranked, err := r.Rank(context.Background(), testCandidates(),
		[]string{"percentageOwned", "policyNumber"}, rank.MethodMax, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// k1 and k2 each match one entity perfectly; k3 peaks at 0.8.
	assert.Equal(t, "k1", ranked[0].Condition.Title, "ties keep input order")
	assert.Equal(t, "k2", ranked[1].Condition.Title)
	assert.Equal(t, "k3", ranked[2].Condition.Title)
	assert.InDelta(t, 1.0, ranked[0].Score, 1e-6)
	assert.InDelta(t, 0.8, ranked[2].Score, 1e-6)
}

func TestRank_AvgAggregation(t *testing.T) {
	r := rank.New(testSim(), zap.NewNop())

	ranked, err := r.Rank(context.Background(), testCandidates(),
		[]string{"percentageOwned", "policyNumber"}, rank.MethodAvg, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// k3 averages (0.6+0.8)/2 = 0.7, beating k1 and k2 at 0.5 each.
	assert.Equal(t, "k3", ranked[0].Condition.Title)
	assert.InDelta(t, 0.7, ranked[0].Score, 1e-6)
}

func TestRank_MaxDominatesAvg(t *testing.T) {
	r := rank.New(testSim(), zap.NewNop())
	entities := []string{"percentageOwned", "policyNumber"}

	byMax, err := r.Rank(context.Background(), testCandidates(), entities, rank.MethodMax, 0)
	require.NoError(t, err)
	byAvg, err := r.Rank(context.Background(), testCandidates(), entities, rank.MethodAvg, 0)
	require.NoError(t, err)

	maxScores := make(map[string]float64, len(byMax))
	for _, entry := range byMax {
		maxScores[entry.Condition.Title] = entry.Score
	}
	// The best single-entity similarity can never be below the mean across
	// entities, and is strictly above it whenever the similarities differ.
	for _, entry := range byAvg {
		assert.GreaterOrEqual(t, maxScores[entry.Condition.Title], entry.Score, "condition %s", entry.Condition.Title)
	}
	assert.Greater(t, maxScores["k1"], findScore(t, byAvg, "k1"), "k1's entity similarities differ, so max must exceed avg")
}

func findScore(t *testing.T, ranked []rank.Ranked, title string) float64 {
	t.Helper()
	for _, entry := range ranked {
		if entry.Condition.Title == title {
			return entry.Score
		}
	}
	t.Fatalf("condition %s not in ranking", title)
	return 0
}

func TestRank_TopN(t *testing.T) {
	r := rank.New(testSim(), zap.NewNop())

	ranked, err := r.Rank(context.Background(), testCandidates(),
		[]string{"percentageOwned"}, rank.MethodMax, 1)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "k1", ranked[0].Condition.Title)
}

func TestRank_UnknownMethod(t *testing.T) {
	r := rank.New(testSim(), zap.NewNop())

	_, err := r.Rank(context.Background(), testCandidates(), []string{"x"}, "median", 0)
	assert.Error(t, err)
}

func TestRank_EmptyMethodDefaultsToMax(t *testing.T) {
	r := rank.New(testSim(), zap.NewNop())

	ranked, err := r.Rank(context.Background(), testCandidates(),
		[]string{"percentageOwned"}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "k1", ranked[0].Condition.Title)
}

func TestRank_FailedEntityExcluded(t *testing.T) {
	sim := partialSim{stubSim: testSim(), fail: map[string]bool{"policyNumber": true}}
	r := rank.New(sim, zap.NewNop())

	ranked, err := r.Rank(context.Background(), testCandidates(),
		[]string{"percentageOwned", "policyNumber"}, rank.MethodMax, 0)
	require.NoError(t, err)

	// policyNumber dropped: k2 no longer matches anything.
	assert.Equal(t, "k1", ranked[0].Condition.Title)
	for _, entry := range ranked {
		if entry.Condition.Title == "k2" {
			assert.InDelta(t, 0.0, entry.Score, 1e-6)
		}
	}
}

func TestRank_PrecomputedEmbeddingPreferred(t *testing.T) {
	sim := testSim()
	candidates := []catalog.Condition{
		{Title: "k1", Description: "unembeddable text", Embedding: []float32{1, 0, 0}},
	}
	r := rank.New(sim, zap.NewNop())

	ranked, err := r.Rank(context.Background(), candidates,
		[]string{"percentageOwned"}, rank.MethodMax, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 1.0, ranked[0].Score, 1e-6)
}
