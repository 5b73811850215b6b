// SPDX-License-Identifier: Apache-2.0

package oracle_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendproj/defreview/internal/oracle"
)

// ---------------------------------------------------------------------------
// Cosine
// ---------------------------------------------------------------------------

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite clamps to zero", []float32{1, 0}, []float32{-1, 0}, 0.0},
		{"empty", nil, []float32{1}, 0.0},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, oracle.Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

func TestErrorClassification(t *testing.T) {
	transport := &oracle.TransportError{Op: "embed", Err: errors.New("connection refused")}
	malformed := &oracle.MalformedResponseError{Op: "evaluate", RawLength: 120, Truncated: true, Err: errors.New("unexpected end of input")}

	assert.True(t, oracle.IsTransport(transport))
	assert.False(t, oracle.IsTransport(malformed))
	assert.True(t, oracle.IsMalformed(malformed))
	assert.False(t, oracle.IsMalformed(transport))

	wrapped := fmt.Errorf("stage: %w", transport)
	assert.True(t, oracle.IsTransport(wrapped), "classification survives wrapping")

	assert.Contains(t, malformed.Error(), "raw_length=120")
	assert.Contains(t, malformed.Error(), "truncated=true")

	oversized := &oracle.MalformedResponseError{Op: "evaluate", Oversized: true, Err: errors.New("3 results for 2 conditions")}
	assert.Contains(t, oversized.Error(), "oversized=true")
}

// ---------------------------------------------------------------------------
// RetryPolicy
// ---------------------------------------------------------------------------

func TestRetryPolicy_RetriesTransportOnly(t *testing.T) {
	policy := oracle.RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return &oracle.TransportError{Op: "embed", Err: errors.New("unreachable")}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "transport failures exhaust the attempt budget")

	calls = 0
	err = policy.Do(context.Background(), func(context.Context) error {
		calls++
		return &oracle.MalformedResponseError{Op: "evaluate", Err: errors.New("bad json")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "malformed responses are not retried")
}

func TestRetryPolicy_SucceedsAfterFailure(t *testing.T) {
	policy := oracle.RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return &oracle.TransportError{Op: "embed", Err: errors.New("flaky")}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	policy := oracle.RetryPolicy{Attempts: 5, Backoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := policy.Do(ctx, func(context.Context) error {
		return &oracle.TransportError{Op: "embed", Err: errors.New("unreachable")}
	})
	require.Error(t, err)
	assert.True(t, oracle.IsTransport(err))
}

// ---------------------------------------------------------------------------
// EmbedCache
// ---------------------------------------------------------------------------

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text)), 1}, nil
}

func TestEmbedCache(t *testing.T) {
	inner := &countingEmbedder{}
	cache := oracle.NewEmbedCache(inner)
	ctx := context.Background()

	first, err := cache.Embed(ctx, "percentageOwned")
	require.NoError(t, err)
	second, err := cache.Embed(ctx, "percentageOwned")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "repeat text is served from cache")
	assert.Equal(t, 1, cache.Size())

	_, err = cache.Embed(ctx, "entityName")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cache.Size())
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, &oracle.TransportError{Op: "embed", Err: errors.New("down")}
}

func TestEmbedCache_DoesNotCacheFailures(t *testing.T) {
	cache := oracle.NewEmbedCache(failingEmbedder{})

	_, err := cache.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Size())
}

// ---------------------------------------------------------------------------
// Usage
// ---------------------------------------------------------------------------

func TestUsage_Add(t *testing.T) {
	total := oracle.Usage{}
	total.Add(oracle.Usage{Model: "gemini-2.0-flash", InputTokens: 100, OutputTokens: 40})
	total.Add(oracle.Usage{InputTokens: 50, OutputTokens: 10})

	assert.Equal(t, "gemini-2.0-flash", total.Model, "empty model never overwrites")
	assert.Equal(t, 150, total.InputTokens)
	assert.Equal(t, 50, total.OutputTokens)
}
