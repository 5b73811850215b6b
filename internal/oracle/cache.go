// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// contentKey hashes input text so cache keys are fixed-size and never leak
// document content into logs.
func contentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// EmbedCache wraps a SimilarityOracle with a content-hash keyed vector cache.
// Entries are append-only: a key is written at most once, so concurrent
// readers never observe a value change.
type EmbedCache struct {
	inner SimilarityOracle

	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewEmbedCache wraps inner with an empty cache.
func NewEmbedCache(inner SimilarityOracle) *EmbedCache {
	return &EmbedCache{inner: inner, vectors: make(map[string][]float32)}
}

// Embed returns the cached vector for text, calling the inner oracle on miss.
func (c *EmbedCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := contentKey(text)

	c.mu.RLock()
	vec, ok := c.vectors[key]
	c.mu.RUnlock()
	if ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.vectors[key]; ok {
		vec = existing // lost the race; keep the first write
	} else {
		c.vectors[key] = vec
	}
	c.mu.Unlock()
	return vec, nil
}

// Size returns the number of cached vectors.
func (c *EmbedCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}
