// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"context"
	"time"
)

// RetryPolicy bounds retries of transport failures. Malformed responses are
// not retried: a parse failure is deterministic for a given response.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy retries twice after the initial attempt with doubling
// backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 500 * time.Millisecond}
}

// Do runs fn up to p.Attempts times, backing off between transport failures.
// The last error is returned once the budget is exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Backoff
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !IsTransport(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return &TransportError{Op: "retry", Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
