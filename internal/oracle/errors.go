// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"errors"
	"fmt"
)

// TransportError covers unreachable services and timeouts. Transport failures
// are retried with backoff before they surface.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("oracle transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError covers responses that fail to parse or validate.
// RawLength and Truncated are recorded so the failure can be diagnosed
// without re-running the call; Oversized marks a response carrying more
// results than were requested. Malformed responses are never coerced into
// empty results.
type MalformedResponseError struct {
	Op        string
	RawLength int
	Truncated bool
	Oversized bool
	Err       error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("oracle response: %s: %v (raw_length=%d truncated=%v oversized=%v)", e.Op, e.Err, e.RawLength, e.Truncated, e.Oversized)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsMalformed reports whether err is (or wraps) a MalformedResponseError.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}
