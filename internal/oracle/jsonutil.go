// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"bytes"
	"encoding/json"
)

// cleanJSON strips markdown code fences and surrounding whitespace that
// reasoning models habitually wrap around JSON output.
func cleanJSON(raw []byte) []byte {
	out := bytes.TrimSpace(raw)
	if bytes.HasPrefix(out, []byte("```")) {
		// Drop the opening fence line (``` or ```json).
		if idx := bytes.IndexByte(out, '\n'); idx >= 0 {
			out = out[idx+1:]
		} else {
			out = nil
		}
		if idx := bytes.LastIndex(out, []byte("```")); idx >= 0 {
			out = out[:idx]
		}
		out = bytes.TrimSpace(out)
	}
	return out
}

// decodeResponse parses a reasoning response into v, classifying failures as
// MalformedResponseError with a truncation heuristic: a response that is not
// valid JSON and does not end in a closing brace was almost certainly cut off.
func decodeResponse(op string, raw []byte, truncatedHint bool, v any) error {
	cleaned := cleanJSON(raw)
	if err := json.Unmarshal(cleaned, v); err != nil {
		truncated := truncatedHint
		if !truncated && len(cleaned) > 0 && cleaned[len(cleaned)-1] != '}' && cleaned[len(cleaned)-1] != ']' {
			truncated = true
		}
		return &MalformedResponseError{
			Op:        op,
			RawLength: len(raw),
			Truncated: truncated,
			Err:       err,
		}
	}
	return nil
}
