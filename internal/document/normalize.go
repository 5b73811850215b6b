// SPDX-License-Identifier: Apache-2.0

package document

import (
	"encoding/json"
	"fmt"
)

// inputShape recognises and decodes one accepted input-report format.
// Shapes are tried in registration order; the first that can handle the
// payload wins.
type inputShape interface {
	CanHandle(raw map[string]json.RawMessage) bool
	Decode(raw map[string]json.RawMessage) (Set, error)
	Name() string
}

// multiDocShape decodes the multi-document report format:
//
//	{borrower_info, loan_program, documents: [{classification, extracted_entities}, ...]}
type multiDocShape struct{}

func (multiDocShape) Name() string { return "multi_document" }

func (multiDocShape) CanHandle(raw map[string]json.RawMessage) bool {
	_, ok := raw["documents"]
	return ok
}

func (multiDocShape) Decode(raw map[string]json.RawMessage) (Set, error) {
	var set Set
	if err := decodeContext(raw, &set); err != nil {
		return Set{}, err
	}
	var docs []struct {
		Classification string           `json:"classification"`
		Entities       map[string]Value `json:"extracted_entities"`
	}
	if err := json.Unmarshal(raw["documents"], &docs); err != nil {
		return Set{}, fmt.Errorf("decode documents: %w", err)
	}
	for i, d := range docs {
		set.Documents = append(set.Documents, Document{
			ID:             documentID(i, d.Classification),
			Classification: d.Classification,
			Fields:         d.Entities,
		})
	}
	return set, nil
}

// legacyShape decodes the original single-document report format:
//
//	{borrower_info, classification, extracted_entities, loan_program}
type legacyShape struct{}

func (legacyShape) Name() string { return "legacy_single_document" }

func (legacyShape) CanHandle(raw map[string]json.RawMessage) bool {
	_, hasCls := raw["classification"]
	_, hasEnt := raw["extracted_entities"]
	return hasCls || hasEnt
}

func (legacyShape) Decode(raw map[string]json.RawMessage) (Set, error) {
	var set Set
	if err := decodeContext(raw, &set); err != nil {
		return Set{}, err
	}
	var classification string
	if r, ok := raw["classification"]; ok {
		if err := json.Unmarshal(r, &classification); err != nil {
			return Set{}, fmt.Errorf("decode classification: %w", err)
		}
	}
	fields := map[string]Value{}
	if r, ok := raw["extracted_entities"]; ok {
		if err := json.Unmarshal(r, &fields); err != nil {
			return Set{}, fmt.Errorf("decode extracted_entities: %w", err)
		}
	}
	set.Documents = []Document{{
		ID:             documentID(0, classification),
		Classification: classification,
		Fields:         fields,
	}}
	return set, nil
}

func decodeContext(raw map[string]json.RawMessage, set *Set) error {
	if r, ok := raw["borrower_info"]; ok {
		if err := json.Unmarshal(r, &set.Borrower); err != nil {
			return fmt.Errorf("decode borrower_info: %w", err)
		}
	}
	if r, ok := raw["loan_program"]; ok {
		if err := json.Unmarshal(r, &set.LoanProgram); err != nil {
			return fmt.Errorf("decode loan_program: %w", err)
		}
	}
	return nil
}

func documentID(index int, classification string) string {
	if classification == "" {
		return fmt.Sprintf("doc-%d", index+1)
	}
	return fmt.Sprintf("doc-%d:%s", index+1, classification)
}

// shapes are tried in order; the multi-document format is recognised first so
// that a payload carrying both "documents" and a stray top-level
// "classification" is not mis-read as legacy input.
var shapes = []inputShape{multiDocShape{}, legacyShape{}}

// Normalize decodes an input report in either accepted format into a Set.
func Normalize(payload []byte) (Set, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Set{}, fmt.Errorf("decode input report: %w", err)
	}
	for _, shape := range shapes {
		if !shape.CanHandle(raw) {
			continue
		}
		set, err := shape.Decode(raw)
		if err != nil {
			return Set{}, fmt.Errorf("shape %q: %w", shape.Name(), err)
		}
		if err := set.Validate(); err != nil {
			return Set{}, err
		}
		return set, nil
	}
	return Set{}, fmt.Errorf("unrecognised input report: expected %q or %q fields", "documents", "classification/extracted_entities")
}

// NormalizeMap normalizes a payload that was already decoded into a generic
// map, as tool inputs arrive.
func NormalizeMap(payload map[string]any) (Set, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Set{}, fmt.Errorf("re-encode input report: %w", err)
	}
	return Normalize(raw)
}
