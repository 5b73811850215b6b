// SPDX-License-Identifier: Apache-2.0

// Package document models the structured input to the review pipeline: one or
// more classified documents with extracted field values of arbitrary nesting
// depth, grouped under a single borrower context.
package document

import (
	"fmt"
	"sort"
	"strings"
)

// Value is a recursively structured extracted field value: a scalar, a
// mapping (map[string]any), or a sequence ([]any), as produced by JSON
// decoding. Leaves may optionally be annotated objects carrying a confidence
// score and a source provenance string.
type Value = any

// Leaf is the annotated form of a scalar value. Extraction layers that track
// per-field confidence emit objects of this shape; plain scalars are equally
// valid leaves.
type Leaf struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// AsLeaf recognises the annotated-leaf object shape inside a decoded value.
func AsLeaf(v Value) (Leaf, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Leaf{}, false
	}
	inner, ok := m["value"]
	if !ok {
		return Leaf{}, false
	}
	for key := range m {
		switch key {
		case "value", "confidence", "source":
		default:
			return Leaf{}, false
		}
	}
	leaf := Leaf{Value: inner}
	if c, ok := m["confidence"].(float64); ok {
		leaf.Confidence = c
	}
	if s, ok := m["source"].(string); ok {
		leaf.Source = s
	}
	return leaf, true
}

// Document is one physical or logical input file. ID is assigned during
// normalization and is stable across runs for identical input.
type Document struct {
	ID             string           `json:"id"`
	Classification string           `json:"classification"`
	Fields         map[string]Value `json:"extracted_entities"`
}

// Get traverses a dotted field path ("scheduleGPartII.percentageOwned")
// through arbitrarily nested mappings. Sequence elements are searched in
// order; the first element containing the remaining path wins.
func (d Document) Get(path string) (Value, bool) {
	return lookup(d.Fields, strings.Split(path, "."))
}

func lookup(v Value, parts []string) (Value, bool) {
	if len(parts) == 0 {
		return v, true
	}
	switch node := v.(type) {
	case map[string]any:
		child, ok := node[parts[0]]
		if !ok {
			return nil, false
		}
		return lookup(child, parts[1:])
	case []any:
		for _, elem := range node {
			if found, ok := lookup(elem, parts); ok {
				return found, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

// LeafNames collects the set of leaf field names (the final path segment of
// every scalar field) anywhere in the document, lowercased.
func (d Document) LeafNames() map[string]bool {
	names := make(map[string]bool)
	collectLeaves("", d.Fields, names)
	return names
}

func collectLeaves(name string, v Value, names map[string]bool) {
	if _, ok := AsLeaf(v); ok {
		if name != "" {
			names[strings.ToLower(name)] = true
		}
		return
	}
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			collectLeaves(key, child, names)
		}
	case []any:
		for _, elem := range node {
			collectLeaves(name, elem, names)
		}
	default:
		if name != "" {
			names[strings.ToLower(name)] = true
		}
	}
}

// Set is an ordered, non-empty sequence of Documents sharing one borrower
// context. Order is preserved from input and used only for deterministic
// tie-breaking; detection treats all documents as co-equal evidence sources.
type Set struct {
	Borrower    map[string]any `json:"borrower_info,omitempty"`
	LoanProgram string         `json:"loan_program,omitempty"`
	Documents   []Document     `json:"documents"`
}

// Classifications returns the distinct non-empty classification labels in
// input order.
func (s Set) Classifications() []string {
	seen := make(map[string]bool)
	var out []string
	for _, doc := range s.Documents {
		if doc.Classification == "" || seen[doc.Classification] {
			continue
		}
		seen[doc.Classification] = true
		out = append(out, doc.Classification)
	}
	return out
}

// LeafNames unions the leaf field names of every document in the set.
func (s Set) LeafNames() map[string]bool {
	names := make(map[string]bool)
	for _, doc := range s.Documents {
		for name := range doc.LeafNames() {
			names[name] = true
		}
	}
	return names
}

// Entities returns the texts used for semantic matching: every
// classification label followed by every leaf field name, deduplicated.
// Classifications keep input order; leaf names are sorted for determinism.
func (s Set) Entities() []string {
	var out []string
	seen := make(map[string]bool)
	for _, cls := range s.Classifications() {
		key := strings.ToLower(cls)
		if !seen[key] {
			seen[key] = true
			out = append(out, cls)
		}
	}
	leaves := make([]string, 0)
	for name := range s.LeafNames() {
		if !seen[name] {
			seen[name] = true
			leaves = append(leaves, name)
		}
	}
	sort.Strings(leaves)
	return append(out, leaves...)
}

// Validate checks the non-empty invariant.
func (s Set) Validate() error {
	if len(s.Documents) == 0 {
		return fmt.Errorf("document set must contain at least one document")
	}
	return nil
}
