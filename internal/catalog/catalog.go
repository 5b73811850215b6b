// SPDX-License-Identifier: Apache-2.0

// Package catalog holds the underwriting condition catalog: the read-only set
// of natural-language requirements that documents are evaluated against.
// A Catalog is loaded once and never mutated afterwards; every pipeline stage
// receives the same instance.
package catalog

import (
	"strings"
)

// Condition is a single catalog entry. Title is the unique identifier.
type Condition struct {
	Title         string    `json:"title" yaml:"title"`
	Description   string    `json:"description" yaml:"description"`
	Compartments  []string  `json:"compartments,omitempty" yaml:"compartments"`
	DataElements  []string  `json:"data_elements,omitempty" yaml:"data_elements"`
	DocumentTypes []string  `json:"document_types,omitempty" yaml:"document_types"`
	LoanPrograms  []string  `json:"loan_programs,omitempty" yaml:"loan_programs"`
	Embedding     []float32 `json:"-" yaml:"embedding"`
}

// universalMarkers are the document-type labels that mean a condition applies
// to every document regardless of classification.
var universalMarkers = []string{"all docs", "all documents", "all docs pass through", "universal"}

// IsUniversal reports whether the condition carries the universal wildcard
// document-type label.
func (c Condition) IsUniversal() bool {
	for _, dt := range c.DocumentTypes {
		lower := strings.ToLower(strings.TrimSpace(dt))
		for _, marker := range universalMarkers {
			if lower == marker || strings.HasPrefix(lower, "all doc") {
				return true
			}
		}
	}
	return false
}

// MatchesClassification reports whether any of the condition's document-type
// labels matches the classification, case-insensitively and in either
// substring direction (the catalog labels and extracted classifications are
// free text from different vocabularies).
func (c Condition) MatchesClassification(classification string) bool {
	cls := strings.ToLower(strings.TrimSpace(classification))
	if cls == "" {
		return false
	}
	for _, dt := range c.DocumentTypes {
		label := strings.ToLower(strings.TrimSpace(dt))
		if label == "" {
			continue
		}
		if strings.Contains(label, cls) || strings.Contains(cls, label) {
			return true
		}
	}
	return false
}

// MatchesLoanProgram reports whether the condition is associated with the
// given loan program. Conditions with no program restriction match everything.
// Matching is fuzzy in both directions, mirroring program name variants like
// "Flex Supreme" vs "Flex Supreme 30yr".
func (c Condition) MatchesLoanProgram(program string) bool {
	if len(c.LoanPrograms) == 0 {
		return true
	}
	prog := strings.ToLower(strings.TrimSpace(program))
	if prog == "" {
		return true
	}
	for _, p := range c.LoanPrograms {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			continue
		}
		if strings.Contains(name, prog) || strings.Contains(prog, name) {
			return true
		}
	}
	return false
}

// Catalog is an immutable, ordered collection of conditions. Insertion order
// is preserved and used downstream for deterministic tie-breaking.
type Catalog struct {
	conditions []Condition
	byTitle    map[string]int
}

// New builds a Catalog from the given conditions, preserving order.
// Duplicate titles keep the first occurrence.
func New(conditions []Condition) *Catalog {
	c := &Catalog{
		conditions: make([]Condition, 0, len(conditions)),
		byTitle:    make(map[string]int, len(conditions)),
	}
	for _, cond := range conditions {
		if _, dup := c.byTitle[cond.Title]; dup {
			continue
		}
		c.byTitle[cond.Title] = len(c.conditions)
		c.conditions = append(c.conditions, cond)
	}
	return c
}

// Len returns the number of conditions in the catalog.
func (c *Catalog) Len() int { return len(c.conditions) }

// Conditions returns a copy of the condition list in insertion order.
func (c *Catalog) Conditions() []Condition {
	out := make([]Condition, len(c.conditions))
	copy(out, c.conditions)
	return out
}

// Lookup returns the condition with the given title.
func (c *Catalog) Lookup(title string) (Condition, bool) {
	idx, ok := c.byTitle[title]
	if !ok {
		return Condition{}, false
	}
	return c.conditions[idx], true
}

// Index returns the insertion position of a title, or the catalog length for
// unknown titles so that unknowns sort last.
func (c *Catalog) Index(title string) int {
	if idx, ok := c.byTitle[title]; ok {
		return idx
	}
	return len(c.conditions)
}

// Filter returns the conditions for which keep returns true, in catalog order.
func (c *Catalog) Filter(keep func(Condition) bool) []Condition {
	var out []Condition
	for _, cond := range c.conditions {
		if keep(cond) {
			out = append(out, cond)
		}
	}
	return out
}

// Universal returns the conditions carrying the universal wildcard label.
func (c *Catalog) Universal() []Condition {
	return c.Filter(Condition.IsUniversal)
}
