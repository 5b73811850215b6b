// SPDX-License-Identifier: Apache-2.0

package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendproj/defreview/internal/catalog"
)

func TestNew_DeduplicatesTitles(t *testing.T) {
	cat := catalog.New([]catalog.Condition{
		{Title: "k1", Description: "first"},
		{Title: "k2", Description: "second"},
		{Title: "k1", Description: "duplicate"},
	})

	require.Equal(t, 2, cat.Len())
	cond, ok := cat.Lookup("k1")
	require.True(t, ok)
	assert.Equal(t, "first", cond.Description, "first occurrence wins")
}

func TestCatalog_Index(t *testing.T) {
	cat := catalog.New([]catalog.Condition{
		{Title: "k1"}, {Title: "k2"}, {Title: "k3"},
	})

	assert.Equal(t, 0, cat.Index("k1"))
	assert.Equal(t, 2, cat.Index("k3"))
	assert.Equal(t, 3, cat.Index("unknown"), "unknown titles sort last")
}

func TestCondition_IsUniversal(t *testing.T) {
	tests := []struct {
		name          string
		documentTypes []string
		want          bool
	}{
		{"all docs marker", []string{"All Docs"}, true},
		{"all documents marker", []string{"all documents"}, true},
		{"pass through variant", []string{"All docs pass through"}, true},
		{"universal marker", []string{"Universal"}, true},
		{"specific types only", []string{"1040", "W-2"}, false},
		{"no document types", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := catalog.Condition{Title: "c", DocumentTypes: tt.documentTypes}
			assert.Equal(t, tt.want, cond.IsUniversal())
		})
	}
}

func TestCondition_MatchesClassification(t *testing.T) {
	cond := catalog.Condition{
		Title:         "k1",
		DocumentTypes: []string{"1040 Schedule G", "Articles of Incorporation"},
	}

	tests := []struct {
		name           string
		classification string
		want           bool
	}{
		{"exact label", "1040 Schedule G", true},
		{"classification contains label", "2023 1040 Schedule G Part II", true},
		{"label contains classification", "Schedule G", true},
		{"case insensitive", "articles of incorporation", true},
		{"unrelated", "Bank Statement", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cond.MatchesClassification(tt.classification))
		})
	}
}

func TestCondition_MatchesLoanProgram(t *testing.T) {
	restricted := catalog.Condition{LoanPrograms: []string{"Flex Supreme"}}
	open := catalog.Condition{}

	assert.True(t, restricted.MatchesLoanProgram("Flex Supreme"))
	assert.True(t, restricted.MatchesLoanProgram("Flex Supreme 30yr"), "variant names match fuzzily")
	assert.False(t, restricted.MatchesLoanProgram("Jumbo Standard"))
	assert.True(t, restricted.MatchesLoanProgram(""), "no program in input matches everything")
	assert.True(t, open.MatchesLoanProgram("Jumbo Standard"), "unrestricted condition matches everything")
}

func TestCatalog_Universal(t *testing.T) {
	cat := catalog.New([]catalog.Condition{
		{Title: "k1", DocumentTypes: []string{"1040"}},
		{Title: "k2", DocumentTypes: []string{"All Docs"}},
		{Title: "k3", DocumentTypes: []string{"W-2"}},
	})

	universal := cat.Universal()
	require.Len(t, universal, 1)
	assert.Equal(t, "k2", universal[0].Title)
}
