// SPDX-License-Identifier: Apache-2.0

package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lendproj/defreview/internal/document"
)

func TestAsLeaf(t *testing.T) {
	tests := []struct {
		name   string
		value  document.Value
		isLeaf bool
	}{
		{"annotated leaf", map[string]any{"value": 42.0, "confidence": 0.9, "source": "p3"}, true},
		{"value only", map[string]any{"value": "ACME Corp"}, true},
		{"extra keys disqualify", map[string]any{"value": 1.0, "unit": "pct"}, false},
		{"plain map", map[string]any{"name": "x"}, false},
		{"scalar", "text", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaf, ok := document.AsLeaf(tt.value)
			assert.Equal(t, tt.isLeaf, ok)
			if tt.isLeaf {
				assert.NotNil(t, leaf.Value)
			}
		})
	}
}

func TestDocument_Get(t *testing.T) {
	doc := document.Document{
		Fields: map[string]document.Value{
			"scheduleGPartII": []any{
				map[string]any{"shareholderName": "A", "percentageOwned": 60.0},
				map[string]any{"shareholderName": "B", "percentageOwned": 30.0},
			},
			"borrower": map[string]any{
				"address": map[string]any{"state": "CA"},
			},
		},
	}

	v, ok := doc.Get("borrower.address.state")
	require.True(t, ok)
	assert.Equal(t, "CA", v)

	// Arrays are searched in order; the first element wins.
	v, ok = doc.Get("scheduleGPartII.percentageOwned")
	require.True(t, ok)
	assert.Equal(t, 60.0, v)

	_, ok = doc.Get("borrower.address.zip")
	assert.False(t, ok)
}

func TestDocument_LeafNames(t *testing.T) {
	doc := document.Document{
		Fields: map[string]document.Value{
			"EntityName": "ACME",
			"schedule": []any{
				map[string]any{"percentageOwned": map[string]any{"value": 60.0, "confidence": 0.8}},
			},
		},
	}

	names := doc.LeafNames()
	assert.True(t, names["entityname"], "leaf names are lowercased")
	assert.True(t, names["percentageowned"], "annotated leaves count by their field name")
	assert.False(t, names["schedule"], "containers are not leaves")
}

func TestSet_Classifications(t *testing.T) {
	set := document.Set{Documents: []document.Document{
		{Classification: "1040 Schedule G"},
		{Classification: "W-2"},
		{Classification: "1040 Schedule G"},
		{Classification: ""},
	}}

	assert.Equal(t, []string{"1040 Schedule G", "W-2"}, set.Classifications())
}

func TestSet_Entities(t *testing.T) {
	set := document.Set{Documents: []document.Document{
		{
			Classification: "W-2",
			Fields:         map[string]document.Value{"wages": 50000.0, "employer": "ACME"},
		},
	}}

	entities := set.Entities()
	require.NotEmpty(t, entities)
	assert.Equal(t, "W-2", entities[0], "classifications come first")
	assert.Contains(t, entities, "employer")
	assert.Contains(t, entities, "wages")
}

func TestSet_Validate(t *testing.T) {
	assert.Error(t, document.Set{}.Validate())
	assert.NoError(t, document.Set{Documents: []document.Document{{Classification: "W-2"}}}.Validate())
}
