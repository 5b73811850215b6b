// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/goccy/go-yaml"
)

// catalogSchema constrains the decoded catalog document before it is turned
// into Conditions. Validation failures are startup-fatal.
const catalogSchema = `
#Condition: {
	title:        string & !=""
	description:  string & !=""
	compartments?: [...string]
	data_elements?: [...string]
	document_types?: [...string]
	loan_programs?: [...string]
	embedding?: [...number]
}

conditions: [...#Condition] & [_, ...]
`

// catalogFile is the on-disk shape of a catalog document.
type catalogFile struct {
	Conditions []Condition `yaml:"conditions"`
}

// Load reads a YAML catalog file, validates it against the catalog schema,
// and returns an immutable Catalog. An empty or malformed catalog is a
// configuration error: the pipeline cannot run without conditions.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse validates and decodes catalog YAML content.
func Parse(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := validateSchema(file); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	return New(file.Conditions), nil
}

func validateSchema(file catalogFile) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(catalogSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	doc := ctx.Encode(map[string]any{"conditions": file.Conditions})
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}
