package dictionary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Dictionary holds operator-controlled business context loaded from a YAML
// file. Descriptions flow into schema summaries so the model sees what a
// table means, not just its columns; hidden tables never reach the model at
// all.
type Dictionary struct {
	Tables map[string]TableEntry `yaml:"tables"` // keyed by schema.table
}

// TableEntry describes one table and optionally its columns.
type TableEntry struct {
	Description string                 `yaml:"description"`
	Hide        bool                   `yaml:"hide,omitempty"`
	Columns     map[string]ColumnEntry `yaml:"columns"`
}

// ColumnEntry holds a column's business description.
type ColumnEntry struct {
	Description string `yaml:"description"`
}

// UnmarshalYAML supports both a struct and a plain-string form:
//
//	columns:
//	  email: "User email"       # plain string
//	  total:                    # struct
//	    description: "Gross order value"
func (ce *ColumnEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		ce.Description = value.Value
		return nil
	}
	type alias ColumnEntry
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding column entry: %w", err)
	}
	*ce = ColumnEntry(a)
	return nil
}

// LoadFromFile reads a YAML dictionary file and returns a validated Dictionary.
func LoadFromFile(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dictionary file: %w", err)
	}

	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing dictionary YAML: %w", err)
	}

	if err := validate(&d); err != nil {
		return nil, fmt.Errorf("validating dictionary: %w", err)
	}

	return &d, nil
}

func validate(d *Dictionary) error {
	for key, te := range d.Tables {
		if key == "" {
			return fmt.Errorf("tables contains an empty key")
		}
		for col := range te.Columns {
			if col == "" {
				return fmt.Errorf("tables[%q].columns contains an empty key", key)
			}
		}
	}
	return nil
}
