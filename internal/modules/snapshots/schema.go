// Package snapshots persists raw panel snapshots with checksums and checks
// incoming data against an expected schema.
package snapshots

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/alphascan/internal/panel"
)

// Data type names used in schemas.
const (
	TypeFloat64  = "float64"
	TypeDatetime = "datetime"
	TypeString   = "string"
)

// ErrSchemaMismatch is returned when data does not match its schema.
var ErrSchemaMismatch = fmt.Errorf("%w: schema mismatch", panel.ErrValidation)

// SchemaDefinition maps column names to data type names.
type SchemaDefinition struct {
	DTypes map[string]string `json:"dtypes"`
}

// ToJSON encodes the column map with sorted keys.
func (s SchemaDefinition) ToJSON() (string, error) {
	b, err := json.Marshal(s.DTypes)
	if err != nil {
		return "", fmt.Errorf("failed to encode schema: %w", err)
	}
	return string(b), nil
}

// FromJSON decodes a column map produced by ToJSON.
func FromJSON(s string) (SchemaDefinition, error) {
	var dtypes map[string]string
	if err := json.Unmarshal([]byte(s), &dtypes); err != nil {
		return SchemaDefinition{}, fmt.Errorf("failed to decode schema: %w", err)
	}
	if dtypes == nil {
		dtypes = map[string]string{}
	}
	return SchemaDefinition{DTypes: dtypes}, nil
}

// ColumnTypes describes the columns of p, key levels included.
func ColumnTypes(p *panel.Panel) map[string]string {
	types := map[string]string{
		panel.LevelDate:   TypeDatetime,
		panel.LevelTicker: TypeString,
	}
	for _, c := range p.Columns() {
		types[c] = TypeFloat64
	}
	return types
}

// InferSchema returns the schema p currently satisfies.
func InferSchema(p *panel.Panel) SchemaDefinition {
	return SchemaDefinition{DTypes: ColumnTypes(p)}
}

// TypeMismatch is one column whose type differs from the schema.
type TypeMismatch struct {
	Column   string `json:"column"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// SchemaDiff compares actual columns with a reference schema. All lists are
// sorted by column name.
type SchemaDiff struct {
	MissingColumns  []string       `json:"missing_columns"`
	ExtraColumns    []string       `json:"extra_columns"`
	MismatchedTypes []TypeMismatch `json:"mismatched_types"`
}

// Empty reports whether the columns match the schema exactly.
func (d SchemaDiff) Empty() bool {
	return len(d.MissingColumns) == 0 && len(d.ExtraColumns) == 0 && len(d.MismatchedTypes) == 0
}

// DetectSchemaDiff compares columns with schema.
func DetectSchemaDiff(columns map[string]string, schema SchemaDefinition) SchemaDiff {
	diff := SchemaDiff{
		MissingColumns:  []string{},
		ExtraColumns:    []string{},
		MismatchedTypes: []TypeMismatch{},
	}
	for _, col := range sortedKeys(schema.DTypes) {
		actual, ok := columns[col]
		if !ok {
			diff.MissingColumns = append(diff.MissingColumns, col)
			continue
		}
		if expected := schema.DTypes[col]; actual != expected {
			diff.MismatchedTypes = append(diff.MismatchedTypes, TypeMismatch{Column: col, Expected: expected, Actual: actual})
		}
	}
	for _, col := range sortedKeys(columns) {
		if _, ok := schema.DTypes[col]; !ok {
			diff.ExtraColumns = append(diff.ExtraColumns, col)
		}
	}
	return diff
}

// ValidateSchema fails when a schema column is missing or has another type.
// Missing columns are reported before type mismatches. Extra columns are
// allowed.
func ValidateSchema(columns map[string]string, schema SchemaDefinition) error {
	diff := DetectSchemaDiff(columns, schema)
	if len(diff.MissingColumns) > 0 {
		return fmt.Errorf("%w: missing columns: [%s]", ErrSchemaMismatch, strings.Join(diff.MissingColumns, ", "))
	}
	if len(diff.MismatchedTypes) > 0 {
		parts := make([]string, len(diff.MismatchedTypes))
		for i, m := range diff.MismatchedTypes {
			parts[i] = fmt.Sprintf("column %q has type %s, expected %s", m.Column, m.Actual, m.Expected)
		}
		return fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(parts, "; "))
	}
	return nil
}

// ValidatePanel is ValidateSchema over the columns of p.
func ValidatePanel(p *panel.Panel, schema SchemaDefinition) error {
	return ValidateSchema(ColumnTypes(p), schema)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
