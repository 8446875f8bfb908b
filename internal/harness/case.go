package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/retrace/internal/record"
)

// Case is one conformance case.
type Case struct {
	// Name uniquely identifies the case and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the case validates.
	Description string `yaml:"description"`

	// Profile is CUE source for the dataset profile. Empty means the
	// reference profile.
	Profile string `yaml:"profile"`

	// RunID fixes the run id. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the generated dataset.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Item and Location select a pair (stockout, no_stockout, order, no_order).
	Item     string `yaml:"item,omitempty"`
	Location string `yaml:"location,omitempty"`

	// Stream is a table name (row_count).
	Stream string `yaml:"stream,omitempty"`

	// Count is the expected row count (row_count).
	Count int `yaml:"count,omitempty"`

	// Expect holds expected field values (stockout, order).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertStockout   = "stockout"
	AssertNoStockout = "no_stockout"
	AssertOrder      = "order"
	AssertNoOrder    = "no_order"
	AssertRowCount   = "row_count"
	AssertAuditClean = "audit_clean"
)

// LoadCase reads and parses a case file.
// Unknown fields are rejected so typos surface as errors.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}
	return ParseCase(data)
}

// ParseCase parses case YAML.
func ParseCase(data []byte) (*Case, error) {
	var c Case
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateCase(&c); err != nil {
		return nil, fmt.Errorf("invalid case: %w", err)
	}
	return &c, nil
}

func validateCase(c *Case) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(c.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, a := range c.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStockout, AssertOrder:
		if a.Item == "" || a.Location == "" {
			return fmt.Errorf("assertions[%d]: item and location are required for %s", index, a.Type)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
		fields := stockoutFields
		if a.Type == AssertOrder {
			fields = orderFields
		}
		for key := range a.Expect {
			if !fields[key] {
				return fmt.Errorf("assertions[%d]: unknown %s field %q", index, a.Type, key)
			}
		}
	case AssertNoStockout, AssertNoOrder:
		if a.Item == "" || a.Location == "" {
			return fmt.Errorf("assertions[%d]: item and location are required for %s", index, a.Type)
		}
	case AssertRowCount:
		if !knownStream(a.Stream) {
			return fmt.Errorf("assertions[%d]: unknown stream %q for row_count", index, a.Stream)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertAuditClean:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func knownStream(table string) bool {
	_, ok := streamByTable(table)
	return ok
}

func streamByTable(table string) (record.Stream, bool) {
	for _, s := range record.Streams {
		if s.Table() == table {
			return s, true
		}
	}
	return 0, false
}
