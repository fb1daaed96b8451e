// Package table defines the row batch model shared by readers, the store
// and the summary pipeline.
package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the persisted type of a column.
type Type uint8

const (
	// Text columns hold string cells.
	Text Type = iota
	// Integer columns hold int64 cells.
	Integer
	// Real columns hold float64 cells.
	Real
)

// String returns the SQL type name used when creating tables.
func (t Type) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	default:
		return "TEXT"
	}
}

// ParseType maps a declared SQL column type onto a Type using SQLite's
// affinity rules, which also cover the DuckDB type names.
func ParseType(decl string) Type {
	d := strings.ToUpper(decl)
	switch {
	case strings.Contains(d, "INT"):
		return Integer
	case strings.Contains(d, "CHAR"), strings.Contains(d, "TEXT"), strings.Contains(d, "CLOB"):
		return Text
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"),
		strings.Contains(d, "DECIMAL"), strings.Contains(d, "NUMERIC"):
		return Real
	default:
		return Text
	}
}

// Mode selects how a batch is written to an existing table.
type Mode uint8

const (
	// Replace discards the table's prior contents and schema.
	Replace Mode = iota
	// Append adds rows to the end of the table.
	Append
)

func (m Mode) String() string {
	if m == Append {
		return "append"
	}
	return "replace"
}

// Column is a named, typed column of a batch.
type Column struct {
	Name string
	Type Type
}

// Batch is a rectangular set of rows. Cells are nil, int64, float64 or string.
type Batch struct {
	Columns []Column
	Rows    [][]any
}

// Len returns the number of rows.
func (b Batch) Len() int { return len(b.Rows) }

// ColumnNames returns the column names in order.
func (b Batch) ColumnNames() []string {
	names := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks that the batch is rectangular, has unique column names and
// only holds supported cell types.
func (b Batch) Validate() error {
	if len(b.Columns) == 0 {
		return fmt.Errorf("batch has no columns")
	}
	seen := make(map[string]struct{}, len(b.Columns))
	for _, c := range b.Columns {
		if c.Name == "" {
			return fmt.Errorf("batch has an unnamed column")
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for i, row := range b.Rows {
		if len(row) != len(b.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(b.Columns))
		}
		for j, v := range row {
			switch v.(type) {
			case nil, int64, float64, string:
			default:
				return fmt.Errorf("row %d column %q: unsupported cell type %T", i, b.Columns[j].Name, v)
			}
		}
	}
	return nil
}

// Normalize converts a value scanned from database/sql into a batch cell.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64, float64, string:
		return x
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint32:
		return int64(x)
	case uint16:
		return int64(x)
	case uint8:
		return int64(x)
	case float32:
		return float64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	default:
		return fmt.Sprint(x)
	}
}

// FormatCell renders a cell for flat-file output. NULL is the empty string
// and integral floats keep a ".0" suffix so the column re-infers as Real.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
