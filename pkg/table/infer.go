package table

import (
	"strconv"
	"strings"
)

// InferBatch builds a typed batch from raw text records. Each column is
// typed independently: Integer when every non-empty cell parses as an
// integer, Real when every non-empty cell parses as a float, Text otherwise.
// Empty cells become NULL. A column with no non-empty cells is Text.
func InferBatch(header []string, records [][]string) Batch {
	cols := make([]Column, len(header))
	for j, name := range header {
		cols[j] = Column{Name: name, Type: inferColumn(records, j)}
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(cols))
		for j, col := range cols {
			row[j] = parseCell(rec[j], col.Type)
		}
		rows[i] = row
	}
	return Batch{Columns: cols, Rows: rows}
}

func inferColumn(records [][]string, j int) Type {
	sawValue := false
	isInt, isFloat := true, true
	for _, rec := range records {
		s := strings.TrimSpace(rec[j])
		if s == "" {
			continue
		}
		sawValue = true
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if !isInt {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
				break
			}
		}
	}
	switch {
	case !sawValue:
		return Text
	case isInt:
		return Integer
	case isFloat:
		return Real
	default:
		return Text
	}
}

func parseCell(s string, t Type) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	switch t {
	case Integer:
		n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return n
	case Real:
		f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f
	default:
		return s
	}
}
