package table

import (
	"math"
	"strconv"
	"strings"
)

// ValueType returns the type of a non-NULL cell.
func ValueType(v any) (Type, bool) {
	switch v.(type) {
	case int64:
		return Integer, true
	case float64:
		return Real, true
	case string:
		return Text, true
	default:
		return Text, false
	}
}

// Widen returns the narrowest type that holds values of both a and b:
// Integer and Real widen to Real, anything with Text widens to Text.
func Widen(a, b Type) Type {
	switch {
	case a == b:
		return a
	case a == Text || b == Text:
		return Text
	default:
		return Real
	}
}

// ColumnValuesType returns the widest type among the non-NULL cells of
// column j. ok is false when the column only holds NULLs.
func ColumnValuesType(rows [][]any, j int) (t Type, ok bool) {
	for _, row := range rows {
		vt, valid := ValueType(row[j])
		if !valid {
			continue
		}
		if !ok {
			t, ok = vt, true
			continue
		}
		t = Widen(t, vt)
		if t == Text {
			break
		}
	}
	return t, ok
}

// Coerce converts a cell to t when the conversion loses nothing. Integers
// become floats for Real, any cell becomes its FormatCell text for Text,
// numeric text parses into Integer or Real. Other cells are returned
// unchanged, and NULL stays NULL.
func Coerce(v any, t Type) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		switch t {
		case Real:
			return float64(x)
		case Text:
			return FormatCell(x)
		}
	case float64:
		switch t {
		case Integer:
			if x == math.Trunc(x) && math.Abs(x) < 1<<63 {
				return int64(x)
			}
		case Text:
			return FormatCell(x)
		}
	case string:
		s := strings.TrimSpace(x)
		switch t {
		case Integer:
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		case Real:
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	}
	return v
}
