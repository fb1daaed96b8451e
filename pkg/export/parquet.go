package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/vendorsum/pkg/source"
	"github.com/eunmann/vendorsum/pkg/table"
)

// rowGroupSize bounds how many rows are buffered per WriteRows call.
const rowGroupSize = 1024

// leafTypes returns the type each column is written as: the widest type
// among its values, or the declared type when it only holds NULLs. SQLite
// columns can mix storage classes, so the declared type alone may not hold
// every value.
func leafTypes(batch table.Batch) []table.Type {
	types := make([]table.Type, len(batch.Columns))
	for j, c := range batch.Columns {
		types[j] = c.Type
		if t, ok := table.ColumnValuesType(batch.Rows, j); ok {
			types[j] = t
		}
	}
	return types
}

// schemaFor builds a flat schema of optional leaves from the batch columns.
// parquet-go orders group fields by name, so the returned index maps each
// schema leaf back to its batch column.
func schemaFor(cols []table.Column, types []table.Type) (*parquet.Schema, []int) {
	group := make(parquet.Group, len(cols))
	byName := make(map[string]int, len(cols))
	for i, c := range cols {
		var node parquet.Node
		switch types[i] {
		case table.Integer:
			node = parquet.Int(64)
		case table.Real:
			node = parquet.Leaf(parquet.DoubleType)
		default:
			node = parquet.String()
		}
		group[c.Name] = parquet.Optional(node)
		byName[c.Name] = i
	}

	schema := parquet.NewSchema("table", group)
	fields := schema.Fields()
	order := make([]int, len(fields))
	for leaf, field := range fields {
		order[leaf] = byName[field.Name()]
	}
	return schema, order
}

// WriteParquet writes the batch as a single Parquet file. A column that
// mixes value types is written as the widest of them: DOUBLE for integers
// and reals, text as soon as one value is text.
func WriteParquet(w io.Writer, batch table.Batch) error {
	types := leafTypes(batch)
	schema, order := schemaFor(batch.Columns, types)
	names, err := json.Marshal(batch.ColumnNames())
	if err != nil {
		return fmt.Errorf("encode column order: %w", err)
	}
	pw := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(source.ParquetColumnOrderKey, string(names)))

	buf := make([]parquet.Row, 0, rowGroupSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if _, err := pw.WriteRows(buf); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
		buf = buf[:0]
		return nil
	}

	for _, row := range batch.Rows {
		out := make(parquet.Row, len(order))
		for leaf, col := range order {
			v, err := parquetValue(row[col], types[col])
			if err != nil {
				return fmt.Errorf("column %q: %w", batch.Columns[col].Name, err)
			}
			def := 1
			if v.IsNull() {
				def = 0
			}
			out[leaf] = v.Level(0, def, leaf)
		}
		buf = append(buf, out)
		if len(buf) == rowGroupSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func parquetValue(v any, t table.Type) (parquet.Value, error) {
	if v == nil {
		return parquet.NullValue(), nil
	}
	switch x := table.Coerce(v, t).(type) {
	case int64:
		if t == table.Integer {
			return parquet.Int64Value(x), nil
		}
	case float64:
		if t == table.Real {
			return parquet.DoubleValue(x), nil
		}
	case string:
		if t == table.Text {
			return parquet.ByteArrayValue([]byte(x)), nil
		}
	}
	return parquet.Value{}, fmt.Errorf("cell %v (%T) does not fit a %s leaf", v, v, t)
}
