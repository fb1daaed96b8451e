package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/vendorsum/pkg/table"
)

// ParquetColumnOrderKey is the key/value metadata entry holding the JSON
// list of column names in their original order. Parquet groups sort their
// fields by name, so readers restore the order from it when present.
const ParquetColumnOrderKey = "vendorsum.column_order"

// parquetChunkReader reads a flat Parquet file in fixed-size chunks by
// iterating its row groups.
type parquetChunkReader struct {
	osFile  *os.File
	columns []table.Column
	kinds   []parquet.Kind
	// pos maps a leaf column index to its batch column index.
	pos       []int
	chunkSize int
	emitted   bool

	// Row group iteration state
	rowGroups    []parquet.RowGroup
	currentRGIdx int
	currentRows  parquet.Rows
	rowBuf       []parquet.Row
	bufIdx       int
	bufLen       int
}

// OpenParquet opens a Parquet file for chunked reading. Only flat schemas
// (top-level leaf columns) are supported.
func OpenParquet(path string, chunkSize int) (ChunkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	file, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	cols, kinds, err := parquetColumns(file.Schema())
	if err != nil {
		f.Close()
		return nil, err
	}
	raw, _ := file.Lookup(ParquetColumnOrderKey)
	cols, pos := restoreColumnOrder(cols, raw)

	return &parquetChunkReader{
		osFile:       f,
		columns:      cols,
		kinds:        kinds,
		pos:          pos,
		chunkSize:    chunkSize,
		rowGroups:    file.RowGroups(),
		currentRGIdx: -1,
		rowBuf:       make([]parquet.Row, 1024), // Buffer 1024 rows at a time
	}, nil
}

// parquetColumns maps the schema's top-level fields onto typed columns.
func parquetColumns(schema *parquet.Schema) ([]table.Column, []parquet.Kind, error) {
	fields := schema.Fields()
	if len(fields) == 0 {
		return nil, nil, ErrNoHeader
	}

	cols := make([]table.Column, len(fields))
	kinds := make([]parquet.Kind, len(fields))
	for i, field := range fields {
		if !field.Leaf() {
			return nil, nil, fmt.Errorf("parquet column %q is nested; only flat schemas are supported", field.Name())
		}
		kind := field.Type().Kind()
		kinds[i] = kind
		cols[i] = table.Column{Name: field.Name(), Type: columnType(kind)}
	}
	return cols, kinds, nil
}

// restoreColumnOrder reorders cols by the JSON name list raw. The schema
// order is kept when raw is empty or does not name exactly these columns.
func restoreColumnOrder(cols []table.Column, raw string) ([]table.Column, []int) {
	pos := make([]int, len(cols))
	for i := range pos {
		pos[i] = i
	}
	if raw == "" {
		return cols, pos
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil || len(names) != len(cols) {
		return cols, pos
	}

	want := make(map[string]int, len(names))
	for i, n := range names {
		want[n] = i
	}
	ordered := make([]table.Column, len(cols))
	mapped := make([]int, len(cols))
	for leaf, c := range cols {
		i, ok := want[c.Name]
		if !ok || ordered[i].Name != "" {
			return cols, pos
		}
		ordered[i] = c
		mapped[leaf] = i
	}
	return ordered, mapped
}

func columnType(kind parquet.Kind) table.Type {
	switch kind {
	case parquet.Boolean, parquet.Int32, parquet.Int64:
		return table.Integer
	case parquet.Float, parquet.Double:
		return table.Real
	default:
		return table.Text
	}
}

// Next returns the next batch of at most chunkSize rows.
func (r *parquetChunkReader) Next() (table.Batch, error) {
	batch := table.Batch{Columns: r.columns}
	for batch.Len() < r.chunkSize {
		row, err := r.nextRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table.Batch{}, err
		}
		batch.Rows = append(batch.Rows, row)
	}

	if batch.Len() == 0 && r.emitted {
		return table.Batch{}, io.EOF
	}
	r.emitted = true
	return batch, nil
}

func (r *parquetChunkReader) nextRow() ([]any, error) {
	for {
		// Check if we have buffered rows
		if r.bufIdx < r.bufLen {
			row := r.rowBuf[r.bufIdx]
			r.bufIdx++
			return r.convertRow(row), nil
		}

		// Need to read more rows
		if r.currentRows != nil {
			n, err := r.currentRows.ReadRows(r.rowBuf)
			if n > 0 {
				r.bufIdx = 0
				r.bufLen = n
				continue
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read parquet rows: %w", err)
			}
			// Current row group exhausted
			r.currentRows.Close()
			r.currentRows = nil
		}

		r.currentRGIdx++
		if r.currentRGIdx >= len(r.rowGroups) {
			return nil, io.EOF
		}
		r.currentRows = r.rowGroups[r.currentRGIdx].Rows()
	}
}

// convertRow copies a parquet.Row into batch cells. Byte arrays are copied
// because the row buffer is reused.
func (r *parquetChunkReader) convertRow(row parquet.Row) []any {
	out := make([]any, len(r.columns))
	for _, val := range row {
		leaf := val.Column()
		if leaf < 0 || leaf >= len(out) || val.IsNull() {
			continue
		}
		col := r.pos[leaf]
		switch r.kinds[leaf] {
		case parquet.Boolean:
			if val.Boolean() {
				out[col] = int64(1)
			} else {
				out[col] = int64(0)
			}
		case parquet.Int32:
			out[col] = int64(val.Int32())
		case parquet.Int64:
			out[col] = val.Int64()
		case parquet.Float:
			out[col] = float64(val.Float())
		case parquet.Double:
			out[col] = val.Double()
		default:
			out[col] = string(val.ByteArray())
		}
	}
	return out
}

// Close releases resources.
func (r *parquetChunkReader) Close() error {
	if r.currentRows != nil {
		r.currentRows.Close()
		r.currentRows = nil
	}
	return r.osFile.Close()
}
