// Package export writes a stored table to a flat file.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eunmann/vendorsum/internal/logctx"
	"github.com/eunmann/vendorsum/pkg/fileutil"
	"github.com/eunmann/vendorsum/pkg/humanfmt"
	"github.com/eunmann/vendorsum/pkg/metrics"
	"github.com/eunmann/vendorsum/pkg/table"
)

// Format selects the output encoding.
type Format string

const (
	CSV     Format = "csv"
	Parquet Format = "parquet"
)

// ParseFormat accepts "csv" or "parquet", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, Parquet:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv or parquet)", s)
	}
}

// DefaultPath returns <dir>/<tableName>.<format>.
func DefaultPath(dir, tableName string, f Format) string {
	return filepath.Join(dir, tableName+"."+string(f))
}

// Reader reads a whole table.
type Reader interface {
	ReadTable(ctx context.Context, tableName string) (table.Batch, error)
}

// Table reads every row of tableName and writes it to path. The file is
// replaced atomically and its directory is created when missing. reg may
// be nil.
func Table(ctx context.Context, r Reader, tableName, path string, f Format, reg *metrics.Registry) (int, error) {
	log := logctx.FromContext(ctx)
	start := time.Now()

	batch, err := r.ReadTable(ctx, tableName)
	if err != nil {
		return 0, err
	}

	var write func(*os.File) error
	switch f {
	case CSV:
		write = func(w *os.File) error { return WriteCSV(w, batch) }
	case Parquet:
		write = func(w *os.File) error { return WriteParquet(w, batch) }
	default:
		return 0, fmt.Errorf("unknown export format %q", f)
	}

	if err := fileutil.WriteTmpThenMove(path, write); err != nil {
		return 0, fmt.Errorf("export %s to %s: %w", tableName, path, err)
	}
	reg.Exported(tableName, string(f), batch.Len())

	log.Info().
		Str("table", tableName).
		Str("path", path).
		Str("format", string(f)).
		Int("rows", batch.Len()).
		Str("elapsed", humanfmt.Duration(time.Since(start))).
		Msg("exported table")
	return batch.Len(), nil
}

// WriteCSV writes a header line followed by one record per row.
func WriteCSV(w io.Writer, batch table.Batch) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(batch.ColumnNames()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(batch.Columns))
	for _, row := range batch.Rows {
		for i, v := range row {
			record[i] = table.FormatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
