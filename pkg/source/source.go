// Package source discovers raw input files and reads them as bounded row
// batches. CSV (optionally gzip-compressed) and Parquet files are supported.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eunmann/vendorsum/pkg/table"
)

// DefaultChunkSize is the maximum number of rows per batch.
const DefaultChunkSize = 20000

// ErrNoHeader is returned for files that do not start with a header row.
var ErrNoHeader = errors.New("no header row")

// Format identifies how a file is decoded.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatCSVGzip Format = "csv.gz"
	FormatParquet Format = "parquet"
)

// extensions maps recognized suffixes to formats. Longer suffixes first so
// ".csv.gz" wins over ".gz".
var extensions = []struct {
	suffix string
	format Format
}{
	{".csv.gz", FormatCSVGzip},
	{".csv", FormatCSV},
	{".parquet", FormatParquet},
}

// File is an input file eligible for ingestion.
type File struct {
	// Path is the full path to the file.
	Path string
	// Name is the base name including extension.
	Name string
	// Table is the base name with the recognized extension stripped.
	Table string
	// Format is the decoder used for the file.
	Format Format
}

// Classify returns the ingestion file for name, or false when the name has
// no recognized extension.
func Classify(dir, name string) (File, bool) {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext.suffix) && len(name) > len(ext.suffix) {
			return File{
				Path:   filepath.Join(dir, name),
				Name:   name,
				Table:  name[:len(name)-len(ext.suffix)],
				Format: ext.format,
			}, true
		}
	}
	return File{}, false
}

// Discover lists the eligible files in dir. Directory listing order is not
// part of the contract, so files are returned sorted by name.
func Discover(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source directory: %w", err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if f, ok := Classify(dir, e.Name()); ok {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// ChunkReader yields row batches of at most the configured chunk size.
type ChunkReader interface {
	// Next returns the next batch. Returns io.EOF when the file is exhausted.
	Next() (table.Batch, error)
	// Close releases resources.
	Close() error
}

// Open opens f for chunked reading. A non-positive chunkSize selects
// DefaultChunkSize.
func Open(f File, chunkSize int) (ChunkReader, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	switch f.Format {
	case FormatCSV, FormatCSVGzip:
		return OpenCSV(f.Path, chunkSize)
	case FormatParquet:
		return OpenParquet(f.Path, chunkSize)
	default:
		return nil, fmt.Errorf("unsupported format %q for %s", f.Format, f.Name)
	}
}
