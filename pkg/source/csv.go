package source

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/eunmann/vendorsum/pkg/table"
)

// csvChunkReader reads a headed CSV stream in fixed-size chunks.
type csvChunkReader struct {
	csvReader *csv.Reader
	header    []string
	chunkSize int
	emitted   bool
	closers   []io.Closer
}

// OpenCSV opens a CSV file for chunked reading, decompressing it when the
// name ends in ".gz".
func OpenCSV(path string, chunkSize int) (ChunkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r, err := NewCSVReaderFromStream(f, path, chunkSize)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NewCSVReaderFromStream creates a chunk reader over r, handling gzip
// decompression based on the name's extension. It takes ownership of r.
func NewCSVReaderFromStream(r io.ReadCloser, name string, chunkSize int) (ChunkReader, error) {
	var reader io.Reader = r
	closers := []io.Closer{r}

	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		closers = append(closers, gzr)
		reader = gzr
	}

	cr := &csvChunkReader{
		csvReader: newCSVReader(reader),
		chunkSize: chunkSize,
		closers:   closers,
	}
	if err := cr.readHeader(); err != nil {
		cr.Close()
		return nil, err
	}
	return cr, nil
}

// newCSVReader creates a csv.Reader for raw files. FieldsPerRecord is left
// at zero so every row must match the header width.
func newCSVReader(r io.Reader) *csv.Reader {
	csvr := csv.NewReader(r)
	csvr.ReuseRecord = true
	csvr.LazyQuotes = true
	return csvr
}

func (r *csvChunkReader) readHeader() error {
	fields, err := r.csvReader.Read()
	if errors.Is(err, io.EOF) {
		return ErrNoHeader
	}
	if err != nil {
		return fmt.Errorf("read CSV header: %w", err)
	}
	header := slices.Clone(fields)
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	r.header = header
	return nil
}

// Next returns the next batch of at most chunkSize rows. A header-only file
// yields one empty batch so the table is still created.
func (r *csvChunkReader) Next() (table.Batch, error) {
	records := make([][]string, 0, min(r.chunkSize, 1024))
	for len(records) < r.chunkSize {
		fields, err := r.csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table.Batch{}, fmt.Errorf("read CSV row: %w", err)
		}
		records = append(records, slices.Clone(fields))
	}

	if len(records) == 0 && r.emitted {
		return table.Batch{}, io.EOF
	}
	r.emitted = true
	return table.InferBatch(r.header, records), nil
}

// Close releases resources.
func (r *csvChunkReader) Close() error {
	var firstErr error
	// Close in reverse order (gzip reader before underlying stream)
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
