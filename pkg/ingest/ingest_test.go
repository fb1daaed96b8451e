package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunmann/vendorsum/internal/logctx"
	"github.com/eunmann/vendorsum/pkg/metrics"
	"github.com/eunmann/vendorsum/pkg/store"
	"github.com/eunmann/vendorsum/pkg/table"
)

type writeCall struct {
	table string
	rows  int
	mode  table.Mode
}

// recordingSink records writes and fails the nth write to failTable.
type recordingSink struct {
	calls     []writeCall
	failTable string
	failAt    int
	seen      map[string]int
}

func (s *recordingSink) Write(_ context.Context, name string, b table.Batch, mode table.Mode) (int, error) {
	if s.seen == nil {
		s.seen = make(map[string]int)
	}
	s.seen[name]++
	if name == s.failTable && s.seen[name] == s.failAt {
		return 0, fmt.Errorf("storage unavailable")
	}
	s.calls = append(s.calls, writeCall{table: name, rows: b.Len(), mode: mode})
	return b.Len(), nil
}

func writeCSV(t *testing.T, dir, name string, header string, rows int) {
	t.Helper()
	var b strings.Builder
	b.WriteString(header + "\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%d,%d\n", i, i*10)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644))
}

func testContext(buf *bytes.Buffer) context.Context {
	return logctx.WithLogger(context.Background(), zerolog.New(buf))
}

func TestRunChunksReplaceThenAppend(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sales.csv", "Brand,SalesQuantity", 5)

	sink := &recordingSink{}
	trace, err := New(sink, Config{Dir: dir, ChunkSize: 2}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []writeCall{
		{table: "sales", rows: 2, mode: table.Replace},
		{table: "sales", rows: 2, mode: table.Append},
		{table: "sales", rows: 1, mode: table.Append},
	}, sink.calls)

	require.Len(t, trace.Files, 1)
	f := trace.Files[0]
	assert.NoError(t, f.Err)
	assert.Equal(t, 5, f.Rows)
	require.Len(t, f.Chunks, 3)
	assert.Equal(t, ChunkOutcome{Index: 0, Mode: table.Replace, Rows: 2}, f.Chunks[0])
	assert.Equal(t, ChunkOutcome{Index: 2, Mode: table.Append, Rows: 1}, f.Chunks[2])
}

func TestRunSkipsIneligibleFiles(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sales.csv", "a,b", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	sink := &recordingSink{}
	trace, err := New(sink, Config{Dir: dir}, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, trace.Files, 1)
	assert.Equal(t, "sales", trace.Files[0].Table)
}

func TestRunIsolatesFileFailures(t *testing.T) {
	dir := t.TempDir()
	// a_purchases fails mid-file on its second chunk; b and c follow it.
	writeCSV(t, dir, "a_purchases.csv", "x,y", 5)
	writeCSV(t, dir, "b_sales.csv", "x,y", 3)
	writeCSV(t, dir, "c_vendor_invoice.csv", "x,y", 4)

	var logs bytes.Buffer
	reg := metrics.NewRegistry()
	sink := &recordingSink{failTable: "a_purchases", failAt: 2}
	trace, err := New(sink, Config{Dir: dir, ChunkSize: 2}, reg).Run(testContext(&logs))
	require.NoError(t, err)

	require.Len(t, trace.Files, 3)
	failed := trace.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "a_purchases.csv", failed[0].File)
	assert.Equal(t, 2, failed[0].Rows, "rows written before the failure are kept")
	assert.Contains(t, failed[0].Err.Error(), "storage unavailable")

	assert.Equal(t, 3, trace.Files[1].Rows)
	assert.NoError(t, trace.Files[1].Err)
	assert.Equal(t, 4, trace.Files[2].Rows)
	assert.NoError(t, trace.Files[2].Err)

	assert.Contains(t, logs.String(), `"message":"error processing file"`)
	assert.Contains(t, logs.String(), `"file":"a_purchases.csv"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.FileFailures.WithLabelValues("a_purchases")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.FilesIngested))
}

func TestRunIsolatesReadFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x,y\n1,2\n3\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte(""), 0o644))
	writeCSV(t, dir, "c.csv", "x,y", 2)

	sink := &recordingSink{}
	trace, err := New(sink, Config{Dir: dir}, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, trace.Files, 3)
	assert.Error(t, trace.Files[0].Err)
	assert.Error(t, trace.Files[1].Err)
	assert.NoError(t, trace.Files[2].Err)
	assert.Equal(t, 2, trace.Files[2].Rows)
}

func TestRunLogsChunkCounts(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sales.csv", "a,b", 3)

	var logs bytes.Buffer
	_, err := New(&recordingSink{}, Config{Dir: dir, ChunkSize: 2}, nil).Run(testContext(&logs))
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, `"chunk":1`)
	assert.Contains(t, out, `"chunk":2`)
	assert.Contains(t, out, `"rows_inserted":2`)
	assert.Contains(t, out, `"rows_inserted":1`)
	assert.Contains(t, out, `"message":"ingestion process started"`)
	assert.Contains(t, out, `"message":"ingestion process completed"`)
	assert.Contains(t, out, `"elapsed_seconds"`)
}

func TestRunMissingDirectory(t *testing.T) {
	_, err := New(&recordingSink{}, Config{Dir: filepath.Join(t.TempDir(), "missing")}, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sales.csv", "a,b", 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&recordingSink{}, Config{Dir: dir}, nil).Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunRowCountsMatchStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeCSV(t, dir, "purchases.csv", "VendorNumber,Dollars", 7)
	writeCSV(t, dir, "sales.csv", "VendorNo,SalesDollars", 4)

	s, err := store.Open(ctx, store.DefaultConfig(filepath.Join(t.TempDir(), "inventory.db")))
	require.NoError(t, err)
	defer s.Close()

	// Run twice: re-ingestion replaces instead of duplicating.
	for i := 0; i < 2; i++ {
		trace, err := New(s, Config{Dir: dir, ChunkSize: 3}, nil).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 11, trace.TotalRows())
	}

	n, err := s.RowCount(ctx, "purchases")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	n, err = s.RowCount(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestChunkWriterStates(t *testing.T) {
	sink := &recordingSink{failTable: "t", failAt: 1}
	w := newChunkWriter(sink, "t")
	b := table.Batch{Columns: []table.Column{{Name: "a"}}}

	mode, _, err := w.write(context.Background(), b)
	require.Error(t, err)
	assert.Equal(t, table.Replace, mode)
	assert.Equal(t, stateFirst, w.state, "failed first write stays in first state")

	mode, _, err = w.write(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, table.Replace, mode)

	mode, _, err = w.write(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, table.Append, mode)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{Dir: "raw", ChunkSize: -1}).Validate())
	assert.NoError(t, (&Config{Dir: "raw"}).Validate())
}
