// Package ingest loads every eligible file of a directory into the store,
// one table per file, in fixed-size chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/eunmann/vendorsum/internal/logctx"
	"github.com/eunmann/vendorsum/pkg/humanfmt"
	"github.com/eunmann/vendorsum/pkg/logging"
	"github.com/eunmann/vendorsum/pkg/metrics"
	"github.com/eunmann/vendorsum/pkg/source"
	"github.com/eunmann/vendorsum/pkg/store"
	"github.com/eunmann/vendorsum/pkg/table"
)

// Config configures an ingestion run.
type Config struct {
	// Dir is the directory holding the raw files.
	Dir string
	// ChunkSize is the maximum rows per write. Default: source.DefaultChunkSize.
	ChunkSize int
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return errors.New("source directory is required")
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be non-negative, got %d", c.ChunkSize)
	}
	return nil
}

// ChunkOutcome records one successful chunk write.
type ChunkOutcome struct {
	// Index is the zero-based chunk index within the file.
	Index int
	Mode  table.Mode
	Rows  int
}

// FileOutcome records the result of ingesting one file.
type FileOutcome struct {
	File   string
	Table  string
	Chunks []ChunkOutcome
	// Rows is the total number of rows written for the file.
	Rows int
	// Err is set when reading or writing stopped early. Chunks written
	// before the failure stay in the table.
	Err error
}

// Trace is the per-file, per-chunk record of a run.
type Trace struct {
	Files []FileOutcome
}

// TotalRows returns the number of rows written across all files.
func (t *Trace) TotalRows() int {
	n := 0
	for _, f := range t.Files {
		n += f.Rows
	}
	return n
}

// Failed returns the outcomes of files that stopped on an error.
func (t *Trace) Failed() []FileOutcome {
	var out []FileOutcome
	for _, f := range t.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Ingestor drives the sink once per chunk of every eligible file.
type Ingestor struct {
	sink    store.Sink
	cfg     Config
	metrics *metrics.Registry
}

// New creates an Ingestor. reg may be nil.
func New(sink store.Sink, cfg Config, reg *metrics.Registry) *Ingestor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = source.DefaultChunkSize
	}
	return &Ingestor{sink: sink, cfg: cfg, metrics: reg}
}

// Run ingests every eligible file in the configured directory. A failure in
// one file is recorded in the trace and logged; the remaining files are
// still ingested. Run only returns an error when the directory cannot be
// listed or the context is cancelled.
func (in *Ingestor) Run(ctx context.Context) (*Trace, error) {
	log := logctx.FromContext(ctx)

	start := time.Now()
	log.Info().
		Time("start_timestamp", start).
		Str("dir", in.cfg.Dir).
		Int("chunk_size", in.cfg.ChunkSize).
		Msg("ingestion process started")

	files, err := source.Discover(in.cfg.Dir)
	if err != nil {
		return nil, err
	}

	trace := &Trace{Files: make([]FileOutcome, 0, len(files))}
	progress := logging.NewProgressTracker(len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return trace, err
		}

		outcome := in.ingestFile(ctx, f, progress)
		trace.Files = append(trace.Files, outcome)
		in.metrics.FileDone(f.Table, outcome.Err)
	}

	end := time.Now()
	elapsed := end.Sub(start)
	log.Info().
		Time("end_timestamp", end).
		Int("files", len(trace.Files)).
		Int("files_failed", len(trace.Failed())).
		Int("rows", trace.TotalRows()).
		Float64("elapsed_seconds", elapsed.Seconds()).
		Str("elapsed", humanfmt.Duration(elapsed)).
		Str("rate", humanfmt.Rate(int64(trace.TotalRows()), "rows", elapsed)).
		Msg("ingestion process completed")

	return trace, nil
}

func (in *Ingestor) ingestFile(ctx context.Context, f source.File, progress *logging.ProgressTracker) FileOutcome {
	fileCtx := logctx.WithStr(logctx.WithStr(ctx, "file", f.Name), "table", f.Table)
	log := logctx.FromContext(fileCtx)

	log.Info().Str("format", string(f.Format)).Msg("processing file")

	start := time.Now()
	outcome := FileOutcome{File: f.Name, Table: f.Table}
	err := in.streamFile(fileCtx, f, &outcome)
	if err != nil {
		outcome.Err = fmt.Errorf("ingest %s: %w", f.Name, err)
		progress.RecordFailure()
		progress.Fields(log.Error()).
			Err(err).
			Int("chunks_written", len(outcome.Chunks)).
			Int("rows_written", outcome.Rows).
			Msg("error processing file")
		return outcome
	}

	elapsed := time.Since(start)
	progress.RecordCompletion(elapsed)
	progress.Fields(log.Info()).
		Int("chunks", len(outcome.Chunks)).
		Str("rows", humanfmt.Count(int64(outcome.Rows))).
		Str("elapsed", humanfmt.Duration(elapsed)).
		Msg("file ingested")
	return outcome
}

func (in *Ingestor) streamFile(ctx context.Context, f source.File, outcome *FileOutcome) error {
	r, err := source.Open(f, in.cfg.ChunkSize)
	if err != nil {
		return err
	}
	defer r.Close()

	log := logctx.FromContext(ctx)
	w := newChunkWriter(in.sink, f.Table)
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read chunk %d: %w", i+1, err)
		}

		mode, n, err := w.write(ctx, batch)
		if err != nil {
			return fmt.Errorf("write chunk %d (%s): %w", i+1, mode, err)
		}

		outcome.Chunks = append(outcome.Chunks, ChunkOutcome{Index: i, Mode: mode, Rows: n})
		outcome.Rows += n
		in.metrics.ChunkWritten(f.Table, mode.String(), n)

		log.Info().
			Int("chunk", i+1).
			Str("mode", mode.String()).
			Int("rows_inserted", n).
			Msg("chunk written")
	}
}
