// Package metrics records pipeline counters in a private Prometheus
// registry and writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the pipeline's collectors.
type Registry struct {
	reg            *prometheus.Registry
	RowsIngested   *prometheus.CounterVec
	ChunksWritten  *prometheus.CounterVec
	FileFailures   *prometheus.CounterVec
	FilesIngested  prometheus.Counter
	SummaryRows    prometheus.Gauge
	RowsExported   *prometheus.CounterVec
	RunDurationSec *prometheus.GaugeVec
}

// NewRegistry creates a registry with all pipeline collectors registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorsum_rows_ingested_total",
		Help: "Rows written to raw tables.",
	}, []string{"table"})
	chunks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorsum_chunks_written_total",
		Help: "Chunks written to raw tables, by write mode.",
	}, []string{"table", "mode"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorsum_file_failures_total",
		Help: "Files whose ingestion stopped on an error.",
	}, []string{"table"})
	files := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vendorsum_files_ingested_total",
		Help: "Files ingested without error.",
	})
	summaryRows := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vendorsum_summary_rows",
		Help: "Rows in the last computed vendor summary.",
	})
	exported := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorsum_rows_exported_total",
		Help: "Rows written to export files.",
	}, []string{"table", "format"})
	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vendorsum_run_duration_seconds",
		Help: "Wall-clock duration of the last run, by command.",
	}, []string{"command"})

	r.MustRegister(rows, chunks, failures, files, summaryRows, exported, duration)
	return &Registry{
		reg:            r,
		RowsIngested:   rows,
		ChunksWritten:  chunks,
		FileFailures:   failures,
		FilesIngested:  files,
		SummaryRows:    summaryRows,
		RowsExported:   exported,
		RunDurationSec: duration,
	}
}

// ChunkWritten records a chunk of n rows written to tableName.
func (r *Registry) ChunkWritten(tableName, mode string, n int) {
	if r == nil {
		return
	}
	r.ChunksWritten.WithLabelValues(tableName, mode).Inc()
	r.RowsIngested.WithLabelValues(tableName).Add(float64(n))
}

// FileDone records the outcome of one file.
func (r *Registry) FileDone(tableName string, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.FileFailures.WithLabelValues(tableName).Inc()
		return
	}
	r.FilesIngested.Inc()
}

// SummaryComputed records the size of the last vendor summary.
func (r *Registry) SummaryComputed(n int) {
	if r == nil {
		return
	}
	r.SummaryRows.Set(float64(n))
}

// Exported records n rows exported from tableName.
func (r *Registry) Exported(tableName, format string, n int) {
	if r == nil {
		return
	}
	r.RowsExported.WithLabelValues(tableName, format).Add(float64(n))
}

// RunFinished records the wall-clock duration of a command.
func (r *Registry) RunFinished(command string, d time.Duration) {
	if r == nil {
		return
	}
	r.RunDurationSec.WithLabelValues(command).Set(d.Seconds())
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes the current metric values to path.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
