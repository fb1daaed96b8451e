package ingest

import (
	"context"

	"github.com/eunmann/vendorsum/pkg/store"
	"github.com/eunmann/vendorsum/pkg/table"
)

// writeState is the position of a file in the replace-then-append protocol.
type writeState uint8

const (
	// stateFirst: the next batch replaces the table.
	stateFirst writeState = iota
	// stateAppending: the table holds this file's earlier batches.
	stateAppending
)

// chunkWriter writes the batches of one file. The first successful write
// replaces the table; every later write appends to it.
type chunkWriter struct {
	sink  store.Sink
	table string
	state writeState
}

func newChunkWriter(sink store.Sink, tableName string) *chunkWriter {
	return &chunkWriter{sink: sink, table: tableName, state: stateFirst}
}

func (w *chunkWriter) mode() table.Mode {
	if w.state == stateFirst {
		return table.Replace
	}
	return table.Append
}

func (w *chunkWriter) write(ctx context.Context, batch table.Batch) (table.Mode, int, error) {
	mode := w.mode()
	n, err := w.sink.Write(ctx, w.table, batch, mode)
	if err != nil {
		return mode, n, err
	}
	w.state = stateAppending
	return mode, n, nil
}
