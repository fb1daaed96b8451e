package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/eunmann/vendorsum/internal/logctx"
	"github.com/eunmann/vendorsum/pkg/humanfmt"
	"github.com/eunmann/vendorsum/pkg/metrics"
	"github.com/eunmann/vendorsum/pkg/store"
	"github.com/eunmann/vendorsum/pkg/table"
)

// Build aggregates the raw tables, enriches the result and replaces the
// summary table with it. Nothing is written when aggregation or
// enrichment fails. reg may be nil.
func Build(ctx context.Context, q Querier, sink store.Sink, t Tables, reg *metrics.Registry) ([]VendorSummary, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	log := logctx.FromContext(ctx).With().Str("summary_table", t.Summary).Logger()
	start := time.Now()

	log.Info().Msg("creating vendor sales summary")
	agg, err := Aggregate(ctx, q, t)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	log.Info().Int("rows", len(agg)).Msg("cleaning data")
	rows, err := Enrich(agg)
	if err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}

	log.Info().Msg("writing to database")
	n, err := sink.Write(ctx, t.Summary, ToBatch(rows), table.Replace)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", t.Summary, err)
	}
	reg.SummaryComputed(n)

	log.Info().
		Int("rows", n).
		Str("elapsed", humanfmt.Duration(time.Since(start))).
		Msg("process completed successfully")
	return rows, nil
}
