package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/eunmann/vendorsum/pkg/summary"
)

func newSummarizeCmd(a *app) *cobra.Command {
	var summaryTable string

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Build the vendor sales summary table",
		Long: "Aggregates purchases, catalog prices, sales and freight per vendor and brand, derives the " +
			"profitability ratios and replaces the summary table with the result.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("table") {
				a.cfg.Tables.Summary = summaryTable
			}
			if err := a.cfg.Tables.Validate(); err != nil {
				return err
			}
			return a.run(cmd, a.summarize)
		},
	}

	cmd.Flags().StringVar(&summaryTable, "table", "", "summary table name (default vendor_sales_summary)")

	return cmd
}

func (a *app) summarize(ctx context.Context) error {
	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = summary.Build(ctx, s, s, a.cfg.Tables, a.reg)
	return err
}
