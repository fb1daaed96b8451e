// Package summary computes the per-vendor, per-brand sales and purchase
// summary from the raw purchase, price, sales and invoice tables.
package summary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eunmann/vendorsum/pkg/table"
)

// ErrNoRows is returned when the aggregation produces no rows.
var ErrNoRows = errors.New("vendor summary produced no rows")

// Tables names the raw input tables and the summary output table.
type Tables struct {
	Purchases      string `yaml:"purchases"`
	PurchasePrices string `yaml:"purchase_prices"`
	Sales          string `yaml:"sales"`
	VendorInvoice  string `yaml:"vendor_invoice"`
	Summary        string `yaml:"summary"`
}

// DefaultTables returns the table names produced by ingesting
// purchases.csv, purchase_prices.csv, sales.csv and vendor_invoice.csv.
func DefaultTables() Tables {
	return Tables{
		Purchases:      "purchases",
		PurchasePrices: "purchase_prices",
		Sales:          "sales",
		VendorInvoice:  "vendor_invoice",
		Summary:        "vendor_sales_summary",
	}
}

// Validate checks that every table name is set.
func (t Tables) Validate() error {
	for _, n := range []struct{ key, val string }{
		{"purchases", t.Purchases},
		{"purchase_prices", t.PurchasePrices},
		{"sales", t.Sales},
		{"vendor_invoice", t.VendorInvoice},
		{"summary", t.Summary},
	} {
		if strings.TrimSpace(n.val) == "" {
			return fmt.Errorf("table name %q is required", n.key)
		}
	}
	return nil
}

// Querier runs read queries. *sql.DB and *store.Store satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// AggregateRow is one joined row before enrichment. Sales and freight
// fields are NULL when the vendor/brand has no matching rows. The keys keep
// the type they were ingested with: a batch cell (int64, float64, string)
// or nil.
type AggregateRow struct {
	VendorNumber          any
	VendorName            sql.NullString
	Brand                 any
	Description           sql.NullString
	ActualPrice           sql.NullFloat64
	Volume                sql.NullString
	TotalPurchaseQuantity sql.NullFloat64
	TotalPurchaseDollars  sql.NullFloat64
	TotalSalesQuantity    sql.NullFloat64
	TotalSalesDollars     sql.NullFloat64
	TotalSalesPrice       sql.NullFloat64
	TotalExciseTax        sql.NullFloat64
	FreightCost           sql.NullFloat64
}

// aggregateQuery joins three independently grouped sub-results. Purchases
// are grouped by catalog Price and Volume as well, so a brand with several
// catalog price points yields several rows per vendor.
const aggregateQuery = `
WITH FreightSummary AS (
    SELECT
        VendorNumber,
        SUM(Freight) AS FreightCost
    FROM %[4]s
    GROUP BY VendorNumber
),
PurchaseSummary AS (
    SELECT
        p.VendorNumber,
        p.VendorName,
        p.Brand,
        p.Description,
        pp.Price AS ActualPrice,
        pp.Volume,
        SUM(p.Quantity) AS TotalPurchaseQuantity,
        SUM(p.Dollars) AS TotalPurchaseDollars
    FROM %[1]s p
    JOIN %[2]s pp
        ON p.Brand = pp.Brand
    WHERE p.PurchasePrice > 0
    GROUP BY
        p.VendorNumber,
        p.VendorName,
        p.Brand,
        p.Description,
        pp.Price,
        pp.Volume
),
SalesSummary AS (
    SELECT
        VendorNo,
        Brand,
        SUM(SalesQuantity) AS TotalSalesQuantity,
        SUM(SalesDollars) AS TotalSalesDollars,
        SUM(SalesPrice) AS TotalSalesPrice,
        SUM(ExciseTax) AS TotalExciseTax
    FROM %[3]s
    GROUP BY VendorNo, Brand
)
SELECT
    ps.VendorNumber,
    ps.VendorName,
    ps.Brand,
    ps.Description,
    ps.ActualPrice,
    CAST(ps.Volume AS TEXT) AS Volume,
    ps.TotalPurchaseQuantity,
    ps.TotalPurchaseDollars,
    ss.TotalSalesQuantity,
    ss.TotalSalesDollars,
    ss.TotalSalesPrice,
    ss.TotalExciseTax,
    fs.FreightCost
FROM PurchaseSummary ps
LEFT JOIN SalesSummary ss
    ON ps.VendorNumber = ss.VendorNo
   AND ps.Brand = ss.Brand
LEFT JOIN FreightSummary fs
    ON ps.VendorNumber = fs.VendorNumber
ORDER BY ps.TotalPurchaseDollars DESC
`

func buildAggregateQuery(t Tables) string {
	return fmt.Sprintf(aggregateQuery,
		quoteIdent(t.Purchases),
		quoteIdent(t.PurchasePrices),
		quoteIdent(t.Sales),
		quoteIdent(t.VendorInvoice),
	)
}

// Aggregate runs the summary query and returns its rows ordered by
// TotalPurchaseDollars descending. Ties keep the database's order.
func Aggregate(ctx context.Context, q Querier, t Tables) ([]AggregateRow, error) {
	rows, err := q.QueryContext(ctx, buildAggregateQuery(t))
	if err != nil {
		return nil, fmt.Errorf("query vendor summary: %w", err)
	}
	defer rows.Close()

	var out []AggregateRow
	for rows.Next() {
		var r AggregateRow
		if err := rows.Scan(
			&r.VendorNumber,
			&r.VendorName,
			&r.Brand,
			&r.Description,
			&r.ActualPrice,
			&r.Volume,
			&r.TotalPurchaseQuantity,
			&r.TotalPurchaseDollars,
			&r.TotalSalesQuantity,
			&r.TotalSalesDollars,
			&r.TotalSalesPrice,
			&r.TotalExciseTax,
			&r.FreightCost,
		); err != nil {
			return nil, fmt.Errorf("scan vendor summary row: %w", err)
		}
		r.VendorNumber = table.Normalize(r.VendorNumber)
		r.Brand = table.Normalize(r.Brand)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendor summary rows: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
