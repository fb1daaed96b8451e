package summary

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/eunmann/vendorsum/pkg/table"
)

// VendorSummary is one enriched summary row. VendorNumber and Brand hold
// the key as stored in the raw tables: int64, float64 or string.
type VendorSummary struct {
	VendorNumber          any
	VendorName            string
	Brand                 any
	Description           string
	ActualPrice           float64
	Volume                float64
	TotalPurchaseQuantity float64
	TotalPurchaseDollars  float64
	TotalSalesQuantity    float64
	TotalSalesDollars     float64
	TotalSalesPrice       float64
	TotalExciseTax        float64
	FreightCost           float64
	GrossProfit           float64
	ProfitMargin          float64
	StockTurnover         float64
	SalesPurchaseRatio    float64
}

// nullText replaces a NULL text field. Missing values are zero-filled
// across every column, text included.
const nullText = "0"

// Enrich zero-fills missing values, trims names and derives the financial
// ratios. A ratio with a zero denominator is 0. Keys are passed through,
// widened to one type per column; a NULL key becomes that type's zero.
func Enrich(rows []AggregateRow) ([]VendorSummary, error) {
	vendorType := keyType(rows, func(r AggregateRow) any { return r.VendorNumber })
	brandType := keyType(rows, func(r AggregateRow) any { return r.Brand })

	out := make([]VendorSummary, len(rows))
	for i, r := range rows {
		volume, err := coerceVolume(r.Volume)
		if err != nil {
			return nil, fmt.Errorf("row %d (vendor %v, brand %v): %w",
				i, r.VendorNumber, r.Brand, err)
		}

		s := VendorSummary{
			VendorNumber:          key(r.VendorNumber, vendorType),
			VendorName:            strings.TrimSpace(text(r.VendorName)),
			Brand:                 key(r.Brand, brandType),
			Description:           strings.TrimSpace(text(r.Description)),
			ActualPrice:           num(r.ActualPrice),
			Volume:                volume,
			TotalPurchaseQuantity: num(r.TotalPurchaseQuantity),
			TotalPurchaseDollars:  num(r.TotalPurchaseDollars),
			TotalSalesQuantity:    num(r.TotalSalesQuantity),
			TotalSalesDollars:     num(r.TotalSalesDollars),
			TotalSalesPrice:       num(r.TotalSalesPrice),
			TotalExciseTax:        num(r.TotalExciseTax),
			FreightCost:           num(r.FreightCost),
		}
		s.derive()
		out[i] = s
	}
	return out, nil
}

func (s *VendorSummary) derive() {
	s.GrossProfit = s.TotalSalesDollars - s.TotalPurchaseDollars
	s.ProfitMargin = ratio(s.GrossProfit, s.TotalSalesDollars) * 100
	s.StockTurnover = ratio(s.TotalSalesQuantity, s.TotalPurchaseQuantity)
	s.SalesPurchaseRatio = ratio(s.TotalSalesDollars, s.TotalPurchaseDollars)
}

// ratio divides n by d, returning 0 when the result is not finite.
func ratio(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	r := n / d
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

func coerceVolume(v sql.NullString) (float64, error) {
	if !v.Valid {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String), 64)
	if err != nil {
		return 0, fmt.Errorf("coerce Volume %q to float: %w", v.String, err)
	}
	return f, nil
}

// keyType is the widest type among a key column's non-NULL values,
// Integer when every value is NULL.
func keyType(rows []AggregateRow, get func(AggregateRow) any) table.Type {
	cells := make([][]any, len(rows))
	for i, r := range rows {
		cells[i] = []any{get(r)}
	}
	t, ok := table.ColumnValuesType(cells, 0)
	if !ok {
		return table.Integer
	}
	return t
}

func key(v any, t table.Type) any {
	if v != nil {
		return table.Coerce(v, t)
	}
	switch t {
	case table.Real:
		return 0.0
	case table.Text:
		return nullText
	default:
		return int64(0)
	}
}

func text(v sql.NullString) string {
	if !v.Valid {
		return nullText
	}
	return v.String
}

func num(v sql.NullFloat64) float64 {
	if !v.Valid {
		return 0
	}
	return v.Float64
}

// Columns is the persisted schema of the summary table for integer keys.
// ToBatch retypes the key columns from the values they hold.
var Columns = []table.Column{
	{Name: "VendorNumber", Type: table.Integer},
	{Name: "VendorName", Type: table.Text},
	{Name: "Brand", Type: table.Integer},
	{Name: "Description", Type: table.Text},
	{Name: "ActualPrice", Type: table.Real},
	{Name: "Volume", Type: table.Real},
	{Name: "TotalPurchaseQuantity", Type: table.Real},
	{Name: "TotalPurchaseDollars", Type: table.Real},
	{Name: "TotalSalesQuantity", Type: table.Real},
	{Name: "TotalSalesDollars", Type: table.Real},
	{Name: "TotalSalesPrice", Type: table.Real},
	{Name: "TotalExciseTax", Type: table.Real},
	{Name: "FreightCost", Type: table.Real},
	{Name: "GrossProfit", Type: table.Real},
	{Name: "ProfitMargin", Type: table.Real},
	{Name: "StockTurnover", Type: table.Real},
	{Name: "SalesPurchaseRatio", Type: table.Real},
}

// ToBatch converts summary rows into a batch in Columns order.
func ToBatch(rows []VendorSummary) table.Batch {
	cols := append([]table.Column(nil), Columns...)
	b := table.Batch{Columns: cols, Rows: make([][]any, len(rows))}
	for i, s := range rows {
		b.Rows[i] = []any{
			s.VendorNumber,
			s.VendorName,
			s.Brand,
			s.Description,
			s.ActualPrice,
			s.Volume,
			s.TotalPurchaseQuantity,
			s.TotalPurchaseDollars,
			s.TotalSalesQuantity,
			s.TotalSalesDollars,
			s.TotalSalesPrice,
			s.TotalExciseTax,
			s.FreightCost,
			s.GrossProfit,
			s.ProfitMargin,
			s.StockTurnover,
			s.SalesPurchaseRatio,
		}
	}
	for _, j := range []int{0, 2} {
		if t, ok := table.ColumnValuesType(b.Rows, j); ok {
			cols[j].Type = t
		}
	}
	return b
}
