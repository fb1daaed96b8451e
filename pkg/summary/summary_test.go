package summary

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunmann/vendorsum/pkg/metrics"
	"github.com/eunmann/vendorsum/pkg/store"
	"github.com/eunmann/vendorsum/pkg/table"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	return openStoreDriver(t, store.DriverSQLite3)
}

func openStoreDriver(t *testing.T, driver string) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig(filepath.Join(t.TempDir(), "inventory.db"))
	cfg.Driver = driver
	s, err := store.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func load(t *testing.T, s *store.Store, name string, header []string, records ...[]string) {
	t.Helper()
	_, err := s.Write(context.Background(), name, table.InferBatch(header, records), table.Replace)
	require.NoError(t, err)
}

var (
	purchasesHeader = []string{"VendorNumber", "VendorName", "Brand", "Description", "PurchasePrice", "Quantity", "Dollars"}
	pricesHeader    = []string{"Brand", "Price", "Volume"}
	salesHeader     = []string{"VendorNo", "Brand", "SalesQuantity", "SalesDollars", "SalesPrice", "ExciseTax"}
	invoiceHeader   = []string{"VendorNumber", "Freight"}
)

// loadScenario loads three purchase lines over two brands, two sales lines
// for one of them and a single freight invoice.
func loadScenario(t *testing.T, s *store.Store) {
	t.Helper()
	load(t, s, "purchases", purchasesHeader,
		[]string{"1", "ACME SPIRITS  ", "100", "Vodka 750mL ", "10.5", "5", "50.0"},
		[]string{"1", "ACME SPIRITS  ", "100", "Vodka 750mL ", "10.5", "3", "30.0"},
		[]string{"2", "BETA WINES", "200", "Gin", "8.0", "2", "16.0"},
	)
	load(t, s, "purchase_prices", pricesHeader,
		[]string{"100", "12.99", "750"},
		[]string{"200", "9.99", "1000"},
	)
	load(t, s, "sales", salesHeader,
		[]string{"1", "100", "4", "100.0", "25.0", "1.5"},
		[]string{"1", "100", "2", "20.0", "10.0", "0.5"},
	)
	load(t, s, "vendor_invoice", invoiceHeader,
		[]string{"1", "7.25"},
	)
}

func TestBuildScenario(t *testing.T) {
	for _, driver := range []string{store.DriverSQLite3, store.DriverSQLite, store.DriverDuckDB} {
		t.Run(driver, func(t *testing.T) {
			testBuildScenario(t, openStoreDriver(t, driver))
		})
	}
}

func testBuildScenario(t *testing.T, s *store.Store) {
	ctx := context.Background()
	loadScenario(t, s)

	reg := metrics.NewRegistry()
	rows, err := Build(ctx, s, s, DefaultTables(), reg)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	withSales := rows[0]
	assert.Equal(t, int64(1), withSales.VendorNumber)
	assert.Equal(t, "ACME SPIRITS", withSales.VendorName)
	assert.Equal(t, int64(100), withSales.Brand)
	assert.Equal(t, "Vodka 750mL", withSales.Description)
	assert.Equal(t, 12.99, withSales.ActualPrice)
	assert.Equal(t, 750.0, withSales.Volume)
	assert.Equal(t, 8.0, withSales.TotalPurchaseQuantity)
	assert.Equal(t, 80.0, withSales.TotalPurchaseDollars)
	assert.Equal(t, 6.0, withSales.TotalSalesQuantity)
	assert.Equal(t, 120.0, withSales.TotalSalesDollars)
	assert.Equal(t, 35.0, withSales.TotalSalesPrice)
	assert.Equal(t, 2.0, withSales.TotalExciseTax)
	assert.Equal(t, 7.25, withSales.FreightCost)
	assert.Equal(t, 40.0, withSales.GrossProfit)
	assert.InDelta(t, 33.3333, withSales.ProfitMargin, 1e-4)
	assert.Equal(t, 0.75, withSales.StockTurnover)
	assert.Equal(t, 1.5, withSales.SalesPurchaseRatio)

	zeroed := rows[1]
	assert.Equal(t, int64(2), zeroed.VendorNumber)
	assert.Equal(t, 16.0, zeroed.TotalPurchaseDollars)
	assert.Zero(t, zeroed.TotalSalesQuantity)
	assert.Zero(t, zeroed.TotalSalesDollars)
	assert.Zero(t, zeroed.TotalSalesPrice)
	assert.Zero(t, zeroed.TotalExciseTax)
	assert.Zero(t, zeroed.FreightCost)
	assert.Equal(t, -16.0, zeroed.GrossProfit)
	assert.Zero(t, zeroed.ProfitMargin)
	assert.Zero(t, zeroed.StockTurnover)
	assert.Zero(t, zeroed.SalesPurchaseRatio)

	n, err := s.RowCount(ctx, "vendor_sales_summary")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	persisted, err := s.ReadTable(ctx, "vendor_sales_summary")
	require.NoError(t, err)
	assert.Equal(t, ToBatch(rows).ColumnNames(), persisted.ColumnNames())
	assert.Equal(t, ToBatch(rows).Rows, persisted.Rows)
}

func TestBuildReplacesPreviousSummary(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	loadScenario(t, s)

	for i := 0; i < 2; i++ {
		_, err := Build(ctx, s, s, DefaultTables(), nil)
		require.NoError(t, err)
	}

	n, err := s.RowCount(ctx, "vendor_sales_summary")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAggregateExcludesNonPositivePurchasePrice(t *testing.T) {
	s := openStore(t)
	loadScenario(t, s)
	load(t, s, "purchases", purchasesHeader,
		[]string{"1", "ACME", "100", "Vodka", "10.5", "5", "50.0"},
		[]string{"3", "GAMMA", "200", "Gin", "0", "9", "90.0"},
		[]string{"4", "DELTA", "200", "Gin", "-1.0", "9", "90.0"},
	)

	rows, err := Aggregate(context.Background(), s, DefaultTables())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].VendorNumber)
}

func TestAggregateLeavesUnmatchedFieldsNull(t *testing.T) {
	s := openStore(t)
	loadScenario(t, s)

	rows, err := Aggregate(context.Background(), s, DefaultTables())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.True(t, rows[0].TotalSalesDollars.Valid)
	assert.True(t, rows[0].FreightCost.Valid)
	assert.False(t, rows[1].TotalSalesDollars.Valid)
	assert.False(t, rows[1].TotalSalesQuantity.Valid)
	assert.False(t, rows[1].FreightCost.Valid)
}

func TestAggregateKeepsCatalogPricePoints(t *testing.T) {
	s := openStore(t)
	loadScenario(t, s)
	load(t, s, "purchase_prices", pricesHeader,
		[]string{"100", "12.99", "750"},
		[]string{"100", "24.99", "1750"},
		[]string{"200", "9.99", "1000"},
	)

	rows, err := Aggregate(context.Background(), s, DefaultTables())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var brand100 int
	for _, r := range rows {
		if r.Brand == int64(100) {
			brand100++
		}
	}
	assert.Equal(t, 2, brand100, "one row per catalog price point")
}

func TestAggregateSortedByPurchaseDollars(t *testing.T) {
	s := openStore(t)
	loadScenario(t, s)
	load(t, s, "purchases", purchasesHeader,
		[]string{"1", "A", "100", "x", "1", "1", "5.0"},
		[]string{"2", "B", "100", "x", "1", "1", "500.0"},
		[]string{"3", "C", "200", "y", "1", "1", "50.0"},
		[]string{"4", "D", "200", "y", "1", "1", "50.0"},
		[]string{"5", "E", "100", "x", "1", "1", "0.5"},
	)

	rows, err := Aggregate(context.Background(), s, DefaultTables())
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i-1].TotalPurchaseDollars.Float64, rows[i].TotalPurchaseDollars.Float64,
			"rows %d and %d out of order", i-1, i)
	}
}

func TestBuildMissingTableWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	load(t, s, "purchases", purchasesHeader, []string{"1", "A", "100", "x", "1", "1", "5.0"})

	_, err := Build(ctx, s, s, DefaultTables(), nil)
	require.Error(t, err)

	exists, err := s.TableExists(ctx, "vendor_sales_summary")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildNoRows(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	loadScenario(t, s)
	load(t, s, "purchases", purchasesHeader, []string{"1", "A", "999", "x", "1", "1", "5.0"})

	_, err := Build(ctx, s, s, DefaultTables(), nil)
	assert.True(t, errors.Is(err, ErrNoRows), "got %v", err)
}

func TestEnrichDerivedFields(t *testing.T) {
	rows, err := Enrich([]AggregateRow{{
		VendorNumber:          int64(7),
		VendorName:            sql.NullString{String: "  Vendor  ", Valid: true},
		Brand:                 int64(9),
		Description:           sql.NullString{String: "Desc ", Valid: true},
		Volume:                sql.NullString{String: "750", Valid: true},
		TotalPurchaseQuantity: sql.NullFloat64{Float64: 10, Valid: true},
		TotalPurchaseDollars:  sql.NullFloat64{Float64: 60, Valid: true},
		TotalSalesQuantity:    sql.NullFloat64{Float64: 5, Valid: true},
		TotalSalesDollars:     sql.NullFloat64{Float64: 100, Valid: true},
	}})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "Vendor", r.VendorName)
	assert.Equal(t, "Desc", r.Description)
	assert.Equal(t, 750.0, r.Volume)
	assert.Equal(t, 40.0, r.GrossProfit)
	assert.Equal(t, 40.0, r.ProfitMargin)
	assert.Equal(t, 0.5, r.StockTurnover)
	assert.InDelta(t, 1.6667, r.SalesPurchaseRatio, 1e-4)
}

func TestEnrichZeroFillsNulls(t *testing.T) {
	rows, err := Enrich([]AggregateRow{{}})
	require.NoError(t, err)

	r := rows[0]
	assert.Equal(t, "0", r.VendorName, "missing text is zero-filled")
	assert.Equal(t, "0", r.Description)
	assert.Equal(t, int64(0), r.VendorNumber, "missing key is zero-filled")
	assert.Equal(t, int64(0), r.Brand)
	assert.Zero(t, r.Volume)
	assert.Zero(t, r.ProfitMargin)
	assert.Zero(t, r.StockTurnover)
	assert.Zero(t, r.SalesPurchaseRatio)
}

func TestBuildTextBrand(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	loadScenario(t, s)
	load(t, s, "purchases", purchasesHeader,
		[]string{"1", "ACME", "BR-100", "Vodka", "10.5", "5", "50.0"},
		[]string{"2", "BETA", "200", "Gin", "8.0", "2", "16.0"},
	)
	load(t, s, "purchase_prices", pricesHeader,
		[]string{"BR-100", "12.99", "750"},
		[]string{"200", "9.99", "1000"},
	)
	load(t, s, "sales", salesHeader,
		[]string{"1", "BR-100", "4", "100.0", "25.0", "1.5"},
	)

	rows, err := Build(ctx, s, s, DefaultTables(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "BR-100", rows[0].Brand)
	assert.Equal(t, 100.0, rows[0].TotalSalesDollars)
	assert.Equal(t, "200", rows[1].Brand, "keys share one type per column")
	assert.Equal(t, int64(1), rows[0].VendorNumber)

	batch := ToBatch(rows)
	assert.Equal(t, table.Text, batch.Columns[2].Type)
	assert.Equal(t, table.Integer, batch.Columns[0].Type)

	persisted, err := s.ReadTable(ctx, "vendor_sales_summary")
	require.NoError(t, err)
	assert.Equal(t, "BR-100", persisted.Rows[0][2])
	assert.Equal(t, "200", persisted.Rows[1][2])
}

func TestEnrichKeyTypes(t *testing.T) {
	rows, err := Enrich([]AggregateRow{
		{VendorNumber: int64(1), Brand: int64(100)},
		{VendorNumber: 2.5, Brand: "BR-7"},
		{VendorNumber: nil, Brand: nil},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, rows[0].VendorNumber)
	assert.Equal(t, 2.5, rows[1].VendorNumber)
	assert.Equal(t, 0.0, rows[2].VendorNumber)
	assert.Equal(t, "100", rows[0].Brand)
	assert.Equal(t, "BR-7", rows[1].Brand)
	assert.Equal(t, "0", rows[2].Brand)
}

func TestEnrichRejectsNonNumericVolume(t *testing.T) {
	_, err := Enrich([]AggregateRow{{Volume: sql.NullString{String: "Unknown", Valid: true}}})
	assert.Error(t, err)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 2.0, ratio(4, 2))
	assert.Zero(t, ratio(4, 0))
	assert.Zero(t, ratio(0, 0))
	assert.Zero(t, ratio(-4, 0))
}

func TestTablesValidate(t *testing.T) {
	assert.NoError(t, DefaultTables().Validate())
	tables := DefaultTables()
	tables.Sales = " "
	assert.Error(t, tables.Validate())
}
