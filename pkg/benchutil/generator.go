// Package benchutil provides synthetic raw datasets for benchmarks and testing.
package benchutil

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

// GeneratorConfig configures synthetic data generation.
type GeneratorConfig struct {
	// PurchaseLines is the number of rows in purchases.csv.
	PurchaseLines int
	// SalesLines is the number of rows in sales.csv. Default: PurchaseLines.
	SalesLines int
	// Vendors is the number of distinct vendors.
	Vendors int
	// Brands is the number of distinct brands.
	Brands int
	// PricePoints is the number of catalog rows per brand. Values above 1
	// fan each purchase line out to several summary rows.
	PricePoints int
	// InvoicedFraction is the share of vendors with a freight invoice (0.0-1.0).
	InvoicedFraction float64
	// Seed for reproducible generation. 0 = use default seed.
	Seed int64
}

// DefaultConfig returns a reasonable default configuration.
func DefaultConfig(purchaseLines int) GeneratorConfig {
	return GeneratorConfig{
		PurchaseLines:    purchaseLines,
		SalesLines:       purchaseLines,
		Vendors:          max(1, purchaseLines/100),
		Brands:           max(1, purchaseLines/20),
		PricePoints:      1,
		InvoicedFraction: 0.8,
		Seed:             BenchmarkSeed,
	}
}

// Generator generates the four raw input files of the vendor summary.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a new data generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = BenchmarkSeed
	}
	if cfg.Vendors <= 0 {
		cfg.Vendors = 1
	}
	if cfg.Brands <= 0 {
		cfg.Brands = 1
	}
	if cfg.PricePoints <= 0 {
		cfg.PricePoints = 1
	}
	if cfg.SalesLines <= 0 {
		cfg.SalesLines = cfg.PurchaseLines
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Files are the names WriteDataset produces.
var Files = []string{"purchase_prices.csv", "purchases.csv", "sales.csv", "vendor_invoice.csv"}

// WriteDataset writes purchases.csv, purchase_prices.csv, sales.csv and
// vendor_invoice.csv into dir and returns the total number of data rows.
func (g *Generator) WriteDataset(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create dataset dir: %w", err)
	}

	writers := []struct {
		name string
		fn   func(w *csv.Writer) (int, error)
	}{
		{"purchase_prices.csv", g.writePrices},
		{"purchases.csv", g.writePurchases},
		{"sales.csv", g.writeSales},
		{"vendor_invoice.csv", g.writeInvoices},
	}

	total := 0
	for _, w := range writers {
		n, err := writeCSV(filepath.Join(dir, w.name), w.fn)
		if err != nil {
			return total, fmt.Errorf("write %s: %w", w.name, err)
		}
		total += n
	}
	return total, nil
}

func writeCSV(path string, fn func(w *csv.Writer) (int, error)) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	n, err := fn(w)
	if err != nil {
		return n, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return n, err
	}
	return n, f.Close()
}

func (g *Generator) writePrices(w *csv.Writer) (int, error) {
	if err := w.Write([]string{"Brand", "Description", "Price", "Volume"}); err != nil {
		return 0, err
	}
	n := 0
	for brand := 1; brand <= g.cfg.Brands; brand++ {
		for p := 0; p < g.cfg.PricePoints; p++ {
			if err := w.Write([]string{
				strconv.Itoa(brand),
				g.description(brand),
				money(5 + g.rng.Float64()*60),
				g.volume(),
			}); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (g *Generator) writePurchases(w *csv.Writer) (int, error) {
	if err := w.Write([]string{"VendorNumber", "VendorName", "Brand", "Description", "PurchasePrice", "Quantity", "Dollars"}); err != nil {
		return 0, err
	}
	for i := 0; i < g.cfg.PurchaseLines; i++ {
		vendor := 1 + g.rng.Intn(g.cfg.Vendors)
		brand := g.brandFor(vendor)
		price := 2 + g.rng.Float64()*40
		qty := 1 + g.rng.Intn(48)
		// Roughly one line in fifty carries a non-positive cost.
		if g.rng.Intn(50) == 0 {
			price = 0
		}
		if err := w.Write([]string{
			strconv.Itoa(vendor),
			vendorName(vendor),
			strconv.Itoa(brand),
			g.description(brand),
			money(price),
			strconv.Itoa(qty),
			money(price * float64(qty)),
		}); err != nil {
			return i, err
		}
	}
	return g.cfg.PurchaseLines, nil
}

func (g *Generator) writeSales(w *csv.Writer) (int, error) {
	if err := w.Write([]string{"VendorNo", "Brand", "SalesQuantity", "SalesDollars", "SalesPrice", "ExciseTax"}); err != nil {
		return 0, err
	}
	for i := 0; i < g.cfg.SalesLines; i++ {
		vendor := 1 + g.rng.Intn(g.cfg.Vendors)
		brand := g.brandFor(vendor)
		price := 5 + g.rng.Float64()*60
		qty := 1 + g.rng.Intn(12)
		if err := w.Write([]string{
			strconv.Itoa(vendor),
			strconv.Itoa(brand),
			strconv.Itoa(qty),
			money(price * float64(qty)),
			money(price),
			money(float64(qty) * 0.79),
		}); err != nil {
			return i, err
		}
	}
	return g.cfg.SalesLines, nil
}

func (g *Generator) writeInvoices(w *csv.Writer) (int, error) {
	if err := w.Write([]string{"VendorNumber", "VendorName", "Quantity", "Dollars", "Freight"}); err != nil {
		return 0, err
	}
	n := 0
	for vendor := 1; vendor <= g.cfg.Vendors; vendor++ {
		if g.rng.Float64() >= g.cfg.InvoicedFraction {
			continue
		}
		// Several invoices per vendor exercise the freight sum.
		invoices := 1 + g.rng.Intn(3)
		for inv := 0; inv < invoices; inv++ {
			qty := 10 + g.rng.Intn(500)
			if err := w.Write([]string{
				strconv.Itoa(vendor),
				vendorName(vendor),
				strconv.Itoa(qty),
				money(float64(qty) * 11.5),
				money(g.rng.Float64() * 250),
			}); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// brandFor keeps each vendor on a small, stable set of brands so purchases
// and sales overlap.
func (g *Generator) brandFor(vendor int) int {
	return 1 + (vendor*7+g.rng.Intn(5))%g.cfg.Brands
}

func (g *Generator) description(brand int) string {
	return fmt.Sprintf("Brand %d %s", brand, []string{"Vodka", "Gin", "Rum", "Merlot", "Bourbon"}[brand%5])
}

func (g *Generator) volume() string {
	volumes := []string{"50", "375", "750", "1000", "1750"}
	return volumes[g.rng.Intn(len(volumes))]
}

func vendorName(vendor int) string {
	// Trailing spaces mirror the raw vendor names the summary trims.
	return fmt.Sprintf("VENDOR %04d  ", vendor)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
