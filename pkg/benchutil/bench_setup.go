package benchutil

import (
	"os"
	"testing"
)

// SkipIfNoLongBench skips the benchmark if VENDORSUM_LONG_BENCH is not set.
// Use this to gate long-running benchmarks that shouldn't run by default.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv("VENDORSUM_LONG_BENCH") == "" {
		b.Skip("set VENDORSUM_LONG_BENCH=1 to run scaling benchmark")
	}
}

// Dataset writes a generated raw dataset of size purchase lines into a
// temporary directory and returns it.
func Dataset(tb testing.TB, size int) string {
	tb.Helper()
	dir := tb.TempDir()
	if _, err := NewGenerator(DefaultConfig(size)).WriteDataset(dir); err != nil {
		tb.Fatalf("generate dataset: %v", err)
	}
	return dir
}
