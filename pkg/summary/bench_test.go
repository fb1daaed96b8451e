package summary

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eunmann/vendorsum/internal/logctx"
	"github.com/eunmann/vendorsum/pkg/benchutil"
	"github.com/eunmann/vendorsum/pkg/ingest"
	"github.com/eunmann/vendorsum/pkg/store"
)

func BenchmarkBuild(b *testing.B) {
	ctx := logctx.WithLogger(context.Background(), zerolog.Nop())
	for _, size := range benchutil.BenchmarkSizes {
		b.Run(fmt.Sprintf("lines=%d", size), func(b *testing.B) {
			s, err := store.Open(ctx, store.DefaultConfig(filepath.Join(b.TempDir(), "bench.db")))
			if err != nil {
				b.Fatal(err)
			}
			defer s.Close()

			dir := benchutil.Dataset(b, size)
			if _, err := ingest.New(s, ingest.Config{Dir: dir}, nil).Run(ctx); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for range b.N {
				if _, err := Build(ctx, s, s, DefaultTables(), nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
