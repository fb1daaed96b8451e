package s3fetch

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/vendorsum/internal/logctx"
	"github.com/eunmann/vendorsum/pkg/humanfmt"
	"github.com/eunmann/vendorsum/pkg/source"
)

// FetchConfig configures staging of raw input files.
type FetchConfig struct {
	// SourceURI is s3://bucket/prefix holding the raw files.
	SourceURI string
	// StagingDir is the local directory the files are downloaded to.
	StagingDir string
	// Concurrency is the number of parallel downloads (default: 4).
	Concurrency int
}

// FetchResult lists the staged files.
type FetchResult struct {
	Dir   string
	Files []string
	Bytes int64
}

type keyLister interface {
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
}

type fileDownloader interface {
	DownloadToFile(ctx context.Context, bucket, key, destPath string) (*TransferResult, error)
}

// Fetcher stages eligible raw files from S3.
type Fetcher struct {
	lister     keyLister
	downloader fileDownloader
	cfg        FetchConfig
}

// NewFetcher creates a new fetcher backed by client.
func NewFetcher(client *Client, cfg FetchConfig) *Fetcher {
	return newFetcher(client, client.NewDownloader(DefaultTransferConfig()), cfg)
}

func newFetcher(l keyLister, d fileDownloader, cfg FetchConfig) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Fetcher{lister: l, downloader: d, cfg: cfg}
}

// Fetch downloads every object under the source prefix whose name has an
// ingestible extension into the staging directory. Objects in nested
// prefixes are flattened to their base name; two objects with the same
// base name are an error.
func (f *Fetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	bucket, prefix, err := ParseS3URI(f.cfg.SourceURI)
	if err != nil {
		return nil, fmt.Errorf("parse source URI: %w", err)
	}

	keys, err := f.lister.ListKeys(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	keys, err = eligibleKeys(keys)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(f.cfg.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	log := logctx.FromContext(ctx)
	localFiles := make([]string, len(keys))
	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, key := range keys {
		g.Go(func() error {
			localPath := filepath.Join(f.cfg.StagingDir, sanitizeFilename(key))
			res, err := f.downloader.DownloadToFile(gctx, bucket, key, localPath)
			if err != nil {
				return err
			}
			total.Add(res.Bytes)
			localFiles[i] = localPath
			log.Debug().
				Str("key", key).
				Str("size", humanfmt.Bytes(res.Bytes)).
				Str("elapsed", humanfmt.Duration(res.Duration)).
				Str("throughput", humanfmt.Throughput(res.Bytes, res.Duration)).
				Msg("staged file")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stage files: %w", err)
	}

	log.Info().
		Str("source_uri", f.cfg.SourceURI).
		Int("files", len(localFiles)).
		Str("size", humanfmt.Bytes(total.Load())).
		Msg("staged raw files")
	return &FetchResult{Dir: f.cfg.StagingDir, Files: localFiles, Bytes: total.Load()}, nil
}

// eligibleKeys keeps the keys whose base name is ingestible, sorted by that
// name.
func eligibleKeys(keys []string) ([]string, error) {
	seen := make(map[string]string)
	var out []string
	for _, key := range keys {
		if key == "" || strings.HasSuffix(key, "/") {
			continue
		}
		name := sanitizeFilename(key)
		if _, ok := source.Classify("", name); !ok {
			continue
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("objects %q and %q stage to the same file %q", prev, key, name)
		}
		seen[name] = key
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return sanitizeFilename(out[i]) < sanitizeFilename(out[j]) })
	return out, nil
}

// sanitizeFilename converts an S3 key to a safe local filename.
func sanitizeFilename(key string) string {
	return path.Base(key)
}
