package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eunmann/vendorsum/internal/logctx"
	"github.com/eunmann/vendorsum/pkg/ingest"
	"github.com/eunmann/vendorsum/pkg/s3fetch"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		dir       string
		sourceURI string
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load every raw file into its own table",
		Long: "Loads each .csv, .csv.gz and .parquet file of the raw directory into a table named after the file, " +
			"replacing the table on the first chunk and appending the rest. With a source URI the files are " +
			"first staged from S3 into the raw directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("dir") {
				a.cfg.RawDir = dir
			}
			if cmd.Flags().Changed("source") {
				a.cfg.SourceURI = sourceURI
			}
			if cmd.Flags().Changed("chunk-size") {
				a.cfg.ChunkSize = chunkSize
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.run(cmd, a.ingest)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory holding the raw files (default data/raw)")
	cmd.Flags().StringVar(&sourceURI, "source", "", "s3://bucket/prefix to stage into the raw directory before ingesting")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "max rows per write (default 20000)")

	return cmd
}

func (a *app) ingest(ctx context.Context) error {
	if a.cfg.SourceURI != "" {
		client, err := s3fetch.NewClient(ctx, a.cfg.S3)
		if err != nil {
			return err
		}
		fetcher := s3fetch.NewFetcher(client, s3fetch.FetchConfig{
			SourceURI:  a.cfg.SourceURI,
			StagingDir: a.cfg.RawDir,
		})
		if _, err := fetcher.Fetch(ctx); err != nil {
			return err
		}
	}

	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := ingest.Config{Dir: a.cfg.RawDir, ChunkSize: a.cfg.ChunkSize}
	if err := cfg.Validate(); err != nil {
		return err
	}
	trace, err := ingest.New(s, cfg, a.reg).Run(ctx)
	if err != nil {
		return err
	}

	failed := trace.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, len(failed))
	for i, f := range failed {
		errs[i] = f.Err
	}
	log := logctx.FromContext(ctx)
	log.Warn().
		Int("files_failed", len(failed)).
		Int("files", len(trace.Files)).
		Msg("some files were not fully ingested")
	return fmt.Errorf("%d of %d files failed: %w", len(failed), len(trace.Files), errors.Join(errs...))
}
