package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eunmann/vendorsum/internal/logctx"
	"github.com/eunmann/vendorsum/pkg/export"
	"github.com/eunmann/vendorsum/pkg/humanfmt"
	"github.com/eunmann/vendorsum/pkg/s3fetch"
)

type exportOptions struct {
	table  string
	out    string
	format export.Format
	upload string
}

func newExportCmd(a *app) *cobra.Command {
	var (
		tableName string
		out       string
		format    string
		upload    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a table to a flat file",
		Long: "Writes every row of a table to a CSV or Parquet file. The default table is the vendor sales " +
			"summary and the default path is <output_dir>/<table>.<format>. Parquet leaves are typed from the values " +
			"each column holds and the column order is kept in the file metadata.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if upload != "" {
				if _, _, err := s3fetch.ParseS3URI(upload); err != nil {
					return err
				}
			}
			if tableName == "" {
				tableName = a.cfg.Tables.Summary
			}
			if out == "" {
				out = export.DefaultPath(a.cfg.OutputDir, tableName, f)
			}
			opts := exportOptions{table: tableName, out: out, format: f, upload: upload}
			return a.run(cmd, func(ctx context.Context) error { return a.export(ctx, opts) })
		},
	}

	cmd.Flags().StringVar(&tableName, "table", "", "table to export (default: the summary table)")
	cmd.Flags().StringVar(&out, "out", "", "output file path")
	cmd.Flags().StringVar(&format, "format", string(export.CSV), "output format: csv or parquet")
	cmd.Flags().StringVar(&upload, "upload", "", "s3://bucket/key to upload the exported file to; a key ending in / keeps the file name")

	return cmd
}

func (a *app) export(ctx context.Context, opts exportOptions) error {
	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := export.Table(ctx, s, opts.table, opts.out, opts.format, a.reg); err != nil {
		return err
	}
	if opts.upload == "" {
		return nil
	}

	bucket, key, err := s3fetch.ParseS3URI(opts.upload)
	if err != nil {
		return err
	}
	key = uploadKey(key, opts.out)

	client, err := s3fetch.NewClient(ctx, a.cfg.S3)
	if err != nil {
		return err
	}
	res, err := client.NewUploader(s3fetch.DefaultTransferConfig()).UploadFile(ctx, opts.out, bucket, key)
	if err != nil {
		return err
	}
	log := logctx.FromContext(ctx)
	log.Info().
		Str("path", opts.out).
		Str("bucket", bucket).
		Str("key", key).
		Str("size", humanfmt.Bytes(res.Bytes)).
		Str("elapsed", humanfmt.Duration(res.Duration)).
		Msg("uploaded export")
	return nil
}

// uploadKey appends the local file name when key is empty or a prefix.
func uploadKey(key, localPath string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key + filepath.Base(localPath)
	}
	return key
}
