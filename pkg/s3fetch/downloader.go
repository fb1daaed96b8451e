package s3fetch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eunmann/vendorsum/pkg/fileutil"
)

// TransferConfig configures the S3 transfer managers.
type TransferConfig struct {
	// Concurrency is the number of concurrent parts per object. Default: 4.
	Concurrency int

	// PartSize is the size of each part in bytes. Default: 16MB.
	PartSize int64
}

// DefaultTransferConfig returns the default part concurrency and size.
func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		Concurrency: 4,
		PartSize:    16 * 1024 * 1024, // 16MB
	}
}

func (c TransferConfig) withDefaults() TransferConfig {
	def := DefaultTransferConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.PartSize <= 0 {
		c.PartSize = def.PartSize
	}
	return c
}

// TransferResult describes a completed download or upload.
type TransferResult struct {
	Bytes    int64
	Duration time.Duration
}

// Downloader wraps the AWS S3 Download Manager.
type Downloader struct {
	manager *manager.Downloader
}

// NewDownloader creates a Downloader from the client's S3 connection.
func (c *Client) NewDownloader(cfg TransferConfig) *Downloader {
	cfg = cfg.withDefaults()
	return &Downloader{
		manager: manager.NewDownloader(c.s3Client, func(d *manager.Downloader) {
			d.Concurrency = cfg.Concurrency
			d.PartSize = cfg.PartSize
		}),
	}
}

// DownloadToFile downloads an S3 object to destPath. The file appears only
// once the download completes.
func (d *Downloader) DownloadToFile(ctx context.Context, bucket, key, destPath string) (*TransferResult, error) {
	start := time.Now()
	var n int64
	err := fileutil.WriteTmpThenMove(destPath, func(f *os.File) error {
		var err error
		n, err = d.manager.Download(ctx, f, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{Bytes: n, Duration: time.Since(start)}, nil
}

// Uploader wraps the AWS S3 Upload Manager.
type Uploader struct {
	manager *manager.Uploader
}

// NewUploader creates an Uploader from the client's S3 connection.
func (c *Client) NewUploader(cfg TransferConfig) *Uploader {
	cfg = cfg.withDefaults()
	return &Uploader{
		manager: manager.NewUploader(c.s3Client, func(u *manager.Uploader) {
			u.Concurrency = cfg.Concurrency
			u.PartSize = cfg.PartSize
		}),
	}
}

// UploadFile uploads the local file at path to bucket/key.
func (u *Uploader) UploadFile(ctx context.Context, path, bucket, key string) (*TransferResult, error) {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if _, err := u.manager.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return nil, fmt.Errorf("upload %s to s3://%s/%s: %w", path, bucket, key, err)
	}
	return &TransferResult{Bytes: info.Size(), Duration: time.Since(start)}, nil
}
