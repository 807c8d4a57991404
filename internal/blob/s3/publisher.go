// Package s3blob uploads run artifacts to S3 or an S3-compatible object
// store (MinIO, R2, iDrive e2) with the AWS SDK v2 multipart uploader.
package s3blob

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/config"
)

// PartSize is the multipart part size (the S3 minimum).
const PartSize int64 = 5 * 1024 * 1024

// uploader is the subset of manager.Uploader used here.
type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Publisher uploads local files under a key prefix of one bucket.
type Publisher struct {
	up     uploader
	bucket string
	prefix string
	log    *slog.Logger
}

// New builds a Publisher from cfg. Static credentials are used when an
// access key is set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg config.S3, log *slog.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = PartSize
	})
	return newPublisher(up, cfg, log), nil
}

func newPublisher(up uploader, cfg config.S3, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		up:     up,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    log,
	}
}

// Key returns the object key for a local file.
func (p *Publisher) Key(local string) string {
	return path.Join(p.prefix, filepath.Base(local))
}

// Publish uploads every file in paths and returns their s3:// URIs. It stops
// at the first failure.
func (p *Publisher) Publish(ctx context.Context, paths []string) ([]string, error) {
	uris := make([]string, 0, len(paths))
	for _, local := range paths {
		key := p.Key(local)
		if err := p.upload(ctx, local, key); err != nil {
			return uris, err
		}
		uri := "s3://" + p.bucket + "/" + key
		p.log.Info("publish: uploaded", slog.String("file", local), slog.String("uri", uri))
		uris = append(uris, uri)
	}
	return uris, nil
}

func (p *Publisher) upload(ctx context.Context, local, key string) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("s3blob: open %s: %w", local, err)
	}
	defer f.Close()

	_, err = p.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(local)),
	})
	if err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", key, err)
	}
	return nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".feather":
		return "application/vnd.apache.arrow.file"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}

// normaliseEndpoint prepends a scheme to endpoint when it has none. A bare
// "host:port" parses as scheme "host", so look for the separator instead.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
