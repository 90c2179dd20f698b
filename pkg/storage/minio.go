package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinioConfig locates the bucket artifacts are copied into.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

// MinioUploader stores artifacts in an S3 compatible bucket.
type MinioUploader struct {
	client *minio.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewMinio connects to the endpoint and creates the bucket when missing.
func NewMinio(ctx context.Context, cfg MinioConfig, logger zerolog.Logger) (*MinioUploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket must be provided")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinioUploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.With().Str("component", "minio_uploader").Logger(),
	}, nil
}

// Upload stores the artifact and returns its object URL. Private buckets need a
// presigned URL to download it.
func (u *MinioUploader) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}

	key := name
	if u.prefix != "" {
		key = u.prefix + "/" + name
	}

	_, err = u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: detectContentType(name, data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}

	u.logger.Info().Str("bucket", u.bucket).Str("key", key).Msg("artifact uploaded to minio")

	endpoint := u.client.EndpointURL()
	objectURL := url.URL{Scheme: endpoint.Scheme, Host: endpoint.Host, Path: "/" + u.bucket + "/" + key}
	return objectURL.String(), nil
}
