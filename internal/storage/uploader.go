package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dliveget/dlive-downloader/internal/config"
	"github.com/dliveget/dlive-downloader/internal/logger"
	"go.uber.org/zap"
)

// Package storage uploads finished download artifacts to an S3-compatible
// bucket. It is optional: the service only wires an uploader when the
// upload settings are configured.

// bucketProbeTimeout bounds the startup bucket check.
const bucketProbeTimeout = 10 * time.Second

// Uploader stores a local artifact under an object name. Implementations
// must be safe for use from the download service's worker goroutines.
type Uploader interface {
	Upload(ctx context.Context, localPath, objectName string) error
}

// MinioUploader is an Uploader backed by any S3-compatible endpoint.
type MinioUploader struct {
	client *minio.Client
	bucket string
}

// NewMinioUploader connects to the configured endpoint and ensures the
// target bucket exists.
func NewMinioUploader(settings config.UploadSettings) (*MinioUploader, error) {
	client, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure: settings.UseSSL,
		Region: settings.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), bucketProbeTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, settings.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", settings.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, settings.Bucket, minio.MakeBucketOptions{Region: settings.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", settings.Bucket, err)
		}
		logger.Info("created upload bucket", zap.String("bucket", settings.Bucket))
	}

	return &MinioUploader{client: client, bucket: settings.Bucket}, nil
}

// Upload stores the file at localPath as objectName in the bucket.
func (u *MinioUploader) Upload(ctx context.Context, localPath, objectName string) error {
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := u.client.FPutObject(ctx, u.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", objectName, err)
	}

	logger.Info("uploaded artifact",
		zap.String("bucket", u.bucket),
		zap.String("object", objectName),
		zap.Int64("bytes", info.Size))
	return nil
}
