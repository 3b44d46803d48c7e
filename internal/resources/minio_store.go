package resources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"inventory_reports/platform/config"
)

// DefaultPresignTTL is used when no presign TTL is configured.
const DefaultPresignTTL = 15 * time.Minute

const minioRegion = "us-east-1"

// MinIOStore keeps blobs as objects in a bucket and links handles through
// presigned GET URLs, so previews load straight from object storage.
type MinIOStore struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

// NewMinIOStore creates a store for the configured bucket.
func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
		// Pinning the region lets presigning work without a bucket location lookup.
		Region: minioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ttl := cfg.GetPresignTTL()
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}

	return &MinIOStore{
		client:     client,
		bucket:     cfg.GetMinIOBucketReports(),
		presignTTL: ttl,
	}, nil
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinIOStore) Put(ctx context.Context, id string, blob Blob) error {
	_, err := s.client.PutObject(ctx, s.bucket, id, bytes.NewReader(blob.Data), int64(len(blob.Data)), minio.PutObjectOptions{
		ContentType: blob.ContentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", id, err)
	}
	return nil
}

func (s *MinIOStore) Get(ctx context.Context, id string) (Blob, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return Blob{}, fmt.Errorf("failed to get object %s: %w", id, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return Blob{}, ErrBlobNotFound
		}
		return Blob{}, fmt.Errorf("failed to stat object %s: %w", id, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to read object %s: %w", id, err)
	}
	return Blob{ContentType: info.ContentType, Data: data}, nil
}

func (s *MinIOStore) Delete(ctx context.Context, id string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", id, err)
	}
	return nil
}

// Link presigns a GET URL that renders inline in the viewer.
func (s *MinIOStore) Link(ctx context.Context, h Handle) (string, error) {
	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", h.Filename()))
	if h.ContentType != "" {
		params.Set("response-content-type", h.ContentType)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, h.ID, s.presignTTL, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return u.String(), nil
}
