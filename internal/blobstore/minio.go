package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dcervantes/foliovault/internal/config"
)

// MinioStore implements Store on top of a MinIO/S3 bucket. Payloads are
// uploaded with streaming multipart PUTs, so large PDFs never need a single
// contiguous buffer and nothing is visible until the final part commits.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinio creates a MinIO-backed store from the Config.
func NewMinio(cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.S3Region,
	}, nil
}

// EnsureBucket makes sure the bucket exists before first use.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Put uploads the payload under a fresh uuid-prefixed object key and returns
// that key as the blob reference. Size -1 makes minio-go stream the body in
// parts instead of buffering it whole.
func (s *MinioStore) Put(ctx context.Context, r io.Reader, filename, contentType string) (string, error) {
	ref := fmt.Sprintf("uploads/%s/%s", uuid.NewString(), sanitizeFilename(filename))
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, ref, r, -1, opts); err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrWriteFailed, ref, err)
	}
	return ref, nil
}

// Open returns a stream over the stored object. GetObject is lazy, so a Stat
// round-trip surfaces missing objects up front instead of on first Read.
func (s *MinioStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrReadFailed, ref, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrReadFailed, ref, err)
	}
	return obj, nil
}

// Delete removes the object. S3 treats removal of a missing key as success,
// so a Stat first keeps the second-delete-fails contract.
func (s *MinioStore) Delete(ctx context.Context, ref string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stat %s: %w", ref, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", ref, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		return "upload.pdf"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
