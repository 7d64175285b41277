package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"media-variants/internal/logging"
)

// S3Config holds connection settings for an S3-compatible backend.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLPrefix string
}

// S3 stores files in an S3-compatible object store (MinIO, S3).
// AbsolutePath is not supported; callers that need a local file must go
// through Read and a temporary file.
type S3 struct {
	client    *minio.Client
	bucket    string
	urlPrefix string
}

// NewS3 creates an S3 backend and ensures the bucket exists.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logging.Info("Created storage bucket %s", cfg.Bucket)
	}

	return &S3{
		client:    client,
		bucket:    cfg.Bucket,
		urlPrefix: strings.TrimRight(cfg.URLPrefix, "/"),
	}, nil
}

func (s *S3) Write(ctx context.Context, path string, contents []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName(path),
		bytes.NewReader(contents), int64(len(contents)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *S3) Read(ctx context.Context, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (s *S3) Delete(ctx context.Context, path string) error {
	// RemoveObject on a missing key succeeds, matching the contract.
	if err := s.client.RemoveObject(ctx, s.bucket, objectName(path), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, objectName(path), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

func (s *S3) URL(path string) string {
	return s.urlPrefix + "/" + strings.TrimLeft(path, "/")
}

func (s *S3) AbsolutePath(string) (string, error) {
	return "", ErrNotSupported
}

func (s *S3) Walk(ctx context.Context, prefix string, fn func(path string, size int64) error) error {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    objectName(prefix),
		Recursive: true,
	})

	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if err := fn(obj.Key, obj.Size); err != nil {
			return err
		}
	}
	return nil
}

func objectName(path string) string {
	return strings.TrimLeft(path, "/")
}

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}
