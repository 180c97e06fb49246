package upload

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// ObjectClient is the subset of *minio.Client the store uses.
type ObjectClient interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// MinIOStore writes uploads as objects of a single bucket.
type MinIOStore struct {
	client ObjectClient
	bucket string
}

// NewMinIOStore constructs an adapter over a minio client.
func NewMinIOStore(client ObjectClient, bucket string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket}
}

// Create uploads r as object name, returning ErrNameTaken when the object already exists.
func (s *MinIOStore) Create(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return "", ErrNameTaken
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return "", fmt.Errorf("stat object: %w", err)
	}

	info, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("store object: %w", err)
	}
	return info.Bucket + "/" + info.Key, nil
}

// Check reports whether the upload bucket is reachable.
func (s *MinIOStore) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}
