package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"entitlement-manager/core/storage"

	"github.com/minio/minio-go/v7"
)

// Minio stores each blob as an object in a bucket.
type Minio struct {
	client storage.Client
	bucket string
}

// NewMinio creates a bucket-backed store.
func NewMinio(client storage.Client, bucket string) *Minio {
	return &Minio{client: client, bucket: bucket}
}

// Get downloads the object stored under key.
func (m *Minio) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioError(key, err)
	}
	defer reader.Close()

	// minio-go defers the request until the first read, so a missing key surfaces here.
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, translateMinioError(key, err)
	}
	return data, nil
}

// Put uploads value under key, replacing any previous object.
func (m *Minio) Put(ctx context.Context, key string, value []byte) error {
	_, err := m.client.PutObject(
		ctx,
		m.bucket,
		key,
		bytes.NewReader(value),
		int64(len(value)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func translateMinioError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return fmt.Errorf("failed to get object %s: %w", key, err)
}
