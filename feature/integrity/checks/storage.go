package checks

import (
	"context"
	"fmt"

	"entitlement-manager/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// BucketReport describes the object store bucket holding entitlement records.
type BucketReport struct {
	Bucket  string `json:"bucket"`
	Exists  bool   `json:"exists"`
	Created bool   `json:"created,omitempty"`
}

// CheckBucket reports whether the bucket exists.
func CheckBucket(ctx context.Context, client storage.Client, bucket string) (*BucketReport, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	return &BucketReport{Bucket: bucket, Exists: exists}, nil
}

// FixBucket creates the bucket.
func FixBucket(ctx context.Context, client storage.Client, bucket, region string, logger *zap.Logger) (*BucketReport, error) {
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		logger.Error("Failed to create bucket", zap.String("bucket", bucket), zap.Error(err))
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	logger.Info("Created missing bucket", zap.String("bucket", bucket))
	return &BucketReport{Bucket: bucket, Exists: true, Created: true}, nil
}
