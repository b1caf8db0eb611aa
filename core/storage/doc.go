// Package storage wraps the MinIO client used by the object-store backing of
// the entitlement store. It works against AWS S3 and self-hosted MinIO alike.
//
// Client narrows the minio API to the calls this service makes, so tests can
// substitute core/storage/mocks. NewClient applies strict transport timeouts
// because minio connects lazily; EnsureBucket creates the bucket on first use.
//
//	client, err := storage.NewClient(cfg.Storage)
//	created, err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
