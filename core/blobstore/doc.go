// Package blobstore provides the opaque keyed blob stores that back entitlement records.
//
// The entitlement engine owns record serialization and only ever needs two operations
// from its backing: read the bytes stored under a key and overwrite them. Every backend
// in this package implements the Backing interface:
//
//   - Memory: process-local map, used by tests and the CLI demo.
//   - Minio: one object per key in an S3/MinIO bucket (through core/storage).
//   - SQL: one row per key in the entitlement_blobs table (through GORM).
//   - Redis: one string value per key, optionally namespaced.
//
// A missing key is reported as ErrNotFound by every backend.
//
// # Usage
//
//	backing := blobstore.NewMinio(client, cfg.Storage.Bucket)
//	if err := backing.Put(ctx, "entitlements/u1/remove_ads", data); err != nil {
//	    return err
//	}
package blobstore
