package storage

import (
	"context"
	"fmt"

	"github.com/chartvault/chartvault/internal/config"
)

// New builds the BlobStore selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.StorageBackend {
	case "", "fs", "filesystem":
		return NewFilesystemStore(cfg.StoragePath)
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("storage: S3_BUCKET is required for the s3 backend")
		}
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
	case "azure":
		if cfg.AzureAccount == "" || cfg.AzureContainer == "" {
			return nil, fmt.Errorf("storage: AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_CONTAINER are required for the azure backend")
		}
		return NewAzureBlobStore(cfg.AzureAccount, cfg.AzureContainer)
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("storage: GCS_BUCKET is required for the gcs backend")
		}
		return NewGCSStore(ctx, cfg.GCSBucket)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
}
