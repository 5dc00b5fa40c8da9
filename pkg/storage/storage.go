package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/campus-rewards-api/pkg/config"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Storage keeps opaque blobs under slash separated keys.
type Storage interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New selects the backend named by cfg.Driver.
func New(ctx context.Context, cfg config.ProofStorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", config.StorageDriverLocal:
		return NewLocalStorage(cfg.Dir)
	case config.StorageDriverS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("s3 storage requires a bucket")
		}
		return NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
