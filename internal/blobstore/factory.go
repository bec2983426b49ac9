package blobstore

import (
	"context"
	"fmt"

	"blogback/internal/blog"
	"blogback/internal/config"
)

// NewBlobStoreFromConfig creates a BlobStore implementation based on the blobstore config type.
func NewBlobStoreFromConfig(ctx context.Context, cfg config.BlobStoreConfig, clock blog.Clock, idgen blog.IDGenerator, logger blog.Logger) (blog.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryBlobStore(clock, idgen), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem blobstore requires root to be set")
		}
		return NewFileSystemBlobStore(cfg.Root, clock, idgen)
	case "gridfs":
		if cfg.URI == "" {
			return nil, fmt.Errorf("gridfs blobstore requires uri to be set")
		}
		if cfg.Database == "" {
			return nil, fmt.Errorf("gridfs blobstore requires database to be set")
		}
		return NewGridFSBlobStore(ctx, cfg.URI, cfg.Database, cfg.Bucket, logger)
	default:
		return nil, fmt.Errorf("unknown blobstore type: %s", cfg.Type)
	}
}
