package store

import (
	"context"
	"fmt"

	"blogback/internal/blog"
	"blogback/internal/config"
)

// NewStoreFromConfig creates a Store implementation based on the store config type.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig, clock blog.Clock, idgen blog.IDGenerator, logger blog.Logger) (blog.Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(clock, idgen), nil
	case "mongo":
		if cfg.URI == "" {
			return nil, fmt.Errorf("mongo store requires uri to be set")
		}
		if cfg.Database == "" {
			return nil, fmt.Errorf("mongo store requires database to be set")
		}
		return NewMongoStore(ctx, cfg.URI, cfg.Database, clock, idgen, logger)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// NewSnapshotterFromConfig creates the Snapshotter selected by the
// store config, defaulting to the portable JSON backend.
func NewSnapshotterFromConfig(cfg config.StoreConfig, store blog.Store, logger blog.Logger) (blog.Snapshotter, error) {
	switch cfg.Snapshot {
	case "", "json":
		return blog.NewJSONSnapshotter(store, logger), nil
	case "dump":
		if cfg.Type != "mongo" {
			return nil, fmt.Errorf("dump snapshot backend requires store type mongo, got %s", cfg.Type)
		}
		return NewDumpSnapshotter(store, cfg.URI, cfg.Database, logger), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend: %s", cfg.Snapshot)
	}
}
