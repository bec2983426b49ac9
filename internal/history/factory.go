package history

import (
	"fmt"
	"os"
	"path/filepath"

	"blogback/internal/blog"
	"blogback/internal/config"
)

// NewHistoryFromConfig creates a History implementation based on the history config type.
func NewHistoryFromConfig(cfg config.HistoryConfig, clock blog.Clock) (blog.History, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite history")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating history data dir: %w", err)
		}
		return NewSQLiteHistory(filepath.Join(cfg.DataDir, "history.db"), clock)
	case "memory":
		return NewMemoryHistory(clock), nil
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}
