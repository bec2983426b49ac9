package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for blogback.
type Config struct {
	BaseDir string `toml:"base_dir"`
	LogDir  string `toml:"log_dir"`

	Store      StoreConfig      `toml:"store"`
	BlobStore  BlobStoreConfig  `toml:"blobstore"`
	Backup     BackupConfig     `toml:"backup"`
	History    HistoryConfig    `toml:"history"`
	Encryption EncryptionConfig `toml:"encryption"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
}

// StoreConfig represents configuration for the document store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "memory" or "mongo"

	// Mongo-specific fields (only used when Type == "mongo")
	URI      string `toml:"uri,omitempty"`
	Database string `toml:"database,omitempty"`

	// Snapshot selects how collections are serialized into archives:
	// "json" (default, portable) or "dump" (mongodump, mongo only).
	Snapshot string `toml:"snapshot,omitempty"`
}

// BlobStoreConfig represents configuration for the uploaded-file store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobStoreConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", or "gridfs"

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// GridFS-specific fields (only used when Type == "gridfs")
	URI      string `toml:"uri,omitempty"`
	Database string `toml:"database,omitempty"`
	Bucket   string `toml:"bucket,omitempty"`
}

// BackupConfig holds settings for archive creation and restore.
type BackupConfig struct {
	Dir         string `toml:"dir"`                    // where finished archives land
	KeepStaging bool   `toml:"keep_staging,omitempty"` // keep the staging tree after packing
	OnBusy      string `toml:"on_busy,omitempty"`      // "reject" (default) or "wait"
}

// HistoryConfig represents configuration for the operation history log.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig holds paths to the age key pair used for optional
// archive encryption. Type "none" disables encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" or "none" (default)
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// SchedulerConfig holds settings for automatic change-driven backups.
type SchedulerConfig struct {
	Interval duration `toml:"interval"` // how often the dirty gate is checked
	Prefix   string   `toml:"prefix,omitempty"`
}

// duration wraps time.Duration so it round-trips through TOML as a
// string like "1h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NewConfig creates a new Config with sensible defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type:     "mongo",
			URI:      "mongodb://localhost:27017",
			Database: "blogDB",
			Snapshot: "json",
		},
		BlobStore: BlobStoreConfig{
			Type:     "gridfs",
			URI:      "mongodb://localhost:27017",
			Database: "blogDB",
		},
		Backup: BackupConfig{
			Dir:    filepath.Join(baseDir, "backups"),
			OnBusy: "reject",
		},
		History: HistoryConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "blogback.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "blogback.key"),
		},
		Scheduler: SchedulerConfig{
			Interval: duration{time.Hour},
			Prefix:   "scheduled-backup",
		},
	}
}

// SchedulerInterval returns the configured scheduler tick interval,
// falling back to one hour when unset.
func (c *Config) SchedulerInterval() time.Duration {
	if c.Scheduler.Interval.Duration <= 0 {
		return time.Hour
	}
	return c.Scheduler.Interval.Duration
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
