// Package app is the application layer between the CLI and the backup
// service. It constructs all dependencies from config and manages
// their lifecycle on Close.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"blogback/internal/archive"
	"blogback/internal/blobstore"
	"blogback/internal/blog"
	"blogback/internal/config"
	"blogback/internal/encryption"
	"blogback/internal/history"
	"blogback/internal/model"
	"blogback/internal/store"
)

// App wires the configured backends into a blog.Service and
// blog.Scheduler and exposes the operations the CLI needs.
type App struct {
	cfg       *config.Config
	store     blog.Store
	tracked   *blog.TrackedStore
	blobs     blog.BlobStore
	history   blog.History
	encryptor blog.Encryptor
	service   *blog.Service
	scheduler *blog.Scheduler
	logFile   *os.File
	logger    blog.Logger
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	clock := blog.RealClock{}
	idgen := blog.UUIDGenerator{}

	a := &App{cfg: cfg, logFile: logFile, logger: log}

	st, err := store.NewStoreFromConfig(ctx, cfg.Store, clock, idgen, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}
	a.store = st

	// Mutations flow through the tracked store so the scheduler's
	// change latch sees them. The app forwards because the scheduler
	// does not exist yet at this point.
	tracked := blog.NewTrackedStore(st, a)
	a.tracked = tracked

	blobs, err := blobstore.NewBlobStoreFromConfig(ctx, cfg.BlobStore, clock, idgen, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating blobstore: %w", err)
	}
	a.blobs = blobs

	hist, err := history.NewHistoryFromConfig(cfg.History, clock)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating history: %w", err)
	}
	a.history = hist

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc

	snapshotter, err := store.NewSnapshotterFromConfig(cfg.Store, tracked, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating snapshotter: %w", err)
	}

	busyPolicy, err := parseBusyPolicy(cfg.Backup.OnBusy)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = blog.NewService(tracked, blobs, snapshotter, archive.NewTarGz(), hist, enc, log, clock, blog.ServiceOptions{
		BackupDir:   cfg.Backup.Dir,
		Database:    cfg.Store.Database,
		KeepStaging: cfg.Backup.KeepStaging,
		BusyPolicy:  busyPolicy,
	})

	a.scheduler = blog.NewScheduler(a.service, clock, log)
	a.scheduler.SetPrefix(cfg.Scheduler.Prefix)

	return a, nil
}

// RecordChange forwards store mutations to the scheduler's change
// latch. Mutations made before the scheduler exists are ignored.
func (a *App) RecordChange() {
	if a.scheduler != nil {
		a.scheduler.RecordChange()
	}
}

// Service returns the underlying backup service.
func (a *App) Service() *blog.Service { return a.service }

// Scheduler returns the change-driven backup scheduler.
func (a *App) Scheduler() *blog.Scheduler { return a.scheduler }

// Store returns the document store. Mutations through it mark the
// scheduler dirty.
func (a *App) Store() blog.Store { return a.tracked }

// Blobs returns the blob store.
func (a *App) Blobs() blog.BlobStore { return a.blobs }

// ResolveArchive turns a backup name or path into an archive path.
// A path that exists on disk wins; otherwise the name is looked up in
// the backup directory.
func (a *App) ResolveArchive(nameOrPath string) string {
	if _, err := os.Stat(nameOrPath); err == nil {
		return nameOrPath
	}
	return filepath.Join(a.cfg.Backup.Dir, nameOrPath)
}

// CreateBackup runs a manual backup. An empty name gets a timestamped
// default.
func (a *App) CreateBackup(ctx context.Context, name string) (*blog.BackupResult, error) {
	return a.service.CreateBackup(ctx, name)
}

// ListBackups returns the archives in the backup directory, newest
// first.
func (a *App) ListBackups() ([]*blog.BackupEntry, error) {
	return a.service.ListBackups()
}

// DeleteBackup removes one archive by name.
func (a *App) DeleteBackup(name string) error {
	return a.service.DeleteBackup(name)
}

// InspectArchive validates an archive and returns its manifest without
// restoring anything.
func (a *App) InspectArchive(archivePath, passphrase string) (*model.Manifest, error) {
	staged, err := a.openArchive(archivePath, passphrase)
	if err != nil {
		return nil, err
	}
	defer staged.Close()
	return staged.Manifest, nil
}

// Restore applies an archive to the live store.
func (a *App) Restore(ctx context.Context, archivePath, passphrase string, opts blog.RestoreOptions) (*blog.RestoreResult, error) {
	staged, err := a.openArchive(archivePath, passphrase)
	if err != nil {
		return nil, err
	}
	defer staged.Close()
	return a.service.Restore(ctx, staged, opts)
}

// History returns the most recent recorded operations, newest first.
func (a *App) History(limit int) ([]*model.Operation, error) {
	return a.history.List(limit)
}

// Watch runs the scheduler loop until ctx is cancelled.
func (a *App) Watch(ctx context.Context) {
	a.scheduler.Run(ctx, a.cfg.SchedulerInterval())
}

// NeedsPassphrase reports whether restoring the given archive will
// require unlocking the private key.
func (a *App) NeedsPassphrase(archivePath string) bool {
	return strings.HasSuffix(archivePath, ".age")
}

// SetupEncryption generates an age key pair protected by the
// passphrase. Only valid when encryption type is "age".
func (a *App) SetupEncryption(passphrase string) error {
	age, ok := a.encryptor.(*encryption.AgeEncryptor)
	if !ok {
		return fmt.Errorf("encryption is not enabled in the config (type %q)", a.cfg.Encryption.Type)
	}
	return age.Setup(passphrase)
}

// openArchive stages an archive for inspection or restore, unlocking
// the private key first when the archive is encrypted.
func (a *App) openArchive(archivePath, passphrase string) (*blog.StagedImport, error) {
	var dec blog.DecryptionContext
	if a.NeedsPassphrase(archivePath) {
		if a.encryptor == nil {
			return nil, fmt.Errorf("archive is encrypted but encryption is not configured")
		}
		var err error
		dec, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return a.service.OpenArchive(archivePath, dec)
}

// Close releases every backend connection and the log file.
func (a *App) Close() error {
	var firstErr error

	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing store: %w", err)
		}
	}
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing blobstore: %w", err)
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing history: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// parseBusyPolicy maps the on_busy config value to a BusyPolicy.
func parseBusyPolicy(value string) (blog.BusyPolicy, error) {
	switch value {
	case "", "reject":
		return blog.BusyReject, nil
	case "wait":
		return blog.BusyWait, nil
	default:
		return blog.BusyReject, fmt.Errorf("unknown on_busy policy: %q", value)
	}
}
