package blog

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// BusyPolicy decides what happens when an operation starts while
// another backup or restore is in flight.
type BusyPolicy string

const (
	// BusyReject fails the new operation with ErrBusy. Default.
	BusyReject BusyPolicy = "reject"

	// BusyWait blocks the new operation until the running one finishes.
	BusyWait BusyPolicy = "wait"
)

// Service is the orchestration layer for the backup/restore pipeline.
// It coordinates the snapshotter, blob store, archiver and history
// components, and serializes operations: at most one backup or restore
// runs at a time.
type Service struct {
	store       Store
	blobs       BlobStore
	snapshotter Snapshotter
	archiver    Archiver
	history     History
	encryptor   Encryptor // nil when encryption is not configured
	logger      Logger
	clock       Clock

	backupDir   string
	database    string // logical database name recorded in manifests
	keepStaging bool
	busyPolicy  BusyPolicy

	opMu sync.Mutex
}

// ServiceOptions carries the non-component knobs for a Service.
type ServiceOptions struct {
	BackupDir string
	Database  string
	// KeepStaging preserves the staging directory after a failed
	// backup for diagnosis. Successful backups always remove it.
	KeepStaging bool
	BusyPolicy  BusyPolicy
}

// NewService creates a Service. encryptor may be nil.
func NewService(store Store, blobs BlobStore, snapshotter Snapshotter, archiver Archiver, history History, encryptor Encryptor, logger Logger, clock Clock, opts ServiceOptions) *Service {
	policy := opts.BusyPolicy
	if policy == "" {
		policy = BusyReject
	}
	database := opts.Database
	if database == "" {
		database = "blogDB"
	}
	return &Service{
		store:       store,
		blobs:       blobs,
		snapshotter: snapshotter,
		archiver:    archiver,
		history:     history,
		encryptor:   encryptor,
		logger:      logger,
		clock:       clock,
		backupDir:   opts.BackupDir,
		database:    database,
		keepStaging: opts.KeepStaging,
		busyPolicy:  policy,
	}
}

// acquire takes the operation gate according to the busy policy.
// The returned release function must be called exactly once.
func (s *Service) acquire() (func(), error) {
	if s.busyPolicy == BusyWait {
		s.opMu.Lock()
		return s.opMu.Unlock, nil
	}
	if !s.opMu.TryLock() {
		return nil, ErrBusy
	}
	return s.opMu.Unlock, nil
}

// BackupName builds an archive name from a prefix and the current time:
// the UTC RFC3339 timestamp with ':' and '.' replaced by '-'.
func (s *Service) BackupName(prefix string) string {
	stamp := s.clock.Now().UTC().Format(time.RFC3339)
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return prefix + "-" + stamp
}

// beginOp records the start of an operation in the history and returns
// a finish function. History failures are logged, never fatal: a
// bookkeeping error must not abort a backup.
func (s *Service) beginOp(operation, archive string) func(error) {
	id, err := s.history.Begin(operation, archive)
	if err != nil {
		s.logger.Warn("recording operation start failed", "error", err)
		return func(error) {}
	}
	return func(opErr error) {
		status, message := "success", ""
		if opErr != nil {
			status, message = "error", opErr.Error()
		}
		if err := s.history.Finish(id, status, message); err != nil {
			s.logger.Warn("recording operation finish failed", "error", err)
		}
	}
}

// archiveExtension returns the extension of archives this service
// produces, including ".age" when encryption is configured.
func (s *Service) archiveExtension() string {
	ext := s.archiver.Extension()
	if s.encryptor != nil && s.encryptor.IsConfigured() {
		ext += ".age"
	}
	return ext
}

func (s *Service) encrypting() bool {
	return s.encryptor != nil && s.encryptor.IsConfigured()
}

// validName rejects archive names that could escape the backup
// directory.
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("archive name is empty")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("invalid archive name: %s", name)
	}
	return nil
}
