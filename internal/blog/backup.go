package blog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"blogback/internal/model"
)

// blobsDir is the archive subdirectory holding blob payloads and their
// .meta.json sidecars.
const blobsDir = "files"

// metaSuffix marks a blob metadata sidecar file.
const metaSuffix = ".meta.json"

// BackupResult summarizes a completed backup.
type BackupResult struct {
	Name        string
	Path        string
	Counts      model.CollectionCounts
	Files       int
	TotalSize   int64 // total blob payload bytes
	ArchiveSize int64
}

// BackupEntry describes one archive file in the backup directory.
type BackupEntry struct {
	Name     string
	Path     string
	Size     int64
	Modified time.Time
}

// CreateBackup snapshots the collections and blobs into a staging
// directory, writes the manifest, packs everything into a single
// archive and removes the staging tree. name may be empty, in which
// case a timestamped name with the "backup" prefix is generated.
// Any step's failure aborts the backup; no partial archive survives.
func (s *Service) CreateBackup(ctx context.Context, name string) (*BackupResult, error) {
	return s.createBackup(ctx, "backup", name)
}

func (s *Service) createBackup(ctx context.Context, operation, name string) (result *BackupResult, err error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if name == "" {
		name = s.BackupName("backup")
	}
	if err := validName(name); err != nil {
		return nil, err
	}

	finish := s.beginOp(operation, name)
	defer func() { finish(err) }()

	s.logger.Info("backup started", "name", name)

	staging := filepath.Join(s.backupDir, name)
	filesDir := filepath.Join(staging, blobsDir)
	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	// The staging tree is transient: remove it on success, and on
	// failure too unless configured to keep it for diagnosis.
	packed := false
	defer func() {
		if packed || !s.keepStaging {
			os.RemoveAll(staging)
		}
	}()

	counts, err := s.snapshotter.Export(ctx, staging)
	if err != nil {
		return nil, fmt.Errorf("exporting collections: %w", err)
	}

	files, err := s.exportBlobs(ctx, filesDir)
	if err != nil {
		return nil, fmt.Errorf("exporting blobs: %w", err)
	}

	manifest := newManifest(s.clock.Now().UTC(), s.database, counts, files)
	if err := writeManifest(staging, manifest); err != nil {
		return nil, err
	}

	archivePath, err := s.packArchive(staging, name)
	if err != nil {
		return nil, err
	}
	packed = true

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	s.logger.Info("backup complete", "name", name,
		"posts", counts.Posts, "topics", counts.Topics, "groups", counts.Groups,
		"files", len(files), "archiveSize", info.Size())

	return &BackupResult{
		Name:        name,
		Path:        archivePath,
		Counts:      counts,
		Files:       len(files),
		TotalSize:   manifest.TotalFileSize,
		ArchiveSize: info.Size(),
	}, nil
}

// exportBlobs downloads every blob into filesDir, one payload file
// named by blob id plus one .meta.json sidecar each. Any failure
// aborts the backup.
func (s *Service) exportBlobs(ctx context.Context, filesDir string) ([]model.ManifestFile, error) {
	infos, err := s.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}

	files := make([]model.ManifestFile, 0, len(infos))
	for _, info := range infos {
		payloadPath := filepath.Join(filesDir, info.ID)

		f, err := os.Create(payloadPath)
		if err != nil {
			return nil, fmt.Errorf("creating blob file: %w", err)
		}
		if err := s.blobs.Download(ctx, info.ID, f); err != nil {
			f.Close()
			return nil, fmt.Errorf("downloading blob %s: %w", info.ID, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("closing blob file: %w", err)
		}

		meta, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("serializing blob metadata: %w", err)
		}
		if err := os.WriteFile(payloadPath+metaSuffix, meta, 0644); err != nil {
			return nil, fmt.Errorf("writing blob metadata: %w", err)
		}

		files = append(files, model.ManifestFile{
			ID:       info.ID,
			Filename: info.Filename,
			Size:     info.Length,
		})
	}

	s.logger.Debug("blobs exported", "count", len(files))
	return files, nil
}

// packArchive compresses the staging tree into the final archive file,
// encrypting it when an encryptor is configured. On failure no usable
// archive file is left behind.
func (s *Service) packArchive(staging, name string) (string, error) {
	plainPath := filepath.Join(s.backupDir, name+s.archiver.Extension())
	if err := s.archiver.Pack(staging, plainPath); err != nil {
		return "", fmt.Errorf("packing archive: %w", err)
	}

	if !s.encrypting() {
		return plainPath, nil
	}

	encPath := plainPath + ".age"
	if err := s.encryptFile(plainPath, encPath); err != nil {
		os.Remove(encPath)
		os.Remove(plainPath)
		return "", fmt.Errorf("encrypting archive: %w", err)
	}
	os.Remove(plainPath)
	return encPath, nil
}

func (s *Service) encryptFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	if err := s.encryptor.Encrypt(src, dest); err != nil {
		return err
	}
	return dest.Close()
}

// ListBackups returns the archives present in the backup directory,
// newest first.
func (s *Service) ListBackups() ([]*BackupEntry, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []*BackupEntry
	for _, e := range entries {
		if e.IsDir() || !isArchiveName(e.Name(), s.archiver.Extension()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		backups = append(backups, &BackupEntry{
			Name:     e.Name(),
			Path:     filepath.Join(s.backupDir, e.Name()),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Modified.After(backups[j].Modified)
	})
	return backups, nil
}

// DeleteBackup removes one archive file by name. Irreversible.
func (s *Service) DeleteBackup(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	path := filepath.Join(s.backupDir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: backup %s", ErrNotFound, name)
		}
		return fmt.Errorf("stat backup: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting backup: %w", err)
	}
	s.logger.Info("backup deleted", "name", name)
	return nil
}

// isArchiveName reports whether name looks like an archive produced by
// this service, encrypted or not.
func isArchiveName(name, ext string) bool {
	return strings.HasSuffix(name, ext) || strings.HasSuffix(name, ext+".age")
}

// FormatSize renders a byte count in human-readable units.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGT"[exp])
}
