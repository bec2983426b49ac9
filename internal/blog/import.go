package blog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"blogback/internal/model"
)

// stagingDirName is the fixed extraction directory for restores.
// It is fully cleared before every extraction, so re-importing the
// same archive is idempotent.
const stagingDirName = "restore-staging"

// StagedImport is an archive extracted and validated, ready for the
// restore engine. It has not touched the live store.
type StagedImport struct {
	Dir         string
	Manifest    *model.Manifest
	ArchivePath string
}

// Close removes the staging directory.
func (si *StagedImport) Close() error {
	return os.RemoveAll(si.Dir)
}

// OpenArchive verifies the archive's extension, extracts it into a
// freshly cleared staging directory and parses the manifest. For
// encrypted archives (".age") dec must be a context unlocked with the
// private key passphrase; pass nil otherwise.
func (s *Service) OpenArchive(archivePath string, dec DecryptionContext) (*StagedImport, error) {
	if _, err := os.Stat(archivePath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: archive %s", ErrNotFound, archivePath)
		}
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	ext := s.archiver.Extension()
	encrypted := strings.HasSuffix(archivePath, ext+".age")
	if !encrypted && !strings.HasSuffix(archivePath, ext) {
		return nil, fmt.Errorf("%w: archive must end in %s", ErrInvalidArchive, ext)
	}
	if encrypted && dec == nil {
		return nil, fmt.Errorf("archive is encrypted: unlock the private key first")
	}

	staging := filepath.Join(s.backupDir, stagingDirName)
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("clearing staging directory: %w", err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	unpackPath := archivePath
	if encrypted {
		plain, err := s.decryptToTemp(archivePath, dec)
		if err != nil {
			os.RemoveAll(staging)
			return nil, err
		}
		defer os.Remove(plain)
		unpackPath = plain
	}

	if err := s.archiver.Unpack(unpackPath, staging); err != nil {
		os.RemoveAll(staging)
		return nil, fmt.Errorf("extracting archive: %w", err)
	}

	manifest, err := readManifest(staging)
	if err != nil {
		os.RemoveAll(staging)
		return nil, err
	}

	s.logger.Info("archive staged", "archive", filepath.Base(archivePath),
		"backupDate", manifest.BackupDate,
		"posts", manifest.Collections.Posts,
		"topics", manifest.Collections.Topics,
		"groups", manifest.Collections.Groups,
		"files", manifest.Files)

	return &StagedImport{
		Dir:         staging,
		Manifest:    manifest,
		ArchivePath: archivePath,
	}, nil
}

// decryptToTemp writes the decrypted archive to a temp file and
// returns its path. The caller removes the file.
func (s *Service) decryptToTemp(archivePath string, dec DecryptionContext) (string, error) {
	src, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.backupDir, ".decrypt-*"+s.archiver.Extension())
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := dec.Decrypt(src, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("decrypting archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return tmpPath, nil
}
