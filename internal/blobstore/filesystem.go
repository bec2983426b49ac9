package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"blogback/internal/blog"
	"blogback/internal/model"
)

// FileSystemBlobStore stores blobs on the local filesystem:
//
//	<root>/
//	  content/
//	    <id>        (payload files)
//	  meta/
//	    <id>.json   (descriptor files)
type FileSystemBlobStore struct {
	root       string
	contentDir string
	metaDir    string
	clock      blog.Clock
	idgen      blog.IDGenerator
}

// NewFileSystemBlobStore creates a filesystem blob store rooted at the
// given path, creating the directory structure if needed.
func NewFileSystemBlobStore(root string, clock blog.Clock, idgen blog.IDGenerator) (*FileSystemBlobStore, error) {
	contentDir := filepath.Join(root, "content")
	metaDir := filepath.Join(root, "meta")

	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create meta directory: %w", err)
	}

	return &FileSystemBlobStore{
		root:       root,
		contentDir: contentDir,
		metaDir:    metaDir,
		clock:      clock,
		idgen:      idgen,
	}, nil
}

// List returns descriptors for every stored blob, sorted by upload
// date descending.
func (s *FileSystemBlobStore) List(ctx context.Context) ([]*model.BlobInfo, error) {
	entries, err := os.ReadDir(s.metaDir)
	if err != nil {
		return nil, fmt.Errorf("reading meta directory: %w", err)
	}

	infos := make([]*model.BlobInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := s.readInfo(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].UploadDate.After(infos[j].UploadDate) })
	return infos, nil
}

// Find returns the descriptor for one blob.
func (s *FileSystemBlobStore) Find(ctx context.Context, id string) (*model.BlobInfo, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.readInfo(id)
}

// Download writes the blob payload to w.
func (s *FileSystemBlobStore) Download(ctx context.Context, id string, w io.Writer) error {
	if err := validateID(id); err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(s.contentDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: blob %s", blog.ErrNotFound, id)
		}
		return fmt.Errorf("opening blob %s: %w", id, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading blob %s: %w", id, err)
	}
	return nil
}

// Upload stores a new blob from r and returns the assigned id. Payload
// and descriptor are written atomically (temp file + rename); on any
// failure neither survives.
func (s *FileSystemBlobStore) Upload(ctx context.Context, filename, contentType string, metadata map[string]string, r io.Reader) (string, error) {
	id := s.idgen.New()
	contentPath := filepath.Join(s.contentDir, id)

	size, err := s.writeContent(contentPath, r)
	if err != nil {
		return "", err
	}

	info := &model.BlobInfo{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Length:      size,
		UploadDate:  s.clock.Now(),
		Metadata:    metadata,
	}
	if err := s.writeInfo(info); err != nil {
		os.Remove(contentPath)
		return "", err
	}
	return id, nil
}

// DeleteAll removes every blob.
func (s *FileSystemBlobStore) DeleteAll(ctx context.Context) error {
	for _, dir := range []string{s.contentDir, s.metaDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, e := range entries {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("removing %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

// Close is a no-op for the filesystem store.
func (s *FileSystemBlobStore) Close() error {
	return nil
}

func (s *FileSystemBlobStore) readInfo(id string) (*model.BlobInfo, error) {
	data, err := os.ReadFile(filepath.Join(s.metaDir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: blob %s", blog.ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading descriptor for %s: %w", id, err)
	}

	var info model.BlobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing descriptor for %s: %w", id, err)
	}
	return &info, nil
}

func (s *FileSystemBlobStore) writeInfo(info *model.BlobInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding descriptor for %s: %w", info.ID, err)
	}
	if err := os.WriteFile(filepath.Join(s.metaDir, info.ID+".json"), data, 0644); err != nil {
		return fmt.Errorf("writing descriptor for %s: %w", info.ID, err)
	}
	return nil
}

// writeContent writes the payload via a temp file and atomic rename,
// returning the byte count.
func (s *FileSystemBlobStore) writeContent(destPath string, r io.Reader) (int64, error) {
	tmpFile, err := os.CreateTemp(s.contentDir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to write payload: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return written, nil
}

// validateID rejects ids that could escape the store directories.
func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return fmt.Errorf("%w: invalid blob id %q", blog.ErrNotFound, id)
	}
	return nil
}

// Compile-time check that FileSystemBlobStore implements blog.BlobStore
var _ blog.BlobStore = (*FileSystemBlobStore)(nil)
