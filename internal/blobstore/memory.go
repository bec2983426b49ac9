// Package blobstore implements the uploaded-file store backends:
// in-memory, local filesystem, and MongoDB GridFS.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"blogback/internal/blog"
	"blogback/internal/model"
)

// MemoryBlobStore is an in-memory implementation of the BlobStore
// interface, useful for testing. Safe for concurrent use.
type MemoryBlobStore struct {
	clock blog.Clock
	idgen blog.IDGenerator

	blobs map[string]*memoryBlob
	mu    sync.RWMutex
}

type memoryBlob struct {
	info model.BlobInfo
	data []byte
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore(clock blog.Clock, idgen blog.IDGenerator) *MemoryBlobStore {
	return &MemoryBlobStore{
		clock: clock,
		idgen: idgen,
		blobs: make(map[string]*memoryBlob),
	}
}

// List returns descriptors for every stored blob, sorted by upload
// date descending.
func (m *MemoryBlobStore) List(ctx context.Context) ([]*model.BlobInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]*model.BlobInfo, 0, len(m.blobs))
	for _, b := range m.blobs {
		info := b.info
		infos = append(infos, &info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].UploadDate.After(infos[j].UploadDate) })
	return infos, nil
}

// Find returns the descriptor for one blob.
func (m *MemoryBlobStore) Find(ctx context.Context, id string) (*model.BlobInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", blog.ErrNotFound, id)
	}
	info := b.info
	return &info, nil
}

// Download writes the blob payload to w.
func (m *MemoryBlobStore) Download(ctx context.Context, id string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[id]
	if !ok {
		return fmt.Errorf("%w: blob %s", blog.ErrNotFound, id)
	}
	if _, err := io.Copy(w, bytes.NewReader(b.data)); err != nil {
		return fmt.Errorf("writing blob %s: %w", id, err)
	}
	return nil
}

// Upload stores a new blob from r and returns the assigned id.
func (m *MemoryBlobStore) Upload(ctx context.Context, filename, contentType string, metadata map[string]string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading blob payload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.idgen.New()
	m.blobs[id] = &memoryBlob{
		info: model.BlobInfo{
			ID:          id,
			Filename:    filename,
			ContentType: contentType,
			Length:      int64(len(data)),
			UploadDate:  m.clock.Now(),
			Metadata:    metadata,
		},
		data: data,
	}
	return id, nil
}

// DeleteAll removes every blob.
func (m *MemoryBlobStore) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs = make(map[string]*memoryBlob)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryBlobStore) Close() error {
	return nil
}

// Compile-time check that MemoryBlobStore implements blog.BlobStore
var _ blog.BlobStore = (*MemoryBlobStore)(nil)
