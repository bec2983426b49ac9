package blog

import (
	"context"
	"io"

	"blogback/internal/model"
)

// BlobStore provides uniform access to binary attachments. Identifiers
// are opaque and always assigned by the store; a re-uploaded blob gets
// a fresh id. Streaming interfaces keep large payloads off the heap.
type BlobStore interface {
	// List returns descriptors for every stored blob.
	List(ctx context.Context) ([]*model.BlobInfo, error)

	// Find returns the descriptor for one blob.
	// Returns ErrNotFound if the id is absent.
	Find(ctx context.Context, id string) (*model.BlobInfo, error)

	// Download writes the blob payload to w.
	// Returns ErrNotFound if the id is absent.
	Download(ctx context.Context, id string, w io.Writer) error

	// Upload stores a new blob from r and returns the assigned id.
	// The caller observes either full success (payload persisted, id
	// returned) or a single terminal error.
	Upload(ctx context.Context, filename, contentType string, metadata map[string]string, r io.Reader) (string, error)

	// DeleteAll removes every blob. Irreversible; used only by a
	// destructive restore.
	DeleteAll(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
