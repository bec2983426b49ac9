package blog

import (
	"context"

	"blogback/internal/model"
)

// RestoreOptions controls how a staged import is applied.
type RestoreOptions struct {
	// ClearExisting deletes all live posts, topics and groups (and
	// blobs, unless OnlyDatabase) before loading the snapshot.
	ClearExisting bool

	// OnlyDatabase restores the document collections but leaves the
	// blob store untouched.
	OnlyDatabase bool
}

// RestoredCollections reports what a Snapshotter.Restore call loaded.
type RestoredCollections struct {
	// Posts holds the posts as inserted, with their new identifiers.
	// Backends that preserve identifiers natively may leave it empty;
	// the restore engine only uses it for attachment id rewriting.
	Posts []*model.Post

	Topics int
	Groups int

	// UnresolvedRefs counts group references that could not be
	// re-resolved and were dropped.
	UnresolvedRefs int
}

// Snapshotter serializes the document collections into a staging
// directory and loads them back. Two backends exist: the JSON snapshot
// backend (portable, diff-friendly) and the external dump-tool backend.
// The restore engine treats both identically.
type Snapshotter interface {
	// Export writes one snapshot per collection into stagingDir using
	// a single read-consistent query per collection. Any serialization
	// error aborts the backup.
	Export(ctx context.Context, stagingDir string) (model.CollectionCounts, error)

	// Restore loads the collection snapshots from stagingDir into the
	// live store, honoring opts. Groups are loaded before posts so
	// post group references can be repaired against new identifiers.
	Restore(ctx context.Context, stagingDir string, opts RestoreOptions) (*RestoredCollections, error)
}
