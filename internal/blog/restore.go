package blog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"blogback/internal/model"
)

// RestoreResult summarizes a completed restore.
type RestoreResult struct {
	Posts          int
	Topics         int
	Groups         int
	UnresolvedRefs int

	// Blob accounting; all zero for OnlyDatabase restores.
	BlobsRestored int
	BlobsFailed   int

	// RewrittenAttachments counts post attachment entries re-pointed
	// at newly assigned blob identifiers.
	RewrittenAttachments int
}

// Restore loads a staged import into the live store. Steps run in a
// fixed order (clear, groups, topics, posts, blobs, attachment
// rewrite); a step's failure aborts the remaining steps but already
// committed steps are not rolled back.
func (s *Service) Restore(ctx context.Context, staged *StagedImport, opts RestoreOptions) (result *RestoreResult, err error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	finish := s.beginOp("restore", filepath.Base(staged.ArchivePath))
	defer func() { finish(err) }()

	s.logger.Info("restore started",
		"archive", filepath.Base(staged.ArchivePath),
		"clearExisting", opts.ClearExisting, "onlyDatabase", opts.OnlyDatabase)

	result = &RestoreResult{}

	if opts.ClearExisting && !opts.OnlyDatabase {
		if err := s.blobs.DeleteAll(ctx); err != nil {
			return result, fmt.Errorf("clearing blobs: %w", err)
		}
	}

	collections, err := s.snapshotter.Restore(ctx, staged.Dir, opts)
	if collections != nil {
		result.Posts = len(collections.Posts)
		result.Topics = collections.Topics
		result.Groups = collections.Groups
		result.UnresolvedRefs = collections.UnresolvedRefs
	}
	if err != nil {
		return result, fmt.Errorf("restoring collections: %w", err)
	}

	if !opts.OnlyDatabase {
		idMap := s.restoreBlobs(ctx, staged.Dir, result)
		if len(idMap) > 0 {
			if err := s.rewriteAttachments(ctx, collections.Posts, idMap, result); err != nil {
				return result, fmt.Errorf("rewriting attachments: %w", err)
			}
		}
	}

	s.logger.Info("restore complete",
		"posts", result.Posts, "topics", result.Topics, "groups", result.Groups,
		"blobs", result.BlobsRestored, "blobErrors", result.BlobsFailed,
		"unresolvedRefs", result.UnresolvedRefs,
		"rewrittenAttachments", result.RewrittenAttachments)
	return result, nil
}

// restoreBlobs re-uploads every staged blob payload through the blob
// store, which assigns fresh identifiers. Returns the old-id to new-id
// mapping. Per-blob failures are logged and skipped; a single bad blob
// must not sink the rest of the restore.
func (s *Service) restoreBlobs(ctx context.Context, stagingDir string, result *RestoreResult) map[string]string {
	filesDir := filepath.Join(stagingDir, blobsDir)
	entries, err := os.ReadDir(filesDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading staged blobs failed", "error", err)
		}
		return nil
	}

	idMap := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), metaSuffix) {
			continue
		}

		oldID := e.Name()
		newID, err := s.restoreOneBlob(ctx, filesDir, oldID)
		if err != nil {
			s.logger.Warn("blob restore failed", "blob", oldID, "error", err)
			result.BlobsFailed++
			continue
		}
		idMap[oldID] = newID
		result.BlobsRestored++
	}
	return idMap
}

// restoreOneBlob uploads one staged payload using the attributes from
// its metadata sidecar and returns the newly assigned id.
func (s *Service) restoreOneBlob(ctx context.Context, filesDir, oldID string) (string, error) {
	metaData, err := os.ReadFile(filepath.Join(filesDir, oldID+metaSuffix))
	if err != nil {
		return "", fmt.Errorf("reading blob metadata: %w", err)
	}
	var info model.BlobInfo
	if err := json.Unmarshal(metaData, &info); err != nil {
		return "", fmt.Errorf("parsing blob metadata: %w", err)
	}

	payload, err := os.Open(filepath.Join(filesDir, oldID))
	if err != nil {
		return "", fmt.Errorf("opening blob payload: %w", err)
	}
	defer payload.Close()

	newID, err := s.blobs.Upload(ctx, info.Filename, info.ContentType, info.Metadata, payload)
	if err != nil {
		return "", fmt.Errorf("uploading blob: %w", err)
	}
	return newID, nil
}

// rewriteAttachments re-points restored posts' attachedFiles entries
// at the new blob identifiers. Blob re-upload necessarily changes ids,
// so without this pass post-to-attachment links would dangle.
func (s *Service) rewriteAttachments(ctx context.Context, posts []*model.Post, idMap map[string]string, result *RestoreResult) error {
	for _, p := range posts {
		changed := false
		for i := range p.AttachedFiles {
			if newID, ok := idMap[p.AttachedFiles[i].FileID]; ok {
				p.AttachedFiles[i].FileID = newID
				changed = true
				result.RewrittenAttachments++
			}
		}
		if !changed {
			continue
		}
		if _, err := s.store.UpdatePost(ctx, p.PostID, p); err != nil {
			return fmt.Errorf("updating post %d: %w", p.PostID, err)
		}
	}
	return nil
}
