package blog_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"blogback/internal/blog"
	"blogback/internal/model"
)

// backupAndStage creates a backup of the current store content and
// stages it for restore.
func backupAndStage(t *testing.T, e *env) *blog.StagedImport {
	t.Helper()

	result, err := e.svc.CreateBackup(context.Background(), "for-restore")
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	staged, err := e.svc.OpenArchive(result.Path, nil)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	t.Cleanup(func() { staged.Close() })
	return staged
}

func TestRestore(t *testing.T) {
	t.Run("full round trip with clear", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})
		oldBlobID := seedContent(t, e)
		ctx := context.Background()

		staged := backupAndStage(t, e)

		// Content added after the backup must not survive a clearing
		// restore.
		if _, err := e.store.CreatePost(ctx, &model.Post{Title: "Straggler", PostID: 10}); err != nil {
			t.Fatalf("CreatePost: %v", err)
		}

		result, err := e.svc.Restore(ctx, staged, blog.RestoreOptions{ClearExisting: true})
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}

		if result.Posts != 2 || result.Topics != 2 || result.Groups != 1 {
			t.Errorf("result = %+v, want 2 posts, 2 topics, 1 group", result)
		}
		if result.UnresolvedRefs != 0 {
			t.Errorf("UnresolvedRefs = %d, want 0", result.UnresolvedRefs)
		}
		if result.BlobsRestored != 1 || result.BlobsFailed != 0 {
			t.Errorf("blobs restored=%d failed=%d, want 1/0", result.BlobsRestored, result.BlobsFailed)
		}
		if result.RewrittenAttachments != 1 {
			t.Errorf("RewrittenAttachments = %d, want 1", result.RewrittenAttachments)
		}

		posts, err := e.store.ListPosts(ctx)
		if err != nil {
			t.Fatalf("ListPosts: %v", err)
		}
		if len(posts) != 2 {
			t.Fatalf("store has %d posts, want 2", len(posts))
		}
		for _, p := range posts {
			if p.Title == "Straggler" {
				t.Error("pre-restore post survived a clearing restore")
			}
		}

		// The group reference must point at the newly assigned group id.
		group, err := e.store.FindGroupByName(ctx, "travel")
		if err != nil || group == nil {
			t.Fatalf("FindGroupByName: group=%v err=%v", group, err)
		}
		var grouped *model.Post
		for _, p := range posts {
			if p.Group != nil {
				grouped = p
			}
		}
		if grouped == nil {
			t.Fatal("no restored post carries a group reference")
		}
		if grouped.Group.GroupID != group.ID {
			t.Errorf("GroupID = %q, want %q", grouped.Group.GroupID, group.ID)
		}
		if grouped.Group.GroupName != "travel" {
			t.Errorf("GroupName = %q, want travel", grouped.Group.GroupName)
		}

		// Attachments must point at the re-uploaded blob, and its
		// payload must be intact.
		newID := grouped.AttachedFiles[0].FileID
		if newID == oldBlobID {
			t.Errorf("attachment still references pre-restore blob id %q", oldBlobID)
		}
		var buf bytes.Buffer
		if err := e.blobs.Download(ctx, newID, &buf); err != nil {
			t.Fatalf("Download: %v", err)
		}
		if buf.String() != "jpeg bytes" {
			t.Errorf("payload = %q", buf.String())
		}
	})

	t.Run("preserve keeps existing content", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})
		seedContent(t, e)
		ctx := context.Background()

		staged := backupAndStage(t, e)

		// Start from a store holding unrelated content only.
		if err := e.store.DeleteAllPosts(ctx); err != nil {
			t.Fatal(err)
		}
		if err := e.store.DeleteAllTopics(ctx); err != nil {
			t.Fatal(err)
		}
		if err := e.store.DeleteAllGroups(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := e.store.CreatePost(ctx, &model.Post{Title: "Keeper", PostID: 10}); err != nil {
			t.Fatal(err)
		}

		if _, err := e.svc.Restore(ctx, staged, blog.RestoreOptions{}); err != nil {
			t.Fatalf("Restore: %v", err)
		}

		posts, err := e.store.ListPosts(ctx)
		if err != nil {
			t.Fatalf("ListPosts: %v", err)
		}
		if len(posts) != 3 {
			t.Fatalf("store has %d posts, want 3", len(posts))
		}
		found := false
		for _, p := range posts {
			if p.Title == "Keeper" {
				found = true
			}
		}
		if !found {
			t.Error("pre-existing post was removed by a non-clearing restore")
		}
	})

	t.Run("db only leaves blobs alone", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})
		blobID := seedContent(t, e)
		ctx := context.Background()

		staged := backupAndStage(t, e)

		result, err := e.svc.Restore(ctx, staged, blog.RestoreOptions{
			ClearExisting: true,
			OnlyDatabase:  true,
		})
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}

		if result.BlobsRestored != 0 || result.BlobsFailed != 0 || result.RewrittenAttachments != 0 {
			t.Errorf("blob accounting not zero: %+v", result)
		}

		// The original blob must still be there under its original id.
		infos, err := e.blobs.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(infos) != 1 || infos[0].ID != blobID {
			t.Errorf("blobs = %+v, want the original %q untouched", infos, blobID)
		}
	})

	t.Run("unresolved group reference dropped", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})
		ctx := context.Background()

		// A post referencing a group that has no document: the snapshot
		// will carry the dangling reference.
		if _, err := e.store.CreatePost(ctx, &model.Post{
			Title: "Orphan",
			Group: &model.GroupRef{GroupID: "stale", GroupName: "ghost"},
		}); err != nil {
			t.Fatal(err)
		}

		staged := backupAndStage(t, e)

		result, err := e.svc.Restore(ctx, staged, blog.RestoreOptions{ClearExisting: true})
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if result.UnresolvedRefs != 1 {
			t.Errorf("UnresolvedRefs = %d, want 1", result.UnresolvedRefs)
		}
		if result.Posts != 1 {
			t.Errorf("Posts = %d, want 1", result.Posts)
		}

		posts, err := e.store.ListPosts(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if posts[0].Group != nil {
			t.Errorf("Group = %+v, want nil after dropping unresolved reference", posts[0].Group)
		}
	})

	t.Run("bad blob does not sink the restore", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})
		seedContent(t, e)
		ctx := context.Background()

		staged := backupAndStage(t, e)

		// Sabotage one staged blob's metadata sidecar.
		entries, err := os.ReadDir(filepath.Join(staged.Dir, "files"))
		if err != nil {
			t.Fatal(err)
		}
		for _, entry := range entries {
			if filepath.Ext(entry.Name()) == ".json" {
				path := filepath.Join(staged.Dir, "files", entry.Name())
				if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
					t.Fatal(err)
				}
			}
		}

		result, err := e.svc.Restore(ctx, staged, blog.RestoreOptions{ClearExisting: true})
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if result.BlobsFailed != 1 || result.BlobsRestored != 0 {
			t.Errorf("blobs restored=%d failed=%d, want 0/1", result.BlobsRestored, result.BlobsFailed)
		}
		if result.Posts != 2 {
			t.Errorf("Posts = %d, want 2", result.Posts)
		}
	})

	t.Run("records history", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})
		seedContent(t, e)
		ctx := context.Background()

		staged := backupAndStage(t, e)
		if _, err := e.svc.Restore(ctx, staged, blog.RestoreOptions{ClearExisting: true}); err != nil {
			t.Fatalf("Restore: %v", err)
		}

		ops, err := e.history.List(1)
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 1 || ops[0].Operation != "restore" || ops[0].Status != "success" {
			t.Errorf("ops = %+v", ops)
		}
	})
}
