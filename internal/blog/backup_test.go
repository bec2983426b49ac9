package blog_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blogback/internal/archive"
	"blogback/internal/blobstore"
	"blogback/internal/blog"
	"blogback/internal/history"
	"blogback/internal/model"
	"blogback/internal/store"
	"blogback/internal/testutil"
)

// env wires a complete in-memory pipeline around a Service.
type env struct {
	store   *store.MemoryStore
	blobs   *blobstore.MemoryBlobStore
	history *history.MemoryHistory
	clock   *testutil.StubClock
	svc     *blog.Service
	dir     string
}

func newEnv(t *testing.T, opts blog.ServiceOptions) *env {
	t.Helper()

	clock := testutil.FixedClock()
	st := store.NewMemoryStore(clock, testutil.NewStubIDGenerator())
	blobs := blobstore.NewMemoryBlobStore(clock, testutil.NewStubIDGenerator())
	hist := history.NewMemoryHistory(clock)

	if opts.BackupDir == "" {
		opts.BackupDir = t.TempDir()
	}

	snap := blog.NewJSONSnapshotter(st, blog.NewNopLogger())
	svc := blog.NewService(st, blobs, snap, archive.NewTarGz(), hist, nil,
		blog.NewNopLogger(), clock, opts)

	return &env{
		store:   st,
		blobs:   blobs,
		history: hist,
		clock:   clock,
		svc:     svc,
		dir:     opts.BackupDir,
	}
}

// seedContent populates the store with one group, two topics and two
// posts (one referencing the group and carrying an attachment) and
// uploads the attachment payload. Returns the attachment's blob id.
func seedContent(t *testing.T, e *env) string {
	t.Helper()
	ctx := context.Background()

	group, err := e.store.CreateGroup(ctx, &model.Group{
		Name:  "travel",
		Color: "#2a9d8f",
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	topics := []*model.Topic{
		{Name: "go", Color: "#00add8", Order: 1},
		{Name: "photography", Color: "#e76f51", Order: 2},
	}
	if err := e.store.InsertTopics(ctx, topics); err != nil {
		t.Fatalf("InsertTopics: %v", err)
	}

	blobID, err := e.blobs.Upload(ctx, "sunset.jpg", "image/jpeg",
		map[string]string{"camera": "x100"}, strings.NewReader("jpeg bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if _, err := e.store.CreatePost(ctx, &model.Post{
		Title:       "Hello",
		Authors:     []string{"sam"},
		Content:     "first post",
		ContentType: "markdown",
		Topics:      []string{"go"},
		IsPublished: true,
	}); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	if _, err := e.store.CreatePost(ctx, &model.Post{
		Title:       "Iceland",
		Authors:     []string{"sam"},
		Content:     "trip report",
		ContentType: "markdown",
		Topics:      []string{"photography"},
		IsPublished: true,
		Group: &model.GroupRef{
			GroupID:   group.ID,
			GroupName: group.Name,
			Sequence:  1,
		},
		AttachedFiles: []model.AttachedFile{
			{Filename: "sunset.jpg", FileID: blobID, FileType: "image/jpeg"},
		},
	}); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	return blobID
}

func TestCreateBackup(t *testing.T) {
	t.Run("round trip counts", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})
		seedContent(t, e)

		result, err := e.svc.CreateBackup(context.Background(), "nightly")
		if err != nil {
			t.Fatalf("CreateBackup: %v", err)
		}

		if result.Name != "nightly" {
			t.Errorf("Name = %q, want nightly", result.Name)
		}
		if result.Counts.Posts != 2 || result.Counts.Topics != 2 || result.Counts.Groups != 1 {
			t.Errorf("Counts = %+v, want 2 posts, 2 topics, 1 group", result.Counts)
		}
		if result.Files != 1 {
			t.Errorf("Files = %d, want 1", result.Files)
		}
		if result.ArchiveSize <= 0 {
			t.Errorf("ArchiveSize = %d, want > 0", result.ArchiveSize)
		}

		if _, err := os.Stat(result.Path); err != nil {
			t.Errorf("archive file missing: %v", err)
		}
		if !strings.HasSuffix(result.Path, ".tar.gz") {
			t.Errorf("archive path %q does not end in .tar.gz", result.Path)
		}
	})

	t.Run("empty store produces valid archive", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})

		result, err := e.svc.CreateBackup(context.Background(), "empty")
		if err != nil {
			t.Fatalf("CreateBackup: %v", err)
		}
		if result.Counts.Posts != 0 || result.Counts.Topics != 0 || result.Counts.Groups != 0 {
			t.Errorf("Counts = %+v, want all zero", result.Counts)
		}
		if result.Files != 0 {
			t.Errorf("Files = %d, want 0", result.Files)
		}

		staged, err := e.svc.OpenArchive(result.Path, nil)
		if err != nil {
			t.Fatalf("OpenArchive: %v", err)
		}
		defer staged.Close()
		if staged.Manifest.Collections.Posts != 0 {
			t.Errorf("manifest posts = %d, want 0", staged.Manifest.Collections.Posts)
		}
	})

	t.Run("generated name when empty", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})

		result, err := e.svc.CreateBackup(context.Background(), "")
		if err != nil {
			t.Fatalf("CreateBackup: %v", err)
		}
		if !strings.HasPrefix(result.Name, "backup-") {
			t.Errorf("Name = %q, want backup- prefix", result.Name)
		}
	})

	t.Run("staging directory removed on success", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})
		seedContent(t, e)

		result, err := e.svc.CreateBackup(context.Background(), "clean")
		if err != nil {
			t.Fatalf("CreateBackup: %v", err)
		}

		if _, err := os.Stat(filepath.Join(e.dir, "clean")); !os.IsNotExist(err) {
			t.Errorf("staging directory still present after success")
		}
		if _, err := os.Stat(result.Path); err != nil {
			t.Errorf("archive missing: %v", err)
		}
	})

	t.Run("invalid names rejected", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})
		for _, name := range []string{"../escape", "a/b", "..", "."} {
			if _, err := e.svc.CreateBackup(context.Background(), name); err == nil {
				t.Errorf("CreateBackup(%q) succeeded, want error", name)
			}
		}
	})

	t.Run("records history", func(t *testing.T) {
		e := newEnv(t, blog.ServiceOptions{})
		if _, err := e.svc.CreateBackup(context.Background(), "tracked"); err != nil {
			t.Fatalf("CreateBackup: %v", err)
		}

		ops, err := e.history.List(0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(ops) != 1 {
			t.Fatalf("got %d operations, want 1", len(ops))
		}
		if ops[0].Operation != "backup" || ops[0].Status != "success" || ops[0].Archive != "tracked" {
			t.Errorf("operation = %+v", ops[0])
		}
	})
}

func TestBackupName(t *testing.T) {
	e := newEnv(t, blog.ServiceOptions{})

	name := e.svc.BackupName("backup")
	if !strings.HasPrefix(name, "backup-2024-01-15T10-30-00") {
		t.Errorf("BackupName = %q", name)
	}
	if strings.ContainsAny(name, ":.") {
		t.Errorf("BackupName %q contains filesystem-hostile characters", name)
	}
}

func TestListBackups(t *testing.T) {
	e := newEnv(t, blog.ServiceOptions{})
	ctx := context.Background()

	if _, err := e.svc.CreateBackup(ctx, "first"); err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if _, err := e.svc.CreateBackup(ctx, "second"); err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	// A stray non-archive file must not show up.
	if err := os.WriteFile(filepath.Join(e.dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := e.svc.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name, ".tar.gz") {
			t.Errorf("unexpected entry %q", entry.Name)
		}
	}
}

func TestListBackupsMissingDir(t *testing.T) {
	e := newEnv(t, blog.ServiceOptions{BackupDir: filepath.Join(t.TempDir(), "absent")})

	entries, err := e.svc.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestDeleteBackup(t *testing.T) {
	e := newEnv(t, blog.ServiceOptions{})

	result, err := e.svc.CreateBackup(context.Background(), "doomed")
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	if err := e.svc.DeleteBackup(filepath.Base(result.Path)); err != nil {
		t.Fatalf("DeleteBackup: %v", err)
	}
	if _, err := os.Stat(result.Path); !os.IsNotExist(err) {
		t.Errorf("archive still present after delete")
	}

	if err := e.svc.DeleteBackup("no-such-archive.tar.gz"); !errors.Is(err, blog.ErrNotFound) {
		t.Errorf("DeleteBackup missing = %v, want ErrNotFound", err)
	}
	if err := e.svc.DeleteBackup("../../etc/passwd"); err == nil {
		t.Error("DeleteBackup with path separator succeeded, want error")
	}
}

func TestBackupBlobExport(t *testing.T) {
	e := newEnv(t, blog.ServiceOptions{})
	blobID := seedContent(t, e)

	result, err := e.svc.CreateBackup(context.Background(), "withfiles")
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	staged, err := e.svc.OpenArchive(result.Path, nil)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer staged.Close()

	payload, err := os.ReadFile(filepath.Join(staged.Dir, "files", blobID))
	if err != nil {
		t.Fatalf("reading staged payload: %v", err)
	}
	if !bytes.Equal(payload, []byte("jpeg bytes")) {
		t.Errorf("payload = %q", payload)
	}
	if _, err := os.Stat(filepath.Join(staged.Dir, "files", blobID+".meta.json")); err != nil {
		t.Errorf("metadata sidecar missing: %v", err)
	}

	if len(staged.Manifest.FilesList) != 1 {
		t.Fatalf("manifest lists %d files, want 1", len(staged.Manifest.FilesList))
	}
	f := staged.Manifest.FilesList[0]
	if f.ID != blobID || f.Filename != "sunset.jpg" {
		t.Errorf("manifest file = %+v", f)
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}
	for _, tc := range cases {
		if got := blog.FormatSize(tc.bytes); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}
