package blog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"blogback/internal/blog"
	"blogback/internal/model"
	"blogback/internal/store"
	"blogback/internal/testutil"
)

func newSnapStore(t *testing.T) (*store.MemoryStore, *blog.JSONSnapshotter) {
	t.Helper()
	st := store.NewMemoryStore(testutil.FixedClock(), testutil.NewStubIDGenerator())
	return st, blog.NewJSONSnapshotter(st, blog.NewNopLogger())
}

func TestJSONSnapshotterExport(t *testing.T) {
	st, snap := newSnapStore(t)
	ctx := context.Background()

	if _, err := st.CreateGroup(ctx, &model.Group{Name: "g"}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertTopics(ctx, []*model.Topic{{Name: "go", Order: 1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreatePost(ctx, &model.Post{Title: "one"}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreatePost(ctx, &model.Post{Title: "two"}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	counts, err := snap.Export(ctx, dir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if counts.Posts != 2 || counts.Topics != 1 || counts.Groups != 1 {
		t.Errorf("counts = %+v", counts)
	}

	// Each collection file is a well-formed JSON array of the right
	// length.
	cases := []struct {
		file string
		want int
	}{
		{"posts.json", 2},
		{"topics.json", 1},
		{"postGroups.json", 1},
	}
	for _, tc := range cases {
		data, err := os.ReadFile(filepath.Join(dir, tc.file))
		if err != nil {
			t.Fatalf("reading %s: %v", tc.file, err)
		}
		var items []map[string]any
		if err := json.Unmarshal(data, &items); err != nil {
			t.Fatalf("parsing %s: %v", tc.file, err)
		}
		if len(items) != tc.want {
			t.Errorf("%s holds %d items, want %d", tc.file, len(items), tc.want)
		}
	}
}

func TestJSONSnapshotterRestore(t *testing.T) {
	t.Run("missing snapshot files mean empty collections", func(t *testing.T) {
		st, snap := newSnapStore(t)
		ctx := context.Background()

		result, err := snap.Restore(ctx, t.TempDir(), blog.RestoreOptions{})
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if len(result.Posts) != 0 || result.Topics != 0 || result.Groups != 0 {
			t.Errorf("result = %+v, want empty", result)
		}

		posts, err := st.ListPosts(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(posts) != 0 {
			t.Errorf("store has %d posts", len(posts))
		}
	})

	t.Run("identifiers are reassigned", func(t *testing.T) {
		st, snap := newSnapStore(t)
		ctx := context.Background()

		dir := t.TempDir()
		groups := []*model.Group{{ID: "stale-id", Name: "g"}}
		data, err := json.Marshal(groups)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "postGroups.json"), data, 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := snap.Restore(ctx, dir, blog.RestoreOptions{}); err != nil {
			t.Fatalf("Restore: %v", err)
		}

		group, err := st.FindGroupByName(ctx, "g")
		if err != nil || group == nil {
			t.Fatalf("FindGroupByName: group=%v err=%v", group, err)
		}
		if group.ID == "stale-id" {
			t.Error("restored group kept its snapshot identifier")
		}
	})

	t.Run("corrupt snapshot aborts", func(t *testing.T) {
		_, snap := newSnapStore(t)
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "posts.json"), []byte("{nope"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := snap.Restore(context.Background(), dir, blog.RestoreOptions{}); err == nil {
			t.Error("Restore succeeded on a corrupt snapshot")
		}
	})
}
