package blog_test

import (
	"context"
	"testing"

	"blogback/internal/blog"
	"blogback/internal/model"
	"blogback/internal/store"
	"blogback/internal/testutil"
)

// countingTracker counts RecordChange calls.
type countingTracker struct {
	changes int
}

func (c *countingTracker) RecordChange() { c.changes++ }

func TestTrackedStore(t *testing.T) {
	ctx := context.Background()

	newTracked := func() (*blog.TrackedStore, *countingTracker) {
		tracker := &countingTracker{}
		st := store.NewMemoryStore(testutil.FixedClock(), testutil.NewStubIDGenerator())
		return blog.NewTrackedStore(st, tracker), tracker
	}

	t.Run("mutations are recorded", func(t *testing.T) {
		ts, tracker := newTracked()

		post, err := ts.CreatePost(ctx, &model.Post{Title: "a"})
		if err != nil {
			t.Fatalf("CreatePost: %v", err)
		}
		if _, err := ts.UpdatePost(ctx, post.PostID, post); err != nil {
			t.Fatalf("UpdatePost: %v", err)
		}
		if err := ts.DeletePost(ctx, post.PostID); err != nil {
			t.Fatalf("DeletePost: %v", err)
		}
		if err := ts.InsertTopics(ctx, []*model.Topic{{Name: "go"}}); err != nil {
			t.Fatalf("InsertTopics: %v", err)
		}
		group, err := ts.CreateGroup(ctx, &model.Group{Name: "g"})
		if err != nil {
			t.Fatalf("CreateGroup: %v", err)
		}
		if err := ts.DeleteGroup(ctx, group.ID); err != nil {
			t.Fatalf("DeleteGroup: %v", err)
		}

		if tracker.changes != 6 {
			t.Errorf("changes = %d, want 6", tracker.changes)
		}
	})

	t.Run("reads are not recorded", func(t *testing.T) {
		ts, tracker := newTracked()

		if _, err := ts.ListPosts(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := ts.FindPost(ctx, 1); err != nil {
			t.Fatal(err)
		}
		if _, err := ts.ListTopics(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := ts.ListGroups(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := ts.FindGroupByName(ctx, "g"); err != nil {
			t.Fatal(err)
		}

		if tracker.changes != 0 {
			t.Errorf("changes = %d, want 0", tracker.changes)
		}
	})

	t.Run("failed mutations are not recorded", func(t *testing.T) {
		ts, tracker := newTracked()

		if err := ts.DeletePost(ctx, 42); err == nil {
			t.Fatal("DeletePost on empty store succeeded")
		}
		if tracker.changes != 0 {
			t.Errorf("changes = %d, want 0", tracker.changes)
		}
	})
}
