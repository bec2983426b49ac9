package blog

import (
	"context"

	"blogback/internal/model"
)

// ChangeTracker receives a signal whenever the store is mutated.
// *Scheduler satisfies it.
type ChangeTracker interface {
	RecordChange()
}

// TrackedStore wraps a Store and marks the tracker dirty on every
// mutating call, after the underlying call succeeds. Reads pass
// through untouched.
type TrackedStore struct {
	Store
	tracker ChangeTracker
}

// NewTrackedStore wraps store so mutations are reported to tracker.
func NewTrackedStore(store Store, tracker ChangeTracker) *TrackedStore {
	return &TrackedStore{Store: store, tracker: tracker}
}

func (t *TrackedStore) track(err error) error {
	if err == nil {
		t.tracker.RecordChange()
	}
	return err
}

func (t *TrackedStore) CreatePost(ctx context.Context, post *model.Post) (*model.Post, error) {
	p, err := t.Store.CreatePost(ctx, post)
	return p, t.track(err)
}

func (t *TrackedStore) UpdatePost(ctx context.Context, postID int, post *model.Post) (*model.Post, error) {
	p, err := t.Store.UpdatePost(ctx, postID, post)
	return p, t.track(err)
}

func (t *TrackedStore) DeletePost(ctx context.Context, postID int) error {
	return t.track(t.Store.DeletePost(ctx, postID))
}

func (t *TrackedStore) DeleteAllPosts(ctx context.Context) error {
	return t.track(t.Store.DeleteAllPosts(ctx))
}

func (t *TrackedStore) InsertTopics(ctx context.Context, topics []*model.Topic) error {
	return t.track(t.Store.InsertTopics(ctx, topics))
}

func (t *TrackedStore) DeleteAllTopics(ctx context.Context) error {
	return t.track(t.Store.DeleteAllTopics(ctx))
}

func (t *TrackedStore) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	g, err := t.Store.CreateGroup(ctx, group)
	return g, t.track(err)
}

func (t *TrackedStore) UpdateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	g, err := t.Store.UpdateGroup(ctx, group)
	return g, t.track(err)
}

func (t *TrackedStore) DeleteGroup(ctx context.Context, id string) error {
	return t.track(t.Store.DeleteGroup(ctx, id))
}

func (t *TrackedStore) DeleteAllGroups(ctx context.Context) error {
	return t.track(t.Store.DeleteAllGroups(ctx))
}

var _ Store = (*TrackedStore)(nil)
