package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"blogback/internal/blog"
	"blogback/internal/model"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It keeps every collection in a map, making it useful for testing and
// for running without a database server. Safe for concurrent use.
type MemoryStore struct {
	clock blog.Clock
	idgen blog.IDGenerator

	posts  map[int]*model.Post // postId -> post
	topics map[string]*model.Topic
	groups map[string]*model.Group
	mu     sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(clock blog.Clock, idgen blog.IDGenerator) *MemoryStore {
	return &MemoryStore{
		clock:  clock,
		idgen:  idgen,
		posts:  make(map[int]*model.Post),
		topics: make(map[string]*model.Topic),
		groups: make(map[string]*model.Group),
	}
}

// ListPosts returns all posts sorted by postId descending.
func (m *MemoryStore) ListPosts(ctx context.Context) ([]*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	posts := make([]*model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		posts = append(posts, clonePost(p))
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].PostID > posts[j].PostID })
	return posts, nil
}

// FindPost returns the post with the given postId, or (nil, nil).
func (m *MemoryStore) FindPost(ctx context.Context, postID int) (*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[postID]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

// CreatePost inserts a post, assigning a document id. A zero PostID is
// replaced with the next free postId; a non-zero PostID is preserved.
func (m *MemoryStore) CreatePost(ctx context.Context, post *model.Post) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := clonePost(post)
	stored.ID = m.idgen.New()
	if stored.PostID == 0 {
		stored.PostID = m.nextPostID()
	}
	if _, exists := m.posts[stored.PostID]; exists {
		return nil, fmt.Errorf("%w: postId %d", blog.ErrConflict, stored.PostID)
	}

	m.posts[stored.PostID] = stored
	return clonePost(stored), nil
}

// UpdatePost replaces the post with the given postId.
func (m *MemoryStore) UpdatePost(ctx context.Context, postID int, post *model.Post) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.posts[postID]
	if !ok {
		return nil, fmt.Errorf("%w: post %d", blog.ErrNotFound, postID)
	}

	stored := clonePost(post)
	stored.ID = existing.ID
	stored.PostID = postID
	m.posts[postID] = stored
	return clonePost(stored), nil
}

// DeletePost removes the post with the given postId.
func (m *MemoryStore) DeletePost(ctx context.Context, postID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[postID]; !ok {
		return fmt.Errorf("%w: post %d", blog.ErrNotFound, postID)
	}
	delete(m.posts, postID)
	return nil
}

// DeleteAllPosts removes every post.
func (m *MemoryStore) DeleteAllPosts(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.posts = make(map[int]*model.Post)
	return nil
}

// ListTopics returns all topics sorted by topicOrder ascending.
func (m *MemoryStore) ListTopics(ctx context.Context) ([]*model.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	topics := make([]*model.Topic, 0, len(m.topics))
	for _, t := range m.topics {
		copied := *t
		topics = append(topics, &copied)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Order < topics[j].Order })
	return topics, nil
}

// InsertTopics bulk-inserts topics.
func (m *MemoryStore) InsertTopics(ctx context.Context, topics []*model.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range topics {
		copied := *t
		if copied.ID == "" {
			copied.ID = m.idgen.New()
		}
		m.topics[copied.ID] = &copied
	}
	return nil
}

// DeleteAllTopics removes every topic.
func (m *MemoryStore) DeleteAllTopics(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.topics = make(map[string]*model.Topic)
	return nil
}

// ListGroups returns all groups sorted by creation date descending.
func (m *MemoryStore) ListGroups(ctx context.Context) ([]*model.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groups := make([]*model.Group, 0, len(m.groups))
	for _, g := range m.groups {
		copied := *g
		groups = append(groups, &copied)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].CreatedDate.After(groups[j].CreatedDate) })
	return groups, nil
}

// FindGroupByName returns the group with the given name, or (nil, nil).
func (m *MemoryStore) FindGroupByName(ctx context.Context, name string) (*model.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, g := range m.groups {
		if g.Name == name {
			copied := *g
			return &copied, nil
		}
	}
	return nil, nil
}

// CreateGroup inserts a group, assigning an id and timestamps.
func (m *MemoryStore) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range m.groups {
		if g.Name == group.Name {
			return nil, fmt.Errorf("%w: group name %q", blog.ErrConflict, group.Name)
		}
	}

	copied := *group
	copied.ID = m.idgen.New()
	now := m.clock.Now()
	if copied.CreatedDate.IsZero() {
		copied.CreatedDate = now
	}
	copied.UpdatedDate = now
	m.groups[copied.ID] = &copied

	result := copied
	return &result, nil
}

// UpdateGroup updates a group by id.
func (m *MemoryStore) UpdateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.groups[group.ID]
	if !ok {
		return nil, fmt.Errorf("%w: group %s", blog.ErrNotFound, group.ID)
	}
	for id, g := range m.groups {
		if id != group.ID && g.Name == group.Name {
			return nil, fmt.Errorf("%w: group name %q", blog.ErrConflict, group.Name)
		}
	}

	copied := *group
	copied.CreatedDate = existing.CreatedDate
	copied.UpdatedDate = m.clock.Now()
	m.groups[copied.ID] = &copied

	result := copied
	return &result, nil
}

// DeleteGroup removes a group by id.
func (m *MemoryStore) DeleteGroup(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[id]; !ok {
		return fmt.Errorf("%w: group %s", blog.ErrNotFound, id)
	}
	delete(m.groups, id)
	return nil
}

// DeleteAllGroups removes every group.
func (m *MemoryStore) DeleteAllGroups(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.groups = make(map[string]*model.Group)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// nextPostID returns max(postId)+1, starting at 1. Caller holds mu.
func (m *MemoryStore) nextPostID() int {
	next := 1
	for id := range m.posts {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// clonePost deep-copies a post so callers never alias stored state.
func clonePost(p *model.Post) *model.Post {
	copied := *p
	if p.Authors != nil {
		copied.Authors = append([]string(nil), p.Authors...)
	}
	if p.Topics != nil {
		copied.Topics = append([]string(nil), p.Topics...)
	}
	if p.Group != nil {
		group := *p.Group
		copied.Group = &group
	}
	if p.AttachedFiles != nil {
		copied.AttachedFiles = make([]model.AttachedFile, len(p.AttachedFiles))
		for i, f := range p.AttachedFiles {
			copied.AttachedFiles[i] = f
			if f.Sequence != nil {
				seq := *f.Sequence
				copied.AttachedFiles[i].Sequence = &seq
			}
		}
	}
	return &copied
}

// Compile-time check that MemoryStore implements blog.Store
var _ blog.Store = (*MemoryStore)(nil)
