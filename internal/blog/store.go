package blog

import (
	"context"

	"blogback/internal/model"
)

// Store provides access to the document collections (posts, topics,
// groups). Find methods return (nil, nil) when no record matches;
// callers that need a hard failure translate that into ErrNotFound.
type Store interface {
	// Post operations

	// ListPosts returns all posts sorted by postId descending.
	ListPosts(ctx context.Context) ([]*model.Post, error)

	// FindPost returns the post with the given postId, or (nil, nil).
	FindPost(ctx context.Context, postID int) (*model.Post, error)

	// CreatePost inserts a post. The store assigns the document id.
	// If post.PostID is zero the store assigns the next free postId;
	// a non-zero PostID is preserved (restore path).
	CreatePost(ctx context.Context, post *model.Post) (*model.Post, error)

	// UpdatePost replaces the post with the given postId.
	UpdatePost(ctx context.Context, postID int, post *model.Post) (*model.Post, error)

	// DeletePost removes the post with the given postId.
	// Returns ErrNotFound if no such post exists.
	DeletePost(ctx context.Context, postID int) error

	// DeleteAllPosts removes every post.
	DeleteAllPosts(ctx context.Context) error

	// Topic operations

	// ListTopics returns all topics sorted by topicOrder ascending.
	ListTopics(ctx context.Context) ([]*model.Topic, error)

	// InsertTopics bulk-inserts topics. The topic set is replaced as a
	// whole (DeleteAllTopics + InsertTopics), never mutated in place.
	InsertTopics(ctx context.Context, topics []*model.Topic) error

	// DeleteAllTopics removes every topic.
	DeleteAllTopics(ctx context.Context) error

	// Group operations

	// ListGroups returns all groups sorted by creation date descending.
	ListGroups(ctx context.Context) ([]*model.Group, error)

	// FindGroupByName returns the group with the given unique name,
	// or (nil, nil).
	FindGroupByName(ctx context.Context, name string) (*model.Group, error)

	// CreateGroup inserts a group. The store assigns the identifier.
	// Returns ErrConflict if the name is already in use.
	CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error)

	// UpdateGroup updates a group by id. Returns ErrNotFound if the
	// group does not exist and ErrConflict on a duplicate rename.
	UpdateGroup(ctx context.Context, group *model.Group) (*model.Group, error)

	// DeleteGroup removes a group by id. Returns ErrNotFound if absent.
	DeleteGroup(ctx context.Context, id string) error

	// DeleteAllGroups removes every group.
	DeleteAllGroups(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
