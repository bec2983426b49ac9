package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"blogback/internal/blog"
	"blogback/internal/model"
)

const (
	postsCollection  = "posts"
	topicsCollection = "topics"
	groupsCollection = "postGroups"
)

// MongoStore is a Store backed by a MongoDB database. Document ids are
// store-generated strings rather than ObjectIDs so snapshots stay
// portable across backends.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	idgen  blog.IDGenerator
	clock  blog.Clock
	logger blog.Logger
}

// NewMongoStore connects to the MongoDB instance at uri and opens the
// given database. It verifies connectivity and ensures the unique
// group-name index before returning.
func NewMongoStore(ctx context.Context, uri, database string, clock blog.Clock, idgen blog.IDGenerator, logger blog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &MongoStore{
		client: client,
		db:     client.Database(database),
		idgen:  idgen,
		clock:  clock,
		logger: logger,
	}

	_, err = s.groups().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "groupName", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ensuring group name index: %w", err)
	}

	logger.Debug("connected to mongodb", "database", database)
	return s, nil
}

func (s *MongoStore) posts() *mongo.Collection  { return s.db.Collection(postsCollection) }
func (s *MongoStore) topics() *mongo.Collection { return s.db.Collection(topicsCollection) }
func (s *MongoStore) groups() *mongo.Collection { return s.db.Collection(groupsCollection) }

// ListPosts returns all posts sorted by postId descending.
func (s *MongoStore) ListPosts(ctx context.Context) ([]*model.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "postId", Value: -1}})
	cursor, err := s.posts().Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	posts := []*model.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decoding posts: %w", err)
	}
	return posts, nil
}

// FindPost returns the post with the given postId, or (nil, nil).
func (s *MongoStore) FindPost(ctx context.Context, postID int) (*model.Post, error) {
	var post model.Post
	err := s.posts().FindOne(ctx, bson.D{{Key: "postId", Value: postID}}).Decode(&post)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding post %d: %w", postID, err)
	}
	return &post, nil
}

// CreatePost inserts a post. A zero PostID is replaced with the next
// free postId; a non-zero PostID is preserved.
func (s *MongoStore) CreatePost(ctx context.Context, post *model.Post) (*model.Post, error) {
	stored := *post
	stored.ID = s.idgen.New()
	if stored.PostID == 0 {
		next, err := s.nextPostID(ctx)
		if err != nil {
			return nil, err
		}
		stored.PostID = next
	}

	if _, err := s.posts().InsertOne(ctx, &stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: postId %d", blog.ErrConflict, stored.PostID)
		}
		return nil, fmt.Errorf("inserting post: %w", err)
	}
	return &stored, nil
}

// UpdatePost replaces the post with the given postId.
func (s *MongoStore) UpdatePost(ctx context.Context, postID int, post *model.Post) (*model.Post, error) {
	existing, err := s.FindPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: post %d", blog.ErrNotFound, postID)
	}

	stored := *post
	stored.ID = existing.ID
	stored.PostID = postID

	_, err = s.posts().ReplaceOne(ctx, bson.D{{Key: "postId", Value: postID}}, &stored)
	if err != nil {
		return nil, fmt.Errorf("updating post %d: %w", postID, err)
	}
	return &stored, nil
}

// DeletePost removes the post with the given postId.
func (s *MongoStore) DeletePost(ctx context.Context, postID int) error {
	result, err := s.posts().DeleteOne(ctx, bson.D{{Key: "postId", Value: postID}})
	if err != nil {
		return fmt.Errorf("deleting post %d: %w", postID, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: post %d", blog.ErrNotFound, postID)
	}
	return nil
}

// DeleteAllPosts removes every post.
func (s *MongoStore) DeleteAllPosts(ctx context.Context) error {
	if _, err := s.posts().DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("clearing posts: %w", err)
	}
	return nil
}

// ListTopics returns all topics sorted by topicOrder ascending.
func (s *MongoStore) ListTopics(ctx context.Context) ([]*model.Topic, error) {
	opts := options.Find().SetSort(bson.D{{Key: "topicOrder", Value: 1}})
	cursor, err := s.topics().Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}

	topics := []*model.Topic{}
	if err := cursor.All(ctx, &topics); err != nil {
		return nil, fmt.Errorf("decoding topics: %w", err)
	}
	return topics, nil
}

// InsertTopics bulk-inserts topics.
func (s *MongoStore) InsertTopics(ctx context.Context, topics []*model.Topic) error {
	if len(topics) == 0 {
		return nil
	}

	docs := make([]interface{}, len(topics))
	for i, t := range topics {
		stored := *t
		if stored.ID == "" {
			stored.ID = s.idgen.New()
		}
		docs[i] = &stored
	}

	if _, err := s.topics().InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("inserting topics: %w", err)
	}
	return nil
}

// DeleteAllTopics removes every topic.
func (s *MongoStore) DeleteAllTopics(ctx context.Context) error {
	if _, err := s.topics().DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("clearing topics: %w", err)
	}
	return nil
}

// ListGroups returns all groups sorted by creation date descending.
func (s *MongoStore) ListGroups(ctx context.Context) ([]*model.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdDate", Value: -1}})
	cursor, err := s.groups().Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	groups := []*model.Group{}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decoding groups: %w", err)
	}
	return groups, nil
}

// FindGroupByName returns the group with the given name, or (nil, nil).
func (s *MongoStore) FindGroupByName(ctx context.Context, name string) (*model.Group, error) {
	var group model.Group
	err := s.groups().FindOne(ctx, bson.D{{Key: "groupName", Value: name}}).Decode(&group)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding group %q: %w", name, err)
	}
	return &group, nil
}

// CreateGroup inserts a group, assigning an id and timestamps.
func (s *MongoStore) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	stored := *group
	stored.ID = s.idgen.New()
	now := s.clock.Now()
	if stored.CreatedDate.IsZero() {
		stored.CreatedDate = now
	}
	stored.UpdatedDate = now

	if _, err := s.groups().InsertOne(ctx, &stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: group name %q", blog.ErrConflict, group.Name)
		}
		return nil, fmt.Errorf("inserting group: %w", err)
	}
	return &stored, nil
}

// UpdateGroup updates a group by id.
func (s *MongoStore) UpdateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	var existing model.Group
	err := s.groups().FindOne(ctx, bson.D{{Key: "_id", Value: group.ID}}).Decode(&existing)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: group %s", blog.ErrNotFound, group.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("finding group %s: %w", group.ID, err)
	}

	stored := *group
	stored.CreatedDate = existing.CreatedDate
	stored.UpdatedDate = s.clock.Now()

	_, err = s.groups().ReplaceOne(ctx, bson.D{{Key: "_id", Value: group.ID}}, &stored)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: group name %q", blog.ErrConflict, group.Name)
		}
		return nil, fmt.Errorf("updating group %s: %w", group.ID, err)
	}
	return &stored, nil
}

// DeleteGroup removes a group by id.
func (s *MongoStore) DeleteGroup(ctx context.Context, id string) error {
	result, err := s.groups().DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("deleting group %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: group %s", blog.ErrNotFound, id)
	}
	return nil
}

// DeleteAllGroups removes every group.
func (s *MongoStore) DeleteAllGroups(ctx context.Context) error {
	if _, err := s.groups().DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("clearing groups: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// nextPostID returns max(postId)+1 across the posts collection, or 1
// when the collection is empty.
func (s *MongoStore) nextPostID(ctx context.Context) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "postId", Value: -1}})
	var top model.Post
	err := s.posts().FindOne(ctx, bson.D{}, opts).Decode(&top)
	if err == mongo.ErrNoDocuments {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("determining next postId: %w", err)
	}
	return top.PostID + 1, nil
}

// Compile-time check that MongoStore implements blog.Store
var _ blog.Store = (*MongoStore)(nil)
