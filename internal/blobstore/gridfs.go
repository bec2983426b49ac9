package blobstore

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"blogback/internal/blog"
	"blogback/internal/model"
)

// GridFSBlobStore stores blobs in a MongoDB GridFS bucket. Blob ids
// are hex-encoded ObjectIDs assigned by the bucket on upload.
type GridFSBlobStore struct {
	client *mongo.Client
	bucket *gridfs.Bucket
	logger blog.Logger
}

// gridfsFile is the fs.files document shape we read back.
type gridfsFile struct {
	ID         primitive.ObjectID `bson:"_id"`
	Filename   string             `bson:"filename"`
	Length     int64              `bson:"length"`
	UploadDate primitive.DateTime `bson:"uploadDate"`
	Metadata   struct {
		ContentType string            `bson:"contentType"`
		Extra       map[string]string `bson:"extra,omitempty"`
	} `bson:"metadata"`
}

// NewGridFSBlobStore connects to MongoDB and opens a GridFS bucket in
// the given database. An empty bucketName selects the default ("fs").
func NewGridFSBlobStore(ctx context.Context, uri, database, bucketName string, logger blog.Logger) (*GridFSBlobStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	bucketOpts := options.GridFSBucket()
	if bucketName != "" {
		bucketOpts.SetName(bucketName)
	}
	bucket, err := gridfs.NewBucket(client.Database(database), bucketOpts)
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("opening gridfs bucket: %w", err)
	}

	logger.Debug("connected to gridfs", "database", database, "bucket", bucketName)
	return &GridFSBlobStore{client: client, bucket: bucket, logger: logger}, nil
}

// List returns descriptors for every stored blob, sorted by upload
// date descending.
func (s *GridFSBlobStore) List(ctx context.Context) ([]*model.BlobInfo, error) {
	s.applyDeadline(ctx)

	cursor, err := s.bucket.Find(bson.D{})
	if err != nil {
		return nil, fmt.Errorf("listing gridfs files: %w", err)
	}
	defer cursor.Close(ctx)

	var infos []*model.BlobInfo
	for cursor.Next(ctx) {
		var f gridfsFile
		if err := cursor.Decode(&f); err != nil {
			return nil, fmt.Errorf("decoding gridfs file: %w", err)
		}
		infos = append(infos, f.toBlobInfo())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating gridfs files: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].UploadDate.After(infos[j].UploadDate) })
	return infos, nil
}

// Find returns the descriptor for one blob.
func (s *GridFSBlobStore) Find(ctx context.Context, id string) (*model.BlobInfo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: blob %s", blog.ErrNotFound, id)
	}
	s.applyDeadline(ctx)

	cursor, err := s.bucket.Find(bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return nil, fmt.Errorf("finding gridfs file %s: %w", id, err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, fmt.Errorf("finding gridfs file %s: %w", id, err)
		}
		return nil, fmt.Errorf("%w: blob %s", blog.ErrNotFound, id)
	}

	var f gridfsFile
	if err := cursor.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding gridfs file %s: %w", id, err)
	}
	return f.toBlobInfo(), nil
}

// Download writes the blob payload to w.
func (s *GridFSBlobStore) Download(ctx context.Context, id string, w io.Writer) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: blob %s", blog.ErrNotFound, id)
	}
	s.applyDeadline(ctx)

	if _, err := s.bucket.DownloadToStream(oid, w); err != nil {
		if err == gridfs.ErrFileNotFound {
			return fmt.Errorf("%w: blob %s", blog.ErrNotFound, id)
		}
		return fmt.Errorf("downloading blob %s: %w", id, err)
	}
	return nil
}

// Upload stores a new blob from r and returns the assigned id.
func (s *GridFSBlobStore) Upload(ctx context.Context, filename, contentType string, metadata map[string]string, r io.Reader) (string, error) {
	s.applyDeadline(ctx)

	meta := bson.M{"contentType": contentType}
	if len(metadata) > 0 {
		meta["extra"] = metadata
	}

	oid, err := s.bucket.UploadFromStream(filename, r, options.GridFSUpload().SetMetadata(meta))
	if err != nil {
		return "", fmt.Errorf("uploading blob %s: %w", filename, err)
	}
	return oid.Hex(), nil
}

// DeleteAll drops the whole bucket, removing every blob.
func (s *GridFSBlobStore) DeleteAll(ctx context.Context) error {
	s.applyDeadline(ctx)

	if err := s.bucket.Drop(); err != nil {
		return fmt.Errorf("dropping gridfs bucket: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *GridFSBlobStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// applyDeadline forwards a context deadline to the bucket, which does
// not take contexts directly.
func (s *GridFSBlobStore) applyDeadline(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		s.bucket.SetReadDeadline(deadline)
		s.bucket.SetWriteDeadline(deadline)
	}
}

func (f *gridfsFile) toBlobInfo() *model.BlobInfo {
	return &model.BlobInfo{
		ID:          f.ID.Hex(),
		Filename:    f.Filename,
		ContentType: f.Metadata.ContentType,
		Length:      f.Length,
		UploadDate:  f.UploadDate.Time(),
		Metadata:    f.Metadata.Extra,
	}
}

// Compile-time check that GridFSBlobStore implements blog.BlobStore
var _ blog.BlobStore = (*GridFSBlobStore)(nil)
