package model

import "time"

// Post is a blog post as stored in the posts collection.
// ID is the store-assigned document id; PostID is the stable integer
// identity used by the public API and preserved across restores.
type Post struct {
	ID              string         `json:"_id,omitempty" bson:"_id,omitempty"`
	PostID          int            `json:"postId" bson:"postId"`
	Title           string         `json:"postTitle" bson:"postTitle"`
	Authors         []string       `json:"postAuthor" bson:"postAuthor"`
	Date            string         `json:"postDate" bson:"postDate"`
	Content         string         `json:"postContent" bson:"postContent"`
	ContentType     string         `json:"contentType" bson:"contentType"`
	Topics          []string       `json:"postTopics" bson:"postTopics"`
	IsPublished     bool           `json:"isPublished" bson:"isPublished"`
	ShowGalleryView bool           `json:"showGalleryView,omitempty" bson:"showGalleryView,omitempty"`
	Group           *GroupRef      `json:"postGroup,omitempty" bson:"postGroup,omitempty"`
	AttachedFiles   []AttachedFile `json:"attachedFiles,omitempty" bson:"attachedFiles,omitempty"`
}

// GroupRef is a post's denormalized reference to its group.
// GroupID points at a Group document and may dangle mid-restore until
// the restore engine re-resolves it by group name.
type GroupRef struct {
	GroupID    string `json:"groupId" bson:"groupId"`
	GroupName  string `json:"groupName" bson:"groupName"`
	GroupColor string `json:"groupColor,omitempty" bson:"groupColor,omitempty"`
	Sequence   int    `json:"sequence" bson:"sequence"`
}

// AttachedFile is one entry in a post's attachment list.
// FileID refers to a blob in the blob store. Sequence is a tri-state:
// nil means "no explicit ordering", which is omitted on the wire.
type AttachedFile struct {
	Filename       string    `json:"filename" bson:"filename"`
	FileID         string    `json:"fileId" bson:"fileId"`
	UploadDate     time.Time `json:"uploadDate" bson:"uploadDate"`
	FileType       string    `json:"fileType" bson:"fileType"`
	AttachmentType string    `json:"attachmentType,omitempty" bson:"attachmentType,omitempty"`
	Sequence       *int      `json:"sequence,omitempty" bson:"sequence,omitempty"`
}

// Topic is one entry in the topic set. Topics are functionally unique
// by name and are replaced as a whole set rather than mutated.
type Topic struct {
	ID    string `json:"_id,omitempty" bson:"_id,omitempty"`
	Name  string `json:"topicName" bson:"topicName"`
	Color string `json:"topicColor" bson:"topicColor"`
	Order int    `json:"topicOrder" bson:"topicOrder"`
}

// Group is a post group. Name is unique. Groups do not enumerate their
// members; posts point back via GroupRef.
type Group struct {
	ID          string    `json:"_id,omitempty" bson:"_id,omitempty"`
	Name        string    `json:"groupName" bson:"groupName"`
	Description string    `json:"groupDescription" bson:"groupDescription"`
	Color       string    `json:"groupColor" bson:"groupColor"`
	CreatedDate time.Time `json:"createdDate" bson:"createdDate"`
	UpdatedDate time.Time `json:"updatedDate" bson:"updatedDate"`
}

// BlobInfo describes a blob held by the blob store. It doubles as the
// .meta.json sidecar written next to each blob payload in an archive.
type BlobInfo struct {
	ID          string            `json:"_id"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"contentType"`
	Length      int64             `json:"length"`
	UploadDate  time.Time         `json:"uploadDate"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CollectionCounts holds per-collection record counts for a manifest.
type CollectionCounts struct {
	Posts  int `json:"posts"`
	Topics int `json:"topics"`
	Groups int `json:"postGroups"`
}

// ManifestFile is one blob entry in the manifest inventory.
type ManifestFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Manifest records the provenance and contents of a backup archive.
// It is written to manifest.json at the archive root and validated by
// the importer before any restore step runs.
type Manifest struct {
	BackupDate    time.Time        `json:"backupDate"`
	Version       string           `json:"version"`
	Database      string           `json:"database"`
	Collections   CollectionCounts `json:"collections"`
	Files         int              `json:"files"`
	TotalFileSize int64            `json:"totalFileSize"`
	FilesList     []ManifestFile   `json:"filesList"`
}

// Operation is one recorded backup or restore run.
type Operation struct {
	ID         int64
	Operation  string // "backup", "scheduled-backup", "restore"
	Archive    string
	Status     string // "success" or "error"
	Message    string
	StartedAt  time.Time
	FinishedAt *time.Time
}
