package blog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"blogback/internal/model"
)

// Snapshot file names inside a staging directory / archive.
const (
	postsFile  = "posts.json"
	topicsFile = "topics.json"
	groupsFile = "postGroups.json"
)

// JSONSnapshotter is the default Snapshotter backend. It serializes
// each collection to an indented JSON array with every field
// materialized, and performs group reference repair on restore.
type JSONSnapshotter struct {
	store  Store
	logger Logger
}

// NewJSONSnapshotter creates a JSONSnapshotter backed by the given store.
func NewJSONSnapshotter(store Store, logger Logger) *JSONSnapshotter {
	return &JSONSnapshotter{store: store, logger: logger}
}

// Export writes posts.json, topics.json and postGroups.json into
// stagingDir. Each collection comes from a single query, so each file
// is internally consistent; minor skew between files is tolerated.
func (s *JSONSnapshotter) Export(ctx context.Context, stagingDir string) (model.CollectionCounts, error) {
	var counts model.CollectionCounts

	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return counts, fmt.Errorf("listing posts: %w", err)
	}
	if err := writeSnapshot(filepath.Join(stagingDir, postsFile), posts); err != nil {
		return counts, err
	}
	counts.Posts = len(posts)

	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		return counts, fmt.Errorf("listing topics: %w", err)
	}
	if err := writeSnapshot(filepath.Join(stagingDir, topicsFile), topics); err != nil {
		return counts, err
	}
	counts.Topics = len(topics)

	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return counts, fmt.Errorf("listing groups: %w", err)
	}
	if err := writeSnapshot(filepath.Join(stagingDir, groupsFile), groups); err != nil {
		return counts, err
	}
	counts.Groups = len(groups)

	return counts, nil
}

// Restore loads the staged snapshots. Order matters: groups first, so
// that post group references can be re-resolved by name against the
// newly assigned group identifiers; then topics; then posts. A group
// reference that cannot be resolved is dropped, not fatal.
func (s *JSONSnapshotter) Restore(ctx context.Context, stagingDir string, opts RestoreOptions) (*RestoredCollections, error) {
	result := &RestoredCollections{}

	if opts.ClearExisting {
		if err := s.store.DeleteAllPosts(ctx); err != nil {
			return result, fmt.Errorf("clearing posts: %w", err)
		}
		if err := s.store.DeleteAllTopics(ctx); err != nil {
			return result, fmt.Errorf("clearing topics: %w", err)
		}
		if err := s.store.DeleteAllGroups(ctx); err != nil {
			return result, fmt.Errorf("clearing groups: %w", err)
		}
	}

	if err := s.restoreGroups(ctx, stagingDir, result); err != nil {
		return result, err
	}
	if err := s.restoreTopics(ctx, stagingDir, result); err != nil {
		return result, err
	}
	if err := s.restorePosts(ctx, stagingDir, result); err != nil {
		return result, err
	}

	return result, nil
}

func (s *JSONSnapshotter) restoreGroups(ctx context.Context, stagingDir string, result *RestoredCollections) error {
	var groups []*model.Group
	found, err := readSnapshot(filepath.Join(stagingDir, groupsFile), &groups)
	if err != nil || !found {
		return err
	}

	for _, g := range groups {
		// Strip the old identifier; the store assigns a new one.
		g.ID = ""
		if _, err := s.store.CreateGroup(ctx, g); err != nil {
			return fmt.Errorf("restoring group %q: %w", g.Name, err)
		}
		result.Groups++
	}

	s.logger.Info("groups restored", "count", result.Groups)
	return nil
}

func (s *JSONSnapshotter) restoreTopics(ctx context.Context, stagingDir string, result *RestoredCollections) error {
	var topics []*model.Topic
	found, err := readSnapshot(filepath.Join(stagingDir, topicsFile), &topics)
	if err != nil || !found {
		return err
	}

	for _, t := range topics {
		t.ID = ""
	}
	if err := s.store.InsertTopics(ctx, topics); err != nil {
		return fmt.Errorf("restoring topics: %w", err)
	}
	result.Topics = len(topics)

	s.logger.Info("topics restored", "count", result.Topics)
	return nil
}

func (s *JSONSnapshotter) restorePosts(ctx context.Context, stagingDir string, result *RestoredCollections) error {
	var posts []*model.Post
	found, err := readSnapshot(filepath.Join(stagingDir, postsFile), &posts)
	if err != nil || !found {
		return err
	}

	for _, p := range posts {
		p.ID = ""

		if p.Group != nil {
			group, err := s.store.FindGroupByName(ctx, p.Group.GroupName)
			if err != nil {
				return fmt.Errorf("resolving group %q: %w", p.Group.GroupName, err)
			}
			if group != nil {
				p.Group.GroupID = group.ID
			} else {
				// Best-effort repair: a reference to a group absent
				// from the snapshot is dropped, never a hard failure.
				s.logger.Warn("group reference unresolved, dropping",
					"post", p.PostID, "group", p.Group.GroupName)
				p.Group = nil
				result.UnresolvedRefs++
			}
		}

		inserted, err := s.store.CreatePost(ctx, p)
		if err != nil {
			return fmt.Errorf("restoring post %d: %w", p.PostID, err)
		}
		result.Posts = append(result.Posts, inserted)
	}

	s.logger.Info("posts restored", "count", len(result.Posts))
	return nil
}

// writeSnapshot marshals v as indented JSON and writes it to path.
func writeSnapshot(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readSnapshot unmarshals path into v. Returns found=false if the file
// does not exist; a missing snapshot file means an empty collection.
func readSnapshot(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

var _ Snapshotter = (*JSONSnapshotter)(nil)
