package store

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"blogback/internal/blog"
	"blogback/internal/model"
)

// dumpDir is the subdirectory of the staging tree that holds the
// native dump output.
const dumpDir = "dump"

// DumpSnapshotter snapshots the document collections by shelling out
// to mongodump/mongorestore instead of serializing JSON through the
// Store. Archives it produces carry a dump/ tree in place of the JSON
// snapshot files, so they can only be restored by the same backend.
//
// Because the native dump preserves document ids, restored group
// references never dangle and no reference repair is needed. The Store
// is still used for record counts and for the post list the restore
// engine feeds into attachment rewriting.
type DumpSnapshotter struct {
	store    blog.Store
	uri      string
	database string
	logger   blog.Logger

	// Tool binaries, overridable for non-standard installs.
	DumpBin    string
	RestoreBin string
}

// NewDumpSnapshotter creates a snapshotter that dumps the given
// database via the MongoDB command-line tools.
func NewDumpSnapshotter(store blog.Store, uri, database string, logger blog.Logger) *DumpSnapshotter {
	return &DumpSnapshotter{
		store:      store,
		uri:        uri,
		database:   database,
		logger:     logger,
		DumpBin:    "mongodump",
		RestoreBin: "mongorestore",
	}
}

// Export dumps the posts, topics and postGroups collections into
// stagingDir/dump and returns record counts taken from the Store.
func (d *DumpSnapshotter) Export(ctx context.Context, stagingDir string) (model.CollectionCounts, error) {
	var counts model.CollectionCounts

	posts, err := d.store.ListPosts(ctx)
	if err != nil {
		return counts, fmt.Errorf("counting posts: %w", err)
	}
	topics, err := d.store.ListTopics(ctx)
	if err != nil {
		return counts, fmt.Errorf("counting topics: %w", err)
	}
	groups, err := d.store.ListGroups(ctx)
	if err != nil {
		return counts, fmt.Errorf("counting groups: %w", err)
	}
	counts = model.CollectionCounts{Posts: len(posts), Topics: len(topics), Groups: len(groups)}

	out := filepath.Join(stagingDir, dumpDir)
	for _, collection := range []string{postsCollection, topicsCollection, groupsCollection} {
		args := []string{
			"--uri=" + d.uri,
			"--db=" + d.database,
			"--collection=" + collection,
			"--out=" + out,
		}
		if err := d.runTool(ctx, d.DumpBin, args); err != nil {
			return counts, fmt.Errorf("dumping collection %s: %w", collection, err)
		}
	}

	d.logger.Debug("native dump complete",
		"posts", counts.Posts, "topics", counts.Topics, "groups", counts.Groups)
	return counts, nil
}

// Restore loads stagingDir/dump back via mongorestore. ClearExisting
// maps to mongorestore's --drop flag.
func (d *DumpSnapshotter) Restore(ctx context.Context, stagingDir string, opts blog.RestoreOptions) (*blog.RestoredCollections, error) {
	args := []string{
		"--uri=" + d.uri,
		"--nsInclude=" + d.database + ".*",
	}
	if opts.ClearExisting {
		args = append(args, "--drop")
	}
	args = append(args, filepath.Join(stagingDir, dumpDir))

	if err := d.runTool(ctx, d.RestoreBin, args); err != nil {
		return nil, fmt.Errorf("restoring dump: %w", err)
	}

	result := &blog.RestoredCollections{}
	posts, err := d.store.ListPosts(ctx)
	if err != nil {
		return result, fmt.Errorf("listing restored posts: %w", err)
	}
	topics, err := d.store.ListTopics(ctx)
	if err != nil {
		return result, fmt.Errorf("listing restored topics: %w", err)
	}
	groups, err := d.store.ListGroups(ctx)
	if err != nil {
		return result, fmt.Errorf("listing restored groups: %w", err)
	}

	result.Posts = posts
	result.Topics = len(topics)
	result.Groups = len(groups)
	return result, nil
}

// runTool runs one dump-tool invocation, folding its output into the
// error on failure.
func (d *DumpSnapshotter) runTool(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", bin, err, detail)
		}
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}

// Compile-time check that DumpSnapshotter implements blog.Snapshotter
var _ blog.Snapshotter = (*DumpSnapshotter)(nil)
