package blog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"blogback/internal/model"
)

// manifestFile is the manifest's name at the archive root.
const manifestFile = "manifest.json"

// manifestVersion is the archive format version written into new
// manifests. Bump when the archive layout changes.
const manifestVersion = "1.0"

// newManifest assembles a manifest from the export results.
func newManifest(backupDate time.Time, database string, counts model.CollectionCounts, files []model.ManifestFile) *model.Manifest {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return &model.Manifest{
		BackupDate:    backupDate,
		Version:       manifestVersion,
		Database:      database,
		Collections:   counts,
		Files:         len(files),
		TotalFileSize: total,
		FilesList:     files,
	}
}

// writeManifest writes the manifest into stagingDir. The manifest must
// be on disk before the archive is packed.
func writeManifest(stagingDir string, m *model.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stagingDir, manifestFile), data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// readManifest parses the manifest from an extracted staging directory.
// A missing or unparsable manifest makes the whole archive invalid.
func readManifest(stagingDir string) (*model.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(stagingDir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: manifest.json not found", ErrInvalidArchive)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest: %v", ErrInvalidArchive, err)
	}
	return &m, nil
}
