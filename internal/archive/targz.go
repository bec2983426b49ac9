// Package archive packs and unpacks backup staging trees as tar.gz
// archives.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"blogback/internal/blog"
)

// Extension is the archive filename extension.
const Extension = ".tar.gz"

// TarGz is the tar+gzip Archiver implementation. Archive entries use
// paths relative to the staging root, so an archive extracts to the
// same tree it was packed from.
type TarGz struct{}

// NewTarGz creates a TarGz archiver.
func NewTarGz() *TarGz { return &TarGz{} }

func (*TarGz) Extension() string { return Extension }

// Pack compresses the tree under srcDir into destPath. If anything
// fails the partial output file is removed.
func (*TarGz) Pack(srcDir, destPath string) (err error) {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(destPath)
		}
	}()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == srcDir {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("building header for %s: %w", rel, err)
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing header for %s: %w", rel, err)
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", rel, err)
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archiving %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err = tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar stream: %w", err)
	}
	if err = gw.Close(); err != nil {
		return fmt.Errorf("finalizing gzip stream: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("closing archive file: %w", err)
	}
	return nil
}

// Unpack extracts archivePath into destDir. Entry paths are validated
// so an archive cannot write outside destDir.
func (*TarGz) Unpack(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := securePath(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating parent for %s: %w", hdr.Name, err)
			}
			if err := extractFile(tr, target); err != nil {
				return fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
		default:
			// Symlinks, devices etc. never appear in our archives.
			return fmt.Errorf("unsupported tar entry type %d for %s", hdr.Typeflag, hdr.Name)
		}
	}
}

func extractFile(r io.Reader, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// securePath joins an archive entry name onto destDir, rejecting
// entries that would escape it.
func securePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if target != destDir && !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}

var _ blog.Archiver = (*TarGz)(nil)
