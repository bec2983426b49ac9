package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTarGzRoundTrip(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeTestFile(t, filepath.Join(src, "manifest.json"), "{}")
	writeTestFile(t, filepath.Join(src, "posts.json"), "[]")
	writeTestFile(t, filepath.Join(src, "files", "abc123"), "payload bytes")
	writeTestFile(t, filepath.Join(src, "files", "abc123.meta.json"), `{"filename":"cat.jpg"}`)

	archivePath := filepath.Join(t.TempDir(), "backup.tar.gz")
	a := NewTarGz()
	if err := a.Pack(src, archivePath); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	dest := t.TempDir()
	if err := a.Unpack(archivePath, dest); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	for rel, want := range map[string]string{
		"manifest.json":          "{}",
		"posts.json":             "[]",
		"files/abc123":           "payload bytes",
		"files/abc123.meta.json": `{"filename":"cat.jpg"}`,
	} {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("reading %s: %v", rel, err)
		}
		if string(got) != want {
			t.Errorf("%s: got %q, want %q", rel, got, want)
		}
	}
}

func TestTarGzPackMissingSource(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "backup.tar.gz")
	a := NewTarGz()
	err := a.Pack(filepath.Join(t.TempDir(), "nope"), archivePath)
	if err == nil {
		t.Fatal("expected error for missing source directory")
	}
	if _, statErr := os.Stat(archivePath); !os.IsNotExist(statErr) {
		t.Error("expected no archive file left behind after failed Pack")
	}
}

func TestTarGzUnpackRejectsCorruptArchive(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "bad.tar.gz")
	if err := os.WriteFile(archivePath, []byte("not a gzip stream"), 0644); err != nil {
		t.Fatal(err)
	}

	a := NewTarGz()
	if err := a.Unpack(archivePath, t.TempDir()); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
}

func TestSecurePathRejectsEscape(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	if _, err := securePath(dest, "../outside"); err == nil {
		t.Error("expected error for escaping entry")
	}
	if _, err := securePath(dest, "files/ok"); err != nil {
		t.Errorf("unexpected error for safe entry: %v", err)
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
