package blog

// Archiver packs a staging directory tree into a single archive file
// and unpacks one back out. The archive file is the sole durable
// artifact of a backup; the staging tree is transient.
type Archiver interface {
	// Extension returns the archive filename extension including the
	// leading dot, e.g. ".tar.gz".
	Extension() string

	// Pack compresses the whole tree under srcDir into destPath.
	// On failure no usable file may be left at destPath.
	Pack(srcDir, destPath string) error

	// Unpack extracts archivePath into destDir, which must exist.
	Unpack(archivePath, destDir string) error
}
