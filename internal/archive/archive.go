// Package archive bundles a directory subtree into a single zip file staged
// in a temporary location, preserving relative paths and empty directories so
// the tree shape survives extraction.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// timestampLayout names staged archives <dirname>_<timestamp>.zip so repeated
// runs never collide in the destination folder.
const timestampLayout = "20060102_150405"

// Builder writes staged archives. The zero value is not usable; use New.
type Builder struct {
	logger *slog.Logger

	// nowFunc is injectable for deterministic archive names in tests.
	nowFunc func() time.Time
}

// New creates a Builder.
func New(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{logger: logger, nowFunc: time.Now}
}

// Build compresses dir into a zip staged under the process temp directory.
// It returns the staged path and the display name the archive should carry
// remotely (<dirname>_<timestamp>.zip). The caller owns the staged file and
// must remove it when done, on success and failure alike.
//
// Entries are written in lexicographic order of relative path (filepath.WalkDir
// guarantees this), so identical trees produce identically-ordered archives.
// Empty directories get explicit zero-length entries.
func (b *Builder) Build(dir string) (stagedPath, name string, err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", "", fmt.Errorf("archive: reading source %s: %w", dir, err)
	}

	if !info.IsDir() {
		return "", "", fmt.Errorf("archive: source %s is not a directory", dir)
	}

	name = fmt.Sprintf("%s_%s.zip", filepath.Base(dir), b.nowFunc().Format(timestampLayout))

	staged, err := os.CreateTemp("", "driveput-*.zip")
	if err != nil {
		return "", "", fmt.Errorf("archive: creating staged file: %w", err)
	}

	stagedPath = staged.Name()

	if err := b.writeArchive(staged, dir); err != nil {
		staged.Close()
		_ = os.Remove(stagedPath)

		return "", "", err
	}

	if err := staged.Close(); err != nil {
		_ = os.Remove(stagedPath)

		return "", "", fmt.Errorf("archive: closing staged file: %w", err)
	}

	b.logger.Info("archive staged",
		slog.String("source", dir),
		slog.String("path", stagedPath),
		slog.String("name", name),
	)

	return stagedPath, name, nil
}

func (b *Builder) writeArchive(w io.Writer, dir string) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("archive: walking %s: %w", path, walkErr)
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return fmt.Errorf("archive: relativizing %s: %w", path, relErr)
		}

		if rel == "." {
			return nil
		}

		// Zip paths are always forward-slashed.
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			return b.addDirEntry(zw, path, rel)
		}

		if !d.Type().IsRegular() {
			b.logger.Debug("skipping non-regular file", slog.String("path", path))

			return nil
		}

		return b.addFileEntry(zw, path, rel)
	})
	if err != nil {
		zw.Close()

		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("archive: finalizing zip: %w", err)
	}

	return nil
}

// addDirEntry writes an explicit directory entry so empty directories are
// preserved on extraction.
func (b *Builder) addDirEntry(zw *zip.Writer, path, rel string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("archive: stating %s: %w", path, err)
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("archive: building header for %s: %w", path, err)
	}

	hdr.Name = rel + "/"
	hdr.Method = zip.Store

	if _, err := zw.CreateHeader(hdr); err != nil {
		return fmt.Errorf("archive: writing directory entry %s: %w", rel, err)
	}

	return nil
}

func (b *Builder) addFileEntry(zw *zip.Writer, path, rel string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("archive: stating %s: %w", path, err)
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("archive: building header for %s: %w", path, err)
	}

	hdr.Name = rel
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("archive: creating entry %s: %w", rel, err)
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive: opening %s: %w", path, err)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("archive: compressing %s: %w", path, err)
	}

	return nil
}
