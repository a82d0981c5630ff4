package ingest

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// isImageFile reports whether path looks like a camera snapshot. The
// cameras write plain JPEGs; the metadata extractor is filtered the same way.
func isImageFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jpg")
}

// underDir reports whether path is dir or lies below it.
func underDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// ListImageFiles walks the watched root and returns the absolute paths of
// all image files, excluding anything under the archive directory. The
// walk order is lexical, which keeps duplicate classification stable
// across runs.
func ListImageFiles(root, archiveDir string) ([]string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}
	archiveAbs, err := filepath.Abs(archiveDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive dir: %w", err)
	}

	var files []string
	err = filepath.WalkDir(rootAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if underDir(path, archiveAbs) {
				return filepath.SkipDir
			}
			return nil
		}
		if isImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan watch root: %w", err)
	}
	return files, nil
}

// Archiver moves finished files into the flat archive directory. A name
// clash is resolved by suffixing the current unix timestamp.
type Archiver struct {
	logger *slog.Logger
	dir    string
	now    func() time.Time
}

// NewArchiver creates an archiver targeting dir, creating it if needed.
func NewArchiver(dir string, logger *slog.Logger) (*Archiver, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("archive dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive dir: %w", err)
	}
	return &Archiver{logger: logger, dir: dir, now: time.Now}, nil
}

// Dir returns the archive directory.
func (a *Archiver) Dir() string {
	return a.dir
}

// Move relocates path into the archive directory and returns the final
// destination. Archive failures are logged by the caller; the pipeline
// treats them as non-fatal.
func (a *Archiver) Move(path string) (string, error) {
	dst := filepath.Join(a.dir, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(dst)
		base := strings.TrimSuffix(filepath.Base(dst), ext)
		dst = filepath.Join(a.dir, fmt.Sprintf("%s_%d%s", base, a.now().Unix(), ext))
	}

	if err := os.Rename(path, dst); err != nil {
		// Rename fails across filesystems; fall back to copy and remove.
		if copyErr := copyFile(path, dst); copyErr != nil {
			return "", fmt.Errorf("failed to archive %s: %w", filepath.Base(path), err)
		}
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to remove source after copy: %w", err)
		}
	}

	a.logger.Debug("archived file", "file", filepath.Base(path), "dest", dst)
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
