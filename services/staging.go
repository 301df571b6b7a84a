package services

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Staging manages the working directory uploads are written to before they are
// loaded. Each ingestion request gets its own batch directory under Root.
type Staging struct {
	Root string // absolute path of the staging folder
}

// NewStaging creates the staging folder if it does not exist.
func NewStaging(folder string) (*Staging, error) {
	if folder == "" {
		return nil, fmt.Errorf("staging folder not set")
	}
	absPath, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for staging folder: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("create staging folder: %w", err)
	}
	return &Staging{Root: absPath}, nil
}

// NewBatch creates an empty batch directory and returns its path.
func (s *Staging) NewBatch() (string, error) {
	dir := filepath.Join(s.Root, uuid.New().String())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create batch directory: %w", err)
	}
	return dir, nil
}

// sanitizeFilename keeps only the base name so an upload cannot escape dir
// (e.g. filename = "../../../etc/passwd").
func (s *Staging) sanitizeFilename(dir, filename string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == ".." || strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	cleanPath := filepath.Join(dir, base)
	if !strings.HasPrefix(cleanPath, s.Root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the staging folder", ErrInvalidFilename, filename)
	}
	return cleanPath, nil
}

// Write stores content as name inside the batch directory. Two uploads with
// the same base name in one batch are rejected with ErrInvalidFilename.
func (s *Staging) Write(dir, name string, content io.Reader) (string, error) {
	path, err := s.sanitizeFilename(dir, name)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w: more than one upload named %q", ErrInvalidFilename, filepath.Base(path))
	}
	if err != nil {
		return "", fmt.Errorf("failed to create file '%s': %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write file '%s': %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close file '%s': %w", filepath.Base(path), err)
	}
	return path, nil
}

// Files lists the regular files in a batch directory.
func (s *Staging) Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Remove deletes a batch directory and everything in it.
func (s *Staging) Remove(dir string) error {
	if filepath.Dir(dir) != s.Root {
		return fmt.Errorf("refusing to remove %s: not a batch of %s", dir, s.Root)
	}
	return os.RemoveAll(dir)
}
