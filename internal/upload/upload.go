// Package upload stores uploaded files on local disk.
package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nevindra/modulebox"
)

// subdir is where module files live below the storage root.
const subdir = "modules"

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets a structured logger for the storage.
func WithLogger(l *slog.Logger) Option {
	return func(s *Storage) { s.logger = l }
}

// Storage writes uploads below <root>/modules.
type Storage struct {
	root   string
	logger *slog.Logger
}

// New creates a Storage rooted at dir. The directory is created on first save.
func New(dir string, opts ...Option) *Storage {
	s := &Storage{root: dir, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save copies r to a new file named <uuid>_<base name of name> and returns
// its path. The extension of name is kept so the extractor can dispatch on it.
func (s *Storage) Save(name string, r io.Reader) (string, error) {
	dir := filepath.Join(s.root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("upload: create dir: %w", err)
	}

	path := filepath.Join(dir, modulebox.NewID()+"_"+BaseName(name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("upload: create file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("upload: write file: %w", err)
	}
	s.logger.Debug("upload: saved", "path", path, "bytes", n)
	return path, nil
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *Storage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("upload: remove failed", "path", path, "error", err)
		return fmt.Errorf("upload: remove: %w", err)
	}
	s.logger.Debug("upload: removed", "path", path)
	return nil
}

// BaseName strips any directory components a client put into a file name,
// for both slash styles. Names that reduce to nothing become "upload".
func BaseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}
