package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Local stores objects as files. Keys are paths relative to root
// (or to the working directory when root is empty).
type Local struct {
	root string
}

// NewLocal creates a file-backed Blob.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (s *Local) path(key string) string {
	if s.root == "" || filepath.IsAbs(key) {
		return filepath.Clean(key)
	}
	return filepath.Join(s.root, key)
}

// Get reads the whole file.
func (s *Local) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put writes to a temp file in the same directory and renames it over the target.
func (s *Local) Put(_ context.Context, key string, data []byte) error {
	target := s.path(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(target)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Stat returns size and modification time.
func (s *Local) Stat(_ context.Context, key string) (Info, error) {
	fi, err := os.Stat(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, err
	}
	return Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}
