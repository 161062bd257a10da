// Package storage persists uploaded files, currently profile pictures.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
)

// Store is the contract for a file storage backend.
type Store interface {
	Save(ctx context.Context, path string, reader io.Reader) (int64, error)
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// AferoStore stores files on an afero filesystem: the OS filesystem in
// production, an in-memory one in tests.
type AferoStore struct {
	fs afero.Fs
}

// NewAferoStore creates a store over the given filesystem.
func NewAferoStore(fs afero.Fs) *AferoStore {
	return &AferoStore{fs: fs}
}

// NewDiskStore creates a store rooted at dir on the local disk.
func NewDiskStore(dir string) (*AferoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &AferoStore{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

// Save writes the reader's content to the given path, creating parent
// directories as needed, and returns the number of bytes written.
func (s *AferoStore) Save(ctx context.Context, p string, reader io.Reader) (int64, error) {
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return 0, err
	}
	f, err := s.fs.Create(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, reader)
}

// Get opens a stored file for reading.
func (s *AferoStore) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	return s.fs.OpenFile(p, os.O_RDONLY, 0)
}

// Delete removes a stored file.
func (s *AferoStore) Delete(ctx context.Context, p string) error {
	return s.fs.Remove(p)
}
