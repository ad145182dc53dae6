package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// BlobStore holds the content bytes behind stored-file metadata rows.
type BlobStore interface {
	Put(ctx context.Context, key string, content []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// LocalBlobStore keeps blobs as flat files in a directory.
type LocalBlobStore struct {
	dir string
}

// NewLocalBlobStore creates the directory if needed.
func NewLocalBlobStore(dir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalBlobStore{dir: dir}, nil
}

// Put writes a blob under the given key.
func (s *LocalBlobStore) Put(_ context.Context, key string, content []byte) error {
	return os.WriteFile(filepath.Join(s.dir, key), content, 0o644)
}

// Get reads a blob back.
func (s *LocalBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, key))
}

// Delete removes a blob, idempotent on missing keys.
func (s *LocalBlobStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
