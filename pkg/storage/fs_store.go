package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FSStore is an ObjectStore rooted in a local directory. It backs
// single-machine runs and tests, where an object key maps to a relative
// path under the root.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed and returns a store over it.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

// Fetch copies the object to a temp file. A copy, not the original path, so
// callers can treat the result as scratch and delete it freely.
func (s *FSStore) Fetch(_ context.Context, key string) (string, error) {
	src, err := os.Open(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("fetch %s: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("fetch %s: %w", key, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "loom-fetch-*"+filepath.Ext(key))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy %s: %w", key, err)
	}
	return tmp.Name(), nil
}

// Store copies the local file under root/key, creating parent directories.
func (s *FSStore) Store(_ context.Context, localPath, key string) error {
	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Presign returns a file URL; there is nothing to sign locally.
func (s *FSStore) Presign(_ context.Context, key string, _ time.Duration) (string, error) {
	abs, err := filepath.Abs(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Delete removes the object file.
func (s *FSStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
