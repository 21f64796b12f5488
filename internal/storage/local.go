package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects on local disk under <root>/<bucket>/<key>.
type LocalStore struct {
	root string
}

var _ BlobStore = (*LocalStore)(nil)

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (l *LocalStore) objectPath(bucket, key string) (string, error) {
	if strings.TrimSpace(bucket) == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(l.root, bucket, clean), nil
}

func (l *LocalStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	path, err := l.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("local get %s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("local get %s/%s: %w", bucket, key, err)
	}
	return f, nil
}

func (l *LocalStore) Put(_ context.Context, bucket, key string, r io.Reader, size int64) (err error) {
	path, err := l.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("create tmp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmpFile, r)
	if err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("write object: wrote %d bytes, want %d", n, size)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close tmp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("move object: %w", err)
	}
	return nil
}

func (l *LocalStore) Copy(ctx context.Context, bucket, srcKey, dstKey string) error {
	src, err := l.Get(ctx, bucket, srcKey)
	if err != nil {
		return err
	}
	defer src.Close()
	return l.Put(ctx, bucket, dstKey, src, -1)
}
