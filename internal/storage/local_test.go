package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readAll(t *testing.T, store BlobStore, bucket, key string) []byte {
	t.Helper()
	rd, err := store.Get(context.Background(), bucket, key)
	if err != nil {
		t.Fatalf("Get(%s/%s) error = %v", bucket, key, err)
	}
	defer rd.Close()
	data, err := io.ReadAll(rd)
	if err != nil {
		t.Fatalf("read %s/%s: %v", bucket, key, err)
	}
	return data
}

func TestLocalStore_PutGetCopy(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()
	payload := []byte("II*\x00 pretend tiff bytes")

	if err := store.Put(ctx, "imagery", "scenes/a.tif", bytes.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got := readAll(t, store, "imagery", "scenes/a.tif"); !bytes.Equal(got, payload) {
		t.Fatalf("Get() = %q, want %q", got, payload)
	}

	if err := store.Copy(ctx, "imagery", "scenes/a.tif", "trimmed/a.tif"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if got := readAll(t, store, "imagery", "trimmed/a.tif"); !bytes.Equal(got, payload) {
		t.Fatalf("copied object = %q, want %q", got, payload)
	}
}

func TestLocalStore_PutOverwrites(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()
	for _, body := range []string{"first", "second"} {
		if err := store.Put(ctx, "b", "k.tif", strings.NewReader(body), int64(len(body))); err != nil {
			t.Fatalf("Put(%q) error = %v", body, err)
		}
	}
	if got := string(readAll(t, store, "b", "k.tif")); got != "second" {
		t.Fatalf("Get() = %q, want %q", got, "second")
	}
}

func TestLocalStore_PutSizeMismatchLeavesNothing(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	err = store.Put(context.Background(), "b", "short.tif", strings.NewReader("abc"), 10)
	if err == nil {
		t.Fatalf("Put() error = nil, want size mismatch")
	}
	if _, statErr := os.Stat(filepath.Join(root, "b", "short.tif")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("object exists after failed put: %v", statErr)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "b"))
	if len(entries) != 0 {
		t.Fatalf("leftover files after failed put: %v", entries)
	}
}

func TestLocalStore_NotFound(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()
	if _, err := store.Get(ctx, "b", "missing.tif"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if err := store.Copy(ctx, "b", "missing.tif", "trimmed/missing.tif"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Copy() error = %v, want ErrNotFound", err)
	}
}

func TestLocalStore_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	tests := []struct {
		name   string
		bucket string
		key    string
	}{
		{"parent key", "b", "../../etc/passwd"},
		{"dot key", "b", "."},
		{"empty bucket", "", "a.tif"},
		{"bucket with slash", "a/b", "a.tif"},
		{"dotdot bucket", "..", "a.tif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := store.objectPath(tt.bucket, tt.key); err == nil {
				t.Fatalf("objectPath(%q, %q) error = nil, want non-nil", tt.bucket, tt.key)
			}
		})
	}
}
