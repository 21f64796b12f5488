package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type flakyStore struct {
	failures int
	err      error

	gets   int
	puts   int
	copies int
	bodies []string
}

func (f *flakyStore) fail() error {
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return nil
}

func (f *flakyStore) Get(_ context.Context, _, _ string) (io.ReadCloser, error) {
	f.gets++
	if err := f.fail(); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader("ok")), nil
}

func (f *flakyStore) Put(_ context.Context, _, _ string, r io.Reader, _ int64) error {
	f.puts++
	data, _ := io.ReadAll(r)
	f.bodies = append(f.bodies, string(data))
	return f.fail()
}

func (f *flakyStore) Copy(_ context.Context, _, _, _ string) error {
	f.copies++
	return f.fail()
}

func newTestRetryStore(inner BlobStore, reports *int) *RetryStore {
	return &RetryStore{
		BlobStore:      inner,
		MaxElapsedTime: time.Second,
		Report: func(string, error, time.Duration) {
			*reports++
		},
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
		},
	}
}

func TestWithRetry_DisabledReturnsInner(t *testing.T) {
	t.Parallel()

	inner := &flakyStore{}
	if got := WithRetry(inner, 0, nil); got != BlobStore(inner) {
		t.Fatalf("WithRetry(0) = %T, want inner store", got)
	}
}

func TestRetryStore_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	inner := &flakyStore{failures: 2, err: errors.New("503 slow down")}
	reports := 0
	store := newTestRetryStore(inner, &reports)

	if err := store.Copy(context.Background(), "b", "a.tif", "trimmed/a.tif"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if inner.copies != 3 {
		t.Fatalf("copies = %d, want 3", inner.copies)
	}
	if reports != 2 {
		t.Fatalf("reports = %d, want 2", reports)
	}
}

func TestRetryStore_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	transient := errors.New("connection reset")
	inner := &flakyStore{failures: 10, err: transient}
	reports := 0
	store := newTestRetryStore(inner, &reports)

	_, err := store.Get(context.Background(), "b", "a.tif")
	if !errors.Is(err, transient) {
		t.Fatalf("Get() error = %v, want %v", err, transient)
	}
	if inner.gets != 4 {
		t.Fatalf("gets = %d, want 4", inner.gets)
	}
}

func TestRetryStore_NotFoundIsPermanent(t *testing.T) {
	t.Parallel()

	inner := &flakyStore{failures: 10, err: ErrNotFound}
	reports := 0
	store := newTestRetryStore(inner, &reports)

	_, err := store.Get(context.Background(), "b", "a.tif")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if inner.gets != 1 {
		t.Fatalf("gets = %d, want 1", inner.gets)
	}
}

func TestRetryStore_PutRewindsSeekableBody(t *testing.T) {
	t.Parallel()

	inner := &flakyStore{failures: 1, err: errors.New("timeout")}
	reports := 0
	store := newTestRetryStore(inner, &reports)

	body := bytes.NewReader([]byte("salvaged"))
	if err := store.Put(context.Background(), "b", "k", body, int64(body.Len())); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if len(inner.bodies) != 2 || inner.bodies[1] != "salvaged" {
		t.Fatalf("bodies = %q, want second attempt to resend full body", inner.bodies)
	}
}

func TestRetryStore_PutDoesNotRetryUnseekableBody(t *testing.T) {
	t.Parallel()

	transient := errors.New("timeout")
	inner := &flakyStore{failures: 1, err: transient}
	reports := 0
	store := newTestRetryStore(inner, &reports)

	body := io.MultiReader(strings.NewReader("salvaged"))
	err := store.Put(context.Background(), "b", "k", body, -1)
	if !errors.Is(err, transient) {
		t.Fatalf("Put() error = %v, want wrapped %v", err, transient)
	}
	if inner.puts != 1 {
		t.Fatalf("puts = %d, want 1", inner.puts)
	}
}
