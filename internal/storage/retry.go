package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryStore retries failed storage operations with exponential backoff.
// Missing objects and non-rewindable uploads are not retried.
type RetryStore struct {
	BlobStore
	MaxElapsedTime time.Duration
	Report         func(op string, err error, wait time.Duration)

	newBackOff func() backoff.BackOff
}

var _ BlobStore = (*RetryStore)(nil)

// WithRetry wraps store. A maxElapsed of zero or less disables retries
// and returns store unchanged.
func WithRetry(store BlobStore, maxElapsed time.Duration, report func(string, error, time.Duration)) BlobStore {
	if maxElapsed <= 0 {
		return store
	}
	return &RetryStore{
		BlobStore:      store,
		MaxElapsedTime: maxElapsed,
		Report:         report,
	}
}

func (s *RetryStore) backOff(ctx context.Context) backoff.BackOffContext {
	var b backoff.BackOff
	if s.newBackOff != nil {
		b = s.newBackOff()
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = s.MaxElapsedTime
		b = eb
	}
	return backoff.WithContext(b, ctx)
}

func (s *RetryStore) retry(ctx context.Context, op string, fn func() error) error {
	notify := func(err error, wait time.Duration) {
		if s.Report != nil {
			s.Report(op, err, wait)
		}
	}
	return backoff.RetryNotify(func() error {
		err := fn()
		if errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, s.backOff(ctx), notify)
}

func (s *RetryStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	var rd io.ReadCloser
	err := s.retry(ctx, fmt.Sprintf("get %s/%s", bucket, key), func() error {
		var err error
		rd, err = s.BlobStore.Get(ctx, bucket, key)
		return err
	})
	return rd, err
}

func (s *RetryStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	seeker, rewindable := r.(io.Seeker)
	var lastErr error
	return s.retry(ctx, fmt.Sprintf("put %s/%s", bucket, key), func() error {
		if lastErr != nil {
			if !rewindable {
				return backoff.Permanent(fmt.Errorf("body cannot be rewound for retry: %w", lastErr))
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(fmt.Errorf("rewind body: %w", err))
			}
		}
		lastErr = s.BlobStore.Put(ctx, bucket, key, r, size)
		return lastErr
	})
}

func (s *RetryStore) Copy(ctx context.Context, bucket, srcKey, dstKey string) error {
	return s.retry(ctx, fmt.Sprintf("copy %s/%s", bucket, srcKey), func() error {
		return s.BlobStore.Copy(ctx, bucket, srcKey, dstKey)
	})
}
