package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores objects in Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
}

var _ BlobStore = (*GCSStore)(nil)

// NewGCSStore uses application default credentials unless credentialsFile
// is set.
func NewGCSStore(ctx context.Context, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (g *GCSStore) Close() error {
	return g.client.Close()
}

func (g *GCSStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	rd, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, fmt.Errorf("gcs get %s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("gcs get %s/%s: %w", bucket, key, err)
	}
	return rd, nil
}

func (g *GCSStore) Put(ctx context.Context, bucket, key string, r io.Reader, _ int64) error {
	// Cancelling the writer's context discards a partial upload.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = "image/tiff"
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		return fmt.Errorf("gcs put %s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (g *GCSStore) Copy(ctx context.Context, bucket, srcKey, dstKey string) error {
	b := g.client.Bucket(bucket)
	_, err := b.Object(dstKey).CopierFrom(b.Object(srcKey)).Run(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("gcs copy %s/%s -> %s: %w", bucket, srcKey, dstKey, ErrNotFound)
		}
		return fmt.Errorf("gcs copy %s/%s -> %s: %w", bucket, srcKey, dstKey, err)
	}
	return nil
}
