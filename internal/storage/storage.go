package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by every backend when the source object is missing.
var ErrNotFound = errors.New("object not found")

// Object identifies a stored object.
type Object struct {
	Bucket string
	Key    string
}

func (o Object) String() string {
	return o.Bucket + "/" + o.Key
}

// BlobStore is the interface for object storage backends.
// S3, MinIO, GCS and local-disk stores implement this.
type BlobStore interface {
	// Get opens the object for reading. The caller must close it.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Put writes size bytes from r to the object, replacing any previous
	// content under the same key.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error

	// Copy duplicates srcKey to dstKey inside bucket without streaming the
	// bytes through the caller.
	Copy(ctx context.Context, bucket, srcKey, dstKey string) error
}
