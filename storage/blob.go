package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/pitabwire/util"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/gcsblob"  // gs:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	_ "gocloud.dev/blob/s3blob"   // s3:// buckets
	"gocloud.dev/gcerrors"

	"github.com/pitabwire/bucketbackend/config"
)

type blobStore struct {
	name   string
	bucket *blob.Bucket
}

// NewBlobStore wraps an already opened gocloud.dev bucket as a Store.
// The store takes ownership of the bucket and closes it on Close.
func NewBlobStore(name string, bucket *blob.Bucket) Store {
	return &blobStore{name: name, bucket: bucket}
}

func connectBlob(ctx context.Context, d config.Descriptor) (Store, error) {
	bucket, err := blob.OpenBucket(ctx, d.BucketURL())
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound || errors.Is(err, fs.ErrNotExist) {
			return nil, &BucketNotFoundError{Bucket: d.BucketName()}
		}
		return nil, fmt.Errorf("storage: open %s: %w", d.BucketURL(), err)
	}

	accessible, err := bucket.IsAccessible(ctx)
	if err != nil || !accessible {
		util.CloseAndLogOnError(ctx, bucket, "could not close bucket")
		if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return nil, fmt.Errorf("storage: bucket %s: %w", d.BucketName(), err)
		}
		return nil, &BucketNotFoundError{Bucket: d.BucketName()}
	}

	return NewBlobStore(d.BucketName(), bucket), nil
}

func (s *blobStore) Bucket() string {
	return s.name
}

func (s *blobStore) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", key, err)
	}
	return exists, nil
}

func (s *blobStore) Fetch(ctx context.Context, key string) (FetchResult, error) {
	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return FetchResult{}, &ObjectNotFoundError{Bucket: s.name, Key: key}
		}
		return FetchResult{}, fmt.Errorf("storage: fetch %s: %w", key, err)
	}
	defer util.CloseAndLogOnError(ctx, reader, "could not close object reader")

	content, err := io.ReadAll(reader)
	if err != nil {
		return FetchResult{}, fmt.Errorf("storage: read %s: %w", key, err)
	}

	return FetchResult{
		Key:          key,
		Content:      content,
		LastModified: reader.ModTime(),
	}, nil
}

func (s *blobStore) As(i any) bool {
	if p, ok := i.(**blob.Bucket); ok {
		*p = s.bucket
		return true
	}
	return s.bucket.As(i)
}

func (s *blobStore) Close() error {
	return s.bucket.Close()
}
