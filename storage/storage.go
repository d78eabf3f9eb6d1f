// Package storage is the gateway to the remote bucket holding translation
// resources. It connects to a bucket described by a verified
// config.Descriptor and fetches raw object content, translating store
// specific failures into the errors declared here.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pitabwire/bucketbackend/config"
)

var (
	// ErrCredentials indicates the credentials file could not be used.
	ErrCredentials = errors.New("invalid credentials file")

	// ErrBucketNotFound indicates the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrObjectNotFound indicates the requested object does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidDescriptor is returned when Connect receives a descriptor that
	// did not come out of config.Verify.
	ErrInvalidDescriptor = errors.New("connection descriptor is not verified")
)

// CredentialsKind tells apart the ways a credentials file can be unusable.
type CredentialsKind int

const (
	CredentialsNotFound CredentialsKind = iota + 1
	CredentialsMalformed
)

func (k CredentialsKind) String() string {
	switch k {
	case CredentialsNotFound:
		return "not-found"
	case CredentialsMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// CredentialsError reports a credentials file that is missing or is not valid JSON.
type CredentialsError struct {
	Path  string
	Kind  CredentialsKind
	Cause error
}

// Error implements the error interface.
func (e *CredentialsError) Error() string {
	if e.Kind == CredentialsMalformed {
		return fmt.Sprintf("the provided file at %s does not contain valid JSON", e.Path)
	}
	return fmt.Sprintf("was unable to find the authentication file located at %s", e.Path)
}

// Is allows checking if an error is a CredentialsError.
func (e *CredentialsError) Is(target error) bool {
	return target == ErrCredentials
}

// Unwrap returns the cause for error wrapping support.
func (e *CredentialsError) Unwrap() error {
	return e.Cause
}

// BucketNotFoundError reports a bucket missing on the remote store.
type BucketNotFoundError struct {
	Bucket string
}

// Error implements the error interface.
func (e *BucketNotFoundError) Error() string {
	return fmt.Sprintf("the given bucket %s does not exist", e.Bucket)
}

// Is allows checking if an error is a BucketNotFoundError.
func (e *BucketNotFoundError) Is(target error) bool {
	return target == ErrBucketNotFound
}

// Unwrap returns the base error for error wrapping support.
func (e *BucketNotFoundError) Unwrap() error {
	return ErrBucketNotFound
}

// ObjectNotFoundError reports an object key missing from the bucket.
type ObjectNotFoundError struct {
	Bucket string
	Key    string
}

// Error implements the error interface.
func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("object %s does not exist in bucket %s", e.Key, e.Bucket)
}

// Is allows checking if an error is an ObjectNotFoundError.
func (e *ObjectNotFoundError) Is(target error) bool {
	return target == ErrObjectNotFound
}

// Unwrap returns the base error for error wrapping support.
func (e *ObjectNotFoundError) Unwrap() error {
	return ErrObjectNotFound
}

// FetchResult is the raw content of one object together with its modification time.
type FetchResult struct {
	Key          string
	Content      []byte
	LastModified time.Time
}

// Store is a connected handle to one bucket. Implementations are safe for
// concurrent use.
type Store interface {
	// Bucket returns the name of the connected bucket.
	Bucket() string
	// Exists reports whether the object exists.
	Exists(ctx context.Context, key string) (bool, error)
	// Fetch downloads the object. A missing object yields an *ObjectNotFoundError,
	// every other failure is returned as a transport error.
	Fetch(ctx context.Context, key string) (FetchResult, error)
	// As exposes the driver specific client, see gocloud.dev's As conventions.
	As(i any) bool
	// Close releases the underlying client.
	Close() error
}

// Connector turns a verified descriptor into a connected Store.
type Connector func(ctx context.Context, d config.Descriptor) (Store, error)

// Connect opens the bucket described by d. Descriptors carrying a bucket URL
// go through the portable gocloud.dev drivers, all others through the native
// Google Cloud Storage client.
func Connect(ctx context.Context, d config.Descriptor) (Store, error) {
	if !d.IsValid() {
		return nil, ErrInvalidDescriptor
	}

	if d.BucketURL() != "" {
		return connectBlob(ctx, d)
	}

	return connectGCS(ctx, d)
}
