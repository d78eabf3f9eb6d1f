package bucketbackend

import (
	"errors"

	"github.com/pitabwire/bucketbackend/config"
	"github.com/pitabwire/bucketbackend/format"
	"github.com/pitabwire/bucketbackend/storage"
)

var (
	// ErrNotInitialized indicates a read on a backend that was never initialized or was closed.
	ErrNotInitialized = errors.New("backend is not initialized")

	// ErrReinitialized indicates the backend was re-initialized while a read was connecting.
	ErrReinitialized = errors.New("backend was re-initialized during connection")

	// ErrConfiguration indicates a required configuration value is missing.
	ErrConfiguration = config.ErrConfiguration

	// ErrCredentials indicates the credentials file is missing or malformed.
	ErrCredentials = storage.ErrCredentials

	// ErrBucketNotFound indicates the configured bucket does not exist.
	ErrBucketNotFound = storage.ErrBucketNotFound

	// ErrObjectNotFound indicates the resolved object does not exist.
	ErrObjectNotFound = storage.ErrObjectNotFound

	// ErrUnsupportedFormat indicates an object whose extension is not json.
	ErrUnsupportedFormat = format.ErrUnsupportedFormat

	// ErrParse indicates the object content could not be parsed.
	ErrParse = format.ErrParse
)
