package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/pitabwire/util"
	"google.golang.org/api/option"

	"github.com/pitabwire/bucketbackend/config"
)

const (
	// maxAttempts bounds the client's automatic retries on transient errors: one call plus four retries.
	maxAttempts = 5

	jsonAPIPath = "/storage/v1/"
)

type gcsStore struct {
	name   string
	client *gcs.Client
	bucket *gcs.BucketHandle
}

func connectGCS(ctx context.Context, d config.Descriptor) (Store, error) {
	var opts []option.ClientOption

	if d.CredentialsPath() != "" {
		creds, err := readCredentials(d.CredentialsPath())
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}

	// an endpoint override addresses an alternate server (usually an emulator),
	// the project based discovery is then not used.
	if d.APIEndpoint() != "" {
		endpoint, err := normaliseEndpoint(d.APIEndpoint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithEndpoint(endpoint), gcs.WithJSONReads())
		if d.CredentialsPath() == "" {
			opts = append(opts, option.WithoutAuthentication())
		}
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: could not create client: %w", err)
	}

	bucket := client.Bucket(d.BucketName()).Retryer(
		gcs.WithMaxAttempts(maxAttempts),
		gcs.WithPolicy(gcs.RetryIdempotent),
	)

	_, err = bucket.Attrs(ctx)
	if err != nil {
		util.CloseAndLogOnError(ctx, client, "could not close storage client")
		if errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, &BucketNotFoundError{Bucket: d.BucketName()}
		}
		return nil, fmt.Errorf("storage: bucket %s: %w", d.BucketName(), err)
	}

	return &gcsStore{
		name:   d.BucketName(),
		client: client,
		bucket: bucket,
	}, nil
}

func (s *gcsStore) Bucket() string {
	return s.name
}

func (s *gcsStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", key, err)
	}
	return true, nil
}

func (s *gcsStore) Fetch(ctx context.Context, key string) (FetchResult, error) {
	reader, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
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
		LastModified: reader.Attrs.LastModified,
	}, nil
}

func (s *gcsStore) As(i any) bool {
	switch p := i.(type) {
	case **gcs.Client:
		*p = s.client
		return true
	case **gcs.BucketHandle:
		*p = s.bucket
		return true
	default:
		return false
	}
}

func (s *gcsStore) Close() error {
	return s.client.Close()
}

// readCredentials loads a service account file and checks it is valid JSON.
func readCredentials(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &CredentialsError{Path: path, Kind: CredentialsNotFound, Cause: err}
		}
		return nil, fmt.Errorf("storage: read credentials %s: %w", path, err)
	}

	if !json.Valid(data) {
		return nil, &CredentialsError{Path: path, Kind: CredentialsMalformed}
	}

	return data, nil
}

// normaliseEndpoint points bare host endpoints such as http://localhost:4443
// at the JSON API root.
func normaliseEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("storage: invalid api endpoint %q: %w", endpoint, err)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = jsonAPIPath
	} else if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return u.String(), nil
}
