package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Environment variables read by Build.
const (
	// EnvBucketName names the bucket holding the resources.
	EnvBucketName = "BACKEND_GCP_BUCKET_NAME"
	// EnvGoogleProject names the Google Cloud project owning the bucket.
	EnvGoogleProject = "BACKEND_GCP_PROJECT"
	// EnvCredentialsPath points at a service account JSON file.
	EnvCredentialsPath = "BACKEND_GOOGLE_APPLICATION_CREDENTIALS_PATH"
)

// ErrConfiguration is the base of every configuration failure.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a required field that neither the options nor
// the environment supplied.
type ConfigurationError struct {
	Field  string
	EnvVar string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf(
		"you forgot to specify a google %s, please check your options or set the environment variable %s",
		e.Field, e.EnvVar)
}

// Is allows checking if an error is a ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Unwrap returns the base error for error wrapping support.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// Partial is the unverified connection configuration as supplied by a caller.
// It never reaches the storage gateway, only a Descriptor does.
type Partial struct {
	BucketName      string `env:"BACKEND_GCP_BUCKET_NAME"                     yaml:"bucket_name"                         toml:"bucket_name"`
	GoogleProject   string `env:"BACKEND_GCP_PROJECT"                         yaml:"google_project"                      toml:"google_project"`
	CredentialsPath string `env:"BACKEND_GOOGLE_APPLICATION_CREDENTIALS_PATH" yaml:"google_application_credentials_path" toml:"google_application_credentials_path"`

	// APIEndpoint and BucketURL are taken from the caller only.
	APIEndpoint string `env:"-" yaml:"api_endpoint" toml:"api_endpoint"`
	BucketURL   string `env:"-" yaml:"bucket_url"   toml:"bucket_url"`
}

// Environ captures the current process environment as a snapshot usable by Build.
func Environ() map[string]string {
	return env.ToMap(os.Environ())
}

// Build overlays the environment snapshot onto the caller supplied values.
// Environment values take precedence, empty values count as unset.
func Build(partial Partial, environ map[string]string) (Partial, error) {
	if environ == nil {
		// a nil Environment makes the env package fall back to os.Environ.
		environ = map[string]string{}
	}

	var overrides Partial
	err := env.ParseWithOptions(&overrides, env.Options{Environment: environ})
	if err != nil {
		return partial, fmt.Errorf("could not read environment overrides: %w", err)
	}

	if overrides.BucketName != "" {
		partial.BucketName = overrides.BucketName
	}
	if overrides.GoogleProject != "" {
		partial.GoogleProject = overrides.GoogleProject
	}
	if overrides.CredentialsPath != "" {
		partial.CredentialsPath = overrides.CredentialsPath
	}

	return partial, nil
}

// Verify checks that every required field is present and returns the
// immutable Descriptor used to connect to the bucket. The bucket name is
// always required. The project is required unless a BucketURL is set, the
// URL drivers resolve their own project and credentials.
func Verify(partial Partial) (Descriptor, error) {
	if partial.BucketName == "" {
		return Descriptor{}, &ConfigurationError{Field: "bucket name", EnvVar: EnvBucketName}
	}

	// bucket URLs carry their own addressing and credential discovery.
	if partial.GoogleProject == "" && partial.BucketURL == "" {
		return Descriptor{}, &ConfigurationError{Field: "project", EnvVar: EnvGoogleProject}
	}

	return Descriptor{
		bucketName:      partial.BucketName,
		googleProject:   partial.GoogleProject,
		credentialsPath: partial.CredentialsPath,
		apiEndpoint:     partial.APIEndpoint,
		bucketURL:       partial.BucketURL,
	}, nil
}

// Descriptor is a verified connection configuration. The zero value is not
// valid; descriptors are only produced by Verify.
type Descriptor struct {
	bucketName      string
	googleProject   string
	credentialsPath string
	apiEndpoint     string
	bucketURL       string
}

// BucketName is the bucket holding the resources.
func (d Descriptor) BucketName() string {
	return d.bucketName
}

// GoogleProject is the project owning the bucket, empty for bucket URLs.
func (d Descriptor) GoogleProject() string {
	return d.googleProject
}

// CredentialsPath is the service account file, empty for default credentials.
func (d Descriptor) CredentialsPath() string {
	return d.credentialsPath
}

// APIEndpoint overrides the storage API address, for example an emulator.
func (d Descriptor) APIEndpoint() string {
	return d.apiEndpoint
}

// BucketURL is the gocloud.dev URL the bucket is opened through, if any.
func (d Descriptor) BucketURL() string {
	return d.bucketURL
}

// IsValid reports whether the descriptor came out of Verify.
func (d Descriptor) IsValid() bool {
	return d.bucketName != "" && (d.googleProject != "" || d.bucketURL != "")
}

// Fields returns the descriptor as loggable fields, the credentials path is
// reported but never the credentials themselves.
func (d Descriptor) Fields() map[string]any {
	return map[string]any{
		"bucket":           d.bucketName,
		"project":          d.googleProject,
		"credentials_path": d.credentialsPath,
		"api_endpoint":     d.apiEndpoint,
		"bucket_url":       d.bucketURL,
	}
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}
