package bucketbackend

import (
	"context"

	"github.com/pitabwire/util"

	"github.com/pitabwire/bucketbackend/config"
	"github.com/pitabwire/bucketbackend/format"
	"github.com/pitabwire/bucketbackend/loadpath"
	"github.com/pitabwire/bucketbackend/storage"
)

// Options holds everything Init needs to prepare a backend.
type Options struct {
	config.Partial

	LoadPath loadpath.Spec
	Parse    format.ParseFunc

	// DebugLog reports every step of a read through Logger.
	DebugLog bool
	Logger   *util.LogEntry

	// Environ is the environment snapshot used for overrides, nil means the process environment.
	Environ map[string]string

	// Connector opens the bucket, nil means storage.Connect.
	Connector storage.Connector
}

// Option configures the backend during Init.
type Option func(o *Options)

func defaultOptions() Options {
	return Options{
		LoadPath: loadpath.Literal(loadpath.DefaultTemplate),
		Parse:    format.DefaultParse,
	}
}

func buildOptions(opts ...Option) Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.Parse == nil {
		o.Parse = format.DefaultParse
	}
	if o.Connector == nil {
		o.Connector = storage.Connect
	}
	return o
}

func (o Options) log(ctx context.Context) *util.LogEntry {
	if o.Logger != nil {
		return o.Logger.WithContext(ctx)
	}
	return util.Log(ctx)
}

// WithLoadPath sets a literal load path template.
func WithLoadPath(template string) Option {
	return func(o *Options) {
		o.LoadPath = loadpath.Literal(template)
	}
}

// WithLoadPathFunc computes the load path per read.
func WithLoadPathFunc(fn loadpath.SyncFunc) Option {
	return func(o *Options) {
		o.LoadPath = loadpath.Sync(fn)
	}
}

// WithLoadPathFuncContext computes the load path per read with a function that may block or fail.
func WithLoadPathFuncContext(fn loadpath.AsyncFunc) Option {
	return func(o *Options) {
		o.LoadPath = loadpath.Async(fn)
	}
}

// WithParse overrides the JSON parser.
func WithParse(parse format.ParseFunc) Option {
	return func(o *Options) {
		o.Parse = parse
	}
}

// WithBucketName sets the bucket holding the resources.
func WithBucketName(name string) Option {
	return func(o *Options) {
		o.BucketName = name
	}
}

// WithGoogleProject sets the project owning the bucket.
func WithGoogleProject(project string) Option {
	return func(o *Options) {
		o.GoogleProject = project
	}
}

// WithCredentialsPath points at a service account JSON file.
func WithCredentialsPath(path string) Option {
	return func(o *Options) {
		o.CredentialsPath = path
	}
}

// WithAPIEndpoint talks to an alternate storage endpoint, usually an emulator.
func WithAPIEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.APIEndpoint = endpoint
	}
}

// WithBucketURL opens the bucket through a gocloud.dev URL (mem://, file://, gs://, s3://).
func WithBucketURL(url string) Option {
	return func(o *Options) {
		o.BucketURL = url
	}
}

// WithDebugLog enables step by step logging of reads.
func WithDebugLog(enabled bool) Option {
	return func(o *Options) {
		o.DebugLog = enabled
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *util.LogEntry) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithEnviron sets the environment snapshot used for configuration overrides.
func WithEnviron(environ map[string]string) Option {
	return func(o *Options) {
		o.Environ = environ
	}
}

// WithConnector replaces the bucket connector.
func WithConnector(connector storage.Connector) Option {
	return func(o *Options) {
		o.Connector = connector
	}
}
