// Package bucketbackend loads translation resources from an object storage
// bucket for a localization framework.
//
// A Backend resolves the object key of a language/namespace pair, connects
// lazily to the configured bucket, downloads the object and parses it. Results
// are reported through a callback so the backend can be driven by a host
// framework, Go callers may use Load directly.
package bucketbackend

import (
	"context"
	"sync"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitabwire/bucketbackend/config"
	"github.com/pitabwire/bucketbackend/format"
	"github.com/pitabwire/bucketbackend/loadpath"
	"github.com/pitabwire/bucketbackend/storage"
	"github.com/pitabwire/bucketbackend/telemetry"
)

//nolint:gochecknoglobals // instruments are shared by every backend of the process
var (
	tracer = telemetry.NewTracer(telemetry.InstrumentationName)

	connectionsMeasure = telemetry.DimensionlessMeasure(telemetry.InstrumentationName, "/connections",
		"Count of bucket connection attempts")
	fetchedBytesMeasure = telemetry.BytesMeasure(telemetry.InstrumentationName, "/fetched_bytes",
		"Bytes downloaded from the bucket")
)

// Services are the capabilities a host framework lends to the backend.
type Services struct {
	// Interpolator expands load path templates, without one the backend
	// builds keys itself.
	Interpolator loadpath.Interpolator
}

func (s *Services) interpolator() loadpath.Interpolator {
	if s == nil {
		return nil
	}
	return s.Interpolator
}

// ReadCallback receives the outcome of a Read, exactly one of err and data is set.
type ReadCallback func(err error, data format.Resource)

// Loaded is a parsed resource together with the time it was last modified.
type Loaded struct {
	Key          string
	Data         format.Resource
	LastModified time.Time
}

// epoch is the state of one initialization. Re-initialization replaces it
// wholesale, reads hold on to the epoch they started in.
type epoch struct {
	services   *Services
	opts       Options
	descriptor config.Descriptor

	store    storage.Store
	pending  *connectAttempt
	retired  bool
	inflight sync.WaitGroup
}

type connectAttempt struct {
	done  chan struct{}
	store storage.Store
	err   error
}

// Backend reads translation resources from a bucket. It is safe for concurrent use.
type Backend struct {
	mu    sync.Mutex
	state *epoch
}

// New creates a backend. Without options it stays uninitialized until Init is called.
func New(ctx context.Context, services *Services, opts ...Option) (*Backend, error) {
	b := &Backend{}
	if len(opts) == 0 {
		return b, nil
	}

	if err := b.Init(ctx, services, opts...); err != nil {
		return nil, err
	}
	return b, nil
}

// Init (re-)initializes the backend. The configuration is built from the
// options and the environment and verified, no remote call is made: the
// bucket is connected on the next read. A failed Init leaves the backend
// uninitialized.
func (b *Backend) Init(ctx context.Context, services *Services, opts ...Option) error {
	o := buildOptions(opts...)
	log := o.log(ctx)

	if o.DebugLog {
		log.WithField("load_path", o.LoadPath.String()).Info("initializing bucket backend")
	}

	environ := o.Environ
	if environ == nil {
		environ = config.Environ()
	}

	partial, err := config.Build(o.Partial, environ)
	if err == nil {
		if o.DebugLog {
			log.WithField("bucket", partial.BucketName).WithField("project", partial.GoogleProject).
				Info("built bucket backend configuration")
		}
		var descriptor config.Descriptor
		descriptor, err = config.Verify(partial)
		if err == nil {
			b.replace(ctx, &epoch{services: services, opts: o, descriptor: descriptor})
			if o.DebugLog {
				log.WithFields(descriptor.Fields()).Info("verified bucket backend configuration")
			}
			return nil
		}
	}

	b.replace(ctx, nil)
	return err
}

// replace installs next as the current epoch and releases the previous one
// once its in flight reads are done.
func (b *Backend) replace(ctx context.Context, next *epoch) {
	b.mu.Lock()
	previous := b.state
	b.state = next
	var store storage.Store
	if previous != nil {
		previous.retired = true
		store = previous.store
	}
	b.mu.Unlock()

	if previous == nil || store == nil {
		return
	}

	go func() {
		previous.inflight.Wait()
		util.CloseAndLogOnError(context.WithoutCancel(ctx), store, "could not close bucket of previous configuration")
	}()
}

// Close releases the bucket connection, the backend is uninitialized afterwards.
func (b *Backend) Close() error {
	b.mu.Lock()
	previous := b.state
	b.state = nil
	var store storage.Store
	if previous != nil {
		previous.retired = true
		store = previous.store
	}
	b.mu.Unlock()

	if previous == nil || store == nil {
		return nil
	}

	previous.inflight.Wait()
	return store.Close()
}

// Initialized reports whether a verified configuration is in place.
func (b *Backend) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != nil
}

// Descriptor returns the verified configuration of the current epoch.
func (b *Backend) Descriptor() (config.Descriptor, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return config.Descriptor{}, false
	}
	return b.state.descriptor, true
}

// acquire returns the current epoch and registers a read on it, the caller
// must call inflight.Done when finished.
func (b *Backend) acquire() (*epoch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == nil {
		return nil, ErrNotInitialized
	}
	b.state.inflight.Add(1)
	return b.state, nil
}

// Read loads the resource of lng and ns and hands the outcome to callback.
// The callback is invoked exactly once and is the only channel through which
// failures are reported.
func (b *Backend) Read(ctx context.Context, lng, ns string, callback ReadCallback) {
	data, err := b.Load(ctx, lng, ns)
	if err != nil {
		callback(err, nil)
		return
	}
	callback(nil, data)
}

// Load resolves, fetches and parses the resource of lng and ns.
func (b *Backend) Load(ctx context.Context, lng, ns string) (format.Resource, error) {
	ctx, span := tracer.Start(ctx, "Read",
		trace.WithAttributes(
			attribute.String("i18n.language", lng),
			attribute.String("i18n.namespace", ns),
		))

	data, err := b.load(ctx, span, lng, ns)
	tracer.End(ctx, span, err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *Backend) load(ctx context.Context, span trace.Span, lng, ns string) (format.Resource, error) {
	st, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer st.inflight.Done()

	key, err := loadpath.Resolve(ctx, st.opts.LoadPath, st.services.interpolator(), lng, ns)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("storage.object_key", key))

	loaded, err := b.readFile(ctx, st, key)
	if err != nil {
		if st.opts.DebugLog {
			st.opts.log(ctx).WithError(err).WithField("key", key).Info("reading/processing file failed")
		}
		return nil, err
	}

	if st.opts.DebugLog {
		st.opts.log(ctx).WithField("key", key).Info("file read")
	}
	return loaded.Data, nil
}

// ReadFile fetches and parses the object at key, bypassing load path resolution.
func (b *Backend) ReadFile(ctx context.Context, key string) (Loaded, error) {
	st, err := b.acquire()
	if err != nil {
		return Loaded{}, err
	}
	defer st.inflight.Done()

	return b.readFile(ctx, st, key)
}

func (b *Backend) readFile(ctx context.Context, st *epoch, key string) (Loaded, error) {
	store, err := b.connection(ctx, st)
	if err != nil {
		return Loaded{}, err
	}

	result, err := store.Fetch(ctx, key)
	if err != nil {
		if st.opts.DebugLog {
			st.opts.log(ctx).WithError(err).WithField("key", key).Info("reading file from bucket failed")
		}
		return Loaded{}, err
	}
	fetchedBytesMeasure.Add(ctx, int64(len(result.Content)))

	data, err := format.Dispatch(key, result.Content, st.opts.Parse)
	if err != nil {
		return Loaded{}, err
	}

	return Loaded{Key: key, Data: data, LastModified: result.LastModified}, nil
}

// connection returns the epoch's store, connecting on first use. Concurrent
// callers share a single connection attempt, a failed attempt is retried by
// the next caller. The attempt outlives the cancellation of the caller that
// started it, each caller stops waiting on its own context.
func (b *Backend) connection(ctx context.Context, st *epoch) (storage.Store, error) {
	b.mu.Lock()
	if st.store != nil {
		store := st.store
		b.mu.Unlock()
		return store, nil
	}

	attempt := st.pending
	if attempt == nil {
		attempt = &connectAttempt{done: make(chan struct{})}
		st.pending = attempt
		b.mu.Unlock()
		go b.connect(context.WithoutCancel(ctx), st, attempt)
	} else {
		b.mu.Unlock()
	}

	select {
	case <-attempt.done:
		return attempt.store, attempt.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Backend) connect(ctx context.Context, st *epoch, attempt *connectAttempt) {
	defer close(attempt.done)

	ctx, span := tracer.Start(ctx, "Connect",
		trace.WithAttributes(attribute.String("storage.bucket", st.descriptor.BucketName())))

	if st.opts.DebugLog {
		st.opts.log(ctx).WithField("bucket", st.descriptor.BucketName()).Info("fetching bucket")
	}

	store, err := st.opts.Connector(ctx, st.descriptor)
	tracer.End(ctx, span, err)
	connectionsMeasure.Add(ctx, 1, metric.WithAttributes(telemetry.AttrStatusKey.String(telemetry.ErrorCode(err))))

	b.mu.Lock()
	st.pending = nil
	retired := st.retired
	if err == nil && !retired {
		st.store = store
	}
	b.mu.Unlock()

	switch {
	case err != nil:
		attempt.err = err
	case retired:
		util.CloseAndLogOnError(ctx, store, "could not close bucket of retired configuration")
		attempt.err = ErrReinitialized
	default:
		attempt.store = store
	}
}
