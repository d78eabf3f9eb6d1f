package workerpool

import (
	"context"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pitabwire/util"
)

const defaultCPUFactor = 4

// WorkerPool runs submitted tasks on a bounded set of goroutines.
type WorkerPool interface {
	Submit(ctx context.Context, task func()) error
	Shutdown()
}

// Options defines configurable options for a worker pool.
type Options struct {
	Capacity       int
	ExpiryDuration time.Duration
	Nonblocking    bool
	PanicHandler   func(any)
	Logger         *util.LogEntry
}

// Option defines a function that configures worker pool options.
type Option func(*Options)

// WithCapacity sets the number of workers.
func WithCapacity(capacity int) Option {
	return func(opts *Options) {
		opts.Capacity = capacity
	}
}

// WithPoolExpiryDuration sets how long an idle worker is kept.
func WithPoolExpiryDuration(duration time.Duration) Option {
	return func(opts *Options) {
		opts.ExpiryDuration = duration
	}
}

// WithPoolNonblocking makes Submit fail instead of waiting when every worker is busy.
func WithPoolNonblocking(nonblocking bool) Option {
	return func(opts *Options) {
		opts.Nonblocking = nonblocking
	}
}

// WithPoolPanicHandler sets a panic handler for the pool.
func WithPoolPanicHandler(handler func(any)) Option {
	return func(opts *Options) {
		opts.PanicHandler = handler
	}
}

// WithPoolLogger sets a logger for the pool.
func WithPoolLogger(logger *util.LogEntry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// New starts a worker pool, by default sized to a multiple of the CPU count.
func New(ctx context.Context, opts ...Option) (WorkerPool, error) {
	wopts := &Options{
		Capacity: runtime.NumCPU() * defaultCPUFactor,
		Logger:   util.Log(ctx),
	}
	for _, opt := range opts {
		opt(wopts)
	}

	antsOpts := []ants.Option{
		ants.WithNonblocking(wopts.Nonblocking),
		ants.WithLogger(wopts.Logger),
	}
	if wopts.ExpiryDuration > 0 {
		antsOpts = append(antsOpts, ants.WithExpiryDuration(wopts.ExpiryDuration))
	}
	if wopts.PanicHandler != nil {
		antsOpts = append(antsOpts, ants.WithPanicHandler(wopts.PanicHandler))
	}

	p, err := ants.NewPool(wopts.Capacity, antsOpts...)
	if err != nil {
		return nil, err
	}
	return &poolWrapper{pool: p}, nil
}

// poolWrapper adapts *ants.Pool to the WorkerPool interface.
type poolWrapper struct {
	pool *ants.Pool
}

func (w *poolWrapper) Submit(ctx context.Context, task func()) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return w.pool.Submit(task)
}

func (w *poolWrapper) Shutdown() {
	w.pool.Release()
}
