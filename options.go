package bitmap

import "github.com/prometheus/client_golang/prometheus"

// DefaultCacheBudget is the byte budget used when none is configured.
const DefaultCacheBudget = 32 << 20

// Option configures a Loader during creation.
// Use functional options to customize Loader behavior.
//
// Example:
//
//	l, err := bitmap.NewLoader(decoder.NewSoftware(),
//	    bitmap.WithCacheBudget(64<<20),
//	    bitmap.WithBlocking(true),
//	)
type Option func(*loaderOptions)

// loaderOptions holds optional configuration for Loader creation.
type loaderOptions struct {
	budget         int64
	cache          *RasterCache
	scheduler      Scheduler
	workers        int
	orientation    OrientationReader
	reuseBuffers   bool
	crop           bool
	blocking       bool
	verticalCenter float64
	registerer     prometheus.Registerer
	namespace      string
}

// defaultOptions returns the default loader options.
func defaultOptions() loaderOptions {
	return loaderOptions{
		budget:         DefaultCacheBudget,
		reuseBuffers:   true,
		crop:           true,
		verticalCenter: DefaultVerticalCenter,
		namespace:      "bitmap",
	}
}

// WithCacheBudget sets the byte budget of the loader's cache.
// A budget <= 0 means unbounded.
func WithCacheBudget(bytes int64) Option {
	return func(o *loaderOptions) {
		o.budget = bytes
	}
}

// WithCache shares an existing cache instead of creating one.
// WithCacheBudget is ignored when a cache is supplied.
func WithCache(c *RasterCache) Option {
	return func(o *loaderOptions) {
		o.cache = c
	}
}

// WithScheduler injects the scheduler that runs decode tasks.
// Use Inline to run tasks synchronously.
func WithScheduler(s Scheduler) Option {
	return func(o *loaderOptions) {
		o.scheduler = s
	}
}

// WithWorkers sizes the built-in worker pool used when no scheduler is
// injected. Zero or negative means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *loaderOptions) {
		o.workers = n
	}
}

// WithOrientationReader sets the reader for orientation metadata.
// Without one every source is treated as upright.
func WithOrientationReader(r OrientationReader) Option {
	return func(o *loaderOptions) {
		o.orientation = r
	}
}

// WithBufferReuse enables or disables decoding into recycled buffers.
// Disable it on platforms whose decoder cannot write into caller buffers.
func WithBufferReuse(enabled bool) Option {
	return func(o *loaderOptions) {
		o.reuseBuffers = enabled
	}
}

// WithCropping enables or disables region decoding. When disabled every
// decode is a full, sampled decode.
func WithCropping(enabled bool) Option {
	return func(o *loaderOptions) {
		o.crop = enabled
	}
}

// WithBlocking makes buffer polls wait for a recycled buffer instead of
// allocating. See RasterCache.SetBlocking.
func WithBlocking(enabled bool) Option {
	return func(o *loaderOptions) {
		o.blocking = enabled
	}
}

// WithVerticalCenter sets the vertical crop center as a fraction of the
// source height. Values outside [0, 1] are clamped.
func WithVerticalCenter(f float64) Option {
	return func(o *loaderOptions) {
		o.verticalCenter = min(max(f, 0), 1)
	}
}

// WithMetrics registers the cache collector with reg under namespace.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(o *loaderOptions) {
		o.registerer = reg
		if namespace != "" {
			o.namespace = namespace
		}
	}
}
