package bitmap

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/bitmap/cache"
	"github.com/gogpu/bitmap/internal/parallel"
)

// Loader turns requests into decode tasks that share one raster cache.
//
// Loader is safe for concurrent use.
type Loader struct {
	pipeline
	scheduler Scheduler
	executor  *parallel.Executor // owned; nil when a scheduler was injected
}

// NewLoader creates a loader decoding with dec.
func NewLoader(dec RegionDecoder, opts ...Option) (*Loader, error) {
	if dec == nil {
		return nil, errors.New("bitmap: nil decoder")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := o.cache
	if c == nil {
		c = NewRasterCache(o.budget)
	}
	if o.blocking {
		c.SetBlocking(true)
	}

	l := &Loader{
		pipeline: pipeline{
			cache:          c,
			decoder:        dec,
			orientation:    o.orientation,
			reuseBuffers:   o.reuseBuffers,
			crop:           o.crop,
			verticalCenter: o.verticalCenter,
		},
		scheduler: o.scheduler,
	}
	if l.scheduler == nil {
		l.executor = parallel.NewExecutor(o.workers)
		l.scheduler = SchedulerFunc(func(fn func()) error {
			if err := l.executor.Submit(fn); err != nil {
				return ErrClosed
			}
			return nil
		})
	}

	if o.registerer != nil {
		if err := l.registerMetrics(o.registerer, o.namespace); err != nil {
			l.Close()
			return nil, fmt.Errorf("bitmap: register metrics: %w", err)
		}
	}
	return l, nil
}

// registerMetrics exports the cache and, for the built-in pool, the number of
// decodes waiting for a worker.
func (l *Loader) registerMetrics(reg prometheus.Registerer, namespace string) error {
	if err := reg.Register(cache.NewCollector(namespace, l.cache, nil)); err != nil {
		return err
	}
	if l.executor == nil {
		return nil
	}
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "decode",
		Name:      "queued_tasks",
		Help:      "Decode tasks waiting for a worker",
	}, func() float64 {
		return float64(l.executor.Queued())
	}))
}

// Load starts decoding req and returns its task.
//
// A cached raster for req.Key is returned without decoding: the task is
// already Completed and its result handle holds a fresh reference.
// Same-key requests are not deduplicated.
func (l *Loader) Load(req Request) (*DecodeTask, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if r, ok := l.cache.Get(req.Key, true); ok {
		Logger().Debug("bitmap: cache hit", "width", r.Width(), "height", r.Height())
		return newCompletedTask(req, newHandle(r)), nil
	}

	t := newDecodeTask(&l.pipeline, req)
	if err := l.scheduler.Submit(t.Run); err != nil {
		t.Cancel()
		return nil, fmt.Errorf("bitmap: submit decode: %w", err)
	}
	return t, nil
}

// Cache returns the loader's raster cache.
func (l *Loader) Cache() *RasterCache {
	return l.cache
}

// SetBlocking toggles blocking buffer polls on the shared cache.
func (l *Loader) SetBlocking(blocking bool) {
	l.cache.SetBlocking(blocking)
}

// Close stops the built-in worker pool after queued tasks finish. Blocking
// mode is turned off first so no worker stays parked on an empty pool.
// Close is safe to call more than once.
func (l *Loader) Close() {
	l.cache.SetBlocking(false)
	if l.executor != nil {
		l.executor.Close()
	}
}
