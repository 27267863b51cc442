package bitmap

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gogpu/bitmap/cache"
)

// RasterCache is the cache shared by a Loader's decode tasks.
type RasterCache = cache.Pooled[RequestKey, *Raster]

// NewRasterCache creates a raster cache with the given byte budget.
// Its diagnostics go to the current package logger.
func NewRasterCache(budget int64) *RasterCache {
	return cache.New[RequestKey, *Raster](budget, RasterSize,
		cache.WithLogger[*Raster](Logger()))
}

// TaskState is the lifecycle state of a DecodeTask.
type TaskState int32

// Task states. Completed and Cancelled are terminal.
const (
	StateCreated TaskState = iota
	StateRunning
	StateCompleted
	StateCancelled
)

// String returns the state name.
func (s TaskState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("TaskState(%d)", int32(s))
	}
}

// Terminal reports whether s is Completed or Cancelled.
func (s TaskState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// pipeline is the configuration shared by every task of a Loader.
type pipeline struct {
	cache          *RasterCache
	decoder        RegionDecoder
	orientation    OrientationReader
	reuseBuffers   bool
	crop           bool
	verticalCenter float64
}

// DecodeTask decodes one Request and publishes the result into the cache.
//
// The task emits EventBegin, then exactly one of EventComplete or
// EventCancel, on the channel returned by Events. Cancel may be called from
// any goroutine; the task observes it before every expensive step and never
// publishes after it.
type DecodeTask struct {
	id  string
	req Request
	p   *pipeline
	log *slog.Logger

	state   atomic.Int32
	started atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	events chan Event
	done   chan struct{}
}

func newDecodeTask(p *pipeline, req Request) *DecodeTask {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &DecodeTask{
		id:     id,
		req:    req,
		p:      p,
		log:    Logger().With("task", id),
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, 2),
		done:   make(chan struct{}),
	}
}

// newCompletedTask wraps a cache hit: the task is already Completed and its
// events are queued.
func newCompletedTask(req Request, h *Handle) *DecodeTask {
	t := &DecodeTask{
		id:     uuid.NewString(),
		req:    req,
		log:    Logger(),
		events: make(chan Event, 2),
		done:   make(chan struct{}),
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.cancel()
	t.started.Store(true)
	t.state.Store(int32(StateCompleted))
	t.events <- Event{Kind: EventBegin, Key: req.Key}
	t.events <- Event{Kind: EventComplete, Key: req.Key, Result: h}
	close(t.events)
	close(t.done)
	return t
}

// ID returns the task's correlation id.
func (t *DecodeTask) ID() string {
	return t.id
}

// Key returns the request key.
func (t *DecodeTask) Key() RequestKey {
	return t.req.Key
}

// Request returns the request being decoded.
func (t *DecodeTask) Request() Request {
	return t.req
}

// State returns the current lifecycle state.
func (t *DecodeTask) State() TaskState {
	return TaskState(t.state.Load())
}

// Events returns the notification channel. It carries two events and is
// closed after the terminal one.
func (t *DecodeTask) Events() <-chan Event {
	return t.events
}

// Done is closed once the task reaches a terminal state and its events
// have been queued.
func (t *DecodeTask) Done() <-chan struct{} {
	return t.done
}

// Cancel requests cancellation. It has no effect on a terminal task.
func (t *DecodeTask) Cancel() {
	for {
		s := TaskState(t.state.Load())
		if s.Terminal() {
			return
		}
		if t.state.CompareAndSwap(int32(s), int32(StateCancelled)) {
			t.cancel()
			return
		}
	}
}

// Run executes the task on the calling goroutine. Schedulers call it once;
// later calls return immediately.
func (t *DecodeTask) Run() {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	t.emit(Event{Kind: EventBegin, Key: t.req.Key})

	if !t.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		// Cancelled before it started.
		t.finish(nil, ErrCancelled)
		return
	}

	result, err := t.decode()
	t.finish(result, err)
}

func (t *DecodeTask) emit(e Event) {
	t.events <- e
}

// finish publishes result or reports cancellation. result, when non-nil,
// carries one reference held by the task.
func (t *DecodeTask) finish(result *Raster, err error) {
	defer func() {
		t.cancel()
		close(t.events)
		close(t.done)
	}()

	if err == nil && result != nil && t.state.CompareAndSwap(int32(StateRunning), int32(StateCompleted)) {
		// The task's reference now backs both the cache entry and the
		// requester's handle.
		t.p.cache.Put(t.req.Key, result)
		t.log.Debug("bitmap: decode complete",
			"width", result.Width(), "height", result.Height(),
			"orientation", int(result.Orientation()), "reusable", result.Reusable())
		t.emit(Event{Kind: EventComplete, Key: t.req.Key, Result: newHandle(result)})
		return
	}

	if result != nil {
		result.Release()
	}
	t.state.CompareAndSwap(int32(StateRunning), int32(StateCancelled))
	if err == nil || errors.Is(err, context.Canceled) {
		err = ErrCancelled
	}
	if !errors.Is(err, ErrCancelled) {
		t.log.Warn("bitmap: decode failed", "err", err)
	}
	t.emit(Event{Kind: EventCancel, Key: t.req.Key, Err: err})
}

// checkpoint returns ErrCancelled once the task has been cancelled.
func (t *DecodeTask) checkpoint() error {
	if t.ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

// decode runs every step between the begin and the publish signal.
// On success the returned raster carries one reference held by the task;
// on failure every buffer the task held has been released.
func (t *DecodeTask) decode() (*Raster, error) {
	var reuse *Raster
	giveBack := func() {
		if reuse != nil {
			reuse.Release()
			reuse = nil
		}
	}

	// Speculative: orientation is not known yet.
	if t.p.reuseBuffers {
		if err := t.checkpoint(); err != nil {
			return nil, err
		}
		if r, ok := t.p.cache.PollContext(t.ctx); ok {
			reuse = r
		}
	}

	orientation, err := t.readOrientation()
	if err != nil {
		giveBack()
		return nil, err
	}
	if orientation != Orientation0 && reuse != nil {
		t.log.Debug("bitmap: rotated source, returning polled buffer", "orientation", int(orientation))
		giveBack()
	}

	bounds, err := t.probe()
	if err != nil {
		giveBack()
		return nil, err
	}

	srcW, srcH := orientation.Upright(bounds.Width, bounds.Height)
	dstW, dstH := t.req.DecodeSize()
	sample := SampleSize(srcW, srcH, dstW, dstH)
	reusable := !nonReusableFormats[bounds.Format]

	var (
		img      *image.RGBA
		crop     image.Rectangle
		target   *Raster
		recycled bool
	)
	if t.p.crop {
		crop = CropRect(srcW, srcH, dstW, dstH, sample, t.p.verticalCenter)
		stored := orientation.ToStored(crop, srcW, srcH)
		outW, outH := ScaledSize(stored.Dx(), sample), ScaledSize(stored.Dy(), sample)

		if reuse != nil && reusable && reuse.fits(outW, outH) {
			target, reuse, recycled = reuse, nil, true
		} else {
			giveBack()
			if reusable {
				target = t.allocate(max(dstW*dstH, outW*outH), reusable)
			}
		}

		t.log.Debug("bitmap: region decode",
			"src", fmt.Sprintf("%dx%d", bounds.Width, bounds.Height),
			"crop", stored.String(), "sample", sample, "recycled", recycled)

		var dst []byte
		if target != nil {
			dst = target.buffer()
		}
		img, err = t.decodeRegion(stored, sample, dst)
		if err != nil {
			if target != nil {
				target.Release()
				target = nil
			}
			if errors.Is(err, ErrCancelled) {
				return nil, err
			}
			t.log.Warn("bitmap: region decode failed, falling back to full decode", "err", err)
		}
	}
	giveBack()

	if img == nil {
		img, err = t.decodeFull(sample)
		if err != nil && sample > 1 && !errors.Is(err, ErrCancelled) {
			t.log.Warn("bitmap: full decode failed, retrying at sample size 1", "sample", sample, "err", err)
			img, err = t.decodeFull(1)
		}
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
	}

	// Finalize.
	var (
		result *Raster
		w, h   int
	)
	b := img.Bounds()
	if target != nil && target.sharesBuffer(img) {
		result = target
		w, h = ScaledSize(crop.Dx(), sample), ScaledSize(crop.Dy(), sample)
	} else {
		if target != nil {
			target.Release()
		}
		// Full decodes have irregular sizes and never enter the free list.
		result = wrapRaster(img, false)
		result.SetRecycler(t.p.cache.Reclaim)
		result.Acquire()
		w, h = orientation.Upright(b.Dx(), b.Dy())
	}
	if err := result.setDecoded(img, w, h, orientation); err != nil {
		result.Release()
		return nil, err
	}
	return result, nil
}

// allocate creates a fresh buffer of n pixels held by the task.
func (t *DecodeTask) allocate(pixels int, reusable bool) *Raster {
	r := &Raster{pix: make([]byte, pixels*BytesPerPixel), reusable: reusable}
	r.SetRecycler(t.p.cache.Reclaim)
	r.Acquire()
	return r
}

// open returns a fresh stream over the request key.
func (t *DecodeTask) open() (io.ReadCloser, error) {
	if err := t.checkpoint(); err != nil {
		return nil, err
	}
	rc, err := t.req.Key.Open(t.ctx)
	if err != nil {
		if t.ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("bitmap: open source: %w", err)
	}
	return rc, nil
}

func (t *DecodeTask) readOrientation() (Orientation, error) {
	if t.p.orientation == nil {
		return Orientation0, t.checkpoint()
	}
	rc, err := t.open()
	if err != nil {
		return Orientation0, err
	}
	defer func() { _ = rc.Close() }()

	o, err := t.p.orientation.Orientation(rc, sourceSize(t.req.Key))
	if err != nil {
		t.log.Debug("bitmap: no orientation metadata", "err", err)
		return Orientation0, nil
	}
	if !o.Valid() {
		o = NormalizeOrientation(int(o))
	}
	return o, nil
}

func (t *DecodeTask) probe() (Bounds, error) {
	rc, err := t.open()
	if err != nil {
		return Bounds{}, err
	}
	defer func() { _ = rc.Close() }()

	b, err := t.p.decoder.Bounds(t.ctx, rc)
	if err != nil {
		if t.ctx.Err() != nil {
			return Bounds{}, ErrCancelled
		}
		return Bounds{}, fmt.Errorf("%w: %w", ErrNoBounds, err)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return Bounds{}, fmt.Errorf("%w: %dx%d", ErrNoBounds, b.Width, b.Height)
	}
	return b, nil
}

func (t *DecodeTask) decodeRegion(rect image.Rectangle, sample int, dst []byte) (*image.RGBA, error) {
	rc, err := t.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	img, err := t.p.decoder.DecodeRegion(t.ctx, rc, rect, sample, dst)
	if err != nil {
		if t.ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, err
	}
	return img, t.checkpoint()
}

func (t *DecodeTask) decodeFull(sample int) (*image.RGBA, error) {
	rc, err := t.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	img, err := t.p.decoder.DecodeFull(t.ctx, rc, sample)
	if err != nil {
		if t.ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, err
	}
	return img, t.checkpoint()
}
