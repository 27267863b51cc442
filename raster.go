package bitmap

import (
	"image"
	"runtime"
	"sync/atomic"
)

// BytesPerPixel is the storage cost of one RGBA pixel.
const BytesPerPixel = 4

// Raster is a decoded image backed by exactly one pixel buffer.
//
// The buffer length is fixed at allocation. A decode may use any w×h with
// w*h*BytesPerPixel <= ByteCount, which lets a buffer sized for one request
// be recycled into another.
//
// Reference counting: Acquire and Release are the only mutators of the count
// and are safe from any goroutine. The 1→0 transition happens exactly once
// per cycle. With a recycler installed (normally the cache's Reclaim) the
// recycler performs that transition through ReleaseLast and decides whether
// the raster is kept, pooled, or dropped.
//
// A raster that is not reusable is written once and never recycled.
type Raster struct {
	pix []byte
	img *image.RGBA

	width       int
	height      int
	orientation Orientation
	reusable    bool

	refs    atomic.Int32
	recycle func(*Raster) bool
}

// NewRaster allocates a raster able to hold width×height pixels.
// Non-positive dimensions yield an empty raster.
func NewRaster(width, height int, reusable bool) *Raster {
	n := 0
	if width > 0 && height > 0 {
		n = width * height * BytesPerPixel
	}
	return &Raster{
		pix:      make([]byte, n),
		reusable: reusable,
	}
}

// wrapRaster adopts an already decoded image as a raster's buffer.
func wrapRaster(img *image.RGBA, reusable bool) *Raster {
	return &Raster{
		pix:      img.Pix,
		img:      img,
		reusable: reusable,
	}
}

// SetRecycler installs the function that drops the last reference. fn must
// call ReleaseLast and report its result. It must be set before the raster
// is shared.
func (r *Raster) SetRecycler(fn func(*Raster) bool) {
	r.recycle = fn
}

// Acquire adds a reference.
func (r *Raster) Acquire() {
	r.refs.Add(1)
}

// Release drops a reference. The last reference is handed to the recycler;
// releasing at zero is logged and ignored.
func (r *Raster) Release() {
	for {
		n := r.refs.Load()
		if n <= 0 {
			Logger().Warn("bitmap: release of unreferenced raster", "refs", n)
			return
		}
		if n == 1 && r.recycle != nil {
			if r.recycle(r) {
				return
			}
			continue
		}
		if r.refs.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// ReleaseLast moves the count from 1 to 0 and reports whether it did.
// Only recyclers call it.
func (r *Raster) ReleaseLast() bool {
	return r.refs.CompareAndSwap(1, 0)
}

// RefCount returns the current number of references.
func (r *Raster) RefCount() int32 {
	return r.refs.Load()
}

// Reusable reports whether the buffer may back a future, unrelated decode.
func (r *Raster) Reusable() bool {
	return r.reusable
}

// ByteCount returns the length of the backing buffer.
func (r *Raster) ByteCount() int {
	return len(r.pix)
}

// Width returns the logical (upright) width.
func (r *Raster) Width() int {
	return r.width
}

// Height returns the logical (upright) height.
func (r *Raster) Height() int {
	return r.height
}

// Orientation returns the rotation needed to display the pixels upright.
func (r *Raster) Orientation() Orientation {
	return r.orientation
}

// Image returns the decoded pixels in stored orientation, or nil before the
// first decode.
func (r *Raster) Image() *image.RGBA {
	return r.img
}

// Oriented returns an upright copy of the decoded pixels.
// With Orientation0 it returns Image itself.
func (r *Raster) Oriented() image.Image {
	if r.img == nil {
		return nil
	}
	if r.orientation == Orientation0 {
		return r.img
	}
	return rotate(r.img, r.orientation)
}

// fits reports whether a w×h decode fits in the buffer.
func (r *Raster) fits(w, h int) bool {
	return w > 0 && h > 0 && w*h*BytesPerPixel <= len(r.pix)
}

// buffer returns the writable pixel storage, or nil for a non-reusable
// raster that already holds a decode.
func (r *Raster) buffer() []byte {
	if !r.reusable && r.img != nil {
		return nil
	}
	return r.pix
}

// setDecoded records the result of a decode into this raster.
func (r *Raster) setDecoded(img *image.RGBA, width, height int, o Orientation) error {
	if !r.reusable && r.img != nil && r.img != img {
		return ErrWriteOnce
	}
	r.img = img
	r.width = width
	r.height = height
	r.orientation = o
	return nil
}

// sharesBuffer reports whether img's pixels live in r's buffer.
func (r *Raster) sharesBuffer(img *image.RGBA) bool {
	return img != nil && len(img.Pix) > 0 && len(r.pix) > 0 && &img.Pix[0] == &r.pix[0]
}

// RasterSize is the cache size estimator for rasters: the byte length of the
// backing buffer.
func RasterSize(r *Raster) int {
	return r.ByteCount()
}

// rotate returns src turned clockwise by o.
func rotate(src *image.RGBA, o Orientation) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	uw, uh := o.Upright(w, h)
	dst := image.NewRGBA(image.Rect(0, 0, uw, uh))

	for y := 0; y < h; y++ {
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			var dx, dy int
			switch o {
			case Orientation90:
				dx, dy = uw-1-y, x
			case Orientation180:
				dx, dy = uw-1-x, uh-1-y
			case Orientation270:
				dx, dy = y, uh-1-x
			default:
				dx, dy = x, y
			}
			copy(dst.Pix[dst.PixOffset(dx, dy):dst.PixOffset(dx, dy)+BytesPerPixel], row[x*BytesPerPixel:])
		}
	}
	return dst
}

// Handle owns one reference to a Raster.
//
// Release gives the reference back exactly once; further calls are no-ops.
// Clone takes an additional reference for another holder. A handle that
// becomes unreachable without Release is released by the runtime and logged
// as a leak.
type Handle struct {
	state   *handleState
	cleanup runtime.Cleanup
}

type handleState struct {
	raster   *Raster
	released atomic.Bool
}

// newHandle wraps a reference the caller already holds.
func newHandle(r *Raster) *Handle {
	s := &handleState{raster: r}
	h := &Handle{state: s}
	h.cleanup = runtime.AddCleanup(h, func(s *handleState) {
		if s.released.CompareAndSwap(false, true) {
			Logger().Warn("bitmap: handle leaked without Release")
			s.raster.Release()
		}
	}, s)
	return h
}

// Raster returns the referenced raster. It must not be used after Release.
func (h *Handle) Raster() *Raster {
	return h.state.raster
}

// Clone acquires another reference and returns a handle owning it.
// Cloning a released handle returns nil.
func (h *Handle) Clone() *Handle {
	if h.state.released.Load() {
		return nil
	}
	h.state.raster.Acquire()
	return newHandle(h.state.raster)
}

// Release drops the handle's reference. It is safe to call more than once.
func (h *Handle) Release() {
	if h.state.released.CompareAndSwap(false, true) {
		h.cleanup.Stop()
		h.state.raster.Release()
	}
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h.state.released.Load()
}
