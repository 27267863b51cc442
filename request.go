package bitmap

import (
	"context"
	"fmt"
	"io"
)

// RequestKey identifies what to decode.
//
// Implementations must be comparable (they are used as map keys) and equal
// keys must name the same content for as long as a cache entry lives.
// Open is called once per decode phase, so it must return a fresh stream
// each time.
type RequestKey interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Sizer is implemented by keys that know their encoded length.
// The length is passed to the OrientationReader.
type Sizer interface {
	Size() int64
}

// Request describes one decode: the key, the size the raster is displayed
// at, and the size of the buffer it decodes into.
type Request struct {
	Key RequestKey

	// Width and Height are the display dimensions.
	Width  int
	Height int

	// BufferWidth and BufferHeight size the pixel buffer. They may exceed the
	// display dimensions to leave room for partial scroll reuse. Zero means
	// "same as display".
	BufferWidth  int
	BufferHeight int
}

// Validate reports whether the request can be decoded.
func (r Request) Validate() error {
	if r.Key == nil {
		return fmt.Errorf("%w: missing key", ErrInvalidRequest)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: display size %dx%d", ErrInvalidRequest, r.Width, r.Height)
	}
	if r.BufferWidth < 0 || r.BufferHeight < 0 {
		return fmt.Errorf("%w: buffer size %dx%d", ErrInvalidRequest, r.BufferWidth, r.BufferHeight)
	}
	return nil
}

// DecodeSize returns the target decode dimensions: the buffer size, never
// smaller than the display size.
func (r Request) DecodeSize() (int, int) {
	return max(r.BufferWidth, r.Width), max(r.BufferHeight, r.Height)
}

// sourceSize returns the declared length of the key's content, or -1.
func sourceSize(k RequestKey) int64 {
	if s, ok := k.(Sizer); ok {
		return s.Size()
	}
	return -1
}
