package bitmap

import "errors"

// Decode pipeline errors.
var (
	// ErrCancelled is reported when a task is cancelled before it publishes.
	ErrCancelled = errors.New("bitmap: decode cancelled")

	// ErrNoBounds is returned when the source dimensions cannot be measured.
	ErrNoBounds = errors.New("bitmap: cannot measure source bounds")

	// ErrDecodeFailed is returned when every decode attempt failed.
	ErrDecodeFailed = errors.New("bitmap: decode failed")

	// ErrInvalidRequest is returned for requests without a key or with
	// non-positive target dimensions.
	ErrInvalidRequest = errors.New("bitmap: invalid request")

	// ErrClosed is returned when submitting to a closed scheduler.
	ErrClosed = errors.New("bitmap: scheduler closed")

	// ErrWriteOnce is returned when decoding into a non-reusable raster
	// that already holds pixels.
	ErrWriteOnce = errors.New("bitmap: raster is not reusable")
)
