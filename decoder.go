package bitmap

import (
	"context"
	"image"
	"io"
)

// Bounds is the result of a header-only probe.
type Bounds struct {
	Width  int
	Height int
	// Format is the registered format name, e.g. "jpeg", "png", "gif".
	Format string
}

// RegionDecoder is the raster decoding capability used by decode tasks.
//
// DecodeRegion decodes rect (in stored source coordinates) at sampleSize.
// When dst is non-nil and large enough for the result, the returned image's
// pixels must alias dst; otherwise the decoder allocates.
//
// Implementations should check ctx before expensive work.
type RegionDecoder interface {
	Bounds(ctx context.Context, r io.Reader) (Bounds, error)
	DecodeFull(ctx context.Context, r io.Reader, sampleSize int) (*image.RGBA, error)
	DecodeRegion(ctx context.Context, r io.Reader, rect image.Rectangle, sampleSize int, dst []byte) (*image.RGBA, error)
}

// nonReusableFormats lists formats whose decodes never share buffers.
var nonReusableFormats = map[string]bool{
	"gif": true,
}
