package decoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"io"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP

	"github.com/gogpu/bitmap"
)

// ErrEmptyRegion is returned when the requested region misses the image.
var ErrEmptyRegion = errors.New("decoder: region outside image bounds")

// Software decodes with the image package and downsamples with
// golang.org/x/image/draw.
//
// The registered codecs cannot decode a sub-rectangle directly, so a region
// decode decodes the whole stream and crops before scaling. The output
// still honours the caller's buffer, which is what makes recycling work.
type Software struct {
	scaler xdraw.Scaler
}

// SoftwareOption configures a Software decoder.
type SoftwareOption func(*Software)

// WithScaler sets the interpolator used for sampled decodes.
// The default is xdraw.ApproxBiLinear.
func WithScaler(s xdraw.Scaler) SoftwareOption {
	return func(d *Software) {
		if s != nil {
			d.scaler = s
		}
	}
}

// NewSoftware creates a software decoder.
func NewSoftware(opts ...SoftwareOption) *Software {
	d := &Software{scaler: xdraw.ApproxBiLinear}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bounds reads the image header.
func (d *Software) Bounds(ctx context.Context, r io.Reader) (bitmap.Bounds, error) {
	if err := ctx.Err(); err != nil {
		return bitmap.Bounds{}, err
	}
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return bitmap.Bounds{}, fmt.Errorf("decoder: read header: %w", err)
	}
	return bitmap.Bounds{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// DecodeFull decodes the whole image reduced by sampleSize.
func (d *Software) DecodeFull(ctx context.Context, r io.Reader, sampleSize int) (*image.RGBA, error) {
	src, err := d.decode(ctx, r)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0,
		bitmap.ScaledSize(b.Dx(), sampleSize), bitmap.ScaledSize(b.Dy(), sampleSize)))
	d.draw(dst, src, b, sampleSize)
	return dst, ctx.Err()
}

// DecodeRegion decodes rect reduced by sampleSize. rect is relative to the
// image origin. The result aliases dst when dst holds enough bytes.
func (d *Software) DecodeRegion(ctx context.Context, r io.Reader, rect image.Rectangle, sampleSize int, dst []byte) (*image.RGBA, error) {
	src, err := d.decode(ctx, r)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	region := rect.Add(b.Min).Intersect(b)
	if region.Empty() {
		return nil, fmt.Errorf("%w: %v not in %v", ErrEmptyRegion, rect, b.Sub(b.Min))
	}

	w := bitmap.ScaledSize(region.Dx(), sampleSize)
	h := bitmap.ScaledSize(region.Dy(), sampleSize)
	out := into(dst, w, h)
	d.draw(out, src, region, sampleSize)
	return out, ctx.Err()
}

func (d *Software) decode(ctx context.Context, r io.Reader) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoder: decode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return src, nil
}

func (d *Software) draw(dst *image.RGBA, src image.Image, sr image.Rectangle, sampleSize int) {
	if sampleSize <= 1 && dst.Bounds().Size() == sr.Size() {
		xdraw.Copy(dst, image.Point{}, src, sr, xdraw.Src, nil)
		return
	}
	d.scaler.Scale(dst, dst.Bounds(), src, sr, xdraw.Src, nil)
}

// into returns a w×h RGBA image over buf, or a fresh one when buf is too
// small.
func into(buf []byte, w, h int) *image.RGBA {
	n := w * h * bitmap.BytesPerPixel
	if len(buf) < n {
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return &image.RGBA{
		Pix:    buf[:n:n],
		Stride: w * bitmap.BytesPerPixel,
		Rect:   image.Rect(0, 0, w, h),
	}
}
