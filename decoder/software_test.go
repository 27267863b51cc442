package decoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadrants encodes a w×h PNG whose four quadrants are red, green, blue and
// white (clockwise from top left).
func quadrants(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			var c color.RGBA
			switch {
			case x < w/2 && y < h/2:
				c = color.RGBA{R: 255, A: 255}
			case y < h/2:
				c = color.RGBA{G: 255, A: 255}
			case x >= w/2:
				c = color.RGBA{B: 255, A: 255}
			default:
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSoftware_Bounds(t *testing.T) {
	data := quadrants(t, 64, 32)

	b, err := NewSoftware().Bounds(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, b.Width)
	assert.Equal(t, 32, b.Height)
	assert.Equal(t, "png", b.Format)
}

func TestSoftware_BoundsGarbage(t *testing.T) {
	_, err := NewSoftware().Bounds(context.Background(), bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestSoftware_DecodeFullSampled(t *testing.T) {
	data := quadrants(t, 64, 30)

	img, err := NewSoftware().DecodeFull(context.Background(), bytes.NewReader(data), 4)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
}

func TestSoftware_DecodeRegionIntoBuffer(t *testing.T) {
	data := quadrants(t, 64, 64)
	dst := make([]byte, 32*32*4)

	// Bottom-right quadrant at full resolution.
	img, err := NewSoftware().DecodeRegion(context.Background(), bytes.NewReader(data),
		image.Rect(32, 32, 64, 64), 1, dst)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())
	assert.Same(t, &dst[0], &img.Pix[0], "result must alias the caller buffer")
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.RGBAAt(5, 5))
}

func TestSoftware_DecodeRegionSampled(t *testing.T) {
	data := quadrants(t, 64, 64)
	dst := make([]byte, 8*8*4)

	img, err := NewSoftware().DecodeRegion(context.Background(), bytes.NewReader(data),
		image.Rect(0, 0, 32, 32), 4, dst)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(4, 4))
}

func TestSoftware_DecodeRegionSmallBufferAllocates(t *testing.T) {
	data := quadrants(t, 64, 64)
	dst := make([]byte, 16)

	img, err := NewSoftware().DecodeRegion(context.Background(), bytes.NewReader(data),
		image.Rect(0, 0, 32, 32), 1, dst)
	require.NoError(t, err)
	assert.Len(t, img.Pix, 32*32*4)
	assert.NotSame(t, &dst[0], &img.Pix[0])
}

func TestSoftware_DecodeRegionOutside(t *testing.T) {
	data := quadrants(t, 16, 16)

	_, err := NewSoftware().DecodeRegion(context.Background(), bytes.NewReader(data),
		image.Rect(100, 100, 120, 120), 1, nil)
	assert.ErrorIs(t, err, ErrEmptyRegion)
}

func TestSoftware_CancelledContext(t *testing.T) {
	data := quadrants(t, 16, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewSoftware()
	_, err := d.Bounds(ctx, bytes.NewReader(data))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = d.DecodeFull(ctx, bytes.NewReader(data), 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = d.DecodeRegion(ctx, bytes.NewReader(data), image.Rect(0, 0, 8, 8), 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
