package bitmap

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrientation(t *testing.T) {
	assert.Equal(t, Orientation0, NormalizeOrientation(0))
	assert.Equal(t, Orientation90, NormalizeOrientation(90))
	assert.Equal(t, Orientation270, NormalizeOrientation(-90))
	assert.Equal(t, Orientation180, NormalizeOrientation(540))
	assert.Equal(t, Orientation0, NormalizeOrientation(45))
}

func TestOrientation_Upright(t *testing.T) {
	w, h := Orientation90.Upright(600, 800)
	assert.Equal(t, [2]int{800, 600}, [2]int{w, h})
	w, h = Orientation180.Upright(600, 800)
	assert.Equal(t, [2]int{600, 800}, [2]int{w, h})
	assert.True(t, Orientation270.SwapsAxes())
	assert.False(t, Orientation180.SwapsAxes())
	assert.False(t, Orientation(45).Valid())
	assert.Equal(t, "90°", Orientation90.String())
}

// TestOrientation_ToStored checks the mapping against an actual rotation:
// every upright pixel inside the rect must come from a stored pixel inside
// the mapped rect.
func TestOrientation_ToStored(t *testing.T) {
	const sw, sh = 6, 4
	src := image.NewRGBA(image.Rect(0, 0, sw, sh))
	for y := range sh {
		for x := range sw {
			src.Pix[src.PixOffset(x, y)] = uint8(y*sw + x)
		}
	}
	upright := image.Rect(1, 1, 3, 4)

	for _, o := range []Orientation{Orientation0, Orientation90, Orientation180, Orientation270} {
		t.Run(o.String(), func(t *testing.T) {
			rot := rotate(src, o)
			uw, uh := o.Upright(sw, sh)
			stored := o.ToStored(upright.Intersect(image.Rect(0, 0, uw, uh)), uw, uh)

			inside := map[uint8]bool{}
			for y := stored.Min.Y; y < stored.Max.Y; y++ {
				for x := stored.Min.X; x < stored.Max.X; x++ {
					inside[src.Pix[src.PixOffset(x, y)]] = true
				}
			}
			r := upright.Intersect(rot.Bounds())
			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					assert.True(t, inside[rot.Pix[rot.PixOffset(x, y)]], "upright (%d,%d)", x, y)
				}
			}
			assert.Equal(t, r.Dx()*r.Dy(), stored.Dx()*stored.Dy())
		})
	}
}
