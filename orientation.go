package bitmap

import (
	"image"
	"io"
	"strconv"
)

// Orientation is the clockwise rotation, in degrees, that turns the stored
// pixels upright. Only 0, 90, 180 and 270 are meaningful.
type Orientation int

// Supported orientations.
const (
	Orientation0   Orientation = 0
	Orientation90  Orientation = 90
	Orientation180 Orientation = 180
	Orientation270 Orientation = 270
)

// OrientationReader extracts orientation metadata from an encoded stream.
// length is the declared stream length, or -1 when unknown.
type OrientationReader interface {
	Orientation(r io.Reader, length int64) (Orientation, error)
}

// OrientationReaderFunc adapts a function to OrientationReader.
type OrientationReaderFunc func(r io.Reader, length int64) (Orientation, error)

// Orientation implements OrientationReader.
func (f OrientationReaderFunc) Orientation(r io.Reader, length int64) (Orientation, error) {
	return f(r, length)
}

// NormalizeOrientation maps any multiple of 90 degrees, positive or
// negative, into [0, 360). Other values map to Orientation0.
func NormalizeOrientation(deg int) Orientation {
	if deg%90 != 0 {
		return Orientation0
	}
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return Orientation(deg)
}

// Valid reports whether o is one of the four supported rotations.
func (o Orientation) Valid() bool {
	switch o {
	case Orientation0, Orientation90, Orientation180, Orientation270:
		return true
	}
	return false
}

// SwapsAxes reports whether width and height trade places when upright.
func (o Orientation) SwapsAxes() bool {
	return o == Orientation90 || o == Orientation270
}

// String returns the rotation in degrees.
func (o Orientation) String() string {
	return strconv.Itoa(int(o)) + "°"
}

// Upright returns the size of a w×h stored image once rotated by o.
func (o Orientation) Upright(w, h int) (int, int) {
	if o.SwapsAxes() {
		return h, w
	}
	return w, h
}

// ToStored maps a rectangle in upright coordinates back into stored
// (pre-rotation) coordinates. uw and uh are the upright image dimensions.
func (o Orientation) ToStored(r image.Rectangle, uw, uh int) image.Rectangle {
	switch o {
	case Orientation90:
		// stored (x, y) shows at upright (uw-1-y, x)
		return image.Rect(r.Min.Y, uw-r.Max.X, r.Max.Y, uw-r.Min.X)
	case Orientation180:
		return image.Rect(uw-r.Max.X, uh-r.Max.Y, uw-r.Min.X, uh-r.Min.Y)
	case Orientation270:
		// stored (x, y) shows at upright (y, uh-1-x)
		return image.Rect(uh-r.Max.Y, r.Min.X, uh-r.Min.Y, r.Max.X)
	default:
		return r
	}
}
