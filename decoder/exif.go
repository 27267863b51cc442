package decoder

import (
	"io"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/gogpu/bitmap"
)

// maxMetadataBytes bounds how much of a stream the EXIF reader consumes.
const maxMetadataBytes = 1 << 20

// EXIF reads orientation from EXIF metadata in JPEG and TIFF streams.
type EXIF struct{}

// Orientation implements bitmap.OrientationReader.
func (EXIF) Orientation(r io.Reader, length int64) (bitmap.Orientation, error) {
	limit := int64(maxMetadataBytes)
	if length > 0 && length < limit {
		limit = length
	}
	x, err := exif.Decode(io.LimitReader(r, limit))
	if err != nil {
		return bitmap.Orientation0, err
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return bitmap.Orientation0, err
	}
	v, err := tag.Int(0)
	if err != nil {
		return bitmap.Orientation0, err
	}
	return FromEXIF(v), nil
}

// FromEXIF maps an EXIF orientation tag value to the clockwise rotation
// that displays the image upright. Mirrored variants map to the rotation
// of their unmirrored counterpart.
func FromEXIF(v int) bitmap.Orientation {
	switch v {
	case 3, 4:
		return bitmap.Orientation180
	case 5, 6:
		return bitmap.Orientation90
	case 7, 8:
		return bitmap.Orientation270
	default:
		return bitmap.Orientation0
	}
}
