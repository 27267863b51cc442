package bitmap

import (
	"image"
	"math"
	"math/bits"
)

// DefaultVerticalCenter places crops around the upper third of the source,
// which keeps faces in frame for portrait content.
const DefaultVerticalCenter = 1.0 / 3.0

// SampleSize returns the largest power-of-two downsample factor that keeps a
// srcW×srcH source no smaller than dstW×dstH in both dimensions.
// The result is never below 1; degenerate inputs yield 1.
func SampleSize(srcW, srcH, dstW, dstH int) int {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return 1
	}
	ratio := min(srcW/dstW, srcH/dstH)
	if ratio <= 1 {
		return 1
	}
	return 1 << (bits.Len(uint(ratio)) - 1)
}

// ScaledSize returns the length of n source pixels decoded at sample size s,
// rounding up so a partial block still produces a pixel.
func ScaledSize(n, s int) int {
	if s < 1 {
		s = 1
	}
	if n <= 0 {
		return 0
	}
	return (n + s - 1) / s
}

// CropRect computes the source rectangle to decode for a dstW×dstH target.
//
// The rectangle has the target's aspect ratio and covers at most dstW×dstH
// pixels after sampling, so a region decode at sampleSize lands exactly on
// the target. It is centered horizontally and centered vertically on
// verticalCenter (a fraction of srcH), clamped to the source.
//
// All coordinates are upright; callers with rotated sources convert the
// result with Orientation.ToStored.
func CropRect(srcW, srcH, dstW, dstH, sampleSize int, verticalCenter float64) image.Rectangle {
	if srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}
	}
	if dstW <= 0 || dstH <= 0 {
		return image.Rect(0, 0, srcW, srcH)
	}
	if sampleSize < 1 {
		sampleSize = 1
	}

	scale := math.Min(float64(srcW)/float64(dstW), float64(srcH)/float64(dstH))
	scale = math.Min(scale, float64(sampleSize))

	cropW := clamp(int(math.Round(float64(dstW)*scale)), 1, srcW)
	cropH := clamp(int(math.Round(float64(dstH)*scale)), 1, srcH)

	left := (srcW - cropW) / 2
	center := int(math.Round(float64(srcH) * verticalCenter))
	top := clamp(center-cropH/2, 0, srcH-cropH)

	return image.Rect(left, top, left+cropW, top+cropH)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
