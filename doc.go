// Package bitmap decodes images into reference-counted rasters and recycles
// their pixel buffers through a byte-budgeted cache.
//
// # Overview
//
// A Loader turns a Request (what to decode and how large it is shown) into
// a DecodeTask. The task measures the source, picks a power-of-two sample
// size, decodes a cropped region into a recycled buffer when one fits, and
// publishes the result into the shared cache. Views observe the task
// through its event channel.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/bitmap"
//	    "github.com/gogpu/bitmap/decoder"
//	    "github.com/gogpu/bitmap/source"
//	)
//
//	l, err := bitmap.NewLoader(decoder.NewSoftware(),
//	    bitmap.WithOrientationReader(decoder.EXIF{}))
//	if err != nil {
//	    return err
//	}
//	defer l.Close()
//
//	task, err := l.Load(bitmap.Request{
//	    Key:   source.File{Path: "photo.jpg"},
//	    Width: 160, Height: 160,
//	})
//	h, err := bitmap.Await(ctx, task.Events())
//	if err != nil {
//	    return err
//	}
//	defer h.Release()
//
// # Ownership
//
// Every raster carries a reference count. A Handle owns one reference and
// must be released when the raster is no longer displayed. When the last
// reference goes away the raster stays cached under its key, but its buffer
// becomes available to the next decode that needs one. Referenced rasters
// are never recycled or evicted.
//
// # Orientation
//
// Rasters keep their pixels in stored orientation. Width and Height report
// the upright size; Oriented returns an upright copy. Rotated sources never
// decode into recycled buffers.
//
// # Concurrency
//
// Loader, DecodeTask, Raster and Handle are safe for concurrent use. Tasks
// run on a work-stealing worker pool unless a Scheduler is injected.
package bitmap

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
