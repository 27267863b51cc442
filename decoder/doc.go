// Package decoder provides the software implementations of the bitmap
// decoding capabilities: a region decoder over the registered image formats
// and an EXIF orientation reader.
//
// Importing the package registers JPEG, PNG, GIF, BMP, TIFF and WebP with
// the image package.
package decoder
