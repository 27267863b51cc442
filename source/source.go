// Package source provides request keys for common image sources.
//
// Every key is comparable so it can index the raster cache. Value keys
// (File, Compressed) compare by path; Memory keys compare by identity.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/gogpu/bitmap"
)

// File is an image stored on disk.
type File struct {
	Path string
}

// Open opens the file.
func (f File) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(f.Path)
}

// Size returns the file length, or -1 when it cannot be read.
func (f File) Size() int64 {
	fi, err := os.Stat(f.Path)
	if err != nil {
		return -1
	}
	return fi.Size()
}

func (f File) String() string {
	return f.Path
}

// Memory is an encoded image held in memory. Two Memory keys are equal only
// if they are the same pointer.
type Memory struct {
	name string
	data []byte
}

// NewMemory wraps data. The slice must not be modified afterwards.
func NewMemory(name string, data []byte) *Memory {
	return &Memory{name: name, data: data}
}

// Open returns a reader over the bytes.
func (m *Memory) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

// Size returns the encoded length.
func (m *Memory) Size() int64 {
	return int64(len(m.data))
}

func (m *Memory) String() string {
	return m.name
}

// Codec is a stream compression format.
type Codec int

// Supported codecs.
const (
	Zstd Codec = iota
	Gzip
)

func (c Codec) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case Gzip:
		return "gzip"
	default:
		return fmt.Sprintf("Codec(%d)", int(c))
	}
}

// Compressed is an image file wrapped in a compression stream, as produced
// by archiving pipelines that store .png.zst or .jpg.gz.
type Compressed struct {
	Path  string
	Codec Codec
}

// Open opens the file and returns the decompressed stream.
func (c Compressed) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}

	switch c.Codec {
	case Zstd:
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("source: zstd %s: %w", c.Path, err)
		}
		return &stream{Reader: dec, close: func() error {
			dec.Close()
			return f.Close()
		}}, nil
	case Gzip:
		dec, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("source: gzip %s: %w", c.Path, err)
		}
		return &stream{Reader: dec, close: func() error {
			_ = dec.Close()
			return f.Close()
		}}, nil
	default:
		_ = f.Close()
		return nil, fmt.Errorf("source: unknown codec %v", c.Codec)
	}
}

func (c Compressed) String() string {
	return c.Path
}

type stream struct {
	io.Reader
	close func() error
}

func (s *stream) Close() error {
	return s.close()
}

// FromPath returns the key for path, picking Compressed for .zst and .gz
// files and File otherwise.
func FromPath(path string) bitmap.RequestKey {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return Compressed{Path: path, Codec: Zstd}
	case ".gz":
		return Compressed{Path: path, Codec: Gzip}
	default:
		return File{Path: path}
	}
}
