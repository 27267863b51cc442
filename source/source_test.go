package source

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/bitmap"
)

var payload = []byte("\x89PNG not really, but bytes are bytes")

func readAll(t *testing.T, k bitmap.RequestKey) []byte {
	t.Helper()
	rc, err := k.Open(context.Background())
	require.NoError(t, err)
	defer func() { require.NoError(t, rc.Close()) }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	k := File{Path: path}
	assert.Equal(t, payload, readAll(t, k))
	assert.Equal(t, int64(len(payload)), k.Size())
	assert.Equal(t, k, File{Path: path}, "equal paths are equal keys")
}

func TestFile_Missing(t *testing.T) {
	k := File{Path: filepath.Join(t.TempDir(), "missing.png")}
	_, err := k.Open(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, int64(-1), k.Size())
}

func TestMemory(t *testing.T) {
	a := NewMemory("a", payload)
	b := NewMemory("a", payload)

	assert.Equal(t, payload, readAll(t, a))
	assert.Equal(t, payload, readAll(t, a), "each Open returns a fresh stream")
	assert.Equal(t, int64(len(payload)), a.Size())

	keys := map[bitmap.RequestKey]int{a: 1, b: 2}
	assert.Len(t, keys, 2, "memory keys compare by identity")
}

func TestOpen_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, k := range []bitmap.RequestKey{File{Path: "x"}, NewMemory("m", nil), Compressed{Path: "x"}} {
		_, err := k.Open(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestCompressed(t *testing.T) {
	dir := t.TempDir()

	var zbuf bytes.Buffer
	zw, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	zpath := filepath.Join(dir, "a.png.zst")
	require.NoError(t, os.WriteFile(zpath, zbuf.Bytes(), 0o600))

	var gbuf bytes.Buffer
	gw := gzip.NewWriter(&gbuf)
	_, err = gw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	gpath := filepath.Join(dir, "a.png.gz")
	require.NoError(t, os.WriteFile(gpath, gbuf.Bytes(), 0o600))

	assert.Equal(t, payload, readAll(t, Compressed{Path: zpath, Codec: Zstd}))
	assert.Equal(t, payload, readAll(t, Compressed{Path: gpath, Codec: Gzip}))
	assert.Equal(t, payload, readAll(t, FromPath(zpath)))
	assert.Equal(t, payload, readAll(t, FromPath(gpath)))
}

func TestCompressed_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gz")
	require.NoError(t, os.WriteFile(path, []byte("plain"), 0o600))

	_, err := Compressed{Path: path, Codec: Gzip}.Open(context.Background())
	assert.Error(t, err)
}

func TestFromPath(t *testing.T) {
	assert.Equal(t, File{Path: "a.jpg"}, FromPath("a.jpg"))
	assert.Equal(t, Compressed{Path: "a.png.ZST", Codec: Zstd}, FromPath("a.png.ZST"))
	assert.Equal(t, Compressed{Path: "a.jpg.gz", Codec: Gzip}, FromPath("a.jpg.gz"))
}
