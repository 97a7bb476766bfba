package backends

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/brettbedarf/seamfs"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compress(t *testing.T, codec Codec, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch codec {
	case ZstdCodec:
		zw, err := zstd.NewWriter(&buf, zstd.WithEncoderConcurrency(1))
		require.NoError(t, err)
		w = zw
	case GzipCodec:
		w = gzip.NewWriter(&buf)
	case LZ4Codec:
		w = lz4.NewWriter(&buf)
	default:
		t.Fatalf("unknown codec %s", codec)
	}
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestCompressed_Codecs(t *testing.T) {
	t.Parallel()
	payload := []byte(strings.Repeat("compressible payload ", 2000))

	tests := []struct {
		codec Codec
		file  string
	}{
		{ZstdCodec, "/logs/app.log.zst"},
		{GzipCodec, "/logs/app.log.gz"},
		{LZ4Codec, "/logs/app.log.lz4"},
	}
	for _, tt := range tests {
		t.Run(string(tt.codec), func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			mem := NewMemory()
			putFile(t, mem, tt.file, compress(t, tt.codec, payload))

			c, err := OpenCompressed(ctx, seamfs.Entity{Backend: mem, Path: pathOf(tt.file)}, tt.codec, testOptions())
			require.NoError(t, err)
			defer c.Close()

			list, err := c.List(ctx, seamfs.Root())
			require.NoError(t, err)
			assert.Equal(t, []seamfs.Path{pathOf("/app.log")}, list)

			assert.Equal(t, payload, readFile(t, c, "/app.log"))
		})
	}
}

func TestCompressed_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	putFile(t, mem, "/a.gz", compress(t, GzipCodec, []byte("hi")))

	_, err := OpenCompressed(ctx, seamfs.Entity{Backend: mem, Path: pathOf("/missing.gz")}, GzipCodec, testOptions())
	assert.ErrorIs(t, err, seamfs.ErrNotFound)

	c, err := OpenCompressed(ctx, seamfs.Entity{Backend: mem, Path: pathOf("/a.gz")}, GzipCodec, testOptions())
	require.NoError(t, err)
	defer c.Close()

	ok, err := c.Exists(ctx, pathOf("/a"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Exists(ctx, pathOf("/b"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Open(ctx, pathOf("/a"), seamfs.Write)
	assert.ErrorIs(t, err, seamfs.ErrUnsupported)
	_, err = c.Open(ctx, pathOf("/b"), seamfs.Read)
	assert.ErrorIs(t, err, seamfs.ErrNotFound)
	_, err = c.List(ctx, pathOf("/sub/"))
	assert.ErrorIs(t, err, seamfs.ErrNotFound)
}

func TestCompressed_CorruptPayloadSurfacesOnRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	putFile(t, mem, "/bad.gz", []byte("this is not gzip"))

	c, err := OpenCompressed(ctx, seamfs.Entity{Backend: mem, Path: pathOf("/bad.gz")}, GzipCodec, testOptions())
	require.NoError(t, err, "nothing is decoded until the payload is opened")
	defer c.Close()

	f, err := c.Open(ctx, pathOf("/bad"), seamfs.Read)
	require.NoError(t, err)
	defer f.Close()
	_, err = io.ReadAll(f)
	assert.Error(t, err)
}

func TestCompressed_EarlyClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	putFile(t, mem, "/big.zst", compress(t, ZstdCodec, bytes.Repeat([]byte{7}, 1<<20)))

	c, err := OpenCompressed(ctx, seamfs.Entity{Backend: mem, Path: pathOf("/big.zst")}, ZstdCodec, testOptions())
	require.NoError(t, err)
	defer c.Close()

	f, err := c.Open(ctx, pathOf("/big"), seamfs.Read)
	require.NoError(t, err)
	buf := make([]byte, 100)
	_, err = io.ReadFull(f, buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestCompressed_CloseWaitsForDecoder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	putFile(t, mem, "/big.gz", compress(t, GzipCodec, bytes.Repeat([]byte("z"), 1<<20)))
	src := &closeCounting{Backend: mem}

	c, err := OpenCompressed(ctx, seamfs.Entity{Backend: src, Path: pathOf("/big.gz")}, GzipCodec, testOptions())
	require.NoError(t, err)
	defer c.Close()

	f, err := c.Open(ctx, pathOf("/big"), seamfs.Read)
	require.NoError(t, err)
	_, err = io.ReadFull(f, make([]byte, 10))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Zero(t, src.open.Load(), "the payload is closed before the entry's Close returns")
}
