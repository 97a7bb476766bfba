package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/brettbedarf/seamfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBound_ClampsReads(t *testing.T) {
	t.Parallel()

	data := testData(100)
	b := NewBound(bytes.NewReader(data), 40)

	got, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, data[:40], got, "no byte past the bound may be returned")

	n, err := b.Read(make([]byte, 10))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestBound_StartsAtCurrentOffset(t *testing.T) {
	t.Parallel()

	data := testData(100)
	r := bytes.NewReader(data)
	_, err := r.Seek(10, io.SeekStart)
	require.NoError(t, err)

	b := NewBound(r, 20)
	got, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, data[10:30], got)

	// seeking passes through and the bound follows the new offset
	off, err := b.Seek(25, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(25), off)
	got, err = io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, data[25:30], got)
}

func TestBound_ShortSource(t *testing.T) {
	t.Parallel()

	b := NewBound(bytes.NewReader([]byte("abc")), 10)
	got, err := io.ReadAll(b)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, []byte("abc"), got)
}

func TestBound_PassThrough(t *testing.T) {
	t.Parallel()

	_, err := NewBound(bytes.NewReader(nil), 1).Write([]byte("x"))
	assert.ErrorIs(t, err, seamfs.ErrUnsupported)

	_, err = NewBound(newForwardOnly(nil), 1).Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, seamfs.ErrUnsupported)

	ct := &closeTracker{Reader: bytes.NewReader(nil)}
	require.NoError(t, NewBound(ct, 1).Close())
	assert.Equal(t, 1, ct.closed)
}
