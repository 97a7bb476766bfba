// Package stream holds the byte-stream adapters used by backends and the
// composition layer: bounded views, concatenation, seek emulation over forward-only
// sources, and a blocking producer/consumer pipe.
package stream

import (
	"io"

	"github.com/brettbedarf/seamfs"
)

// Bound exposes at most n bytes of the wrapped stream. Reads never return a
// byte past the bound; writes, seeks and Close go straight to the wrapped value.
type Bound struct {
	r     io.Reader
	n     int64
	pos   int64
	start int64 // offset of the wrapped stream when the bound was created, if seekable
}

// NewBound wraps r so that no more than n bytes can be read from it.
func NewBound(r io.Reader, n int64) *Bound {
	b := &Bound{r: r, n: n}
	if s, ok := r.(io.Seeker); ok {
		if off, err := s.Seek(0, io.SeekCurrent); err == nil {
			b.start = off
		}
	}
	return b
}

// Len returns the bound.
func (b *Bound) Len() int64 { return b.n }

func (b *Bound) Read(p []byte) (int, error) {
	remaining := b.n - b.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := b.r.Read(p)
	b.pos += int64(n)
	if err == io.EOF && b.pos < b.n {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (b *Bound) Write(p []byte) (int, error) {
	w, ok := b.r.(io.Writer)
	if !ok {
		return 0, seamfs.Unsupportedf("write on read-only stream")
	}
	return w.Write(p)
}

// Seek forwards to the wrapped stream and re-derives the read position from the
// offset it reports.
func (b *Bound) Seek(offset int64, whence int) (int64, error) {
	s, ok := b.r.(io.Seeker)
	if !ok {
		return 0, seamfs.Unsupportedf("seek on forward-only stream")
	}
	off, err := s.Seek(offset, whence)
	if err != nil {
		return off, err
	}
	b.pos = off - b.start
	return off, nil
}

func (b *Bound) Close() error {
	if c, ok := b.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
