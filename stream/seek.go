package stream

import (
	"fmt"
	"io"
	"sync"

	"github.com/brettbedarf/seamfs"
)

// DefaultSeekChunkSize is how many bytes Seek pulls from its source per fill.
const DefaultSeekChunkSize = 80 * 1024

// Seek adds random access to a forward-only source by keeping every byte it has
// seen in a growable buffer. Reads and seeks past the buffered frontier pull more
// from the source first. Writes land in the buffer and are mirrored into the
// source when it is writable: positionally for an io.WriterAt, otherwise by
// appending whatever lies past the bytes the source already holds.
//
// Seek is safe for concurrent use.
type Seek struct {
	mu       sync.Mutex
	src      io.Reader
	buf      []byte
	pos      int64
	chunk    int
	eof      bool
	err      error // sticky source error
	mirrored int   // bytes of buf already present in the source
}

// NewSeek wraps src. chunkSize <= 0 selects [DefaultSeekChunkSize].
func NewSeek(src io.Reader, chunkSize int) *Seek {
	if chunkSize <= 0 {
		chunkSize = DefaultSeekChunkSize
	}
	return &Seek{src: src, chunk: chunkSize}
}

// fill pulls from the source until at least target bytes are buffered or the
// source is exhausted. target < 0 drains the source.
func (s *Seek) fill(target int64) error {
	for !s.eof && (target < 0 || int64(len(s.buf)) < target) {
		if s.err != nil {
			return s.err
		}
		if cap(s.buf)-len(s.buf) < s.chunk {
			grown := make([]byte, len(s.buf), 2*cap(s.buf)+s.chunk)
			copy(grown, s.buf)
			s.buf = grown
		}
		n, err := s.src.Read(s.buf[len(s.buf) : len(s.buf)+s.chunk])
		s.buf = s.buf[:len(s.buf)+n]
		if s.mirrored < len(s.buf) {
			s.mirrored = len(s.buf)
		}
		if err == io.EOF {
			s.eof = true
		} else if err != nil {
			s.err = err
			return err
		}
	}
	return nil
}

func (s *Seek) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fill(s.pos + int64(len(p))); err != nil {
		return 0, err
	}
	if s.pos >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.pos:])
	s.pos += int64(n)
	return n, nil
}

// ReadAt reads at off without moving the read position.
func (s *Seek) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", seamfs.ErrInvalidOperation, off)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fill(off + int64(len(p))); err != nil {
		return 0, err
	}
	if off >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek positions the stream. Seeking past the buffered frontier fast-forwards the
// source; SeekEnd drains it.
func (s *Seek) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		if err := s.fill(-1); err != nil {
			return 0, err
		}
		target = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", seamfs.ErrInvalidOperation, whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("%w: negative position %d", seamfs.ErrInvalidOperation, target)
	}
	if err := s.fill(target); err != nil {
		return 0, err
	}
	s.pos = target
	return target, nil
}

func (s *Seek) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.pos
	end := start + int64(len(p))
	// consume the source bytes being overwritten so a later fill cannot append them
	if err := s.fill(end); err != nil {
		return 0, err
	}
	if end > int64(len(s.buf)) {
		grown := make([]byte, end, max(end, int64(2*cap(s.buf))))
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[start:end], p)
	s.pos = end

	switch w := s.src.(type) {
	case io.WriterAt:
		if _, err := w.WriteAt(p, start); err != nil {
			return len(p), fmt.Errorf("mirror write: %w", err)
		}
	case io.Writer:
		if s.mirrored < len(s.buf) {
			if _, err := w.Write(s.buf[s.mirrored:]); err != nil {
				return len(p), fmt.Errorf("mirror write: %w", err)
			}
			s.mirrored = len(s.buf)
		}
	}
	return len(p), nil
}

// Len returns the number of bytes buffered so far.
func (s *Seek) Len() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.buf))
}

// Size drains the source and returns the total length.
func (s *Seek) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fill(-1); err != nil {
		return 0, err
	}
	return int64(len(s.buf)), nil
}

func (s *Seek) Close() error {
	if c, ok := s.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
