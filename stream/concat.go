package stream

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/brettbedarf/seamfs"
)

// Concat presents several fixed-length streams as one continuous, seekable,
// read-only stream.
type Concat struct {
	mu      sync.Mutex
	parts   []io.ReadSeeker
	offsets []int64 // start offset of each part
	lengths []int64
	size    int64
	idx     int   // part holding the current position
	local   int64 // position inside parts[idx]
}

// NewConcat measures every part by seeking to its end, rewinds it, and joins
// them in order.
func NewConcat(parts ...io.ReadSeeker) (*Concat, error) {
	c := &Concat{
		parts:   parts,
		offsets: make([]int64, len(parts)),
		lengths: make([]int64, len(parts)),
	}
	for i, p := range parts {
		n, err := p.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("measure part %d: %w", i, err)
		}
		if _, err := p.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind part %d: %w", i, err)
		}
		c.offsets[i] = c.size
		c.lengths[i] = n
		c.size += n
	}
	return c, nil
}

// Size returns the combined length of all parts.
func (c *Concat) Size() int64 { return c.size }

func (c *Concat) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read(p)
}

func (c *Concat) read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(c.parts) > 0 {
		n, err := c.parts[c.idx].Read(p)
		c.local += int64(n)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		// an empty read only ends the stream on the last part
		if c.idx == len(c.parts)-1 {
			break
		}
		c.idx++
		c.local = 0
		if _, err := c.parts[c.idx].Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
	}
	return 0, io.EOF
}

// Seek moves the position, scanning from the current part toward the target.
func (c *Concat) Seek(offset int64, whence int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = c.position() + offset
	case io.SeekEnd:
		target = c.size + offset
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", seamfs.ErrInvalidOperation, whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("%w: negative position %d", seamfs.ErrInvalidOperation, target)
	}
	if err := c.setPosition(target); err != nil {
		return 0, err
	}
	return target, nil
}

func (c *Concat) position() int64 {
	if len(c.parts) == 0 {
		return c.local
	}
	return c.offsets[c.idx] + c.local
}

func (c *Concat) setPosition(target int64) error {
	if len(c.parts) == 0 {
		c.local = target
		return nil
	}
	for c.idx > 0 && target < c.offsets[c.idx] {
		c.idx--
	}
	for c.idx < len(c.parts)-1 && target >= c.offsets[c.idx]+c.lengths[c.idx] {
		c.idx++
	}
	local := target - c.offsets[c.idx]
	if _, err := c.parts[c.idx].Seek(local, io.SeekStart); err != nil {
		return err
	}
	c.local = local
	return nil
}

// ReadAt reads len(p) bytes at off without moving the stream position.
func (c *Concat) ReadAt(p []byte, off int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	saved := c.position()
	defer func() { _ = c.setPosition(saved) }()

	if err := c.setPosition(off); err != nil {
		return 0, err
	}
	total := 0
	for total < len(p) {
		n, err := c.read(p[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *Concat) Write([]byte) (int, error) {
	return 0, seamfs.Unsupportedf("write on concatenated stream")
}

func (c *Concat) Truncate(int64) error {
	return seamfs.Unsupportedf("resize of concatenated stream")
}

// Close closes every part that can be closed.
func (c *Concat) Close() error {
	var errs []error
	for _, p := range c.parts {
		if cl, ok := p.(io.Closer); ok {
			errs = append(errs, cl.Close())
		}
	}
	return errors.Join(errs...)
}
