package stream

// ring is a fixed-capacity circular byte buffer. It is not safe for concurrent
// use; Pipe guards it.
type ring struct {
	buf []byte
	r   int // next byte to read
	n   int // bytes stored
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]byte, capacity)}
}

func (b *ring) len() int  { return b.n }
func (b *ring) free() int { return len(b.buf) - b.n }

// write stores as much of p as fits and returns how much that was.
func (b *ring) write(p []byte) int {
	written := 0
	for written < len(p) && b.free() > 0 {
		w := (b.r + b.n) % len(b.buf)
		end := len(b.buf)
		if w < b.r {
			end = b.r
		}
		k := copy(b.buf[w:end], p[written:])
		b.n += k
		written += k
	}
	return written
}

// read drains up to len(p) bytes into p.
func (b *ring) read(p []byte) int {
	read := 0
	for read < len(p) && b.n > 0 {
		end := min(b.r+b.n, len(b.buf))
		k := copy(p[read:], b.buf[b.r:end])
		b.r = (b.r + k) % len(b.buf)
		b.n -= k
		read += k
	}
	return read
}
