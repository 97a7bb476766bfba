package stream

import (
	"errors"
	"io"
	"sync"
)

// DefaultPipeSize is the ring capacity used when NewPipe is given no size.
const DefaultPipeSize = 4096

// Pipe is a blocking single-producer/single-consumer byte pipe over a
// fixed-capacity ring buffer. It turns a push-style producer, such as a goroutine
// decompressing an archive entry, into an io.Reader without buffering the whole
// payload.
//
// Write blocks while the ring is full and Read blocks while it is empty. Close
// may be called by either side, any number of times: a blocked Read returns
// (0, io.EOF) and a blocked Write aborts with io.ErrClosedPipe. Data written
// before Close is still delivered.
type Pipe struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   *ring
	closed bool
	err    error // reported to the reader once drained
}

// NewPipe creates a pipe holding up to capacity bytes. capacity <= 0 selects
// [DefaultPipeSize].
func NewPipe(capacity int) *Pipe {
	if capacity <= 0 {
		capacity = DefaultPipeSize
	}
	p := &Pipe{ring: newRing(capacity)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *Pipe) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.ring.len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.ring.len() == 0 {
		if p.err != nil {
			return 0, p.err
		}
		return 0, io.EOF
	}
	n := p.ring.read(b)
	p.cond.Broadcast()
	return n, nil
}

func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	written := 0
	for written < len(b) {
		for p.ring.free() == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			return written, io.ErrClosedPipe
		}
		written += p.ring.write(b[written:])
		p.cond.Broadcast()
	}
	return written, nil
}

// Close marks the end of the stream and wakes every blocked caller.
func (p *Pipe) Close() error {
	return p.CloseWithError(nil)
}

// CloseWithError closes the pipe; once the buffered bytes are drained the reader
// sees err instead of io.EOF. Only the first close takes effect.
func (p *Pipe) CloseWithError(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.err = err
	p.cond.Broadcast()
	return nil
}

// Buffered returns the number of bytes waiting to be read.
func (p *Pipe) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ring.len()
}

// Producer is the reading end of a pipe fed by a goroutine.
type Producer struct {
	*Pipe
	done chan struct{}
}

// Produce runs fn on a new goroutine, feeding its output through a pipe of the
// given capacity, and returns the pipe for the consumer. An error from fn reaches
// the reader after the bytes written before it. If the consumer closes early, fn's
// next write fails with io.ErrClosedPipe and the goroutine exits.
func Produce(capacity int, fn func(w io.Writer) error) *Producer {
	p := &Producer{Pipe: NewPipe(capacity), done: make(chan struct{})}
	go func() {
		defer close(p.done)
		err := fn(p.Pipe)
		if errors.Is(err, io.ErrClosedPipe) {
			err = nil
		}
		_ = p.CloseWithError(err)
	}()
	return p
}

// Close closes the pipe and waits for the producer to return, so whatever fn
// holds is released by the time Close does.
func (p *Producer) Close() error {
	_ = p.Pipe.Close()
	<-p.done
	return nil
}

// Done is closed once the producer has returned.
func (p *Producer) Done() <-chan struct{} { return p.done }
