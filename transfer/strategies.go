package transfer

import (
	"context"
	"fmt"
	"io"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/config"
)

// RenameStrategy moves an entity natively when both sides live in the same
// backend and that backend implements [seamfs.Renamer].
type RenameStrategy struct{}

func (RenameStrategy) Supports(op Op, src, dst seamfs.Entity) bool {
	if op != MoveOp || src.Backend != dst.Backend {
		return false
	}
	_, ok := src.Backend.(seamfs.Renamer)
	return ok
}

func (RenameStrategy) Transfer(ctx context.Context, _ Op, src, dst seamfs.Entity) error {
	return src.Backend.(seamfs.Renamer).Rename(ctx, src.Path, dst.Path)
}

// StreamStrategy copies a file's bytes through a buffer. Moves delete the source
// after the destination is closed.
type StreamStrategy struct {
	BufferSize int
}

func (StreamStrategy) Supports(_ Op, src, _ seamfs.Entity) bool {
	return !src.IsDirectory()
}

func (s StreamStrategy) Transfer(ctx context.Context, op Op, src, dst seamfs.Entity) error {
	in, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := dst.Backend.Create(ctx, dst.Path)
	if err != nil {
		return err
	}
	size := s.BufferSize
	if size <= 0 {
		size = config.DefaultCopyBufferSize
	}
	_, err = io.CopyBuffer(writerOnly{out}, &ctxReader{ctx: ctx, r: in}, make([]byte, size))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s %s to %s: %w", op, src.Path, dst.Path, err)
	}
	if op == MoveOp {
		// drop our handle before deleting so backends that refuse to delete open
		// files can proceed
		_ = in.Close()
		return src.Backend.Delete(ctx, src.Path)
	}
	return nil
}

// ctxReader stops a copy between chunks once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// writerOnly hides ReadFrom so io.CopyBuffer uses the given buffer and the reader
// keeps checking ctx.
type writerOnly struct {
	io.Writer
}
