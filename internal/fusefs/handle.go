package fusefs

import (
	"context"
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/internal/util"
	"github.com/brettbedarf/seamfs/stream"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// handle serves positional reads for one open file. Streams without ReadAt are
// wrapped in a [stream.Seek] so the kernel can read at any offset.
type handle struct {
	mu     sync.Mutex
	file   seamfs.File
	ra     io.ReaderAt
	closed bool
}

var _ gofuse.FileReader = (*handle)(nil)
var _ gofuse.FileReleaser = (*handle)(nil)

func newHandle(f seamfs.File, chunkSize int) *handle {
	h := &handle{file: f}
	if ra, ok := f.(io.ReaderAt); ok {
		h.ra = ra
	} else {
		h.ra = stream.NewSeek(f, chunkSize)
	}
	return h
}

func (h *handle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, syscall.EBADF
	}
	n, err := h.ra.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		logger := util.GetLogger("FuseFS.Read")
		logger.Error().Err(err).Int64("offset", off).Msg("Read failed")
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

// Release closes the file, which gives back its archive references.
func (h *handle) Release(context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	h.closed = true
	if err := h.file.Close(); err != nil {
		logger := util.GetLogger("FuseFS.Release")
		logger.Warn().Err(err).Msg("Close failed")
		return toErrno(err)
	}
	return 0
}
