package fusefs

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brettbedarf/seamfs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

// inodeTable hands out stable inode numbers per composed path. Numbers are never
// reused while the mount lives.
type inodeTable struct {
	lastIno atomic.Uint64 // last number handed out; root is FUSE_ROOT_ID
	byPath  *xsync.Map[seamfs.Path, uint64]
}

func newInodeTable() *inodeTable {
	t := &inodeTable{byPath: xsync.NewMap[seamfs.Path, uint64]()}
	t.lastIno.Store(fuse.FUSE_ROOT_ID)
	t.byPath.Store(seamfs.Root(), fuse.FUSE_ROOT_ID)
	return t
}

func (t *inodeTable) ino(p seamfs.Path) uint64 {
	ino, _ := t.byPath.LoadOrCompute(p, func() (uint64, bool) {
		return t.lastIno.Add(1), false
	})
	return ino
}

// newDefaultAttr returns attributes owned by the mounting user. Callers set Mode.
func newDefaultAttr(ino uint64) fuse.Attr {
	now := time.Now()
	return fuse.Attr{
		Ino:   ino,
		Nlink: 1,
		Owner: fuse.Owner{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		},
		Atime:     uint64(now.Unix()),
		Mtime:     uint64(now.Unix()),
		Ctime:     uint64(now.Unix()),
		Atimensec: uint32(now.Nanosecond()),
		Mtimensec: uint32(now.Nanosecond()),
		Ctimensec: uint32(now.Nanosecond()),
		Blksize:   4096,
	}
}

func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, seamfs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, seamfs.ErrUnsupported):
		return syscall.ENOTSUP
	case errors.Is(err, seamfs.ErrInvalidOperation):
		return syscall.EINVAL
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return syscall.EINTR
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
