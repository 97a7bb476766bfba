package filesystem

import (
	"io"
	"sync/atomic"

	"github.com/brettbedarf/seamfs"
)

// refFile releases its reference when the stream is closed.
type refFile struct {
	seamfs.File
	ref    *Reference
	closed atomic.Bool
}

func (f *refFile) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := f.File.Close()
	f.ref.Release()
	return err
}

type seekFile struct {
	*refFile
	s io.Seeker
}

func (f seekFile) Seek(offset int64, whence int) (int64, error) {
	return f.s.Seek(offset, whence)
}

type randomAccessFile struct {
	seekFile
	ra io.ReaderAt
}

func (f randomAccessFile) ReadAt(p []byte, off int64) (int, error) {
	return f.ra.ReadAt(p, off)
}

// wrapFile ties f's lifetime to ref while keeping whichever of Seek and ReadAt
// the underlying stream offers visible to type assertions.
func wrapFile(f seamfs.File, ref *Reference) seamfs.File {
	rf := &refFile{File: f, ref: ref}
	s, ok := f.(io.Seeker)
	if !ok {
		return rf
	}
	sf := seekFile{refFile: rf, s: s}
	if ra, ok := f.(io.ReaderAt); ok {
		return randomAccessFile{seekFile: sf, ra: ra}
	}
	return sf
}
