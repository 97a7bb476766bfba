package backends

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/internal/util"
	"github.com/brettbedarf/seamfs/stream"
	"github.com/cavaliergopher/cpio"
)

type cpioEntry struct {
	offset int64 // start of the entry's data within the archive
	size   int64
}

// CPIO is a read-only backend over a newc/SVR4 cpio archive. The archive is
// indexed once; every Open reopens the archive file and reads only the entry.
type CPIO struct {
	readOnlyArchive
	archive  seamfs.Entity
	tree     *archiveTree[cpioEntry]
	pipeSize int
}

var (
	_ seamfs.Backend = (*CPIO)(nil)
	_ seamfs.Sizer   = (*CPIO)(nil)
)

// countingReader tracks how far into the archive the cpio reader has consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// OpenCPIO indexes the cpio archive at file in a single sequential pass.
func OpenCPIO(ctx context.Context, file seamfs.Entity, opts Options) (*CPIO, error) {
	logger := util.GetLogger("CPIO.Open")

	f, err := file.Backend.Open(ctx, file.Path, seamfs.Read)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	counter := &countingReader{r: f}
	r := cpio.NewReader(counter)
	tree := newArchiveTree[cpioEntry]()
	entries := 0
	for {
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, cpio.ErrHeader) {
				return nil, seamfs.Unsupportedf("%s is not a cpio archive: %v", file.Path, err)
			}
			return nil, fmt.Errorf("index cpio %s: %w", file.Path, err)
		}
		switch {
		case hdr.Mode&cpio.ModeType == cpio.TypeDir:
			tree.addDir(hdr.Name)
		case hdr.Mode.IsRegular():
			tree.addFile(hdr.Name, cpioEntry{offset: counter.n, size: hdr.Size})
		default:
			logger.Trace().Str("name", hdr.Name).Stringer("mode", hdr.Mode).Msg("Skipping special entry")
			continue
		}
		entries++
	}
	logger.Debug().Str("path", file.Path.String()).Int("entries", entries).Msg("Indexed cpio archive")

	return &CPIO{
		readOnlyArchive: readOnlyArchive{name: file.Path.String()},
		archive:         file,
		tree:            tree,
		pipeSize:        opts.PipeBufferSize,
	}, nil
}

func (c *CPIO) List(_ context.Context, dir seamfs.Path) ([]seamfs.Path, error) {
	return c.tree.list(dir)
}

func (c *CPIO) Exists(_ context.Context, p seamfs.Path) (bool, error) {
	return c.tree.exists(p), nil
}

// Open seeks straight to the entry when the archive stream allows it. Otherwise
// a goroutine walks the archive and streams the entry through a pipe.
func (c *CPIO) Open(ctx context.Context, p seamfs.Path, mode seamfs.AccessMode) (seamfs.File, error) {
	if err := c.checkMode(p, mode); err != nil {
		return nil, err
	}
	entry, err := c.tree.file(p)
	if err != nil {
		return nil, err
	}
	f, err := c.archive.Backend.Open(ctx, c.archive.Path, seamfs.Read)
	if err != nil {
		return nil, err
	}
	if s, ok := f.(io.Seeker); ok {
		if _, err := s.Seek(entry.offset, io.SeekStart); err == nil {
			return readOnlyFile{stream.NewBound(f, entry.size)}, nil
		}
	}

	pipe := stream.Produce(c.pipeSize, func(w io.Writer) error {
		defer f.Close()
		r := cpio.NewReader(f)
		for {
			hdr, err := r.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return seamfs.NotFoundf("%s vanished from %s", p, c.name)
				}
				return err
			}
			if ep, ok := entryPath(hdr.Name, false); ok && ep == p {
				_, err = io.Copy(w, r)
				return err
			}
		}
	})
	return readOnlyFile{pipe}, nil
}

func (c *CPIO) Size(_ context.Context, p seamfs.Path) (int64, error) {
	entry, err := c.tree.file(p)
	if err != nil {
		return 0, err
	}
	return entry.size, nil
}

func (c *CPIO) Close() error { return nil }
