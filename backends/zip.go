package backends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/internal/util"
	"github.com/brettbedarf/seamfs/stream"
	"github.com/klauspost/compress/zip"
)

// Zip is a read-only backend over a zip archive.
type Zip struct {
	readOnlyArchive
	src  io.Closer
	tree *archiveTree[*zip.File]
}

var (
	_ seamfs.Backend = (*Zip)(nil)
	_ seamfs.Sizer   = (*Zip)(nil)
)

// OpenZip indexes the zip archive at file. The archive stream stays open until
// the backend is closed.
func OpenZip(ctx context.Context, file seamfs.Entity, opts Options) (*Zip, error) {
	f, err := file.Backend.Open(ctx, file.Path, seamfs.Read)
	if err != nil {
		return nil, err
	}
	ra, size, err := readerAt(f, opts.SeekChunkSize)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("measure zip %s: %w", file.Path, err)
	}
	z, err := newZip(ra, size, f, file.Path.String())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return z, nil
}

// OpenSplitZip joins name.zip.001, name.zip.002, ... from file's backend and
// indexes them as a single archive. file must name the first part.
func OpenSplitZip(ctx context.Context, file seamfs.Entity, opts Options) (*Zip, error) {
	logger := util.GetLogger("Zip.OpenSplit")

	parts, err := splitParts(ctx, file)
	if err != nil {
		return nil, err
	}
	var seekers []io.ReadSeeker
	closeAll := func() {
		for _, s := range seekers {
			if c, ok := s.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}
	for _, p := range parts {
		f, err := file.Backend.Open(ctx, p, seamfs.Read)
		if err != nil {
			closeAll()
			return nil, err
		}
		rs, ok := f.(io.ReadSeeker)
		if !ok {
			rs = stream.NewSeek(f, opts.SeekChunkSize)
		}
		seekers = append(seekers, rs)
	}
	joined, err := stream.NewConcat(seekers...)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("join split zip %s: %w", file.Path, err)
	}
	logger.Debug().Str("path", file.Path.String()).Int("parts", len(parts)).Int64("size", joined.Size()).Msg("Joined split archive")

	z, err := newZip(joined, joined.Size(), joined, file.Path.String())
	if err != nil {
		_ = joined.Close()
		return nil, err
	}
	return z, nil
}

// splitParts lists the consecutive numbered parts starting at file.
func splitParts(ctx context.Context, file seamfs.Entity) ([]seamfs.Path, error) {
	ext := file.Path.Extension()
	first, err := strconv.Atoi(strings.TrimPrefix(ext, "."))
	if err != nil || first != 1 {
		return nil, seamfs.Unsupportedf("%s is not the first part of a split archive", file.Path)
	}
	width := len(ext) - 1
	parts := []seamfs.Path{file.Path}
	for i := 2; ; i++ {
		next, err := file.Path.ChangeExtension(fmt.Sprintf(".%0*d", width, i))
		if err != nil {
			return nil, err
		}
		ok, err := file.Backend.Exists(ctx, next)
		if err != nil {
			return nil, err
		}
		if !ok {
			return parts, nil
		}
		parts = append(parts, next)
	}
}

func newZip(ra io.ReaderAt, size int64, src io.Closer, name string) (*Zip, error) {
	r, err := zip.NewReader(ra, size)
	// entryPath cleans every name, so non-local names are safe to index
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		if errors.Is(err, zip.ErrFormat) {
			return nil, seamfs.Unsupportedf("%s is not a zip archive: %v", name, err)
		}
		return nil, fmt.Errorf("read zip %s: %w", name, err)
	}
	tree := newArchiveTree[*zip.File]()
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			tree.addDir(f.Name)
			continue
		}
		tree.addFile(f.Name, f)
	}
	return &Zip{readOnlyArchive: readOnlyArchive{name: name}, src: src, tree: tree}, nil
}

// readerAt returns random access over f, buffering it through a stream.Seek when
// it only reads forward.
func readerAt(f io.Reader, chunk int) (io.ReaderAt, int64, error) {
	if ra, ok := f.(interface {
		io.ReaderAt
		io.Seeker
	}); ok {
		size, err := ra.Seek(0, io.SeekEnd)
		if err == nil {
			return ra, size, nil
		}
	}
	s := stream.NewSeek(f, chunk)
	size, err := s.Size()
	return s, size, err
}

func (z *Zip) List(_ context.Context, dir seamfs.Path) ([]seamfs.Path, error) {
	return z.tree.list(dir)
}

func (z *Zip) Exists(_ context.Context, p seamfs.Path) (bool, error) {
	return z.tree.exists(p), nil
}

func (z *Zip) Open(_ context.Context, p seamfs.Path, mode seamfs.AccessMode) (seamfs.File, error) {
	if err := z.checkMode(p, mode); err != nil {
		return nil, err
	}
	zf, err := z.tree.file(p)
	if err != nil {
		return nil, err
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s in %s: %w", p, z.name, err)
	}
	return readOnlyFile{rc}, nil
}

func (z *Zip) Size(_ context.Context, p seamfs.Path) (int64, error) {
	zf, err := z.tree.file(p)
	if err != nil {
		return 0, err
	}
	return int64(zf.UncompressedSize64), nil
}

func (z *Zip) Close() error {
	return z.src.Close()
}
