package backends

import (
	"context"
	"fmt"
	"io"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/stream"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names a single-stream compression format.
type Codec string

const (
	ZstdCodec Codec = "zstd"
	GzipCodec Codec = "gzip"
	LZ4Codec  Codec = "lz4"
)

// Compressed mounts a single compressed file as a directory holding exactly one
// file: the decompressed payload, named after the archive minus its extension.
type Compressed struct {
	readOnlyArchive
	archive  seamfs.Entity
	inner    seamfs.Path
	codec    Codec
	pipeSize int
}

var _ seamfs.Backend = (*Compressed)(nil)

// OpenCompressed checks the archive exists and exposes its payload. Nothing is
// decoded until the payload is opened.
func OpenCompressed(ctx context.Context, file seamfs.Entity, codec Codec, opts Options) (*Compressed, error) {
	ok, err := file.Backend.Exists(ctx, file.Path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, seamfs.NotFoundf("%s", file.Path)
	}
	stripped, err := file.Path.ChangeExtension("")
	if err != nil {
		return nil, err
	}
	name, _ := stripped.EntityName()
	if stripped == file.Path {
		name = "data"
	}
	inner, err := seamfs.Root().AppendFile(name)
	if err != nil {
		return nil, err
	}
	return &Compressed{
		readOnlyArchive: readOnlyArchive{name: file.Path.String()},
		archive:         file,
		inner:           inner,
		codec:           codec,
		pipeSize:        opts.PipeBufferSize,
	}, nil
}

func (c *Compressed) List(_ context.Context, dir seamfs.Path) ([]seamfs.Path, error) {
	if !dir.IsDirectory() {
		return nil, seamfs.InvalidOperationf("list on file path %s", dir)
	}
	if !dir.IsRoot() {
		return nil, seamfs.NotFoundf("%s", dir)
	}
	return []seamfs.Path{c.inner}, nil
}

func (c *Compressed) Exists(_ context.Context, p seamfs.Path) (bool, error) {
	return p.IsRoot() || p == c.inner, nil
}

// Open decodes the payload on a producer goroutine and hands back the reading
// end of a pipe.
func (c *Compressed) Open(ctx context.Context, p seamfs.Path, mode seamfs.AccessMode) (seamfs.File, error) {
	if err := c.checkMode(p, mode); err != nil {
		return nil, err
	}
	if p.IsDirectory() {
		return nil, seamfs.InvalidOperationf("open on directory path %s", p)
	}
	if p != c.inner {
		return nil, seamfs.NotFoundf("%s", p)
	}
	f, err := c.archive.Backend.Open(ctx, c.archive.Path, seamfs.Read)
	if err != nil {
		return nil, err
	}
	pipe := stream.Produce(c.pipeSize, func(w io.Writer) error {
		defer f.Close()
		return decode(c.codec, w, f)
	})
	return readOnlyFile{pipe}, nil
}

func decode(codec Codec, w io.Writer, r io.Reader) error {
	switch codec {
	case ZstdCodec:
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return err
		}
		defer d.Close()
		_, err = io.Copy(w, d)
		return err
	case GzipCodec:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return err
		}
		defer gr.Close()
		_, err = io.Copy(w, gr)
		return err
	case LZ4Codec:
		_, err := io.Copy(w, lz4.NewReader(r))
		return err
	default:
		return seamfs.Unsupportedf("codec %q", codec)
	}
}

func (c *Compressed) Close() error { return nil }

func (c *Compressed) String() string {
	return fmt.Sprintf("%s (%s)", c.name, c.codec)
}
