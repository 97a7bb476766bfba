package seamfs

import (
	"context"
	"io"
)

// AccessMode selects how [Backend.Open] opens a file.
type AccessMode int

const (
	Read AccessMode = iota
	Write
	ReadWrite
)

func (m AccessMode) String() string {
	switch m {
	case Read:
		return "read"
	case Write:
		return "write"
	case ReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// CanRead reports whether the mode allows reading.
func (m AccessMode) CanRead() bool { return m == Read || m == ReadWrite }

// CanWrite reports whether the mode allows writing.
func (m AccessMode) CanWrite() bool { return m == Write || m == ReadWrite }

// File is an open byte stream returned by a backend. Seeking and positional reads
// are optional and discovered with type assertions on io.Seeker and io.ReaderAt.
// Read-only implementations return [ErrUnsupported] from Write.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// Backend is the capability contract every storage provider satisfies.
// Paths are always interpreted relative to the backend's own root. File calls on
// directory paths (and vice versa) fail with [ErrInvalidOperation] or
// [ErrNotFound]; backends never coerce one into the other.
type Backend interface {
	// List returns the direct children of dir.
	List(ctx context.Context, dir Path) ([]Path, error)

	// Exists reports whether an entity of p's kind exists at p.
	Exists(ctx context.Context, p Path) (bool, error)

	// Open opens an existing file.
	Open(ctx context.Context, p Path, mode AccessMode) (File, error)

	// Create creates or truncates a file whose parent directory exists.
	Create(ctx context.Context, p Path) (File, error)

	// CreateDirectory creates a directory whose parent exists.
	CreateDirectory(ctx context.Context, p Path) error

	// Delete removes a file, or a directory with everything below it.
	Delete(ctx context.Context, p Path) error

	// Close releases the backend's resources.
	Close() error
}

// Renamer is implemented by backends that can move an entity within themselves
// without copying bytes.
type Renamer interface {
	Rename(ctx context.Context, from, to Path) error
}

// Sizer is implemented by backends that know a file's length without reading it.
type Sizer interface {
	Size(ctx context.Context, p Path) (int64, error)
}

// ArchiveHandler decides which files are mountable archives and opens them.
type ArchiveHandler interface {
	// IsArchive reports whether the file at p inside b can be mounted.
	IsArchive(b Backend, p Path) bool

	// OpenArchive instantiates a backend over the archive file.
	OpenArchive(ctx context.Context, file Entity) (Backend, error)
}

// ArchiveFuncs adapts a pair of plain functions to [ArchiveHandler].
type ArchiveFuncs struct {
	Classify func(b Backend, p Path) bool
	Open     func(ctx context.Context, file Entity) (Backend, error)
}

func (f ArchiveFuncs) IsArchive(b Backend, p Path) bool {
	if f.Classify == nil {
		return false
	}
	return f.Classify(b, p)
}

func (f ArchiveFuncs) OpenArchive(ctx context.Context, file Entity) (Backend, error) {
	if f.Open == nil {
		return nil, Unsupportedf("no archive factory for %s", file.Path)
	}
	return f.Open(ctx, file)
}
