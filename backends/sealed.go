package backends

import (
	"context"

	"github.com/brettbedarf/seamfs"
)

// Sealed forwards the base contract to another backend and hides everything else
// about it, so capability probes (native rename, size) and strategy lookups see a
// plain backend.
type Sealed struct {
	inner    seamfs.Backend
	readOnly bool
}

var _ seamfs.Backend = (*Sealed)(nil)

// NewSealed wraps b.
func NewSealed(b seamfs.Backend) *Sealed {
	return &Sealed{inner: b}
}

// NewReadOnly wraps b and additionally rejects every mutating call.
func NewReadOnly(b seamfs.Backend) *Sealed {
	return &Sealed{inner: b, readOnly: true}
}

func (s *Sealed) List(ctx context.Context, dir seamfs.Path) ([]seamfs.Path, error) {
	return s.inner.List(ctx, dir)
}

func (s *Sealed) Exists(ctx context.Context, p seamfs.Path) (bool, error) {
	return s.inner.Exists(ctx, p)
}

func (s *Sealed) Open(ctx context.Context, p seamfs.Path, mode seamfs.AccessMode) (seamfs.File, error) {
	if s.readOnly && mode.CanWrite() {
		return nil, seamfs.Unsupportedf("open %s for %s on read-only backend", p, mode)
	}
	return s.inner.Open(ctx, p, mode)
}

func (s *Sealed) Create(ctx context.Context, p seamfs.Path) (seamfs.File, error) {
	if s.readOnly {
		return nil, seamfs.Unsupportedf("create %s on read-only backend", p)
	}
	return s.inner.Create(ctx, p)
}

func (s *Sealed) CreateDirectory(ctx context.Context, p seamfs.Path) error {
	if s.readOnly {
		return seamfs.Unsupportedf("create directory %s on read-only backend", p)
	}
	return s.inner.CreateDirectory(ctx, p)
}

func (s *Sealed) Delete(ctx context.Context, p seamfs.Path) error {
	if s.readOnly {
		return seamfs.Unsupportedf("delete %s on read-only backend", p)
	}
	return s.inner.Delete(ctx, p)
}

func (s *Sealed) Close() error {
	return s.inner.Close()
}
