// Package filesystem composes a base backend and every archive reachable from it
// into one namespace. A marker plus "/" after an archive file's name enters the
// archive, as in /backups/site.zip#/assets/logo.png, and archives nest to any depth.
//
// Archive backends are opened on first use and shared by all references
// resolved through them; the last released reference closes the backend, child
// archives before their parents.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/backends"
	"github.com/brettbedarf/seamfs/config"
	"github.com/brettbedarf/seamfs/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// FS is the composed namespace. It is itself a [seamfs.Backend].
type FS struct {
	base     seamfs.Backend
	handler  seamfs.ArchiveHandler
	marker   string
	mountSep string // marker + "/"
	lastID   atomic.Uint64
	usages   *xsync.Map[archiveKey, *usage]

	// mu is held for reading by every resolution and for writing by Close, so
	// no archive opens after Close has swept the registry.
	mu     sync.RWMutex
	closed atomic.Bool

	testHookLoaded func(*usage) // called by acquire after each registry load
}

var (
	_ seamfs.Backend = (*FS)(nil)
	_ seamfs.Sizer   = (*FS)(nil)
	_ seamfs.Renamer = (*FS)(nil)
)

// New composes base with the archives handler recognises. A nil handler mounts
// nothing. cfg supplies the marker and, with ReadOnly set, seals base against writes.
func New(base seamfs.Backend, handler seamfs.ArchiveHandler, cfg *config.Config) (*FS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if handler == nil {
		handler = seamfs.ArchiveFuncs{}
	}
	if cfg.ReadOnly {
		base = backends.NewReadOnly(base)
	}
	return &FS{
		base:     base,
		handler:  handler,
		marker:   cfg.Marker,
		mountSep: cfg.Marker + string(seamfs.Separator),
		usages:   xsync.NewMap[archiveKey, *usage](),
	}, nil
}

// Marker returns the mount marker.
func (fs *FS) Marker() string { return fs.marker }

// OpenArchives reports how many archive backends are currently open.
func (fs *FS) OpenArchives() int { return fs.usages.Size() }

// MountPoint returns the directory path that enters the archive file at p.
func (fs *FS) MountPoint(p seamfs.Path) (seamfs.Path, error) {
	if !p.IsFile() {
		return seamfs.Path{}, seamfs.InvalidOperationf("%s is not a file", p)
	}
	return seamfs.ParsePath(p.String() + fs.mountSep)
}

// Resolve maps a composed path to the backend that owns it. The caller must
// release the returned reference.
func (fs *FS) Resolve(ctx context.Context, p seamfs.Path) (*Reference, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.closed.Load() {
		return nil, seamfs.InvalidOperationf("filesystem is closed")
	}
	return fs.resolve(ctx, p)
}

// resolve does the work of Resolve. Caller holds fs.mu for reading.
func (fs *FS) resolve(ctx context.Context, p seamfs.Path) (*Reference, error) {
	logger := util.GetLogger("FS.Resolve")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := p.String()
	i := strings.LastIndex(s, fs.mountSep)
	if i < 0 {
		return &Reference{Backend: fs.base, Path: p, fs: fs, mount: seamfs.Root()}, nil
	}

	archive, err := seamfs.ParsePath(s[:i])
	if err != nil {
		return nil, err
	}
	inner, err := seamfs.ParsePath(s[i+len(fs.mountSep)-1:])
	if err != nil {
		return nil, err
	}
	mount, err := seamfs.ParsePath(s[:i+len(fs.mountSep)])
	if err != nil {
		return nil, err
	}
	logger.Trace().Str("path", s).Str("archive", archive.String()).Str("inner", inner.String()).Msg("Resolving mount")

	parent, err := fs.resolve(ctx, archive)
	if err != nil {
		return nil, err
	}
	return fs.acquire(ctx, parent, inner, mount)
}

// endsWithMarker reports names that would read back as mount points.
func (fs *FS) endsWithMarker(p seamfs.Path) bool {
	name, err := p.EntityName()
	return err == nil && strings.HasSuffix(name, fs.marker)
}

// List returns dir's children in composed form. Every archive file is followed by
// its mount point directory.
func (fs *FS) List(ctx context.Context, dir seamfs.Path) ([]seamfs.Path, error) {
	logger := util.GetLogger("FS.List")

	ref, err := fs.Resolve(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer ref.Release()

	children, err := ref.Backend.List(ctx, ref.Path)
	if err != nil {
		return nil, err
	}
	out := make([]seamfs.Path, 0, len(children))
	for _, child := range children {
		if fs.endsWithMarker(child) {
			logger.Warn().Str("dir", dir.String()).Str("entity", child.String()).Msg("Omitting entity whose name ends with the mount marker")
			continue
		}
		composed, err := ref.compose(child)
		if err != nil {
			return nil, err
		}
		out = append(out, composed)
		if child.IsFile() && fs.handler.IsArchive(ref.Backend, child) {
			mp, err := fs.MountPoint(composed)
			if err != nil {
				return nil, err
			}
			out = append(out, mp)
		}
	}
	return out, nil
}

// Exists reports false, rather than an error, for paths through archives that
// are missing or cannot be mounted. Unlike Resolve and Open, it swallows the
// NotFound and Unsupported errors of mount resolution, so /notes.txt#/x simply
// does not exist. Other errors are returned.
func (fs *FS) Exists(ctx context.Context, p seamfs.Path) (bool, error) {
	ref, err := fs.Resolve(ctx, p)
	if err != nil {
		if errors.Is(err, seamfs.ErrNotFound) || errors.Is(err, seamfs.ErrUnsupported) {
			return false, nil
		}
		return false, err
	}
	defer ref.Release()
	return ref.Backend.Exists(ctx, ref.Path)
}

// Open opens p. The archives on the way stay open until the file is closed.
func (fs *FS) Open(ctx context.Context, p seamfs.Path, mode seamfs.AccessMode) (seamfs.File, error) {
	ref, err := fs.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	f, err := ref.Backend.Open(ctx, ref.Path, mode)
	if err != nil {
		ref.Release()
		return nil, err
	}
	return wrapFile(f, ref), nil
}

func (fs *FS) Create(ctx context.Context, p seamfs.Path) (seamfs.File, error) {
	if fs.endsWithMarker(p) {
		return nil, seamfs.InvalidOperationf("name of %s ends with the mount marker %q", p, fs.marker)
	}
	ref, err := fs.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	f, err := ref.Backend.Create(ctx, ref.Path)
	if err != nil {
		ref.Release()
		return nil, err
	}
	return wrapFile(f, ref), nil
}

func (fs *FS) CreateDirectory(ctx context.Context, p seamfs.Path) error {
	if fs.endsWithMarker(p) {
		return seamfs.InvalidOperationf("name of %s ends with the mount marker %q", p, fs.marker)
	}
	ref, err := fs.Resolve(ctx, p)
	if err != nil {
		return err
	}
	defer ref.Release()
	return ref.Backend.CreateDirectory(ctx, ref.Path)
}

func (fs *FS) Delete(ctx context.Context, p seamfs.Path) error {
	ref, err := fs.Resolve(ctx, p)
	if err != nil {
		return err
	}
	defer ref.Release()
	return ref.Backend.Delete(ctx, ref.Path)
}

// Size reports a file's length when its owning backend knows it without reading.
func (fs *FS) Size(ctx context.Context, p seamfs.Path) (int64, error) {
	ref, err := fs.Resolve(ctx, p)
	if err != nil {
		return 0, err
	}
	defer ref.Release()
	sizer, ok := ref.Backend.(seamfs.Sizer)
	if !ok {
		return 0, seamfs.Unsupportedf("size of %s", p)
	}
	return sizer.Size(ctx, ref.Path)
}

// Rename moves an entity natively when both paths land in the same backend and
// that backend can rename. Anything else is [seamfs.ErrUnsupported].
func (fs *FS) Rename(ctx context.Context, from, to seamfs.Path) error {
	if fs.endsWithMarker(to) {
		return seamfs.InvalidOperationf("name of %s ends with the mount marker %q", to, fs.marker)
	}
	src, err := fs.Resolve(ctx, from)
	if err != nil {
		return err
	}
	defer src.Release()
	dst, err := fs.Resolve(ctx, to)
	if err != nil {
		return err
	}
	defer dst.Release()

	renamer, ok := src.Backend.(seamfs.Renamer)
	if !ok || src.Backend != dst.Backend {
		return seamfs.Unsupportedf("rename %s to %s", from, to)
	}
	return renamer.Rename(ctx, src.Path, dst.Path)
}

// Close force-releases every outstanding reference, which disposes all open
// archives, and then closes the base backend. Streams still open keep working
// only as far as their backend tolerates being closed underneath them.
func (fs *FS) Close() error {
	logger := util.GetLogger("FS.Close")
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.closed.CompareAndSwap(false, true) {
		return nil
	}
	refs := fs.liveRefs()
	for _, ref := range refs {
		ref.Release()
	}
	if len(refs) > 0 {
		logger.Debug().Int("refs", len(refs)).Msg("Force-released references")
	}
	if n := fs.usages.Size(); n > 0 {
		logger.Warn().Int("archives", n).Msg("Archives still open after close")
	}
	return fs.base.Close()
}
