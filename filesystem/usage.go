package filesystem

import (
	"context"
	"sync"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/internal/util"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// archiveKey identifies one mountable archive: the usage record whose backend
// holds the archive file (0 for the base backend) and the file's path in it.
type archiveKey struct {
	owner uint64
	path  string
}

// usage tracks one open archive backend and the references keeping it alive.
type usage struct {
	id  uint64
	key archiveKey

	mu       sync.Mutex // guards the fields below
	backend  seamfs.Backend
	parent   *Reference // keeps the containing backend open
	refs     map[*Reference]struct{}
	disposed bool
}

// acquire returns a new reference to inner within the archive parent points at,
// opening the archive on first use. parent is consumed: it is either handed to a
// new usage record or released.
func (fs *FS) acquire(ctx context.Context, parent *Reference, inner, mount seamfs.Path) (*Reference, error) {
	logger := util.GetLogger("FS.acquire")
	key := archiveKey{owner: parent.ownerID(), path: parent.Path.String()}

	for {
		u, _ := fs.usages.LoadOrCompute(key, func() (*usage, bool) {
			return &usage{id: fs.lastID.Add(1), key: key, refs: map[*Reference]struct{}{}}, false
		})
		if fs.testHookLoaded != nil {
			fs.testHookLoaded(u)
		}
		u.mu.Lock()
		if u.disposed {
			// lost a race with the last release; the entry is gone or going
			u.mu.Unlock()
			continue
		}

		opened := false
		if u.backend == nil {
			b, err := fs.openArchive(ctx, parent)
			if err != nil {
				u.disposed = true
				fs.forget(u)
				u.mu.Unlock()
				parent.Release()
				return nil, err
			}
			parent.held.Store(true)
			u.backend = b
			u.parent = parent
			opened = true
			logger.Debug().Str("archive", key.path).Uint64("owner", key.owner).Uint64("id", u.id).Msg("Opened archive")
		}

		ref := &Reference{
			Backend: u.backend,
			Path:    inner,
			ID:      uuid.New(),
			fs:      fs,
			owner:   u,
			mount:   mount,
		}
		u.refs[ref] = struct{}{}
		u.mu.Unlock()

		if !opened {
			parent.Release()
		}
		logger.Trace().Str("ref", ref.ID.String()).Str("path", inner.String()).Uint64("id", u.id).Msg("Acquired reference")
		return ref, nil
	}
}

func (fs *FS) openArchive(ctx context.Context, parent *Reference) (seamfs.Backend, error) {
	if !parent.Path.IsFile() {
		return nil, seamfs.InvalidOperationf("mount marker follows directory %s", parent.Path)
	}
	if !fs.handler.IsArchive(parent.Backend, parent.Path) {
		ok, err := parent.Backend.Exists(ctx, parent.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, seamfs.NotFoundf("archive %s", parent.Path)
		}
		return nil, seamfs.Unsupportedf("%s is not a recognised archive", parent.Path)
	}
	b, err := fs.handler.OpenArchive(ctx, parent.Entity())
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, seamfs.Unsupportedf("no backend for archive %s", parent.Path)
	}
	return b, nil
}

// release drops ref from u. The last release closes u's backend, removes the
// record and then releases the record's hold on its parent, so children are
// always disposed before their parents.
func (fs *FS) release(u *usage, ref *Reference) {
	logger := util.GetLogger("FS.release")

	u.mu.Lock()
	delete(u.refs, ref)
	if len(u.refs) > 0 || u.disposed {
		u.mu.Unlock()
		return
	}
	u.disposed = true
	err := u.backend.Close()
	fs.forget(u)
	parent := u.parent
	u.mu.Unlock()

	if err != nil {
		logger.Warn().Err(err).Str("archive", u.key.path).Uint64("id", u.id).Msg("Error closing archive")
	} else {
		logger.Debug().Str("archive", u.key.path).Uint64("id", u.id).Msg("Disposed archive")
	}
	parent.Release()
}

// forget removes u's registry entry if it still maps to u. Caller holds u.mu.
func (fs *FS) forget(u *usage) {
	fs.usages.Compute(u.key, func(old *usage, loaded bool) (*usage, xsync.ComputeOp) {
		if loaded && old == u {
			return nil, xsync.DeleteOp
		}
		return old, xsync.CancelOp
	})
}

// liveRefs snapshots the caller-held references of every open record.
func (fs *FS) liveRefs() []*Reference {
	var out []*Reference
	fs.usages.Range(func(_ archiveKey, u *usage) bool {
		u.mu.Lock()
		for ref := range u.refs {
			if !ref.held.Load() {
				out = append(out, ref)
			}
		}
		u.mu.Unlock()
		return true
	})
	return out
}
