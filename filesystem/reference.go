package filesystem

import (
	"sync/atomic"

	"github.com/brettbedarf/seamfs"
	"github.com/google/uuid"
)

// Reference is the result of resolving a composed path: the backend that owns the
// entity and the entity's path inside it. While a reference is live the archive
// backends it depends on stay open. Holders must call Release exactly once; extra
// calls are no-ops.
type Reference struct {
	Backend seamfs.Backend
	Path    seamfs.Path
	ID      uuid.UUID

	fs       *FS
	owner    *usage      // nil when Backend is the base backend
	mount    seamfs.Path // composed directory that maps to Backend's root
	held     atomic.Bool // owned by a child usage record, never handed to callers
	released atomic.Bool
}

// Entity returns the resolved (backend, path) pair.
func (r *Reference) Entity() seamfs.Entity {
	return seamfs.Entity{Backend: r.Backend, Path: r.Path}
}

// Mount returns the composed directory path that corresponds to the root of the
// reference's backend. It is root for the base backend.
func (r *Reference) Mount() seamfs.Path { return r.mount }

// Released reports whether Release has been called.
func (r *Reference) Released() bool { return r.released.Load() }

// Release gives up the reference. Releasing the last reference to an archive
// disposes its backend before Release returns.
func (r *Reference) Release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	if r.owner != nil {
		r.fs.release(r.owner, r)
	}
}

// ownerID identifies the backend r points into for registry keys.
func (r *Reference) ownerID() uint64 {
	if r.owner == nil {
		return 0
	}
	return r.owner.id
}

// compose maps a path inside the reference's backend back into the composed
// namespace.
func (r *Reference) compose(inner seamfs.Path) (seamfs.Path, error) {
	if r.mount.IsRoot() {
		return inner, nil
	}
	return r.mount.AppendPath(inner)
}
