package backends

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/brettbedarf/seamfs"
)

// archiveTree indexes the entities of a read-only archive. Directories that are
// only implied by entry names are synthesized.
type archiveTree[E any] struct {
	children map[seamfs.Path]map[seamfs.Path]struct{}
	files    map[seamfs.Path]E
}

func newArchiveTree[E any]() *archiveTree[E] {
	return &archiveTree[E]{
		children: map[seamfs.Path]map[seamfs.Path]struct{}{seamfs.Root(): {}},
		files:    map[seamfs.Path]E{},
	}
}

// entryPath turns an archive entry name ("a/b.txt", "./a/", "/a") into a rooted
// path. ok is false for names that denote the root itself.
func entryPath(name string, dir bool) (seamfs.Path, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasSuffix(name, "/") {
		dir = true
	}
	cleaned := path.Clean("/" + name)
	if cleaned == "/" {
		return seamfs.Root(), false
	}
	if dir {
		cleaned += "/"
	}
	p, err := seamfs.ParsePath(cleaned)
	return p, err == nil
}

func (t *archiveTree[E]) link(p seamfs.Path) {
	for !p.IsRoot() {
		parent, _ := p.ParentPath()
		kids, ok := t.children[parent]
		if !ok {
			kids = map[seamfs.Path]struct{}{}
			t.children[parent] = kids
		}
		kids[p] = struct{}{}
		p = parent
	}
}

func (t *archiveTree[E]) addDir(name string) {
	p, ok := entryPath(name, true)
	if !ok {
		return
	}
	if _, exists := t.children[p]; !exists {
		t.children[p] = map[seamfs.Path]struct{}{}
	}
	t.link(p)
}

func (t *archiveTree[E]) addFile(name string, entry E) {
	p, ok := entryPath(name, false)
	if !ok || p.IsDirectory() {
		t.addDir(name)
		return
	}
	t.files[p] = entry
	t.link(p)
}

func (t *archiveTree[E]) list(dir seamfs.Path) ([]seamfs.Path, error) {
	if !dir.IsDirectory() {
		return nil, seamfs.InvalidOperationf("list on file path %s", dir)
	}
	kids, ok := t.children[dir]
	if !ok {
		return nil, seamfs.NotFoundf("%s", dir)
	}
	out := make([]seamfs.Path, 0, len(kids))
	for p := range kids {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out, nil
}

func (t *archiveTree[E]) exists(p seamfs.Path) bool {
	if p.IsDirectory() {
		_, ok := t.children[p]
		return ok
	}
	_, ok := t.files[p]
	return ok
}

func (t *archiveTree[E]) file(p seamfs.Path) (E, error) {
	var zero E
	if !p.IsFile() {
		return zero, seamfs.InvalidOperationf("open on directory path %s", p)
	}
	e, ok := t.files[p]
	if !ok {
		return zero, seamfs.NotFoundf("%s", p)
	}
	return e, nil
}

// readOnlyArchive supplies the mutating half of the contract for archive
// backends, all of which are read-only.
type readOnlyArchive struct {
	name string
}

func (a readOnlyArchive) Create(_ context.Context, p seamfs.Path) (seamfs.File, error) {
	return nil, seamfs.Unsupportedf("create %s in read-only archive %s", p, a.name)
}

func (a readOnlyArchive) CreateDirectory(_ context.Context, p seamfs.Path) error {
	return seamfs.Unsupportedf("create directory %s in read-only archive %s", p, a.name)
}

func (a readOnlyArchive) Delete(_ context.Context, p seamfs.Path) error {
	return seamfs.Unsupportedf("delete %s in read-only archive %s", p, a.name)
}

func (a readOnlyArchive) checkMode(p seamfs.Path, mode seamfs.AccessMode) error {
	if mode.CanWrite() {
		return seamfs.Unsupportedf("open %s for %s in read-only archive %s", p, mode, a.name)
	}
	return nil
}

func (a readOnlyArchive) String() string { return a.name }

// readOnlyFile turns a reader into a [seamfs.File] whose Write is unsupported.
type readOnlyFile struct {
	io.ReadCloser
}

func (readOnlyFile) Write([]byte) (int, error) {
	return 0, seamfs.Unsupportedf("write on read-only archive entry")
}
