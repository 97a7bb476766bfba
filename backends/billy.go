package backends

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/internal/util"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	butil "github.com/go-git/go-billy/v5/util"
)

// Billy adapts a go-billy filesystem to [seamfs.Backend]. It backs both the
// in-memory store and physical directories.
type Billy struct {
	mu   sync.RWMutex // memfs keeps its tree in plain maps
	bfs  billy.Filesystem
	name string
}

var (
	_ seamfs.Backend = (*Billy)(nil)
	_ seamfs.Renamer = (*Billy)(nil)
	_ seamfs.Sizer   = (*Billy)(nil)
)

// NewBilly wraps an existing billy filesystem.
func NewBilly(bfs billy.Filesystem, name string) *Billy {
	return &Billy{bfs: bfs, name: name}
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Billy {
	return NewBilly(memfs.New(), "memory")
}

// NewPhysical returns a backend rooted at dir on the local disk. Paths can never
// escape dir.
func NewPhysical(dir string) (*Billy, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, seamfs.NotFoundf("physical root %s", abs)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, seamfs.InvalidOperationf("physical root %s is not a directory", abs)
	}
	return NewBilly(osfs.New(abs, osfs.WithBoundOS()), "physical:"+abs), nil
}

// Unwrap returns the underlying billy filesystem.
func (b *Billy) Unwrap() billy.Filesystem { return b.bfs }

func (b *Billy) String() string { return b.name }

// billyName converts a rooted path into the relative form billy expects.
func billyName(p seamfs.Path) string {
	s := strings.Trim(p.String(), "/")
	if s == "" {
		return "."
	}
	return s
}

// stat returns the entity's info, or ErrNotFound when nothing of p's kind is there.
func (b *Billy) stat(p seamfs.Path) (os.FileInfo, error) {
	info, err := b.bfs.Stat(billyName(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, seamfs.NotFoundf("%s", p)
		}
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() != p.IsDirectory() {
		return nil, seamfs.NotFoundf("%s has a different entity type", p)
	}
	return info, nil
}

func (b *Billy) requireParent(p seamfs.Path) error {
	parent, err := p.ParentPath()
	if err != nil {
		return err
	}
	_, err = b.stat(parent)
	return err
}

func (b *Billy) List(_ context.Context, dir seamfs.Path) ([]seamfs.Path, error) {
	if !dir.IsDirectory() {
		return nil, seamfs.InvalidOperationf("list on file path %s", dir)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, err := b.stat(dir); err != nil {
		return nil, err
	}
	infos, err := b.bfs.ReadDir(billyName(dir))
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	children := make([]seamfs.Path, 0, len(infos))
	for _, info := range infos {
		var child seamfs.Path
		if info.IsDir() {
			child, err = dir.AppendDirectory(info.Name())
		} else {
			child, err = dir.AppendFile(info.Name())
		}
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func (b *Billy) Exists(_ context.Context, p seamfs.Path) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, err := b.stat(p)
	if errors.Is(err, seamfs.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *Billy) Open(_ context.Context, p seamfs.Path, mode seamfs.AccessMode) (seamfs.File, error) {
	logger := util.GetLogger("Billy.Open")
	if !p.IsFile() {
		return nil, seamfs.InvalidOperationf("open on directory path %s", p)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, err := b.stat(p); err != nil {
		return nil, err
	}
	flag := os.O_RDONLY
	switch mode {
	case seamfs.Write:
		flag = os.O_WRONLY
	case seamfs.ReadWrite:
		flag = os.O_RDWR
	}
	f, err := b.bfs.OpenFile(billyName(p), flag, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	logger.Trace().Str("backend", b.name).Str("path", p.String()).Stringer("mode", mode).Msg("Opened file")
	return f, nil
}

func (b *Billy) Create(_ context.Context, p seamfs.Path) (seamfs.File, error) {
	if !p.IsFile() {
		return nil, seamfs.InvalidOperationf("create on directory path %s", p)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireParent(p); err != nil {
		return nil, err
	}
	if info, err := b.bfs.Stat(billyName(p)); err == nil && info.IsDir() {
		return nil, seamfs.InvalidOperationf("%s exists as a directory", p)
	}
	f, err := b.bfs.Create(billyName(p))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", p, err)
	}
	return f, nil
}

func (b *Billy) CreateDirectory(_ context.Context, p seamfs.Path) error {
	if !p.IsDirectory() {
		return seamfs.InvalidOperationf("create directory on file path %s", p)
	}
	if p.IsRoot() {
		return seamfs.InvalidOperationf("root already exists")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireParent(p); err != nil {
		return err
	}
	if _, err := b.bfs.Stat(billyName(p)); err == nil {
		return seamfs.InvalidOperationf("%s already exists", p)
	}
	if err := b.bfs.MkdirAll(billyName(p), 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", p, err)
	}
	return nil
}

func (b *Billy) Delete(_ context.Context, p seamfs.Path) error {
	if p.IsRoot() {
		return seamfs.InvalidOperationf("cannot delete root")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.stat(p); err != nil {
		return err
	}
	if p.IsDirectory() {
		return butil.RemoveAll(b.bfs, billyName(p))
	}
	return b.bfs.Remove(billyName(p))
}

// Rename moves an entity within this backend. Both paths must be of the same kind
// and the destination's parent must exist.
func (b *Billy) Rename(_ context.Context, from, to seamfs.Path) error {
	if from.IsDirectory() != to.IsDirectory() {
		return seamfs.InvalidOperationf("rename %s to %s changes entity type", from, to)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.stat(from); err != nil {
		return err
	}
	if err := b.requireParent(to); err != nil {
		return err
	}
	if _, err := b.bfs.Stat(billyName(to)); err == nil {
		return seamfs.InvalidOperationf("%s already exists", to)
	}
	return b.bfs.Rename(billyName(from), billyName(to))
}

func (b *Billy) Size(_ context.Context, p seamfs.Path) (int64, error) {
	if !p.IsFile() {
		return 0, seamfs.InvalidOperationf("size of directory path %s", p)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	info, err := b.stat(p)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (b *Billy) Close() error { return nil }
