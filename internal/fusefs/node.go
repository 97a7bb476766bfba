// Package fusefs exposes a composed [filesystem.FS] as a read-only go-fuse node
// tree. Archive mount points show up as directories next to their archive files.
package fusefs

import (
	"context"
	"errors"
	"syscall"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/config"
	"github.com/brettbedarf/seamfs/filesystem"
	"github.com/brettbedarf/seamfs/internal/util"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// tree is the state shared by every node of one mount.
type tree struct {
	fs        *filesystem.FS
	inodes    *inodeTable
	chunkSize int
	directIO  bool
}

// Node is one directory or file of the mounted view.
type Node struct {
	gofuse.Inode
	tree *tree
	path seamfs.Path
}

var _ gofuse.InodeEmbedder = (*Node)(nil)
var _ gofuse.NodeLookuper = (*Node)(nil)
var _ gofuse.NodeReaddirer = (*Node)(nil)
var _ gofuse.NodeGetattrer = (*Node)(nil)
var _ gofuse.NodeOpener = (*Node)(nil)

// NewRoot returns the root node for fs.
func NewRoot(fs *filesystem.FS, cfg *config.Config) *Node {
	return &Node{
		tree: &tree{
			fs:        fs,
			inodes:    newInodeTable(),
			chunkSize: cfg.SeekChunkSize,
			directIO:  cfg.DirectIO,
		},
		path: seamfs.Root(),
	}
}

// Lookup tries name as a directory first so archive mount points, which end in
// the marker, resolve as directories.
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	logger := util.GetLogger("FuseFS.Lookup")

	child, errno := n.tree.lookup(ctx, n.path, name)
	if errno != 0 {
		logger.Trace().Str("parent", n.path.String()).Str("name", name).Msg("Lookup miss")
		return nil, errno
	}
	attr, errno := n.tree.attr(ctx, child)
	if errno != 0 {
		return nil, errno
	}
	out.Attr = attr
	stable := gofuse.StableAttr{Mode: attr.Mode & syscall.S_IFMT, Ino: attr.Ino}
	return n.NewInode(ctx, &Node{tree: n.tree, path: child}, stable), 0
}

func (n *Node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, errno := n.tree.readdir(ctx, n.path)
	if errno != 0 {
		return nil, errno
	}
	return gofuse.NewListDirStream(entries), 0
}

func (n *Node) Getattr(ctx context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, errno := n.tree.attr(ctx, n.path)
	if errno != 0 {
		return errno
	}
	out.Attr = attr
	return 0
}

func (n *Node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	h, errno := n.tree.open(ctx, n.path)
	if errno != 0 {
		return nil, 0, errno
	}
	if n.tree.directIO {
		return h, fuse.FOPEN_DIRECT_IO, 0
	}
	return h, fuse.FOPEN_KEEP_CACHE, 0
}

func (t *tree) lookup(ctx context.Context, parent seamfs.Path, name string) (seamfs.Path, syscall.Errno) {
	if dir, err := parent.AppendDirectory(name); err == nil {
		ok, err := t.fs.Exists(ctx, dir)
		if err != nil {
			return seamfs.Path{}, toErrno(err)
		}
		if ok {
			return dir, 0
		}
	}
	file, err := parent.AppendFile(name)
	if err != nil {
		return seamfs.Path{}, syscall.ENOENT
	}
	ok, err := t.fs.Exists(ctx, file)
	if err != nil {
		return seamfs.Path{}, toErrno(err)
	}
	if !ok {
		return seamfs.Path{}, syscall.ENOENT
	}
	return file, 0
}

func (t *tree) readdir(ctx context.Context, dir seamfs.Path) ([]fuse.DirEntry, syscall.Errno) {
	children, err := t.fs.List(ctx, dir)
	if err != nil {
		return nil, toErrno(err)
	}
	entries := make([]fuse.DirEntry, 0, len(children))
	for _, child := range children {
		name, err := child.EntityName()
		if err != nil {
			continue
		}
		mode := uint32(syscall.S_IFREG)
		if child.IsDirectory() {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: mode, Ino: t.inodes.ino(child)})
	}
	return entries, 0
}

func (t *tree) attr(ctx context.Context, p seamfs.Path) (fuse.Attr, syscall.Errno) {
	attr := newDefaultAttr(t.inodes.ino(p))
	if p.IsDirectory() {
		attr.Mode = syscall.S_IFDIR | 0o555
		attr.Nlink = 2
		return attr, 0
	}
	attr.Mode = syscall.S_IFREG | 0o444
	size, err := t.fs.Size(ctx, p)
	switch {
	case err == nil:
		attr.Size = uint64(size)
		attr.Blocks = (attr.Size + 511) / 512
	case errors.Is(err, seamfs.ErrUnsupported):
		// size unknown until the entry is read; direct io lets reads run to EOF
	default:
		return fuse.Attr{}, toErrno(err)
	}
	return attr, 0
}

func (t *tree) open(ctx context.Context, p seamfs.Path) (*handle, syscall.Errno) {
	f, err := t.fs.Open(ctx, p, seamfs.Read)
	if err != nil {
		return nil, toErrno(err)
	}
	return newHandle(f, t.chunkSize), 0
}
