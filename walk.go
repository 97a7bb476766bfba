package seamfs

import (
	"context"
	"sort"
)

// ListRecursive returns every entity below dir, depth first, with each directory
// listed before its children.
func ListRecursive(ctx context.Context, b Backend, dir Path) ([]Path, error) {
	if !dir.IsDirectory() {
		return nil, InvalidOperationf("%s is not a directory", dir)
	}
	var out []Path
	var walk func(Path) error
	walk = func(d Path) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		children, err := b.List(ctx, d)
		if err != nil {
			return err
		}
		sort.Slice(children, func(i, j int) bool { return children[i].Compare(children[j]) < 0 })
		for _, c := range children {
			out = append(out, c)
			if c.IsDirectory() {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(dir); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDirectoryRecursive creates dir and any missing ancestors, like mkdir -p.
// Existing directories are left alone.
func CreateDirectoryRecursive(ctx context.Context, b Backend, dir Path) error {
	if !dir.IsDirectory() {
		return InvalidOperationf("%s is not a directory", dir)
	}
	if dir.IsRoot() {
		return nil
	}
	ok, err := b.Exists(ctx, dir)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	parent, _ := dir.ParentPath()
	if err := CreateDirectoryRecursive(ctx, b, parent); err != nil {
		return err
	}
	return b.CreateDirectory(ctx, dir)
}
