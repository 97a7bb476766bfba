// Package transfer copies and moves entities between backends. Each operation is
// dispatched to the first [Strategy] that supports it, so a same-backend move can
// be a native rename while everything else falls back to streaming bytes.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/config"
	"github.com/brettbedarf/seamfs/internal/util"
)

// Op is the kind of transfer being performed.
type Op int

const (
	CopyOp Op = iota
	MoveOp
)

func (o Op) String() string {
	if o == MoveOp {
		return "move"
	}
	return "copy"
}

// Strategy performs one transfer of src onto dst. A strategy that finds out
// mid-way that it cannot serve the request returns [seamfs.ErrUnsupported]
// before touching either side, and the next strategy is tried.
type Strategy interface {
	Supports(op Op, src, dst seamfs.Entity) bool
	Transfer(ctx context.Context, op Op, src, dst seamfs.Entity) error
}

// Strategies is an ordered strategy list. Directories nobody supports as a whole
// are transferred child by child.
type Strategies []Strategy

// DefaultStrategies tries a native rename first and streams otherwise.
func DefaultStrategies(cfg *config.Config) Strategies {
	return Strategies{
		RenameStrategy{},
		StreamStrategy{BufferSize: cfg.CopyBufferSize},
	}
}

// Copy copies src to dst. Directories are copied recursively; an existing dst
// file is truncated.
func (s Strategies) Copy(ctx context.Context, src, dst seamfs.Entity) error {
	logger := util.GetLogger("Transfer.Copy")
	logger.Debug().Str("src", src.Path.String()).Str("dst", dst.Path.String()).Msg("Copying")
	return s.transfer(ctx, CopyOp, src, dst)
}

// Move moves src to dst, deleting src once everything below it has arrived.
func (s Strategies) Move(ctx context.Context, src, dst seamfs.Entity) error {
	logger := util.GetLogger("Transfer.Move")
	logger.Debug().Str("src", src.Path.String()).Str("dst", dst.Path.String()).Msg("Moving")
	return s.transfer(ctx, MoveOp, src, dst)
}

func (s Strategies) transfer(ctx context.Context, op Op, src, dst seamfs.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if src.IsDirectory() != dst.IsDirectory() {
		return seamfs.InvalidOperationf("%s %s to %s changes entity type", op, src.Path, dst.Path)
	}
	if src.Backend == dst.Backend && (src.Path == dst.Path || src.Path.IsParentOf(dst.Path)) {
		return seamfs.InvalidOperationf("%s %s into itself", op, src.Path)
	}
	ok, err := src.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return seamfs.NotFoundf("%s source %s", op, src.Path)
	}
	if !dst.Path.IsRoot() {
		parent, _ := dst.Path.ParentPath()
		if err := seamfs.CreateDirectoryRecursive(ctx, dst.Backend, parent); err != nil {
			return fmt.Errorf("prepare %s: %w", parent, err)
		}
	}

	for _, strategy := range s {
		if !strategy.Supports(op, src, dst) {
			continue
		}
		err := strategy.Transfer(ctx, op, src, dst)
		if errors.Is(err, seamfs.ErrUnsupported) {
			continue
		}
		return err
	}
	if src.IsDirectory() {
		return s.transferChildren(ctx, op, src, dst)
	}
	return seamfs.Unsupportedf("no strategy can %s %s to %s", op, src.Path, dst.Path)
}

func (s Strategies) transferChildren(ctx context.Context, op Op, src, dst seamfs.Entity) error {
	if err := seamfs.CreateDirectoryRecursive(ctx, dst.Backend, dst.Path); err != nil {
		return err
	}
	children, err := src.Children(ctx)
	if err != nil {
		return err
	}
	for _, child := range children {
		target, err := dst.Path.AppendRelative(child.Name() + trailing(child))
		if err != nil {
			return err
		}
		if err := s.transfer(ctx, op, child, seamfs.Entity{Backend: dst.Backend, Path: target}); err != nil {
			return err
		}
	}
	if op == MoveOp && !src.Path.IsRoot() {
		return src.Backend.Delete(ctx, src.Path)
	}
	return nil
}

func trailing(e seamfs.Entity) string {
	if e.IsDirectory() {
		return string(seamfs.Separator)
	}
	return ""
}
