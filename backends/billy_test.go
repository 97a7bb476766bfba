package backends

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/seamfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBilly_Memory_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemory()

	require.NoError(t, b.CreateDirectory(ctx, pathOf("/docs/")))
	putFile(t, b, "/docs/a.txt", []byte("alpha"))
	putFile(t, b, "/top.txt", []byte("top"))

	root, err := b.List(ctx, seamfs.Root())
	require.NoError(t, err)
	assert.ElementsMatch(t, []seamfs.Path{pathOf("/docs/"), pathOf("/top.txt")}, root)

	assert.Equal(t, []byte("alpha"), readFile(t, b, "/docs/a.txt"))

	size, err := b.Size(ctx, pathOf("/docs/a.txt"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	require.NoError(t, b.Delete(ctx, pathOf("/docs/")))
	ok, err := b.Exists(ctx, pathOf("/docs/a.txt"))
	require.NoError(t, err)
	assert.False(t, ok, "deleting a directory removes its contents")
}

func TestBilly_ExistsChecksEntityKind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemory()
	putFile(t, b, "/thing", []byte("x"))
	require.NoError(t, b.CreateDirectory(ctx, pathOf("/dir/")))

	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/thing", true},
		{"/thing/", false},
		{"/dir/", true},
		{"/dir", false},
		{"/missing", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			ok, err := b.Exists(ctx, pathOf(tt.path))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestBilly_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemory()
	putFile(t, b, "/file.txt", []byte("x"))
	require.NoError(t, b.CreateDirectory(ctx, pathOf("/dir/")))

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"open missing", func() error { _, err := b.Open(ctx, pathOf("/nope"), seamfs.Read); return err }, seamfs.ErrNotFound},
		{"open directory path", func() error { _, err := b.Open(ctx, pathOf("/dir/"), seamfs.Read); return err }, seamfs.ErrInvalidOperation},
		{"list file path", func() error { _, err := b.List(ctx, pathOf("/file.txt")); return err }, seamfs.ErrInvalidOperation},
		{"list missing", func() error { _, err := b.List(ctx, pathOf("/gone/")); return err }, seamfs.ErrNotFound},
		{"create without parent", func() error { _, err := b.Create(ctx, pathOf("/gone/x")); return err }, seamfs.ErrNotFound},
		{"create over directory", func() error { _, err := b.Create(ctx, pathOf("/dir")); return err }, seamfs.ErrInvalidOperation},
		{"create directory twice", func() error { return b.CreateDirectory(ctx, pathOf("/dir/")) }, seamfs.ErrInvalidOperation},
		{"create directory without parent", func() error { return b.CreateDirectory(ctx, pathOf("/a/b/")) }, seamfs.ErrNotFound},
		{"create root", func() error { return b.CreateDirectory(ctx, seamfs.Root()) }, seamfs.ErrInvalidOperation},
		{"delete root", func() error { return b.Delete(ctx, seamfs.Root()) }, seamfs.ErrInvalidOperation},
		{"delete missing", func() error { return b.Delete(ctx, pathOf("/nope")) }, seamfs.ErrNotFound},
		{"size of directory", func() error { _, err := b.Size(ctx, pathOf("/dir/")); return err }, seamfs.ErrInvalidOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.call(), tt.want)
		})
	}
}

func TestBilly_CreateTruncates(t *testing.T) {
	t.Parallel()
	b := NewMemory()
	putFile(t, b, "/f", []byte("a longer body"))
	putFile(t, b, "/f", []byte("short"))

	assert.Equal(t, []byte("short"), readFile(t, b, "/f"))
}

func TestBilly_OpenReadWriteIsSeekable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemory()
	putFile(t, b, "/f", []byte("hello world"))

	f, err := b.Open(ctx, pathOf("/f"), seamfs.ReadWrite)
	require.NoError(t, err)
	defer f.Close()

	s, ok := f.(io.Seeker)
	require.True(t, ok, "memory files support seeking")
	_, err = s.Seek(6, io.SeekStart)
	require.NoError(t, err)
	_, err = f.Write([]byte("WORLD"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, []byte("hello WORLD"), readFile(t, b, "/f"))
}

func TestBilly_Rename(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemory()
	putFile(t, b, "/src/a.txt", []byte("moved"))
	require.NoError(t, b.CreateDirectory(ctx, pathOf("/dst/")))

	require.NoError(t, b.Rename(ctx, pathOf("/src/a.txt"), pathOf("/dst/b.txt")))
	assert.Equal(t, []byte("moved"), readFile(t, b, "/dst/b.txt"))
	ok, err := b.Exists(ctx, pathOf("/src/a.txt"))
	require.NoError(t, err)
	assert.False(t, ok)

	err = b.Rename(ctx, pathOf("/dst/b.txt"), pathOf("/dst/c/"))
	assert.ErrorIs(t, err, seamfs.ErrInvalidOperation, "kind changes are rejected")
	err = b.Rename(ctx, pathOf("/dst/b.txt"), pathOf("/nowhere/b.txt"))
	assert.ErrorIs(t, err, seamfs.ErrNotFound)
}

func TestBilly_Physical(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("on disk"), 0o600))

	b, err := NewPhysical(dir)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []byte("on disk"), readFile(t, b, "/existing.txt"))

	putFile(t, b, "/nested/deep/new.txt", []byte("written"))
	data, err := os.ReadFile(filepath.Join(dir, "nested", "deep", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("written"), data)

	all, err := seamfs.ListRecursive(ctx, b, seamfs.Root())
	require.NoError(t, err)
	assert.Equal(t, []seamfs.Path{
		pathOf("/existing.txt"),
		pathOf("/nested/"),
		pathOf("/nested/deep/"),
		pathOf("/nested/deep/new.txt"),
	}, all)
}

func TestNewPhysical_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := NewPhysical(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, seamfs.ErrNotFound)

	_, err = NewPhysical(file)
	assert.ErrorIs(t, err, seamfs.ErrInvalidOperation)
}
