package backends

import (
	"context"
	"fmt"
	"testing"

	"github.com/brettbedarf/seamfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipFixture(t *testing.T) []byte {
	return zipBytes(t,
		archiveEntry{name: "top.txt", data: "top level"},
		archiveEntry{name: "docs/readme.md", data: "# readme"},
		archiveEntry{name: "docs/img/"},
		archiveEntry{name: "./deep/er/leaf.bin", data: "leaf"},
	)
}

func TestZip_IndexesTree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	putFile(t, mem, "/site.zip", zipFixture(t))

	z, err := OpenZip(ctx, seamfs.Entity{Backend: mem, Path: pathOf("/site.zip")}, testOptions())
	require.NoError(t, err)
	defer z.Close()

	all, err := seamfs.ListRecursive(ctx, z, seamfs.Root())
	require.NoError(t, err)
	assert.Equal(t, []seamfs.Path{
		pathOf("/deep/"),
		pathOf("/deep/er/"),
		pathOf("/deep/er/leaf.bin"),
		pathOf("/docs/"),
		pathOf("/docs/img/"),
		pathOf("/docs/readme.md"),
		pathOf("/top.txt"),
	}, all, "implied directories are synthesized")

	assert.Equal(t, []byte("# readme"), readFile(t, z, "/docs/readme.md"))

	size, err := z.Size(ctx, pathOf("/deep/er/leaf.bin"))
	require.NoError(t, err)
	assert.EqualValues(t, 4, size)

	ok, err := z.Exists(ctx, pathOf("/docs/img/"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = z.Exists(ctx, pathOf("/docs/img"))
	require.NoError(t, err)
	assert.False(t, ok)

	var zero seamfs.Path
	top, err := z.List(ctx, zero)
	require.NoError(t, err, "the zero path is the archive root")
	assert.Len(t, top, 3)
	ok, err = z.Exists(ctx, zero)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestZip_IsReadOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	putFile(t, mem, "/a.zip", zipFixture(t))
	z, err := OpenZip(ctx, seamfs.Entity{Backend: mem, Path: pathOf("/a.zip")}, testOptions())
	require.NoError(t, err)
	defer z.Close()

	_, err = z.Open(ctx, pathOf("/top.txt"), seamfs.Write)
	assert.ErrorIs(t, err, seamfs.ErrUnsupported)
	_, err = z.Create(ctx, pathOf("/new.txt"))
	assert.ErrorIs(t, err, seamfs.ErrUnsupported)
	assert.ErrorIs(t, z.CreateDirectory(ctx, pathOf("/new/")), seamfs.ErrUnsupported)
	assert.ErrorIs(t, z.Delete(ctx, pathOf("/top.txt")), seamfs.ErrUnsupported)

	f, err := z.Open(ctx, pathOf("/top.txt"), seamfs.Read)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, seamfs.ErrUnsupported)
	require.NoError(t, f.Close())

	_, err = z.Open(ctx, pathOf("/missing.txt"), seamfs.Read)
	assert.ErrorIs(t, err, seamfs.ErrNotFound)
	_, err = z.Open(ctx, pathOf("/docs/"), seamfs.Read)
	assert.ErrorIs(t, err, seamfs.ErrInvalidOperation)
}

func TestZip_ForwardOnlySource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	putFile(t, mem, "/a.zip", zipFixture(t))

	z, err := OpenZip(ctx, seamfs.Entity{Backend: forwardOnly{mem}, Path: pathOf("/a.zip")}, testOptions())
	require.NoError(t, err)
	defer z.Close()

	assert.Equal(t, []byte("top level"), readFile(t, z, "/top.txt"))
	assert.Equal(t, []byte("leaf"), readFile(t, z, "/deep/er/leaf.bin"))
}

func TestZip_NotAnArchive(t *testing.T) {
	t.Parallel()
	mem := NewMemory()
	putFile(t, mem, "/fake.zip", []byte("definitely not a zip archive"))

	_, err := OpenZip(context.Background(), seamfs.Entity{Backend: mem, Path: pathOf("/fake.zip")}, testOptions())
	assert.ErrorIs(t, err, seamfs.ErrUnsupported)
}

func TestOpenSplitZip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	data := zipFixture(t)
	third := len(data) / 3
	chunks := [][]byte{data[:third], data[third : 2*third], data[2*third:]}
	for i, c := range chunks {
		putFile(t, mem, fmt.Sprintf("/parts/site.zip.%03d", i+1), c)
	}
	putFile(t, mem, "/parts/site.zip.005", []byte("not contiguous"))

	z, err := OpenSplitZip(ctx, seamfs.Entity{Backend: mem, Path: pathOf("/parts/site.zip.001")}, testOptions())
	require.NoError(t, err)
	defer z.Close()

	assert.Equal(t, []byte("# readme"), readFile(t, z, "/docs/readme.md"))
	assert.Equal(t, []byte("top level"), readFile(t, z, "/top.txt"))
}

func TestOpenSplitZip_RequiresFirstPart(t *testing.T) {
	t.Parallel()
	mem := NewMemory()
	putFile(t, mem, "/site.zip.002", []byte("x"))

	_, err := OpenSplitZip(context.Background(), seamfs.Entity{Backend: mem, Path: pathOf("/site.zip.002")}, testOptions())
	assert.ErrorIs(t, err, seamfs.ErrUnsupported)
}

func TestEntryPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		dir    bool
		want   string
		wantOK bool
	}{
		{"a/b.txt", false, "/a/b.txt", true},
		{"a/b/", false, "/a/b/", true},
		{"./a", true, "/a/", true},
		{"/abs/x", false, "/abs/x", true},
		{`win\style\f.txt`, false, "/win/style/f.txt", true},
		{"./", true, "/", false},
		{"a/../b", false, "/b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := entryPath(tt.name, tt.dir)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestReaderAt_PrefersNativeRandomAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemory()
	putFile(t, mem, "/f", []byte("0123456789"))
	f, err := mem.Open(ctx, pathOf("/f"), seamfs.Read)
	require.NoError(t, err)
	defer f.Close()

	ra, size, err := readerAt(f, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)
	assert.Equal(t, f, ra, "the file itself is used when it can seek and read at offsets")
}
