package backends

import (
	"context"
	"errors"
	"testing"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// taggedFactory returns a backend whose String names the factory that built it.
func taggedFactory(tag string) Factory {
	return func(context.Context, seamfs.Entity, Options) (seamfs.Backend, error) {
		return NewBilly(NewMemory().Unwrap(), tag), nil
	}
}

func TestRegistry_LongestExtensionWins(t *testing.T) {
	t.Parallel()
	r := NewRegistry(testOptions())
	r.Register("zip", taggedFactory("zip"))
	r.Register(".zip.001", taggedFactory("split"))
	r.Register("001", taggedFactory("numbered"))

	tests := []struct {
		path string
		want string
	}{
		{"/a.zip", "zip"},
		{"/A.ZIP", "zip"},
		{"/a.zip.001", "split"},
		{"/a.tar.001", "numbered"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			b, err := r.OpenArchive(context.Background(), seamfs.Entity{Path: pathOf(tt.path)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.(*Billy).String())
		})
	}
}

func TestRegistry_IsArchive(t *testing.T) {
	t.Parallel()
	r := NewRegistry(testOptions())
	r.Register("zip", taggedFactory("zip"))

	tests := []struct {
		path string
		want bool
	}{
		{"/a.zip", true},
		{"/dir/a.Zip", true},
		{"/.zip", false},
		{"/a.zip/", false},
		{"/a.zipx", false},
		{"/", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, r.IsArchive(nil, pathOf(tt.path)))
		})
	}
}

func TestRegistry_OpenArchiveErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := NewRegistry(testOptions())
	r.Register("bad", func(context.Context, seamfs.Entity, Options) (seamfs.Backend, error) {
		return nil, boom
	})

	_, err := r.OpenArchive(context.Background(), seamfs.Entity{Path: pathOf("/a.txt")})
	assert.ErrorIs(t, err, seamfs.ErrUnsupported)

	_, err = r.OpenArchive(context.Background(), seamfs.Entity{Path: pathOf("/a.bad")})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "/a.bad")
}

func TestRegisterBuiltins(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testOptions())
	require.NoError(t, RegisterBuiltins(r, ZipFormat, GzipFormat))
	assert.Equal(t, []string{"gz", "zip"}, r.Formats())

	assert.Error(t, RegisterBuiltins(NewRegistry(testOptions()), "rar"))
}

func TestNewDefaultRegistry(t *testing.T) {
	t.Parallel()

	r, err := NewDefaultRegistry(config.NewDefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"cpio", "gz", "lz4", "zip", "zip.001", "zst"}, r.Formats())
	assert.Equal(t, Options{SeekChunkSize: config.DefaultSeekChunkSize, PipeBufferSize: config.DefaultPipeBufferSize}, r.opts)

	cfg := config.NewConfig(&config.ConfigOverride{ArchiveFormats: []string{"cpio"}})
	r, err = NewDefaultRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"cpio"}, r.Formats())
}

func TestRegistry_OpensNestedBuiltins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, err := NewDefaultRegistry(config.NewDefaultConfig())
	require.NoError(t, err)

	mem := NewMemory()
	inner := zipBytes(t, archiveEntry{name: "deep.txt", data: "nested"})
	putFile(t, mem, "/outer.zip", zipBytes(t, archiveEntry{name: "inner.zip", data: string(inner)}))

	outer, err := r.OpenArchive(ctx, seamfs.Entity{Backend: mem, Path: pathOf("/outer.zip")})
	require.NoError(t, err)
	defer outer.Close()
	require.True(t, r.IsArchive(outer, pathOf("/inner.zip")))

	nested, err := r.OpenArchive(ctx, seamfs.Entity{Backend: outer, Path: pathOf("/inner.zip")})
	require.NoError(t, err)
	defer nested.Close()

	assert.Equal(t, []byte("nested"), readFile(t, nested, "/deep.txt"))
}
