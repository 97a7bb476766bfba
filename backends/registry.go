// Package backends holds the concrete storage providers: go-billy memory and
// physical stores, the sealed wrapper, and the read-only archive formats, plus the
// registry the composition layer uses to recognise and open archives.
package backends

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/config"
)

// Options tunes the streams archive backends create.
type Options struct {
	SeekChunkSize  int // buffer growth step when random access is emulated
	PipeBufferSize int // ring size for entries decoded on a producer goroutine
}

// OptionsFromConfig copies the stream settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SeekChunkSize:  cfg.SeekChunkSize,
		PipeBufferSize: cfg.PipeBufferSize,
	}
}

// Factory opens an archive file as a backend.
type Factory func(ctx context.Context, file seamfs.Entity, opts Options) (seamfs.Backend, error)

// Registry maps file extensions to archive factories. It implements
// [seamfs.ArchiveHandler].
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	opts      Options
}

var _ seamfs.ArchiveHandler = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{factories: map[string]Factory{}, opts: opts}
}

// Register ties a factory to an extension such as "zip" or "zip.001".
// Registering the same extension again replaces the factory.
func (r *Registry) Register(ext string, f Factory) {
	ext = "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	r.mu.Lock()
	r.factories[ext] = f
	r.mu.Unlock()
}

// Formats lists the registered extensions.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for ext := range r.factories {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(out)
	return out
}

// lookup picks the factory with the longest extension matching name.
func (r *Registry) lookup(p seamfs.Path) (Factory, bool) {
	if !p.IsFile() {
		return nil, false
	}
	name, err := p.EntityName()
	if err != nil {
		return nil, false
	}
	name = strings.ToLower(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var best string
	for ext := range r.factories {
		if len(ext) > len(best) && len(name) > len(ext) && strings.HasSuffix(name, ext) {
			best = ext
		}
	}
	if best == "" {
		return nil, false
	}
	return r.factories[best], true
}

func (r *Registry) IsArchive(_ seamfs.Backend, p seamfs.Path) bool {
	_, ok := r.lookup(p)
	return ok
}

func (r *Registry) OpenArchive(ctx context.Context, file seamfs.Entity) (seamfs.Backend, error) {
	f, ok := r.lookup(file.Path)
	if !ok {
		return nil, seamfs.Unsupportedf("%s is not a recognised archive", file.Path)
	}
	b, err := f(ctx, file, r.opts)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", file.Path, err)
	}
	return b, nil
}
