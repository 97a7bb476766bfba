package seamfs

import "context"

// Entity names one file or directory in a specific backend.
type Entity struct {
	Backend Backend
	Path    Path
}

// Name returns the entity's name, or "" for the root.
func (e Entity) Name() string {
	name, _ := e.Path.EntityName()
	return name
}

func (e Entity) IsDirectory() bool { return e.Path.IsDirectory() }

func (e Entity) Exists(ctx context.Context) (bool, error) {
	return e.Backend.Exists(ctx, e.Path)
}

// Open opens the entity for reading.
func (e Entity) Open(ctx context.Context) (File, error) {
	return e.Backend.Open(ctx, e.Path, Read)
}

// Children lists the entity's direct children as entities of the same backend.
func (e Entity) Children(ctx context.Context) ([]Entity, error) {
	paths, err := e.Backend.List(ctx, e.Path)
	if err != nil {
		return nil, err
	}
	children := make([]Entity, len(paths))
	for i, p := range paths {
		children[i] = Entity{Backend: e.Backend, Path: p}
	}
	return children, nil
}
