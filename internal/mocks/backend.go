package mocks

import (
	"context"

	"github.com/brettbedarf/seamfs"
	"github.com/stretchr/testify/mock"
)

// MockBackend implements seamfs.Backend for testing across packages
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) List(ctx context.Context, dir seamfs.Path) ([]seamfs.Path, error) {
	args := m.Called(ctx, dir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]seamfs.Path), args.Error(1)
}

func (m *MockBackend) Exists(ctx context.Context, p seamfs.Path) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackend) Open(ctx context.Context, p seamfs.Path, mode seamfs.AccessMode) (seamfs.File, error) {
	args := m.Called(ctx, p, mode)

	// Handle function return types so each call can get a fresh stream
	if fn, ok := args.Get(0).(func() seamfs.File); ok {
		return fn(), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(seamfs.File), args.Error(1)
}

func (m *MockBackend) Create(ctx context.Context, p seamfs.Path) (seamfs.File, error) {
	args := m.Called(ctx, p)
	if fn, ok := args.Get(0).(func() seamfs.File); ok {
		return fn(), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(seamfs.File), args.Error(1)
}

func (m *MockBackend) CreateDirectory(ctx context.Context, p seamfs.Path) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockBackend) Delete(ctx context.Context, p seamfs.Path) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockBackend) Close() error {
	return m.Called().Error(0)
}

var _ seamfs.Backend = (*MockBackend)(nil)

// MockArchiveHandler implements seamfs.ArchiveHandler for testing across packages
type MockArchiveHandler struct {
	mock.Mock
}

func (m *MockArchiveHandler) IsArchive(b seamfs.Backend, p seamfs.Path) bool {
	return m.Called(b, p).Bool(0)
}

func (m *MockArchiveHandler) OpenArchive(ctx context.Context, file seamfs.Entity) (seamfs.Backend, error) {
	args := m.Called(ctx, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(seamfs.Backend), args.Error(1)
}

var _ seamfs.ArchiveHandler = (*MockArchiveHandler)(nil)
