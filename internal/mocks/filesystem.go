package mocks

import (
	"io"
	"time"

	"github.com/brettbedarf/assemblyfs"
	"github.com/stretchr/testify/mock"
)

// MockFileSystem implements assemblyfs.FileSystem for testing across packages
type MockFileSystem struct {
	mock.Mock
}

func (m *MockFileSystem) File(mountPoint, target *assemblyfs.VirtualFile) (string, error) {
	args := m.Called(mountPoint, target)
	return args.String(0), args.Error(1)
}

func (m *MockFileSystem) Open(mountPoint, target *assemblyfs.VirtualFile) (io.ReadCloser, error) {
	args := m.Called(mountPoint, target)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func() io.ReadCloser); ok {
		return fn(), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockFileSystem) ReadOnly() bool {
	return m.Called().Bool(0)
}

func (m *MockFileSystem) Delete(mountPoint, target *assemblyfs.VirtualFile) bool {
	return m.Called(mountPoint, target).Bool(0)
}

func (m *MockFileSystem) Size(mountPoint, target *assemblyfs.VirtualFile) (int64, error) {
	args := m.Called(mountPoint, target)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileSystem) LastModified(mountPoint, target *assemblyfs.VirtualFile) (time.Time, error) {
	args := m.Called(mountPoint, target)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockFileSystem) Exists(mountPoint, target *assemblyfs.VirtualFile) bool {
	return m.Called(mountPoint, target).Bool(0)
}

func (m *MockFileSystem) IsFile(mountPoint, target *assemblyfs.VirtualFile) bool {
	return m.Called(mountPoint, target).Bool(0)
}

func (m *MockFileSystem) IsDirectory(mountPoint, target *assemblyfs.VirtualFile) bool {
	return m.Called(mountPoint, target).Bool(0)
}

func (m *MockFileSystem) Entries(mountPoint, target *assemblyfs.VirtualFile) []string {
	args := m.Called(mountPoint, target)
	if args.Get(0) == nil {
		return []string{}
	}
	return args.Get(0).([]string)
}

func (m *MockFileSystem) CodeSigners(mountPoint, target *assemblyfs.VirtualFile) []assemblyfs.CodeSigner {
	args := m.Called(mountPoint, target)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]assemblyfs.CodeSigner)
}

func (m *MockFileSystem) MountSource() string {
	return m.Called().String(0)
}

func (m *MockFileSystem) Close() error {
	return m.Called().Error(0)
}

var _ assemblyfs.FileSystem = (*MockFileSystem)(nil)
