package mocks

import (
	"io"
	"time"

	"github.com/brettbedarf/assemblyfs/archive"
	"github.com/stretchr/testify/mock"
)

// MockArchive implements archive.Archive for testing across packages
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Open() error {
	return m.Called().Error(0)
}

func (m *MockArchive) Name() string {
	return m.Called().String(0)
}

func (m *MockArchive) Size() int64 {
	return m.Called().Get(0).(int64)
}

func (m *MockArchive) Exists() bool {
	return m.Called().Bool(0)
}

func (m *MockArchive) LastModified() time.Time {
	args := m.Called()

	// Handle function return types (for tests that change the source between calls)
	if fn, ok := args.Get(0).(func() time.Time); ok {
		return fn()
	}
	return args.Get(0).(time.Time)
}

func (m *MockArchive) Entries() ([]archive.Entry, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]archive.Entry), args.Error(1)
}

func (m *MockArchive) OpenEntry(e archive.Entry) (io.ReadCloser, error) {
	args := m.Called(e)
	if fn, ok := args.Get(0).(func(archive.Entry) io.ReadCloser); ok {
		return fn(e), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockArchive) Raw() (io.ReadCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockArchive) Close() error {
	return m.Called().Error(0)
}

var _ archive.Archive = (*MockArchive)(nil)

// MockFactory implements archive.Factory for testing across packages
type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) NewArchive(src archive.Source) (archive.Archive, error) {
	args := m.Called(src)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(archive.Archive), args.Error(1)
}

var _ archive.Factory = (*MockFactory)(nil)
