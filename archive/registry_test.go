package archive_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brettbedarf/assemblyfs/archive"
	"github.com/brettbedarf/assemblyfs/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_SingleFactory(t *testing.T) {
	t.Parallel()

	r := archive.NewRegistry()
	mockFactory := &mocks.MockFactory{}

	r.Register(archive.ZipFactoryName, mockFactory)
	factory, err := r.Get(archive.ZipFactoryName)

	require.NoError(t, err)
	assert.Equal(t, mockFactory, factory)
}

func TestRegister_DuplicateFactory(t *testing.T) {
	t.Parallel()

	r := archive.NewRegistry()
	mockFactory1 := &mocks.MockFactory{}
	mockFactory2 := &mocks.MockFactory{}

	r.Register("test", mockFactory1)
	r.Register("test", mockFactory2)

	factory, err := r.Get("test")
	require.NoError(t, err)
	assert.Same(t, mockFactory1, factory)
}

func TestRegister_Concurrent(t *testing.T) {
	t.Parallel()
	var wg sync.WaitGroup
	r := archive.NewRegistry()

	for i := range 100 {
		wg.Go(func() {
			name := fmt.Sprintf("test%d", i)
			mockFactory := &mocks.MockFactory{}
			r.Register(name, mockFactory)
			factory, err := r.Get(name)
			require.NoError(t, err)
			assert.Same(t, mockFactory, factory)
			// Small delay to increase chance of race conditions
			time.Sleep(time.Microsecond)
		})
	}
	wg.Wait()
	assert.Len(t, r.Names(), 100)
}

func TestRegistry_Get_Unknown(t *testing.T) {
	t.Parallel()

	_, err := archive.NewRegistry().Get("tar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"tar"`)
}

func TestRegisterBuiltins(t *testing.T) {
	t.Parallel()

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		r := archive.NewRegistry()
		archive.RegisterBuiltins(r)
		assert.Equal(t, []string{"7z", "auto", "cpio", "kzip", "rar", "zip"}, r.Names())
	})
	t.Run("subset", func(t *testing.T) {
		t.Parallel()
		r := archive.NewRegistry()
		archive.RegisterBuiltins(r, archive.ZipFactoryName)
		assert.Equal(t, []string{"zip"}, r.Names())
	})
	t.Run("injected factory survives builtins", func(t *testing.T) {
		t.Parallel()
		r := archive.NewRegistry()
		mockFactory := &mocks.MockFactory{}
		r.Register(archive.AutoFactoryName, mockFactory)
		archive.RegisterBuiltins(r)
		factory, err := r.Get(archive.AutoFactoryName)
		require.NoError(t, err)
		assert.Same(t, mockFactory, factory)
	})
}
