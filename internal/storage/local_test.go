package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		tempDir := filepath.Join(t.TempDir(), "scratch")

		storage, err := NewLocalStorage(tempDir)
		require.NoError(t, err)
		assert.Equal(t, tempDir, storage.TempDir())

		info, err := os.Stat(tempDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(os.TempDir(), "mediavault"), storage.TempDir())
	})
}

func TestLocalStorage_Reserve(t *testing.T) {
	storage := setupTestStorage(t)

	t.Run("keeps prefix and base name", func(t *testing.T) {
		path := storage.Reserve(PrefixInput, "videos/clip.mov")

		assert.Equal(t, storage.TempDir(), filepath.Dir(path))
		name := filepath.Base(path)
		assert.True(t, strings.HasPrefix(name, "in_"), name)
		assert.True(t, strings.HasSuffix(name, "_clip.mov"), name)

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "Reserve must not create the file")
	})

	t.Run("never escapes the scratch directory", func(t *testing.T) {
		path := storage.Reserve(PrefixOutput, "../../etc/passwd")
		assert.Equal(t, storage.TempDir(), filepath.Dir(path))
	})

	t.Run("unique across concurrent callers", func(t *testing.T) {
		const n = 200
		var (
			mu    sync.Mutex
			wg    sync.WaitGroup
			paths = make(map[string]struct{}, n)
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p := storage.Reserve(PrefixInput, "same.mp4")
				mu.Lock()
				paths[p] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, paths, n)
	})
}

func TestLocalStorage_SaveTemp(t *testing.T) {
	storage := setupTestStorage(t)

	t.Run("saves data to temp file", func(t *testing.T) {
		path, err := storage.SaveTemp(context.Background(), PrefixInput, "test.mp4", bytes.NewReader([]byte("test data")))
		require.NoError(t, err)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "test data", string(content))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.SaveTemp(ctx, PrefixInput, "test.mp4", bytes.NewReader([]byte("data")))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("removes partial file on write error", func(t *testing.T) {
		_, err := storage.SaveTemp(context.Background(), PrefixInput, "broken.mp4", failingReader{})
		require.Error(t, err)

		entries, err := os.ReadDir(storage.TempDir())
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), "broken.mp4")
		}
	})
}

func TestLocalStorage_CleanupTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			path, err := storage.SaveTemp(ctx, PrefixOutput, "cleanup.mp4", bytes.NewReader([]byte("data")))
			require.NoError(t, err)
			paths = append(paths, path)
		}

		require.NoError(t, storage.CleanupTemp(paths...))

		for _, p := range paths {
			_, err := os.Stat(p)
			assert.True(t, os.IsNotExist(err), "file %s still exists", p)
		}
	})

	t.Run("ignores missing and empty paths", func(t *testing.T) {
		err := storage.CleanupTemp("", filepath.Join(storage.TempDir(), "never-created"))
		assert.NoError(t, err)
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return storage
}
