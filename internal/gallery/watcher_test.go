package gallery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encodings.json")
	first, err := New([][]float64{{0, 0}}, []string{"a"})
	require.NoError(t, err)
	require.NoError(t, SaveFile(path, first, FormatJSON))

	h := NewHolder(context.Background(), FileSource{Path: path}, nil)
	require.Equal(t, 1, h.Current().Len())

	reloaded := make(chan error, 10)
	w := NewWatcher(h, path, 20*time.Millisecond, nil)
	w.Reloaded = func(err error) { reloaded <- err }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher time to register before replacing the file.
	time.Sleep(100 * time.Millisecond)

	second, err := New([][]float64{{0, 0}, {1, 1}, {2, 2}}, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.NoError(t, SaveFile(path, second, FormatJSON))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	require.Equal(t, 3, h.Current().Len())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	h := NewStaticHolder(nil)
	w := NewWatcher(h, filepath.Join(t.TempDir(), "nope", "encodings.json"), 0, nil)
	require.Error(t, w.Run(context.Background()))
}

func TestWatcher_NoReloadAfterStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encodings.json")
	first, err := New([][]float64{{0, 0}}, []string{"a"})
	require.NoError(t, err)
	require.NoError(t, SaveFile(path, first, FormatJSON))

	h := NewHolder(context.Background(), FileSource{Path: path}, nil)

	reloaded := make(chan error, 10)
	delay := 200 * time.Millisecond
	w := NewWatcher(h, path, delay, nil)
	w.Reloaded = func(err error) { reloaded <- err }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)

	second, err := New([][]float64{{0, 0}, {1, 1}}, []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, SaveFile(path, second, FormatJSON))

	// Stop well inside the debounce window.
	time.Sleep(delay / 4)
	cancel()
	require.NoError(t, <-done)

	select {
	case err := <-reloaded:
		t.Fatalf("reload ran after the watcher stopped: %v", err)
	case <-time.After(3 * delay):
	}
	require.Equal(t, 1, h.Current().Len())
}
