package fsys

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_Exists(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/assets/sprites", 0o755))
	require.NoError(t, afero.WriteFile(mem, "/assets/sprites/hero.png", []byte("png"), 0o644))

	f := New(mem)
	ctx := context.Background()

	tests := []struct {
		name     string
		path     string
		wantFile bool
		wantDir  bool
	}{
		{"regular file", "/assets/sprites/hero.png", true, false},
		{"directory", "/assets/sprites", false, true},
		{"missing", "/assets/missing.png", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isFile, err := f.FileExists(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, isFile)

			isDir, err := f.DirectoryExists(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDir, isDir)
		})
	}
}

func TestFS_CreateDirectory(t *testing.T) {
	f := Memory()
	ctx := context.Background()

	require.NoError(t, f.CreateDirectory(ctx, "/data/schemes"))
	ok, err := f.DirectoryExists(ctx, "/data/schemes")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFS_CancelledContext(t *testing.T) {
	f := Memory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FileExists(ctx, "/anything")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, f.CreateDirectory(ctx, "/x"), context.Canceled)
}

// slowFs blocks Stat until released.
type slowFs struct {
	afero.Fs
	release chan struct{}
}

func (s slowFs) Stat(name string) (os.FileInfo, error) {
	<-s.release
	return s.Fs.Stat(name)
}

func TestFS_StatTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	f := New(slowFs{Fs: afero.NewMemMapFs(), release: release})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.FileExists(ctx, "/slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFS_OS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ok, err := OS().FileExists(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, ok)
}
