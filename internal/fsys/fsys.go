// Package fsys adapts an afero.Fs to the types.FileSystem capability.
// Every call runs under the caller's context so a hung mount surfaces as
// a deadline error instead of blocking validation forever.
package fsys

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

var _ types.FileSystem = (*FS)(nil)

// FS implements types.FileSystem over an afero.Fs.
type FS struct {
	fs afero.Fs
}

// New wraps fs. A nil fs means the host operating system.
func New(fs afero.Fs) *FS {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FS{fs: fs}
}

// OS returns an FS backed by the host operating system.
func OS() *FS { return New(afero.NewOsFs()) }

// Memory returns an FS backed by an in-memory file system.
func Memory() *FS { return New(afero.NewMemMapFs()) }

// Afero exposes the underlying afero.Fs.
func (f *FS) Afero() afero.Fs { return f.fs }

type statResult struct {
	info os.FileInfo
	err  error
}

// stat runs Stat on its own goroutine so ctx can abandon it.
func (f *FS) stat(ctx context.Context, path string) (os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan statResult, 1)
	go func() {
		info, err := f.fs.Stat(path)
		done <- statResult{info: info, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.info, r.err
	}
}

// FileExists reports whether path names a regular file.
func (f *FS) FileExists(ctx context.Context, path string) (bool, error) {
	info, err := f.stat(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// DirectoryExists reports whether path names a directory.
func (f *FS) DirectoryExists(ctx context.Context, path string) (bool, error) {
	info, err := f.stat(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// CreateDirectory creates path and any missing parents.
func (f *FS) CreateDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.fs.MkdirAll(path, 0o755)
}
