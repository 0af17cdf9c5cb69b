package types

import "context"

// FileSystem is the file-system capability consumed by path-typed
// validation and manifest bootstrap. Implementations must honour ctx so a
// slow mount turns into a bounded, failable call.
type FileSystem interface {
	FileExists(ctx context.Context, path string) (bool, error)
	DirectoryExists(ctx context.Context, path string) (bool, error)
	CreateDirectory(ctx context.Context, path string) error
}

// Progress receives updates from long-running imports.
type Progress interface {
	Start(label string, total int)
	Advance(n int)
	Done()
}

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) Start(string, int) {}
func (NopProgress) Advance(int)       {}
func (NopProgress) Done()             {}
