package datatype

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/internal/fsys"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// fakeIdentifiers serves identifier values from a fixed table.
type fakeIdentifiers map[string]struct {
	values []any
	t      *DataType
}

func (f fakeIdentifiers) IdentifierValues(scheme, attribute string) ([]any, *DataType, error) {
	e, ok := f[scheme+"."+attribute]
	if !ok {
		return nil, nil, types.ErrSchemeNotFound
	}
	return e.values, e.t, nil
}

func TestValidate_Scalars(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		dt    *DataType
		value any
		ok    bool
	}{
		{"text", Text(), "hello", true},
		{"text rejects int", Text(), int64(1), false},
		{"integer", Integer(), int64(42), true},
		{"integer rejects int", Integer(), 42, false},
		{"integer rejects string", Integer(), "42", false},
		{"float", Float(), 1.5, true},
		{"float rejects NaN", Float(), math.NaN(), false},
		{"boolean", Boolean(), true, true},
		{"boolean rejects string", Boolean(), "true", false},
		{"datetime", DateTime(), time.Now(), true},
		{"datetime rejects string", DateTime(), "2024-01-01", false},
		{"guid", Guid(), uuid.New(), true},
		{"guid rejects string", Guid(), uuid.NewString(), false},
		{"color", Color(), colorful.Color{R: 1}, true},
		{"color out of range", Color(), colorful.Color{R: 2}, false},
		{"extension accepts anything", Extension("Curve", nil), []int{1, 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dt.Validate(ctx, Env{}, tt.value)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, types.ErrInvalidValue)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.dt.Name(), ve.Type)
			assert.Equal(t, -1, ve.Index)
		})
	}
}

func TestValidate_ListReportsFirstFailingIndex(t *testing.T) {
	list := ListOf(Integer())
	ctx := context.Background()

	assert.NoError(t, list.Validate(ctx, Env{}, []any{int64(1), int64(2)}))
	assert.NoError(t, list.Validate(ctx, Env{}, []any{}))

	err := list.Validate(ctx, Env{}, []any{int64(1), "two", "three"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, ve.Index)
	assert.Contains(t, ve.Error(), "element 1")

	assert.Error(t, list.Validate(ctx, Env{}, int64(1)), "scalar is not a list")
}

func TestValidate_Paths(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/game/assets", 0o755))
	require.NoError(t, afero.WriteFile(mem, "/game/assets/hero.png", []byte("png"), 0o644))
	env := Env{FS: fsys.New(mem), BasePath: "/game", Timeout: time.Second}
	ctx := context.Background()

	file := FilePath(PathOptions{MustExist: true, Extensions: []string{".png"}})
	folder := Folder(PathOptions{MustExist: true})
	loose := FilePath(PathOptions{})

	tests := []struct {
		name    string
		dt      *DataType
		value   any
		wantErr error
	}{
		{"relative file resolves against env base", file, "assets/hero.png", nil},
		{"absolute file", file, "/game/assets/hero.png", nil},
		{"empty path is unset", file, "", nil},
		{"missing file", file, "assets/villain.png", types.ErrPathNotFound},
		{"wrong extension", file, "assets/hero.jpg", types.ErrInvalidValue},
		{"directory is not a file", FilePath(PathOptions{MustExist: true}), "assets", types.ErrPathNotFound},
		{"folder", folder, "assets", nil},
		{"missing folder", folder, "levels", types.ErrPathNotFound},
		{"no existence check", loose, "nowhere/at/all.txt", nil},
		{"type base path wins", FilePath(PathOptions{BasePath: "/game/assets", MustExist: true}), "hero.png", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dt.Validate(ctx, env, tt.value)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// blockingFS never answers until its context is done.
type blockingFS struct{}

func (blockingFS) FileExists(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (blockingFS) DirectoryExists(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (blockingFS) CreateDirectory(ctx context.Context, _ string) error { return ctx.Err() }

func TestValidate_PathTimeoutIsFailure(t *testing.T) {
	env := Env{FS: blockingFS{}, Timeout: 5 * time.Millisecond}
	err := FilePath(PathOptions{MustExist: true}).Validate(context.Background(), env, "slow.txt")
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestValidate_PathWithoutFileSystem(t *testing.T) {
	err := Folder(PathOptions{MustExist: true}).Validate(context.Background(), Env{}, "x")
	assert.ErrorIs(t, err, types.ErrPathNotFound)
}

func TestValidate_Reference(t *testing.T) {
	ids := fakeIdentifiers{
		"A.Id": {values: []any{int64(1), int64(2)}, t: Integer()},
		// A scheme still holding raw text identifiers mid-load.
		"Raw.Id": {values: []any{"10", "11"}, t: Integer()},
	}
	env := Env{Identifiers: ids}
	ctx := context.Background()

	strict := Reference("A", "Id", false)
	optional := Reference("A", "Id", true)

	tests := []struct {
		name  string
		dt    *DataType
		value any
		ok    bool
	}{
		{"existing id", strict, int64(1), true},
		{"existing id as text", strict, "2", true},
		{"missing id", strict, int64(3), false},
		{"empty not allowed", strict, nil, false},
		{"empty string not allowed", strict, "", false},
		{"empty allowed", optional, nil, true},
		{"blank allowed", optional, "  ", true},
		{"raw candidates are reconverted", Reference("Raw", "Id", false), int64(10), true},
		{"unknown target", Reference("Nope", "Id", false), int64(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dt.Validate(ctx, env, tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, types.ErrInvalidValue)
			}
		})
	}

	err := strict.Validate(ctx, Env{}, int64(1))
	assert.True(t, errors.Is(err, types.ErrReferenceTarget), "missing source is a target error: %v", err)
}
