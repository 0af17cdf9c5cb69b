package scheme

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

func ids(entries []*Entry) []any {
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.Value("Id")
	}
	return out
}

func TestSwapVersusMove(t *testing.T) {
	s := itemsScheme(t, 0, 1, 2, 3)
	require.NoError(t, s.SwapEntries(0, 3))
	assert.Equal(t, []any{int64(3), int64(1), int64(2), int64(0)}, ids(s.Entries()))

	s = itemsScheme(t, 0, 1, 2, 3)
	e, _ := s.EntryAt(0)
	from, err := s.MoveEntry(e, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, from)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(0)}, ids(s.Entries()))
	assert.True(t, s.IsDirty())

	_, err = s.MoveEntry(e, 0)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0), int64(1), int64(2), int64(3)}, ids(s.Entries()))
}

func TestReorderBounds(t *testing.T) {
	s := itemsScheme(t, 0, 1)
	assert.ErrorIs(t, s.SwapEntries(0, 2), types.ErrIndexOutOfRange)
	assert.ErrorIs(t, s.SwapAttributes(-1, 0), types.ErrIndexOutOfRange)
	e, _ := s.EntryAt(0)
	_, err := s.MoveEntry(e, 2)
	assert.ErrorIs(t, err, types.ErrIndexOutOfRange)
	_, err = s.MoveAttribute("Id", 5)
	assert.ErrorIs(t, err, types.ErrIndexOutOfRange)
	_, err = s.MoveAttribute("Nope", 0)
	assert.ErrorIs(t, err, types.ErrUnknownAttribute)
	assert.False(t, s.IsDirty())
}

func TestAttributeOrder(t *testing.T) {
	ctx := context.Background()
	s := itemsScheme(t)
	_, err := s.AddAttribute(ctx, datatype.Env{}, AttributeSpec{Name: "Weight", Type: datatype.Float()})
	require.NoError(t, err)

	names := func() []string {
		var out []string
		for _, a := range s.Attributes() {
			out = append(out, a.Name())
		}
		return out
	}
	require.NoError(t, s.SwapAttributes(0, 2))
	assert.Equal(t, []string{"Weight", "Name", "Id"}, names())

	from, err := s.MoveAttribute("Weight", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, from)
	assert.Equal(t, []string{"Name", "Id", "Weight"}, names())
}

func TestGetEntries(t *testing.T) {
	ctx := context.Background()
	s := itemsScheme(t, 3, 1, 2)
	for i, name := range []string{"b", "a", "b"} {
		e, _ := s.EntryAt(i)
		_, err := s.SetValue(ctx, datatype.Env{}, e, "Name", name, false)
		require.NoError(t, err)
	}

	got, err := s.GetEntries(SortOrder{})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3), int64(1), int64(2)}, ids(got))

	got, err = s.GetEntries(SortOrder{Attribute: "Id"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, ids(got))

	got, err = s.GetEntries(SortOrder{Attribute: "Id", Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3), int64(2), int64(1)}, ids(got))

	got, err = s.GetEntries(SortOrder{Attribute: "Name"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(3), int64(2)}, ids(got), "ties keep insertion order")

	_, err = s.GetEntries(SortOrder{Attribute: "Nope"})
	assert.ErrorIs(t, err, types.ErrUnknownAttribute)
	assert.Equal(t, []any{int64(3), int64(1), int64(2)}, ids(s.Entries()), "sorting never reorders storage")
}
