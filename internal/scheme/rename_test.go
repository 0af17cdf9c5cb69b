package scheme

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// lootScheme builds Loot{Id (Reference to Items.Id), Source (Reference to
// Items.Id)}. Id mirrors the target's name, Source does not.
func lootScheme(t *testing.T) *Scheme {
	t.Helper()
	ctx := context.Background()
	s, err := New("Loot")
	require.NoError(t, err)
	_, err = s.AddAttribute(ctx, datatype.Env{}, AttributeSpec{Name: "Id", Type: datatype.Reference("Items", "Id", true)})
	require.NoError(t, err)
	_, err = s.AddAttribute(ctx, datatype.Env{}, AttributeSpec{Name: "Source", Type: datatype.Reference("Items", "Id", true)})
	require.NoError(t, err)
	require.NoError(t, s.AddEntry(ctx, datatype.Env{}, NewEntry(map[string]any{"Id": int64(1), "Source": int64(2)}), false))
	s.MarkClean()
	return s
}

func TestRenameAttribute_Cascade(t *testing.T) {
	items := itemsScheme(t, 1, 2)
	loot := lootScheme(t)
	cat := catalog{items, loot}

	r, err := items.RenameAttribute(cat, "Id", "ItemId")
	require.NoError(t, err)
	assert.Len(t, r.Retargeted, 2)

	_, err = items.Attribute("ItemId")
	require.NoError(t, err)
	assert.Equal(t, int64(1), items.Entries()[0].Value("ItemId"))

	mirrored, err := loot.Attribute("ItemId")
	require.NoError(t, err, "mirror-named reference is renamed with its target")
	assert.Equal(t, "Items", mirrored.Type().Target().Scheme)
	assert.Equal(t, "ItemId", mirrored.Type().Target().Attribute)
	source, err := loot.Attribute("Source")
	require.NoError(t, err)
	assert.Equal(t, "ItemId", source.Type().Target().Attribute)

	le := loot.Entries()[0]
	assert.Equal(t, int64(1), le.Value("ItemId"))
	assert.Equal(t, int64(2), le.Value("Source"))
	_, ok := le.Get("Id")
	assert.False(t, ok)
	assert.True(t, loot.IsDirty())

	require.NoError(t, items.RevertRename(r))
	_, err = loot.Attribute("Id")
	require.NoError(t, err)
	assert.Equal(t, "Id", source.Type().Target().Attribute)
	assert.Equal(t, int64(1), le.Value("Id"))
	assert.Equal(t, int64(1), items.Entries()[0].Value("Id"))

	require.NoError(t, items.ReapplyRename(r))
	assert.Equal(t, int64(1), le.Value("ItemId"))
}

func TestRenameAttribute_Rejections(t *testing.T) {
	items := itemsScheme(t, 1)

	_, err := items.RenameAttribute(nil, "Id", " ")
	assert.ErrorIs(t, err, types.ErrInvalidName)
	_, err = items.RenameAttribute(nil, "Id", "Id")
	assert.ErrorIs(t, err, types.ErrInvalidName)
	_, err = items.RenameAttribute(nil, "Id", "Name")
	assert.ErrorIs(t, err, types.ErrDuplicateName)
	_, err = items.RenameAttribute(nil, "Nope", "X")
	assert.ErrorIs(t, err, types.ErrUnknownAttribute)
}

func TestRenameAttribute_CollisionInOtherScheme(t *testing.T) {
	ctx := context.Background()
	items := itemsScheme(t, 1)
	loot := lootScheme(t)
	_, err := loot.AddAttribute(ctx, datatype.Env{}, AttributeSpec{Name: "ItemId", Type: datatype.Text()})
	require.NoError(t, err)

	_, err = items.RenameAttribute(catalog{items, loot}, "Id", "ItemId")
	assert.ErrorIs(t, err, types.ErrDuplicateName)
	_, err = items.Attribute("Id")
	assert.NoError(t, err, "nothing moves on a collision")
	source, _ := loot.Attribute("Source")
	assert.Equal(t, "Id", source.Type().Target().Attribute)
}
