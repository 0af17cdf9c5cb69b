package scheme

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

func TestConvertAttributeType(t *testing.T) {
	ctx := context.Background()
	env := datatype.Env{}

	t.Run("text to integer and back", func(t *testing.T) {
		s := itemsScheme(t, 1, 2)
		e0, _ := s.EntryAt(0)
		e1, _ := s.EntryAt(1)
		_, err := s.SetValue(ctx, env, e0, "Name", "12", false)
		require.NoError(t, err)
		s.MarkClean()

		tc, err := s.ConvertAttributeType(ctx, env, "Name", datatype.Integer())
		require.NoError(t, err)
		assert.Equal(t, int64(12), e0.Value("Name"))
		assert.Equal(t, int64(0), e1.Value("Name"), "blank text becomes the default")
		a, _ := s.Attribute("Name")
		assert.Equal(t, datatype.KindInteger, a.Type().Kind())
		assert.True(t, s.IsDirty())

		require.NoError(t, s.RevertTypeConversion(tc))
		assert.Equal(t, "12", e0.Value("Name"))
		assert.Equal(t, "", e1.Value("Name"))
		assert.Equal(t, datatype.KindText, a.Type().Kind())

		require.NoError(t, s.ReapplyTypeConversion(tc))
		assert.Equal(t, int64(12), e0.Value("Name"))
	})

	t.Run("all or nothing", func(t *testing.T) {
		s := itemsScheme(t, 1, 2)
		e0, _ := s.EntryAt(0)
		e1, _ := s.EntryAt(1)
		_, _ = s.SetValue(ctx, env, e0, "Name", "12", false)
		_, _ = s.SetValue(ctx, env, e1, "Name", "twelve", false)
		s.MarkClean()

		_, err := s.ConvertAttributeType(ctx, env, "Name", datatype.Integer())
		assert.ErrorIs(t, err, types.ErrConversionFailed)
		assert.Equal(t, "12", e0.Value("Name"))
		assert.Equal(t, "twelve", e1.Value("Name"))
		a, _ := s.Attribute("Name")
		assert.Equal(t, datatype.KindText, a.Type().Kind())
		assert.False(t, s.IsDirty())
	})

	t.Run("same type is a no-op", func(t *testing.T) {
		s := itemsScheme(t, 1, 2)
		before := s.Entries()[0].Values()
		tc, err := s.ConvertAttributeType(ctx, env, "Id", datatype.Integer())
		require.NoError(t, err)
		assert.Equal(t, before, s.Entries()[0].Values())
		assert.False(t, s.IsDirty())
		assert.True(t, tc.OldType.Equal(tc.NewType))
	})

	t.Run("identifier collision", func(t *testing.T) {
		s, _ := New("S")
		_, err := s.AddAttribute(ctx, env, AttributeSpec{Name: "Code", Type: datatype.Text(), Identifier: true})
		require.NoError(t, err)
		require.NoError(t, s.AddEntry(ctx, env, NewEntry(map[string]any{"Code": "1"}), true))
		require.NoError(t, s.AddEntry(ctx, env, NewEntry(map[string]any{"Code": "01"}), true))

		_, err = s.ConvertAttributeType(ctx, env, "Code", datatype.Integer())
		assert.ErrorIs(t, err, types.ErrDuplicateIdentifier)
		assert.Equal(t, "01", s.Entries()[1].Value("Code"))
	})
}

func TestResolveReferences(t *testing.T) {
	ctx := context.Background()
	items := itemsScheme(t, 1, 2)
	loot := lootScheme(t)
	e := loot.Entries()[0]
	e.values["Id"] = 1.0
	e.values["Source"] = "2"

	env := datatype.Env{Identifiers: identifiers{items}}
	assert.Empty(t, loot.ResolveReferences(ctx, env))
	assert.Equal(t, int64(1), e.Value("Id"))
	assert.Equal(t, int64(2), e.Value("Source"))
	assert.False(t, loot.IsDirty())

	e.values["Source"] = "two"
	assert.Len(t, loot.ResolveReferences(ctx, env), 1)
	assert.Equal(t, "two", e.Value("Source"))
}

// identifiers resolves identifier values from a fixed set of schemes.
type identifiers []*Scheme

func (ids identifiers) IdentifierValues(scheme, attribute string) ([]any, *datatype.DataType, error) {
	for _, s := range ids {
		if s.Name() == scheme {
			return s.IdentifierValues(attribute)
		}
	}
	return nil, nil, types.ErrSchemeNotFound
}
