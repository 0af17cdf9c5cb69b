package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/fsys"
	"github.com/mesh-intelligence/tabula/internal/scheme"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// memStore keeps schemes in a map.
type memStore struct {
	mu      sync.Mutex
	schemes map[string]*scheme.Scheme
	saves   int
}

func newMemStore(schemes ...*scheme.Scheme) *memStore {
	m := &memStore{schemes: make(map[string]*scheme.Scheme)}
	for _, s := range schemes {
		m.schemes[s.Name()] = s
	}
	return m
}

func (m *memStore) SaveScheme(_ context.Context, s *scheme.Scheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes[s.Name()] = s
	m.saves++
	return nil
}

func (m *memStore) LoadScheme(_ context.Context, name string) (*scheme.Scheme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schemes[name]
	if !ok {
		return nil, types.ErrSchemeNotFound
	}
	return s, nil
}

func (m *memStore) DeleteScheme(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schemes, name)
	return nil
}

func (m *memStore) ListSchemes(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.schemes {
		names = append(names, name)
	}
	return names, nil
}

func newRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r := New(opts...)
	require.NoError(t, r.Init(context.Background()))
	return r
}

// build creates a scheme with an Integer identifier "Id" holding ids.
func build(t *testing.T, name string, ids ...int64) *scheme.Scheme {
	t.Helper()
	ctx := context.Background()
	s, err := scheme.New(name)
	require.NoError(t, err)
	_, err = s.AddAttribute(ctx, datatype.Env{}, scheme.AttributeSpec{Name: "Id", Type: datatype.Integer(), Identifier: true})
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, s.AddEntry(ctx, datatype.Env{}, scheme.NewEntry(map[string]any{"Id": id}), true))
	}
	return s
}

func TestRegistry_UseBeforeInitPanics(t *testing.T) {
	r := New()
	assert.Panics(t, func() { _, _ = r.GetScheme("Items") })
	assert.Panics(t, func() { r.Schemes() })

	require.NoError(t, r.Init(context.Background()))
	r.Reset()
	assert.Panics(t, func() { r.SchemeExists("Items") })
}

func TestRegistry_LoadScheme(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	items := build(t, "Items", 1)

	require.NoError(t, r.LoadScheme(ctx, items, "", false))
	assert.True(t, r.SchemeExists("Items"))
	got, err := r.GetScheme("Items")
	require.NoError(t, err)
	assert.Same(t, items, got)

	loc, err := r.Location("Items")
	require.NoError(t, err)
	assert.Equal(t, "items.jsonl", loc)

	err = r.LoadScheme(ctx, build(t, "Items"), "", false)
	assert.ErrorIs(t, err, types.ErrSchemeExists)

	replacement := build(t, "Items")
	require.NoError(t, r.LoadScheme(ctx, replacement, "data/items-v2.jsonl", true))
	got, _ = r.GetScheme("Items")
	assert.Same(t, replacement, got)
	loc, _ = r.Location("Items")
	assert.Equal(t, "data/items-v2.jsonl", loc)
	assert.Equal(t, 1, r.Manifest().Len(), "overwrite reuses the manifest row")

	err = r.LoadScheme(ctx, build(t, ManifestName), "", true)
	assert.ErrorIs(t, err, types.ErrReservedScheme)

	_, err = r.GetScheme("Missing")
	assert.ErrorIs(t, err, types.ErrSchemeNotFound)
}

func TestRegistry_UnloadScheme(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	require.NoError(t, r.LoadScheme(ctx, build(t, "Items"), "items.jsonl", false))

	s, loc, err := r.UnloadScheme("Items")
	require.NoError(t, err)
	assert.Equal(t, "Items", s.Name())
	assert.Equal(t, "items.jsonl", loc)
	assert.False(t, r.SchemeExists("Items"))
	assert.Equal(t, 0, r.Manifest().Len())

	_, _, err = r.UnloadScheme("Items")
	assert.ErrorIs(t, err, types.ErrSchemeNotFound)
}

func TestRegistry_ManifestEntryConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.GetManifestEntryForScheme(ctx, "Items", true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.Manifest().Len())

	_, err := r.GetManifestEntryForScheme(ctx, "Other", false)
	assert.ErrorIs(t, err, types.ErrEntryNotFound)
}

func TestRegistry_IdentifierValues(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	require.NoError(t, r.LoadScheme(ctx, build(t, "Items", 4, 5), "", false))

	values, dt, err := r.IdentifierValues("Items", "Id")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(4), int64(5)}, values)
	assert.Equal(t, datatype.KindInteger, dt.Kind())

	_, _, err = r.IdentifierValues("Missing", "Id")
	assert.ErrorIs(t, err, types.ErrSchemeNotFound)
}

func TestRegistry_ReferenceValidation(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	require.NoError(t, r.LoadScheme(ctx, build(t, "Items", 1, 2), "", false))
	env := r.Env("", 0)

	ref := datatype.Reference("Items", "Id", false)
	assert.NoError(t, ref.Validate(ctx, env, int64(2)))
	assert.ErrorIs(t, ref.Validate(ctx, env, int64(3)), types.ErrInvalidValue)
	assert.ErrorIs(t, ref.Validate(ctx, env, nil), types.ErrInvalidValue)
	assert.NoError(t, datatype.Reference("Items", "Id", true).Validate(ctx, env, nil))
}

func TestRegistry_InitCreatesDataDir(t *testing.T) {
	fs := fsys.New(afero.NewMemMapFs())
	r := newRegistry(t, WithFileSystem(fs), WithDataDir("/data/.tabula-db"))
	assert.Same(t, fs, r.FileSystem())

	ok, err := fs.DirectoryExists(context.Background(), "/data/.tabula-db")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegistry_LoadAllAndSave(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(build(t, "Items", 1), build(t, "Quests", 7), build(t, "Npcs"))
	r := newRegistry(t, WithStore(store))

	require.NoError(t, r.LoadAll(ctx))
	assert.Equal(t, []string{"Items", "Npcs", "Quests"}, r.Names())
	assert.Equal(t, 3, r.Manifest().Len())
	for _, s := range r.Schemes() {
		assert.False(t, s.IsDirty(), s.Name())
	}

	items, _ := r.GetScheme("Items")
	require.NoError(t, items.AddEntry(ctx, datatype.Env{}, scheme.NewEntry(map[string]any{"Id": int64(2)}), true))
	saved, err := r.Save(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Items", ManifestName}, saved)
	assert.False(t, items.IsDirty())

	r2 := newRegistry(t, WithStore(store))
	require.NoError(t, r2.LoadAll(ctx, "Items"))
	assert.Equal(t, []string{"Items"}, r2.Names())
	loc, err := r2.Location("Quests")
	require.NoError(t, err, "manifest rows survive a partial load")
	assert.Equal(t, "quests.jsonl", loc)

	_, _, err = r2.UnloadScheme("Items")
	require.NoError(t, err)
	names, _ := store.ListSchemes(ctx)
	assert.Contains(t, names, "Items", "the store is untouched until Save")
	_, err = r2.Save(ctx)
	require.NoError(t, err)
	names, _ = store.ListSchemes(ctx)
	assert.NotContains(t, names, "Items")
}

func TestRegistry_SaveAfterUnloadAndReload(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(build(t, "Items", 1))
	r := newRegistry(t, WithStore(store))
	require.NoError(t, r.LoadAll(ctx))

	items, loc, err := r.UnloadScheme("Items")
	require.NoError(t, err)
	_, err = r.Save(ctx)
	require.NoError(t, err)
	names, _ := store.ListSchemes(ctx)
	assert.NotContains(t, names, "Items")

	require.NoError(t, r.LoadScheme(ctx, items, loc, false))
	assert.True(t, items.IsDirty(), "a scheme loaded back after deletion is saved again")
	saved, err := r.Save(ctx)
	require.NoError(t, err)
	assert.Contains(t, saved, "Items")
	names, _ = store.ListSchemes(ctx)
	assert.Contains(t, names, "Items")
}

func TestRegistry_SaveIgnoresNeverStoredSchemes(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, WithStore(newMemStore()))
	require.NoError(t, r.LoadScheme(ctx, build(t, "Draft"), "", false))
	_, _, err := r.UnloadScheme("Draft")
	require.NoError(t, err)
	_, err = r.Save(ctx)
	require.NoError(t, err)
}

func TestRegistry_NoStore(t *testing.T) {
	r := newRegistry(t)
	assert.ErrorIs(t, r.LoadAll(context.Background()), types.ErrNoStore)
	_, err := r.Save(context.Background())
	assert.ErrorIs(t, err, types.ErrNoStore)
}

func TestDefaultLocation(t *testing.T) {
	assert.Equal(t, "quest-rewards.jsonl", DefaultLocation("Quest Rewards"))
}
