// Package registry holds the catalog of loaded schemes and the manifest
// that records where each one is stored. A Registry is constructed
// explicitly, initialized with Init, and passed to whatever needs
// cross-scheme lookups. It implements datatype.IdentifierSource for
// Reference validation and scheme.Catalog for the rename cascade.
package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/scheme"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Manifest scheme name and attributes.
const (
	ManifestName       = "Manifest"
	ManifestSchemeName = "SchemeName"
	ManifestPath       = "Path"
)

// LocationExt is the file extension of default scheme locations.
const LocationExt = ".jsonl"

// Store is the storage-format capability: it persists whole schemes.
type Store interface {
	SaveScheme(ctx context.Context, s *scheme.Scheme) error
	LoadScheme(ctx context.Context, name string) (*scheme.Scheme, error)
	DeleteScheme(ctx context.Context, name string) error
	ListSchemes(ctx context.Context) ([]string, error)
}

// Registry is the process catalog of loaded schemes.
type Registry struct {
	mu          sync.RWMutex
	manifestMu  sync.Mutex
	initialized bool
	schemes     map[string]*scheme.Scheme
	manifest    *scheme.Scheme
	// unloaded holds schemes removed since the last Save; Save deletes
	// them from the store.
	unloaded map[string]struct{}

	store   Store
	fs      types.FileSystem
	dataDir string
	logger  *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore sets the storage capability used by LoadAll and Save.
func WithStore(s Store) Option { return func(r *Registry) { r.store = s } }

// WithFileSystem sets the file-system capability used to bootstrap the
// data directory and handed to validation through Env.
func WithFileSystem(fs types.FileSystem) Option { return func(r *Registry) { r.fs = fs } }

// WithDataDir sets the directory Init bootstraps.
func WithDataDir(dir string) Option { return func(r *Registry) { r.dataDir = dir } }

// WithLogger sets the logger. A nil logger is replaced by a no-op one.
func WithLogger(l *zap.Logger) Option { return func(r *Registry) { r.logger = l } }

// New creates an uninitialized Registry.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Init resets the registry to an empty catalog holding only the
// manifest. When a file system and data directory are configured, the
// data directory is created if missing.
func (r *Registry) Init(ctx context.Context) error {
	if r.fs != nil && r.dataDir != "" {
		exists, err := r.fs.DirectoryExists(ctx, r.dataDir)
		if err != nil {
			return fmt.Errorf("checking data dir: %w", err)
		}
		if !exists {
			if err := r.fs.CreateDirectory(ctx, r.dataDir); err != nil {
				return fmt.Errorf("creating data dir: %w", err)
			}
		}
	}
	manifest, err := newManifest(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes = make(map[string]*scheme.Scheme)
	r.unloaded = make(map[string]struct{})
	r.manifest = manifest
	r.initialized = true
	r.logger.Debug("registry initialized", zap.String("dataDir", r.dataDir))
	return nil
}

// Reset drops every loaded scheme and returns the registry to its
// uninitialized state.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes = nil
	r.unloaded = nil
	r.manifest = nil
	r.initialized = false
}

func newManifest(ctx context.Context) (*scheme.Scheme, error) {
	m, err := scheme.New(ManifestName)
	if err != nil {
		return nil, err
	}
	if _, err := m.AddAttribute(ctx, datatype.Env{}, scheme.AttributeSpec{
		Name:       ManifestSchemeName,
		Type:       datatype.Text(),
		Identifier: true,
	}); err != nil {
		return nil, err
	}
	if _, err := m.AddAttribute(ctx, datatype.Env{}, scheme.AttributeSpec{
		Name: ManifestPath,
		Type: datatype.FilePath(datatype.PathOptions{}),
	}); err != nil {
		return nil, err
	}
	m.MarkClean()
	return m, nil
}

// mustInit panics when the registry is used before Init. Callers hold mu.
func (r *Registry) mustInit() {
	if !r.initialized {
		panic("registry: used before Init")
	}
}

// Logger returns the registry's logger.
func (r *Registry) Logger() *zap.Logger { return r.logger }

// FileSystem returns the configured file-system capability, or nil.
func (r *Registry) FileSystem() types.FileSystem { return r.fs }

// Env builds a validation environment backed by this registry.
func (r *Registry) Env(basePath string, timeout time.Duration) datatype.Env {
	return datatype.Env{
		Identifiers: r,
		FS:          r.fs,
		BasePath:    basePath,
		Timeout:     timeout,
	}
}

// GetScheme returns the loaded scheme called name. The manifest is
// reachable under ManifestName.
func (r *Registry) GetScheme(name string) (*scheme.Scheme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.mustInit()
	if name == ManifestName {
		return r.manifest, nil
	}
	s, ok := r.schemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrSchemeNotFound, name)
	}
	return s, nil
}

// SchemeExists reports whether a scheme called name is loaded.
func (r *Registry) SchemeExists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.mustInit()
	_, ok := r.schemes[name]
	return ok || name == ManifestName
}

// Schemes returns the loaded schemes sorted by name, excluding the
// manifest.
func (r *Registry) Schemes() []*scheme.Scheme {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.mustInit()
	out := make([]*scheme.Scheme, 0, len(r.schemes))
	for _, s := range r.schemes {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *scheme.Scheme) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// Names returns the loaded scheme names, sorted.
func (r *Registry) Names() []string {
	schemes := r.Schemes()
	names := make([]string, len(schemes))
	for i, s := range schemes {
		names[i] = s.Name()
	}
	return names
}

// Manifest returns the manifest scheme.
func (r *Registry) Manifest() *scheme.Scheme {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.mustInit()
	return r.manifest
}

// DefaultLocation returns the storage location used for a scheme that
// was loaded without one.
func DefaultLocation(name string) string {
	return slug.Make(name) + LocationExt
}

// LoadScheme registers s. An already loaded scheme of the same name is
// replaced only when overwrite is set. The manifest row for s is created
// or updated to point at location; an empty location keeps an existing
// row's path or falls back to DefaultLocation.
func (r *Registry) LoadScheme(ctx context.Context, s *scheme.Scheme, location string, overwrite bool) error {
	if s == nil {
		panic("registry: LoadScheme with nil scheme")
	}
	name := s.Name()
	if name == ManifestName {
		return fmt.Errorf("%w: %s", types.ErrReservedScheme, name)
	}

	r.mu.Lock()
	r.mustInit()
	if _, ok := r.schemes[name]; ok && !overwrite {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrSchemeExists, name)
	}
	r.schemes[name] = s
	if _, ok := r.unloaded[name]; ok {
		// The stored copy may already be gone.
		s.MarkDirty()
		delete(r.unloaded, name)
	}
	r.mu.Unlock()

	if _, err := r.setLocation(ctx, name, location); err != nil {
		return err
	}
	r.logger.Debug("scheme loaded",
		zap.String("scheme", name),
		zap.Int("attributes", len(s.Attributes())),
		zap.Int("entries", s.Len()),
	)
	return nil
}

// UnloadScheme removes the scheme called name and its manifest row, and
// returns the removed scheme together with the location it was
// recorded under. The next Save deletes it from the store unless it is
// loaded again first.
func (r *Registry) UnloadScheme(name string) (*scheme.Scheme, string, error) {
	r.mu.Lock()
	r.mustInit()
	s, ok := r.schemes[name]
	if !ok {
		r.mu.Unlock()
		return nil, "", fmt.Errorf("%w: %s", types.ErrSchemeNotFound, name)
	}
	delete(r.schemes, name)
	r.unloaded[name] = struct{}{}
	manifest := r.manifest
	r.mu.Unlock()

	r.manifestMu.Lock()
	defer r.manifestMu.Unlock()
	location := ""
	if e, err := manifest.FindEntry(ManifestSchemeName, name); err == nil {
		location, _ = e.Value(ManifestPath).(string)
		_, _ = manifest.DeleteEntry(e)
	}
	r.logger.Debug("scheme unloaded", zap.String("scheme", name))
	return s, location, nil
}

// GetManifestEntryForScheme returns the manifest row for name. With
// create set, a missing row is added with the default location.
// The lookup and insert run under the manifest lock so concurrent loads
// never duplicate a row.
func (r *Registry) GetManifestEntryForScheme(ctx context.Context, name string, create bool) (*scheme.Entry, error) {
	manifest := r.Manifest()

	r.manifestMu.Lock()
	defer r.manifestMu.Unlock()
	if e, err := manifest.FindEntry(ManifestSchemeName, name); err == nil {
		return e, nil
	}
	if !create {
		return nil, fmt.Errorf("%w: manifest row for %s", types.ErrEntryNotFound, name)
	}
	e := scheme.NewEntry(map[string]any{
		ManifestSchemeName: name,
		ManifestPath:       DefaultLocation(name),
	})
	if err := manifest.AddEntry(ctx, datatype.Env{}, e, true); err != nil {
		return nil, err
	}
	return e, nil
}

// Location returns the manifest path recorded for name.
func (r *Registry) Location(name string) (string, error) {
	manifest := r.Manifest()
	r.manifestMu.Lock()
	defer r.manifestMu.Unlock()
	e, err := manifest.FindEntry(ManifestSchemeName, name)
	if err != nil {
		return "", fmt.Errorf("%w: manifest row for %s", types.ErrEntryNotFound, name)
	}
	location, _ := e.Value(ManifestPath).(string)
	return location, nil
}

func (r *Registry) setLocation(ctx context.Context, name, location string) (*scheme.Entry, error) {
	e, err := r.GetManifestEntryForScheme(ctx, name, true)
	if err != nil {
		return nil, err
	}
	if location == "" {
		return e, nil
	}
	manifest := r.Manifest()
	r.manifestMu.Lock()
	defer r.manifestMu.Unlock()
	if _, err := manifest.SetValue(ctx, datatype.Env{}, e, ManifestPath, location, false); err != nil {
		return nil, err
	}
	return e, nil
}

// IdentifierValues returns the identifier values of scheme.attribute. It
// implements datatype.IdentifierSource.
func (r *Registry) IdentifierValues(schemeName, attribute string) ([]any, *datatype.DataType, error) {
	s, err := r.GetScheme(schemeName)
	if err != nil {
		return nil, nil, err
	}
	return s.IdentifierValues(attribute)
}
