package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/tabula/internal/scheme"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// loadConcurrency bounds parallel store reads in LoadAll.
const loadConcurrency = 4

// Store returns the configured storage capability, or nil.
func (r *Registry) Store() Store { return r.store }

// LoadAll reads the named schemes from the store concurrently and
// registers them, replacing any loaded copies. With no names it loads
// every stored scheme. A stored manifest is loaded first so recorded
// locations survive. Once every scheme is in, reference values are
// converted to their targets' types. Loaded schemes start clean.
func (r *Registry) LoadAll(ctx context.Context, names ...string) error {
	if r.store == nil {
		return types.ErrNoStore
	}
	stored, err := r.store.ListSchemes(ctx)
	if err != nil {
		return fmt.Errorf("listing schemes: %w", err)
	}
	if slices.Contains(stored, ManifestName) {
		if err := r.loadManifest(ctx); err != nil {
			return err
		}
	}
	if len(names) == 0 {
		names = stored
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for _, name := range names {
		if name == ManifestName {
			continue
		}
		g.Go(func() error {
			s, err := r.store.LoadScheme(gctx, name)
			if err != nil {
				return fmt.Errorf("loading %s: %w", name, err)
			}
			s.MarkClean()
			return r.LoadScheme(gctx, s, "", true)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	env := r.Env("", 0)
	for _, s := range r.Schemes() {
		for _, err := range s.ResolveReferences(ctx, env) {
			r.logger.Warn("unresolved reference", zap.String("scheme", s.Name()), zap.Error(err))
		}
	}
	r.logger.Info("schemes loaded", zap.Int("count", len(r.Schemes())))
	return nil
}

func (r *Registry) loadManifest(ctx context.Context) error {
	stored, err := r.store.LoadScheme(ctx, ManifestName)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}
	manifest, err := newManifest(ctx)
	if err != nil {
		return err
	}
	for _, e := range stored.Entries() {
		name, _ := e.Value(ManifestSchemeName).(string)
		path, _ := e.Value(ManifestPath).(string)
		if name == "" {
			continue
		}
		row := scheme.NewEntry(map[string]any{ManifestSchemeName: name, ManifestPath: path})
		if err := manifest.AddEntry(ctx, r.Env("", 0), row, true); err != nil {
			r.logger.Warn("skipping manifest row", zap.String("scheme", name), zap.Error(err))
		}
	}
	manifest.MarkClean()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustInit()
	r.manifest = manifest
	return nil
}

// Save deletes unloaded schemes from the store, then writes every dirty
// scheme, and the manifest if it changed, and marks them clean. Returns
// the names saved.
func (r *Registry) Save(ctx context.Context) ([]string, error) {
	if r.store == nil {
		return nil, types.ErrNoStore
	}
	if err := r.deleteUnloaded(ctx); err != nil {
		return nil, err
	}
	var saved []string
	all := append(r.Schemes(), r.Manifest())
	for _, s := range all {
		if !s.IsDirty() {
			continue
		}
		if err := r.store.SaveScheme(ctx, s); err != nil {
			return saved, fmt.Errorf("saving %s: %w", s.Name(), err)
		}
		s.MarkClean()
		saved = append(saved, s.Name())
	}
	if len(saved) > 0 {
		r.logger.Debug("schemes saved", zap.Strings("schemes", saved))
	}
	return saved, nil
}

// deleteUnloaded removes every scheme unloaded since the last Save from
// the store. A scheme that was never stored is not an error.
func (r *Registry) deleteUnloaded(ctx context.Context) error {
	r.mu.RLock()
	r.mustInit()
	names := slices.Sorted(maps.Keys(r.unloaded))
	r.mu.RUnlock()

	for _, name := range names {
		if err := r.store.DeleteScheme(ctx, name); err != nil && !errors.Is(err, types.ErrSchemeNotFound) {
			return fmt.Errorf("deleting %s: %w", name, err)
		}
		r.mu.Lock()
		delete(r.unloaded, name)
		r.mu.Unlock()
		r.logger.Debug("scheme deleted", zap.String("scheme", name))
	}
	return nil
}
