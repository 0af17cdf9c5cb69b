package scheme

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Meta is display metadata carried with an attribute. The engine stores
// it but never interprets it.
type Meta struct {
	Description string `json:"description,omitempty"`
	Width       int    `json:"width,omitempty"`
	Hidden      bool   `json:"hidden,omitempty"`
}

// Attribute is a named, typed column owned by exactly one scheme.
type Attribute struct {
	name       string
	dtype      *datatype.DataType
	def        any
	identifier bool
	meta       Meta
	scheme     *Scheme
}

// Name returns the attribute's name, unique within its scheme.
func (a *Attribute) Name() string { return a.name }

// Type returns the attribute's data type.
func (a *Attribute) Type() *datatype.DataType { return a.dtype }

// Default returns a fresh copy of the attribute's default value.
func (a *Attribute) Default() any { return datatype.CloneValue(a.def) }

// IsIdentifier reports whether this attribute is its scheme's identifier.
func (a *Attribute) IsIdentifier() bool { return a.identifier }

// Meta returns the display metadata.
func (a *Attribute) Meta() Meta { return a.meta }

// Scheme returns the owning scheme, nil once the attribute is removed.
func (a *Attribute) Scheme() *Scheme { return a.scheme }

// AttributeSpec describes an attribute to add. A nil Default means the
// type's default.
type AttributeSpec struct {
	Name       string
	Type       *datatype.DataType
	Default    any
	Identifier bool
	Meta       Meta
}

// AddAttribute appends a new attribute and back-fills a copy of its
// default onto every entry. It fails, leaving the scheme untouched, on a
// blank or duplicate name, a nil type, an invalid default, a second
// identifier, or an identifier whose back-filled defaults would collide.
func (s *Scheme) AddAttribute(ctx context.Context, env datatype.Env, spec AttributeSpec) (*Attribute, error) {
	return s.InsertAttribute(ctx, env, len(s.attributes), spec)
}

// InsertAttribute is AddAttribute at a given position.
func (s *Scheme) InsertAttribute(ctx context.Context, env datatype.Env, index int, spec AttributeSpec) (*Attribute, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, types.ErrInvalidName
	}
	if s.attributeIndex(name) >= 0 {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrDuplicateName, s.name, name)
	}
	if spec.Type == nil {
		return nil, types.ErrNilType
	}
	if index < 0 || index > len(s.attributes) {
		return nil, fmt.Errorf("%w: attribute %d of %d", types.ErrIndexOutOfRange, index, len(s.attributes))
	}

	def := spec.Type.CloneDefault()
	if spec.Default != nil {
		converted, err := spec.Type.Convert(ctx, env, spec.Default)
		if err != nil {
			return nil, fmt.Errorf("default for %s: %w", name, err)
		}
		if err := spec.Type.Validate(ctx, env, converted); err != nil {
			return nil, fmt.Errorf("default for %s: %w", name, err)
		}
		def = converted
	}

	if spec.Identifier {
		if id := s.IdentifierAttribute(); id != nil {
			return nil, fmt.Errorf("%w: %s", types.ErrIdentifierExists, id.name)
		}
		if len(s.entries) > 1 {
			return nil, fmt.Errorf("%w: %d entries would share the default", types.ErrDuplicateIdentifier, len(s.entries))
		}
	}

	a := &Attribute{
		name:       name,
		dtype:      spec.Type,
		def:        def,
		identifier: spec.Identifier,
		meta:       spec.Meta,
		scheme:     s,
	}
	s.attributes = slices.Insert(s.attributes, index, a)
	for _, e := range s.entries {
		e.values[name] = datatype.CloneValue(def)
	}
	s.dirty = true
	return a, nil
}

// RemovedAttribute records a removed attribute so it can be restored.
type RemovedAttribute struct {
	Attribute *Attribute
	Index     int
	Values    map[*Entry]any
}

// RemoveAttribute deletes the attribute and its value from every entry.
func (s *Scheme) RemoveAttribute(name string) (RemovedAttribute, error) {
	i := s.attributeIndex(name)
	if i < 0 {
		return RemovedAttribute{}, fmt.Errorf("%w: %s.%s", types.ErrUnknownAttribute, s.name, name)
	}
	a := s.attributes[i]
	removed := RemovedAttribute{Attribute: a, Index: i, Values: make(map[*Entry]any, len(s.entries))}
	for _, e := range s.entries {
		removed.Values[e] = e.values[name]
		delete(e.values, name)
	}
	s.attributes = slices.Delete(s.attributes, i, i+1)
	a.scheme = nil
	s.dirty = true
	return removed, nil
}

// RestoreAttribute reinserts a removed attribute at its recorded index
// with its recorded values. Entries added since the removal get the
// default.
func (s *Scheme) RestoreAttribute(r RemovedAttribute) error {
	a := r.Attribute
	if a == nil {
		return types.ErrNilType
	}
	if s.attributeIndex(a.name) >= 0 {
		return fmt.Errorf("%w: %s.%s", types.ErrDuplicateName, s.name, a.name)
	}
	if a.identifier && s.IdentifierAttribute() != nil {
		return fmt.Errorf("%w: %s", types.ErrIdentifierExists, s.IdentifierAttribute().name)
	}
	index := min(max(r.Index, 0), len(s.attributes))
	s.attributes = slices.Insert(s.attributes, index, a)
	a.scheme = s
	for _, e := range s.entries {
		if v, ok := r.Values[e]; ok {
			e.values[a.name] = v
		} else {
			e.values[a.name] = datatype.CloneValue(a.def)
		}
	}
	s.dirty = true
	return nil
}

// SetIdentifier designates name as the identifier attribute, moving the
// designation off any previous identifier. It fails if the attribute's
// current values are not unique. Returns the previous identifier's name,
// or "" if there was none.
func (s *Scheme) SetIdentifier(name string) (string, error) {
	a, err := s.Attribute(name)
	if err != nil {
		return "", err
	}
	prev := s.IdentifierAttribute()
	if prev == a {
		return a.name, nil
	}
	if err := s.checkUnique(a, nil, nil); err != nil {
		return "", err
	}
	if prev != nil {
		prev.identifier = false
	}
	a.identifier = true
	s.dirty = true
	if prev == nil {
		return "", nil
	}
	return prev.name, nil
}

// ClearIdentifier removes the identifier designation and returns the name
// of the attribute that held it, or "".
func (s *Scheme) ClearIdentifier() string {
	prev := s.IdentifierAttribute()
	if prev == nil {
		return ""
	}
	prev.identifier = false
	s.dirty = true
	return prev.name
}

// SetMeta replaces an attribute's display metadata and returns the old
// metadata.
func (s *Scheme) SetMeta(name string, meta Meta) (Meta, error) {
	a, err := s.Attribute(name)
	if err != nil {
		return Meta{}, err
	}
	old := a.meta
	a.meta = meta
	s.dirty = true
	return old, nil
}
