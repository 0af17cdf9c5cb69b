// Package scheme implements the typed table model: a Scheme owns an
// ordered list of Attributes (columns) and an ordered list of Entries
// (rows). Every mutation keeps the invariants the rest of the engine
// relies on: at most one identifier attribute, unique identifier values,
// and every entry holding a value for every attribute.
//
// Scheme methods are not synchronized. Callers outside this module route
// mutations through internal/command so they are serialized by History.
package scheme

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Scheme is a named table of typed attributes and entries.
type Scheme struct {
	name       string
	attributes []*Attribute
	entries    []*Entry
	dirty      bool
}

// Catalog enumerates the loaded schemes a cross-scheme cascade must visit.
type Catalog interface {
	Schemes() []*Scheme
}

// New creates an empty scheme. Returns ErrInvalidName if name is blank.
func New(name string) (*Scheme, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.ErrInvalidName
	}
	return &Scheme{name: name}, nil
}

// Name returns the scheme's registry key.
func (s *Scheme) Name() string { return s.name }

// IsDirty reports whether the scheme has unsaved changes.
func (s *Scheme) IsDirty() bool { return s.dirty }

// MarkDirty flags the scheme as having unsaved changes.
func (s *Scheme) MarkDirty() { s.dirty = true }

// MarkClean clears the dirty flag after a save.
func (s *Scheme) MarkClean() { s.dirty = false }

// Attributes returns the attributes in display order.
func (s *Scheme) Attributes() []*Attribute { return slices.Clone(s.attributes) }

// Attribute returns the attribute called name.
func (s *Scheme) Attribute(name string) (*Attribute, error) {
	if i := s.attributeIndex(name); i >= 0 {
		return s.attributes[i], nil
	}
	return nil, fmt.Errorf("%w: %s.%s", types.ErrUnknownAttribute, s.name, name)
}

// AttributeIndex returns the position of the attribute called name, or -1.
func (s *Scheme) AttributeIndex(name string) int { return s.attributeIndex(name) }

func (s *Scheme) attributeIndex(name string) int {
	return slices.IndexFunc(s.attributes, func(a *Attribute) bool { return a.name == name })
}

// IdentifierAttribute returns the identifier attribute, or nil.
func (s *Scheme) IdentifierAttribute() *Attribute {
	for _, a := range s.attributes {
		if a.identifier {
			return a
		}
	}
	return nil
}

// Entries returns the entries in insertion order.
func (s *Scheme) Entries() []*Entry { return slices.Clone(s.entries) }

// Len returns the number of entries.
func (s *Scheme) Len() int { return len(s.entries) }

// EntryAt returns the entry at index i.
func (s *Scheme) EntryAt(i int) (*Entry, error) {
	if i < 0 || i >= len(s.entries) {
		return nil, fmt.Errorf("%w: entry %d of %d", types.ErrIndexOutOfRange, i, len(s.entries))
	}
	return s.entries[i], nil
}

// IndexOf returns the position of e, or -1 if e is not in the scheme.
func (s *Scheme) IndexOf(e *Entry) int { return slices.Index(s.entries, e) }

// FindEntry returns the first entry whose attribute holds value.
func (s *Scheme) FindEntry(attribute string, value any) (*Entry, error) {
	if s.attributeIndex(attribute) < 0 {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrUnknownAttribute, s.name, attribute)
	}
	for _, e := range s.entries {
		if datatype.ValuesEqual(e.values[attribute], value) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s = %v", types.ErrEntryNotFound, s.name, attribute, value)
}

// IdentifierValues returns every entry's value for the identifier
// attribute called attribute, with that attribute's type. It fails with
// ErrNotIdentifier when attribute exists but is not the identifier.
func (s *Scheme) IdentifierValues(attribute string) ([]any, *datatype.DataType, error) {
	a, err := s.Attribute(attribute)
	if err != nil {
		return nil, nil, err
	}
	if !a.identifier {
		return nil, nil, fmt.Errorf("%w: %s.%s", types.ErrNotIdentifier, s.name, attribute)
	}
	values := make([]any, len(s.entries))
	for i, e := range s.entries {
		values[i] = e.values[attribute]
	}
	return values, a.dtype, nil
}

// Validate re-checks every stored value against its attribute type and
// returns one error per failing value. It never mutates the scheme.
func (s *Scheme) Validate(ctx context.Context, env datatype.Env) []error {
	var errs []error
	for i, e := range s.entries {
		for _, a := range s.attributes {
			if err := ctx.Err(); err != nil {
				return append(errs, err)
			}
			v, ok := e.values[a.name]
			if !ok {
				errs = append(errs, fmt.Errorf("%s entry %d: missing %s", s.name, i, a.name))
				continue
			}
			if err := a.dtype.Validate(ctx, env, v); err != nil {
				errs = append(errs, fmt.Errorf("%s entry %d: %s: %w", s.name, i, a.name, err))
			}
		}
	}
	if err := s.checkUnique(s.IdentifierAttribute(), nil, nil); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// checkUnique reports ErrDuplicateIdentifier if, with candidate holding
// value, two entries would share an identifier value. A nil candidate
// checks the entries as stored.
func (s *Scheme) checkUnique(id *Attribute, candidate *Entry, value any) error {
	if id == nil {
		return nil
	}
	seen := make([]any, 0, len(s.entries)+1)
	if candidate != nil {
		seen = append(seen, value)
	}
	for _, e := range s.entries {
		if e == candidate {
			continue
		}
		v := e.values[id.name]
		for _, prev := range seen {
			if datatype.ValuesEqual(prev, v) {
				return fmt.Errorf("%w: %s.%s = %v", types.ErrDuplicateIdentifier, s.name, id.name, v)
			}
		}
		seen = append(seen, v)
	}
	return nil
}
