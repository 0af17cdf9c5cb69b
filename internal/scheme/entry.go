package scheme

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Entry is one row: a map from attribute name to value. An entry belongs
// to at most one scheme at a time.
type Entry struct {
	values map[string]any
}

// NewEntry creates a detached entry holding copies of values.
func NewEntry(values map[string]any) *Entry {
	e := &Entry{values: make(map[string]any, len(values))}
	for k, v := range values {
		e.values[k] = datatype.CloneValue(v)
	}
	return e
}

// Get returns the value for attribute and whether it is present.
func (e *Entry) Get(attribute string) (any, bool) {
	v, ok := e.values[attribute]
	return v, ok
}

// Value returns the value for attribute, or nil.
func (e *Entry) Value(attribute string) any { return e.values[attribute] }

// Values returns a shallow copy of the entry's values.
func (e *Entry) Values() map[string]any { return maps.Clone(e.values) }

// AddEntry appends e. See InsertEntry.
func (s *Scheme) AddEntry(ctx context.Context, env datatype.Env, e *Entry, validate bool) error {
	return s.InsertEntry(ctx, env, len(s.entries), e, validate)
}

// InsertEntry places e at index. Keys naming unknown attributes are
// rejected. With validate set, each supplied value is converted and
// validated against its attribute type. Missing attributes are
// back-filled with defaults. Identifier uniqueness is always enforced.
// On any failure e and the scheme are left unchanged.
func (s *Scheme) InsertEntry(ctx context.Context, env datatype.Env, index int, e *Entry, validate bool) error {
	if e == nil {
		return types.ErrEntryNotFound
	}
	if s.IndexOf(e) >= 0 {
		return types.ErrEntryExists
	}
	if index < 0 || index > len(s.entries) {
		return fmt.Errorf("%w: entry %d of %d", types.ErrIndexOutOfRange, index, len(s.entries))
	}
	for k := range e.values {
		if s.attributeIndex(k) < 0 {
			return fmt.Errorf("%w: %s.%s", types.ErrUnknownAttribute, s.name, k)
		}
	}

	staged := make(map[string]any, len(s.attributes))
	for _, a := range s.attributes {
		v, ok := e.values[a.name]
		if !ok {
			staged[a.name] = datatype.CloneValue(a.def)
			continue
		}
		if validate {
			converted, err := a.dtype.Convert(ctx, env, v)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", s.name, a.name, err)
			}
			if err := a.dtype.Validate(ctx, env, converted); err != nil {
				return fmt.Errorf("%s.%s: %w", s.name, a.name, err)
			}
			v = converted
		}
		staged[a.name] = v
	}
	if id := s.IdentifierAttribute(); id != nil {
		if err := s.checkUnique(id, e, staged[id.name]); err != nil {
			return err
		}
	}

	e.values = staged
	s.entries = slices.Insert(s.entries, index, e)
	s.dirty = true
	return nil
}

// DeleteEntry removes e and returns the index it held.
func (s *Scheme) DeleteEntry(e *Entry) (int, error) {
	i := s.IndexOf(e)
	if i < 0 {
		return -1, types.ErrEntryNotFound
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	s.dirty = true
	return i, nil
}

// DeleteEntryAt removes and returns the entry at index i.
func (s *Scheme) DeleteEntryAt(i int) (*Entry, error) {
	e, err := s.EntryAt(i)
	if err != nil {
		return nil, err
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	s.dirty = true
	return e, nil
}

// SetValue converts and validates value, then stores it on e. Writing the
// identifier attribute requires privileged; ordinary edits go through
// identifier updates so references can follow. Returns the previous
// value.
func (s *Scheme) SetValue(ctx context.Context, env datatype.Env, e *Entry, attribute string, value any, privileged bool) (any, error) {
	if s.IndexOf(e) < 0 {
		return nil, types.ErrEntryNotFound
	}
	a, err := s.Attribute(attribute)
	if err != nil {
		return nil, err
	}
	if a.identifier && !privileged {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrIdentifierWrite, s.name, a.name)
	}
	converted, err := a.dtype.Convert(ctx, env, value)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", s.name, a.name, err)
	}
	if err := a.dtype.Validate(ctx, env, converted); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", s.name, a.name, err)
	}
	if a.identifier {
		if err := s.checkUnique(a, e, converted); err != nil {
			return nil, err
		}
	}
	old := e.values[a.name]
	e.values[a.name] = converted
	s.dirty = true
	return old, nil
}

// RestoreValue stores v on e without conversion or validation. Undo uses
// it to put back a value that was valid when it was replaced.
func (s *Scheme) RestoreValue(e *Entry, attribute string, v any) error {
	if s.IndexOf(e) < 0 {
		return types.ErrEntryNotFound
	}
	if s.attributeIndex(attribute) < 0 {
		return fmt.Errorf("%w: %s.%s", types.ErrUnknownAttribute, s.name, attribute)
	}
	e.values[attribute] = v
	s.dirty = true
	return nil
}
