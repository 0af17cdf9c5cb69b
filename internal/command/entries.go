package command

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/scheme"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

func mustScheme(s *scheme.Scheme) {
	if s == nil {
		panic("command: nil scheme")
	}
}

func mustEntry(e *scheme.Entry) {
	if e == nil {
		panic("command: nil entry")
	}
}

func subject(s *scheme.Scheme) string { return "scheme " + s.Name() }

// AddEntry appends a new entry built from values. Values are converted
// and validated; missing attributes take their defaults.
func AddEntry(c Context, s *scheme.Scheme, values map[string]any) *Op[*scheme.Entry] {
	mustScheme(s)
	return newOp(c, "add entry", subject(s), true, func(ctx context.Context) (*scheme.Entry, memento, error) {
		e := scheme.NewEntry(values)
		if err := s.AddEntry(ctx, c.Env, e, true); err != nil {
			return nil, nil, err
		}
		return e, &entryAdded{s: s, e: e, index: s.IndexOf(e)}, nil
	})
}

// DeleteEntry removes e. Undo puts it back at the same index.
func DeleteEntry(c Context, s *scheme.Scheme, e *scheme.Entry) *Op[int] {
	mustScheme(s)
	mustEntry(e)
	return newOp(c, "delete entry", subject(s), true, func(context.Context) (int, memento, error) {
		i, err := s.DeleteEntry(e)
		if err != nil {
			return -1, nil, err
		}
		return i, &entryDeleted{s: s, e: e, index: i}, nil
	})
}

// SetValue writes a non-identifier attribute. Identifier values change
// through UpdateIdentifier so references follow.
func SetValue(c Context, s *scheme.Scheme, e *scheme.Entry, attribute string, value any) *Op[any] {
	mustScheme(s)
	mustEntry(e)
	return newOp(c, "set value", fmt.Sprintf("%s.%s", s.Name(), attribute), true, func(ctx context.Context) (any, memento, error) {
		a, err := s.Attribute(attribute)
		if err != nil {
			return nil, nil, err
		}
		old, err := s.SetValue(ctx, c.Env, e, attribute, value, false)
		if err != nil {
			return nil, nil, err
		}
		v := e.Value(attribute)
		return v, &valueSet{s: s, e: e, attr: a, old: old, new: v}, nil
	})
}

// UpdateIdentifier changes an identifier value and rewrites every
// reference to it. The result is the number of references rewritten.
// If the identifier changes but some references cannot follow, the
// command still records its memento so it can be undone.
func UpdateIdentifier(c Context, s *scheme.Scheme, oldValue, newValue any) *Op[int] {
	mustScheme(s)
	return newOp(c, "update identifier", subject(s), true, func(ctx context.Context) (int, memento, error) {
		a := s.IdentifierAttribute()
		if a == nil {
			return 0, nil, fmt.Errorf("%w: %s has no identifier attribute", types.ErrNotIdentifier, s.Name())
		}
		before := identifierSnapshot(s, a)
		n, err := c.Registry.UpdateIdentifierValue(ctx, c.Env, s.Name(), a.Name(), oldValue, newValue)
		old, current, changed := identifierChange(s, a, before)
		if !changed {
			return 0, nil, err
		}
		return n, &identifierUpdated{s: s, attr: a, old: old, new: current}, err
	})
}

// identifierSnapshot records each entry's identifier value so the change
// an update made can be recovered in canonical form.
func identifierSnapshot(s *scheme.Scheme, a *scheme.Attribute) map[*scheme.Entry]any {
	out := make(map[*scheme.Entry]any, s.Len())
	for _, e := range s.Entries() {
		out[e] = e.Value(a.Name())
	}
	return out
}

func identifierChange(s *scheme.Scheme, a *scheme.Attribute, before map[*scheme.Entry]any) (old, current any, changed bool) {
	for _, e := range s.Entries() {
		prev, ok := before[e]
		if !ok {
			continue
		}
		if v := e.Value(a.Name()); !datatype.ValuesEqual(prev, v) {
			return prev, v, true
		}
	}
	return nil, nil, false
}

// SwapEntries exchanges the entries at i and j.
func SwapEntries(c Context, s *scheme.Scheme, i, j int) *Op[struct{}] {
	mustScheme(s)
	return newOp(c, "swap entries", subject(s), true, func(context.Context) (struct{}, memento, error) {
		if err := s.SwapEntries(i, j); err != nil {
			return struct{}{}, nil, err
		}
		return struct{}{}, &entriesSwapped{s: s, i: i, j: j}, nil
	})
}

// MoveEntry moves e to index target. The result is the index it left.
func MoveEntry(c Context, s *scheme.Scheme, e *scheme.Entry, target int) *Op[int] {
	mustScheme(s)
	mustEntry(e)
	return newOp(c, "move entry", subject(s), true, func(context.Context) (int, memento, error) {
		from, err := s.MoveEntry(e, target)
		if err != nil {
			return -1, nil, err
		}
		return from, &entryMoved{s: s, e: e, from: from, to: target}, nil
	})
}
