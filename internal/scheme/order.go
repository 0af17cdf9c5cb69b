package scheme

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// SortOrder selects the attribute GetEntries sorts by. An empty Attribute
// means insertion order.
type SortOrder struct {
	Attribute  string
	Descending bool
}

// GetEntries returns the entries in the requested order. Sorting is
// stable, so entries with equal values keep their insertion order.
func (s *Scheme) GetEntries(order SortOrder) ([]*Entry, error) {
	out := slices.Clone(s.entries)
	if order.Attribute == "" {
		return out, nil
	}
	if s.attributeIndex(order.Attribute) < 0 {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrUnknownAttribute, s.name, order.Attribute)
	}
	slices.SortStableFunc(out, func(a, b *Entry) int {
		c := datatype.Compare(a.values[order.Attribute], b.values[order.Attribute])
		if order.Descending {
			return -c
		}
		return c
	})
	return out, nil
}

func checkIndex(what string, i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %s %d of %d", types.ErrIndexOutOfRange, what, i, n)
	}
	return nil
}

// SwapEntries exchanges the entries at i and j.
func (s *Scheme) SwapEntries(i, j int) error {
	if err := checkIndex("entry", i, len(s.entries)); err != nil {
		return err
	}
	if err := checkIndex("entry", j, len(s.entries)); err != nil {
		return err
	}
	s.entries[i], s.entries[j] = s.entries[j], s.entries[i]
	s.dirty = true
	return nil
}

// SwapAttributes exchanges the attributes at i and j.
func (s *Scheme) SwapAttributes(i, j int) error {
	if err := checkIndex("attribute", i, len(s.attributes)); err != nil {
		return err
	}
	if err := checkIndex("attribute", j, len(s.attributes)); err != nil {
		return err
	}
	s.attributes[i], s.attributes[j] = s.attributes[j], s.attributes[i]
	s.dirty = true
	return nil
}

// MoveEntry removes e and reinserts it at target, shifting the entries in
// between. Returns the index e came from.
func (s *Scheme) MoveEntry(e *Entry, target int) (int, error) {
	from := s.IndexOf(e)
	if from < 0 {
		return -1, types.ErrEntryNotFound
	}
	if err := checkIndex("entry", target, len(s.entries)); err != nil {
		return -1, err
	}
	s.entries = move(s.entries, from, target)
	s.dirty = true
	return from, nil
}

// MoveAttribute removes the named attribute and reinserts it at target.
// Returns the index it came from.
func (s *Scheme) MoveAttribute(name string, target int) (int, error) {
	from := s.attributeIndex(name)
	if from < 0 {
		return -1, fmt.Errorf("%w: %s.%s", types.ErrUnknownAttribute, s.name, name)
	}
	if err := checkIndex("attribute", target, len(s.attributes)); err != nil {
		return -1, err
	}
	s.attributes = move(s.attributes, from, target)
	s.dirty = true
	return from, nil
}

func move[T any](items []T, from, to int) []T {
	if from == to {
		return items
	}
	item := items[from]
	items = slices.Delete(items, from, from+1)
	return slices.Insert(items, to, item)
}
