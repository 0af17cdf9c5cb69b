package scheme

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Rename records an attribute rename and everything the cascade touched.
type Rename struct {
	Scheme     *Scheme
	Old        string
	New        string
	Retargeted []Retarget
}

// Retarget is one Reference attribute repointed by a rename. Renamed is
// set when the attribute mirrored the target's name and was renamed too.
type Retarget struct {
	Attribute *Attribute
	OldType   *datatype.DataType
	Renamed   bool
}

// RenameAttribute renames attribute oldName to newName, migrating every entry's
// key. Reference attributes anywhere in others (and in s itself) that
// target (s, oldName) are repointed at (s, newName); those that carry
// the name oldName are renamed along with their target. Stored values never change.
// Collisions are checked in every touched scheme before anything moves.
func (s *Scheme) RenameAttribute(others Catalog, oldName, newName string) (Rename, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return Rename{}, types.ErrInvalidName
	}
	if oldName == newName {
		return Rename{}, fmt.Errorf("%w: %s is already named %s", types.ErrInvalidName, oldName, newName)
	}
	a, err := s.Attribute(oldName)
	if err != nil {
		return Rename{}, err
	}
	if s.attributeIndex(newName) >= 0 {
		return Rename{}, fmt.Errorf("%w: %s.%s", types.ErrDuplicateName, s.name, newName)
	}

	var retargets []Retarget
	visit := func(o *Scheme) error {
		for _, ra := range o.attributes {
			if ra == a || !targets(ra.dtype, s.name, oldName) {
				continue
			}
			mirror := o != s && ra.name == oldName
			if mirror && o.attributeIndex(newName) >= 0 {
				return fmt.Errorf("%w: %s.%s", types.ErrDuplicateName, o.name, newName)
			}
			retargets = append(retargets, Retarget{Attribute: ra, OldType: ra.dtype, Renamed: mirror})
		}
		return nil
	}
	if err := visit(s); err != nil {
		return Rename{}, err
	}
	if others != nil {
		for _, o := range others.Schemes() {
			if o == nil || o == s {
				continue
			}
			if err := visit(o); err != nil {
				return Rename{}, err
			}
		}
	}

	r := Rename{Scheme: s, Old: oldName, New: newName, Retargeted: retargets}
	s.applyRename(r, oldName, newName)
	return r, nil
}

// RevertRename undoes a rename recorded by RenameAttribute.
func (s *Scheme) RevertRename(r Rename) error {
	if r.Scheme != s || s.attributeIndex(r.New) < 0 {
		return fmt.Errorf("%w: %s.%s", types.ErrUnknownAttribute, s.name, r.New)
	}
	if s.attributeIndex(r.Old) >= 0 {
		return fmt.Errorf("%w: %s.%s", types.ErrDuplicateName, s.name, r.Old)
	}
	s.applyRename(r, r.New, r.Old)
	return nil
}

// ReapplyRename redoes a reverted rename.
func (s *Scheme) ReapplyRename(r Rename) error {
	if r.Scheme != s || s.attributeIndex(r.Old) < 0 {
		return fmt.Errorf("%w: %s.%s", types.ErrUnknownAttribute, s.name, r.Old)
	}
	if s.attributeIndex(r.New) >= 0 {
		return fmt.Errorf("%w: %s.%s", types.ErrDuplicateName, s.name, r.New)
	}
	s.applyRename(r, r.Old, r.New)
	return nil
}

func (s *Scheme) applyRename(r Rename, from, to string) {
	forward := from == r.Old
	s.renameKey(s.attributes[s.attributeIndex(from)], to)
	for _, rt := range r.Retargeted {
		owner := rt.Attribute.scheme
		if forward {
			rt.Attribute.dtype = rt.OldType.WithTarget(s.name, to)
		} else {
			rt.Attribute.dtype = rt.OldType
		}
		if rt.Renamed && owner != nil {
			owner.renameKey(rt.Attribute, to)
		}
		if owner != nil {
			owner.dirty = true
		}
	}
}

func (s *Scheme) renameKey(a *Attribute, to string) {
	from := a.name
	for _, e := range s.entries {
		if v, ok := e.values[from]; ok {
			delete(e.values, from)
			e.values[to] = v
		}
	}
	a.name = to
	s.dirty = true
}

// targets reports whether t, or the element type of a List t, is a
// Reference to scheme.attribute.
func targets(t *datatype.DataType, scheme, attribute string) bool {
	ref, ok := t.Referent()
	return ok && ref.Scheme == scheme && ref.Attribute == attribute
}
