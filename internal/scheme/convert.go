package scheme

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// TypeConversion snapshots an attribute's type change so it can be
// reverted and reapplied without converting again.
type TypeConversion struct {
	Attribute  *Attribute
	OldType    *datatype.DataType
	NewType    *datatype.DataType
	OldDefault any
	NewDefault any
	Old        map[*Entry]any
	New        map[*Entry]any
}

// ConvertAttributeType changes an attribute's type, converting every
// stored value with datatype.ConvertBetween. The conversion is all or
// nothing: if any value fails to convert the scheme is left untouched.
// The default is converted too, falling back to the new type's default.
// Converting to an equal type is a no-op that still returns a snapshot.
func (s *Scheme) ConvertAttributeType(ctx context.Context, env datatype.Env, name string, newType *datatype.DataType) (TypeConversion, error) {
	if newType == nil {
		return TypeConversion{}, types.ErrNilType
	}
	a, err := s.Attribute(name)
	if err != nil {
		return TypeConversion{}, err
	}
	tc := TypeConversion{
		Attribute:  a,
		OldType:    a.dtype,
		NewType:    newType,
		OldDefault: a.def,
		NewDefault: a.def,
		Old:        make(map[*Entry]any, len(s.entries)),
		New:        make(map[*Entry]any, len(s.entries)),
	}
	if a.dtype.Equal(newType) {
		for _, e := range s.entries {
			tc.Old[e] = e.values[name]
			tc.New[e] = e.values[name]
		}
		return tc, nil
	}

	for i, e := range s.entries {
		old := e.values[name]
		converted, err := datatype.ConvertBetween(ctx, env, a.dtype, newType, old)
		if err != nil {
			return TypeConversion{}, fmt.Errorf("%s.%s entry %d: %w", s.name, name, i, err)
		}
		tc.Old[e] = old
		tc.New[e] = converted
	}
	if def, err := datatype.ConvertBetween(ctx, env, a.dtype, newType, a.def); err == nil {
		tc.NewDefault = def
	} else {
		tc.NewDefault = newType.CloneDefault()
	}

	if a.identifier {
		seen := make([]any, 0, len(s.entries))
		for _, e := range s.entries {
			v := tc.New[e]
			for _, prev := range seen {
				if datatype.ValuesEqual(prev, v) {
					return TypeConversion{}, fmt.Errorf("%w: %s.%s = %v", types.ErrDuplicateIdentifier, s.name, name, v)
				}
			}
			seen = append(seen, v)
		}
	}

	s.applyConversion(tc, tc.NewType, tc.NewDefault, tc.New)
	return tc, nil
}

// RevertTypeConversion puts back the type, default and values recorded
// before the conversion.
func (s *Scheme) RevertTypeConversion(tc TypeConversion) error {
	if tc.Attribute == nil || tc.Attribute.scheme != s {
		return types.ErrUnknownAttribute
	}
	s.applyConversion(tc, tc.OldType, tc.OldDefault, tc.Old)
	return nil
}

// ReapplyTypeConversion redoes a reverted conversion from its snapshot.
func (s *Scheme) ReapplyTypeConversion(tc TypeConversion) error {
	if tc.Attribute == nil || tc.Attribute.scheme != s {
		return types.ErrUnknownAttribute
	}
	s.applyConversion(tc, tc.NewType, tc.NewDefault, tc.New)
	return nil
}

func (s *Scheme) applyConversion(tc TypeConversion, t *datatype.DataType, def any, values map[*Entry]any) {
	a := tc.Attribute
	a.dtype = t
	a.def = def
	for _, e := range s.entries {
		if v, ok := values[e]; ok {
			e.values[a.name] = v
		}
	}
	s.dirty = true
}

// ResolveReferences converts every Reference value, including those held
// in lists, to the canonical type of its target. Storage loads schemes
// independently, so reference values arrive in whatever form the decoder
// produced until every target is loaded. Values that fail to convert are
// left in place and reported. The dirty flag is not changed.
func (s *Scheme) ResolveReferences(ctx context.Context, env datatype.Env) []error {
	var errs []error
	for _, a := range s.attributes {
		if !holdsReference(a.dtype) {
			continue
		}
		for i, e := range s.entries {
			v, err := a.dtype.Convert(ctx, env, e.values[a.name])
			if err != nil {
				errs = append(errs, fmt.Errorf("%s entry %d: %s: %w", s.name, i, a.name, err))
				continue
			}
			e.values[a.name] = v
		}
	}
	return errs
}

func holdsReference(t *datatype.DataType) bool {
	_, ok := t.Referent()
	return ok
}
