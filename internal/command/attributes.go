package command

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/scheme"
)

func attrSubject(s *scheme.Scheme, name string) string {
	return fmt.Sprintf("%s.%s", s.Name(), name)
}

// AddAttribute appends an attribute and back-fills its default.
func AddAttribute(c Context, s *scheme.Scheme, spec scheme.AttributeSpec) *Op[*scheme.Attribute] {
	mustScheme(s)
	return newOp(c, "add attribute", attrSubject(s, spec.Name), true, func(ctx context.Context) (*scheme.Attribute, memento, error) {
		a, err := s.AddAttribute(ctx, c.Env, spec)
		if err != nil {
			return nil, nil, err
		}
		return a, &attributeAdded{s: s, attr: a}, nil
	})
}

// RemoveAttribute deletes an attribute and its values. Undo restores
// both at the original position.
func RemoveAttribute(c Context, s *scheme.Scheme, name string) *Op[*scheme.Attribute] {
	mustScheme(s)
	return newOp(c, "remove attribute", attrSubject(s, name), true, func(context.Context) (*scheme.Attribute, memento, error) {
		removed, err := s.RemoveAttribute(name)
		if err != nil {
			return nil, nil, err
		}
		return removed.Attribute, &attributeRemoved{s: s, removed: removed}, nil
	})
}

// RenameAttribute renames an attribute and cascades the rename to every
// Reference in the registry that targets it.
func RenameAttribute(c Context, s *scheme.Scheme, oldName, newName string) *Op[*scheme.Attribute] {
	mustScheme(s)
	return newOp(c, "rename attribute", attrSubject(s, oldName), true, func(context.Context) (*scheme.Attribute, memento, error) {
		r, err := s.RenameAttribute(c.Registry, oldName, newName)
		if err != nil {
			return nil, nil, err
		}
		a, err := s.Attribute(r.New)
		if err != nil {
			return nil, nil, err
		}
		return a, &attributeRenamed{s: s, r: r}, nil
	})
}

// ConvertAttributeType changes an attribute's type, converting every
// stored value or none.
func ConvertAttributeType(c Context, s *scheme.Scheme, name string, t *datatype.DataType) *Op[*scheme.Attribute] {
	mustScheme(s)
	return newOp(c, "convert attribute", attrSubject(s, name), true, func(ctx context.Context) (*scheme.Attribute, memento, error) {
		tc, err := s.ConvertAttributeType(ctx, c.Env, name, t)
		if err != nil {
			return nil, nil, err
		}
		return tc.Attribute, &typeConverted{s: s, tc: tc}, nil
	})
}

// SetIdentifier designates name as the identifier attribute. An empty
// name clears the designation. The result is the previous identifier's
// name.
func SetIdentifier(c Context, s *scheme.Scheme, name string) *Op[string] {
	mustScheme(s)
	return newOp(c, "set identifier", attrSubject(s, name), true, func(context.Context) (string, memento, error) {
		if name == "" {
			prev := s.ClearIdentifier()
			return prev, &identifierChanged{s: s, previous: prev}, nil
		}
		prev, err := s.SetIdentifier(name)
		if err != nil {
			return "", nil, err
		}
		return prev, &identifierChanged{s: s, previous: prev, current: name}, nil
	})
}

// SwapAttributes exchanges the attributes at i and j.
func SwapAttributes(c Context, s *scheme.Scheme, i, j int) *Op[struct{}] {
	mustScheme(s)
	return newOp(c, "swap attributes", subject(s), true, func(context.Context) (struct{}, memento, error) {
		if err := s.SwapAttributes(i, j); err != nil {
			return struct{}{}, nil, err
		}
		return struct{}{}, &attributesSwapped{s: s, i: i, j: j}, nil
	})
}

// MoveAttribute moves the named attribute to index target. The result
// is the index it left.
func MoveAttribute(c Context, s *scheme.Scheme, name string, target int) *Op[int] {
	mustScheme(s)
	return newOp(c, "move attribute", attrSubject(s, name), true, func(context.Context) (int, memento, error) {
		a, err := s.Attribute(name)
		if err != nil {
			return -1, nil, err
		}
		from, err := s.MoveAttribute(name, target)
		if err != nil {
			return -1, nil, err
		}
		return from, &attributeMoved{s: s, attr: a, from: from, to: target}, nil
	})
}
