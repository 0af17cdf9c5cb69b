package command

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/tabula/internal/scheme"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// memento records what a command changed. The set of implementations is
// closed; undo and redo switch over all of them.
type memento interface{ isMemento() }

type (
	entryAdded struct {
		s     *scheme.Scheme
		e     *scheme.Entry
		index int
	}
	entryDeleted struct {
		s     *scheme.Scheme
		e     *scheme.Entry
		index int
	}
	valueSet struct {
		s        *scheme.Scheme
		e        *scheme.Entry
		attr     *scheme.Attribute
		old, new any
	}
	identifierUpdated struct {
		s        *scheme.Scheme
		attr     *scheme.Attribute
		old, new any
	}
	attributeAdded struct {
		s       *scheme.Scheme
		attr    *scheme.Attribute
		removed scheme.RemovedAttribute
	}
	attributeRemoved struct {
		s       *scheme.Scheme
		removed scheme.RemovedAttribute
	}
	attributeRenamed struct {
		s *scheme.Scheme
		r scheme.Rename
	}
	typeConverted struct {
		s  *scheme.Scheme
		tc scheme.TypeConversion
	}
	identifierChanged struct {
		s                 *scheme.Scheme
		previous, current string
	}
	entriesSwapped struct {
		s    *scheme.Scheme
		i, j int
	}
	entryMoved struct {
		s        *scheme.Scheme
		e        *scheme.Entry
		from, to int
	}
	attributesSwapped struct {
		s    *scheme.Scheme
		i, j int
	}
	attributeMoved struct {
		s        *scheme.Scheme
		attr     *scheme.Attribute
		from, to int
	}
	schemeCreated struct {
		s        *scheme.Scheme
		location string
	}
	schemeDeleted struct {
		s        *scheme.Scheme
		location string
	}
	entriesImported struct {
		s       *scheme.Scheme
		attrs   []*scheme.Attribute
		removed []scheme.RemovedAttribute
		entries []*scheme.Entry
		indexes []int
	}
)

func (*entryAdded) isMemento()        {}
func (*entryDeleted) isMemento()      {}
func (*valueSet) isMemento()          {}
func (*identifierUpdated) isMemento() {}
func (*attributeAdded) isMemento()    {}
func (*attributeRemoved) isMemento()  {}
func (*attributeRenamed) isMemento()  {}
func (*typeConverted) isMemento()     {}
func (*identifierChanged) isMemento() {}
func (*entriesSwapped) isMemento()    {}
func (*entryMoved) isMemento()        {}
func (*attributesSwapped) isMemento() {}
func (*attributeMoved) isMemento()    {}
func (*schemeCreated) isMemento()     {}
func (*schemeDeleted) isMemento()     {}
func (*entriesImported) isMemento()   {}

func undo(ctx context.Context, c Context, m memento) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch m := m.(type) {
	case *entryAdded:
		_, err := m.s.DeleteEntry(m.e)
		return err
	case *entryDeleted:
		return m.s.InsertEntry(ctx, c.Env, m.index, m.e, false)
	case *valueSet:
		return m.s.RestoreValue(m.e, m.attr.Name(), m.old)
	case *identifierUpdated:
		_, err := c.Registry.UpdateIdentifierValue(ctx, c.Env, m.s.Name(), m.attr.Name(), m.new, m.old)
		return err
	case *attributeAdded:
		removed, err := m.s.RemoveAttribute(m.attr.Name())
		if err != nil {
			return err
		}
		m.removed = removed
		return nil
	case *attributeRemoved:
		return m.s.RestoreAttribute(m.removed)
	case *attributeRenamed:
		return m.s.RevertRename(m.r)
	case *typeConverted:
		return m.s.RevertTypeConversion(m.tc)
	case *identifierChanged:
		return restoreIdentifier(m.s, m.previous)
	case *entriesSwapped:
		return m.s.SwapEntries(m.i, m.j)
	case *entryMoved:
		_, err := m.s.MoveEntry(m.e, m.from)
		return err
	case *attributesSwapped:
		return m.s.SwapAttributes(m.i, m.j)
	case *attributeMoved:
		_, err := m.s.MoveAttribute(m.attr.Name(), m.from)
		return err
	case *schemeCreated:
		_, _, err := c.Registry.UnloadScheme(m.s.Name())
		return err
	case *schemeDeleted:
		return c.Registry.LoadScheme(ctx, m.s, m.location, false)
	case *entriesImported:
		return m.undo()
	case nil:
		return types.ErrNotUndoable
	default:
		return fmt.Errorf("undo: unhandled memento %T", m)
	}
}

func redo(ctx context.Context, c Context, m memento) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch m := m.(type) {
	case *entryAdded:
		return m.s.InsertEntry(ctx, c.Env, m.index, m.e, false)
	case *entryDeleted:
		_, err := m.s.DeleteEntry(m.e)
		return err
	case *valueSet:
		return m.s.RestoreValue(m.e, m.attr.Name(), m.new)
	case *identifierUpdated:
		_, err := c.Registry.UpdateIdentifierValue(ctx, c.Env, m.s.Name(), m.attr.Name(), m.old, m.new)
		return err
	case *attributeAdded:
		return m.s.RestoreAttribute(m.removed)
	case *attributeRemoved:
		removed, err := m.s.RemoveAttribute(m.removed.Attribute.Name())
		if err != nil {
			return err
		}
		m.removed = removed
		return nil
	case *attributeRenamed:
		return m.s.ReapplyRename(m.r)
	case *typeConverted:
		return m.s.ReapplyTypeConversion(m.tc)
	case *identifierChanged:
		return restoreIdentifier(m.s, m.current)
	case *entriesSwapped:
		return m.s.SwapEntries(m.i, m.j)
	case *entryMoved:
		_, err := m.s.MoveEntry(m.e, m.to)
		return err
	case *attributesSwapped:
		return m.s.SwapAttributes(m.i, m.j)
	case *attributeMoved:
		_, err := m.s.MoveAttribute(m.attr.Name(), m.to)
		return err
	case *schemeCreated:
		return c.Registry.LoadScheme(ctx, m.s, m.location, false)
	case *schemeDeleted:
		_, _, err := c.Registry.UnloadScheme(m.s.Name())
		return err
	case *entriesImported:
		return m.redo(ctx, c)
	case nil:
		return types.ErrNotUndoable
	default:
		return fmt.Errorf("redo: unhandled memento %T", m)
	}
}

// restoreIdentifier designates name as the identifier, or clears the
// designation when name is empty.
func restoreIdentifier(s *scheme.Scheme, name string) error {
	if name == "" {
		s.ClearIdentifier()
		return nil
	}
	_, err := s.SetIdentifier(name)
	return err
}

// undo removes imported entries, then the attributes the import added,
// both in reverse order.
func (m *entriesImported) undo() error {
	var errs []error
	for _, e := range slices.Backward(m.entries) {
		if _, err := m.s.DeleteEntry(e); err != nil {
			errs = append(errs, err)
		}
	}
	m.removed = m.removed[:0]
	for _, a := range slices.Backward(m.attrs) {
		removed, err := m.s.RemoveAttribute(a.Name())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.removed = append(m.removed, removed)
	}
	return errors.Join(errs...)
}

func (m *entriesImported) redo(ctx context.Context, c Context) error {
	for _, r := range slices.Backward(m.removed) {
		if err := m.s.RestoreAttribute(r); err != nil {
			return err
		}
	}
	for i, e := range m.entries {
		if err := m.s.InsertEntry(ctx, c.Env, m.indexes[i], e, false); err != nil {
			return err
		}
	}
	return nil
}
