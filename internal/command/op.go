package command

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// applyFunc performs a command's effect and returns its value and the
// memento needed to reverse it. A non-nil memento returned with an error
// means the effect was partly applied and must still be undoable.
type applyFunc[T any] func(ctx context.Context) (T, memento, error)

// Op is the single Command implementation. Each constructor supplies the
// apply function; undo and redo are driven by the memento it returns.
type Op[T any] struct {
	c       Context
	name    string
	subject string
	canUndo bool
	state   State
	apply   applyFunc[T]
	value   T
	m       memento
}

func newOp[T any](c Context, name, subject string, canUndo bool, apply applyFunc[T]) *Op[T] {
	c.mustValid()
	return &Op[T]{c: c, name: name, subject: subject, canUndo: canUndo, apply: apply}
}

// Name returns a short description such as "add entry".
func (o *Op[T]) Name() string { return o.name }

// Subject names what the command acts on, such as "scheme Items".
func (o *Op[T]) Subject() string { return o.subject }

// CanUndo reports whether the command can be undone.
func (o *Op[T]) CanUndo() bool { return o.canUndo }

// State returns the lifecycle state.
func (o *Op[T]) State() State { return o.state }

// Value returns what the command produced. It is the zero T until the
// command executes.
func (o *Op[T]) Value() T { return o.value }

// Execute applies the command once.
func (o *Op[T]) Execute(ctx context.Context) types.Result {
	if o.state != Unexecuted {
		return types.Failed(fmt.Errorf("%w: %s", types.ErrBadState, o.state), o.subject)
	}
	if err := ctx.Err(); err != nil {
		return types.ResultFromError(err, o.subject)
	}
	v, m, err := o.apply(ctx)
	if err != nil && m == nil {
		return types.ResultFromError(err, o.subject)
	}
	o.value, o.m, o.state = v, m, Executed
	if err != nil {
		return types.Failed(fmt.Errorf("%s partly applied: %w", o.name, err), o.subject)
	}
	return types.Passed(o.name)
}

// Undo reverses an executed or redone command.
func (o *Op[T]) Undo(ctx context.Context) types.Result {
	if !o.canUndo {
		return types.Failed(types.ErrNotUndoable, o.subject)
	}
	if !o.state.applied() {
		return types.Failed(fmt.Errorf("%w: undo from %s", types.ErrBadState, o.state), o.subject)
	}
	if err := undo(ctx, o.c, o.m); err != nil {
		return types.ResultFromError(err, o.subject)
	}
	o.state = Undone
	return types.Passed("undo " + o.name)
}

// Redo reapplies an undone command from its memento.
func (o *Op[T]) Redo(ctx context.Context) types.Result {
	if !o.canUndo {
		return types.Failed(types.ErrNotUndoable, o.subject)
	}
	if o.state != Undone {
		return types.Failed(fmt.Errorf("%w: redo from %s", types.ErrBadState, o.state), o.subject)
	}
	if err := redo(ctx, o.c, o.m); err != nil {
		return types.ResultFromError(err, o.subject)
	}
	o.state = Redone
	return types.Passed("redo " + o.name)
}

// Run executes op through h and returns its value alongside the result.
func Run[T any](ctx context.Context, h *History, op *Op[T]) (T, types.Result) {
	res := h.Execute(ctx, op)
	if op.State() == Unexecuted {
		var zero T
		return zero, res
	}
	return op.Value(), res
}
