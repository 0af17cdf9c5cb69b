// Package command implements undoable mutations over the registry's
// schemes and the History that serializes them. Code outside the engine
// mutates schemes only by building a command here and running it through
// a History.
package command

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/registry"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// State is a command's position in its lifecycle:
// Unexecuted -> Executed -> (Undone <-> Redone).
type State int

const (
	Unexecuted State = iota
	Executed
	Undone
	Redone
)

func (s State) String() string {
	switch s {
	case Unexecuted:
		return "unexecuted"
	case Executed:
		return "executed"
	case Undone:
		return "undone"
	case Redone:
		return "redone"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// applied reports whether the command's effect is currently in place.
func (s State) applied() bool { return s == Executed || s == Redone }

// Command is a mutation History can run, undo and redo.
type Command interface {
	Name() string
	CanUndo() bool
	State() State
	Execute(ctx context.Context) types.Result
	Undo(ctx context.Context) types.Result
	Redo(ctx context.Context) types.Result
}

// Context is what every command runs against: the registry of loaded
// schemes and the validation environment.
type Context struct {
	Registry *registry.Registry
	Env      datatype.Env
}

// NewContext builds a Context whose Env resolves references through reg.
func NewContext(reg *registry.Registry, cfg types.Config) Context {
	if reg == nil {
		panic("command: nil registry")
	}
	return Context{
		Registry: reg,
		Env:      reg.Env(cfg.ResolvedBasePath(), cfg.ValidationTimeout),
	}
}

func (c Context) mustValid() {
	if c.Registry == nil {
		panic("command: nil registry")
	}
}
