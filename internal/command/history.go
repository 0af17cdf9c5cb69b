package command

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Undo and redo failure messages for empty stacks.
const (
	MsgNothingToUndo = "No commands available to undo"
	MsgNothingToRedo = "No commands available to redo"
)

// EventKind distinguishes history events.
type EventKind int

const (
	EventExecuted EventKind = iota
	EventUndone
	EventRedone
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventExecuted:
		return "executed"
	case EventUndone:
		return "undone"
	case EventRedone:
		return "redone"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event reports one history transition. Command is nil for EventCleared.
type Event struct {
	Kind    EventKind
	Command Command
	Result  types.Result
	Elapsed time.Duration
}

// History runs commands and keeps the undo and redo stacks. Execute,
// Undo, Redo and Clear are linearized by a single weighted semaphore;
// waiting for it honours the caller's context.
type History struct {
	sem        *semaphore.Weighted
	maxHistory int
	logger     *zap.Logger

	history   []Command
	undoStack []Command
	redoStack []Command

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// NewHistory creates a History that keeps at most maxHistory commands.
// A non-positive maxHistory uses types.DefaultMaxHistory; a nil logger
// logs nothing.
func NewHistory(maxHistory int, logger *zap.Logger) *History {
	if maxHistory <= 0 {
		maxHistory = types.DefaultMaxHistory
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{
		sem:        semaphore.NewWeighted(1),
		maxHistory: maxHistory,
		logger:     logger,
		subs:       make(map[int]func(Event)),
	}
}

// Subscribe registers fn for every event and returns a function that
// removes it. Events are delivered after the history lock is released,
// so fn may call back into the History.
func (h *History) Subscribe(fn func(Event)) (unsubscribe func()) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	return func() {
		h.subMu.Lock()
		defer h.subMu.Unlock()
		delete(h.subs, id)
	}
}

func (h *History) emit(ev Event) {
	h.subMu.Lock()
	fns := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// lock acquires the history semaphore. A context that is already done
// fails before waiting.
func (h *History) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		h.sem.Release(1)
		return err
	}
	return nil
}

func (h *History) unlock() { h.sem.Release(1) }

// Execute runs cmd. A command that moved from Unexecuted to Executed is
// appended to the history and, if undoable, pushed on the undo stack,
// and the redo stack is cleared. That includes a partly applied command
// such as an identifier update whose reference walk failed: its Result
// is Failed but it is recorded so the applied part can be undone. A
// command that was not Unexecuted on entry is never recorded. When the
// history exceeds its cap the oldest command is evicted along with its
// undo stack slot.
func (h *History) Execute(ctx context.Context, cmd Command) types.Result {
	if cmd == nil {
		panic("command: Execute with nil command")
	}
	if err := h.lock(ctx); err != nil {
		return types.ResultFromError(err, cmd.Name())
	}
	start := time.Now()
	before := cmd.State()
	res := cmd.Execute(ctx)
	recorded := before == Unexecuted && cmd.State() == Executed
	if recorded {
		h.history = append(h.history, cmd)
		if cmd.CanUndo() {
			h.undoStack = append(h.undoStack, cmd)
		}
		h.redoStack = nil
		h.evict()
	}
	elapsed := time.Since(start)
	h.unlock()

	h.log("execute", cmd, res, elapsed)
	if recorded {
		h.emit(Event{Kind: EventExecuted, Command: cmd, Result: res, Elapsed: elapsed})
	}
	return res
}

func (h *History) evict() {
	for len(h.history) > h.maxHistory {
		oldest := h.history[0]
		h.history = slices.Delete(h.history, 0, 1)
		if len(h.undoStack) > 0 && h.undoStack[0] == oldest {
			h.undoStack = slices.Delete(h.undoStack, 0, 1)
		}
		h.logger.Debug("history evicted", zap.String("command", oldest.Name()))
	}
}

// Undo reverses the most recent undoable command. A command whose undo
// fails goes back on top of the undo stack.
func (h *History) Undo(ctx context.Context) types.Result {
	if err := h.lock(ctx); err != nil {
		return types.ResultFromError(err, "undo")
	}
	if len(h.undoStack) == 0 {
		h.unlock()
		return types.Failure(MsgNothingToUndo, "undo")
	}
	cmd := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]

	start := time.Now()
	res := cmd.Undo(ctx)
	if res.OK() {
		h.redoStack = append(h.redoStack, cmd)
	} else {
		h.undoStack = append(h.undoStack, cmd)
	}
	elapsed := time.Since(start)
	h.unlock()

	h.log("undo", cmd, res, elapsed)
	h.emit(Event{Kind: EventUndone, Command: cmd, Result: res, Elapsed: elapsed})
	return res
}

// Redo reapplies the most recently undone command. A command whose redo
// fails goes back on top of the redo stack.
func (h *History) Redo(ctx context.Context) types.Result {
	if err := h.lock(ctx); err != nil {
		return types.ResultFromError(err, "redo")
	}
	if len(h.redoStack) == 0 {
		h.unlock()
		return types.Failure(MsgNothingToRedo, "redo")
	}
	cmd := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]

	start := time.Now()
	res := cmd.Redo(ctx)
	if res.OK() {
		h.undoStack = append(h.undoStack, cmd)
	} else {
		h.redoStack = append(h.redoStack, cmd)
	}
	elapsed := time.Since(start)
	h.unlock()

	h.log("redo", cmd, res, elapsed)
	h.emit(Event{Kind: EventRedone, Command: cmd, Result: res, Elapsed: elapsed})
	return res
}

// Clear empties the history and both stacks.
func (h *History) Clear(ctx context.Context) types.Result {
	if err := h.lock(ctx); err != nil {
		return types.ResultFromError(err, "clear")
	}
	start := time.Now()
	h.history, h.undoStack, h.redoStack = nil, nil, nil
	elapsed := time.Since(start)
	h.unlock()

	res := types.Passed("history cleared")
	h.logger.Debug("history cleared")
	h.emit(Event{Kind: EventCleared, Result: res, Elapsed: elapsed})
	return res
}

// Snapshot is a point-in-time copy of the three stacks.
type Snapshot struct {
	History []Command
	Undo    []Command
	Redo    []Command
}

// Snapshot copies the stacks. It waits for any running operation.
func (h *History) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := h.lock(ctx); err != nil {
		return Snapshot{}, err
	}
	defer h.unlock()
	return Snapshot{
		History: slices.Clone(h.history),
		Undo:    slices.Clone(h.undoStack),
		Redo:    slices.Clone(h.redoStack),
	}, nil
}

// CanUndo reports whether Undo has a command to work on.
func (h *History) CanUndo(ctx context.Context) bool {
	s, err := h.Snapshot(ctx)
	return err == nil && len(s.Undo) > 0
}

// CanRedo reports whether Redo has a command to work on.
func (h *History) CanRedo(ctx context.Context) bool {
	s, err := h.Snapshot(ctx)
	return err == nil && len(s.Redo) > 0
}

func (h *History) log(op string, cmd Command, res types.Result, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("command", cmd.Name()),
		zap.Stringer("status", res.Status),
		zap.Duration("elapsed", elapsed),
	}
	switch res.Status {
	case types.StatusPassed:
		h.logger.Debug("history transition", fields...)
	case types.StatusCancelled:
		h.logger.Debug("history transition cancelled", fields...)
	default:
		h.logger.Warn("history transition failed", append(fields, zap.String("message", res.Message), zap.String("context", res.Context))...)
	}
}
