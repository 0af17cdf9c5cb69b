package command

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeCmd is a Command whose outcomes are scripted.
type fakeCmd struct {
	name     string
	noUndo   bool
	failExec bool
	failUndo bool
	state    State
	started  chan struct{}
	block    chan struct{}
}

func newFake(name string) *fakeCmd { return &fakeCmd{name: name} }

func (f *fakeCmd) Name() string  { return f.name }
func (f *fakeCmd) CanUndo() bool { return !f.noUndo }
func (f *fakeCmd) State() State  { return f.state }

func (f *fakeCmd) Execute(ctx context.Context) types.Result {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.failExec {
		return types.Failure("exec failed", f.name)
	}
	f.state = Executed
	return types.Passed(f.name)
}

func (f *fakeCmd) Undo(context.Context) types.Result {
	if f.failUndo {
		return types.Failure("undo failed", f.name)
	}
	f.state = Undone
	return types.Passed("undo " + f.name)
}

func (f *fakeCmd) Redo(context.Context) types.Result {
	f.state = Redone
	return types.Passed("redo " + f.name)
}

func snapshot(t *testing.T, h *History) Snapshot {
	t.Helper()
	s, err := h.Snapshot(context.Background())
	require.NoError(t, err)
	return s
}

func TestHistory_ExecuteRecords(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(10, nil)

	require.True(t, h.Execute(ctx, newFake("a")).OK())
	loader := newFake("load")
	loader.noUndo = true
	require.True(t, h.Execute(ctx, loader).OK())

	s := snapshot(t, h)
	assert.Len(t, s.History, 2)
	assert.Len(t, s.Undo, 1, "non-undoable commands stay off the undo stack")

	failing := newFake("bad")
	failing.failExec = true
	res := h.Execute(ctx, failing)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Len(t, snapshot(t, h).History, 2, "failures are not recorded")
}

func TestHistory_Eviction(t *testing.T) {
	ctx := context.Background()
	const k = 3
	h := NewHistory(k, nil)
	var cmds []*fakeCmd
	for i := range 5 {
		c := newFake(fmt.Sprintf("c%d", i))
		cmds = append(cmds, c)
		require.True(t, h.Execute(ctx, c).OK())
	}
	s := snapshot(t, h)
	require.Len(t, s.History, k)
	require.Len(t, s.Undo, k)
	for i, c := range cmds[2:] {
		assert.Same(t, c, s.History[i])
		assert.Same(t, c, s.Undo[i])
	}
}

func TestHistory_NewBranchClearsRedo(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(10, nil)
	require.True(t, h.Execute(ctx, newFake("cmd1")).OK())
	require.True(t, h.Undo(ctx).OK())
	require.Len(t, snapshot(t, h).Redo, 1)

	require.True(t, h.Execute(ctx, newFake("cmd2")).OK())
	assert.Empty(t, snapshot(t, h).Redo)
}

func TestHistory_EmptyStacks(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(10, nil)

	res := h.Undo(ctx)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, MsgNothingToUndo, res.Message)

	res = h.Redo(ctx)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, MsgNothingToRedo, res.Message)

	s := snapshot(t, h)
	assert.Empty(t, s.History)
	assert.Empty(t, s.Undo)
	assert.Empty(t, s.Redo)
}

func TestHistory_FailedUndoStaysOnTop(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(10, nil)
	first, second := newFake("first"), newFake("second")
	require.True(t, h.Execute(ctx, first).OK())
	require.True(t, h.Execute(ctx, second).OK())
	require.True(t, h.Undo(ctx).OK())
	require.Len(t, snapshot(t, h).Redo, 1)

	first.failUndo = true
	res := h.Undo(ctx)
	assert.Equal(t, types.StatusFailed, res.Status)
	s := snapshot(t, h)
	require.Len(t, s.Undo, 1)
	assert.Same(t, first, s.Undo[0])
	require.Len(t, s.Redo, 1)
	assert.Same(t, second, s.Redo[0])
}

func TestHistory_UndoRedoCycle(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(10, nil)
	c := newFake("c")
	require.True(t, h.Execute(ctx, c).OK())
	assert.True(t, h.CanUndo(ctx))
	assert.False(t, h.CanRedo(ctx))

	require.True(t, h.Undo(ctx).OK())
	assert.Equal(t, Undone, c.State())
	require.True(t, h.Redo(ctx).OK())
	assert.Equal(t, Redone, c.State())
	require.True(t, h.Undo(ctx).OK())
	assert.Equal(t, Undone, c.State())
}

func TestHistory_PreCancelledContext(t *testing.T) {
	h := NewHistory(10, nil)
	require.True(t, h.Execute(context.Background(), newFake("a")).OK())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newFake("b")
	res := h.Execute(ctx, c)
	assert.True(t, res.IsCancelled())
	assert.Equal(t, Unexecuted, c.State())

	assert.True(t, h.Undo(ctx).IsCancelled())
	assert.True(t, h.Clear(ctx).IsCancelled())

	s := snapshot(t, h)
	assert.Len(t, s.History, 1)
	assert.Len(t, s.Undo, 1)
}

func TestHistory_CancelWhileWaiting(t *testing.T) {
	h := NewHistory(10, nil)
	blocker := newFake("slow")
	blocker.started = make(chan struct{})
	blocker.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Execute(context.Background(), blocker)
	}()
	<-blocker.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := h.Execute(ctx, newFake("waiting"))
	assert.True(t, res.IsCancelled())

	close(blocker.block)
	<-done
	assert.Len(t, snapshot(t, h).History, 1)
}

func TestHistory_ConcurrentExecute(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(100, nil)

	var wg sync.WaitGroup
	results := make([]types.Result, 10)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.Execute(ctx, newFake(fmt.Sprintf("c%d", i)))
		}()
	}
	wg.Wait()

	for _, res := range results {
		assert.True(t, res.OK())
	}
	s := snapshot(t, h)
	assert.Len(t, s.History, 10)
	assert.Len(t, s.Undo, 10)
}

func TestHistory_Events(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(10, nil)
	var kinds []EventKind
	unsubscribe := h.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		assert.GreaterOrEqual(t, ev.Elapsed, time.Duration(0))
	})

	require.True(t, h.Execute(ctx, newFake("a")).OK())
	require.True(t, h.Undo(ctx).OK())
	require.True(t, h.Redo(ctx).OK())
	require.True(t, h.Clear(ctx).OK())
	assert.Equal(t, []EventKind{EventExecuted, EventUndone, EventRedone, EventCleared}, kinds)

	unsubscribe()
	require.True(t, h.Execute(ctx, newFake("b")).OK())
	assert.Len(t, kinds, 4)
}

func TestHistory_SubscriberMayReenter(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(10, nil)
	var depth int
	h.Subscribe(func(ev Event) {
		if ev.Kind == EventExecuted {
			depth = len(snapshot(t, h).History)
		}
	})
	require.True(t, h.Execute(ctx, newFake("a")).OK())
	assert.Equal(t, 1, depth)
}

func TestHistory_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := NewHistory(10, zap.New(core))

	require.True(t, h.Execute(context.Background(), newFake("a")).OK())
	assert.Equal(t, 1, logs.FilterMessage("history transition").Len())

	bad := newFake("bad")
	bad.failExec = true
	h.Execute(context.Background(), bad)
	warn := logs.FilterMessage("history transition failed").All()
	require.Len(t, warn, 1)
	assert.Equal(t, zap.WarnLevel, warn[0].Level)
}

func TestHistory_DefaultCap(t *testing.T) {
	h := NewHistory(0, nil)
	assert.Equal(t, types.DefaultMaxHistory, h.maxHistory)
}
