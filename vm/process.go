package vm

import (
	"fmt"

	"github.com/chazu/c2script/pkg/bytecode"
	"github.com/chazu/c2script/pkg/value"
)

// ---------------------------------------------------------------------------
// Frames and catch markers
// ---------------------------------------------------------------------------

// frame is the activation of one compiled unit.
type frame struct {
	obj        *bytecode.Object
	pc         int
	locals     []value.Value
	names      []string // local names; grows when Dim adds a local
	wantResult bool

	// contextDepth is the size of the context stack when the frame was
	// entered; returning discards contexts above it.
	contextDepth int
}

func (f *frame) localIndex(name string) (int, bool) {
	for i, n := range f.names {
		if equalName(n, name) {
			return i, true
		}
	}
	return 0, false
}

// catchMarker is installed by a catch instruction. On error, execution
// resumes at target in the frame that installed it, with the value stack
// cut back to stackDepth and the error value pushed.
type catchMarker struct {
	target       int
	stackDepth   int
	frameDepth   int
	contextDepth int
}

// ---------------------------------------------------------------------------
// Process
// ---------------------------------------------------------------------------

// Process is one executing script. A process is owned by the ProcessList
// that created it and must only be manipulated through that list's
// goroutine.
type Process struct {
	id       uint32
	name     string
	list     *ProcessList
	state    State
	priority int
	seq      uint64
	group    uint32

	kind   ProcessKind
	object any

	frames   []*frame
	stack    []value.Value
	catches  []catchMarker
	contexts []Context

	result value.Value
	err    *Error

	// waitTicket identifies the current Waiting episode; continuations
	// from earlier episodes are ignored.
	waitTicket     uint64
	waitWantResult bool

	finalizer func(*Process)
	reaped    bool

	maxStack  int
	maxFrames int
}

// ID returns the process id, unique within its ProcessList.
func (p *Process) ID() uint32 { return p.id }

// Name returns the display name.
func (p *Process) Name() string { return p.name }

// SetName changes the display name.
func (p *Process) SetName(name string) { p.name = name }

// State returns the current life-cycle state.
func (p *Process) State() State { return p.state }

// Priority returns the scheduling priority; lower runs first.
func (p *Process) Priority() int { return p.priority }

// SetPriority changes the priority value only. Call
// ProcessList.HandlePriorityChange (or use ProcessList.SetPriority) to move
// the process to its new scheduling position.
func (p *Process) SetPriority(pri int) { p.priority = pri }

// ProcessGroupID returns the group the process currently belongs to.
func (p *Process) ProcessGroupID() uint32 { return p.group }

// Kind returns the process kind.
func (p *Process) Kind() ProcessKind { return p.kind }

// InvokingObject returns the object the process was started for. It is nil
// if none was set, or once the process has left the active states or
// finished.
func (p *Process) InvokingObject() any { return p.object }

// SetInvokingObject associates the process with obj as a process of kind.
func (p *Process) SetInvokingObject(obj any, kind ProcessKind) {
	p.object = obj
	p.kind = kind
}

// Result returns the value the process ended with, nil if none.
func (p *Process) Result() value.Value { return p.result }

// Error returns the error the process failed with, nil unless Failed.
func (p *Process) Error() *Error { return p.err }

// SetFinalizer registers fn to run once when the process is removed by
// RemoveTerminatedProcesses.
func (p *Process) SetFinalizer(fn func(*Process)) { p.finalizer = fn }

// NumFrames returns the frame stack depth.
func (p *Process) NumFrames() int { return len(p.frames) }

// StackDepth returns the value stack depth.
func (p *Process) StackDepth() int { return len(p.stack) }

// Top returns the value on top of the stack.
func (p *Process) Top() (value.Value, bool) {
	if len(p.stack) == 0 {
		return nil, false
	}
	return p.stack[len(p.stack)-1], true
}

// PushValue pushes v onto the value stack.
func (p *Process) PushValue(v value.Value) { p.push(v) }

// PushFrame makes obj the process's current frame. If wantResult is set,
// the value the unit returns is pushed for the caller frame (or becomes the
// process result for the outermost frame).
func (p *Process) PushFrame(obj *bytecode.Object, wantResult bool) error {
	return p.pushCallFrame(obj, nil, wantResult)
}

// Backtrace lists the active frames, innermost first.
func (p *Process) Backtrace() []string {
	trace := make([]string, 0, len(p.frames))
	for i := len(p.frames) - 1; i >= 0; i-- {
		f := p.frames[i]
		pc := f.pc
		if pc > 0 {
			pc--
		}
		trace = append(trace, fmt.Sprintf("in %s at pc %d", f.obj.Name(), pc))
	}
	return trace
}

func (p *Process) String() string {
	return fmt.Sprintf("process %d %q (%s)", p.id, p.name, p.state)
}

// ---------------------------------------------------------------------------
// State changes
// ---------------------------------------------------------------------------

func (p *Process) setState(s State) {
	old := p.state
	if old == s {
		return
	}
	p.state = s
	if s.IsTerminal() || (old.IsActive() && !s.IsActive()) {
		p.object = nil
	}
	if p.list != nil {
		p.list.processStateChanged(p, old)
	}
}

func (p *Process) enterWait(wantResult bool) *Continuation {
	p.waitTicket++
	p.waitWantResult = wantResult
	p.setState(Waiting)
	return &Continuation{list: p.list, pid: p.id, ticket: p.waitTicket}
}

// finish ends the process normally.
func (p *Process) finish() {
	if len(p.stack) > 0 {
		p.result = p.stack[len(p.stack)-1]
	}
	p.releaseFrames()
	p.setState(Ended)
}

// releaseFrames drops every frame and the references they hold.
func (p *Process) releaseFrames() {
	for i := len(p.frames) - 1; i >= 0; i-- {
		p.frames[i].obj.Release()
		p.frames[i] = nil
	}
	p.frames = p.frames[:0]
	p.catches = p.catches[:0]
	p.contexts = p.contexts[:0]
}

// ---------------------------------------------------------------------------
// Value stack
// ---------------------------------------------------------------------------

func (p *Process) push(v value.Value) {
	p.stack = append(p.stack, v)
}

func (p *Process) pop() (value.Value, error) {
	n := len(p.stack)
	if n == 0 {
		return nil, newError(ErrStackUnderflow, "stack underflow")
	}
	v := p.stack[n-1]
	p.stack[n-1] = nil
	p.stack = p.stack[:n-1]
	return v, nil
}

func (p *Process) top() (value.Value, error) {
	n := len(p.stack)
	if n == 0 {
		return nil, newError(ErrStackUnderflow, "stack underflow")
	}
	return p.stack[n-1], nil
}

// popN pops n values and returns them in push order.
func (p *Process) popN(n int) ([]value.Value, error) {
	if n > len(p.stack) {
		return nil, newError(ErrStackUnderflow, "stack underflow")
	}
	at := len(p.stack) - n
	vs := make([]value.Value, n)
	copy(vs, p.stack[at:])
	p.truncateStack(at)
	return vs, nil
}

func (p *Process) truncateStack(depth int) {
	if depth >= len(p.stack) {
		return
	}
	for i := depth; i < len(p.stack); i++ {
		p.stack[i] = nil
	}
	p.stack = p.stack[:depth]
}

// ---------------------------------------------------------------------------
// Frames
// ---------------------------------------------------------------------------

func (p *Process) pushCallFrame(obj *bytecode.Object, args []value.Value, wantResult bool) error {
	n := len(args)
	if n < obj.MinArgs() || (!obj.IsVarargs() && n > obj.MaxArgs()) {
		return newError(ErrArity, "%s expects %d to %d arguments, got %d", obj.Name(), obj.MinArgs(), obj.MaxArgs(), n)
	}
	if p.maxFrames > 0 && len(p.frames) >= p.maxFrames {
		return newError(ErrStackOverflow, "too many nested calls (limit %d)", p.maxFrames)
	}
	obj.Freeze()
	obj.Retain()

	f := &frame{
		obj:          obj,
		names:        obj.LocalNames(),
		wantResult:   wantResult,
		contextDepth: len(p.contexts),
	}
	slots := obj.NumLocals()
	need := obj.MaxArgs()
	if obj.IsVarargs() {
		need++
	}
	if slots < need {
		slots = need
	}
	f.locals = make([]value.Value, slots)

	fixed := n
	if fixed > obj.MaxArgs() {
		fixed = obj.MaxArgs()
	}
	copy(f.locals, args[:fixed])
	if obj.IsVarargs() {
		f.locals[obj.MaxArgs()] = value.NewList(args[fixed:]...)
	}
	p.frames = append(p.frames, f)
	return nil
}

// returnFromFrame pops the current frame. For the outermost frame the
// process ends.
func (p *Process) returnFromFrame(result value.Value, hasResult bool) {
	n := len(p.frames)
	f := p.frames[n-1]
	p.frames[n-1] = nil
	p.frames = p.frames[:n-1]
	f.obj.Release()

	p.truncateContexts(f.contextDepth)
	for len(p.catches) > 0 && p.catches[len(p.catches)-1].frameDepth > len(p.frames) {
		p.catches = p.catches[:len(p.catches)-1]
	}

	if len(p.frames) == 0 {
		if hasResult {
			p.push(result)
		}
		p.finish()
		return
	}
	if f.wantResult {
		p.push(result)
	}
}

func (p *Process) truncateContexts(depth int) {
	for i := depth; i < len(p.contexts); i++ {
		p.contexts[i] = nil
	}
	p.contexts = p.contexts[:depth]
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// handleError delivers e to the innermost catch marker, or fails the
// process if there is none. It returns true if a handler took the error.
func (p *Process) handleError(e *Error) bool {
	if len(p.catches) == 0 {
		if e.Trace == nil {
			e.Trace = p.Backtrace()
		}
		p.err = e
		p.releaseFrames()
		p.setState(Failed)
		return false
	}

	m := p.catches[len(p.catches)-1]
	p.catches = p.catches[:len(p.catches)-1]
	for len(p.frames) > m.frameDepth {
		n := len(p.frames)
		p.frames[n-1].obj.Release()
		p.frames[n-1] = nil
		p.frames = p.frames[:n-1]
	}
	p.truncateStack(m.stackDepth)
	p.truncateContexts(m.contextDepth)
	p.push(e.Value)
	p.frames[len(p.frames)-1].pc = m.target
	return true
}
