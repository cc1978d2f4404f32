package vm

import (
	"github.com/chazu/c2script/pkg/bytecode"
	"github.com/chazu/c2script/pkg/value"
)

// NativeFunc implements a callable in Go. The returned value is pushed when
// the caller wants a result; it is ignored when the native put the process
// into Waiting.
type NativeFunc func(c *Call) (value.Value, error)

// Native is a callable implemented by the host.
type Native struct {
	Name      string
	Procedure bool
	Fn        NativeFunc
}

func (*Native) Kind() value.Kind { return value.KindCallable }

func (n *Native) String() string { return "#<native:" + n.Name + ">" }

// IsSerializable is false: a native cannot be written into a saved image.
func (*Native) IsSerializable() bool { return false }

// Bound is a callable with leading arguments already supplied.
type Bound struct {
	Callee value.Value
	Args   []value.Value
}

func (*Bound) Kind() value.Kind { return value.KindCallable }

func (b *Bound) String() string { return "#<bound:" + value.ToString(b.Callee) + ">" }

func (b *Bound) IsSerializable() bool {
	if !value.IsSerializable(b.Callee) {
		return false
	}
	for _, a := range b.Args {
		if !value.IsSerializable(a) {
			return false
		}
	}
	return true
}

// Call is the invocation record handed to a NativeFunc.
type Call struct {
	Process    *Process
	World      *World
	Args       []value.Value
	WantResult bool

	waiting bool
}

// Arg returns argument i, or the empty value if it was not supplied.
func (c *Call) Arg(i int) value.Value {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// Wait parks the process once the native returns. The process stays in
// Waiting until the returned continuation is resolved or rejected, or the
// process is terminated.
func (c *Call) Wait() *Continuation {
	c.waiting = true
	return c.Process.enterWait(c.WantResult)
}

// Freeze stops the process after the current instruction. It stays out of
// scheduling until ThawProcess.
func (c *Call) Freeze() {
	c.Process.setState(Frozen)
}

func isProcedure(callee value.Value) (bool, bool) {
	switch c := callee.(type) {
	case *bytecode.SubroutineValue:
		return c.Object.IsProcedure(), true
	case *Native:
		return c.Procedure, true
	case *Bound:
		return isProcedure(c.Callee)
	}
	return false, false
}

func checkCallFilter(callee value.Value, filter uint8) error {
	proc, ok := isProcedure(callee)
	if !ok {
		return nil
	}
	if proc && filter&bytecode.RefuseProcedures != 0 {
		return newError(ErrTypeMismatch, "%s is a procedure and has no value", callee)
	}
	if !proc && filter&bytecode.RefuseFunctions != 0 {
		return newError(ErrTypeMismatch, "%s is a function and cannot be called as a statement", callee)
	}
	return nil
}

// callValue invokes callee with args. Subroutines push a new frame; natives
// run immediately.
func (p *Process) callValue(w *World, callee value.Value, args []value.Value, wantResult bool) error {
	switch c := callee.(type) {
	case *bytecode.SubroutineValue:
		return p.pushCallFrame(c.Object, args, wantResult)
	case *Native:
		call := &Call{Process: p, World: w, Args: args, WantResult: wantResult}
		result, err := c.Fn(call)
		if err != nil {
			return err
		}
		if !call.waiting && wantResult {
			p.push(result)
		}
		return nil
	case *Bound:
		all := make([]value.Value, 0, len(c.Args)+len(args))
		all = append(all, c.Args...)
		all = append(all, args...)
		return p.callValue(w, c.Callee, all, wantResult)
	}
	return newError(ErrTypeMismatch, "%s is not callable", value.KindOf(callee))
}

func isCallable(v value.Value) bool {
	_, ok := isProcedure(v)
	return ok
}
