package vm

import (
	"strconv"
	"strings"

	"github.com/chazu/c2script/pkg/bytecode"
	"github.com/chazu/c2script/pkg/value"
)

func (p *Process) special(w *World, f *frame, op bytecode.Opcode) error {
	switch bytecode.SpecialOp(op.Minor) {
	case bytecode.SpecialUncatch:
		n := len(p.catches)
		if n == 0 || p.catches[n-1].frameDepth != len(p.frames) {
			return newError(ErrInvalidOpcode, "uncatch without catch in %s", f.obj.Name())
		}
		p.catches = p.catches[:n-1]

	case bytecode.SpecialReturn:
		if op.Arg == 0 {
			p.returnFromFrame(nil, false)
			return nil
		}
		v, err := p.pop()
		if err != nil {
			return err
		}
		p.returnFromFrame(v, true)

	case bytecode.SpecialWith:
		v, err := p.pop()
		if err != nil {
			return err
		}
		ctx, err := newWithContext(v)
		if err != nil {
			return err
		}
		p.contexts = append(p.contexts, ctx)

	case bytecode.SpecialEndWith, bytecode.SpecialEndIndex:
		if len(p.contexts) <= f.contextDepth {
			return newError(ErrInvalidOpcode, "%s without open context in %s", bytecode.SpecialOp(op.Minor), f.obj.Name())
		}
		p.truncateContexts(len(p.contexts) - 1)

	case bytecode.SpecialFirstIndex:
		v, err := p.pop()
		if err != nil {
			return err
		}
		it, err := newIteration(v)
		if err != nil {
			return err
		}
		if it == nil {
			p.push(value.Bool(false))
			return nil
		}
		p.contexts = append(p.contexts, it)
		p.push(value.Bool(true))

	case bytecode.SpecialNextIndex:
		var it *iteration
		if n := len(p.contexts); n > f.contextDepth {
			it, _ = p.contexts[n-1].(*iteration)
		}
		if it == nil {
			return newError(ErrInvalidOpcode, "nextindex outside loop in %s", f.obj.Name())
		}
		if it.next() {
			p.push(value.Bool(true))
		} else {
			p.truncateContexts(len(p.contexts) - 1)
			p.push(value.Bool(false))
		}

	case bytecode.SpecialEvalStatement:
		lines, err := p.popN(int(op.Arg))
		if err != nil {
			return err
		}
		if w.Compiler == nil {
			return newError(ErrNotAvailable, "eval is not available")
		}
		src := make([]string, len(lines))
		for i, l := range lines {
			src[i] = value.ToString(l)
		}
		obj, err := w.Compiler.CompileStatement(strings.Join(src, "\n"))
		if err != nil {
			return asError(err)
		}
		return p.pushCallFrame(obj, nil, false)

	case bytecode.SpecialEvalExpr:
		v, err := p.pop()
		if err != nil {
			return err
		}
		if w.Compiler == nil {
			return newError(ErrNotAvailable, "eval is not available")
		}
		obj, err := w.Compiler.CompileExpression(value.ToString(v))
		if err != nil {
			return asError(err)
		}
		return p.pushCallFrame(obj, nil, true)

	case bytecode.SpecialDefSub:
		name, err := nameAt(f, op.Arg)
		if err != nil {
			return err
		}
		v, err := p.pop()
		if err != nil {
			return err
		}
		if !isCallable(v) {
			return typeError("defsub", v)
		}
		w.DefineGlobal(name, v)

	case bytecode.SpecialSuspend:
		if err := p.checkSerializable(); err != nil {
			return err
		}
		p.setState(Suspended)

	case bytecode.SpecialTerminate:
		p.setState(Terminated)

	case bytecode.SpecialThrow:
		v, err := p.pop()
		if err != nil {
			return err
		}
		return thrownError(v)

	case bytecode.SpecialNewArray:
		vs, err := p.popN(int(op.Arg))
		if err != nil {
			return err
		}
		dims, err := toIndexes(vs)
		if err != nil {
			return err
		}
		a, err := value.NewArray(dims...)
		if err != nil {
			return newError(ErrRangeError, "%v", err)
		}
		p.push(a)

	case bytecode.SpecialNewHash:
		p.push(value.NewHash())

	case bytecode.SpecialInstance:
		v, err := p.pop()
		if err != nil {
			return err
		}
		t, ok := v.(*value.StructType)
		if !ok {
			return typeError("instance", v)
		}
		p.push(value.NewStruct(t))

	case bytecode.SpecialBind:
		callee, err := p.pop()
		if err != nil {
			return err
		}
		args, err := p.popN(int(op.Arg))
		if err != nil {
			return err
		}
		if !isCallable(callee) {
			return newError(ErrTypeMismatch, "%s is not callable", value.KindOf(callee))
		}
		p.push(&Bound{Callee: callee, Args: args})

	case bytecode.SpecialFreeze:
		p.setState(Frozen)

	default:
		return newError(ErrInvalidOpcode, "invalid special instruction %d", op.Minor)
	}
	return nil
}

// checkSerializable verifies that the process can be saved.
func (p *Process) checkSerializable() error {
	for _, v := range p.stack {
		if !value.IsSerializable(v) {
			return newError(ErrNotSerializable, "cannot suspend: %s on the stack cannot be saved", value.ToString(v))
		}
	}
	for _, f := range p.frames {
		for i, v := range f.locals {
			if !value.IsSerializable(v) {
				return newError(ErrNotSerializable, "cannot suspend: variable %s of %s cannot be saved", localName(f, i), f.obj.Name())
			}
		}
	}
	for _, c := range p.contexts {
		var v value.Value
		switch x := c.(type) {
		case hashContext:
			v = x.h
		case structContext:
			v = x.s
		case *iteration:
			if x.arr != nil {
				v = x.arr
			} else {
				v = x.hash
			}
		}
		if !value.IsSerializable(v) {
			return newError(ErrNotSerializable, "cannot suspend inside a context that cannot be saved")
		}
	}
	return nil
}

func localName(f *frame, i int) string {
	if i < len(f.names) {
		return f.names[i]
	}
	return "#" + strconv.Itoa(i)
}
