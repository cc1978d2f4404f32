package vm

import (
	"strings"

	"github.com/chazu/c2script/pkg/bytecode"
	"github.com/chazu/c2script/pkg/value"
)

func equalName(a, b string) bool { return strings.EqualFold(a, b) }

// ---------------------------------------------------------------------------
// Step
// ---------------------------------------------------------------------------

// step executes the next instruction (or fused sequence) of a running
// process. Errors are delivered to catch markers or fail the process.
func (p *Process) step(w *World, trace TraceSink) {
	if len(p.frames) == 0 {
		p.finish()
		return
	}
	f := p.frames[len(p.frames)-1]
	if f.pc >= f.obj.Len() {
		p.returnFromFrame(nil, false)
		return
	}
	if err := p.safeExecute(w, f, trace); err != nil {
		p.raise(asError(err), Running)
	}
}

// raise delivers e to the process. If a catch marker takes it, the process
// moves to resume.
func (p *Process) raise(e *Error, resume State) {
	p.waitTicket++
	if p.handleError(e) {
		p.setState(resume)
	}
}

func (p *Process) safeExecute(w *World, f *frame, trace TraceSink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(ErrInternal, "internal error: %v", r)
		}
	}()

	op := f.obj.At(f.pc)
	n := op.Major.FusedLength()
	for i := 0; i < n; i++ {
		if i > 0 {
			if f.pc >= f.obj.Len() {
				return newError(ErrInvalidOpcode, "truncated instruction sequence in %s", f.obj.Name())
			}
			op = f.obj.At(f.pc)
		}
		op = op.Canonical()
		if trace != nil {
			trace.TraceInstruction(p, f.obj, f.pc, op)
		}
		f.pc++
		if err := p.execute(w, f, op); err != nil {
			return err
		}
	}
	if p.maxStack > 0 && len(p.stack) > p.maxStack {
		return newError(ErrStackOverflow, "value stack exceeds %d entries", p.maxStack)
	}
	return nil
}

// execute runs one canonical instruction in frame f. f.pc already points
// past it.
func (p *Process) execute(w *World, f *frame, op bytecode.Opcode) error {
	switch op.Major {
	case bytecode.MajorPush:
		v, err := p.loadVar(w, f, bytecode.Scope(op.Minor), op.Arg)
		if err != nil {
			return err
		}
		p.push(v)
		return nil

	case bytecode.MajorPop, bytecode.MajorStore:
		var v value.Value
		var err error
		if op.Major == bytecode.MajorPop {
			v, err = p.pop()
		} else {
			v, err = p.top()
		}
		if err != nil {
			return err
		}
		return p.storeVar(w, f, bytecode.Scope(op.Minor), op.Arg, v)

	case bytecode.MajorDim:
		name, err := nameAt(f, op.Arg)
		if err != nil {
			return err
		}
		init, err := p.pop()
		if err != nil {
			return err
		}
		return p.dimVar(w, f, bytecode.Scope(op.Minor), name, init)

	case bytecode.MajorUnary:
		v, err := p.pop()
		if err != nil {
			return err
		}
		r, err := unaryOp(bytecode.UnaryOp(op.Minor), v)
		if err != nil {
			return err
		}
		p.push(r)
		return nil

	case bytecode.MajorBinary:
		vs, err := p.popN(2)
		if err != nil {
			return err
		}
		r, err := binaryOp(bytecode.BinaryOp(op.Minor), vs[0], vs[1])
		if err != nil {
			return err
		}
		p.push(r)
		return nil

	case bytecode.MajorTernary:
		vs, err := p.popN(3)
		if err != nil {
			return err
		}
		r, err := ternaryOp(bytecode.TernaryOp(op.Minor), vs[0], vs[1], vs[2])
		if err != nil {
			return err
		}
		p.push(r)
		return nil

	case bytecode.MajorJump:
		return p.jump(f, op)
	case bytecode.MajorIndirect:
		return p.indirect(w, op)
	case bytecode.MajorMemref:
		return p.memref(w, f, op)
	case bytecode.MajorStack:
		return p.stackOp(op)
	case bytecode.MajorSpecial:
		return p.special(w, f, op)
	}
	return newError(ErrInvalidOpcode, "invalid instruction %s", op.Major)
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func nameAt(f *frame, idx uint16) (string, error) {
	if int(idx) >= f.obj.NumNames() {
		return "", newError(ErrRangeError, "name index %d out of range in %s", idx, f.obj.Name())
	}
	return f.obj.NameAt(int(idx)), nil
}

func localSlot(f *frame, idx uint16) (int, error) {
	if int(idx) >= len(f.locals) {
		return 0, newError(ErrRangeError, "local slot %d out of range in %s", idx, f.obj.Name())
	}
	return int(idx), nil
}

func (p *Process) loadVar(w *World, f *frame, scope bytecode.Scope, arg uint16) (value.Value, error) {
	switch scope {
	case bytecode.ScopeNamedVariable:
		name, err := nameAt(f, arg)
		if err != nil {
			return nil, err
		}
		return p.lookupName(w, name)
	case bytecode.ScopeLocal:
		i, err := localSlot(f, arg)
		if err != nil {
			return nil, err
		}
		return f.locals[i], nil
	case bytecode.ScopeStatic:
		sf := p.frames[0]
		i, err := localSlot(sf, arg)
		if err != nil {
			return nil, err
		}
		return sf.locals[i], nil
	case bytecode.ScopeShared:
		return w.GlobalAt(int(arg))
	case bytecode.ScopeNamedShared:
		name, err := nameAt(f, arg)
		if err != nil {
			return nil, err
		}
		v, ok := w.Global(name)
		if !ok {
			return nil, newError(ErrUnknownIdentifier, "unknown identifier %s", name)
		}
		return v, nil
	case bytecode.ScopeLiteral:
		if int(arg) >= f.obj.NumLiterals() {
			return nil, newError(ErrRangeError, "literal %d out of range in %s", arg, f.obj.Name())
		}
		return f.obj.LiteralAt(int(arg)), nil
	case bytecode.ScopeInteger:
		return value.Int(int16(arg)), nil
	case bytecode.ScopeBoolean:
		switch arg {
		case bytecode.BooleanEmpty:
			return nil, nil
		case 0:
			return value.Bool(false), nil
		default:
			return value.Bool(true), nil
		}
	}
	return nil, newError(ErrInvalidOpcode, "invalid scope %d", uint8(scope))
}

// lookupName resolves a name: current frame locals, contexts innermost
// first, outermost frame locals, then globals.
func (p *Process) lookupName(w *World, name string) (value.Value, error) {
	top := p.frames[len(p.frames)-1]
	if i, ok := top.localIndex(name); ok {
		return top.locals[i], nil
	}
	for i := len(p.contexts) - 1; i >= 0; i-- {
		if v, ok := p.contexts[i].Get(name); ok {
			return v, nil
		}
	}
	if sf := p.frames[0]; sf != top {
		if i, ok := sf.localIndex(name); ok {
			return sf.locals[i], nil
		}
	}
	if v, ok := w.Global(name); ok {
		return v, nil
	}
	return nil, newError(ErrUnknownIdentifier, "unknown identifier %s", name)
}

func (p *Process) storeName(w *World, name string, v value.Value) error {
	top := p.frames[len(p.frames)-1]
	if i, ok := top.localIndex(name); ok {
		top.locals[i] = v
		return nil
	}
	for i := len(p.contexts) - 1; i >= 0; i-- {
		found, err := p.contexts[i].Set(name, v)
		if found {
			return err
		}
	}
	if sf := p.frames[0]; sf != top {
		if i, ok := sf.localIndex(name); ok {
			sf.locals[i] = v
			return nil
		}
	}
	return w.SetGlobal(name, v)
}

func (p *Process) storeVar(w *World, f *frame, scope bytecode.Scope, arg uint16, v value.Value) error {
	switch scope {
	case bytecode.ScopeNamedVariable:
		name, err := nameAt(f, arg)
		if err != nil {
			return err
		}
		return p.storeName(w, name, v)
	case bytecode.ScopeLocal:
		i, err := localSlot(f, arg)
		if err != nil {
			return err
		}
		f.locals[i] = v
		return nil
	case bytecode.ScopeStatic:
		sf := p.frames[0]
		i, err := localSlot(sf, arg)
		if err != nil {
			return err
		}
		sf.locals[i] = v
		return nil
	case bytecode.ScopeShared:
		return w.SetGlobalAt(int(arg), v)
	case bytecode.ScopeNamedShared:
		name, err := nameAt(f, arg)
		if err != nil {
			return err
		}
		return w.SetGlobal(name, v)
	}
	return newError(ErrNotAssignable, "cannot assign to %s operand", scope)
}

// dimVar declares a variable unless it already exists.
func (p *Process) dimVar(w *World, f *frame, scope bytecode.Scope, name string, init value.Value) error {
	switch scope {
	case bytecode.ScopeNamedVariable, bytecode.ScopeLocal:
		dimLocal(f, name, init)
		return nil
	case bytecode.ScopeStatic:
		dimLocal(p.frames[0], name, init)
		return nil
	case bytecode.ScopeShared, bytecode.ScopeNamedShared:
		w.dimGlobal(name, init)
		return nil
	}
	return newError(ErrNotAssignable, "cannot declare %s variable %s", scope, name)
}

func dimLocal(f *frame, name string, init value.Value) {
	if _, ok := f.localIndex(name); ok {
		return
	}
	f.names = append(f.names, strings.ToUpper(name))
	f.locals = append(f.locals, init)
}

// ---------------------------------------------------------------------------
// Jumps
// ---------------------------------------------------------------------------

func jumpTarget(f *frame, arg uint16) (int, error) {
	if int(arg) > f.obj.Len() {
		return 0, newError(ErrRangeError, "jump target %d out of range in %s", arg, f.obj.Name())
	}
	return int(arg), nil
}

func (p *Process) jump(f *frame, op bytecode.Opcode) error {
	if op.Minor&bytecode.JumpSymbolic != 0 {
		return newError(ErrInvalidOpcode, "unresolved label %d in %s", op.Arg, f.obj.Name())
	}
	target, err := jumpTarget(f, op.Arg)
	if err != nil {
		return err
	}

	switch {
	case op.Minor&bytecode.JumpCatch != 0:
		p.catches = append(p.catches, catchMarker{
			target:       target,
			stackDepth:   len(p.stack),
			frameDepth:   len(p.frames),
			contextDepth: len(p.contexts),
		})
		return nil

	case op.Minor&bytecode.JumpDecZero != 0:
		v, err := p.top()
		if err != nil {
			return err
		}
		n, ok := v.(value.Int)
		if !ok {
			return typeError("jdz", v)
		}
		n--
		if n == 0 {
			p.pop()
			f.pc = target
		} else {
			p.stack[len(p.stack)-1] = n
		}
		return nil
	}

	cond := op.Minor & bytecode.JumpAlways
	if cond == 0 {
		return nil
	}
	take := cond == bytecode.JumpAlways
	if !take {
		v, err := p.top()
		if err != nil {
			return err
		}
		switch value.Truth(v) {
		case value.True:
			take = cond&bytecode.JumpIfTrue != 0
		case value.False:
			take = cond&bytecode.JumpIfFalse != 0
		default:
			take = cond&bytecode.JumpIfEmpty != 0
		}
	}
	if op.Minor&bytecode.JumpPopAlways != 0 {
		if _, err := p.pop(); err != nil {
			return err
		}
	}
	if take {
		f.pc = target
	}
	return nil
}

// ---------------------------------------------------------------------------
// Indirect calls, indexing and members
// ---------------------------------------------------------------------------

const (
	modeMask   = 3
	filterMask = bytecode.RefuseFunctions | bytecode.RefuseProcedures
)

func (p *Process) indirect(w *World, op bytecode.Opcode) error {
	callee, err := p.pop()
	if err != nil {
		return err
	}
	args, err := p.popN(int(op.Arg))
	if err != nil {
		return err
	}
	filter := op.Minor & filterMask

	switch bytecode.IndirectMode(op.Minor & modeMask) {
	case bytecode.IndirectCall:
		if !isCallable(callee) {
			return newError(ErrTypeMismatch, "%s is not callable", value.KindOf(callee))
		}
		if err := checkCallFilter(callee, filter); err != nil {
			return err
		}
		return p.callValue(w, callee, args, false)
	case bytecode.IndirectLoad:
		if isCallable(callee) {
			if err := checkCallFilter(callee, filter); err != nil {
				return err
			}
			return p.callValue(w, callee, args, true)
		}
		v, err := indexLoad(callee, args)
		if err != nil {
			return err
		}
		p.push(v)
		return nil
	case bytecode.IndirectStore:
		v, err := p.top()
		if err != nil {
			return err
		}
		return indexStore(callee, args, v)
	default:
		v, err := p.pop()
		if err != nil {
			return err
		}
		return indexStore(callee, args, v)
	}
}

func toIndexes(args []value.Value) ([]int, error) {
	idx := make([]int, len(args))
	for i, a := range args {
		n, ok := toNumber(a)
		if !ok || !n.isInt {
			return nil, typeError("array index", a)
		}
		idx[i] = int(n.i)
	}
	return idx, nil
}

func indexLoad(c value.Value, args []value.Value) (value.Value, error) {
	switch x := c.(type) {
	case nil:
		return nil, nil
	case *value.Array:
		idx, err := toIndexes(args)
		if err != nil {
			return nil, err
		}
		v, err := x.Get(idx...)
		if err != nil {
			return nil, newError(ErrRangeError, "%v", err)
		}
		return v, nil
	case *value.Hash:
		if len(args) != 1 {
			return nil, newError(ErrArity, "hash index needs one key, got %d", len(args))
		}
		if args[0] == nil {
			return nil, nil
		}
		v, _ := x.Get(args[0].String())
		return v, nil
	}
	return nil, typeError("index", c)
}

func indexStore(c value.Value, args []value.Value, v value.Value) error {
	switch x := c.(type) {
	case *value.Array:
		idx, err := toIndexes(args)
		if err != nil {
			return err
		}
		if err := x.Set(v, idx...); err != nil {
			return newError(ErrRangeError, "%v", err)
		}
		return nil
	case *value.Hash:
		if len(args) != 1 {
			return newError(ErrArity, "hash index needs one key, got %d", len(args))
		}
		if args[0] == nil {
			return newError(ErrRangeError, "hash key is empty")
		}
		x.Set(args[0].String(), v)
		return nil
	}
	return newError(ErrNotAssignable, "cannot assign into %s", value.KindOf(c))
}

func (p *Process) memref(w *World, f *frame, op bytecode.Opcode) error {
	name, err := nameAt(f, op.Arg)
	if err != nil {
		return err
	}
	obj, err := p.pop()
	if err != nil {
		return err
	}

	switch bytecode.IndirectMode(op.Minor & modeMask) {
	case bytecode.IndirectLoad:
		v, err := memberGet(obj, name)
		if err != nil {
			return err
		}
		p.push(v)
		return nil
	case bytecode.IndirectCall:
		v, err := memberGet(obj, name)
		if err != nil {
			return err
		}
		if !isCallable(v) {
			return newError(ErrTypeMismatch, "member %s is not callable", name)
		}
		if err := checkCallFilter(v, op.Minor&filterMask); err != nil {
			return err
		}
		return p.callValue(w, v, nil, false)
	case bytecode.IndirectStore:
		v, err := p.top()
		if err != nil {
			return err
		}
		return memberSet(obj, name, v)
	default:
		v, err := p.pop()
		if err != nil {
			return err
		}
		return memberSet(obj, name, v)
	}
}

func memberGet(obj value.Value, name string) (value.Value, error) {
	switch x := obj.(type) {
	case nil:
		return nil, nil
	case *value.Hash:
		v, _ := hashContext{x}.Get(name)
		return v, nil
	case *value.Struct:
		if v, ok := (structContext{x}).Get(name); ok {
			return v, nil
		}
		return nil, newError(ErrUnknownIdentifier, "%s has no member %s", x.Type.Name, name)
	}
	return nil, typeError("member access", obj)
}

func memberSet(obj value.Value, name string, v value.Value) error {
	switch x := obj.(type) {
	case *value.Hash:
		if found, _ := (hashContext{x}).Set(name, v); !found {
			x.Set(name, v)
		}
		return nil
	case *value.Struct:
		if found, _ := (structContext{x}).Set(name, v); !found {
			return newError(ErrUnknownIdentifier, "%s has no member %s", x.Type.Name, name)
		}
		return nil
	}
	return newError(ErrNotAssignable, "cannot assign member %s of %s", name, value.KindOf(obj))
}

// ---------------------------------------------------------------------------
// Stack manipulation
// ---------------------------------------------------------------------------

func (p *Process) stackOp(op bytecode.Opcode) error {
	n := int(op.Arg)
	top := len(p.stack) - 1
	switch bytecode.StackOp(op.Minor) {
	case bytecode.StackDup:
		if n > top {
			return newError(ErrStackUnderflow, "stack underflow")
		}
		p.push(p.stack[top-n])
	case bytecode.StackDrop:
		if n > len(p.stack) {
			return newError(ErrStackUnderflow, "stack underflow")
		}
		p.truncateStack(len(p.stack) - n)
	case bytecode.StackSwap:
		if n > top {
			return newError(ErrStackUnderflow, "stack underflow")
		}
		p.stack[top], p.stack[top-n] = p.stack[top-n], p.stack[top]
	default:
		return newError(ErrInvalidOpcode, "invalid stack operation %d", op.Minor)
	}
	return nil
}
