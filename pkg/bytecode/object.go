package bytecode

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chazu/c2script/pkg/value"
)

// Object is a compiled unit: the code of one subroutine plus its literal,
// name and local-variable tables.
//
// An Object is mutable while it is being built. The first frame that
// executes it calls Freeze; afterwards every mutating method panics, and
// the Object may be shared by any number of frames and processes.
type Object struct {
	name      string
	file      string
	code      []Opcode
	literals  []value.Value
	names     []string
	locals    []string
	minArgs   int
	maxArgs   int
	varargs   bool
	procedure bool
	numLabels uint16

	frozen atomic.Bool
	refs   atomic.Int32
}

// NewObject creates an empty, mutable compiled unit.
func NewObject(name string) *Object {
	return &Object{
		name:      name,
		code:      make([]Opcode, 0, 16),
		procedure: true,
	}
}

func (o *Object) checkMutable() {
	if o.frozen.Load() {
		panic(fmt.Sprintf("bytecode: modifying frozen object %q", o.name))
	}
}

// Freeze marks the object read-only. Freezing twice is harmless.
func (o *Object) Freeze() { o.frozen.Store(true) }

// IsFrozen reports whether Freeze has been called.
func (o *Object) IsFrozen() bool { return o.frozen.Load() }

// Retain records a new reference (a frame executing the object).
func (o *Object) Retain() { o.refs.Add(1) }

// Release drops a reference taken with Retain.
func (o *Object) Release() {
	if o.refs.Add(-1) < 0 {
		panic(fmt.Sprintf("bytecode: object %q released more often than retained", o.name))
	}
}

// RefCount returns the number of live references.
func (o *Object) RefCount() int { return int(o.refs.Load()) }

// ---------------------------------------------------------------------------
// Metadata
// ---------------------------------------------------------------------------

// Name returns the subroutine name used in diagnostics.
func (o *Object) Name() string { return o.name }

// File returns the source file name, if known.
func (o *Object) File() string { return o.file }

// SetFile records the source file name.
func (o *Object) SetFile(file string) {
	o.checkMutable()
	o.file = file
}

// SetArgs declares the accepted argument counts. The first maxArgs locals
// receive the arguments; with varargs, surplus arguments are collected into
// an array in local maxArgs.
func (o *Object) SetArgs(minArgs, maxArgs int, varargs bool) {
	o.checkMutable()
	o.minArgs, o.maxArgs, o.varargs = minArgs, maxArgs, varargs
}

// MinArgs returns the minimum argument count.
func (o *Object) MinArgs() int { return o.minArgs }

// MaxArgs returns the maximum argument count (excluding varargs).
func (o *Object) MaxArgs() int { return o.maxArgs }

// IsVarargs reports whether the subroutine takes a variable argument list.
func (o *Object) IsVarargs() bool { return o.varargs }

// SetProcedure marks the object as a procedure (true, no result) or a
// function (false).
func (o *Object) SetProcedure(p bool) {
	o.checkMutable()
	o.procedure = p
}

// IsProcedure reports whether the object is a procedure.
func (o *Object) IsProcedure() bool { return o.procedure }

// ---------------------------------------------------------------------------
// Code
// ---------------------------------------------------------------------------

// Len returns the number of instructions.
func (o *Object) Len() int { return len(o.code) }

// At returns the instruction at pc.
func (o *Object) At(pc int) Opcode { return o.code[pc] }

// Code returns a copy of the instruction sequence.
func (o *Object) Code() []Opcode { return append([]Opcode(nil), o.code...) }

// AddInstruction appends an instruction and returns its address.
func (o *Object) AddInstruction(major Major, minor uint8, arg uint16) int {
	o.checkMutable()
	o.code = append(o.code, Opcode{Major: major, Minor: minor, Arg: arg})
	return len(o.code) - 1
}

// AddPush appends a push of a variable.
func (o *Object) AddPush(scope Scope, arg uint16) int {
	return o.AddInstruction(MajorPush, uint8(scope), arg)
}

// AddPushValue appends the cheapest push of a constant: an integer or
// boolean immediate where possible, a literal otherwise.
func (o *Object) AddPushValue(v value.Value) int {
	switch x := v.(type) {
	case nil:
		return o.AddPush(ScopeBoolean, BooleanEmpty)
	case value.Bool:
		if x {
			return o.AddPush(ScopeBoolean, 1)
		}
		return o.AddPush(ScopeBoolean, 0)
	case value.Int:
		if x >= -32768 && x <= 32767 {
			return o.AddPush(ScopeInteger, uint16(int16(x)))
		}
	}
	return o.AddPush(ScopeLiteral, o.AddLiteral(v))
}

// MakeLabel allocates a fresh label id for AddLabel/AddJump.
func (o *Object) MakeLabel() uint16 {
	o.checkMutable()
	id := o.numLabels
	o.numLabels++
	return id
}

// AddLabel places a label. Labels are removed by Relocate.
func (o *Object) AddLabel(label uint16) int {
	return o.AddInstruction(MajorJump, JumpSymbolic, label)
}

// AddJump appends a jump (or catch/decrement-and-jump) to a label.
func (o *Object) AddJump(flags uint8, label uint16) int {
	return o.AddInstruction(MajorJump, flags|JumpSymbolic, label)
}

// Relocate resolves symbolic jumps into addresses and removes all labels.
// Absolute jumps are adjusted for the removed instructions.
func (o *Object) Relocate() error {
	o.checkMutable()

	// newAddr[i] is the address of instruction i after labels are removed;
	// a label maps to the instruction following it.
	newAddr := make([]uint16, len(o.code)+1)
	labelAddr := make(map[uint16]uint16)
	n := 0
	for i, op := range o.code {
		newAddr[i] = uint16(n)
		if op.IsLabel() {
			if op.Minor&JumpSymbolic == 0 {
				continue
			}
			if _, dup := labelAddr[op.Arg]; dup {
				return fmt.Errorf("%s: label %d defined twice", o.name, op.Arg)
			}
			labelAddr[op.Arg] = uint16(n)
			continue
		}
		n++
	}
	newAddr[len(o.code)] = uint16(n)

	out := make([]Opcode, 0, n)
	for i, op := range o.code {
		if op.IsLabel() {
			continue
		}
		if op.IsJumpOrCatch() {
			if op.Minor&JumpSymbolic != 0 {
				addr, ok := labelAddr[op.Arg]
				if !ok {
					return fmt.Errorf("%s: jump at %d to undefined label %d", o.name, i, op.Arg)
				}
				op.Arg = addr
				op.Minor &^= JumpSymbolic
			} else {
				if int(op.Arg) > len(o.code) {
					return fmt.Errorf("%s: jump at %d out of range", o.name, i)
				}
				op.Arg = newAddr[op.Arg]
			}
		}
		out = append(out, op)
	}
	o.code = out
	return nil
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

// AddLiteral appends v to the literal table and returns its index. Scalar
// literals are deduplicated.
func (o *Object) AddLiteral(v value.Value) uint16 {
	o.checkMutable()
	switch v.(type) {
	case value.Int, value.Float, value.Bool, value.String:
		for i, l := range o.literals {
			if l == v {
				return uint16(i)
			}
		}
	}
	o.literals = append(o.literals, v)
	return uint16(len(o.literals) - 1)
}

// NumLiterals returns the size of the literal table.
func (o *Object) NumLiterals() int { return len(o.literals) }

// LiteralAt returns literal i.
func (o *Object) LiteralAt(i int) value.Value { return o.literals[i] }

// AddName adds a name to the name table (deduplicated, stored upper-case)
// and returns its index.
func (o *Object) AddName(name string) uint16 {
	o.checkMutable()
	name = strings.ToUpper(name)
	for i, n := range o.names {
		if n == name {
			return uint16(i)
		}
	}
	o.names = append(o.names, name)
	return uint16(len(o.names) - 1)
}

// NumNames returns the size of the name table.
func (o *Object) NumNames() int { return len(o.names) }

// NameAt returns name i.
func (o *Object) NameAt(i int) string { return o.names[i] }

// AddLocal declares a local variable and returns its slot. Declaring an
// existing name returns the existing slot.
func (o *Object) AddLocal(name string) uint16 {
	o.checkMutable()
	if i, ok := o.LocalIndex(name); ok {
		return uint16(i)
	}
	o.locals = append(o.locals, strings.ToUpper(name))
	return uint16(len(o.locals) - 1)
}

// LocalNames returns the declared local variable names.
func (o *Object) LocalNames() []string { return append([]string(nil), o.locals...) }

// NumLocals returns the number of declared locals.
func (o *Object) NumLocals() int { return len(o.locals) }

// LocalIndex looks up a local by name.
func (o *Object) LocalIndex(name string) (int, bool) {
	for i, l := range o.locals {
		if strings.EqualFold(l, name) {
			return i, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Subroutine values
// ---------------------------------------------------------------------------

// SubroutineValue is the script value of a compiled subroutine. It appears
// in literal tables and global variables; package vm knows how to call it.
type SubroutineValue struct {
	Object *Object
}

func (*SubroutineValue) Kind() value.Kind { return value.KindCallable }

func (s *SubroutineValue) String() string { return "#<sub:" + s.Object.Name() + ">" }

// IsSerializable implements value.Serializable.
func (*SubroutineValue) IsSerializable() bool { return true }
