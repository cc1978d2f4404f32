package vm

import (
	"strings"

	"github.com/chazu/c2script/pkg/bytecode"
	"github.com/chazu/c2script/pkg/value"
)

// Compiler turns source text into compiled units for the eval
// instructions. The statement compiler itself lives outside this package.
type Compiler interface {
	// CompileStatement compiles one or more statements into a procedure.
	CompileStatement(source string) (*bytecode.Object, error)
	// CompileExpression compiles a single expression into a function that
	// returns its value.
	CompileExpression(source string) (*bytecode.Object, error)
}

// World is the environment shared by all processes of a ProcessList:
// global variables and the compiler used by eval. Only the running process
// touches it, so it needs no locking.
type World struct {
	names   map[string]int
	globals []value.Value
	order   []string

	// Compiler is optional; without it eval raises ErrNotAvailable.
	Compiler Compiler
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{names: make(map[string]int)}
}

func globalKey(name string) string { return strings.ToUpper(name) }

// DefineGlobal creates the named global if needed, sets it to v, and returns
// its slot.
func (w *World) DefineGlobal(name string, v value.Value) int {
	key := globalKey(name)
	if idx, ok := w.names[key]; ok {
		w.globals[idx] = v
		return idx
	}
	idx := len(w.globals)
	w.names[key] = idx
	w.globals = append(w.globals, v)
	w.order = append(w.order, key)
	return idx
}

// dimGlobal creates the named global with initial value v unless it exists.
func (w *World) dimGlobal(name string, v value.Value) {
	if _, ok := w.names[globalKey(name)]; !ok {
		w.DefineGlobal(name, v)
	}
}

// GlobalIndex returns the slot of the named global.
func (w *World) GlobalIndex(name string) (int, bool) {
	idx, ok := w.names[globalKey(name)]
	return idx, ok
}

// Global returns the value of the named global.
func (w *World) Global(name string) (value.Value, bool) {
	idx, ok := w.names[globalKey(name)]
	if !ok {
		return nil, false
	}
	return w.globals[idx], true
}

// SetGlobal assigns an existing global.
func (w *World) SetGlobal(name string, v value.Value) error {
	idx, ok := w.names[globalKey(name)]
	if !ok {
		return newError(ErrUnknownIdentifier, "unknown identifier %s", globalKey(name))
	}
	w.globals[idx] = v
	return nil
}

// GlobalAt returns the global in slot idx.
func (w *World) GlobalAt(idx int) (value.Value, error) {
	if idx < 0 || idx >= len(w.globals) {
		return nil, newError(ErrRangeError, "global slot %d out of range", idx)
	}
	return w.globals[idx], nil
}

// SetGlobalAt assigns the global in slot idx.
func (w *World) SetGlobalAt(idx int, v value.Value) error {
	if idx < 0 || idx >= len(w.globals) {
		return newError(ErrRangeError, "global slot %d out of range", idx)
	}
	w.globals[idx] = v
	return nil
}

// GlobalNames returns the names of all globals in definition order.
func (w *World) GlobalNames() []string {
	return append([]string(nil), w.order...)
}

// DefineNative registers a native callable as a global.
func (w *World) DefineNative(name string, procedure bool, fn NativeFunc) {
	w.DefineGlobal(name, &Native{Name: globalKey(name), Procedure: procedure, Fn: fn})
}
