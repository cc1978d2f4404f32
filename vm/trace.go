package vm

import (
	"fmt"
	"io"

	"github.com/chazu/c2script/pkg/bytecode"
)

// TraceSink observes every instruction as it is executed. Fused sequences
// are reported as their canonical instructions.
type TraceSink interface {
	TraceInstruction(p *Process, obj *bytecode.Object, pc int, op bytecode.Opcode)
}

// TraceFunc adapts a function to TraceSink.
type TraceFunc func(p *Process, obj *bytecode.Object, pc int, op bytecode.Opcode)

func (fn TraceFunc) TraceInstruction(p *Process, obj *bytecode.Object, pc int, op bytecode.Opcode) {
	fn(p, obj, pc, op)
}

// NewTextTrace returns a sink that writes one line per instruction to w.
func NewTextTrace(w io.Writer) TraceSink {
	return TraceFunc(func(p *Process, obj *bytecode.Object, pc int, op bytecode.Opcode) {
		fmt.Fprintf(w, "[%d] %-12s %04d  %-28s depth=%d\n", p.ID(), obj.Name(), pc, op, len(p.stack))
	})
}
