package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/c2script/pkg/value"
)

// Disassemble returns a human-readable listing of the object. Fused
// instructions are shown in their canonical form.
func (o *Object) Disassemble() string {
	var sb strings.Builder

	kind := "procedure"
	if !o.procedure {
		kind = "function"
	}
	args := fmt.Sprintf("%d..%d", o.minArgs, o.maxArgs)
	if o.varargs {
		args += "+"
	}
	sb.WriteString(fmt.Sprintf("; sub %s (%s, args %s)\n", o.name, kind, args))
	if o.file != "" {
		sb.WriteString(fmt.Sprintf("; file %s\n", o.file))
	}

	if len(o.locals) > 0 {
		sb.WriteString("; locals: " + strings.Join(o.locals, ", ") + "\n")
	}
	if len(o.literals) > 0 {
		sb.WriteString("; literals:\n")
		for i, l := range o.literals {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, displayLiteral(l)))
		}
	}
	if len(o.names) > 0 {
		sb.WriteString("; names:\n")
		for i, n := range o.names {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, n))
		}
	}

	for pc, op := range o.code {
		line := op.String()
		if note := o.annotate(op.Canonical()); note != "" {
			sb.WriteString(fmt.Sprintf("%04d  %-28s ; %s\n", pc, line, note))
		} else {
			sb.WriteString(fmt.Sprintf("%04d  %s\n", pc, line))
		}
	}
	return sb.String()
}

// DisassembleInstruction renders the instruction at pc with resolved
// operands, as used by execution traces.
func (o *Object) DisassembleInstruction(pc int) string {
	if pc < 0 || pc >= len(o.code) {
		return "<end of code>"
	}
	op := o.code[pc]
	if note := o.annotate(op.Canonical()); note != "" {
		return op.String() + " ; " + note
	}
	return op.String()
}

// annotate returns a comment resolving op's operand against the tables.
func (o *Object) annotate(op Opcode) string {
	idx := int(op.Arg)
	switch op.Major {
	case MajorDim:
		return o.nameOrBad(idx)
	case MajorPush, MajorPop, MajorStore:
		switch Scope(op.Minor) {
		case ScopeNamedVariable, ScopeNamedShared:
			return o.nameOrBad(idx)
		case ScopeLocal:
			if idx < len(o.locals) {
				return o.locals[idx]
			}
		case ScopeLiteral:
			if idx < len(o.literals) {
				return displayLiteral(o.literals[idx])
			}
			return "<bad literal>"
		}
	case MajorMemref:
		return o.nameOrBad(idx)
	case MajorSpecial:
		if SpecialOp(op.Minor) == SpecialDefSub {
			return o.nameOrBad(idx)
		}
	}
	return ""
}

func (o *Object) nameOrBad(idx int) string {
	if idx < len(o.names) {
		return o.names[idx]
	}
	return "<bad name>"
}

func displayLiteral(v value.Value) string {
	switch x := v.(type) {
	case nil:
		return "EMPTY"
	case value.String:
		s := string(x)
		if len(s) > 40 {
			s = s[:37] + "..."
		}
		return strconv.Quote(s)
	default:
		return x.String()
	}
}
