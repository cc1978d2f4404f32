package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/c2script/pkg/value"
)

// Assemble parses assembler source into compiled units, one per .sub
// block. The returned objects are relocated but not optimized or frozen.
//
// Syntax, one statement per line (";" starts a comment):
//
//	.sub NAME [function]      start a unit (procedure unless "function")
//	.args MIN MAX [varargs]   argument counts
//	.local NAME               declare a local variable
//	.end                      finish the unit
//	NAME:                     define a label
//	push|pop|store SCOPE X    X: name (var, gvar, loc), slot, immediate, literal
//	dim SCOPE NAME
//	unary|binary|ternary OP
//	jump COND[,COND][,pop] L  COND: always, iftrue, iffalse, ifempty
//	catch L / jdz L
//	indirect|memref MODE[,nofunc][,noproc] N
//	stack dup|drop|swap N
//	special OP [ARG]
//
// Literal operands of "push lit" are a quoted string, a number, "sub NAME"
// (another unit of the same source) or "type NAME FIELD...".
func Assemble(r io.Reader) ([]*Object, error) {
	a := &assembler{units: make(map[string]*Object)}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		a.line++
		if err := a.statement(sc.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", a.line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if a.cur != nil {
		return nil, fmt.Errorf("line %d: missing .end for %s", a.line, a.cur.Name())
	}
	for _, f := range a.fixups {
		target, ok := a.units[f.name]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown subroutine %s", f.line, f.name)
		}
		f.sub.Object = target
	}
	return a.order, nil
}

// AssembleString is Assemble for in-memory source.
func AssembleString(src string) ([]*Object, error) {
	return Assemble(strings.NewReader(src))
}

type subFixup struct {
	sub  *SubroutineValue
	name string
	line int
}

type assembler struct {
	line   int
	cur    *Object
	labels map[string]uint16
	units  map[string]*Object
	order  []*Object
	fixups []subFixup
}

func (a *assembler) statement(text string) error {
	if i := commentIndex(text); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, ".") {
		return a.directive(strings.Fields(text))
	}
	if a.cur == nil {
		return fmt.Errorf("instruction outside .sub")
	}
	if strings.HasSuffix(text, ":") && !strings.ContainsAny(text, " \t") {
		a.cur.AddLabel(a.label(strings.TrimSuffix(text, ":")))
		return nil
	}

	mnemonic, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)
	switch mnemonic {
	case "push", "pop", "store":
		return a.variable(mnemonic, rest)
	case "dim":
		scope, name, ok := strings.Cut(rest, " ")
		if !ok {
			return fmt.Errorf("dim needs scope and name")
		}
		s, err := parseScope(scope)
		if err != nil {
			return err
		}
		if !s.IsAssignable() {
			return fmt.Errorf("cannot dim in scope %s", s)
		}
		a.cur.AddInstruction(MajorDim, uint8(s), a.cur.AddName(strings.TrimSpace(name)))
	case "unary":
		op, err := lookupName(rest, unaryNames[:])
		if err != nil {
			return err
		}
		a.cur.AddInstruction(MajorUnary, uint8(op), 0)
	case "binary":
		op, err := lookupName(rest, binaryNames[:])
		if err != nil {
			return err
		}
		a.cur.AddInstruction(MajorBinary, uint8(op), 0)
	case "ternary":
		op, err := lookupName(rest, ternaryNames[:])
		if err != nil {
			return err
		}
		a.cur.AddInstruction(MajorTernary, uint8(op), 0)
	case "jump":
		cond, target, ok := strings.Cut(rest, " ")
		if !ok {
			return fmt.Errorf("jump needs condition and label")
		}
		flags, err := parseJumpFlags(cond)
		if err != nil {
			return err
		}
		a.cur.AddJump(flags, a.label(strings.TrimSpace(target)))
	case "catch":
		a.cur.AddJump(JumpCatch, a.label(rest))
	case "jdz":
		a.cur.AddJump(JumpDecZero, a.label(rest))
	case "indirect", "memref":
		mode, arg, ok := strings.Cut(rest, " ")
		if !ok {
			return fmt.Errorf("%s needs mode and operand", mnemonic)
		}
		minor, err := parseIndirectMode(mode)
		if err != nil {
			return err
		}
		arg = strings.TrimSpace(arg)
		if mnemonic == "memref" {
			a.cur.AddInstruction(MajorMemref, minor, a.cur.AddName(arg))
			return nil
		}
		n, err := parseUint16(arg)
		if err != nil {
			return err
		}
		a.cur.AddInstruction(MajorIndirect, minor, n)
	case "stack":
		name, arg, _ := strings.Cut(rest, " ")
		op, err := lookupName(name, stackNames[:])
		if err != nil {
			return err
		}
		n, err := parseUint16(strings.TrimSpace(arg))
		if err != nil {
			return err
		}
		a.cur.AddInstruction(MajorStack, uint8(op), n)
	case "special":
		name, arg, _ := strings.Cut(rest, " ")
		op, err := lookupName(name, specialNames[:])
		if err != nil {
			return err
		}
		arg = strings.TrimSpace(arg)
		var n uint16
		switch {
		case SpecialOp(op) == SpecialDefSub:
			if arg == "" {
				return fmt.Errorf("defsub needs a name")
			}
			n = a.cur.AddName(arg)
		case arg != "":
			if n, err = parseUint16(arg); err != nil {
				return err
			}
		}
		a.cur.AddInstruction(MajorSpecial, uint8(op), n)
	default:
		return fmt.Errorf("unknown mnemonic %q", mnemonic)
	}
	return nil
}

func (a *assembler) directive(f []string) error {
	switch f[0] {
	case ".sub":
		if a.cur != nil {
			return fmt.Errorf(".sub inside %s", a.cur.Name())
		}
		if len(f) < 2 {
			return fmt.Errorf(".sub needs a name")
		}
		name := strings.ToUpper(f[1])
		if _, dup := a.units[name]; dup {
			return fmt.Errorf("duplicate subroutine %s", name)
		}
		a.cur = NewObject(name)
		a.labels = make(map[string]uint16)
		if len(f) > 2 && f[2] == "function" {
			a.cur.SetProcedure(false)
		}
		a.units[name] = a.cur
		a.order = append(a.order, a.cur)
	case ".args":
		if a.cur == nil || len(f) < 3 {
			return fmt.Errorf("usage: .args MIN MAX [varargs]")
		}
		lo, err1 := strconv.Atoi(f[1])
		hi, err2 := strconv.Atoi(f[2])
		if err1 != nil || err2 != nil || lo < 0 || hi < lo {
			return fmt.Errorf("bad argument counts")
		}
		a.cur.SetArgs(lo, hi, len(f) > 3 && f[3] == "varargs")
	case ".local":
		if a.cur == nil || len(f) != 2 {
			return fmt.Errorf("usage: .local NAME")
		}
		a.cur.AddLocal(f[1])
	case ".end":
		if a.cur == nil {
			return fmt.Errorf(".end without .sub")
		}
		if err := a.cur.Relocate(); err != nil {
			return err
		}
		a.cur = nil
	default:
		return fmt.Errorf("unknown directive %s", f[0])
	}
	return nil
}

func (a *assembler) label(name string) uint16 {
	name = strings.ToUpper(name)
	if id, ok := a.labels[name]; ok {
		return id
	}
	id := a.cur.MakeLabel()
	a.labels[name] = id
	return id
}

func (a *assembler) variable(mnemonic, rest string) error {
	scopeName, operand, _ := strings.Cut(rest, " ")
	operand = strings.TrimSpace(operand)
	s, err := parseScope(scopeName)
	if err != nil {
		return err
	}
	major := MajorPush
	switch mnemonic {
	case "pop":
		major = MajorPop
	case "store":
		major = MajorStore
	}
	if major != MajorPush && !s.IsAssignable() {
		return fmt.Errorf("cannot %s to scope %s", mnemonic, s)
	}

	var arg uint16
	switch s {
	case ScopeNamedVariable, ScopeNamedShared:
		arg = a.cur.AddName(operand)
	case ScopeLocal:
		if n, err := parseUint16(operand); err == nil {
			arg = n
		} else {
			arg = a.cur.AddLocal(operand)
		}
	case ScopeStatic, ScopeShared:
		if arg, err = parseUint16(operand); err != nil {
			return err
		}
	case ScopeInteger:
		n, err := strconv.ParseInt(operand, 0, 16)
		if err != nil {
			return fmt.Errorf("bad integer immediate %q", operand)
		}
		arg = uint16(int16(n))
	case ScopeBoolean:
		switch strings.ToLower(operand) {
		case "true":
			arg = 1
		case "false":
			arg = 0
		case "empty":
			arg = BooleanEmpty
		default:
			return fmt.Errorf("bad boolean %q", operand)
		}
	case ScopeLiteral:
		v, err := a.literal(operand)
		if err != nil {
			return err
		}
		arg = a.cur.AddLiteral(v)
	}
	a.cur.AddInstruction(major, uint8(s), arg)
	return nil
}

func (a *assembler) literal(text string) (value.Value, error) {
	switch {
	case strings.HasPrefix(text, `"`):
		s, err := strconv.Unquote(text)
		if err != nil {
			return nil, fmt.Errorf("bad string literal: %w", err)
		}
		return value.String(s), nil
	case strings.HasPrefix(text, "sub "):
		sub := &SubroutineValue{}
		a.fixups = append(a.fixups, subFixup{sub: sub, name: strings.ToUpper(strings.TrimSpace(text[4:])), line: a.line})
		return sub, nil
	case strings.HasPrefix(text, "type "):
		f := strings.Fields(text[5:])
		if len(f) == 0 {
			return nil, fmt.Errorf("type literal needs a name")
		}
		fields := make([]string, len(f)-1)
		for i, n := range f[1:] {
			fields[i] = strings.ToUpper(n)
		}
		return &value.StructType{Name: strings.ToUpper(f[0]), Fields: fields}, nil
	}
	if i, err := strconv.ParseInt(text, 10, 32); err == nil {
		return value.Int(i), nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return value.Float(f), nil
	}
	return nil, fmt.Errorf("bad literal %q", text)
}

// ---------------------------------------------------------------------------
// Operand parsing
// ---------------------------------------------------------------------------

func commentIndex(s string) int {
	inString := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case ';':
			if !inString {
				return i
			}
		}
	}
	return -1
}

func parseScope(s string) (Scope, error) {
	for i, n := range scopeNames {
		if n == s {
			return Scope(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

func lookupName(s string, names []string) (int, error) {
	s = strings.TrimSpace(s)
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

func parseUint16(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("bad operand %q", s)
	}
	return uint16(n), nil
}

func parseJumpFlags(s string) (uint8, error) {
	var flags uint8
	for _, part := range strings.Split(s, ",") {
		switch part {
		case "always":
			flags |= JumpAlways
		case "iftrue":
			flags |= JumpIfTrue
		case "iffalse":
			flags |= JumpIfFalse
		case "ifempty":
			flags |= JumpIfEmpty
		case "pop":
			flags |= JumpPopAlways
		default:
			return 0, fmt.Errorf("unknown jump condition %q", part)
		}
	}
	if flags&jumpConditionMask == 0 {
		return 0, fmt.Errorf("jump without condition")
	}
	return flags, nil
}

func parseIndirectMode(s string) (uint8, error) {
	parts := strings.Split(s, ",")
	mode, err := lookupName(parts[0], indirectNames[:])
	if err != nil {
		return 0, err
	}
	minor := uint8(mode)
	for _, p := range parts[1:] {
		switch p {
		case "nofunc":
			minor |= RefuseFunctions
		case "noproc":
			minor |= RefuseProcedures
		default:
			return 0, fmt.Errorf("unknown filter %q", p)
		}
	}
	return minor, nil
}
