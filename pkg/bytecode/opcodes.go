package bytecode

import "fmt"

// Major is the instruction category.
type Major uint8

const (
	// ========================================================================
	// Canonical majors. These are the only majors that may be encoded.
	// ========================================================================

	MajorPush     Major = 0  // Push variable: minor=scope, arg=address
	MajorBinary   Major = 1  // Binary operation: minor=BinaryOp
	MajorUnary    Major = 2  // Unary operation: minor=UnaryOp
	MajorTernary  Major = 3  // Ternary operation: minor=TernaryOp
	MajorJump     Major = 4  // Jump: minor=JumpFlags, arg=target
	MajorIndirect Major = 5  // Call/load/store/pop through value: minor=IndirectMode, arg=argc
	MajorStack    Major = 6  // Stack manipulation: minor=StackOp, arg=count
	MajorPop      Major = 7  // Pop into variable: minor=scope, arg=address
	MajorStore    Major = 8  // Store into variable (keep value): minor=scope, arg=address
	MajorMemref   Major = 9  // Member reference: minor=IndirectMode, arg=name
	MajorDim      Major = 10 // Declare variable: minor=scope, arg=name
	MajorSpecial  Major = 11 // Special instruction: minor=SpecialOp

	numCanonicalMajors = 12

	// ========================================================================
	// Fused majors, produced only by Optimize.
	// ========================================================================

	MajorFusedUnary       Major = 12 // push + unary
	MajorFusedBinary      Major = 13 // push + binary
	MajorFusedComparison  Major = 14 // binary + jump
	MajorFusedComparison2 Major = 15 // push + binary + jump
	MajorInplaceUnary     Major = 16 // push local + unary, value updated in place

	numMajors = 17
)

var majorNames = [numMajors]string{
	MajorPush:             "push",
	MajorBinary:           "binary",
	MajorUnary:            "unary",
	MajorTernary:          "ternary",
	MajorJump:             "jump",
	MajorIndirect:         "indirect",
	MajorStack:            "stack",
	MajorPop:              "pop",
	MajorStore:            "store",
	MajorMemref:           "memref",
	MajorDim:              "dim",
	MajorSpecial:          "special",
	MajorFusedUnary:       "fused-unary",
	MajorFusedBinary:      "fused-binary",
	MajorFusedComparison:  "fused-comparison",
	MajorFusedComparison2: "fused-comparison2",
	MajorInplaceUnary:     "inplace-unary",
}

// String returns the mnemonic of the major.
func (m Major) String() string {
	if m < numMajors {
		return majorNames[m]
	}
	return fmt.Sprintf("major(%d)", uint8(m))
}

// IsValid reports whether m is a known major (canonical or fused).
func (m Major) IsValid() bool { return m < numMajors }

// IsFused reports whether m is an optimizer-only major.
func (m Major) IsFused() bool { return m >= numCanonicalMajors && m < numMajors }

// External returns the canonical major an observer sees for m. Fused majors
// keep the minor and operand of the first instruction of their sequence, so
// mapping the major back is enough to recover the unfused instruction.
func (m Major) External() Major {
	switch m {
	case MajorFusedUnary, MajorFusedBinary, MajorFusedComparison2, MajorInplaceUnary:
		return MajorPush
	case MajorFusedComparison:
		return MajorBinary
	default:
		return m
	}
}

// FusedLength returns how many instructions a fused major covers (1 for
// canonical majors).
func (m Major) FusedLength() int {
	switch m {
	case MajorFusedUnary, MajorFusedBinary, MajorFusedComparison, MajorInplaceUnary:
		return 2
	case MajorFusedComparison2:
		return 3
	default:
		return 1
	}
}

// ---------------------------------------------------------------------------
// Scopes (minor of Push/Pop/Store/Dim)
// ---------------------------------------------------------------------------

// Scope selects the variable space addressed by a Push/Pop/Store/Dim.
type Scope uint8

const (
	ScopeNamedVariable Scope = 0 // arg = name index, resolved at runtime
	ScopeLocal         Scope = 1 // arg = local slot in the current frame
	ScopeStatic        Scope = 2 // arg = local slot in the outermost frame
	ScopeShared        Scope = 3 // arg = global slot
	ScopeNamedShared   Scope = 4 // arg = name index, global by name
	ScopeLiteral       Scope = 5 // arg = literal index (push only)
	ScopeInteger       Scope = 6 // arg = signed 16-bit immediate (push only)
	ScopeBoolean       Scope = 7 // arg = 0, 1, or BooleanEmpty (push only)

	numScopes = 8
)

// BooleanEmpty is the ScopeBoolean operand that pushes the empty value.
const BooleanEmpty uint16 = 0xFFFF

var scopeNames = [numScopes]string{
	ScopeNamedVariable: "var",
	ScopeLocal:         "loc",
	ScopeStatic:        "static",
	ScopeShared:        "shared",
	ScopeNamedShared:   "gvar",
	ScopeLiteral:       "lit",
	ScopeInteger:       "int",
	ScopeBoolean:       "bool",
}

func (s Scope) String() string {
	if s < numScopes {
		return scopeNames[s]
	}
	return fmt.Sprintf("scope(%d)", uint8(s))
}

// IsAssignable reports whether Pop/Store/Dim accept the scope.
func (s Scope) IsAssignable() bool { return s <= ScopeNamedShared }

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// UnaryOp is the minor of a Unary instruction.
type UnaryOp uint8

const (
	UnNot UnaryOp = iota
	UnBool
	UnNeg
	UnPos
	UnAbs
	UnIsEmpty
	UnIsNum
	UnIsString
	UnStr
	UnLen
	UnInc
	UnDec

	numUnaryOps
)

var unaryNames = [numUnaryOps]string{
	"not", "bool", "neg", "pos", "abs", "isempty", "isnum", "isstr", "str", "len", "inc", "dec",
}

func (u UnaryOp) String() string {
	if u < numUnaryOps {
		return unaryNames[u]
	}
	return fmt.Sprintf("unary(%d)", uint8(u))
}

// BinaryOp is the minor of a Binary instruction.
type BinaryOp uint8

const (
	BiAdd BinaryOp = iota
	BiSub
	BiMult
	BiDivide
	BiIntDivide
	BiRemainder
	BiPow
	BiConcat
	BiConcatEmpty
	BiAnd
	BiOr
	BiXor
	BiCompareEQ
	BiCompareNE
	BiCompareLT
	BiCompareLE
	BiCompareGT
	BiCompareGE
	BiMin
	BiMax
	BiFindStr

	numBinaryOps
)

var binaryNames = [numBinaryOps]string{
	"add", "sub", "mul", "div", "idiv", "rem", "pow", "concat", "concatempty",
	"and", "or", "xor", "eq", "ne", "lt", "le", "gt", "ge", "min", "max", "findstr",
}

func (b BinaryOp) String() string {
	if b < numBinaryOps {
		return binaryNames[b]
	}
	return fmt.Sprintf("binary(%d)", uint8(b))
}

// IsComparison reports whether b is one of the Compare operators.
func (b BinaryOp) IsComparison() bool { return b >= BiCompareEQ && b <= BiCompareGE }

// TernaryOp is the minor of a Ternary instruction.
type TernaryOp uint8

const (
	TerMid TernaryOp = iota
	TerReplace

	numTernaryOps
)

var ternaryNames = [numTernaryOps]string{"mid", "replace"}

func (t TernaryOp) String() string {
	if t < numTernaryOps {
		return ternaryNames[t]
	}
	return fmt.Sprintf("ternary(%d)", uint8(t))
}

// ---------------------------------------------------------------------------
// Jumps
// ---------------------------------------------------------------------------

// Jump minors. The low three bits are conditions evaluated against the top
// of stack; all three together form an unconditional jump, none of them a
// label. JumpCatch and JumpDecZero are the non-regular kinds.
const (
	JumpIfTrue    uint8 = 1
	JumpIfFalse   uint8 = 2
	JumpIfEmpty   uint8 = 4
	JumpAlways    uint8 = JumpIfTrue | JumpIfFalse | JumpIfEmpty
	JumpPopAlways uint8 = 8
	JumpSymbolic  uint8 = 16 // operand is a label id, not an address
	JumpCatch     uint8 = 32
	JumpDecZero   uint8 = 64

	jumpConditionMask = JumpAlways
	jumpRegularMask   = JumpAlways | JumpPopAlways
	jumpKindMask      = JumpCatch | JumpDecZero
)

// ---------------------------------------------------------------------------
// Indirect / member reference
// ---------------------------------------------------------------------------

// IndirectMode is the low part of an Indirect or Memref minor.
type IndirectMode uint8

const (
	IndirectCall  IndirectMode = 0
	IndirectLoad  IndirectMode = 1
	IndirectStore IndirectMode = 2
	IndirectPop   IndirectMode = 3

	indirectModeMask uint8 = 3
)

// Filter bits of Indirect/Memref minors.
const (
	RefuseFunctions  uint8 = 4
	RefuseProcedures uint8 = 8
)

var indirectNames = [4]string{"call", "load", "store", "pop"}

func (m IndirectMode) String() string {
	if int(m) < len(indirectNames) {
		return indirectNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ---------------------------------------------------------------------------
// Stack and special
// ---------------------------------------------------------------------------

// StackOp is the minor of a Stack instruction.
type StackOp uint8

const (
	StackDup  StackOp = 0 // push copy of element at depth arg (0 = top)
	StackDrop StackOp = 1 // drop arg elements
	StackSwap StackOp = 2 // swap top with element at depth arg

	numStackOps = 3
)

var stackNames = [numStackOps]string{"dup", "drop", "swap"}

func (s StackOp) String() string {
	if s < numStackOps {
		return stackNames[s]
	}
	return fmt.Sprintf("stack(%d)", uint8(s))
}

// SpecialOp is the minor of a Special instruction.
type SpecialOp uint8

const (
	SpecialUncatch SpecialOp = iota
	SpecialReturn
	SpecialWith
	SpecialEndWith
	SpecialFirstIndex
	SpecialNextIndex
	SpecialEndIndex
	SpecialEvalStatement
	SpecialEvalExpr
	SpecialDefSub
	SpecialSuspend
	SpecialTerminate
	SpecialThrow
	SpecialNewArray
	SpecialNewHash
	SpecialInstance
	SpecialBind
	SpecialFreeze

	numSpecialOps
)

var specialNames = [numSpecialOps]string{
	"uncatch", "return", "with", "endwith", "firstindex", "nextindex", "endindex",
	"evals", "evalx", "defsub", "suspend", "terminate", "throw", "newarray",
	"newhash", "instance", "bind", "freeze",
}

func (s SpecialOp) String() string {
	if s < numSpecialOps {
		return specialNames[s]
	}
	return fmt.Sprintf("special(%d)", uint8(s))
}

// ---------------------------------------------------------------------------
// Opcode
// ---------------------------------------------------------------------------

// Opcode is a single instruction.
type Opcode struct {
	Major Major
	Minor uint8
	Arg   uint16
}

// Canonical returns the instruction as an external observer sees it.
func (o Opcode) Canonical() Opcode {
	return Opcode{Major: o.Major.External(), Minor: o.Minor, Arg: o.Arg}
}

// IsRegularJump reports whether o is a conditional/unconditional jump or a
// label (as opposed to catch or decrement-and-jump).
func (o Opcode) IsRegularJump() bool {
	return o.Major == MajorJump && o.Minor&jumpKindMask == 0
}

// IsLabel reports whether o is a relocation-only label.
func (o Opcode) IsLabel() bool {
	return o.IsRegularJump() && o.Minor&jumpConditionMask == 0
}

// IsJumpOrCatch reports whether o's operand is a code address (or label id).
func (o Opcode) IsJumpOrCatch() bool {
	return o.Major == MajorJump && !o.IsLabel()
}

// IsSymbolic reports whether o's jump operand is still a label id.
func (o Opcode) IsSymbolic() bool {
	return o.Major == MajorJump && o.Minor&JumpSymbolic != 0
}

// IntArg returns the operand interpreted as a signed 16-bit value.
func (o Opcode) IntArg() int { return int(int16(o.Arg)) }

// String renders the canonical form of o in assembler syntax. Operands that
// refer to tables are printed as raw indexes; use Object.Disassemble for
// resolved names.
func (o Opcode) String() string {
	c := o.Canonical()
	switch c.Major {
	case MajorPush, MajorPop, MajorStore, MajorDim:
		if c.Major == MajorPush && Scope(c.Minor) == ScopeInteger {
			return fmt.Sprintf("%s %s %d", c.Major, Scope(c.Minor), c.IntArg())
		}
		return fmt.Sprintf("%s %s %d", c.Major, Scope(c.Minor), c.Arg)
	case MajorBinary:
		return fmt.Sprintf("binary %s", BinaryOp(c.Minor))
	case MajorUnary:
		return fmt.Sprintf("unary %s", UnaryOp(c.Minor))
	case MajorTernary:
		return fmt.Sprintf("ternary %s", TernaryOp(c.Minor))
	case MajorJump:
		return fmt.Sprintf("%s %d", jumpMnemonic(c.Minor), c.Arg)
	case MajorIndirect, MajorMemref:
		return fmt.Sprintf("%s %s %d", c.Major, indirectMnemonic(c.Minor), c.Arg)
	case MajorStack:
		return fmt.Sprintf("stack %s %d", StackOp(c.Minor), c.Arg)
	case MajorSpecial:
		return fmt.Sprintf("special %s %d", SpecialOp(c.Minor), c.Arg)
	default:
		return fmt.Sprintf("%s %d %d", c.Major, c.Minor, c.Arg)
	}
}

// jumpMnemonic renders a jump minor as used by the assembler: "jump
// iftrue,pop", "catch", "label", ...
func jumpMnemonic(minor uint8) string {
	sym := ""
	if minor&JumpSymbolic != 0 {
		sym = ",sym"
	}
	switch {
	case minor&JumpCatch != 0:
		return "catch" + sym
	case minor&JumpDecZero != 0:
		return "jdz" + sym
	case minor&jumpConditionMask == 0:
		return "label" + sym
	}
	cond := ""
	switch minor & jumpConditionMask {
	case JumpAlways:
		cond = "always"
	default:
		sep := ""
		for _, c := range []struct {
			bit  uint8
			name string
		}{{JumpIfTrue, "iftrue"}, {JumpIfFalse, "iffalse"}, {JumpIfEmpty, "ifempty"}} {
			if minor&c.bit != 0 {
				cond += sep + c.name
				sep = ","
			}
		}
	}
	if minor&JumpPopAlways != 0 {
		cond += ",pop"
	}
	return "jump " + cond + sym
}

func indirectMnemonic(minor uint8) string {
	s := IndirectMode(minor & indirectModeMask).String()
	if minor&RefuseFunctions != 0 {
		s += ",nofunc"
	}
	if minor&RefuseProcedures != 0 {
		s += ",noproc"
	}
	return s
}
