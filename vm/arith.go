package vm

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/chazu/c2script/pkg/bytecode"
	"github.com/chazu/c2script/pkg/value"
)

// ---------------------------------------------------------------------------
// Number helpers
// ---------------------------------------------------------------------------

// number is a numeric operand; booleans count as the integers 0 and 1.
type number struct {
	i     int64
	f     float64
	isInt bool
}

func toNumber(v value.Value) (number, bool) {
	switch x := v.(type) {
	case value.Int:
		return number{i: int64(x), f: float64(x), isInt: true}, true
	case value.Bool:
		if x {
			return number{i: 1, f: 1, isInt: true}, true
		}
		return number{isInt: true}, true
	case value.Float:
		return number{f: float64(x)}, true
	}
	return number{}, false
}

// makeInt returns an Int when n fits into 32 bits, a Float otherwise.
func makeInt(n int64) value.Value {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return value.Float(n)
	}
	return value.Int(n)
}

func numbers(what string, a, b value.Value) (number, number, error) {
	x, ok := toNumber(a)
	if !ok {
		return number{}, number{}, typeError(what, a)
	}
	y, ok := toNumber(b)
	if !ok {
		return number{}, number{}, typeError(what, b)
	}
	return x, y, nil
}

// ---------------------------------------------------------------------------
// Unary
// ---------------------------------------------------------------------------

func unaryOp(op bytecode.UnaryOp, v value.Value) (value.Value, error) {
	switch op {
	case bytecode.UnNot:
		switch value.Truth(v) {
		case value.True:
			return value.Bool(false), nil
		case value.False:
			return value.Bool(true), nil
		}
		return nil, nil
	case bytecode.UnBool:
		return value.FromTristate(value.Truth(v)), nil
	case bytecode.UnIsEmpty:
		return value.Bool(v == nil), nil
	case bytecode.UnIsNum:
		_, isInt := v.(value.Int)
		_, isFloat := v.(value.Float)
		return value.Bool(isInt || isFloat), nil
	case bytecode.UnIsString:
		_, ok := v.(value.String)
		return value.Bool(ok), nil
	}

	if v == nil {
		return nil, nil
	}

	switch op {
	case bytecode.UnStr:
		return value.String(v.String()), nil
	case bytecode.UnLen:
		switch x := v.(type) {
		case value.String:
			return value.Int(utf8.RuneCountInString(string(x))), nil
		case *value.Array:
			return value.Int(x.Len()), nil
		case *value.Hash:
			return value.Int(x.Len()), nil
		}
		return nil, typeError("len", v)
	}

	n, ok := toNumber(v)
	if !ok {
		return nil, typeError(op.String(), v)
	}
	switch op {
	case bytecode.UnNeg:
		if n.isInt {
			return makeInt(-n.i), nil
		}
		return value.Float(-n.f), nil
	case bytecode.UnPos:
		if n.isInt {
			return value.Int(n.i), nil
		}
		return value.Float(n.f), nil
	case bytecode.UnAbs:
		if n.isInt {
			if n.i < 0 {
				return makeInt(-n.i), nil
			}
			return value.Int(n.i), nil
		}
		return value.Float(math.Abs(n.f)), nil
	case bytecode.UnInc:
		if n.isInt {
			return makeInt(n.i + 1), nil
		}
		return value.Float(n.f + 1), nil
	case bytecode.UnDec:
		if n.isInt {
			return makeInt(n.i - 1), nil
		}
		return value.Float(n.f - 1), nil
	}
	return nil, newError(ErrInvalidOpcode, "invalid unary operation %d", uint8(op))
}

// ---------------------------------------------------------------------------
// Binary
// ---------------------------------------------------------------------------

func binaryOp(op bytecode.BinaryOp, a, b value.Value) (value.Value, error) {
	switch op {
	case bytecode.BiAnd, bytecode.BiOr, bytecode.BiXor:
		return logicOp(op, value.Truth(a), value.Truth(b)), nil
	case bytecode.BiConcatEmpty:
		return value.String(value.ToString(a) + value.ToString(b)), nil
	}

	if a == nil || b == nil {
		return nil, nil
	}

	switch op {
	case bytecode.BiConcat:
		return value.String(a.String() + b.String()), nil
	case bytecode.BiFindStr:
		sa, ok1 := a.(value.String)
		sb, ok2 := b.(value.String)
		if !ok1 || !ok2 {
			return nil, newError(ErrTypeMismatch, "type mismatch: findstr expects strings")
		}
		idx := strings.Index(strings.ToUpper(string(sa)), strings.ToUpper(string(sb)))
		if idx < 0 {
			return value.Int(0), nil
		}
		return value.Int(utf8.RuneCountInString(string(sa)[:idx]) + 1), nil
	case bytecode.BiCompareEQ, bytecode.BiCompareNE, bytecode.BiCompareLT,
		bytecode.BiCompareLE, bytecode.BiCompareGT, bytecode.BiCompareGE:
		c, err := compare(op.String(), a, b)
		if err != nil {
			return nil, err
		}
		return value.Bool(comparisonHolds(op, c)), nil
	case bytecode.BiMin, bytecode.BiMax:
		c, err := compare(op.String(), a, b)
		if err != nil {
			return nil, err
		}
		if (op == bytecode.BiMin) == (c <= 0) {
			return a, nil
		}
		return b, nil
	case bytecode.BiAdd:
		if sa, ok := a.(value.String); ok {
			sb, ok := b.(value.String)
			if !ok {
				return nil, typeError("add", b)
			}
			return sa + sb, nil
		}
	}
	return arithmetic(op, a, b)
}

func arithmetic(op bytecode.BinaryOp, a, b value.Value) (value.Value, error) {
	x, y, err := numbers(op.String(), a, b)
	if err != nil {
		return nil, err
	}
	both := x.isInt && y.isInt
	switch op {
	case bytecode.BiAdd:
		if both {
			return makeInt(x.i + y.i), nil
		}
		return value.Float(x.f + y.f), nil
	case bytecode.BiSub:
		if both {
			return makeInt(x.i - y.i), nil
		}
		return value.Float(x.f - y.f), nil
	case bytecode.BiMult:
		if both {
			return makeInt(x.i * y.i), nil
		}
		return value.Float(x.f * y.f), nil
	case bytecode.BiDivide:
		if y.f == 0 {
			return nil, newError(ErrDivisionByZero, "division by zero")
		}
		if both && x.i%y.i == 0 {
			return makeInt(x.i / y.i), nil
		}
		return value.Float(x.f / y.f), nil
	case bytecode.BiIntDivide, bytecode.BiRemainder:
		if !both {
			return nil, newError(ErrTypeMismatch, "type mismatch: %s expects integers", op)
		}
		if y.i == 0 {
			return nil, newError(ErrDivisionByZero, "division by zero")
		}
		if op == bytecode.BiIntDivide {
			return makeInt(x.i / y.i), nil
		}
		return makeInt(x.i % y.i), nil
	case bytecode.BiPow:
		if both && y.i >= 0 {
			r := math.Pow(x.f, y.f)
			if r >= math.MinInt32 && r <= math.MaxInt32 {
				return value.Int(int64(r)), nil
			}
			return value.Float(r), nil
		}
		return value.Float(math.Pow(x.f, y.f)), nil
	}
	return nil, newError(ErrInvalidOpcode, "invalid binary operation %d", uint8(op))
}

// logicOp implements three-valued and/or/xor.
func logicOp(op bytecode.BinaryOp, a, b value.Tristate) value.Value {
	switch op {
	case bytecode.BiAnd:
		if a == value.False || b == value.False {
			return value.Bool(false)
		}
		if a == value.Empty || b == value.Empty {
			return nil
		}
		return value.Bool(true)
	case bytecode.BiOr:
		if a == value.True || b == value.True {
			return value.Bool(true)
		}
		if a == value.Empty || b == value.Empty {
			return nil
		}
		return value.Bool(false)
	default:
		if a == value.Empty || b == value.Empty {
			return nil
		}
		return value.Bool(a != b)
	}
}

// compare orders two non-empty scalars. Strings compare case-insensitively.
func compare(what string, a, b value.Value) (int, error) {
	if sa, ok := a.(value.String); ok {
		sb, ok := b.(value.String)
		if !ok {
			return 0, typeError(what, b)
		}
		return strings.Compare(strings.ToUpper(string(sa)), strings.ToUpper(string(sb))), nil
	}
	x, y, err := numbers(what, a, b)
	if err != nil {
		return 0, err
	}
	switch {
	case x.f < y.f:
		return -1, nil
	case x.f > y.f:
		return 1, nil
	}
	return 0, nil
}

func comparisonHolds(op bytecode.BinaryOp, c int) bool {
	switch op {
	case bytecode.BiCompareEQ:
		return c == 0
	case bytecode.BiCompareNE:
		return c != 0
	case bytecode.BiCompareLT:
		return c < 0
	case bytecode.BiCompareLE:
		return c <= 0
	case bytecode.BiCompareGT:
		return c > 0
	default:
		return c >= 0
	}
}

// ---------------------------------------------------------------------------
// Ternary
// ---------------------------------------------------------------------------

func ternaryOp(op bytecode.TernaryOp, a, b, c value.Value) (value.Value, error) {
	if a == nil || b == nil || c == nil {
		return nil, nil
	}
	s, ok := a.(value.String)
	if !ok {
		return nil, typeError(op.String(), a)
	}
	switch op {
	case bytecode.TerMid:
		start, ok1 := toNumber(b)
		n, ok2 := toNumber(c)
		if !ok1 || !ok2 || !start.isInt || !n.isInt {
			return nil, newError(ErrTypeMismatch, "type mismatch: mid expects integer positions")
		}
		return value.String(mid(string(s), int(start.i), int(n.i))), nil
	case bytecode.TerReplace:
		from, ok1 := b.(value.String)
		to, ok2 := c.(value.String)
		if !ok1 || !ok2 {
			return nil, newError(ErrTypeMismatch, "type mismatch: replace expects strings")
		}
		if from == "" {
			return s, nil
		}
		return value.String(strings.ReplaceAll(string(s), string(from), string(to))), nil
	}
	return nil, newError(ErrInvalidOpcode, "invalid ternary operation %d", uint8(op))
}

// mid returns up to n runes of s starting at the 1-based position start.
func mid(s string, start, n int) string {
	runes := []rune(s)
	if start < 1 {
		start = 1
	}
	if n < 0 || start > len(runes) {
		return ""
	}
	end := start - 1 + n
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start-1 : end])
}
