package vm

import (
	"errors"
	"testing"

	"github.com/chazu/c2script/pkg/bytecode"
	"github.com/chazu/c2script/pkg/value"
)

func TestUnaryOps(t *testing.T) {
	tests := []struct {
		op   bytecode.UnaryOp
		in   value.Value
		want value.Value
	}{
		{bytecode.UnNot, value.Bool(true), value.Bool(false)},
		{bytecode.UnNot, nil, nil},
		{bytecode.UnBool, value.Int(3), value.Bool(true)},
		{bytecode.UnBool, value.String(""), value.Bool(false)},
		{bytecode.UnNeg, value.Int(4), value.Int(-4)},
		{bytecode.UnNeg, value.Float(1.5), value.Float(-1.5)},
		{bytecode.UnNeg, nil, nil},
		{bytecode.UnAbs, value.Int(-7), value.Int(7)},
		{bytecode.UnIsEmpty, nil, value.Bool(true)},
		{bytecode.UnIsEmpty, value.Int(0), value.Bool(false)},
		{bytecode.UnIsNum, value.Float(2), value.Bool(true)},
		{bytecode.UnIsString, value.String("x"), value.Bool(true)},
		{bytecode.UnStr, value.Int(12), value.String("12")},
		{bytecode.UnLen, value.String("héllo"), value.Int(5)},
		{bytecode.UnLen, value.NewList(value.Int(1), value.Int(2)), value.Int(2)},
		{bytecode.UnInc, value.Int(1), value.Int(2)},
		{bytecode.UnDec, value.Float(1.5), value.Float(0.5)},
		{bytecode.UnInc, value.Int(2147483647), value.Float(2147483648)},
	}
	for _, tt := range tests {
		got, err := unaryOp(tt.op, tt.in)
		if err != nil {
			t.Errorf("%s(%v): %v", tt.op, tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s(%v) = %v, want %v", tt.op, tt.in, got, tt.want)
		}
	}
}

func TestUnaryTypeError(t *testing.T) {
	_, err := unaryOp(bytecode.UnNeg, value.String("x"))
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("err = %v, want type mismatch", err)
	}
}

func TestBinaryOps(t *testing.T) {
	tests := []struct {
		op   bytecode.BinaryOp
		a, b value.Value
		want value.Value
	}{
		{bytecode.BiAdd, value.Int(2), value.Int(3), value.Int(5)},
		{bytecode.BiAdd, value.Int(2), value.Float(0.5), value.Float(2.5)},
		{bytecode.BiAdd, value.String("a"), value.String("b"), value.String("ab")},
		{bytecode.BiAdd, nil, value.Int(1), nil},
		{bytecode.BiSub, value.Int(2), value.Int(3), value.Int(-1)},
		{bytecode.BiMult, value.Int(6), value.Int(7), value.Int(42)},
		{bytecode.BiDivide, value.Int(6), value.Int(3), value.Int(2)},
		{bytecode.BiDivide, value.Int(7), value.Int(2), value.Float(3.5)},
		{bytecode.BiIntDivide, value.Int(7), value.Int(2), value.Int(3)},
		{bytecode.BiRemainder, value.Int(7), value.Int(2), value.Int(1)},
		{bytecode.BiPow, value.Int(2), value.Int(10), value.Int(1024)},
		{bytecode.BiConcat, value.String("n="), value.Int(3), value.String("n=3")},
		{bytecode.BiConcat, value.String("n="), nil, nil},
		{bytecode.BiConcatEmpty, value.String("n="), nil, value.String("n=")},
		{bytecode.BiAnd, value.Bool(false), nil, value.Bool(false)},
		{bytecode.BiAnd, value.Bool(true), nil, nil},
		{bytecode.BiOr, value.Bool(true), nil, value.Bool(true)},
		{bytecode.BiOr, value.Bool(false), value.Bool(false), value.Bool(false)},
		{bytecode.BiXor, value.Bool(true), value.Bool(false), value.Bool(true)},
		{bytecode.BiCompareEQ, value.String("abc"), value.String("ABC"), value.Bool(true)},
		{bytecode.BiCompareLT, value.Int(1), value.Float(1.5), value.Bool(true)},
		{bytecode.BiCompareGE, value.Int(1), value.Int(2), value.Bool(false)},
		{bytecode.BiCompareNE, nil, value.Int(2), nil},
		{bytecode.BiMin, value.Int(4), value.Int(2), value.Int(2)},
		{bytecode.BiMax, value.String("a"), value.String("b"), value.String("b")},
		{bytecode.BiFindStr, value.String("Hello"), value.String("LL"), value.Int(3)},
		{bytecode.BiFindStr, value.String("Hello"), value.String("x"), value.Int(0)},
	}
	for _, tt := range tests {
		got, err := binaryOp(tt.op, tt.a, tt.b)
		if err != nil {
			t.Errorf("%v %s %v: %v", tt.a, tt.op, tt.b, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%v %s %v = %v, want %v", tt.a, tt.op, tt.b, got, tt.want)
		}
	}
}

func TestBinaryErrors(t *testing.T) {
	tests := []struct {
		op   bytecode.BinaryOp
		a, b value.Value
		want error
	}{
		{bytecode.BiDivide, value.Int(1), value.Int(0), ErrDivisionByZero},
		{bytecode.BiRemainder, value.Int(1), value.Int(0), ErrDivisionByZero},
		{bytecode.BiIntDivide, value.Float(1), value.Int(2), ErrTypeMismatch},
		{bytecode.BiSub, value.String("a"), value.Int(1), ErrTypeMismatch},
		{bytecode.BiCompareLT, value.String("a"), value.Int(1), ErrTypeMismatch},
	}
	for _, tt := range tests {
		_, err := binaryOp(tt.op, tt.a, tt.b)
		if !errors.Is(err, tt.want) {
			t.Errorf("%v %s %v: err = %v, want %v", tt.a, tt.op, tt.b, err, tt.want)
		}
	}
}

func TestTernaryOps(t *testing.T) {
	got, err := ternaryOp(bytecode.TerMid, value.String("starship"), value.Int(5), value.Int(4))
	if err != nil || got != value.String("ship") {
		t.Errorf("mid = %v, %v", got, err)
	}
	got, err = ternaryOp(bytecode.TerMid, value.String("abc"), value.Int(3), value.Int(10))
	if err != nil || got != value.String("c") {
		t.Errorf("mid past end = %v, %v", got, err)
	}
	got, err = ternaryOp(bytecode.TerReplace, value.String("a-b-c"), value.String("-"), value.String("+"))
	if err != nil || got != value.String("a+b+c") {
		t.Errorf("replace = %v, %v", got, err)
	}
	got, err = ternaryOp(bytecode.TerMid, nil, value.Int(1), value.Int(1))
	if err != nil || got != nil {
		t.Errorf("mid of empty = %v, %v", got, err)
	}
}
