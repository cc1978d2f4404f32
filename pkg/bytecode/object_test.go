package bytecode

import (
	"testing"

	"github.com/chazu/c2script/pkg/value"
)

func TestRelocateResolvesLabels(t *testing.T) {
	o := NewObject("LOOP")
	top := o.MakeLabel()
	end := o.MakeLabel()
	o.AddLabel(top)                                         // removed
	o.AddPush(ScopeLocal, 0)                                // 0
	o.AddJump(JumpIfFalse|JumpPopAlways, end)               // 1
	o.AddJump(JumpAlways, top)                              // 2
	o.AddLabel(end)                                         // removed
	o.AddInstruction(MajorSpecial, uint8(SpecialReturn), 0) // 3

	if err := o.Relocate(); err != nil {
		t.Fatal(err)
	}
	if o.Len() != 4 {
		t.Fatalf("Len = %d, want 4", o.Len())
	}
	if j := o.At(1); j.Arg != 3 || j.IsSymbolic() || j.Minor != JumpIfFalse|JumpPopAlways {
		t.Errorf("forward jump = %+v", j)
	}
	if j := o.At(2); j.Arg != 0 || j.IsSymbolic() {
		t.Errorf("backward jump = %+v", j)
	}
}

func TestRelocateAdjustsAbsoluteJumps(t *testing.T) {
	o := NewObject("T")
	l := o.MakeLabel()
	o.AddLabel(l)
	o.AddPush(ScopeInteger, 1)
	o.AddInstruction(MajorJump, JumpAlways, 3) // to the second push
	o.AddPush(ScopeInteger, 2)

	if err := o.Relocate(); err != nil {
		t.Fatal(err)
	}
	if got := o.At(1).Arg; got != 2 {
		t.Errorf("absolute jump = %d, want 2", got)
	}
}

func TestRelocateErrors(t *testing.T) {
	o := NewObject("T")
	o.AddJump(JumpAlways, o.MakeLabel())
	if err := o.Relocate(); err == nil {
		t.Error("undefined label should fail")
	}

	o = NewObject("T")
	l := o.MakeLabel()
	o.AddLabel(l)
	o.AddLabel(l)
	if err := o.Relocate(); err == nil {
		t.Error("duplicate label should fail")
	}
}

func TestFrozenObjectPanics(t *testing.T) {
	o := NewObject("T")
	o.AddPush(ScopeInteger, 1)
	o.Freeze()
	if !o.IsFrozen() {
		t.Fatal("not frozen")
	}
	defer func() {
		if recover() == nil {
			t.Error("mutating a frozen object should panic")
		}
	}()
	o.AddPush(ScopeInteger, 2)
}

func TestRefCount(t *testing.T) {
	o := NewObject("T")
	o.Retain()
	o.Retain()
	o.Release()
	if o.RefCount() != 1 {
		t.Errorf("RefCount = %d, want 1", o.RefCount())
	}
	o.Release()
	defer func() {
		if recover() == nil {
			t.Error("over-release should panic")
		}
	}()
	o.Release()
}

func TestTables(t *testing.T) {
	o := NewObject("T")
	if a, b := o.AddName("foo"), o.AddName("FOO"); a != b {
		t.Errorf("names not deduplicated: %d %d", a, b)
	}
	if a, b := o.AddLiteral(value.String("x")), o.AddLiteral(value.String("x")); a != b {
		t.Errorf("literals not deduplicated: %d %d", a, b)
	}
	a := o.AddLiteral(value.NewList())
	b := o.AddLiteral(value.NewList())
	if a == b {
		t.Error("reference literals must not be merged")
	}
	if i := o.AddLocal("a"); i != 0 {
		t.Errorf("AddLocal = %d", i)
	}
	if i := o.AddLocal("A"); i != 0 {
		t.Errorf("re-adding local = %d", i)
	}
	if idx, ok := o.LocalIndex("a"); !ok || idx != 0 {
		t.Errorf("LocalIndex = %d, %v", idx, ok)
	}
}

func TestAddPushValue(t *testing.T) {
	o := NewObject("T")
	o.AddPushValue(value.Int(-5))
	o.AddPushValue(value.Int(100000))
	o.AddPushValue(value.Bool(true))
	o.AddPushValue(nil)
	o.AddPushValue(value.String("s"))

	want := []Opcode{
		{MajorPush, uint8(ScopeInteger), uint16(0xFFFB)},
		{MajorPush, uint8(ScopeLiteral), 0},
		{MajorPush, uint8(ScopeBoolean), 1},
		{MajorPush, uint8(ScopeBoolean), BooleanEmpty},
		{MajorPush, uint8(ScopeLiteral), 1},
	}
	for i, w := range want {
		if got := o.At(i); got != w {
			t.Errorf("instruction %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestArena(t *testing.T) {
	a := NewArena()
	x := NewObject("x")
	y := NewObject("y")
	hx := a.Add(x)
	hy := a.Add(y)
	if hx == hy || hx == 0 {
		t.Fatalf("handles %d %d", hx, hy)
	}
	if a.Add(x) != hx {
		t.Error("re-adding should return the same handle")
	}
	if a.Get(hy) != y || a.Get(0) != nil || a.Get(99) != nil {
		t.Error("Get mismatch")
	}
	if o, ok := a.Lookup("X"); !ok || o != x {
		t.Error("Lookup by name failed")
	}
	y.Retain()
	live := a.Live()
	if len(live) != 1 || live[0] != hy {
		t.Errorf("Live = %v", live)
	}
}
