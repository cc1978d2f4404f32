package bytecode

import "testing"

func TestMajorExternal(t *testing.T) {
	tests := []struct {
		m    Major
		want Major
	}{
		{MajorPush, MajorPush},
		{MajorSpecial, MajorSpecial},
		{MajorFusedUnary, MajorPush},
		{MajorFusedBinary, MajorPush},
		{MajorFusedComparison, MajorBinary},
		{MajorFusedComparison2, MajorPush},
		{MajorInplaceUnary, MajorPush},
	}
	for _, tt := range tests {
		if got := tt.m.External(); got != tt.want {
			t.Errorf("%s.External() = %s, want %s", tt.m, got, tt.want)
		}
	}
}

func TestEveryFusedMajorIsReducible(t *testing.T) {
	for m := Major(0); m < numMajors; m++ {
		ext := m.External()
		if ext.IsFused() {
			t.Errorf("%s maps to fused major %s", m, ext)
		}
		if m.IsFused() == (ext == m) {
			t.Errorf("%s: IsFused=%v but External=%s", m, m.IsFused(), ext)
		}
		if m.IsFused() && m.FusedLength() < 2 {
			t.Errorf("%s covers %d instructions", m, m.FusedLength())
		}
	}
}

func TestJumpClassification(t *testing.T) {
	tests := []struct {
		name    string
		op      Opcode
		regular bool
		label   bool
		target  bool
	}{
		{"label", Opcode{MajorJump, 0, 3}, true, true, false},
		{"symbolic label", Opcode{MajorJump, JumpSymbolic, 3}, true, true, false},
		{"always", Opcode{MajorJump, JumpAlways, 3}, true, false, true},
		{"iftrue pop", Opcode{MajorJump, JumpIfTrue | JumpPopAlways, 3}, true, false, true},
		{"pop only", Opcode{MajorJump, JumpPopAlways, 3}, true, true, false},
		{"catch", Opcode{MajorJump, JumpCatch, 3}, false, false, true},
		{"deczero", Opcode{MajorJump, JumpDecZero, 3}, false, false, true},
		{"not a jump", Opcode{MajorPush, 0, 3}, false, false, false},
	}
	for _, tt := range tests {
		if got := tt.op.IsRegularJump(); got != tt.regular {
			t.Errorf("%s: IsRegularJump = %v", tt.name, got)
		}
		if got := tt.op.IsLabel(); got != tt.label {
			t.Errorf("%s: IsLabel = %v", tt.name, got)
		}
		if got := tt.op.IsJumpOrCatch(); got != tt.target {
			t.Errorf("%s: IsJumpOrCatch = %v", tt.name, got)
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{Opcode{MajorPush, uint8(ScopeInteger), 0xFFFF}, "push int -1"},
		{Opcode{MajorPush, uint8(ScopeLocal), 2}, "push loc 2"},
		{Opcode{MajorFusedBinary, uint8(ScopeLocal), 2}, "push loc 2"},
		{Opcode{MajorBinary, uint8(BiAdd), 0}, "binary add"},
		{Opcode{MajorFusedComparison, uint8(BiCompareLT), 0}, "binary lt"},
		{Opcode{MajorUnary, uint8(UnNot), 0}, "unary not"},
		{Opcode{MajorJump, JumpAlways, 7}, "jump always 7"},
		{Opcode{MajorJump, JumpIfTrue | JumpIfEmpty | JumpPopAlways, 7}, "jump iftrue,ifempty,pop 7"},
		{Opcode{MajorJump, JumpCatch, 9}, "catch 9"},
		{Opcode{MajorJump, JumpDecZero, 9}, "jdz 9"},
		{Opcode{MajorIndirect, uint8(IndirectCall) | RefuseFunctions, 2}, "indirect call,nofunc 2"},
		{Opcode{MajorStack, uint8(StackSwap), 1}, "stack swap 1"},
		{Opcode{MajorSpecial, uint8(SpecialThrow), 0}, "special throw 0"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestUnknownNames(t *testing.T) {
	if got := Major(99).String(); got != "major(99)" {
		t.Errorf("Major(99) = %q", got)
	}
	if got := SpecialOp(200).String(); got != "special(200)" {
		t.Errorf("SpecialOp(200) = %q", got)
	}
	if Major(99).IsValid() {
		t.Error("Major(99) should be invalid")
	}
}

func TestScopeAssignable(t *testing.T) {
	for s := Scope(0); s < numScopes; s++ {
		want := s != ScopeLiteral && s != ScopeInteger && s != ScopeBoolean
		if got := s.IsAssignable(); got != want {
			t.Errorf("%s.IsAssignable() = %v", s, got)
		}
	}
}
