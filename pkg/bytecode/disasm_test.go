package bytecode

import (
	"strings"
	"testing"

	"github.com/chazu/c2script/pkg/value"
)

func TestDisassembleHeader(t *testing.T) {
	o := NewObject("MAIN")
	o.SetProcedure(false)
	o.SetArgs(1, 2, true)

	out := o.Disassemble()
	if !strings.Contains(out, "; sub MAIN (function, args 1..2+)") {
		t.Errorf("missing header:\n%s", out)
	}
}

func TestDisassembleResolvesOperands(t *testing.T) {
	o := NewObject("T")
	o.AddPush(ScopeLiteral, o.AddLiteral(value.String("hello world")))
	o.AddPush(ScopeNamedShared, o.AddName("counter"))
	o.AddInstruction(MajorMemref, uint8(IndirectLoad), o.AddName("x"))
	o.AddInstruction(MajorSpecial, uint8(SpecialDefSub), o.AddName("helper"))

	out := o.Disassemble()
	for _, want := range []string{
		`[  0] "hello world"`,
		"[  1] X",
		`push lit 0`,
		`; "hello world"`,
		"; COUNTER",
		"memref load 1",
		"; HELPER",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestDisassembleShowsCanonicalForm(t *testing.T) {
	o := NewObject("T")
	o.AddPush(ScopeInteger, 1)
	o.AddInstruction(MajorBinary, uint8(BiAdd), 0)
	before := o.Disassemble()
	if _, err := o.Optimize(); err != nil {
		t.Fatal(err)
	}
	if o.At(0).Major != MajorFusedBinary {
		t.Fatalf("expected fused push+binary, got %s", o.At(0).Major)
	}
	after := o.Disassemble()
	if before != after {
		t.Errorf("optimization changed disassembly:\n%s\nvs\n%s", before, after)
	}
	if strings.Contains(after, "fused") {
		t.Errorf("fused major visible:\n%s", after)
	}
}

func TestDisassembleInstruction(t *testing.T) {
	o := NewObject("T")
	o.AddLocal("i")
	o.AddPush(ScopeLocal, 0)
	if got := o.DisassembleInstruction(0); got != "push loc 0 ; I" {
		t.Errorf("got %q", got)
	}
	if got := o.DisassembleInstruction(5); got != "<end of code>" {
		t.Errorf("got %q", got)
	}
}
