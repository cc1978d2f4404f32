package bytecode

import (
	"strings"
	"testing"

	"github.com/chazu/c2script/pkg/value"
)

const sampleSource = `
.sub MAIN
	.local i
	push int 3
	pop loc i
loop:                      ; counted loop
	push loc i
	jump iffalse,pop done
	push lit "tick"
	pop gvar LAST
	push loc i
	unary dec
	pop loc i
	jump always loop
done:
	push lit sub HELPER
	special defsub helper
	special return 0
.end

.sub HELPER function
	.args 1 1
	.local x
	push loc x
	push lit 2.5
	binary mul
	special return 1
.end
`

func TestAssemble(t *testing.T) {
	objs, err := AssembleString(sampleSource)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 2 {
		t.Fatalf("got %d units", len(objs))
	}
	main, helper := objs[0], objs[1]
	if main.Name() != "MAIN" || !main.IsProcedure() {
		t.Errorf("main = %s procedure=%v", main.Name(), main.IsProcedure())
	}
	if helper.IsProcedure() || helper.MinArgs() != 1 || helper.MaxArgs() != 1 {
		t.Errorf("helper metadata wrong")
	}

	// Labels are gone and jumps resolved.
	for pc := 0; pc < main.Len(); pc++ {
		op := main.At(pc)
		if op.IsLabel() || op.IsSymbolic() {
			t.Errorf("pc %d: unresolved %s", pc, op)
		}
	}
	if j := main.At(3); j.Major != MajorJump || j.Arg != 10 {
		t.Errorf("exit jump = %s", j)
	}
	if j := main.At(9); j.Arg != 2 {
		t.Errorf("loop jump = %s", j)
	}

	sub, ok := main.LiteralAt(1).(*SubroutineValue)
	if !ok || sub.Object != helper {
		t.Errorf("sub literal = %v", main.LiteralAt(1))
	}
	if helper.LiteralAt(0) != value.Float(2.5) {
		t.Errorf("float literal = %v", helper.LiteralAt(0))
	}
}

func TestAssembleLiterals(t *testing.T) {
	objs, err := AssembleString(`
.sub T
	push lit "a;b"    ; semicolon inside string
	push lit 100000
	push lit type POINT x y
	push bool empty
	push int -7
.end`)
	if err != nil {
		t.Fatal(err)
	}
	o := objs[0]
	if o.LiteralAt(0) != value.String("a;b") {
		t.Errorf("string literal = %v", o.LiteralAt(0))
	}
	if o.LiteralAt(1) != value.Int(100000) {
		t.Errorf("int literal = %v", o.LiteralAt(1))
	}
	st, ok := o.LiteralAt(2).(*value.StructType)
	if !ok || st.Name != "POINT" || len(st.Fields) != 2 || st.Fields[1] != "Y" {
		t.Errorf("type literal = %v", o.LiteralAt(2))
	}
	if o.At(3).Arg != BooleanEmpty {
		t.Errorf("bool empty = %d", o.At(3).Arg)
	}
	if o.At(4).IntArg() != -7 {
		t.Errorf("int immediate = %d", o.At(4).IntArg())
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"outside sub", "push int 1", "outside .sub"},
		{"missing end", ".sub A\npush int 1", "missing .end"},
		{"bad mnemonic", ".sub A\nfrob\n.end", "unknown mnemonic"},
		{"bad scope", ".sub A\npush nowhere 1\n.end", "unknown scope"},
		{"pop literal", ".sub A\npop lit 1\n.end", "cannot pop"},
		{"undefined label", ".sub A\njump always nowhere\n.end", "undefined label"},
		{"unknown sub", ".sub A\npush lit sub B\n.end", "unknown subroutine"},
		{"duplicate sub", ".sub A\n.end\n.sub A\n.end", "duplicate"},
		{"jump no cond", ".sub A\njump pop x\nx:\n.end", "without condition"},
	}
	for _, tt := range tests {
		_, err := AssembleString(tt.src)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want %q", tt.name, err, tt.want)
		}
	}
}
