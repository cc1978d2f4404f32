package bytecode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chazu/c2script/pkg/value"
)

func TestObjectFileRoundTrip(t *testing.T) {
	objs, err := AssembleString(sampleSource)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := objs[1].Optimize(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteObjectFile(&buf, objs); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), ObjectFileMagic) {
		t.Fatal("missing magic")
	}
	back, err := ReadObjectFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(objs) {
		t.Fatalf("got %d units", len(back))
	}
	for i := range objs {
		if !bytes.Equal(EncodeCode(objs[i].Code()), EncodeCode(back[i].Code())) {
			t.Errorf("unit %d: code differs", i)
		}
		if back[i].Disassemble() != objs[i].Disassemble() {
			t.Errorf("unit %d: disassembly differs:\n%s\nvs\n%s", i, objs[i].Disassemble(), back[i].Disassemble())
		}
		for pc := 0; pc < back[i].Len(); pc++ {
			if back[i].At(pc).Major.IsFused() {
				t.Errorf("unit %d pc %d: fused major persisted", i, pc)
			}
		}
	}
	sub, ok := back[0].LiteralAt(1).(*SubroutineValue)
	if !ok || sub.Object != back[1] {
		t.Error("subroutine literal does not point at the loaded unit")
	}
}

func TestObjectFileDeterministic(t *testing.T) {
	objs, err := AssembleString(sampleSource)
	if err != nil {
		t.Fatal(err)
	}
	var a, b bytes.Buffer
	if err := WriteObjectFile(&a, objs); err != nil {
		t.Fatal(err)
	}
	if err := WriteObjectFile(&b, objs); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("encoding is not deterministic")
	}
}

func TestObjectFileErrors(t *testing.T) {
	if _, err := ReadObjectFile(bytes.NewReader([]byte("nope"))); !errors.Is(err, ErrBadObjectFile) {
		t.Errorf("bad magic: %v", err)
	}

	o := NewObject("T")
	o.AddLiteral(value.NewList())
	if err := WriteObjectFile(&bytes.Buffer{}, []*Object{o}); err == nil {
		t.Error("array literal should not be storable")
	}

	other := NewObject("OTHER")
	o = NewObject("T")
	o.AddLiteral(&SubroutineValue{Object: other})
	if err := WriteObjectFile(&bytes.Buffer{}, []*Object{o}); err == nil {
		t.Error("foreign subroutine literal should fail")
	}
}
