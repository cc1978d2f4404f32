package value

import "testing"

func TestTruth(t *testing.T) {
	tests := []struct {
		v    Value
		want Tristate
	}{
		{nil, Empty},
		{Bool(true), True},
		{Bool(false), False},
		{Int(0), False},
		{Int(-3), True},
		{Float(0), False},
		{Float(0.5), True},
		{String(""), False},
		{String("x"), True},
		{NewHash(), True},
	}
	for _, tt := range tests {
		if got := Truth(tt.v); got != tt.want {
			t.Errorf("Truth(%v) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestFromTristate(t *testing.T) {
	if FromTristate(Empty) != nil {
		t.Error("Empty should map to nil")
	}
	if FromTristate(True) != Bool(true) || FromTristate(False) != Bool(false) {
		t.Error("True/False should map to booleans")
	}
}

func TestArrayIndexing(t *testing.T) {
	a, err := NewArray(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != 6 {
		t.Fatalf("Len = %d, want 6", a.Len())
	}
	if err := a.Set(Int(7), 1, 2); err != nil {
		t.Fatal(err)
	}
	v, err := a.Get(1, 2)
	if err != nil || v != Int(7) {
		t.Errorf("Get(1,2) = %v, %v", v, err)
	}
	if a.Elem(5) != Int(7) {
		t.Errorf("flat element 5 = %v, want 7", a.Elem(5))
	}
	if _, err := a.Get(2, 0); err == nil {
		t.Error("expected range error")
	}
	if _, err := a.Get(0); err == nil {
		t.Error("expected dimension error")
	}
	if _, err := NewArray(-1); err == nil {
		t.Error("negative dimension should fail")
	}
}

func TestHashOrder(t *testing.T) {
	h := NewHash()
	h.Set("b", Int(1))
	h.Set("a", Int(2))
	h.Set("b", Int(3))
	keys := h.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("Keys = %v", keys)
	}
	if v, _ := h.Get("b"); v != Int(3) {
		t.Errorf("b = %v", v)
	}
	if got := h.String(); got != `{"b": 3, "a": 2}` {
		t.Errorf("String = %s", got)
	}
}

func TestStructFields(t *testing.T) {
	typ := &StructType{Name: "POINT", Fields: []string{"X", "Y"}}
	s := NewStruct(typ)
	i, ok := typ.FieldIndex("y")
	if !ok || i != 1 {
		t.Fatalf("FieldIndex(y) = %d, %v", i, ok)
	}
	s.Fields[i] = Int(4)
	if s.Fields[1] != Int(4) {
		t.Error("field not stored")
	}
	if _, ok := typ.FieldIndex("Z"); ok {
		t.Error("unexpected field Z")
	}
}

type opaque struct{}

func (opaque) Kind() Kind     { return KindCallable }
func (opaque) String() string { return "opaque" }

type savable struct{ ok bool }

func (savable) Kind() Kind             { return KindCallable }
func (savable) String() string         { return "savable" }
func (s savable) IsSerializable() bool { return s.ok }

func TestIsSerializable(t *testing.T) {
	self := NewList(Int(1))
	h := NewHash()
	h.Set("self", h)

	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"empty", nil, true},
		{"scalar", String("x"), true},
		{"list", NewList(Int(1), String("a")), true},
		{"nested opaque", NewList(Int(1), opaque{}), false},
		{"cyclic hash", h, true},
		{"self", self, true},
		{"opt-in", savable{true}, true},
		{"opt-out", savable{false}, false},
		{"opaque", opaque{}, false},
	}
	for _, tt := range tests {
		if got := IsSerializable(tt.v); got != tt.want {
			t.Errorf("%s: IsSerializable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestKindNames(t *testing.T) {
	if KindOf(nil) != KindEmpty {
		t.Error("nil should be empty")
	}
	if KindString.String() != "string" {
		t.Errorf("KindString = %s", KindString)
	}
	if Kind(200).String() != "Kind(200)" {
		t.Errorf("unknown kind = %s", Kind(200))
	}
}
