package value

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// Array is a (possibly multi-dimensional) script array. Arrays are
// reference values: copies of the Value share storage.
type Array struct {
	dims  []int
	elems []Value
}

// NewArray creates an array with the given dimensions, all elements empty.
func NewArray(dims ...int) (*Array, error) {
	total := 1
	for _, d := range dims {
		if d < 0 {
			return nil, fmt.Errorf("invalid array dimension %d", d)
		}
		total *= d
	}
	if len(dims) == 0 {
		total = 0
	}
	return &Array{dims: append([]int(nil), dims...), elems: make([]Value, total)}, nil
}

// NewList creates a one-dimensional array holding vs.
func NewList(vs ...Value) *Array {
	return &Array{dims: []int{len(vs)}, elems: append([]Value(nil), vs...)}
}

func (*Array) Kind() Kind { return KindArray }

func (a *Array) String() string { return "(" + joinQuoted(a.elems) + ")" }

// Dims returns the array dimensions.
func (a *Array) Dims() []int { return append([]int(nil), a.dims...) }

// Len returns the total number of elements.
func (a *Array) Len() int { return len(a.elems) }

// Elem returns the element at flat index i.
func (a *Array) Elem(i int) Value { return a.elems[i] }

// SetElem stores v at flat index i.
func (a *Array) SetElem(i int, v Value) { a.elems[i] = v }

func (a *Array) index(idx []int) (int, error) {
	if len(idx) != len(a.dims) {
		return 0, fmt.Errorf("array needs %d indexes, got %d", len(a.dims), len(idx))
	}
	flat := 0
	for i, x := range idx {
		if x < 0 || x >= a.dims[i] {
			return 0, fmt.Errorf("index %d out of range [0,%d)", x, a.dims[i])
		}
		flat = flat*a.dims[i] + x
	}
	return flat, nil
}

// Get returns the element at the given indexes.
func (a *Array) Get(idx ...int) (Value, error) {
	i, err := a.index(idx)
	if err != nil {
		return nil, err
	}
	return a.elems[i], nil
}

// Set stores v at the given indexes.
func (a *Array) Set(v Value, idx ...int) error {
	i, err := a.index(idx)
	if err != nil {
		return err
	}
	a.elems[i] = v
	return nil
}

// ---------------------------------------------------------------------------
// Hash
// ---------------------------------------------------------------------------

// Hash maps string keys to values and preserves insertion order.
type Hash struct {
	keys []string
	m    map[string]Value
}

// NewHash creates an empty hash.
func NewHash() *Hash {
	return &Hash{m: make(map[string]Value)}
}

func (*Hash) Kind() Kind { return KindHash }

func (h *Hash) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range h.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q: %s", k, quote(h.m[k]))
	}
	sb.WriteString("}")
	return sb.String()
}

// Get returns the value stored under key.
func (h *Hash) Get(key string) (Value, bool) {
	v, ok := h.m[key]
	return v, ok
}

// Set stores v under key.
func (h *Hash) Set(key string, v Value) {
	if _, ok := h.m[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.m[key] = v
}

// Keys returns the keys in insertion order.
func (h *Hash) Keys() []string { return append([]string(nil), h.keys...) }

// Len returns the number of keys.
func (h *Hash) Len() int { return len(h.keys) }

// ---------------------------------------------------------------------------
// Structures
// ---------------------------------------------------------------------------

// StructType describes a structure declared by a script.
type StructType struct {
	Name   string
	Fields []string
}

func (*StructType) Kind() Kind       { return KindStructType }
func (t *StructType) String() string { return "#<type:" + t.Name + ">" }

// FieldIndex returns the index of the named field (case-insensitive).
func (t *StructType) FieldIndex(name string) (int, bool) {
	for i, f := range t.Fields {
		if strings.EqualFold(f, name) {
			return i, true
		}
	}
	return 0, false
}

// Struct is an instance of a StructType.
type Struct struct {
	Type   *StructType
	Fields []Value
}

// NewStruct creates an instance of t with all fields empty.
func NewStruct(t *StructType) *Struct {
	return &Struct{Type: t, Fields: make([]Value, len(t.Fields))}
}

func (*Struct) Kind() Kind { return KindStruct }

func (s *Struct) String() string { return "#<" + s.Type.Name + ">" }
