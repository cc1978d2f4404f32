package vm

import (
	"strings"

	"github.com/chazu/c2script/pkg/value"
)

// Context is a scope entered by With or a loop over a container. Names are
// resolved against contexts innermost first, after the current frame's
// locals.
type Context interface {
	// Get returns the value of name if the context defines it.
	Get(name string) (value.Value, bool)
	// Set assigns name. found is false if the context does not define it.
	Set(name string, v value.Value) (found bool, err error)
}

// hashKey resolves name to an existing key of h, preferring an exact match.
func hashKey(h *value.Hash, name string) (string, bool) {
	if _, ok := h.Get(name); ok {
		return name, true
	}
	for _, k := range h.Keys() {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

type hashContext struct{ h *value.Hash }

func (c hashContext) Get(name string) (value.Value, bool) {
	k, ok := hashKey(c.h, name)
	if !ok {
		return nil, false
	}
	v, _ := c.h.Get(k)
	return v, true
}

func (c hashContext) Set(name string, v value.Value) (bool, error) {
	k, ok := hashKey(c.h, name)
	if !ok {
		return false, nil
	}
	c.h.Set(k, v)
	return true, nil
}

type structContext struct{ s *value.Struct }

func (c structContext) Get(name string) (value.Value, bool) {
	i, ok := c.s.Type.FieldIndex(name)
	if !ok {
		return nil, false
	}
	return c.s.Fields[i], true
}

func (c structContext) Set(name string, v value.Value) (bool, error) {
	i, ok := c.s.Type.FieldIndex(name)
	if !ok {
		return false, nil
	}
	c.s.Fields[i] = v
	return true, nil
}

// newWithContext builds the context entered by With.
func newWithContext(v value.Value) (Context, error) {
	switch x := v.(type) {
	case *value.Hash:
		return hashContext{x}, nil
	case *value.Struct:
		return structContext{x}, nil
	}
	return nil, typeError("with", v)
}

// iteration walks an array (INDEX, VALUE) or a hash (KEY, VALUE).
type iteration struct {
	arr  *value.Array
	hash *value.Hash
	keys []string
	pos  int
}

// newIteration returns nil for an empty container.
func newIteration(v value.Value) (*iteration, error) {
	switch x := v.(type) {
	case *value.Array:
		if x.Len() == 0 {
			return nil, nil
		}
		return &iteration{arr: x}, nil
	case *value.Hash:
		if x.Len() == 0 {
			return nil, nil
		}
		return &iteration{hash: x, keys: x.Keys()}, nil
	case nil:
		return nil, nil
	}
	return nil, typeError("for each", v)
}

func (it *iteration) len() int {
	if it.arr != nil {
		return it.arr.Len()
	}
	return len(it.keys)
}

// next advances and reports whether an element remains.
func (it *iteration) next() bool {
	it.pos++
	return it.pos < it.len()
}

func (it *iteration) Get(name string) (value.Value, bool) {
	switch strings.ToUpper(name) {
	case "VALUE":
		if it.arr != nil {
			return it.arr.Elem(it.pos), true
		}
		v, _ := it.hash.Get(it.keys[it.pos])
		return v, true
	case "INDEX":
		if it.arr != nil {
			return value.Int(it.pos), true
		}
	case "KEY":
		if it.hash != nil {
			return value.String(it.keys[it.pos]), true
		}
	}
	return nil, false
}

func (it *iteration) Set(name string, v value.Value) (bool, error) {
	switch strings.ToUpper(name) {
	case "VALUE":
		if it.arr != nil {
			it.arr.SetElem(it.pos, v)
			return true, nil
		}
		it.hash.Set(it.keys[it.pos], v)
		return true, nil
	case "INDEX", "KEY":
		if _, ok := it.Get(name); ok {
			return true, newError(ErrNotAssignable, "%s cannot be assigned", strings.ToUpper(name))
		}
	}
	return false, nil
}
