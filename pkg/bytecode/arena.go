package bytecode

import (
	"strings"
	"sync"
)

// Handle identifies an Object inside an Arena. The zero Handle is invalid.
type Handle uint32

// Arena is the registry of compiled units loaded by an application. Frames
// reference Objects directly; the Arena owns them for lookup by handle or
// name and reports which ones are still referenced.
type Arena struct {
	mu      sync.RWMutex
	objects []*Object
	byName  map[string]Handle
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{byName: make(map[string]Handle)}
}

// Add registers obj and returns its handle. Adding the same object twice
// returns the original handle. A named object becomes the result of
// Lookup for its name.
func (a *Arena) Add(obj *Object) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, o := range a.objects {
		if o == obj {
			return Handle(i + 1)
		}
	}
	a.objects = append(a.objects, obj)
	h := Handle(len(a.objects))
	if obj.Name() != "" {
		a.byName[strings.ToUpper(obj.Name())] = h
	}
	return h
}

// Get returns the object for h, or nil.
func (a *Arena) Get(h Handle) *Object {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if h == 0 || int(h) > len(a.objects) {
		return nil
	}
	return a.objects[h-1]
}

// Lookup returns the most recently added object with the given name.
func (a *Arena) Lookup(name string) (*Object, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h, ok := a.byName[strings.ToUpper(name)]
	if !ok {
		return nil, false
	}
	return a.objects[h-1], true
}

// Len returns the number of registered objects.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.objects)
}

// Live returns the handles of objects currently referenced by frames.
func (a *Arena) Live() []Handle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []Handle
	for i, o := range a.objects {
		if o.RefCount() > 0 {
			out = append(out, Handle(i+1))
		}
	}
	return out
}
