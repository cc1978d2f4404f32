package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/c2script/pkg/bytecode"
)

// Object files carry this extension; anything else is assembler source.
const objectExt = ".c2o"

// loadUnits reads compiled units from an object file or assembler source.
func loadUnits(path string) ([]*bytecode.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()

	if filepath.Ext(path) == objectExt {
		objs, err := bytecode.ReadObjectFile(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return objs, nil
	}

	objs, err := bytecode.Assemble(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, o := range objs {
		if o.File() == "" {
			o.SetFile(path)
		}
	}
	return objs, nil
}

// optimizeUnits fuses every unit that has not been optimized yet and
// returns the total number of fused sequences.
func optimizeUnits(objs []*bytecode.Object) (int, error) {
	total := 0
	for _, o := range objs {
		if isOptimized(o) {
			continue
		}
		n, err := o.Optimize()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func isOptimized(o *bytecode.Object) bool {
	for pc := 0; pc < o.Len(); pc++ {
		if o.At(pc).Major.IsFused() {
			return true
		}
	}
	return false
}

// newArena registers objs for lookup by name.
func newArena(objs []*bytecode.Object) *bytecode.Arena {
	a := bytecode.NewArena()
	for _, o := range objs {
		a.Add(o)
	}
	return a
}

// findUnit returns the unit called name, or the first unit if name is "".
func findUnit(a *bytecode.Arena, name string) (*bytecode.Object, error) {
	if a.Len() == 0 {
		return nil, fmt.Errorf("no units")
	}
	if name == "" {
		return a.Get(1), nil
	}
	o, ok := a.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unit %q not found", name)
	}
	return o, nil
}

// writeUnits writes objs as an object file at path.
func writeUnits(path string, objs []*bytecode.Object) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	if err := bytecode.WriteObjectFile(f, objs); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return f.Close()
}

// objectPath derives the default object file name for a source file.
func objectPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + objectExt
}
