package vm

import (
	"testing"

	"github.com/chazu/c2script/pkg/bytecode"
)

func assemble(t *testing.T, src string) []*bytecode.Object {
	t.Helper()
	objs, err := bytecode.AssembleString(src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return objs
}

func spawn(t *testing.T, pl *ProcessList, name string, obj *bytecode.Object) *Process {
	t.Helper()
	p := pl.Create(name)
	if err := p.PushFrame(obj, false); err != nil {
		t.Fatalf("push frame: %v", err)
	}
	return p
}

// runSource runs the first unit of src as the only process of a new group
// and returns it once the scheduler yields.
func runSource(t *testing.T, src string, setup func(w *World)) *Process {
	t.Helper()
	w := NewWorld()
	if setup != nil {
		setup(w)
	}
	pl := NewProcessList(w, DefaultOptions())
	p := spawn(t, pl, "test", assemble(t, src)[0])
	g := pl.AllocateProcessGroup()
	pl.ResumeProcess(p, g)
	pl.StartProcessGroup(g)
	pl.Run(nil)
	return p
}

// expectEnded fails the test unless p ended normally.
func expectEnded(t *testing.T, p *Process) {
	t.Helper()
	if p.State() != Ended {
		msg := ""
		if p.Error() != nil {
			msg = p.Error().Message
		}
		t.Fatalf("state = %s, want Ended (error %q)", p.State(), msg)
	}
}
