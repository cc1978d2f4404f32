package vm

import (
	"errors"
	"testing"

	"github.com/chazu/c2script/pkg/value"
)

func TestWorldGlobals(t *testing.T) {
	w := NewWorld()
	i := w.DefineGlobal("Speed", value.Int(3))
	if j := w.DefineGlobal("SPEED", value.Int(4)); j != i {
		t.Errorf("redefinition got slot %d, want %d", j, i)
	}
	if v, ok := w.Global("speed"); !ok || v != value.Int(4) {
		t.Errorf("Global = %v, %v", v, ok)
	}
	if err := w.SetGlobal("missing", nil); !errors.Is(err, ErrUnknownIdentifier) {
		t.Errorf("SetGlobal(missing) = %v", err)
	}
	if _, err := w.GlobalAt(7); !errors.Is(err, ErrRangeError) {
		t.Errorf("GlobalAt(7) = %v", err)
	}
	w.dimGlobal("speed", value.Int(99))
	if v, _ := w.Global("speed"); v != value.Int(4) {
		t.Errorf("dim overwrote existing global: %v", v)
	}
	w.DefineNative("print", true, func(c *Call) (value.Value, error) { return nil, nil })
	names := w.GlobalNames()
	if len(names) != 2 || names[0] != "SPEED" || names[1] != "PRINT" {
		t.Errorf("names = %v", names)
	}
}

func TestSignal(t *testing.T) {
	var s Signal[int]
	var got []int
	remove := s.Add(func(v int) { got = append(got, v) })
	s.Add(func(v int) { got = append(got, v*10) })
	s.Raise(1)
	remove()
	s.Raise(2)
	want := []int{1, 10, 20}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestStateClassification(t *testing.T) {
	tests := []struct {
		s        State
		terminal bool
		active   bool
	}{
		{Suspended, false, false},
		{Frozen, false, false},
		{Runnable, false, true},
		{Running, false, true},
		{Waiting, false, true},
		{Ended, true, false},
		{Terminated, true, false},
		{Failed, true, false},
	}
	for _, tt := range tests {
		if tt.s.IsTerminal() != tt.terminal || tt.s.IsActive() != tt.active {
			t.Errorf("%s: terminal=%v active=%v", tt.s, tt.s.IsTerminal(), tt.s.IsActive())
		}
	}
}
