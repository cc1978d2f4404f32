package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/c2script/journal"
	"github.com/chazu/c2script/manifest"
	"github.com/chazu/c2script/vm"
)

const patrol = `
.sub PATROL
	push lit "leaving dock"
	push gvar PRINT
	indirect call 1
	push int 1
	push gvar SLEEP
	indirect call 1
	push lit "arrived"
	push int 3
	push gvar PRINT
	indirect call 2
	push lit sub SUM
	indirect load 0
	special return 1
.end

.sub SUM function
	.local i
	.local total
	push int 0
	pop loc total
	push int 0
	pop loc i
loop:
	push loc i
	push int 11
	binary lt
	jump iffalse,pop done
	push loc total
	push loc i
	binary add
	pop loc total
	push loc i
	unary inc
	pop loc i
	jump always loop
done:
	push loc total
	special return 1
.end

.sub STRANDED
	push lit "engine out"
	push gvar FAIL
	indirect call 1
.end
`

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patrol.c2s")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecutePrintsAndSleeps(t *testing.T) {
	units, err := loadUnits(writeSource(t, patrol))
	if err != nil {
		t.Fatalf("loadUnits failed: %v", err)
	}
	if _, err := optimizeUnits(units); err != nil {
		t.Fatalf("optimizeUnits failed: %v", err)
	}

	var out bytes.Buffer
	r := &runner{opts: vm.DefaultOptions(), out: &out}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := r.execute(ctx, units, "")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if p.State() != vm.Ended {
		t.Fatalf("state = %s", p.State())
	}
	if got := p.Result().String(); got != "55" {
		t.Errorf("result = %s, want 55", got)
	}
	if want := "leaving dock\narrived 3\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	for _, u := range units {
		if u.RefCount() != 0 {
			t.Errorf("%s still referenced %d times", u.Name(), u.RefCount())
		}
	}
}

func TestExecuteRejectedContinuationFails(t *testing.T) {
	units, err := loadUnits(writeSource(t, patrol))
	if err != nil {
		t.Fatal(err)
	}
	r := &runner{opts: vm.DefaultOptions(), out: &bytes.Buffer{}}
	p, err := r.execute(context.Background(), units, "stranded")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if p.State() != vm.Failed || p.Error().Message != "engine out" {
		t.Fatalf("state = %s, error = %v", p.State(), p.Error())
	}

	var buf bytes.Buffer
	if err := report(&buf, p, false); !errors.Is(err, errProcessFailed) {
		t.Errorf("report = %v, want errProcessFailed", err)
	}
	if !strings.Contains(buf.String(), "STRANDED Failed: engine out") {
		t.Errorf("report output = %q", buf.String())
	}
}

func TestExecuteUnknownEntry(t *testing.T) {
	units, err := loadUnits(writeSource(t, patrol))
	if err != nil {
		t.Fatal(err)
	}
	r := &runner{opts: vm.DefaultOptions(), out: &bytes.Buffer{}}
	if _, err := r.execute(context.Background(), units, "missing"); err == nil {
		t.Error("expected error for unknown entry")
	}
}

func TestExecuteTimeoutTerminates(t *testing.T) {
	units, err := loadUnits(writeSource(t, `
.sub NAP
	push int 60000
	push gvar SLEEP
	indirect call 1
.end
`))
	if err != nil {
		t.Fatal(err)
	}
	r := &runner{opts: vm.DefaultOptions(), out: &bytes.Buffer{}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p, err := r.execute(ctx, units, "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if p.State() != vm.Terminated {
		t.Errorf("state = %s, want Terminated", p.State())
	}
}

func TestExecuteTrace(t *testing.T) {
	units, err := loadUnits(writeSource(t, ".sub ONE\n\tpush int 1\n\tspecial return 1\n.end\n"))
	if err != nil {
		t.Fatal(err)
	}
	var trace bytes.Buffer
	r := &runner{opts: vm.DefaultOptions(), out: &bytes.Buffer{}, trace: &trace}
	if _, err := r.execute(context.Background(), units, ""); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(trace.String(), "\n"); lines != 2 {
		t.Errorf("trace has %d lines, want 2:\n%s", lines, trace.String())
	}
}

func TestExecuteJournal(t *testing.T) {
	units, err := loadUnits(writeSource(t, patrol))
	if err != nil {
		t.Fatal(err)
	}
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	r := &runner{opts: vm.DefaultOptions(), out: &bytes.Buffer{}, journal: j}
	if _, err := r.execute(context.Background(), units, ""); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := listRuns(&buf, j); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "PATROL") {
		t.Errorf("runs listing = %q", buf.String())
	}

	buf.Reset()
	if err := listTransitions(&buf, j, j.RunID()); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Running -> Waiting", "Waiting -> Runnable", "-> Ended"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("transitions missing %q:\n%s", want, buf.String())
		}
	}
}

func TestAsmThenDisasmAndRun(t *testing.T) {
	src := writeSource(t, patrol)

	var out bytes.Buffer
	if err := handleAsmCommand([]string{src}, &out); err != nil {
		t.Fatalf("asm failed: %v", err)
	}
	obj := objectPath(src)
	if !strings.HasPrefix(out.String(), obj) {
		t.Errorf("asm output = %q", out.String())
	}

	out.Reset()
	if err := handleDisasmCommand([]string{obj}, &out); err != nil {
		t.Fatalf("disasm failed: %v", err)
	}
	if !strings.Contains(out.String(), "PATROL") || !strings.Contains(out.String(), "SUM") {
		t.Errorf("disasm output missing units:\n%s", out.String())
	}

	units, err := loadUnits(obj)
	if err != nil {
		t.Fatal(err)
	}
	if isOptimized(units[1]) {
		t.Error("object files hold canonical code")
	}
	if n, err := optimizeUnits(units); err != nil || n == 0 {
		t.Errorf("optimizing loaded units = %d, %v", n, err)
	}
	r := &runner{opts: vm.DefaultOptions(), out: &bytes.Buffer{}}
	p, err := r.execute(context.Background(), units, "sum")
	if err != nil {
		t.Fatal(err)
	}
	if p.State() != vm.Ended || p.Result().String() != "55" {
		t.Errorf("state = %s, result = %v", p.State(), p.Result())
	}
}

func TestRunCommandUsesManifestEntry(t *testing.T) {
	src := writeSource(t, ".sub HELLO\n\tpush lit \"hi\"\n\tpush gvar PRINT\n\tindirect call 1\n.end\n")
	m := manifest.Default(filepath.Dir(src))
	m.Source.Entry = filepath.Base(src)

	var out bytes.Buffer
	if err := handleRunCommand(m, nil, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.String() != "hi\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunCommandWithoutFile(t *testing.T) {
	m := manifest.Default(t.TempDir())
	if err := handleRunCommand(m, nil, &bytes.Buffer{}); err == nil {
		t.Error("expected error without file or entry")
	}
}

func TestStateLabel(t *testing.T) {
	if got := stateLabel(vm.Ended, false); got != "Ended" {
		t.Errorf("plain label = %q", got)
	}
	if got := stateLabel(vm.Failed, true); got != ansiRed+"Failed"+ansiReset {
		t.Errorf("colored label = %q", got)
	}
}
