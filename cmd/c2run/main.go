// c2run assembles, inspects and runs c2script compiled units.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/c2script/journal"
	"github.com/chazu/c2script/manifest"
	"github.com/chazu/c2script/vm"
)

var errProcessFailed = errors.New("process failed")

func main() {
	verbose := flag.Bool("v", false, "Verbose output (debug logging)")
	dir := flag.String("C", ".", "Directory to search upwards for c2script.toml or c2script.yaml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: c2run [options] <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run [flags] [file]     Run a unit from assembler source (.c2s) or an object file (.c2o)\n")
		fmt.Fprintf(os.Stderr, "  asm [flags] <file>     Assemble source into an object file\n")
		fmt.Fprintf(os.Stderr, "  disasm <file>          Print the instructions of every unit\n")
		fmt.Fprintf(os.Stderr, "  journal [run-id]       List recorded runs, or the transitions of one run\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  c2run run units/patrol.c2s            # Run the first unit\n")
		fmt.Fprintf(os.Stderr, "  c2run run -entry DOCK -trace fleet.c2o  # Run DOCK with an instruction trace\n")
		fmt.Fprintf(os.Stderr, "  c2run asm -o fleet.c2o fleet.c2s\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := loadManifest(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	configureLogging(m, *verbose)

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		err = handleRunCommand(m, rest, os.Stdout)
	case "asm":
		err = handleAsmCommand(rest, os.Stdout)
	case "disasm":
		err = handleDisasmCommand(rest, os.Stdout)
	case "journal":
		err = handleJournalCommand(m, rest, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	if errors.Is(err, errProcessFailed) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadManifest finds the project configuration, falling back to defaults
// rooted at dir.
func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default(dir)
	}
	return m, nil
}

func configureLogging(m *manifest.Manifest, verbose bool) {
	verbosity := m.Log.Verbosity
	if verbose {
		verbosity = 2
	}
	var path *string
	if p := m.LogPath(); p != "" {
		path = &p
	}
	commonlog.Configure(verbosity, path)
}

func openJournal(m *manifest.Manifest) (*journal.Journal, error) {
	return journal.Open(m.JournalPath())
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func handleRunCommand(m *manifest.Manifest, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	entry := fs.String("entry", "", "Unit to run (default: the first unit)")
	trace := fs.Bool("trace", false, "Trace every executed instruction to stderr")
	noOpt := fs.Bool("no-optimize", false, "Run the canonical instruction stream without fusing")
	record := fs.Bool("journal", m.Journal.Enabled, "Record process transitions in the journal")
	timeout := fs.Duration("timeout", 0, "Give up waiting for continuations after this long")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := fs.Arg(0)
	if path == "" {
		path = m.EntryPath()
	}
	if path == "" {
		return fmt.Errorf("no file given and no source.entry configured")
	}

	units, err := loadUnits(path)
	if err != nil {
		return err
	}
	if m.Scheduler.Optimize && !*noOpt {
		n, err := optimizeUnits(units)
		if err != nil {
			return err
		}
		log.Debugf("fused %d sequences", n)
	}

	r := &runner{opts: m.Options(), out: stdout}
	if *trace {
		r.trace = os.Stderr
	}
	if *record {
		j, err := openJournal(m)
		if err != nil {
			return err
		}
		defer j.Close()
		r.journal = j
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	p, err := r.execute(ctx, units, *entry)
	if err != nil {
		return err
	}
	return report(os.Stderr, p, colorEnabled(os.Stderr))
}

// report prints the outcome of p and returns errProcessFailed if it did
// not end normally.
func report(w io.Writer, p *vm.Process, color bool) error {
	switch p.State() {
	case vm.Ended:
		if p.Result() != nil {
			fmt.Fprintf(w, "%s %s => %s\n", p.Name(), stateLabel(p.State(), color), p.Result())
		}
		return nil
	case vm.Failed:
		e := p.Error()
		fmt.Fprintf(w, "%s %s: %s\n", p.Name(), stateLabel(p.State(), color), e.Message)
		for _, line := range e.Trace {
			fmt.Fprintf(w, "    %s\n", line)
		}
		return errProcessFailed
	case vm.Suspended, vm.Frozen:
		fmt.Fprintf(w, "%s %s\n", p.Name(), stateLabel(p.State(), color))
		return nil
	}
	fmt.Fprintf(w, "%s %s\n", p.Name(), stateLabel(p.State(), color))
	return errProcessFailed
}

func handleAsmCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("asm", flag.ContinueOnError)
	output := fs.String("o", "", "Output object file (default: source name with .c2o)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("asm needs exactly one source file")
	}

	src := fs.Arg(0)
	units, err := loadUnits(src)
	if err != nil {
		return err
	}
	out := *output
	if out == "" {
		out = objectPath(src)
	}
	if err := writeUnits(out, units); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d units\n", out, len(units))
	return nil
}

func handleDisasmCommand(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("disasm needs exactly one file")
	}
	units, err := loadUnits(args[0])
	if err != nil {
		return err
	}
	for i, o := range units {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprint(stdout, o.Disassemble())
	}
	return nil
}

func handleJournalCommand(m *manifest.Manifest, args []string, stdout io.Writer) error {
	j, err := openJournal(m)
	if err != nil {
		return err
	}
	defer j.Close()

	if len(args) == 0 {
		return listRuns(stdout, j)
	}
	return listTransitions(stdout, j, args[0])
}

func listRuns(w io.Writer, j *journal.Journal) error {
	runs, err := j.Runs()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%-36s  %-16s  %s\n", "RUN", "LABEL", "STARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-16s  %s\n", r.ID, r.Label, r.Started.Local().Format(time.DateTime))
	}
	return nil
}

func listTransitions(w io.Writer, j *journal.Journal, run string) error {
	ts, err := j.Transitions(run)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%5s  %-16s  %5s  %-24s  %s\n", "PID", "NAME", "GROUP", "TRANSITION", "ERROR")
	for _, t := range ts {
		fmt.Fprintf(w, "%5d  %-16s  %5d  %-24s  %s\n", t.PID, t.Name, t.Group, t.Old+" -> "+t.New, strings.TrimSpace(t.Error))
	}
	return nil
}
