package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/c2script/journal"
	"github.com/chazu/c2script/pkg/bytecode"
	"github.com/chazu/c2script/pkg/value"
	"github.com/chazu/c2script/vm"
)

var log = commonlog.GetLogger("c2script.cli")

// runner executes one entry unit to completion.
type runner struct {
	opts    vm.Options
	out     io.Writer
	trace   io.Writer
	journal *journal.Journal
}

// newWorld makes every unit callable by name and installs the natives
// scripts can reach from the command line.
func (r *runner) newWorld(units []*bytecode.Object) *vm.World {
	w := vm.NewWorld()
	for _, o := range units {
		w.DefineGlobal(o.Name(), &bytecode.SubroutineValue{Object: o})
	}

	w.DefineNative("print", true, func(c *vm.Call) (value.Value, error) {
		parts := make([]string, len(c.Args))
		for i, a := range c.Args {
			parts[i] = value.ToString(a)
		}
		fmt.Fprintln(r.out, strings.Join(parts, " "))
		return nil, nil
	})

	w.DefineNative("sleep", true, func(c *vm.Call) (value.Value, error) {
		ms, err := intArg(c, 0)
		if err != nil {
			return nil, err
		}
		cont := c.Wait()
		time.AfterFunc(time.Duration(ms)*time.Millisecond, func() { cont.Resolve(nil) })
		return nil, nil
	})

	w.DefineNative("fail", true, func(c *vm.Call) (value.Value, error) {
		msg := value.ToString(c.Arg(0))
		cont := c.Wait()
		go cont.Reject(msg)
		return nil, nil
	})

	return w
}

func intArg(c *vm.Call, i int) (int, error) {
	switch v := c.Arg(i).(type) {
	case value.Int:
		return int(v), nil
	case value.Float:
		return int(v), nil
	}
	return 0, fmt.Errorf("argument %d: expected a number, got %s", i+1, value.ToString(c.Arg(i)))
}

// execute runs entry as the only member of a fresh process group and
// waits for every continuation it leaves behind.
func (r *runner) execute(ctx context.Context, units []*bytecode.Object, entry string) (*vm.Process, error) {
	arena := newArena(units)
	target, err := findUnit(arena, entry)
	if err != nil {
		return nil, err
	}

	pl := vm.NewProcessList(r.newWorld(units), r.opts)
	if r.journal != nil {
		run, err := r.journal.Attach(pl, target.Name())
		if err != nil {
			return nil, err
		}
		defer r.journal.Detach()
		log.Infof("journal run %s", run)
	}

	var trace vm.TraceSink
	if r.trace != nil {
		trace = vm.NewTextTrace(r.trace)
	}

	p := pl.Create(target.Name())
	if err := p.PushFrame(target, false); err != nil {
		return nil, err
	}
	g := pl.AllocateProcessGroup()
	pl.ResumeProcess(p, g)
	pl.StartProcessGroup(g)
	pl.Run(trace)

	for pl.HasWaitingProcesses() {
		if err := pl.Wait(ctx); err != nil {
			pl.TerminateAllProcesses()
			pl.RemoveTerminatedProcesses()
			return p, fmt.Errorf("waiting for %s: %w", target.Name(), err)
		}
		pl.Run(trace)
	}

	pl.RemoveTerminatedProcesses()
	if live := arena.Live(); p.State().IsTerminal() && len(live) > 0 {
		log.Warningf("%d units still referenced after %s", len(live), target.Name())
	}
	return p, nil
}
