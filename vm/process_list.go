package vm

import (
	"context"
	"slices"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/chazu/c2script/pkg/value"
)

var log = commonlog.GetLogger("c2script.vm")

// Options configures a ProcessList.
type Options struct {
	// DefaultPriority is assigned to new processes. Lower values run first.
	DefaultPriority int
	// MaxStackDepth limits each process's value stack; 0 means no limit.
	MaxStackDepth int
	// MaxFrameDepth limits call nesting; 0 means no limit.
	MaxFrameDepth int
}

// DefaultOptions returns the options used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		DefaultPriority: 50,
		MaxStackDepth:   10000,
		MaxFrameDepth:   1000,
	}
}

// StateChange describes one process state transition.
type StateChange struct {
	Process *Process
	Old     State
}

// ProcessList owns a set of processes and schedules them. Processes run one
// at a time in priority order (lower value first, then creation order).
// Within a process group at most one process is Running or Waiting; the
// group finishes when none of its members is Runnable, Running or Waiting.
type ProcessList struct {
	world *World
	opts  Options

	processes []*Process
	nextPID   uint32
	nextGroup uint32
	nextSeq   uint64

	// groups holds allocated groups that have not finished yet.
	groups map[uint32]bool

	mailbox *mailbox
	running bool

	// current is the process being stepped by Run; currentFinished is set
	// when its group finishes before the process yields.
	current         *Process
	currentFinished bool

	groupFinished Signal[uint32]
	stateChanged  Signal[StateChange]
}

// NewProcessList creates an empty list operating on w.
func NewProcessList(w *World, opts Options) *ProcessList {
	if w == nil {
		w = NewWorld()
	}
	return &ProcessList{
		world:   w,
		opts:    opts,
		groups:  make(map[uint32]bool),
		mailbox: newMailbox(),
	}
}

// World returns the world processes of this list run in.
func (pl *ProcessList) World() *World { return pl.world }

// OnProcessGroupFinished registers fn to be called with the id of every
// group that finishes.
func (pl *ProcessList) OnProcessGroupFinished(fn func(group uint32)) (remove func()) {
	return pl.groupFinished.Add(fn)
}

// OnProcessStateChanged registers fn to be called after every state
// transition of any process.
func (pl *ProcessList) OnProcessStateChanged(fn func(p *Process, old State)) (remove func()) {
	return pl.stateChanged.Add(func(c StateChange) { fn(c.Process, c.Old) })
}

func (pl *ProcessList) processStateChanged(p *Process, old State) {
	log.Debugf("process %d %s -> %s", p.id, old, p.state)
	pl.stateChanged.Raise(StateChange{Process: p, Old: old})
}

// ---------------------------------------------------------------------------
// Creation and ordering
// ---------------------------------------------------------------------------

// AllocateProcessGroup returns a fresh group id.
func (pl *ProcessList) AllocateProcessGroup() uint32 {
	pl.nextGroup++
	pl.groups[pl.nextGroup] = true
	return pl.nextGroup
}

// Create adds a new Suspended process with no frames. Push a frame with
// Process.PushFrame, then resume it into a group.
func (pl *ProcessList) Create(name string) *Process {
	pl.nextPID++
	pl.nextSeq++
	p := &Process{
		id:        pl.nextPID,
		name:      name,
		list:      pl,
		state:     Suspended,
		priority:  pl.opts.DefaultPriority,
		seq:       pl.nextSeq,
		maxStack:  pl.opts.MaxStackDepth,
		maxFrames: pl.opts.MaxFrameDepth,
	}
	pl.insert(p)
	return p
}

func (pl *ProcessList) insert(p *Process) {
	i := sort.Search(len(pl.processes), func(i int) bool {
		q := pl.processes[i]
		return q.priority > p.priority || (q.priority == p.priority && q.seq > p.seq)
	})
	pl.processes = slices.Insert(pl.processes, i, p)
}

func (pl *ProcessList) remove(p *Process) bool {
	i := slices.Index(pl.processes, p)
	if i < 0 {
		return false
	}
	pl.processes = slices.Delete(pl.processes, i, i+1)
	return true
}

// HandlePriorityChange moves p to the position its current priority
// dictates. Processes of equal priority keep creation order.
func (pl *ProcessList) HandlePriorityChange(p *Process) {
	if pl.remove(p) {
		pl.insert(p)
	}
}

// SetPriority changes p's priority and reorders the list.
func (pl *ProcessList) SetPriority(p *Process, pri int) {
	p.priority = pri
	pl.HandlePriorityChange(p)
}

// Processes returns the processes in scheduling order.
func (pl *ProcessList) Processes() []*Process {
	return slices.Clone(pl.processes)
}

// FindProcessByID returns the process with the given id, or nil.
func (pl *ProcessList) FindProcessByID(id uint32) *Process {
	for _, p := range pl.processes {
		if p.id == id {
			return p
		}
	}
	return nil
}

// FindProcessByObject returns the first process of the given kind started
// for obj, or nil. obj must be comparable.
func (pl *ProcessList) FindProcessByObject(obj any, kind ProcessKind) *Process {
	if obj == nil {
		return nil
	}
	for _, p := range pl.processes {
		if p.kind == kind && p.object == obj {
			return p
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

// ResumeProcess makes a Suspended process Runnable as a member of group.
func (pl *ProcessList) ResumeProcess(p *Process, group uint32) {
	if p.state != Suspended {
		return
	}
	p.group = group
	p.setState(Runnable)
}

// ResumeSuspendedProcesses makes every Suspended process Runnable as a
// member of group.
func (pl *ProcessList) ResumeSuspendedProcesses(group uint32) {
	for _, p := range pl.Processes() {
		pl.ResumeProcess(p, group)
	}
}

// JoinProcess moves an active process into group, keeping its execution
// state. The old group continues (or finishes) if p was its current process.
func (pl *ProcessList) JoinProcess(p *Process, group uint32) {
	if !p.state.IsActive() || p.group == group {
		return
	}
	old := p.group
	wasWorker := p.state == Running || p.state == Waiting
	p.group = group
	if p.state == Running && pl.groupBusy(group, p) {
		p.setState(Runnable)
	}
	if wasWorker {
		pl.advanceGroup(old)
	}
}

// StartProcessGroup starts the first Runnable member of group. A group
// with nothing left to run finishes immediately.
func (pl *ProcessList) StartProcessGroup(group uint32) {
	log.Debugf("starting group %d", group)
	pl.advanceGroup(group)
}

// groupBusy reports whether a member other than except is Running or
// Waiting.
func (pl *ProcessList) groupBusy(group uint32, except *Process) bool {
	for _, q := range pl.processes {
		if q != except && q.group == group && (q.state == Running || q.state == Waiting) {
			return true
		}
	}
	return false
}

// advanceGroup picks the group's next process once its current one has
// yielded, or finishes the group.
func (pl *ProcessList) advanceGroup(group uint32) {
	var next *Process
	for _, q := range pl.processes {
		if q.group != group {
			continue
		}
		switch q.state {
		case Running, Waiting:
			return
		case Runnable:
			if next == nil {
				next = q
			}
		}
	}
	if next != nil {
		next.setState(Running)
		return
	}
	pl.finishGroup(group)
}

func (pl *ProcessList) finishGroup(group uint32) {
	if pl.current != nil && pl.current.group == group {
		pl.currentFinished = true
	}
	delete(pl.groups, group)
	log.Debugf("group %d finished", group)
	pl.groupFinished.Raise(group)
}

// ---------------------------------------------------------------------------
// Running
// ---------------------------------------------------------------------------

// Run executes Running processes until none is left. Pending continuation
// outcomes are applied before each process is picked. If trace is not nil,
// it sees every executed instruction.
func (pl *ProcessList) Run(trace TraceSink) {
	if pl.running {
		return
	}
	pl.running = true
	defer func() { pl.running = false }()

	for {
		pl.drainMailbox()
		p := pl.firstRunning()
		if p == nil {
			return
		}
		pl.runProcess(p, trace)
	}
}

func (pl *ProcessList) firstRunning() *Process {
	for _, p := range pl.processes {
		if p.state == Running {
			return p
		}
	}
	return nil
}

func (pl *ProcessList) runProcess(p *Process, trace TraceSink) {
	pl.current, pl.currentFinished = p, false
	defer func() { pl.current = nil }()
	for p.state == Running {
		p.step(pl.world, trace)
	}
	switch p.state {
	case Failed:
		log.Infof("process %d (%s) failed: %s", p.id, p.name, p.err.Message)
	case Ended:
		log.Debugf("process %d (%s) ended with %s", p.id, p.name, value.ToString(p.result))
	}
	if !pl.currentFinished {
		pl.advanceGroup(p.group)
	}
}

func (pl *ProcessList) runIfIdle() {
	if !pl.running {
		pl.Run(nil)
	}
}

func (pl *ProcessList) drainMailbox() {
	for _, msg := range pl.mailbox.take() {
		p := pl.FindProcessByID(msg.pid)
		if p == nil || p.state != Waiting || p.waitTicket != msg.ticket {
			log.Debugf("dropping stale continuation for process %d", msg.pid)
			continue
		}
		if msg.failed {
			pl.fail(p, msg.reason)
		} else {
			pl.resolve(p, msg.value, true)
		}
		pl.advanceGroup(p.group)
	}
}

// Wait blocks until a continuation has been resolved or rejected, or ctx
// ends. Call Run afterwards to apply the outcome.
func (pl *ProcessList) Wait(ctx context.Context) error {
	return pl.mailbox.wait(ctx)
}

// HasWaitingProcesses reports whether any process is parked on a
// continuation or a continuation outcome is pending.
func (pl *ProcessList) HasWaitingProcesses() bool {
	if pl.mailbox.len() > 0 {
		return true
	}
	for _, p := range pl.processes {
		if p.state == Waiting {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Continuing
// ---------------------------------------------------------------------------

// ContinueProcess resumes a Waiting process and runs until the scheduler
// yields. It does nothing unless p is Waiting.
func (pl *ProcessList) ContinueProcess(p *Process) {
	if p == nil || p.state != Waiting {
		return
	}
	pl.resolve(p, nil, false)
	pl.advanceGroup(p.group)
	pl.runIfIdle()
}

// ContinueProcessWithFailure resumes a Waiting process by raising an error
// with message msg at its current position, then runs until the scheduler
// yields. A catch handler in the process receives msg; without one the
// process fails and its group moves on. It does nothing unless p is Waiting.
func (pl *ProcessList) ContinueProcessWithFailure(p *Process, msg string) {
	if p == nil || p.state != Waiting {
		return
	}
	pl.fail(p, msg)
	pl.advanceGroup(p.group)
	pl.runIfIdle()
}

func (pl *ProcessList) resolve(p *Process, v value.Value, push bool) {
	if push && p.waitWantResult {
		p.push(v)
	}
	p.waitTicket++
	p.setState(Runnable)
}

func (pl *ProcessList) fail(p *Process, msg string) {
	p.raise(&Error{Kind: ErrExternal, Message: msg, Value: value.String(msg)}, Runnable)
	if p.state == Failed {
		log.Infof("process %d (%s) failed: %s", p.id, p.name, msg)
	}
}

// ThawProcess returns a Frozen process to Suspended.
func (pl *ProcessList) ThawProcess(p *Process) {
	if p.state == Frozen {
		p.setState(Suspended)
	}
}

// ---------------------------------------------------------------------------
// Termination
// ---------------------------------------------------------------------------

// TerminateProcess stops p. Finished processes are left alone. If p was its
// group's current process, the group continues with its next member.
func (pl *ProcessList) TerminateProcess(p *Process) {
	if p.state.IsTerminal() {
		return
	}
	wasWorker := p.state == Running || p.state == Waiting
	p.waitTicket++
	p.setState(Terminated)
	if wasWorker {
		pl.advanceGroup(p.group)
	}
}

// TerminateProcessGroup stops every member of group except Frozen ones and
// signals the group's completion once.
func (pl *ProcessList) TerminateProcessGroup(group uint32) {
	for _, p := range pl.Processes() {
		if p.group == group && terminableInBulk(p) {
			p.waitTicket++
			p.setState(Terminated)
		}
	}
	pl.finishGroup(group)
}

// TerminateAllProcesses stops every process except Frozen ones. Each group
// that had active members or was still pending finishes once.
func (pl *ProcessList) TerminateAllProcesses() {
	finished := make(map[uint32]bool)
	for g := range pl.groups {
		finished[g] = true
	}
	for _, p := range pl.Processes() {
		if !terminableInBulk(p) {
			continue
		}
		if p.state.IsActive() {
			finished[p.group] = true
		}
		p.waitTicket++
		p.setState(Terminated)
	}
	ids := make([]uint32, 0, len(finished))
	for g := range finished {
		ids = append(ids, g)
	}
	slices.Sort(ids)
	for _, g := range ids {
		pl.finishGroup(g)
	}
}

func terminableInBulk(p *Process) bool {
	return !p.state.IsTerminal() && p.state != Frozen
}

// RemoveTerminatedProcesses drops every finished process from the list and
// runs its finalizer.
func (pl *ProcessList) RemoveTerminatedProcesses() {
	var reaped []*Process
	kept := pl.processes[:0]
	for _, p := range pl.processes {
		if p.state.IsTerminal() {
			reaped = append(reaped, p)
		} else {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(pl.processes); i++ {
		pl.processes[i] = nil
	}
	pl.processes = kept

	for _, p := range reaped {
		p.releaseFrames()
		if p.reaped {
			continue
		}
		p.reaped = true
		if fn := p.finalizer; fn != nil {
			p.finalizer = nil
			fn(p)
		}
	}
}
