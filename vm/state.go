package vm

import "fmt"

// State is the life-cycle state of a process.
type State uint8

const (
	Suspended  State = iota // saved; resumed by ResumeSuspendedProcesses
	Frozen                  // excluded from scheduling until thawed
	Runnable                // waiting for its group to reach it
	Running                 // the group's current process
	Waiting                 // parked on a Continuation
	Ended                   // ran off its outermost frame
	Terminated              // stopped by request
	Failed                  // died from an uncaught error
)

var stateNames = [...]string{
	Suspended:  "Suspended",
	Frozen:     "Frozen",
	Runnable:   "Runnable",
	Running:    "Running",
	Waiting:    "Waiting",
	Ended:      "Ended",
	Terminated: "Terminated",
	Failed:     "Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// IsTerminal reports whether s is final.
func (s State) IsTerminal() bool { return s >= Ended }

// IsActive reports whether a process in state s is a member its group is
// waiting for.
func (s State) IsActive() bool { return s == Runnable || s == Running || s == Waiting }

// ProcessKind classifies what a process was started for. Together with the
// invoking object it identifies the process in FindProcessByObject.
type ProcessKind uint8

const (
	KindDefault ProcessKind = iota
	KindShipTask
	KindPlanetTask
	KindBaseTask
)

var processKindNames = [...]string{
	KindDefault:    "default",
	KindShipTask:   "ship-task",
	KindPlanetTask: "planet-task",
	KindBaseTask:   "base-task",
}

func (k ProcessKind) String() string {
	if int(k) < len(processKindNames) {
		return processKindNames[k]
	}
	return fmt.Sprintf("ProcessKind(%d)", uint8(k))
}
