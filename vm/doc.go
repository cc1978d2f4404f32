// Package vm executes compiled script units as cooperatively scheduled
// processes.
//
// This package contains:
//   - Process: value stack, frame stack, catch markers and contexts of one
//     running script, plus its life-cycle state machine
//   - the instruction interpreter for every canonical and fused opcode
//   - ProcessList: the scheduler, process groups and their completion
//     signals
//   - World: globals, native callables and the optional statement compiler
//   - Continuation: the hook through which asynchronous host operations
//     resume a waiting process
//
// Processes never run in parallel. A process runs until it yields (suspends,
// freezes, waits, ends, terminates or fails); only then does the scheduler
// pick the next runnable process. All ProcessList methods must be called from
// the goroutine that owns the list, except Continuation.Resolve and
// Continuation.Reject, which may be called from anywhere.
package vm
