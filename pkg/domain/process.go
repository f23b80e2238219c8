package domain

import (
	"context"
	"fmt"
)

// State is the position of a process in its lifecycle.
type State uint8

const (
	StateWaiting   State = iota // Blocked on a channel or barrier
	StateRunnable               // Ready to be executed
	StateCompleted              // Finished with a value (terminal)
	StateFailed                 // Finished with a failure message (terminal)
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateRunnable:
		return "runnable"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Terminal reports whether no transition can leave s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Space is the channel surface a running machine sees. It is the only way two
// processes can exchange data.
type Space interface {
	Tell(ctx context.Context, kind uint8, channel string, v Value) error
	Ask(ctx context.Context, kind uint8, channel string) (Value, error)
	Peek(ctx context.Context, kind uint8, channel string) (Value, error)
}

// Signal tells the process how a Resume call ended.
type Signal uint8

const (
	SignalYield   Signal = iota // Still has work; schedule again
	SignalBlocked               // Waiting on a channel
	SignalHalted                // Finished normally
	SignalFault                 // Unrecoverable program error
)

// Step is the result of resuming a machine.
type Step struct {
	Signal Signal
	Value  Value  // Set when Signal == SignalHalted
	Fault  string // Set when Signal == SignalFault
}

// Machine is a resumable execution unit. It keeps its own instruction pointer,
// operand stack and locals between Resume calls. A Machine is owned by exactly
// one Process.
type Machine interface {
	// Resume advances the machine until it halts, blocks, yields or faults.
	// Only context errors are returned as errors; program errors are reported
	// through Step.
	Resume(ctx context.Context, space Space) (Step, error)

	// Blocked reports the channel the machine is waiting on, if any.
	Blocked() (Name, bool)

	// MachineKind names the implementation for the value codec.
	MachineKind() string
}

// Outcome is a snapshot of a process's state after Execute.
type Outcome struct {
	State   State
	Value   Value
	Failure string
}

// Process is one independent, suspendable unit of execution.
//
// A Process is not safe for concurrent use; the scheduler guarantees that a
// drained process is touched by a single worker at a time.
type Process struct {
	id      Name
	state   State
	result  Value
	failure string
	machine Machine
}

// NewProcess creates a process with a stable identity around m.
// It starts Waiting when m is already blocked on a receive, Runnable otherwise.
func NewProcess(id Name, m Machine) *Process {
	p := &Process{id: id, state: StateRunnable, machine: m}
	if _, blocked := m.Blocked(); blocked {
		p.state = StateWaiting
	}
	return p
}

// NewCompleted creates a process already completed with v.
func NewCompleted(id Name, v Value) *Process {
	if v == nil {
		v = Nil{}
	}
	return &Process{id: id, state: StateCompleted, result: v}
}

// NewFailed creates a process already failed with msg.
func NewFailed(id Name, msg string) *Process {
	return &Process{id: id, state: StateFailed, failure: msg}
}

// ID returns the stable identity of the process.
func (p *Process) ID() Name { return p.id }

// State returns the current state.
func (p *Process) State() State { return p.state }

// Result returns the completion value; nil unless Completed.
func (p *Process) Result() Value { return p.result }

// Failure returns the failure message; empty unless Failed.
func (p *Process) Failure() string { return p.failure }

// Machine returns the owned execution unit. Nil for processes created terminal.
func (p *Process) Machine() Machine { return p.machine }

// Blocked reports the channel a waiting process is blocked on.
func (p *Process) Blocked() (Name, bool) {
	if p.state != StateWaiting || p.machine == nil {
		return Name{}, false
	}
	return p.machine.Blocked()
}

// MarkRunnable moves a Waiting process to Runnable. It is performed by the
// component that observed the unblocking condition, never by the process itself.
func (p *Process) MarkRunnable() error {
	switch p.state {
	case StateWaiting:
		p.state = StateRunnable
		return nil
	case StateRunnable:
		return nil
	}
	return fmt.Errorf("%w: %s is %s", ErrTerminal, p.id, p.state)
}

func (p *Process) outcome() Outcome {
	return Outcome{State: p.state, Value: p.result, Failure: p.failure}
}

// Execute runs a Runnable process until it completes, blocks, yields or fails.
//
// Terminal processes are not re-run: the cached outcome is returned on every
// call and the store is not touched. Executing a Waiting process is a usage
// error. A panic inside the machine is contained as a failure of this process.
func (p *Process) Execute(ctx context.Context, space Space) (out Outcome, err error) {
	switch p.state {
	case StateCompleted, StateFailed:
		return p.outcome(), nil
	case StateWaiting:
		return p.outcome(), fmt.Errorf("%w: %s", ErrNotRunnable, p.id)
	}

	defer func() {
		if r := recover(); r != nil {
			p.state = StateFailed
			p.failure = fmt.Sprintf("machine panic: %v", r)
			out, err = p.outcome(), nil
		}
	}()

	step, err := p.machine.Resume(ctx, space)
	if err != nil {
		return p.outcome(), err
	}

	switch step.Signal {
	case SignalYield:
	case SignalBlocked:
		p.state = StateWaiting
	case SignalHalted:
		p.state = StateCompleted
		p.result = step.Value
		if p.result == nil {
			p.result = Nil{}
		}
	case SignalFault:
		p.state = StateFailed
		p.failure = step.Fault
	default:
		p.state = StateFailed
		p.failure = fmt.Sprintf("machine returned unknown signal %d", step.Signal)
	}
	return p.outcome(), nil
}

func (p *Process) String() string {
	switch p.state {
	case StateCompleted:
		return fmt.Sprintf("%s(completed %s)", p.id, render(p.result))
	case StateFailed:
		return fmt.Sprintf("%s(failed %q)", p.id, p.failure)
	}
	return fmt.Sprintf("%s(%s)", p.id, p.state)
}
