// Package vm implements the execution unit owned by every process: a stack
// machine whose whole state (instruction pointer, operand stack, locals and
// pending waits) lives in the VM value, so a process can suspend on a channel,
// be persisted in the tuple space and resume exactly where it stopped.
package vm

import (
	"context"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/registry"
)

// MachineKind identifies VMs in the value codec.
const MachineKind = "vm"

// DefaultBudget is the number of instructions a VM runs per Resume before it
// yields.
const DefaultBudget = 10_000

// DefaultSpawnKind is the namespace of identities given to spawned processes.
const DefaultSpawnKind uint8 = 1

// MaxStack bounds the operand stack.
const MaxStack = 1 << 16

// Natives resolves the call instruction.
type Natives interface {
	Execute(ctx context.Context, name string, args []domain.Value) (domain.Value, error)
}

// barrier is the progress of a join across suspensions.
type barrier struct {
	Channel domain.Name
	Want    int
	Got     []domain.Value
}

// VM is a resumable stack machine. It implements domain.Machine.
// A VM is not safe for concurrent use; it is owned by exactly one process.
type VM struct {
	prog   *Program
	lib    *Library
	ip     int
	cur    OpCode
	stack  []domain.Value
	locals []domain.Value
	wait   *domain.Name
	join   *barrier

	done   bool
	result domain.Value
	fault  string

	budget    int
	spawnKind uint8
	natives   Natives
}

var _ domain.Machine = (*VM)(nil)

// Option configures a VM.
type Option func(*VM)

// WithBudget sets the instructions run per Resume. Zero or less disables the
// budget.
func WithBudget(n int) Option {
	return func(v *VM) {
		v.budget = n
	}
}

// WithLibrary makes the programs of lib available to spawn.
func WithLibrary(lib *Library) Option {
	return func(v *VM) {
		v.lib = lib
	}
}

// WithNatives sets the natives resolved by call.
func WithNatives(n Natives) Option {
	return func(v *VM) {
		v.natives = n
	}
}

// WithSpawnKind sets the namespace of spawned process identities.
func WithSpawnKind(kind uint8) Option {
	return func(v *VM) {
		v.spawnKind = kind
	}
}

// WithLocals seeds the first locals.
func WithLocals(vals ...domain.Value) Option {
	return func(v *VM) {
		v.locals = append([]domain.Value(nil), vals...)
	}
}

// WithWait starts the VM blocked on ch. The process owning it starts Waiting
// and the first Resume runs from the beginning.
func WithWait(ch domain.Name) Option {
	return func(v *VM) {
		v.wait = &ch
	}
}

// New creates a VM at the start of prog.
func New(prog *Program, opts ...Option) *VM {
	v := &VM{
		prog:      prog,
		budget:    DefaultBudget,
		spawnKind: DefaultSpawnKind,
		natives:   registry.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewProcess wraps a fresh VM running prog in a process named id.
func NewProcess(id domain.Name, prog *Program, opts ...Option) *domain.Process {
	return domain.NewProcess(id, New(prog, opts...))
}

// IP returns the instruction pointer.
func (v *VM) IP() int { return v.ip }

// Stack returns a copy of the operand stack, bottom first.
func (v *VM) Stack() []domain.Value {
	return append([]domain.Value(nil), v.stack...)
}

// Locals returns a copy of the locals.
func (v *VM) Locals() []domain.Value {
	return append([]domain.Value(nil), v.locals...)
}

// Program returns the program being run.
func (v *VM) Program() *Program { return v.prog }

// Blocked reports the channel the VM is waiting on.
func (v *VM) Blocked() (domain.Name, bool) {
	if v.wait == nil {
		return domain.Name{}, false
	}
	return *v.wait, true
}

// MachineKind implements domain.Machine.
func (v *VM) MachineKind() string { return MachineKind }

// Resume runs until the program halts, fails, blocks on an empty channel,
// yields or exhausts its budget. Only context errors are returned; the VM is
// left at the instruction that observed them.
func (v *VM) Resume(ctx context.Context, space domain.Space) (domain.Step, error) {
	if v.done {
		return v.finished(), nil
	}
	if err := ctx.Err(); err != nil {
		return domain.Step{}, err
	}
	v.wait = nil
	return v.run(ctx, space)
}

func (v *VM) finished() domain.Step {
	if v.fault != "" {
		return domain.Step{Signal: domain.SignalFault, Fault: v.fault}
	}
	return domain.Step{Signal: domain.SignalHalted, Value: v.result}
}

func (v *VM) halt(result domain.Value) domain.Step {
	if result == nil {
		result = domain.Nil{}
	}
	v.done = true
	v.result = result
	v.stack = nil
	return v.finished()
}

func (v *VM) abort(msg string) domain.Step {
	v.done = true
	v.fault = msg
	v.stack = nil
	v.join = nil
	return v.finished()
}

func (v *VM) push(val domain.Value) {
	if len(v.stack) >= MaxStack {
		v.fail("stack overflow")
	}
	v.stack = append(v.stack, val)
}

func (v *VM) pop() domain.Value {
	n := len(v.stack)
	if n == 0 {
		v.fail("stack underflow")
	}
	val := v.stack[n-1]
	v.stack[n-1] = nil
	v.stack = v.stack[:n-1]
	return val
}

func (v *VM) top() domain.Value {
	if len(v.stack) == 0 {
		v.fail("stack underflow")
	}
	return v.stack[len(v.stack)-1]
}

// popN pops n values and returns them in push order.
func (v *VM) popN(n int) []domain.Value {
	if n > len(v.stack) {
		v.fail("stack underflow")
	}
	start := len(v.stack) - n
	out := append([]domain.Value(nil), v.stack[start:]...)
	clear(v.stack[start:])
	v.stack = v.stack[:start]
	return out
}

func (v *VM) popName() domain.Name {
	val := v.pop()
	name, ok := val.(domain.Name)
	if !ok {
		v.fail("expected channel name, got %s", val.Kind())
	}
	return name
}

// child creates the VM of a spawned process.
func (v *VM) child(prog *Program, args []domain.Value) *VM {
	return &VM{
		prog:      prog,
		lib:       v.lib,
		locals:    args,
		budget:    v.budget,
		spawnKind: v.spawnKind,
		natives:   v.natives,
	}
}
