package vm_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adder = `
	push @0:c5
	push @0:c4
	ask          # blocks until c4 has a value
	push 2
	add
	tell
`

func execute(t *testing.T, p *domain.Process, space domain.Space) domain.Outcome {
	t.Helper()
	out, err := p.Execute(context.Background(), space)
	require.NoError(t, err)
	return out
}

func TestVM_ReceiveAddSend(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()
	require.NoError(t, space.Tell(ctx, 0, "@0:c4", domain.Int(3)))

	p := vm.NewProcess(domain.NewName(1, "C"), vm.MustAssemble(adder))
	out := execute(t, p, space)
	assert.Equal(t, domain.StateCompleted, out.State)

	v, err := space.Ask(ctx, 0, "@0:c5")
	require.NoError(t, err)
	assert.Equal(t, domain.Int(5), v)
}

func TestVM_BlocksAndResumesExactly(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()

	m := vm.New(vm.MustAssemble(adder))
	p := domain.NewProcess(domain.NewName(1, "C"), m)

	out := execute(t, p, space)
	require.Equal(t, domain.StateWaiting, out.State)

	wait, ok := p.Blocked()
	require.True(t, ok)
	assert.Equal(t, domain.MustName("@0:c4"), wait)
	assert.Equal(t, 2, m.IP(), "rewound to the ask")
	assert.Equal(t, []domain.Value{domain.MustName("@0:c5"), domain.MustName("@0:c4")}, m.Stack())

	require.NoError(t, space.Tell(ctx, 0, "@0:c4", domain.Int(40)))
	require.NoError(t, p.MarkRunnable())
	out = execute(t, p, space)
	assert.Equal(t, domain.StateCompleted, out.State)

	v, err := space.Ask(ctx, 0, "@0:c5")
	require.NoError(t, err)
	assert.Equal(t, domain.Int(42), v)
}

func TestVM_HaltValue(t *testing.T) {
	p := vm.NewProcess(domain.NewName(1, "h"), vm.MustAssemble(`
		push 6
		push 7
		mul
		halt
	`))
	out := execute(t, p, nil)
	assert.Equal(t, domain.StateCompleted, out.State)
	assert.Equal(t, domain.Int(42), out.Value)

	end := vm.NewProcess(domain.NewName(1, "e"), vm.MustAssemble(`push "last"`))
	assert.Equal(t, domain.Text("last"), execute(t, end, nil).Value, "running off the end returns the top")

	empty := vm.NewProcess(domain.NewName(1, "z"), vm.MustAssemble(``))
	assert.Equal(t, domain.Nil{}, execute(t, empty, nil).Value)
}

func TestVM_Faults(t *testing.T) {
	cases := map[string]struct {
		src  string
		want string
	}{
		"division by zero": {"push 1\npush 0\ndiv", "division by zero"},
		"modulo by zero":   {"push 1\npush 0\nmod", "division by zero"},
		"type mismatch":    {"push 1\npush \"a\"\nadd", "expected int operands"},
		"underflow":        {"pop", "stack underflow"},
		"index range":      {"push 1\nlist 1\npush 3\nindex", "out of range"},
		"missing key":      {"map 0\npush \"k\"\nindex", "not found"},
		"unset local":      {"load 3", "local 3 is not set"},
		"not a channel":    {"push 1\nask", "expected channel name"},
		"unknown native":   {"push \"nope\"\ncall 0", "native not found"},
		"user failure":     {"push \"custom message\"\nfail", "custom message"},
		"no space":         {"push @0:x\nask", "no tuple space"},
		"bad opcode":       {"", "unknown opcode"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			prog := vm.MustAssemble(tc.src)
			if name == "bad opcode" {
				prog.Code = []vm.OpCode{vm.OpCode(250)}
			}
			p := vm.NewProcess(domain.NewName(1, "f"), prog)
			out := execute(t, p, nil)
			assert.Equal(t, domain.StateFailed, out.State)
			assert.Contains(t, out.Failure, tc.want)
		})
	}
}

func TestVM_UserFailureIsVerbatim(t *testing.T) {
	p := vm.NewProcess(domain.NewName(1, "f"), vm.MustAssemble(`
		push "division by zero"
		fail
	`))
	assert.Equal(t, "division by zero", execute(t, p, nil).Failure)
}

func TestVM_Collections(t *testing.T) {
	p := vm.NewProcess(domain.NewName(1, "c"), vm.MustAssemble(`
		push "a"
		push 1
		push "b"
		push 2
		map 2
		store 0
		load 0
		push "b"
		index        # 2
		load 0
		len          # 2
		add          # 4
		push "x"
		push "y"
		concat       # "xy"
		len          # 2
		mul          # 8
		push 1
		push 2
		tuple 2
		push 0
		index        # 1
		add          # 9
		halt
	`))
	assert.Equal(t, domain.Int(9), execute(t, p, nil).Value)
}

func TestVM_LoopWithLabels(t *testing.T) {
	// sum 1..10
	p := vm.NewProcess(domain.NewName(1, "sum"), vm.MustAssemble(`
		push 0
		store 0      ; acc
		push 10
		store 1      ; n
	loop:
		load 1
		jumpf done
		load 0
		load 1
		add
		store 0
		load 1
		push 1
		sub
		store 1
		jump loop
	done:
		load 0
		halt
	`))
	assert.Equal(t, domain.Int(55), execute(t, p, nil).Value)
}

func TestVM_Comparisons(t *testing.T) {
	p := vm.NewProcess(domain.NewName(1, "cmp"), vm.MustAssemble(`
		push 1
		push 2
		lt
		push "a"
		push "b"
		ge
		not
		and
		push 3
		push 3
		ne
		or
		halt
	`))
	assert.Equal(t, domain.Bool(true), execute(t, p, nil).Value)
}

func TestVM_BudgetYields(t *testing.T) {
	m := vm.New(vm.MustAssemble(`
	loop:
		jump loop
	`), vm.WithBudget(100))
	p := domain.NewProcess(domain.NewName(1, "spin"), m)

	for i := 0; i < 3; i++ {
		out := execute(t, p, nil)
		assert.Equal(t, domain.StateRunnable, out.State)
	}
}

func TestVM_ExplicitYield(t *testing.T) {
	m := vm.New(vm.MustAssemble(`
		push 1
		yield
		push 2
		add
		halt
	`))
	p := domain.NewProcess(domain.NewName(1, "y"), m)
	assert.Equal(t, domain.StateRunnable, execute(t, p, nil).State)
	assert.Equal(t, []domain.Value{domain.Int(1)}, m.Stack())
	assert.Equal(t, domain.Int(3), execute(t, p, nil).Value)
}

func TestVM_ContextCancelLeavesRunnable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := vm.NewProcess(domain.NewName(1, "spin"), vm.MustAssemble(`
	loop:
		jump loop
	`), vm.WithBudget(0))

	_, err := p.Execute(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.StateRunnable, p.State())
}

func TestVM_Join(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()
	m := vm.New(vm.MustAssemble(`
		push @0:votes
		join 3
		halt
	`))
	p := domain.NewProcess(domain.NewName(1, "j"), m)

	require.NoError(t, space.Tell(ctx, 0, "@0:votes", domain.Int(1)))
	assert.Equal(t, domain.StateWaiting, execute(t, p, space).State)

	require.NoError(t, space.Tell(ctx, 0, "@0:votes", domain.Int(2)))
	require.NoError(t, p.MarkRunnable())
	assert.Equal(t, domain.StateWaiting, execute(t, p, space).State)

	require.NoError(t, space.Tell(ctx, 0, "@0:votes", domain.Int(3)))
	require.NoError(t, space.Tell(ctx, 0, "@0:votes", domain.Int(4)))
	require.NoError(t, p.MarkRunnable())
	out := execute(t, p, space)
	assert.Equal(t, domain.StateCompleted, out.State)
	assert.Equal(t, domain.List{domain.Int(1), domain.Int(2), domain.Int(3)}, out.Value)

	v, err := space.Ask(ctx, 0, "@0:votes")
	require.NoError(t, err)
	assert.Equal(t, domain.Int(4), v, "join takes exactly its count")
}

func TestVM_PeekDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()
	require.NoError(t, space.Tell(ctx, 0, "@0:flag", domain.Bool(true)))

	p := vm.NewProcess(domain.NewName(1, "p"), vm.MustAssemble(`
		push @0:flag
		peek
		halt
	`))
	assert.Equal(t, domain.Bool(true), execute(t, p, space).Value)

	_, err := space.Peek(ctx, 0, "@0:flag")
	assert.NoError(t, err)
}

func TestVM_NewNamesAreFresh(t *testing.T) {
	p := vm.NewProcess(domain.NewName(1, "n"), vm.MustAssemble(`
		new 0
		new 0
		tuple 2
		halt
	`))
	out := execute(t, p, nil).Value.(domain.Tuple)
	a, b := out[0].(domain.Name), out[1].(domain.Name)
	assert.Equal(t, uint8(0), a.NS)
	assert.NotEqual(t, a, b)
}

func TestVM_Call(t *testing.T) {
	p := vm.NewProcess(domain.NewName(1, "call"), vm.MustAssemble(`
		push "upper"
		push "weft"
		call 1
		halt
	`))
	assert.Equal(t, domain.Text("WEFT"), execute(t, p, nil).Value)
}

func TestVM_Spawn(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()

	asm := vm.NewAssembler()
	require.NoError(t, asm.Add("main", `
		push @2:procs
		push @0:out
		push 20
		spawn worker 2
		push "spawned"
	`))
	require.NoError(t, asm.Add("worker", `
		load 0       # reply channel
		load 1
		push 1
		add
		tell
	`))
	lib, err := asm.Link()
	require.NoError(t, err)

	m, err := lib.NewVM("main", vm.WithSpawnKind(7))
	require.NoError(t, err)
	p := domain.NewProcess(domain.NewName(1, "main"), m)
	assert.Equal(t, domain.Text("spawned"), execute(t, p, space).Value)

	v, err := space.Ask(ctx, 2, "@2:procs")
	require.NoError(t, err)
	group := v.(domain.Par)
	require.Len(t, group, 1)
	child := group[0]
	assert.Equal(t, uint8(7), child.ID().NS)
	assert.Equal(t, domain.StateRunnable, child.State())

	execute(t, child, space)
	out, err := space.Ask(ctx, 0, "@0:out")
	require.NoError(t, err)
	assert.Equal(t, domain.Int(21), out)
}

func TestVM_Isolation(t *testing.T) {
	space := memory.NewSpace()
	src := `
		push 0
		store 0
		push 1000
		store 1
	loop:
		load 1
		jumpf done
		load 0
		load 2
		add
		store 0
		load 1
		push 1
		sub
		store 1
		jump loop
	done:
		load 0
		halt
	`
	prog := vm.MustAssemble(src)

	var wg sync.WaitGroup
	results := make([]domain.Value, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := vm.NewProcess(domain.NewName(1, "iso"), prog, vm.WithLocals(nil, nil, domain.Int(i)), vm.WithBudget(0))
			out, err := p.Execute(context.Background(), space)
			if err == nil {
				results[i] = out.Value
			}
		}(i)
	}
	wg.Wait()
	for i, v := range results {
		assert.Equal(t, domain.Int(1000*i), v, "process %d", i)
	}
}
