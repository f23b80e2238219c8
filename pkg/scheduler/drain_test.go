package scheduler_test

import (
	"context"
	"testing"

	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/scheduler"
	"github.com/aretw0/weft/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stub is a machine that only reports whether it is blocked.
type stub struct {
	wait    domain.Name
	blocked bool
}

func (s *stub) Resume(context.Context, domain.Space) (domain.Step, error) {
	return domain.Step{Signal: domain.SignalHalted, Value: domain.Nil{}}, nil
}

func (s *stub) Blocked() (domain.Name, bool) { return s.wait, s.blocked }
func (s *stub) MachineKind() string          { return "stub" }

var procs = domain.NewName(2, "procs")

func ids(ps []*domain.Process) []domain.Name {
	out := make([]domain.Name, len(ps))
	for i, p := range ps {
		out[i] = p.ID()
	}
	return out
}

func TestDrain_ReadyDraining(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()

	p1 := domain.NewProcess(domain.NewName(3, "P1"), &stub{wait: domain.NewName(0, "c"), blocked: true})
	p2 := domain.NewProcess(domain.NewName(3, "P2"), &stub{})
	p3 := domain.NewFailed(domain.NewName(3, "P3"), "division by zero")
	require.Equal(t, domain.StateWaiting, p1.State())
	require.Equal(t, domain.StateRunnable, p2.State())

	require.NoError(t, space.Tell(ctx, 2, procs.String(), domain.Par{p1, p2, p3}))

	ready, err := scheduler.Drain(ctx, space, procs)
	require.NoError(t, err)
	assert.Equal(t, []domain.Name{p2.ID()}, ids(ready))

	v, err := space.Ask(ctx, 2, procs.String())
	require.NoError(t, err)
	assert.Equal(t, []domain.Name{p1.ID(), p3.ID()}, ids(v.(domain.Par)))

	_, err = space.Peek(ctx, 2, procs.String())
	assert.ErrorIs(t, err, domain.ErrEmpty, "exactly one group is stored back")
}

func TestDrain_WaitingOnChannel(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()

	a := vm.NewProcess(domain.NewName(3, "A"), vm.MustAssemble("push @0:c3\nask"), vm.WithWait(domain.NewName(0, "c3")))
	b := vm.NewProcess(domain.NewName(3, "B"), vm.MustAssemble("push 1"))
	require.NoError(t, space.Tell(ctx, 2, procs.String(), domain.Par{a, b}))

	ready, err := scheduler.Drain(ctx, space, procs)
	require.NoError(t, err)
	assert.Equal(t, []domain.Name{b.ID()}, ids(ready))

	v, err := space.Peek(ctx, 2, procs.String())
	require.NoError(t, err)
	assert.Equal(t, []domain.Name{a.ID()}, ids(v.(domain.Par)))
}

func TestDrain_EmptyChannel(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()

	ready, err := scheduler.Drain(ctx, space, procs)
	require.NoError(t, err)
	assert.Empty(t, ready)

	_, err = space.Peek(ctx, 2, procs.String())
	assert.ErrorIs(t, err, domain.ErrEmpty, "an absent channel is not created")
}

func TestDrain_AllReadyStoresEmptyGroup(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()
	p := domain.NewProcess(domain.NewName(3, "only"), &stub{})
	require.NoError(t, space.Tell(ctx, 2, procs.String(), domain.Par{p}))

	ready, err := scheduler.Drain(ctx, space, procs)
	require.NoError(t, err)
	require.Len(t, ready, 1)

	v, err := space.Ask(ctx, 2, procs.String())
	require.NoError(t, err)
	assert.Equal(t, domain.Par{}, v)
}

func TestDrain_NotParallel(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()
	require.NoError(t, space.Tell(ctx, 2, procs.String(), domain.Int(7)))

	_, err := scheduler.Drain(ctx, space, procs)
	assert.ErrorIs(t, err, domain.ErrNotParallel)

	v, err := space.Ask(ctx, 2, procs.String())
	require.NoError(t, err)
	assert.Equal(t, domain.Int(7), v, "nothing was removed")
}

func TestDrain_LeavesOtherChannels(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()
	require.NoError(t, space.Tell(ctx, 2, procs.String(), domain.Par{}))

	_, err := scheduler.Drain(ctx, space, domain.NewName(2, "other"))
	require.NoError(t, err)

	v, err := space.Peek(ctx, 2, procs.String())
	require.NoError(t, err)
	assert.Equal(t, domain.Par{}, v)
}

func TestPartition_PreservesOrder(t *testing.T) {
	r1 := domain.NewProcess(domain.NewName(3, "r1"), &stub{})
	w := domain.NewProcess(domain.NewName(3, "w"), &stub{blocked: true})
	r2 := domain.NewProcess(domain.NewName(3, "r2"), &stub{})
	c := domain.NewCompleted(domain.NewName(3, "c"), domain.Int(1))

	ready, pending := scheduler.Partition(domain.Par{r1, w, r2, c})
	assert.Equal(t, []domain.Name{r1.ID(), r2.ID()}, ids(ready))
	assert.Equal(t, []domain.Name{w.ID(), c.ID()}, ids(pending))

	ready, pending = scheduler.Partition(nil)
	assert.Empty(t, ready)
	assert.NotNil(t, pending)
}

func TestDrain_PendingStaysAtHead(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()
	ready := domain.NewProcess(domain.NewName(3, "r"), &stub{})
	waiting := domain.NewProcess(domain.NewName(3, "w"), &stub{blocked: true})
	require.NoError(t, space.Tell(ctx, 2, procs.String(), domain.Par{ready, waiting}))
	require.NoError(t, space.Tell(ctx, 2, procs.String(), domain.Int(7)))

	got, err := scheduler.Drain(ctx, space, procs)
	require.NoError(t, err)
	assert.Equal(t, []domain.Name{ready.ID()}, ids(got))

	v, err := space.Ask(ctx, 2, procs.String())
	require.NoError(t, err)
	assert.Equal(t, []domain.Name{waiting.ID()}, ids(v.(domain.Par)))

	v, err = space.Ask(ctx, 2, procs.String())
	require.NoError(t, err)
	assert.Equal(t, domain.Int(7), v)
}
