package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTupleSpaceContract runs a suite of tests to verify that a TupleSpace
// implementation adheres to the defined interface contract. newSpace must
// return an empty space; it is called once per subtest.
func RunTupleSpaceContract(t *testing.T, newSpace func(t *testing.T) TupleSpace) {
	ctx := context.Background()

	t.Run("Tell and Ask", func(t *testing.T) {
		space := newSpace(t)

		err := space.Tell(ctx, 0, "@0:c1", domain.Int(5))
		require.NoError(t, err)

		v, err := space.Ask(ctx, 0, "@0:c1")
		require.NoError(t, err)
		assert.Equal(t, domain.Int(5), v)

		_, err = space.Ask(ctx, 0, "@0:c1")
		assert.ErrorIs(t, err, domain.ErrEmpty, "a second ask never sees the same value")
	})

	t.Run("FIFO", func(t *testing.T) {
		space := newSpace(t)
		values := []domain.Value{
			domain.Int(1),
			domain.Text("two"),
			domain.List{domain.Int(3)},
			domain.NewName(0, "four"),
			domain.Bool(false),
		}
		for _, v := range values {
			require.NoError(t, space.Tell(ctx, 0, "@0:fifo", v))
		}
		for _, want := range values {
			got, err := space.Ask(ctx, 0, "@0:fifo")
			require.NoError(t, err)
			assert.True(t, domain.Equal(want, got), "want %s, got %s", want, got)
		}
	})

	t.Run("Kind Mismatch Leaves Queue Unchanged", func(t *testing.T) {
		space := newSpace(t)
		v := domain.Text("v")
		require.NoError(t, space.Tell(ctx, 1, "@1:c2", v))

		_, err := space.Ask(ctx, 0, "@1:c2")
		assert.ErrorIs(t, err, domain.ErrKindMismatch)

		_, err = space.Peek(ctx, 0, "@1:c2")
		assert.ErrorIs(t, err, domain.ErrKindMismatch)

		err = space.Tell(ctx, 2, "@1:c2", domain.Int(9))
		assert.ErrorIs(t, err, domain.ErrKindMismatch)

		got, err := space.Ask(ctx, 1, "@1:c2")
		require.NoError(t, err)
		assert.Equal(t, v, got)

		_, err = space.Ask(ctx, 1, "@1:c2")
		assert.ErrorIs(t, err, domain.ErrEmpty, "the failed tell must not have appended")
	})

	t.Run("Malformed Channel", func(t *testing.T) {
		space := newSpace(t)
		err := space.Tell(ctx, 0, "c1", domain.Int(1))
		assert.ErrorIs(t, err, domain.ErrMalformedChannel)
		_, err = space.Ask(ctx, 0, "@zero:c1")
		assert.ErrorIs(t, err, domain.ErrMalformedChannel)
	})

	t.Run("Peek Is Stable", func(t *testing.T) {
		space := newSpace(t)
		_, err := space.Peek(ctx, 0, "@0:p")
		assert.ErrorIs(t, err, domain.ErrEmpty)

		require.NoError(t, space.Tell(ctx, 0, "@0:p", domain.Int(1)))
		require.NoError(t, space.Tell(ctx, 0, "@0:p", domain.Int(2)))

		for i := 0; i < 3; i++ {
			v, err := space.Peek(ctx, 0, "@0:p")
			require.NoError(t, err)
			assert.Equal(t, domain.Int(1), v)
		}

		v, err := space.Ask(ctx, 0, "@0:p")
		require.NoError(t, err)
		assert.Equal(t, domain.Int(1), v)

		v, err = space.Peek(ctx, 0, "@0:p")
		require.NoError(t, err)
		assert.Equal(t, domain.Int(2), v)
	})

	t.Run("Channels Are Independent", func(t *testing.T) {
		space := newSpace(t)
		require.NoError(t, space.Tell(ctx, 0, "@0:a", domain.Int(1)))
		require.NoError(t, space.Tell(ctx, 0, "@0:b", domain.Int(2)))
		require.NoError(t, space.Tell(ctx, 3, "@3:a", domain.Int(3)))

		v, err := space.Ask(ctx, 0, "@0:b")
		require.NoError(t, err)
		assert.Equal(t, domain.Int(2), v)

		v, err = space.Ask(ctx, 3, "@3:a")
		require.NoError(t, err)
		assert.Equal(t, domain.Int(3), v)

		v, err = space.Ask(ctx, 0, "@0:a")
		require.NoError(t, err)
		assert.Equal(t, domain.Int(1), v)
	})

	t.Run("Parallel Group", func(t *testing.T) {
		space := newSpace(t)
		group := domain.Par{
			domain.NewCompleted(domain.NewName(3, "a"), domain.Int(1)),
			domain.NewFailed(domain.NewName(3, "b"), "division by zero"),
		}
		require.NoError(t, space.Tell(ctx, 2, "@2:procs", group))

		v, err := space.Ask(ctx, 2, "@2:procs")
		require.NoError(t, err)
		got, ok := v.(domain.Par)
		require.True(t, ok, "expected Par, got %T", v)
		require.Len(t, got, 2)
		assert.Equal(t, domain.NewName(3, "a"), got[0].ID())
		assert.Equal(t, domain.StateCompleted, got[0].State())
		assert.Equal(t, domain.Int(1), got[0].Result())
		assert.Equal(t, "division by zero", got[1].Failure())

		require.NoError(t, space.Tell(ctx, 2, "@2:procs", domain.Par{}))
		v, err = space.Ask(ctx, 2, "@2:procs")
		require.NoError(t, err)
		assert.Equal(t, domain.KindPar, v.Kind(), "an empty group is a valid value")
	})

	t.Run("Reset", func(t *testing.T) {
		space := newSpace(t)
		require.NoError(t, space.Tell(ctx, 0, "@0:r1", domain.Int(1)))
		require.NoError(t, space.Tell(ctx, 1, "@1:r2", domain.Int(2)))

		require.NoError(t, space.Reset(ctx))

		_, err := space.Ask(ctx, 0, "@0:r1")
		assert.ErrorIs(t, err, domain.ErrEmpty)
		_, err = space.Peek(ctx, 1, "@1:r2")
		assert.ErrorIs(t, err, domain.ErrEmpty)

		require.NoError(t, space.Tell(ctx, 0, "@0:r1", domain.Int(3)), "space stays usable after reset")
	})

	t.Run("Concurrent Tells Keep Producer Order", func(t *testing.T) {
		space := newSpace(t)
		const producers, perProducer = 8, 25

		var wg sync.WaitGroup
		errs := make(chan error, producers)
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					if err := space.Tell(ctx, 0, "@0:shared", domain.Tuple{domain.Int(p), domain.Int(i)}); err != nil {
						errs <- fmt.Errorf("producer %d: %w", p, err)
						return
					}
				}
			}(p)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		next := make([]int64, producers)
		for n := 0; n < producers*perProducer; n++ {
			v, err := space.Ask(ctx, 0, "@0:shared")
			require.NoError(t, err)
			tup := v.(domain.Tuple)
			p, seq := int64(tup[0].(domain.Int)), int64(tup[1].(domain.Int))
			assert.Equal(t, next[p], seq, "producer %d out of order", p)
			next[p] = seq + 1
		}
		_, err := space.Ask(ctx, 0, "@0:shared")
		assert.ErrorIs(t, err, domain.ErrEmpty)
	})

	t.Run("Scoped Listing", func(t *testing.T) {
		space := newSpace(t)
		scoped, ok := space.(Scoped)
		if !ok {
			t.Skip("backend is not scoped")
		}
		for _, ch := range []string{"@2:procs/b", "@2:procs/a", "@2:procs/a/deep", "@2:other", "@2:procsx"} {
			require.NoError(t, space.Tell(ctx, 2, ch, domain.Par{}))
		}
		require.NoError(t, space.Tell(ctx, 3, "@3:procs/c", domain.Par{}))

		names, err := scoped.Channels(ctx, 2, "procs")
		require.NoError(t, err)
		assert.Equal(t, []domain.Name{
			domain.NewName(2, "procs/a"),
			domain.NewName(2, "procs/a/deep"),
			domain.NewName(2, "procs/b"),
		}, names)

		_, err = space.Ask(ctx, 2, "@2:procs/b")
		require.NoError(t, err)
		names, err = scoped.Channels(ctx, 2, "procs/")
		require.NoError(t, err)
		assert.Equal(t, []domain.Name{
			domain.NewName(2, "procs/a"),
			domain.NewName(2, "procs/a/deep"),
		}, names, "drained channels are not listed")

		all, err := scoped.Channels(ctx, 2, "")
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}
