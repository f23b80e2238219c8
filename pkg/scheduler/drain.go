package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/weft/pkg/domain"
)

// Drain removes the runnable processes from the parallel group at the head of
// ch and stores the rest back as a fresh group at the head, even when nothing
// is pending. It never executes anything.
//
// An empty channel yields no processes and no error. A head that is not a
// parallel group fails with domain.ErrNotParallel and leaves the channel as it was.
func Drain(ctx context.Context, space domain.Space, ch domain.Name) ([]*domain.Process, error) {
	head, err := space.Peek(ctx, ch.NS, ch.String())
	if errors.Is(err, domain.ErrEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("drain %s: %w", ch, err)
	}
	if _, ok := head.(domain.Par); !ok {
		return nil, fmt.Errorf("drain %s: %w: head is %s", ch, domain.ErrNotParallel, head.Kind())
	}

	v, err := space.Ask(ctx, ch.NS, ch.String())
	if err != nil {
		return nil, fmt.Errorf("drain %s: %w", ch, err)
	}
	group, ok := v.(domain.Par)
	if !ok {
		// Another writer slipped in between peek and ask.
		if err := space.Tell(ctx, ch.NS, ch.String(), v); err != nil {
			return nil, fmt.Errorf("drain %s: restore: %w", ch, err)
		}
		return nil, fmt.Errorf("drain %s: %w: head is %s", ch, domain.ErrNotParallel, v.Kind())
	}

	rest, err := takeAll(ctx, space, ch)
	ready, pending := Partition(group)
	values := append([]domain.Value{pending}, rest...)
	if perr := putBack(context.WithoutCancel(ctx), space, ch, values); perr != nil {
		return ready, fmt.Errorf("drain %s: store pending: %w", ch, errors.Join(err, perr))
	}
	if err != nil {
		return ready, fmt.Errorf("drain %s: %w", ch, err)
	}
	return ready, nil
}

// Partition splits a group into runnable processes and everything else,
// preserving relative order in both.
func Partition(group domain.Par) (ready []*domain.Process, pending domain.Par) {
	pending = domain.Par{}
	for _, p := range group {
		if p.State() == domain.StateRunnable {
			ready = append(ready, p)
		} else {
			pending = append(pending, p)
		}
	}
	return ready, pending
}

// takeAll removes every value queued on ch in FIFO order. On error the
// values removed so far are returned with it.
func takeAll(ctx context.Context, space domain.Space, ch domain.Name) ([]domain.Value, error) {
	var out []domain.Value
	for {
		v, err := space.Ask(ctx, ch.NS, ch.String())
		if errors.Is(err, domain.ErrEmpty) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// putBack tells values to ch in order. It keeps going past a failed tell so
// as few values as possible are lost.
func putBack(ctx context.Context, space domain.Space, ch domain.Name, values []domain.Value) error {
	var errs []error
	for _, v := range values {
		if err := space.Tell(ctx, ch.NS, ch.String(), v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// merge joins the parallel groups among values into one, in FIFO order, and
// returns everything else untouched.
func merge(values []domain.Value) (merged domain.Par, groups int, rest []domain.Value) {
	for _, v := range values {
		if g, ok := v.(domain.Par); ok {
			merged = append(merged, g...)
			groups++
			continue
		}
		rest = append(rest, v)
	}
	if groups > 0 && merged == nil {
		merged = domain.Par{}
	}
	return merged, groups, rest
}
