package ports

import (
	"context"
	"errors"

	"github.com/aretw0/weft/pkg/domain"
)

// Space is the channel surface shared by running processes.
// Every operation validates that kind matches the kind embedded in channel
// before touching any queue, and fails with domain.ErrKindMismatch otherwise.
type Space = domain.Space

// TupleSpace is a FIFO-per-channel store. Implementations must make Tell, Ask
// and Peek atomic with respect to one another.
type TupleSpace interface {
	// Tell appends v to the queue of channel.
	Tell(ctx context.Context, kind uint8, channel string, v domain.Value) error

	// Ask removes and returns the oldest value of channel.
	// Returns domain.ErrEmpty if nothing is queued.
	Ask(ctx context.Context, kind uint8, channel string) (domain.Value, error)

	// Peek returns the oldest value of channel without removing it.
	// Returns domain.ErrEmpty if nothing is queued.
	Peek(ctx context.Context, kind uint8, channel string) (domain.Value, error)

	// Reset clears every channel. Intended for test setup and teardown only.
	Reset(ctx context.Context) error

	// Close releases the resources held by the backend.
	Close() error
}

// Scoped is implemented by hierarchical backends that can list the non-empty
// channels of a namespace under a label scope ("procs" covers "procs/a").
type Scoped interface {
	Channels(ctx context.Context, kind uint8, scope string) ([]domain.Name, error)
}

// ErrNotScoped is returned by wrappers asked to list channels of a backend
// that does not implement Scoped.
var ErrNotScoped = errors.New("tuple space does not support scoped listing")
