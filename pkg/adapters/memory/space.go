package memory

import (
	"context"
	"sync"

	"github.com/aretw0/weft/internal/fifo"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// Space implements ports.TupleSpace with a flat map keyed by channel name.
// Safe for concurrent use: one mutex serializes every operation.
type Space struct {
	mu     sync.Mutex
	queues map[string]*fifo.Queue
}

var _ ports.TupleSpace = (*Space)(nil)

// NewSpace creates an empty in-memory tuple space.
func NewSpace() *Space {
	return &Space{
		queues: make(map[string]*fifo.Queue),
	}
}

// Tell appends v to channel.
func (s *Space) Tell(ctx context.Context, kind uint8, channel string, v domain.Value) error {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return err
	}
	if v == nil {
		v = domain.Nil{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := name.String()
	q, ok := s.queues[key]
	if !ok {
		q = &fifo.Queue{}
		s.queues[key] = q
	}
	q.Push(v)
	return nil
}

// Ask removes and returns the oldest value of channel.
func (s *Space) Ask(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := name.String()
	q, ok := s.queues[key]
	if !ok {
		return nil, domain.ErrEmpty
	}
	v, ok := q.Pop()
	if !ok {
		return nil, domain.ErrEmpty
	}
	if q.Len() == 0 {
		delete(s.queues, key)
	}
	return v, nil
}

// Peek returns the oldest value of channel without removing it.
func (s *Space) Peek(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[name.String()]
	if !ok {
		return nil, domain.ErrEmpty
	}
	v, ok := q.Front()
	if !ok {
		return nil, domain.ErrEmpty
	}
	return v, nil
}

// Len returns the number of values queued on channel.
func (s *Space) Len(ctx context.Context, kind uint8, channel string) (int, error) {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.queues[name.String()]; ok {
		return q.Len(), nil
	}
	return 0, nil
}

// Reset clears all channels.
func (s *Space) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = make(map[string]*fifo.Queue)
	return nil
}

// Close is a no-op for the in-memory space.
func (s *Space) Close() error {
	return nil
}
