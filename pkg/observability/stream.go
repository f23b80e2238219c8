package observability

import (
	"context"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
)

type subscriber struct {
	ch   chan domain.ProcessEvent
	done chan struct{}
	once sync.Once
}

// Stream broadcasts process events. Publishing blocks until every subscriber
// has accepted the event, cancelled, or the publish context ends, so a slow
// subscriber applies backpressure instead of losing notifications.
type Stream struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewStream creates a stream with no subscribers.
func NewStream() *Stream {
	return &Stream{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a subscriber with the given channel buffer. The returned
// cancel function is idempotent and closes the channel.
func (s *Stream) Subscribe(buffer int) (<-chan domain.ProcessEvent, func()) {
	if buffer < 0 {
		buffer = 0
	}
	sub := &subscriber{
		ch:   make(chan domain.ProcessEvent, buffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	return sub.ch, func() { s.cancel(sub) }
}

func (s *Stream) cancel(sub *subscriber) {
	sub.once.Do(func() {
		close(sub.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[sub]; ok {
			delete(s.subs, sub)
			close(sub.ch)
		}
	})
}

// Publish delivers ev to every subscriber.
func (s *Stream) Publish(ctx context.Context, ev *domain.ProcessEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for sub := range s.subs {
		select {
		case sub.ch <- *ev:
		case <-sub.done:
		case <-ctx.Done():
			return
		}
	}
}

// Subscribers returns the number of active subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Close cancels every subscription. Later subscriptions receive a closed channel.
func (s *Stream) Close() {
	s.mu.RLock()
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	for _, sub := range subs {
		s.cancel(sub)
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Hooks returns lifecycle hooks that publish terminal transitions into the stream.
func (s *Stream) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnProcessDone: s.Publish,
	}
}
