// Package fifo provides the value queue shared by the in-process tuple spaces.
package fifo

import "github.com/aretw0/weft/pkg/domain"

// compactAfter is the number of consumed slots tolerated before the backing
// array is shifted down.
const compactAfter = 32

// Queue is a FIFO of values. It is not safe for concurrent use; callers hold
// their own lock. Popped slots are cleared so the backing array does not pin
// old values.
type Queue struct {
	items []domain.Value
	head  int
}

// Push appends v.
func (q *Queue) Push(v domain.Value) {
	q.items = append(q.items, v)
}

// Front returns the oldest value without removing it.
func (q *Queue) Front() (domain.Value, bool) {
	if q.head >= len(q.items) {
		return nil, false
	}
	return q.items[q.head], true
}

// Pop removes and returns the oldest value.
func (q *Queue) Pop() (domain.Value, bool) {
	v, ok := q.Front()
	if !ok {
		return nil, false
	}
	q.items[q.head] = nil
	q.head++
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > compactAfter && q.head*2 > len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

// Len returns the number of queued values.
func (q *Queue) Len() int {
	return len(q.items) - q.head
}
