// Package pathtree provides a hierarchical tuple space. Channel labels are split
// on "/" into scope segments and stored as a trie per namespace, so every
// channel under a scope can be listed without scanning unrelated ones.
package pathtree

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/weft/internal/fifo"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

type node struct {
	children map[string]*node
	queue    fifo.Queue
}

func (n *node) child(seg string, create bool) *node {
	if c, ok := n.children[seg]; ok {
		return c
	}
	if !create {
		return nil
	}
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c := &node{}
	n.children[seg] = c
	return c
}

func (n *node) empty() bool {
	return n.queue.Len() == 0 && len(n.children) == 0
}

// Space implements ports.TupleSpace and ports.Scoped over a segment trie.
// Safe for concurrent use: one mutex serializes every operation.
type Space struct {
	mu    sync.Mutex
	roots map[uint8]*node
}

var (
	_ ports.TupleSpace = (*Space)(nil)
	_ ports.Scoped     = (*Space)(nil)
)

// NewSpace creates an empty hierarchical tuple space.
func NewSpace() *Space {
	return &Space{roots: make(map[uint8]*node)}
}

// lookup walks to the node of name. With create, missing nodes are added.
// The returned path holds every node from the root to the target, inclusive.
func (s *Space) lookup(name domain.Name, create bool) []*node {
	root, ok := s.roots[name.NS]
	if !ok {
		if !create {
			return nil
		}
		root = &node{}
		s.roots[name.NS] = root
	}
	path := []*node{root}
	cur := root
	for _, seg := range name.Segments() {
		cur = cur.child(seg, create)
		if cur == nil {
			return nil
		}
		path = append(path, cur)
	}
	return path
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

	path := s.lookup(name, true)
	path[len(path)-1].queue.Push(v)
	return nil
}

// Ask removes and returns the oldest value of channel. Branches left without
// values or children are pruned.
func (s *Space) Ask(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.lookup(name, false)
	if path == nil {
		return nil, domain.ErrEmpty
	}
	v, ok := path[len(path)-1].queue.Pop()
	if !ok {
		return nil, domain.ErrEmpty
	}
	s.prune(name, path)
	return v, nil
}

func (s *Space) prune(name domain.Name, path []*node) {
	segs := name.Segments()
	for i := len(path) - 1; i > 0; i-- {
		if !path[i].empty() {
			return
		}
		delete(path[i-1].children, segs[i-1])
	}
	if path[0].empty() {
		delete(s.roots, name.NS)
	}
}

// Peek returns the oldest value of channel without removing it.
func (s *Space) Peek(ctx context.Context, kind uint8, channel string) (domain.Value, error) {
	name, err := domain.CheckKind(kind, channel)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.lookup(name, false)
	if path == nil {
		return nil, domain.ErrEmpty
	}
	v, ok := path[len(path)-1].queue.Front()
	if !ok {
		return nil, domain.ErrEmpty
	}
	return v, nil
}

// Channels lists the non-empty channels of kind whose label lies within scope,
// sorted by label. An empty scope lists the whole namespace.
func (s *Space) Channels(ctx context.Context, kind uint8, scope string) ([]domain.Name, error) {
	scope = strings.TrimSuffix(scope, domain.ScopeSeparator)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.lookup(domain.NewName(kind, scope), false)
	if start == nil {
		return nil, nil
	}

	var out []domain.Name
	var walk func(n *node, label string)
	walk = func(n *node, label string) {
		if n.queue.Len() > 0 {
			out = append(out, domain.NewName(kind, label))
		}
		for seg, c := range n.children {
			next := seg
			if label != "" || n != start[0] {
				next = label + domain.ScopeSeparator + seg
			}
			walk(c, next)
		}
	}
	walk(start[len(start)-1], scope)

	slices.SortFunc(out, func(a, b domain.Name) int {
		return strings.Compare(a.Label, b.Label)
	})
	return out, nil
}

// Reset clears all channels.
func (s *Space) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots = make(map[uint8]*node)
	return nil
}

// Close is a no-op for the in-process space.
func (s *Space) Close() error {
	return nil
}
