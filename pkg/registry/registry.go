// Package registry holds the native functions a running program can invoke
// with the call instruction.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
)

// ErrNotFound is returned when a native is called by a name nobody registered.
var ErrNotFound = errors.New("native not found")

// Native defines the signature for a native implementation.
// It receives the call arguments in order and returns a result or error.
// An error becomes a failure of the calling process.
type Native func(ctx context.Context, args []domain.Value) (domain.Value, error)

// Registry manages the available natives.
type Registry struct {
	mu      sync.RWMutex
	natives map[string]Native
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		natives: make(map[string]Native),
	}
}

// Register adds a native to the registry.
// If a native with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Native) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.natives[name] = fn
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.natives))
	for name := range r.natives {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Execute looks up a native by name and executes it.
// Returns an error wrapping ErrNotFound if the native is not registered.
func (r *Registry) Execute(ctx context.Context, name string, args []domain.Value) (domain.Value, error) {
	r.mu.RLock()
	fn, ok := r.natives[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	v, err := fn(ctx, args)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = domain.Nil{}
	}
	return v, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the shared registry preloaded with the builtins. Programs
// restored from JSON resolve their calls against it.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		RegisterBuiltins(defaultReg)
	})
	return defaultReg
}
