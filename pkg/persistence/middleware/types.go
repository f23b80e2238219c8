package middleware

import (
	"context"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// Middleware allows wrapping a TupleSpace to add behavior.
type Middleware func(ports.TupleSpace) ports.TupleSpace

// Chain wraps space with mws. The first middleware is the outermost.
func Chain(space ports.TupleSpace, mws ...Middleware) ports.TupleSpace {
	for i := len(mws) - 1; i >= 0; i-- {
		space = mws[i](space)
	}
	return space
}

// channels forwards a scoped listing to next, if it supports one.
func channels(ctx context.Context, next ports.TupleSpace, kind uint8, scope string) ([]domain.Name, error) {
	scoped, ok := next.(ports.Scoped)
	if !ok {
		return nil, ports.ErrNotScoped
	}
	return scoped.Channels(ctx, kind, scope)
}
