package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// RegisterBuiltins adds the standard natives to r.
func RegisterBuiltins(r *Registry) {
	r.Register("len", arity(1, builtinLen))
	r.Register("str", arity(1, builtinStr))
	r.Register("upper", arity(1, textFunc(strings.ToUpper)))
	r.Register("lower", arity(1, textFunc(strings.ToLower)))
	r.Register("keys", arity(1, builtinKeys))
	r.Register("values", arity(1, builtinValues))
	r.Register("append", builtinAppend)
	r.Register("contains", arity(2, builtinContains))
	r.Register("int", arity(1, builtinInt))
}

func arity(n int, fn Native) Native {
	return func(ctx context.Context, args []domain.Value) (domain.Value, error) {
		if len(args) != n {
			return nil, fmt.Errorf("expected %d arguments, got %d", n, len(args))
		}
		return fn(ctx, args)
	}
}

func textFunc(f func(string) string) Native {
	return func(ctx context.Context, args []domain.Value) (domain.Value, error) {
		t, ok := args[0].(domain.Text)
		if !ok {
			return nil, fmt.Errorf("expected text, got %s", args[0].Kind())
		}
		return domain.Text(f(string(t))), nil
	}
}

func builtinLen(ctx context.Context, args []domain.Value) (domain.Value, error) {
	switch x := args[0].(type) {
	case domain.Text:
		return domain.Int(len(x)), nil
	case domain.List:
		return domain.Int(len(x)), nil
	case domain.Tuple:
		return domain.Int(len(x)), nil
	case domain.Map:
		return domain.Int(x.Len()), nil
	case domain.Par:
		return domain.Int(len(x)), nil
	}
	return nil, fmt.Errorf("len of %s", args[0].Kind())
}

func builtinStr(ctx context.Context, args []domain.Value) (domain.Value, error) {
	if t, ok := args[0].(domain.Text); ok {
		return t, nil
	}
	return domain.Text(args[0].String()), nil
}

func builtinKeys(ctx context.Context, args []domain.Value) (domain.Value, error) {
	m, ok := args[0].(domain.Map)
	if !ok {
		return nil, fmt.Errorf("keys of %s", args[0].Kind())
	}
	return domain.List(domain.SortedKeys(m)), nil
}

func builtinValues(ctx context.Context, args []domain.Value) (domain.Value, error) {
	m, ok := args[0].(domain.Map)
	if !ok {
		return nil, fmt.Errorf("values of %s", args[0].Kind())
	}
	keys := domain.SortedKeys(m)
	out := make(domain.List, len(keys))
	for i, k := range keys {
		out[i], _ = m.Get(k)
	}
	return out, nil
}

func builtinAppend(ctx context.Context, args []domain.Value) (domain.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("expected at least 1 argument")
	}
	l, ok := args[0].(domain.List)
	if !ok {
		return nil, fmt.Errorf("append to %s", args[0].Kind())
	}
	out := make(domain.List, 0, len(l)+len(args)-1)
	out = append(out, l...)
	return append(out, args[1:]...), nil
}

func builtinContains(ctx context.Context, args []domain.Value) (domain.Value, error) {
	switch x := args[0].(type) {
	case domain.Text:
		sub, ok := args[1].(domain.Text)
		if !ok {
			return nil, fmt.Errorf("contains on text expects text, got %s", args[1].Kind())
		}
		return domain.Bool(strings.Contains(string(x), string(sub))), nil
	case domain.List:
		return domain.Bool(containsValue(x, args[1])), nil
	case domain.Tuple:
		return domain.Bool(containsValue(x, args[1])), nil
	case domain.Map:
		_, ok := x.Get(args[1])
		return domain.Bool(ok), nil
	}
	return nil, fmt.Errorf("contains on %s", args[0].Kind())
}

func containsValue(vs []domain.Value, v domain.Value) bool {
	for _, x := range vs {
		if domain.Equal(x, v) {
			return true
		}
	}
	return false
}

func builtinInt(ctx context.Context, args []domain.Value) (domain.Value, error) {
	switch x := args[0].(type) {
	case domain.Int:
		return x, nil
	case domain.Bool:
		if x {
			return domain.Int(1), nil
		}
		return domain.Int(0), nil
	case domain.Text:
		n, err := strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("int of %q: %w", string(x), err)
		}
		return domain.Int(n), nil
	}
	return nil, fmt.Errorf("int of %s", args[0].Kind())
}
