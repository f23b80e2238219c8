package vm

import (
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

func (v *VM) ints(a, b domain.Value) (int64, int64) {
	x, okA := a.(domain.Int)
	y, okB := b.(domain.Int)
	if !okA || !okB {
		v.fail("expected int operands, got %s and %s", a.Kind(), b.Kind())
	}
	return int64(x), int64(y)
}

func (v *VM) arith(op OpCode, a, b domain.Value) domain.Value {
	x, y := v.ints(a, b)
	switch op {
	case OpAdd:
		return domain.Int(x + y)
	case OpSub:
		return domain.Int(x - y)
	case OpMul:
		return domain.Int(x * y)
	case OpDiv:
		if y == 0 {
			v.fail("division by zero")
		}
		return domain.Int(x / y)
	case OpMod:
		if y == 0 {
			v.fail("division by zero")
		}
		return domain.Int(x % y)
	}
	v.fail("not an arithmetic op")
	return nil
}

func (v *VM) compare(op OpCode, a, b domain.Value) domain.Value {
	var c int
	switch x := a.(type) {
	case domain.Int:
		y, ok := b.(domain.Int)
		if !ok {
			v.fail("cannot compare %s with %s", a.Kind(), b.Kind())
		}
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
	case domain.Text:
		y, ok := b.(domain.Text)
		if !ok {
			v.fail("cannot compare %s with %s", a.Kind(), b.Kind())
		}
		c = strings.Compare(string(x), string(y))
	default:
		v.fail("cannot order %s", a.Kind())
	}
	switch op {
	case OpLt:
		return domain.Bool(c < 0)
	case OpLe:
		return domain.Bool(c <= 0)
	case OpGt:
		return domain.Bool(c > 0)
	}
	return domain.Bool(c >= 0)
}

func (v *VM) concat(a, b domain.Value) domain.Value {
	switch x := a.(type) {
	case domain.Text:
		if y, ok := b.(domain.Text); ok {
			return x + y
		}
	case domain.List:
		if y, ok := b.(domain.List); ok {
			out := make(domain.List, 0, len(x)+len(y))
			return append(append(out, x...), y...)
		}
	case domain.Tuple:
		if y, ok := b.(domain.Tuple); ok {
			out := make(domain.Tuple, 0, len(x)+len(y))
			return append(append(out, x...), y...)
		}
	}
	v.fail("cannot concat %s and %s", a.Kind(), b.Kind())
	return nil
}

func (v *VM) position(n int, key domain.Value) int {
	i, ok := key.(domain.Int)
	if !ok {
		v.fail("index must be int, got %s", key.Kind())
	}
	if i < 0 || int(i) >= n {
		v.fail("index %d out of range [0:%d]", i, n)
	}
	return int(i)
}

func (v *VM) index(coll, key domain.Value) domain.Value {
	switch x := coll.(type) {
	case domain.List:
		return x[v.position(len(x), key)]
	case domain.Tuple:
		return x[v.position(len(x), key)]
	case domain.Text:
		i := v.position(len(x), key)
		return x[i : i+1]
	case domain.Map:
		val, ok := x.Get(key)
		if !ok {
			v.fail("key %s not found", key)
		}
		return val
	}
	v.fail("cannot index %s", coll.Kind())
	return nil
}

func (v *VM) length(coll domain.Value) domain.Value {
	switch x := coll.(type) {
	case domain.List:
		return domain.Int(len(x))
	case domain.Tuple:
		return domain.Int(len(x))
	case domain.Text:
		return domain.Int(len(x))
	case domain.Map:
		return domain.Int(x.Len())
	case domain.Par:
		return domain.Int(len(x))
	}
	v.fail("cannot take len of %s", coll.Kind())
	return nil
}
