package vm

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/aretw0/weft/pkg/domain"
)

// ctxCheckEvery is how many instructions run between context checks.
const ctxCheckEvery = 1024

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// rewind undoes the operand pops of the current instruction so it runs again
// on the next Resume.
func (v *VM) rewind(restore ...domain.Value) {
	v.stack = append(v.stack, restore...)
	v.ip--
}

func (v *VM) run(ctx context.Context, space domain.Space) (step domain.Step, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*Fault)
			if !ok {
				panic(r)
			}
			step, err = v.abort(f.Error()), nil
		}
	}()

	code := v.prog.Code
	for n := 0; ; n++ {
		if v.budget > 0 && n >= v.budget {
			return domain.Step{Signal: domain.SignalYield}, nil
		}
		if n > 0 && n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return domain.Step{}, err
			}
		}
		if v.ip == len(code) {
			if len(v.stack) == 0 {
				return v.halt(nil), nil
			}
			return v.halt(v.stack[len(v.stack)-1]), nil
		}
		if v.ip < 0 || v.ip > len(code) {
			panic(&Fault{IP: v.ip, Op: v.cur, Msg: "jump out of range"})
		}

		inst := code[v.ip]
		v.ip++
		v.cur = inst

		switch op := inst.Op(); op {
		case OpNop:

		case OpPush:
			idx := inst.Arg()
			if idx >= len(v.prog.Consts) {
				v.fail("constant %d out of range", idx)
			}
			v.push(v.prog.Consts[idx])

		case OpPop:
			v.pop()

		case OpDup:
			v.push(v.top())

		case OpSwap:
			b, a := v.pop(), v.pop()
			v.push(b)
			v.push(a)

		case OpLoad:
			idx := inst.Arg()
			if idx >= len(v.locals) || v.locals[idx] == nil {
				v.fail("local %d is not set", idx)
			}
			v.push(v.locals[idx])

		case OpStore:
			idx := inst.Arg()
			val := v.pop()
			if idx >= len(v.locals) {
				grown := make([]domain.Value, idx+1)
				copy(grown, v.locals)
				v.locals = grown
			}
			v.locals[idx] = val

		case OpAdd, OpSub, OpMul, OpDiv, OpMod:
			b, a := v.pop(), v.pop()
			v.push(v.arith(op, a, b))

		case OpNeg:
			a := v.pop()
			x, ok := a.(domain.Int)
			if !ok {
				v.fail("cannot negate %s", a.Kind())
			}
			v.push(-x)

		case OpEq:
			b, a := v.pop(), v.pop()
			v.push(domain.Bool(domain.Equal(a, b)))

		case OpNe:
			b, a := v.pop(), v.pop()
			v.push(domain.Bool(!domain.Equal(a, b)))

		case OpLt, OpLe, OpGt, OpGe:
			b, a := v.pop(), v.pop()
			v.push(v.compare(op, a, b))

		case OpNot:
			v.push(domain.Bool(!domain.Truthy(v.pop())))

		case OpAnd:
			b, a := v.pop(), v.pop()
			v.push(domain.Bool(domain.Truthy(a) && domain.Truthy(b)))

		case OpOr:
			b, a := v.pop(), v.pop()
			v.push(domain.Bool(domain.Truthy(a) || domain.Truthy(b)))

		case OpConcat:
			b, a := v.pop(), v.pop()
			v.push(v.concat(a, b))

		case OpList:
			v.push(domain.List(v.popN(inst.Arg())))

		case OpTuple:
			v.push(domain.Tuple(v.popN(inst.Arg())))

		case OpMap:
			kv := v.popN(2 * inst.Arg())
			entries := make([]domain.Entry, 0, inst.Arg())
			for i := 0; i < len(kv); i += 2 {
				entries = append(entries, domain.Entry{Key: kv[i], Val: kv[i+1]})
			}
			v.push(domain.NewMap(entries...))

		case OpIndex:
			key, coll := v.pop(), v.pop()
			v.push(v.index(coll, key))

		case OpLen:
			v.push(v.length(v.pop()))

		case OpJump:
			v.ip += inst.Offset()

		case OpJumpF:
			if !domain.Truthy(v.pop()) {
				v.ip += inst.Offset()
			}

		case OpTell:
			val := v.pop()
			ch := v.popName()
			if err := v.tell(ctx, space, ch, val); err != nil {
				v.rewind(ch, val)
				return domain.Step{}, err
			}

		case OpAsk, OpPeek:
			ch := v.popName()
			val, err := v.receive(ctx, space, op, ch)
			switch {
			case err == nil:
				v.push(val)
			case errors.Is(err, domain.ErrEmpty):
				v.rewind(ch)
				v.wait = &ch
				return domain.Step{Signal: domain.SignalBlocked}, nil
			default:
				v.rewind(ch)
				return domain.Step{}, err
			}

		case OpJoin:
			if v.join == nil {
				v.join = &barrier{Channel: v.popName(), Want: inst.Arg()}
			}
			for len(v.join.Got) < v.join.Want {
				val, err := v.receive(ctx, space, OpAsk, v.join.Channel)
				switch {
				case err == nil:
					v.join.Got = append(v.join.Got, val)
					continue
				case errors.Is(err, domain.ErrEmpty):
					v.rewind()
					ch := v.join.Channel
					v.wait = &ch
					return domain.Step{Signal: domain.SignalBlocked}, nil
				default:
					v.rewind()
					return domain.Step{}, err
				}
			}
			got := domain.List(v.join.Got)
			v.join = nil
			v.push(got)

		case OpNew:
			kind := inst.Arg()
			if kind > 255 {
				v.fail("kind %d out of range", kind)
			}
			v.push(domain.NewName(uint8(kind), uuid.NewString()))

		case OpSpawn:
			sub, nargs := spawnArgs(inst.Arg())
			if v.lib == nil || sub >= len(v.lib.Programs) {
				v.fail("subprogram %d not found", sub)
			}
			args := v.popN(nargs)
			ch := v.popName()
			id := domain.NewName(v.spawnKind, uuid.NewString())
			proc := domain.NewProcess(id, v.child(v.lib.Programs[sub], args))
			if err := v.tell(ctx, space, ch, domain.Par{proc}); err != nil {
				v.rewind(append([]domain.Value{ch}, args...)...)
				return domain.Step{}, err
			}

		case OpCall:
			args := v.popN(inst.Arg())
			nameVal := v.pop()
			name, ok := nameVal.(domain.Text)
			if !ok {
				v.fail("native name must be text, got %s", nameVal.Kind())
			}
			if v.natives == nil {
				v.fail("no natives available")
			}
			res, err := v.natives.Execute(ctx, string(name), args)
			if err != nil {
				if isCtxErr(err) {
					v.rewind(append([]domain.Value{nameVal}, args...)...)
					return domain.Step{}, err
				}
				v.fail("%s: %v", string(name), err)
			}
			if res == nil {
				res = domain.Nil{}
			}
			v.push(res)

		case OpYield:
			return domain.Step{Signal: domain.SignalYield}, nil

		case OpHalt:
			if len(v.stack) == 0 {
				return v.halt(nil), nil
			}
			return v.halt(v.pop()), nil

		case OpFail:
			msg := v.pop()
			if t, ok := msg.(domain.Text); ok {
				return v.abort(string(t)), nil
			}
			return v.abort(msg.String()), nil

		default:
			v.fail("unknown opcode %d", uint32(op))
		}
	}
}

// tell sends val on ch. Context errors are returned so the instruction can be
// retried; any other store error is a fault.
func (v *VM) tell(ctx context.Context, space domain.Space, ch domain.Name, val domain.Value) error {
	if space == nil {
		v.fail("no tuple space")
	}
	err := space.Tell(ctx, ch.NS, ch.String(), val)
	if err != nil && !isCtxErr(err) {
		v.fail("tell %s: %v", ch, err)
	}
	return err
}

// receive asks or peeks ch. domain.ErrEmpty and context errors are returned;
// any other store error is a fault.
func (v *VM) receive(ctx context.Context, space domain.Space, op OpCode, ch domain.Name) (domain.Value, error) {
	if space == nil {
		v.fail("no tuple space")
	}
	var (
		val domain.Value
		err error
	)
	if op == OpPeek {
		val, err = space.Peek(ctx, ch.NS, ch.String())
	} else {
		val, err = space.Ask(ctx, ch.NS, ch.String())
	}
	if err != nil && !errors.Is(err, domain.ErrEmpty) && !isCtxErr(err) {
		v.fail("%s %s: %v", op.Mnemonic(), ch, err)
	}
	return val, err
}
