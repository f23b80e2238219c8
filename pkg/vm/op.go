package vm

import "fmt"

// OpCode is one encoded instruction. The low 8 bits select the operation and
// the upper 24 bits carry its operand. Jump operands are signed offsets
// relative to the next instruction.
type OpCode uint32

const (
	OpNop    OpCode = iota
	OpPush          // push Consts[arg]
	OpPop           // drop top
	OpDup           // duplicate top
	OpSwap          // exchange the two top values
	OpLoad          // push Locals[arg]
	OpStore         // pop into Locals[arg]
	OpAdd           // a b -> a+b
	OpSub           // a b -> a-b
	OpMul           // a b -> a*b
	OpDiv           // a b -> a/b
	OpMod           // a b -> a%b
	OpNeg           // a -> -a
	OpEq            // a b -> a==b
	OpNe            // a b -> a!=b
	OpLt            // a b -> a<b
	OpLe            // a b -> a<=b
	OpGt            // a b -> a>b
	OpGe            // a b -> a>=b
	OpNot           // a -> !a
	OpAnd           // a b -> a&&b
	OpOr            // a b -> a||b
	OpConcat        // a b -> a++b (text or lists)
	OpList          // arg values -> List
	OpTuple         // arg values -> Tuple
	OpMap           // arg key/value pairs -> Map
	OpIndex         // coll key -> coll[key]
	OpLen           // coll -> len(coll)
	OpJump          // ip += offset
	OpJumpF         // pop; ip += offset if falsy
	OpTell          // chan v -> ; appends v to chan
	OpAsk           // chan -> v ; blocks while chan is empty
	OpPeek          // chan -> v ; blocks while chan is empty, keeps v queued
	OpJoin          // chan -> List ; collects arg values from chan
	OpNew           // -> fresh Name of kind arg
	OpSpawn         // chan a1..an -> ; sends a child running Subs[arg&0xffff]
	OpCall          // name a1..an -> result ; invokes a native
	OpYield         // give the worker back, stay runnable
	OpHalt          // finish with the top of stack, or Nil
	OpFail          // msg -> ; finish with a failure

	numOps
)

var opNames = [numOps]string{
	OpNop:    "nop",
	OpPush:   "push",
	OpPop:    "pop",
	OpDup:    "dup",
	OpSwap:   "swap",
	OpLoad:   "load",
	OpStore:  "store",
	OpAdd:    "add",
	OpSub:    "sub",
	OpMul:    "mul",
	OpDiv:    "div",
	OpMod:    "mod",
	OpNeg:    "neg",
	OpEq:     "eq",
	OpNe:     "ne",
	OpLt:     "lt",
	OpLe:     "le",
	OpGt:     "gt",
	OpGe:     "ge",
	OpNot:    "not",
	OpAnd:    "and",
	OpOr:     "or",
	OpConcat: "concat",
	OpList:   "list",
	OpTuple:  "tuple",
	OpMap:    "map",
	OpIndex:  "index",
	OpLen:    "len",
	OpJump:   "jump",
	OpJumpF:  "jumpf",
	OpTell:   "tell",
	OpAsk:    "ask",
	OpPeek:   "peek",
	OpJoin:   "join",
	OpNew:    "new",
	OpSpawn:  "spawn",
	OpCall:   "call",
	OpYield:  "yield",
	OpHalt:   "halt",
	OpFail:   "fail",
}

// MaxArg is the largest unsigned operand; signed offsets span ±MaxArg/2.
const MaxArg = 1<<24 - 1

// With packs arg into the operand bits of o.
func (o OpCode) With(arg int) OpCode {
	return o | OpCode(uint32(arg)<<8)
}

// Op returns the operation without its operand.
func (o OpCode) Op() OpCode { return o & 0xff }

// Arg returns the unsigned operand.
func (o OpCode) Arg() int { return int(o >> 8) }

// Offset returns the operand as a signed jump offset.
func (o OpCode) Offset() int { return int(int32(o) >> 8) }

// SpawnArgs packs a subprogram index and the number of values the child
// receives as its first locals.
func SpawnArgs(sub, nargs int) int { return sub | nargs<<16 }

// spawnArgs unpacks an OpSpawn operand.
func spawnArgs(arg int) (sub, nargs int) { return arg & 0xffff, arg >> 16 }

// Mnemonic returns the assembler name of the operation.
func (o OpCode) Mnemonic() string {
	op := o.Op()
	if op >= numOps {
		return fmt.Sprintf("op(%d)", uint32(op))
	}
	return opNames[op]
}

func (o OpCode) String() string {
	op := o.Op()
	if op >= numOps {
		return o.Mnemonic()
	}
	switch op {
	case OpPush, OpLoad, OpStore, OpList, OpTuple, OpMap, OpJoin, OpNew, OpCall:
		return fmt.Sprintf("%s %d", opNames[op], o.Arg())
	case OpJump, OpJumpF:
		return fmt.Sprintf("%s %+d", opNames[op], o.Offset())
	case OpSpawn:
		sub, n := spawnArgs(o.Arg())
		return fmt.Sprintf("%s %d %d", opNames[op], sub, n)
	}
	return opNames[op]
}

// lookupOp resolves a mnemonic.
func lookupOp(name string) (OpCode, bool) {
	for i, n := range opNames {
		if n == name {
			return OpCode(i), true
		}
	}
	return 0, false
}
