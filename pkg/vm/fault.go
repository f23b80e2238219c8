package vm

import "fmt"

// Fault is a program error raised while executing an instruction. It ends the
// process as Failed; it never escapes Resume as an error.
type Fault struct {
	IP  int
	Op  OpCode
	Msg string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s at %d: %s", f.Op.Mnemonic(), f.IP, f.Msg)
}

// fail aborts the current instruction with a fault.
func (v *VM) fail(format string, args ...any) {
	panic(&Fault{IP: v.ip - 1, Op: v.cur, Msg: fmt.Sprintf(format, args...)})
}
