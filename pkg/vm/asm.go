package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// SyntaxError reports a malformed assembler line.
type SyntaxError struct {
	Program string
	Line    int
	Msg     string
}

func (e *SyntaxError) Error() string {
	if e.Program != "" {
		return fmt.Sprintf("%s:%d: %s", e.Program, e.Line, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Assemble translates mnemonic source into a single program. Spawn operands
// must be numeric; use an Assembler to spawn by name.
//
// One instruction per line. "#" and ";" start comments, "name:" defines a
// jump label. Push takes a literal: an integer, true, false, nil, a quoted
// string or a channel name like @0:c4.
func Assemble(src string) (*Program, error) {
	return assemble("", src, nil)
}

// MustAssemble is like Assemble but panics on error. Intended for tests.
func MustAssemble(src string) *Program {
	p, err := Assemble(src)
	if err != nil {
		panic(err)
	}
	return p
}

// Assembler links named programs into a Library so they can spawn one another
// by name.
type Assembler struct {
	names []string
	srcs  []string
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Add registers the source of a named program.
func (a *Assembler) Add(name, src string) error {
	for _, n := range a.names {
		if n == name {
			return fmt.Errorf("program %q defined twice", name)
		}
	}
	a.names = append(a.names, name)
	a.srcs = append(a.srcs, src)
	return nil
}

// Link assembles every registered program.
func (a *Assembler) Link() (*Library, error) {
	resolve := func(name string) (int, bool) {
		for i, n := range a.names {
			if n == name {
				return i, true
			}
		}
		return 0, false
	}
	lib := &Library{Programs: make([]*Program, len(a.names))}
	for i, name := range a.names {
		p, err := assemble(name, a.srcs[i], resolve)
		if err != nil {
			return nil, err
		}
		lib.Programs[i] = p
	}
	return lib, nil
}

type line struct {
	no       int
	mnemonic string
	operands []string
}

func assemble(name, src string, resolve func(string) (int, bool)) (*Program, error) {
	errorf := func(no int, format string, args ...any) error {
		return &SyntaxError{Program: name, Line: no, Msg: fmt.Sprintf(format, args...)}
	}

	labels := make(map[string]int)
	var lines []line
	for i, raw := range strings.Split(src, "\n") {
		no := i + 1
		text, err := stripComment(raw)
		if err != nil {
			return nil, errorf(no, "%v", err)
		}
		for {
			text = strings.TrimSpace(text)
			head, rest, _ := strings.Cut(text, " ")
			if !strings.HasSuffix(head, ":") || strings.HasPrefix(head, "@") || strings.HasPrefix(head, `"`) {
				break
			}
			label := strings.TrimSuffix(head, ":")
			if label == "" {
				return nil, errorf(no, "empty label")
			}
			if _, dup := labels[label]; dup {
				return nil, errorf(no, "label %q defined twice", label)
			}
			labels[label] = len(lines)
			text = rest
		}
		if text == "" {
			continue
		}
		mnemonic, rest, _ := strings.Cut(text, " ")
		l := line{no: no, mnemonic: strings.ToLower(mnemonic)}
		if rest = strings.TrimSpace(rest); rest != "" {
			if l.mnemonic == "push" {
				l.operands = []string{rest}
			} else {
				l.operands = strings.Fields(rest)
			}
		}
		lines = append(lines, l)
	}

	p := &Program{Name: name, Code: make([]OpCode, 0, len(lines))}
	for idx, l := range lines {
		op, ok := lookupOp(l.mnemonic)
		if !ok {
			return nil, errorf(l.no, "unknown instruction %q", l.mnemonic)
		}
		arg, err := operand(p, op, l, idx, labels, resolve)
		if err != nil {
			return nil, errorf(l.no, "%s: %v", l.mnemonic, err)
		}
		if arg < -(MaxArg+1)/2 || arg > MaxArg {
			return nil, errorf(l.no, "%s: operand %d out of range", l.mnemonic, arg)
		}
		p.Code = append(p.Code, op.With(arg))
	}
	return p, nil
}

func operand(p *Program, op OpCode, l line, idx int, labels map[string]int, resolve func(string) (int, bool)) (int, error) {
	want := 0
	switch op {
	case OpPush, OpLoad, OpStore, OpList, OpTuple, OpMap, OpJoin, OpNew, OpCall, OpJump, OpJumpF:
		want = 1
	case OpSpawn:
		if len(l.operands) < 1 || len(l.operands) > 2 {
			return 0, fmt.Errorf("expected subprogram and optional argument count")
		}
	}
	if op != OpSpawn && len(l.operands) != want {
		return 0, fmt.Errorf("expected %d operand(s), got %d", want, len(l.operands))
	}

	switch op {
	case OpPush:
		v, err := ParseLiteral(l.operands[0])
		if err != nil {
			return 0, err
		}
		return constIndex(p, v), nil

	case OpJump, OpJumpF:
		target, ok := labels[l.operands[0]]
		if ok {
			return target - (idx + 1), nil
		}
		off, err := strconv.Atoi(l.operands[0])
		if err != nil {
			return 0, fmt.Errorf("unknown label %q", l.operands[0])
		}
		return off, nil

	case OpSpawn:
		sub, err := strconv.Atoi(l.operands[0])
		if err != nil {
			var ok bool
			if resolve != nil {
				sub, ok = resolve(l.operands[0])
			}
			if !ok {
				return 0, fmt.Errorf("unknown program %q", l.operands[0])
			}
		}
		nargs := 0
		if len(l.operands) == 2 {
			if nargs, err = strconv.Atoi(l.operands[1]); err != nil {
				return 0, fmt.Errorf("invalid argument count %q", l.operands[1])
			}
		}
		if sub < 0 || sub > 0xffff || nargs < 0 || nargs > 0xff {
			return 0, fmt.Errorf("operand out of range")
		}
		return SpawnArgs(sub, nargs), nil
	}

	if want == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(l.operands[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid operand %q", l.operands[0])
	}
	return n, nil
}

func constIndex(p *Program, v domain.Value) int {
	for i, c := range p.Consts {
		if c.Kind() == v.Kind() && domain.Equal(c, v) {
			return i
		}
	}
	p.Consts = append(p.Consts, v)
	return len(p.Consts) - 1
}

// ParseLiteral parses a scalar literal as written after push.
func ParseLiteral(s string) (domain.Value, error) {
	switch s {
	case "nil", "Nil":
		return domain.Nil{}, nil
	case "true":
		return domain.Bool(true), nil
	case "false":
		return domain.Bool(false), nil
	}
	switch {
	case strings.HasPrefix(s, `"`):
		t, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("invalid string %s: %w", s, err)
		}
		return domain.Text(t), nil
	case strings.HasPrefix(s, "@"):
		return domain.ParseName(s)
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid literal %q", s)
	}
	return domain.Int(n), nil
}

// stripComment drops everything after an unquoted "#" or ";".
func stripComment(s string) (string, error) {
	inQuote, escaped := false, false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case (r == '#' || r == ';') && !inQuote:
			return s[:i], nil
		}
	}
	if inQuote {
		return "", fmt.Errorf("unterminated string")
	}
	return s, nil
}
