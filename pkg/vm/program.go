package vm

import (
	"fmt"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// Program is an immutable instruction stream with its constant pool.
type Program struct {
	Name   string
	Code   []OpCode
	Consts []domain.Value
}

// String disassembles the program, one instruction per line.
func (p *Program) String() string {
	var b strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&b, "%s:\n", p.Name)
	}
	for i, inst := range p.Code {
		fmt.Fprintf(&b, "%4d  %s", i, inst)
		if inst.Op() == OpPush && inst.Arg() < len(p.Consts) {
			fmt.Fprintf(&b, "  ; %s", p.Consts[inst.Arg()])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Spawns returns the library indexes of the subprograms p spawns, in
// first-use order without duplicates.
func (p *Program) Spawns() []int {
	var out []int
	seen := make(map[int]bool)
	for _, inst := range p.Code {
		if inst.Op() != OpSpawn {
			continue
		}
		sub, _ := spawnArgs(inst.Arg())
		if !seen[sub] {
			seen[sub] = true
			out = append(out, sub)
		}
	}
	return out
}

// Library is a set of programs that spawn one another by index. Programs are
// shared read-only between every VM linked against the library.
type Library struct {
	Programs []*Program
}

// Lookup finds a program by name.
func (l *Library) Lookup(name string) (int, *Program, bool) {
	if l == nil {
		return 0, nil, false
	}
	for i, p := range l.Programs {
		if p.Name == name {
			return i, p, true
		}
	}
	return 0, nil, false
}

// NewVM creates a VM running the named program with spawn access to the
// whole library.
func (l *Library) NewVM(name string, opts ...Option) (*VM, error) {
	_, p, ok := l.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("program %q not found", name)
	}
	return New(p, append([]Option{WithLibrary(l)}, opts...)...), nil
}
