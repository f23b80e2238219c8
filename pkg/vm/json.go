package vm

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/registry"
)

func init() {
	domain.RegisterMachine(MachineKind, func(data []byte) (domain.Machine, error) {
		v := &VM{}
		if err := json.Unmarshal(data, v); err != nil {
			return nil, err
		}
		return v, nil
	})
}

type programJSON struct {
	Name   string           `json:"name,omitempty"`
	Code   []OpCode         `json:"code"`
	Consts []domain.Encoded `json:"consts,omitempty"`
}

func (p *Program) MarshalJSON() ([]byte, error) {
	return json.Marshal(programJSON{
		Name:   p.Name,
		Code:   p.Code,
		Consts: domain.EncodeAll(p.Consts),
	})
}

func (p *Program) UnmarshalJSON(data []byte) error {
	var w programJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Name = w.Name
	p.Code = w.Code
	p.Consts = domain.DecodeAll(w.Consts)
	return nil
}

type barrierJSON struct {
	Channel domain.Name      `json:"channel"`
	Want    int              `json:"want"`
	Got     []domain.Encoded `json:"got,omitempty"`
}

// snapshot is the persisted state of a VM. The program is stored as an index
// into the library when the VM has one.
type snapshot struct {
	Program   *Program         `json:"program,omitempty"`
	Entry     int              `json:"entry"`
	Library   []*Program       `json:"library,omitempty"`
	IP        int              `json:"ip"`
	Stack     []domain.Encoded `json:"stack,omitempty"`
	Locals    []domain.Encoded `json:"locals,omitempty"`
	Wait      *domain.Name     `json:"wait,omitempty"`
	Join      *barrierJSON     `json:"join,omitempty"`
	Done      bool             `json:"done,omitempty"`
	Result    *domain.Encoded  `json:"result,omitempty"`
	Fault     string           `json:"fault,omitempty"`
	Budget    int              `json:"budget"`
	SpawnKind uint8            `json:"spawn_kind"`
}

// MarshalJSON captures the complete execution state. Natives are not
// persisted; a restored VM resolves calls against registry.Default.
func (v *VM) MarshalJSON() ([]byte, error) {
	s := snapshot{
		Entry:     -1,
		IP:        v.ip,
		Stack:     domain.EncodeAll(v.stack),
		Locals:    domain.EncodeAll(v.locals),
		Wait:      v.wait,
		Done:      v.done,
		Fault:     v.fault,
		Budget:    v.budget,
		SpawnKind: v.spawnKind,
	}
	if v.lib != nil {
		s.Library = v.lib.Programs
		for i, p := range v.lib.Programs {
			if p == v.prog {
				s.Entry = i
				break
			}
		}
	}
	if s.Entry < 0 {
		s.Program = v.prog
	}
	if v.join != nil {
		s.Join = &barrierJSON{
			Channel: v.join.Channel,
			Want:    v.join.Want,
			Got:     domain.EncodeAll(v.join.Got),
		}
	}
	if v.result != nil {
		s.Result = &domain.Encoded{V: v.result}
	}
	return json.Marshal(s)
}

func (v *VM) UnmarshalJSON(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to unmarshal vm: %w", err)
	}

	*v = VM{
		ip:        s.IP,
		stack:     domain.DecodeAll(s.Stack),
		locals:    domain.DecodeAll(s.Locals),
		wait:      s.Wait,
		done:      s.Done,
		fault:     s.Fault,
		budget:    s.Budget,
		spawnKind: s.SpawnKind,
		natives:   registry.Default(),
	}
	if len(s.Library) > 0 {
		v.lib = &Library{Programs: s.Library}
	}
	switch {
	case s.Program != nil:
		v.prog = s.Program
	case v.lib != nil && s.Entry >= 0 && s.Entry < len(v.lib.Programs):
		v.prog = v.lib.Programs[s.Entry]
	default:
		return fmt.Errorf("vm snapshot has no program")
	}
	if s.Join != nil {
		v.join = &barrier{
			Channel: s.Join.Channel,
			Want:    s.Join.Want,
			Got:     domain.DecodeAll(s.Join.Got),
		}
	}
	if s.Result != nil {
		v.result = s.Result.V
	}
	return nil
}
