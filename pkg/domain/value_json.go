package domain

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MachineDecoder rebuilds a Machine from the JSON produced by its MarshalJSON.
type MachineDecoder func(data []byte) (Machine, error)

var (
	machinesMu sync.RWMutex
	machines   = map[string]MachineDecoder{}
)

// RegisterMachine makes a machine implementation decodable by the value codec.
// Implementations call it from init. Registering a kind twice replaces the decoder.
func RegisterMachine(kind string, dec MachineDecoder) {
	machinesMu.Lock()
	defer machinesMu.Unlock()
	machines[kind] = dec
}

func machineDecoder(kind string) (MachineDecoder, bool) {
	machinesMu.RLock()
	defer machinesMu.RUnlock()
	dec, ok := machines[kind]
	return dec, ok
}

type wireValue struct {
	T       string        `json:"t"`
	I       int64         `json:"i,omitempty"`
	B       bool          `json:"b,omitempty"`
	S       string        `json:"s,omitempty"`
	NS      uint8         `json:"ns,omitempty"`
	Items   []wireValue   `json:"items,omitempty"`
	Entries []wireEntry   `json:"entries,omitempty"`
	Procs   []wireProcess `json:"procs,omitempty"`
}

type wireEntry struct {
	K wireValue `json:"k"`
	V wireValue `json:"v"`
}

type wireMachine struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type wireProcess struct {
	NS      uint8        `json:"ns"`
	Label   string       `json:"label"`
	State   State        `json:"state"`
	Result  *wireValue   `json:"result,omitempty"`
	Failure string       `json:"failure,omitempty"`
	Machine *wireMachine `json:"machine,omitempty"`
}

// MarshalValue encodes v as JSON. Par groups carry their processes, including
// the serialized state of each machine.
func MarshalValue(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalValue decodes JSON produced by MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return fromWire(w)
}

// Encoded wraps a Value so it can be embedded in other JSON documents.
type Encoded struct {
	V Value
}

func (e Encoded) MarshalJSON() ([]byte, error) {
	return MarshalValue(e.V)
}

func (e *Encoded) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	e.V = v
	return nil
}

// EncodeAll wraps each value for embedding.
func EncodeAll(vs []Value) []Encoded {
	out := make([]Encoded, len(vs))
	for i, v := range vs {
		out[i] = Encoded{V: v}
	}
	return out
}

// DecodeAll unwraps embedded values.
func DecodeAll(es []Encoded) []Value {
	out := make([]Value, len(es))
	for i, e := range es {
		out[i] = e.V
	}
	return out
}

func toWire(v Value) (wireValue, error) {
	if v == nil {
		v = Nil{}
	}
	w := wireValue{T: v.Kind().String()}
	switch x := v.(type) {
	case Nil:
	case Int:
		w.I = int64(x)
	case Bool:
		w.B = bool(x)
	case Text:
		w.S = string(x)
	case Name:
		w.NS = x.NS
		w.S = x.Label
	case List:
		items, err := toWireSeq(x)
		if err != nil {
			return w, err
		}
		w.Items = items
	case Tuple:
		items, err := toWireSeq(x)
		if err != nil {
			return w, err
		}
		w.Items = items
	case Map:
		for _, e := range x.entries {
			k, err := toWire(e.Key)
			if err != nil {
				return w, err
			}
			val, err := toWire(e.Val)
			if err != nil {
				return w, err
			}
			w.Entries = append(w.Entries, wireEntry{K: k, V: val})
		}
	case Par:
		for _, p := range x {
			wp, err := processToWire(p)
			if err != nil {
				return w, err
			}
			w.Procs = append(w.Procs, wp)
		}
	default:
		return w, fmt.Errorf("cannot encode value of type %T", v)
	}
	return w, nil
}

func toWireSeq(vs []Value) ([]wireValue, error) {
	out := make([]wireValue, len(vs))
	for i, v := range vs {
		w, err := toWire(v)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func processToWire(p *Process) (wireProcess, error) {
	wp := wireProcess{
		NS:      p.id.NS,
		Label:   p.id.Label,
		State:   p.state,
		Failure: p.failure,
	}
	if p.result != nil {
		r, err := toWire(p.result)
		if err != nil {
			return wp, err
		}
		wp.Result = &r
	}
	if p.machine != nil {
		data, err := json.Marshal(p.machine)
		if err != nil {
			return wp, fmt.Errorf("failed to marshal machine of %s: %w", p.id, err)
		}
		wp.Machine = &wireMachine{Kind: p.machine.MachineKind(), Data: data}
	}
	return wp, nil
}

func fromWire(w wireValue) (Value, error) {
	switch w.T {
	case KindNil.String():
		return Nil{}, nil
	case KindInt.String():
		return Int(w.I), nil
	case KindBool.String():
		return Bool(w.B), nil
	case KindText.String():
		return Text(w.S), nil
	case KindName.String():
		return Name{NS: w.NS, Label: w.S}, nil
	case KindList.String():
		items, err := fromWireSeq(w.Items)
		return List(items), err
	case KindTuple.String():
		items, err := fromWireSeq(w.Items)
		return Tuple(items), err
	case KindMap.String():
		entries := make([]Entry, 0, len(w.Entries))
		for _, e := range w.Entries {
			k, err := fromWire(e.K)
			if err != nil {
				return nil, err
			}
			v, err := fromWire(e.V)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Key: k, Val: v})
		}
		return NewMap(entries...), nil
	case KindPar.String():
		par := make(Par, 0, len(w.Procs))
		for _, wp := range w.Procs {
			p, err := processFromWire(wp)
			if err != nil {
				return nil, err
			}
			par = append(par, p)
		}
		return par, nil
	}
	return nil, fmt.Errorf("unknown value tag %q", w.T)
}

func fromWireSeq(ws []wireValue) ([]Value, error) {
	out := make([]Value, len(ws))
	for i, w := range ws {
		v, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func processFromWire(wp wireProcess) (*Process, error) {
	p := &Process{
		id:      Name{NS: wp.NS, Label: wp.Label},
		state:   wp.State,
		failure: wp.Failure,
	}
	if wp.Result != nil {
		r, err := fromWire(*wp.Result)
		if err != nil {
			return nil, err
		}
		p.result = r
	}
	if wp.Machine != nil {
		dec, ok := machineDecoder(wp.Machine.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: %q (process %s)", ErrUnknownMachine, wp.Machine.Kind, p.id)
		}
		m, err := dec(wp.Machine.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode machine of %s: %w", p.id, err)
		}
		p.machine = m
	}
	return p, nil
}
