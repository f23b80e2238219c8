package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindInt
	KindBool
	KindText
	KindName
	KindList
	KindTuple
	KindMap
	KindPar
)

var kindNames = [...]string{
	KindNil:   "nil",
	KindInt:   "int",
	KindBool:  "bool",
	KindText:  "text",
	KindName:  "name",
	KindList:  "list",
	KindTuple: "tuple",
	KindMap:   "map",
	KindPar:   "par",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is any datum that can live on a channel or on a machine's operand stack.
// The set of implementations is closed; values are never mutated after construction.
type Value interface {
	Kind() Kind
	String() string
	value()
}

// Nil is the unit value.
type Nil struct{}

// Int is a signed integer.
type Int int64

// Bool is a boolean.
type Bool bool

// Text is a string.
type Text string

// List is a variable-length ordered collection.
type List []Value

// Tuple is a fixed-length ordered collection.
type Tuple []Value

// Entry is a single key/value association of a Map.
type Entry struct {
	Key Value
	Val Value
}

// Map is an associative collection with unique keys.
// Build it with NewMap so that duplicate keys are collapsed.
type Map struct {
	entries []Entry
}

// Par is a parallel group of processes. It is the only value used to hold
// pending work in a tuple space.
type Par []*Process

func (Nil) Kind() Kind   { return KindNil }
func (Int) Kind() Kind   { return KindInt }
func (Bool) Kind() Kind  { return KindBool }
func (Text) Kind() Kind  { return KindText }
func (Name) Kind() Kind  { return KindName }
func (List) Kind() Kind  { return KindList }
func (Tuple) Kind() Kind { return KindTuple }
func (Map) Kind() Kind   { return KindMap }
func (Par) Kind() Kind   { return KindPar }

func (Nil) value()   {}
func (Int) value()   {}
func (Bool) value()  {}
func (Text) value()  {}
func (Name) value()  {}
func (List) value()  {}
func (Tuple) value() {}
func (Map) value()   {}
func (Par) value()   {}

func (Nil) String() string    { return "Nil" }
func (i Int) String() string  { return strconv.FormatInt(int64(i), 10) }
func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (t Text) String() string { return strconv.Quote(string(t)) }

func (l List) String() string  { return "[" + joinValues(l) + "]" }
func (t Tuple) String() string { return "(" + joinValues(t) + ")" }

func (m Map) String() string {
	parts := make([]string, len(m.entries))
	for i, e := range m.entries {
		parts[i] = e.Key.String() + ": " + e.Val.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (p Par) String() string {
	ids := make([]string, len(p))
	for i, proc := range p {
		ids[i] = proc.ID().String()
	}
	return "Par[" + strings.Join(ids, ", ") + "]"
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = render(v)
	}
	return strings.Join(parts, ", ")
}

func render(v Value) string {
	if v == nil {
		return Nil{}.String()
	}
	return v.String()
}

// NewMap builds a Map from entries. When a key repeats, the later value wins
// and keeps the position of the first occurrence.
func NewMap(entries ...Entry) Map {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Key == nil {
			e.Key = Nil{}
		}
		if e.Val == nil {
			e.Val = Nil{}
		}
		replaced := false
		for i := range out {
			if Equal(out[i].Key, e.Key) {
				out[i].Val = e.Val
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return Map{entries: out}
}

// Len returns the number of entries.
func (m Map) Len() int { return len(m.entries) }

// Get looks up the value stored under key.
func (m Map) Get(key Value) (Value, bool) {
	for _, e := range m.entries {
		if Equal(e.Key, key) {
			return e.Val, true
		}
	}
	return nil, false
}

// Entries returns a copy of the map entries in insertion order.
func (m Map) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// With returns a new map with key bound to val.
func (m Map) With(key, val Value) Map {
	entries := m.Entries()
	entries = append(entries, Entry{Key: key, Val: val})
	return NewMap(entries...)
}

// Equal reports structural equality of two values.
// Maps compare regardless of entry order; Par groups compare process identity
// and state position by position.
func Equal(a, b Value) bool {
	if a == nil {
		a = Nil{}
	}
	if b == nil {
		b = Nil{}
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Nil:
		return true
	case Int:
		return x == b.(Int)
	case Bool:
		return x == b.(Bool)
	case Text:
		return x == b.(Text)
	case Name:
		return x == b.(Name)
	case List:
		return equalSeq(x, b.(List))
	case Tuple:
		return equalSeq(x, b.(Tuple))
	case Map:
		y := b.(Map)
		if x.Len() != y.Len() {
			return false
		}
		for _, e := range x.entries {
			v, ok := y.Get(e.Key)
			if !ok || !Equal(e.Val, v) {
				return false
			}
		}
		return true
	case Par:
		y := b.(Par)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i].ID() != y[i].ID() || x[i].State() != y[i].State() {
				return false
			}
		}
		return true
	}
	return false
}

func equalSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Less orders two values of the same comparable kind. It is used to produce a
// stable ordering for diagnostics (e.g. map keys).
func Less(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	switch x := a.(type) {
	case Int:
		return x < b.(Int)
	case Text:
		return x < b.(Text)
	case Bool:
		return !bool(x) && bool(b.(Bool))
	case Name:
		return x.String() < b.(Name).String()
	}
	return a.String() < b.String()
}

// SortedKeys returns the keys of m in Less order.
func SortedKeys(m Map) []Value {
	keys := make([]Value, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	sort.SliceStable(keys, func(i, j int) bool { return Less(keys[i], keys[j]) })
	return keys
}

// Truthy reports whether v counts as true for conditional jumps.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil, Nil:
		return false
	case Bool:
		return bool(x)
	case Int:
		return x != 0
	case Text:
		return x != ""
	case List:
		return len(x) > 0
	case Tuple:
		return len(x) > 0
	case Map:
		return x.Len() > 0
	case Par:
		return len(x) > 0
	}
	return true
}
