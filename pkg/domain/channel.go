package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ScopeSeparator splits a channel label into hierarchical scope segments.
const ScopeSeparator = "/"

// Name is an opaque channel reference of the shape "@<ns>:<label>".
// NS is the channel's namespace ("kind"); Label is free-form.
type Name struct {
	NS    uint8
	Label string
}

// NewName builds a Name.
func NewName(ns uint8, label string) Name {
	return Name{NS: ns, Label: label}
}

// String renders the canonical channel string.
func (n Name) String() string {
	return "@" + strconv.Itoa(int(n.NS)) + ":" + n.Label
}

// Segments splits the label into its scope segments.
func (n Name) Segments() []string {
	if n.Label == "" {
		return nil
	}
	return strings.Split(n.Label, ScopeSeparator)
}

// Within reports whether the label lives under scope. An empty scope contains
// every label of the namespace; "procs" contains "procs" and "procs/a" but not
// "procsx".
func (n Name) Within(scope string) bool {
	scope = strings.TrimSuffix(scope, ScopeSeparator)
	if scope == "" {
		return true
	}
	if n.Label == scope {
		return true
	}
	return strings.HasPrefix(n.Label, scope+ScopeSeparator)
}

// ParseName parses a channel string of the shape "@<ns>:<label>".
func ParseName(channel string) (Name, error) {
	if !strings.HasPrefix(channel, "@") {
		return Name{}, fmt.Errorf("%w: %q lacks '@' prefix", ErrMalformedChannel, channel)
	}
	rest := channel[1:]
	idx := strings.IndexByte(rest, ':')
	if idx <= 0 {
		return Name{}, fmt.Errorf("%w: %q lacks '<kind>:' prefix", ErrMalformedChannel, channel)
	}
	ns, err := strconv.ParseUint(rest[:idx], 10, 8)
	if err != nil {
		return Name{}, fmt.Errorf("%w: %q has invalid kind: %v", ErrMalformedChannel, channel, err)
	}
	return Name{NS: uint8(ns), Label: rest[idx+1:]}, nil
}

// CheckKind parses channel and verifies its embedded namespace equals kind.
// Every tuple space operation runs it before touching any queue.
func CheckKind(kind uint8, channel string) (Name, error) {
	name, err := ParseName(channel)
	if err != nil {
		return Name{}, err
	}
	if name.NS != kind {
		return Name{}, fmt.Errorf("%w: channel %s has kind %d, caller asserted %d", ErrKindMismatch, channel, name.NS, kind)
	}
	return name, nil
}

// MustName parses channel and panics on error. Intended for constants and tests.
func MustName(channel string) Name {
	n, err := ParseName(channel)
	if err != nil {
		panic(err)
	}
	return n
}
