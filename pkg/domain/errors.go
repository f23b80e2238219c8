package domain

import "errors"

// ErrMalformedChannel is returned when a channel string is not of the shape "@<kind>:<label>".
var ErrMalformedChannel = errors.New("malformed channel name")

// ErrKindMismatch is returned when the kind asserted by a caller differs from the
// kind embedded in the channel name.
var ErrKindMismatch = errors.New("channel kind mismatch")

// ErrEmpty is returned by Ask and Peek when the channel holds no value.
var ErrEmpty = errors.New("channel empty")

// ErrNotRunnable is returned when Execute is called on a Waiting process.
var ErrNotRunnable = errors.New("process is not runnable")

// ErrTerminal is returned when a transition is requested on a completed or failed process.
var ErrTerminal = errors.New("process is in a terminal state")

// ErrNotParallel is returned when a channel expected to hold a parallel group holds something else.
var ErrNotParallel = errors.New("channel does not hold a parallel group")

// ErrUnknownMachine is returned when decoding a process whose machine kind was never registered.
var ErrUnknownMachine = errors.New("unknown machine kind")
