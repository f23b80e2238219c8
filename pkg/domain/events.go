package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventProcessCompleted EventType = "process_completed"
	EventProcessFailed    EventType = "process_failed"
	EventRoundStart       EventType = "round_start"
	EventRoundEnd         EventType = "round_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// ProcessEvent reports a terminal transition. It is emitted only after the
// process has been written back to the store.
type ProcessEvent struct {
	EventBase
	ProcessID Name   `json:"process_id"`
	Channel   Name   `json:"channel"`
	Value     Value  `json:"-"`
	Failure   string `json:"failure,omitempty"`
}

// Failed reports whether the event carries a failure.
func (e *ProcessEvent) Failed() bool {
	return e.Type == EventProcessFailed
}

// RoundEvent reports the start or end of a scheduling round.
type RoundEvent struct {
	EventBase
	Round    uint64        `json:"round"`
	Ready    int           `json:"ready"`
	Duration time.Duration `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for scheduler observability.
type LifecycleHooks struct {
	OnRoundStart  func(context.Context, *RoundEvent)
	OnRoundEnd    func(context.Context, *RoundEvent)
	OnProcessDone func(context.Context, *ProcessEvent)
}
