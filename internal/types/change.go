package types

import (
	"fmt"
	"net/netip"
	"time"
)

// ChangeKind classifies a freshly resolved IP against the stored one
type ChangeKind int

const (
	FirstRun ChangeKind = iota
	Changed
	Unchanged
)

// String returns the kind name
func (k ChangeKind) String() string {
	switch k {
	case FirstRun:
		return "first_run"
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ChangeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "first_run":
		*k = FirstRun
	case "changed":
		*k = Changed
	case "unchanged":
		*k = Unchanged
	default:
		return fmt.Errorf("unknown change kind: %q", text)
	}
	return nil
}

// Actionable reports whether the kind requires notification and DNS update
func (k ChangeKind) Actionable() bool {
	return k == FirstRun || k == Changed
}

// ChangeEvent is produced once per cycle
type ChangeEvent struct {
	Previous   netip.Addr `json:"previous"`
	Current    netip.Addr `json:"current"`
	Kind       ChangeKind `json:"kind"`
	ObservedAt time.Time  `json:"observed_at"`
}

// HasPrevious reports whether a previous address was known
func (e ChangeEvent) HasPrevious() bool {
	return e.Previous.IsValid()
}

// State returns the state to persist for the event
func (e ChangeEvent) State() PersistedState {
	return PersistedState{IP: e.Current, ObservedAt: e.ObservedAt}
}

// SourceAttempt records one source invocation within a resolve
type SourceAttempt struct {
	Source   string        `json:"source"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}
