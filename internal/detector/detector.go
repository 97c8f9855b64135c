package detector

import (
	"net/netip"
	"time"

	"ipmonitor/internal/types"
)

// Detect compares current against stored. A nil stored state is a first run.
// Equality is exact address equality after unmapping.
func Detect(current netip.Addr, stored *types.PersistedState, now time.Time) types.ChangeEvent {
	current = current.Unmap()
	event := types.ChangeEvent{
		Current:    current,
		ObservedAt: now,
	}

	switch {
	case stored == nil || !stored.IP.IsValid():
		event.Kind = types.FirstRun
	case stored.IP.Unmap() == current:
		event.Kind = types.Unchanged
		event.Previous = stored.IP.Unmap()
	default:
		event.Kind = types.Changed
		event.Previous = stored.IP.Unmap()
	}
	return event
}
