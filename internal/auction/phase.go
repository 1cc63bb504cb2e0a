package auction

// Phase is the auction lifecycle state. Transitions are only reachable
// through engine methods: NotStarted → Active on Start, Active → Closed
// atomically when settlement begins, Closed → Settled once the trade
// completes. A failed trade reopens Closed → Active for a retry. Settled
// is terminal.
type Phase int32

const (
	PhaseNotStarted Phase = iota
	PhaseActive
	PhaseClosed
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseActive:
		return "Active"
	case PhaseClosed:
		return "Closed"
	case PhaseSettled:
		return "Settled"
	default:
		return "Unknown"
	}
}

// CanTransitionTo reports whether the step p → next is legal.
func (p Phase) CanTransitionTo(next Phase) bool {
	switch p {
	case PhaseNotStarted:
		return next == PhaseActive
	case PhaseActive:
		return next == PhaseClosed
	case PhaseClosed:
		// Settled on success; a failed execution reopens for a retry.
		return next == PhaseSettled || next == PhaseActive
	default:
		return false
	}
}
