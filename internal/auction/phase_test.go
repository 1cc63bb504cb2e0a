package auction

import "testing"

func TestPhaseTransitionTable(t *testing.T) {
	legal := map[Phase][]Phase{
		PhaseNotStarted: {PhaseActive},
		PhaseActive:     {PhaseClosed},
		PhaseClosed:     {PhaseSettled, PhaseActive},
		PhaseSettled:    nil,
	}

	all := []Phase{PhaseNotStarted, PhaseActive, PhaseClosed, PhaseSettled}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, n := range legal[from] {
				if n == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%v -> %v: got %v, want %v", from, to, got, want)
			}
		}
	}
}
