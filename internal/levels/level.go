package levels

import (
	"math/big"
)

// Tick is a discretized price level. Tick values are prices in
// fixedpoint.PriceConfig units, aligned to the auction's granularity.
type Tick int32

// Direction selects which way a range scan walks the index.
type Direction int

const (
	// Up walks toward higher ticks.
	Up Direction = 1
	// Down walks toward lower ticks.
	Down Direction = -1
)

// Level aggregates every live bid at one tick.
//
// Accumulator carries fixed-point in-range time (fixedpoint.AccrualConfig
// units). DebtSum carries Σ rewardDebt×size over the level's live bids; it
// and the accumulator together let earned credit be settled without ever
// iterating the level's bids.
type Level struct {
	Tick        Tick
	Liquidity   int64
	InRange     bool
	LastUpdate  int64 // unix seconds of the last accumulator advance
	Accumulator int64
	DebtSum     *big.Int
}

// NewLevel creates an empty level at tick. The caller decides the initial
// in-range flag from the current clearing estimate.
func NewLevel(tick Tick, now int64, inRange bool) *Level {
	return &Level{
		Tick:       tick,
		InRange:    inRange,
		LastUpdate: now,
		DebtSum:    new(big.Int),
	}
}

// AlignedTo reports whether tick sits on the given spacing grid.
func (t Tick) AlignedTo(spacing int32) bool {
	return spacing > 0 && int32(t)%spacing == 0
}

// FloorTo rounds a raw price down to the nearest tick on the spacing grid.
// Negative prices do not occur in this system.
func FloorTo(price int64, spacing int32) Tick {
	s := int64(spacing)
	return Tick(price / s * s)
}
