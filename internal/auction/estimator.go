package auction

import (
	"context"
	"fmt"

	"github.com/whetstoneresearch/doppler-sub010/internal/event"
	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
)

// recomputeEstimate asks the market to simulate selling the full remaining
// allocation against current liquidity, floors the result to granularity,
// and, only when the estimate actually moved, flips the in-range status
// of the levels between the old and new estimate. Purely simulated: the
// market is never mutated. Callers hold the mutex.
func (e *Engine) recomputeEstimate(ctx context.Context, now int64) error {
	if e.metrics != nil {
		e.metrics.EstimateRecomputes.Inc()
	}

	price, err := e.mkt.Quote(ctx, e.remainingSale())
	if err != nil {
		return fmt.Errorf("market quote: %w", err)
	}

	newTick := e.clampEstimate(levels.FloorTo(price, e.cfg.Granularity))
	if newTick == e.estimate {
		return nil
	}

	old := e.estimate
	e.estimate = newTick
	e.applyRangeFlips(old, newTick, now)

	e.log.Debug().
		Int32("old", int32(old)).
		Int32("new", int32(newTick)).
		Msg("clearing estimate moved")

	e.emit(event.TypeEstimateUpdated, now, event.EstimateUpdated{
		OldTick: int32(old),
		NewTick: int32(newTick),
	})
	if e.metrics != nil {
		e.metrics.EstimateMoves.Inc()
		e.metrics.EstimateTick.Set(float64(newTick))
	}
	return nil
}

// clampEstimate keeps the estimate on the legal side of the floor. The
// market returns the floor when liquidity cannot absorb the sale, so this
// only corrects granularity rounding at the boundary.
func (e *Engine) clampEstimate(tick levels.Tick) levels.Tick {
	floor := e.cfg.FloorTick()
	if e.cfg.Orientation == SellingNumeraire {
		if tick > floor {
			return floor
		}
		return tick
	}
	if tick < floor {
		return floor
	}
	return tick
}

// applyRangeFlips visits exactly the active levels whose in-range status
// changes when the estimate moves from old to new, walking the sparse index
// with NextActive so the cost is proportional to the active levels touched.
func (e *Engine) applyRangeFlips(old, next levels.Tick, now int64) {
	lo, hi := old, next
	if lo > hi {
		lo, hi = hi, lo
	}

	// Status tick>=estimate changes on [lo, hi); the mirrored orientation's
	// tick<=estimate changes on (lo, hi].
	from, bound := lo, hi-1
	if e.cfg.Orientation == SellingNumeraire {
		from, bound = lo+1, hi
	}

	for {
		tick, ok := e.store.NextActive(from, levels.Up, bound)
		if !ok {
			return
		}
		lvl := e.store.Get(tick)
		inRange := e.cfg.InRange(tick, e.estimate)
		if e.tracker.SetInRange(lvl, inRange, now) {
			t := event.TypeLevelExitedRange
			if inRange {
				t = event.TypeLevelEnteredRange
			}
			e.emit(t, now, event.LevelRangeChange{
				Tick:      int32(tick),
				Liquidity: lvl.Liquidity,
			})
		}
		from = tick + 1
	}
}
