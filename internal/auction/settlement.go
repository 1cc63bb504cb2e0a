package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/whetstoneresearch/doppler-sub010/internal/event"
	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
)

// Settle executes the one real settlement trade. Open to any caller once
// the deadline has passed.
//
// The step runs in three stages: under the mutex it transitions Active →
// Closed (freezing all mutation) and finalizes accrual; the Market.Execute
// call then runs outside the mutex behind the settling guard, so a
// reentrant invocation finds the phase Closed and fails WrongPhase instead
// of re-triggering the trade; finally, under the mutex again, the result is
// written once and the phase becomes Settled.
//
// Floor policy: the *realized* price is validated after the trade, not the
// simulated one. Liquidity can move between quote and execution and only
// the realized price has economic effect. A violation surfaces as an
// InvariantViolation and leaves the auction frozen in Closed.
func (e *Engine) Settle(ctx context.Context, now int64) (*SettlementResult, error) {
	start := time.Now()

	e.mu.Lock()
	if e.phase != PhaseActive || e.settling {
		e.mu.Unlock()
		return nil, ErrWrongPhase
	}
	if now < e.endTime {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d < %d", ErrNotYetDue, now, e.endTime)
	}

	e.transition(PhaseClosed)
	e.settling = true
	e.tracker.FinalizeAll()

	sell := e.remainingSale()
	execute := sell > 0 && e.ledger.LiveCount() > 0
	e.mu.Unlock()

	var filled, proceeds, price int64
	var err error
	if execute {
		// Suspension point: the venue may re-enter, but the phase is
		// already Closed and settling is held.
		filled, proceeds, price, err = e.mkt.Execute(ctx, sell)
	} else {
		price = e.cfg.FloorPrice
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.settling = false

	if err != nil {
		// Trade failed with no effect; reopen for a retry once the venue
		// recovers.
		e.transition(PhaseActive)
		return nil, fmt.Errorf("market execute: %w", err)
	}
	if e.cfg.ViolatesFloor(price) {
		// Structurally unreachable with a correctly isolated venue:
		// sub-floor levels never enter the book. Surfaced, never absorbed.
		return nil, fmt.Errorf("%w: realized %d, floor %d", ErrPriceLimitViolated, price, e.cfg.FloorPrice)
	}

	clearing := e.clampEstimate(levels.FloorTo(price, e.cfg.Granularity))
	e.result = &SettlementResult{
		ClearingTick: clearing,
		Price:        price,
		Sold:         filled,
		Proceeds:     proceeds,
		Executed:     execute,
	}

	if filled > 0 {
		if terr := e.vault.TransferAsset(HolderAuction, HolderVenue, filled); terr != nil {
			panic(fmt.Sprintf("FATAL: settlement asset transfer failed: %v", terr))
		}
	}
	if proceeds > 0 {
		e.vault.CreditNumeraire(HolderAuction, proceeds)
	}

	// Pin the final clearing price; accumulators are already frozen at the
	// auction end, so the flips only correct the in-range flags.
	if clearing != e.estimate {
		old := e.estimate
		e.estimate = clearing
		e.applyRangeFlips(old, clearing, now)
	}

	e.transition(PhaseSettled)
	e.postCheckInvariants()

	e.log.Info().
		Int32("clearing_tick", int32(clearing)).
		Int64("price", price).
		Int64("sold", filled).
		Int64("proceeds", proceeds).
		Bool("executed", execute).
		Msg("auction settled")

	e.emit(event.TypeSettled, now, event.Settled{
		ClearingTick: int32(clearing),
		Price:        price,
		Sold:         filled,
		Proceeds:     proceeds,
		Executed:     execute,
	})
	if e.metrics != nil {
		e.metrics.SettlementDuration.Observe(time.Since(start).Seconds())
		e.metrics.ReserveRemaining.Set(float64(e.reserve))
	}

	res := *e.result
	return &res, nil
}
