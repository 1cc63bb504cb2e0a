package auction

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/whetstoneresearch/doppler-sub010/internal/event"
	"github.com/whetstoneresearch/doppler-sub010/internal/fixedpoint"
)

// Claim pays a bid's pro-rata share of the incentive reserve:
// reserve × credit / denominator, rounded down. Valid only while Settled
// and inside the claim window; each bid claims once. The cached denominator
// makes every claim O(1).
func (e *Engine) Claim(bidID uuid.UUID, now int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseSettled {
		return 0, ErrWrongPhase
	}
	if now > e.claimDeadline {
		return 0, ErrClaimWindowClosed
	}

	bid, ok := e.ledger.Get(bidID)
	if !ok {
		return 0, ErrNotFound
	}
	if bid.Claimed {
		return 0, ErrAlreadyClaimed
	}

	denom := e.tracker.Denominator()
	var payout int64
	if denom.Sign() > 0 {
		credit := e.tracker.Credit(bid)
		payout = fixedpoint.ProRata(e.reserve, credit, denom)
	}

	bid.Claimed = true
	e.claimedTotal += payout
	e.postCheckInvariants()

	if payout > 0 {
		if err := e.vault.TransferAsset(HolderAuction, bid.Key.Owner, payout); err != nil {
			panic(fmt.Sprintf("FATAL: claim payout failed: %v", err))
		}
	}

	e.emit(event.TypeClaimed, now, event.Claimed{
		BidID:  bidID,
		Owner:  bid.Key.Owner,
		Payout: payout,
	})
	if e.metrics != nil {
		e.metrics.ClaimsPaid.Inc()
		e.metrics.ClaimPayoutTotal.Add(float64(payout))
		e.metrics.ReserveRemaining.Set(float64(e.reserve - e.claimedTotal))
	}
	return payout, nil
}

// Recover moves the whole reserve out when nobody earned credit, meaning
// the finalized denominator is exactly zero, so the funds are not locked up
// forever. Owner only, and only after migration so the reserve is the only
// balance left behind.
func (e *Engine) Recover(caller, recipient string, now int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return 0, ErrUnauthorized
	}
	if e.phase != PhaseSettled {
		return 0, ErrWrongPhase
	}
	if !e.migrated {
		return 0, ErrNotMigrated
	}
	if e.tracker.Denominator().Sign() != 0 {
		return 0, ErrCreditOutstanding
	}

	amount := e.reserve - e.claimedTotal
	if amount > 0 {
		if err := e.vault.TransferAsset(HolderAuction, recipient, amount); err != nil {
			panic(fmt.Sprintf("FATAL: recovery transfer failed: %v", err))
		}
	}
	e.claimedTotal = e.reserve

	e.emit(event.TypeRecovered, now, event.Recovered{
		Recipient: recipient,
		Amount:    amount,
	})
	if e.metrics != nil {
		e.metrics.ReserveRemaining.Set(0)
	}
	return amount, nil
}

// Sweep moves whatever incentive reserve remains unclaimed once the claim
// window has closed. Owner only.
func (e *Engine) Sweep(caller, recipient string, now int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return 0, ErrUnauthorized
	}
	if e.phase != PhaseSettled {
		return 0, ErrWrongPhase
	}
	if now <= e.claimDeadline {
		return 0, ErrClaimWindowOpen
	}

	amount := e.reserve - e.claimedTotal
	if amount > 0 {
		if err := e.vault.TransferAsset(HolderAuction, recipient, amount); err != nil {
			panic(fmt.Sprintf("FATAL: sweep transfer failed: %v", err))
		}
	}
	e.claimedTotal = e.reserve

	e.emit(event.TypeSwept, now, event.Swept{
		Recipient: recipient,
		Amount:    amount,
	})
	if e.metrics != nil {
		e.metrics.ReserveRemaining.Set(0)
	}
	return amount, nil
}
