package accrual

import (
	"math/big"

	"github.com/whetstoneresearch/doppler-sub010/internal/book"
	"github.com/whetstoneresearch/doppler-sub010/internal/fixedpoint"
	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
)

// Tracker owns time-weighted incentive accrual: per-level accumulators that
// advance only while the level is in range, per-bid reward-debt snapshots,
// and the finalized denominator that makes every claim O(1).
//
// Credit units throughout are accumulator-units × liquidity (wide ints);
// only their ratio against the denominator ever matters.
type Tracker struct {
	store *levels.Store
	end   int64 // auction end, unix seconds; accumulators never advance past it

	harvestedTotal *big.Int

	finalized   bool
	denominator *big.Int
}

// NewTracker creates a tracker over the given level store. end is the
// auction end time; accrual is capped there.
func NewTracker(store *levels.Store, end int64) *Tracker {
	return &Tracker{
		store:          store,
		end:            end,
		harvestedTotal: new(big.Int),
	}
}

// clamp caps a timestamp at the auction end.
func (t *Tracker) clamp(now int64) int64 {
	if now > t.end {
		return t.end
	}
	return now
}

// Advance brings the level's accumulator up to now (capped at auction end),
// attributing elapsed time to the level's current in-range state. It must
// run before any flag flip or liquidity change so time is never credited to
// the wrong state.
func (t *Tracker) Advance(lvl *levels.Level, now int64) {
	capped := t.clamp(now)
	if capped <= lvl.LastUpdate {
		return
	}
	if lvl.InRange {
		lvl.Accumulator += fixedpoint.SecondsToAccrual(capped - lvl.LastUpdate)
	}
	lvl.LastUpdate = capped
}

// SetInRange advances the accumulator, then flips the flag. Returns true if
// the flag actually changed.
func (t *Tracker) SetInRange(lvl *levels.Level, inRange bool, now int64) bool {
	t.Advance(lvl, now)
	if lvl.InRange == inRange {
		return false
	}
	lvl.InRange = inRange
	return true
}

// OnPlace snapshots the bid's reward debt from the level accumulator and
// folds it into the level's debt sum. The accumulator must already be
// advanced to the placement time.
func (t *Tracker) OnPlace(bid *book.Bid, lvl *levels.Level) {
	bid.RewardDebt = lvl.Accumulator
	debt := fixedpoint.Mul(bid.RewardDebt, bid.Size)
	lvl.DebtSum.Add(lvl.DebtSum, debt)
	fixedpoint.PutBig(debt)
}

// LiveCredit returns the bid's earned-but-unharvested credit:
// (accumulator − rewardDebt) × size. The accumulator must be advanced first.
func (t *Tracker) LiveCredit(bid *book.Bid, lvl *levels.Level) *big.Int {
	credit := new(big.Int).Mul(
		big.NewInt(lvl.Accumulator-bid.RewardDebt),
		big.NewInt(bid.Size),
	)
	return credit
}

// Harvest banks the bid's live credit into the permanent harvested total and
// removes the bid's contribution from the level's debt sum. Returns the
// harvested credit. The caller zeroes the bid via the ledger.
func (t *Tracker) Harvest(bid *book.Bid, lvl *levels.Level, now int64) *big.Int {
	t.Advance(lvl, now)

	credit := t.LiveCredit(bid, lvl)
	t.harvestedTotal.Add(t.harvestedTotal, credit)

	debt := fixedpoint.Mul(bid.RewardDebt, bid.Size)
	lvl.DebtSum.Sub(lvl.DebtSum, debt)
	fixedpoint.PutBig(debt)

	return credit
}

// HarvestedTotal returns the summed credit of all harvested bids.
func (t *Tracker) HarvestedTotal() *big.Int {
	return new(big.Int).Set(t.harvestedTotal)
}

// FinalizeAll advances every active level to the auction end and caches the
// total earned credit as the single denominator for all later claims:
//
//	Σ over levels (accumulator×liquidity − ΣrewardDebt×size) + harvested
//
// Idempotent: a second call returns the cached value.
func (t *Tracker) FinalizeAll() *big.Int {
	if t.finalized {
		return new(big.Int).Set(t.denominator)
	}

	denom := new(big.Int).Set(t.harvestedTotal)
	t.store.Ascend(func(lvl *levels.Level) bool {
		t.Advance(lvl, t.end)

		earned := fixedpoint.Mul(lvl.Accumulator, lvl.Liquidity)
		denom.Add(denom, earned)
		denom.Sub(denom, lvl.DebtSum)
		fixedpoint.PutBig(earned)
		return true
	})

	t.finalized = true
	t.denominator = denom
	return new(big.Int).Set(denom)
}

// Finalized reports whether FinalizeAll has run.
func (t *Tracker) Finalized() bool {
	return t.finalized
}

// Denominator returns the finalized denominator. Panics if not finalized:
// claims before settlement are a phase-machine bug, not a data question.
func (t *Tracker) Denominator() *big.Int {
	if !t.finalized {
		panic("accrual: denominator read before finalize")
	}
	return new(big.Int).Set(t.denominator)
}

// Credit returns the bid's total incentive credit for claims: the harvested
// amount for withdrawn bids, live credit otherwise. Only meaningful after
// FinalizeAll has pinned every accumulator at the auction end.
func (t *Tracker) Credit(bid *book.Bid) *big.Int {
	if !bid.Live() {
		return new(big.Int).Set(bid.Harvested)
	}
	lvl := t.store.Get(bid.Key.Tick)
	if lvl == nil {
		return new(big.Int)
	}
	return t.LiveCredit(bid, lvl)
}
