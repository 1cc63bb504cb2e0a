package accrual_test

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"github.com/whetstoneresearch/doppler-sub010/internal/accrual"
	"github.com/whetstoneresearch/doppler-sub010/internal/book"
	"github.com/whetstoneresearch/doppler-sub010/internal/fixedpoint"
	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
)

const auctionEnd = 1000

func placeBid(tr *accrual.Tracker, s *levels.Store, tick levels.Tick, size, now int64, inRange bool) (*book.Bid, *levels.Level) {
	lvl := s.Ensure(tick, now, inRange)
	tr.Advance(lvl, now)
	bid := &book.Bid{
		ID:        uuid.New(),
		Key:       book.Key{Owner: "o", Tick: tick, Salt: uint64(now)},
		Size:      size,
		CreatedAt: now,
	}
	tr.OnPlace(bid, lvl)
	lvl.Liquidity += size
	return bid, lvl
}

func TestAdvance_OnlyWhileInRange(t *testing.T) {
	s := levels.NewStore()
	tr := accrual.NewTracker(s, auctionEnd)

	lvl := s.Ensure(150, 0, false)
	tr.Advance(lvl, 100)
	if lvl.Accumulator != 0 {
		t.Errorf("out-of-range level accrued: got %d, want 0", lvl.Accumulator)
	}

	tr.SetInRange(lvl, true, 100)
	tr.Advance(lvl, 300)
	want := fixedpoint.SecondsToAccrual(200)
	if lvl.Accumulator != want {
		t.Errorf("got %d, want %d", lvl.Accumulator, want)
	}
}

func TestAdvance_CappedAtAuctionEnd(t *testing.T) {
	s := levels.NewStore()
	tr := accrual.NewTracker(s, auctionEnd)

	lvl := s.Ensure(150, 0, true)
	tr.Advance(lvl, auctionEnd+500)

	want := fixedpoint.SecondsToAccrual(auctionEnd)
	if lvl.Accumulator != want {
		t.Errorf("accumulator past end: got %d, want %d", lvl.Accumulator, want)
	}
}

func TestSetInRange_AttributesElapsedTimeBeforeFlip(t *testing.T) {
	s := levels.NewStore()
	tr := accrual.NewTracker(s, auctionEnd)

	lvl := s.Ensure(150, 0, true)
	// 400s in range, then the flip out happens at t=400.
	changed := tr.SetInRange(lvl, false, 400)
	if !changed {
		t.Fatal("expected flag change")
	}
	// Another 400s out of range must not accrue.
	tr.Advance(lvl, 800)

	want := fixedpoint.SecondsToAccrual(400)
	if lvl.Accumulator != want {
		t.Errorf("got %d, want %d", lvl.Accumulator, want)
	}
}

func TestOnPlace_NewEntrantEarnsNoPastTime(t *testing.T) {
	s := levels.NewStore()
	tr := accrual.NewTracker(s, auctionEnd)

	// First bid at t=0, level in range from the start.
	first, lvl := placeBid(tr, s, 150, 500, 0, true)

	// Second bid arrives at t=600 on the same level.
	second, _ := placeBid(tr, s, 150, 500, 600, true)

	tr.Advance(lvl, auctionEnd)

	firstCredit := tr.LiveCredit(first, lvl)
	secondCredit := tr.LiveCredit(second, lvl)

	wantFirst := new(big.Int).Mul(big.NewInt(fixedpoint.SecondsToAccrual(1000)), big.NewInt(500))
	wantSecond := new(big.Int).Mul(big.NewInt(fixedpoint.SecondsToAccrual(400)), big.NewInt(500))

	if firstCredit.Cmp(wantFirst) != 0 {
		t.Errorf("first credit: got %s, want %s", firstCredit, wantFirst)
	}
	if secondCredit.Cmp(wantSecond) != 0 {
		t.Errorf("second credit: got %s, want %s", secondCredit, wantSecond)
	}
}

func TestHarvest_NeverInRangeYieldsZero(t *testing.T) {
	s := levels.NewStore()
	tr := accrual.NewTracker(s, auctionEnd)

	bid, lvl := placeBid(tr, s, 150, 500, 0, false)
	credit := tr.Harvest(bid, lvl, 900)

	if credit.Sign() != 0 {
		t.Errorf("never-in-range harvest: got %s, want 0", credit)
	}
}

func TestFinalizeAll_DenominatorAndIdempotence(t *testing.T) {
	s := levels.NewStore()
	tr := accrual.NewTracker(s, auctionEnd)

	// A: 500 at 150 from t=0; B: 500 at 160 from t=500. Both in range.
	placeBid(tr, s, 150, 500, 0, true)
	placeBid(tr, s, 160, 500, 500, true)

	denom := tr.FinalizeAll()

	// A earns 1000s×500, B earns 500s×500.
	want := new(big.Int).Mul(big.NewInt(fixedpoint.SecondsToAccrual(1000)), big.NewInt(500))
	wantB := new(big.Int).Mul(big.NewInt(fixedpoint.SecondsToAccrual(500)), big.NewInt(500))
	want.Add(want, wantB)

	if denom.Cmp(want) != 0 {
		t.Errorf("denominator: got %s, want %s", denom, want)
	}

	again := tr.FinalizeAll()
	if again.Cmp(denom) != 0 {
		t.Errorf("second finalize differs: %s vs %s", again, denom)
	}
}

func TestFinalizeAll_IncludesHarvested(t *testing.T) {
	s := levels.NewStore()
	tr := accrual.NewTracker(s, auctionEnd)

	bid, lvl := placeBid(tr, s, 150, 500, 0, true)
	harvested := tr.Harvest(bid, lvl, 600)
	lvl.Liquidity -= 500
	bid.Size = 0
	bid.Harvested = harvested
	s.Remove(150)

	denom := tr.FinalizeAll()
	if denom.Cmp(harvested) != 0 {
		t.Errorf("denominator: got %s, want harvested %s", denom, harvested)
	}
}

// Conservation: harvested + live credit always equals the credit obtained by
// replaying accrual from the bid's creation time, across random in-range
// flip schedules and harvest points.
func TestProperty_CreditConservationUnderReplay(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := levels.NewStore()
		tr := accrual.NewTracker(s, auctionEnd)

		createdAt := rapid.Int64Range(0, 500).Draw(t, "createdAt")
		size := rapid.Int64Range(1, 1_000_000).Draw(t, "size")
		startInRange := rapid.Bool().Draw(t, "startInRange")

		bid, lvl := placeBid(tr, s, 150, size, createdAt, startInRange)

		// Random monotone flip schedule after creation.
		n := rapid.IntRange(0, 6).Draw(t, "flips")
		now := createdAt
		inRange := startInRange
		var inRangeSeconds int64
		lastFlip := createdAt
		for i := 0; i < n; i++ {
			now += rapid.Int64Range(1, 300).Draw(t, "step")
			flipAt := now
			if flipAt > auctionEnd {
				flipAt = auctionEnd
			}
			if inRange {
				inRangeSeconds += flipAt - lastFlip
			}
			lastFlip = flipAt
			inRange = !inRange
			tr.SetInRange(lvl, inRange, now)
		}

		// Harvest at a final time.
		harvestAt := now + rapid.Int64Range(0, 300).Draw(t, "tail")
		capped := harvestAt
		if capped > auctionEnd {
			capped = auctionEnd
		}
		if inRange && capped > lastFlip {
			inRangeSeconds += capped - lastFlip
		}

		credit := tr.Harvest(bid, lvl, harvestAt)

		expected := new(big.Int).Mul(
			big.NewInt(fixedpoint.SecondsToAccrual(inRangeSeconds)),
			big.NewInt(size),
		)
		if credit.Cmp(expected) != 0 {
			t.Fatalf("credit %s != replayed %s (inRangeSeconds=%d size=%d)", credit, expected, inRangeSeconds, size)
		}
	})
}
