package auction

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
)

// TestProperty_BookConservationAndClaimBound drives the engine through a
// random place/withdraw sequence and checks, after every step, that the
// book's total liquidity equals the sum of live bid sizes. It then settles
// and claims every bid in a shuffled order: the payouts must never sum past
// the incentive reserve.
func TestProperty_BookConservationAndClaimBound(t *testing.T) {
	type slot struct {
		owner string
		tick  levels.Tick
		salt  uint64
	}

	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t, func(c *Config) { c.Allocation = 10000 })
		f.start(t, 0)
		ctx := context.Background()

		model := make(map[slot]int64)
		var bidIDs []uuid.UUID
		now := int64(0)

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			now += rapid.Int64Range(0, 20).Draw(rt, "dt")
			if now >= 999 {
				now = 999
			}

			doWithdraw := len(model) > 0 && rapid.Bool().Draw(rt, "withdraw")
			if doWithdraw {
				keys := make([]slot, 0, len(model))
				for k := range model {
					keys = append(keys, k)
				}
				sort.Slice(keys, func(a, b int) bool {
					if keys[a].owner != keys[b].owner {
						return keys[a].owner < keys[b].owner
					}
					if keys[a].tick != keys[b].tick {
						return keys[a].tick < keys[b].tick
					}
					return keys[a].salt < keys[b].salt
				})
				k := rapid.SampledFrom(keys).Draw(rt, "victim")

				locked := int32(k.tick) >= f.eng.Snapshot().EstimateTick
				err := f.eng.Withdraw(ctx, k.owner, k.tick, k.salt, model[k], now)
				if locked {
					if !errors.Is(err, ErrLocked) {
						rt.Fatalf("in-range withdraw of %v: got %v, want ErrLocked", k, err)
					}
				} else {
					if err != nil {
						rt.Fatalf("withdraw of %v: %v", k, err)
					}
					delete(model, k)
				}
			} else {
				k := slot{
					owner: rapid.SampledFrom([]string{"ann", "ben", "cid"}).Draw(rt, "owner"),
					tick:  levels.Tick(100 + 10*rapid.IntRange(0, 9).Draw(rt, "tick")),
					salt:  uint64(rapid.IntRange(0, 3).Draw(rt, "salt")),
				}
				size := rapid.Int64Range(10, 500).Draw(rt, "size")

				id, err := f.eng.Place(ctx, k.owner, k.tick, k.tick+10, size, k.salt, now)
				if _, taken := model[k]; taken {
					if !errors.Is(err, ErrDuplicateBid) {
						rt.Fatalf("occupied slot %v: got %v, want ErrDuplicateBid", k, err)
					}
				} else {
					if err != nil {
						rt.Fatalf("place %v: %v", k, err)
					}
					model[k] = size
					bidIDs = append(bidIDs, id)
				}
			}

			var wantLiquidity int64
			for _, size := range model {
				wantLiquidity += size
			}
			snap := f.eng.Snapshot()
			if snap.BookLiquidity != wantLiquidity {
				rt.Fatalf("book liquidity %d, model %d", snap.BookLiquidity, wantLiquidity)
			}
			if snap.LiveBids != len(model) {
				rt.Fatalf("live bids %d, model %d", snap.LiveBids, len(model))
			}
		}

		if _, err := f.eng.Settle(ctx, 1000); err != nil {
			t.Fatalf("Settle: %v", err)
		}

		// Shuffle the claim order; the bound must hold regardless.
		for i := len(bidIDs) - 1; i > 0; i-- {
			j := rapid.IntRange(0, i).Draw(rt, "shuffle")
			bidIDs[i], bidIDs[j] = bidIDs[j], bidIDs[i]
		}

		reserve := f.eng.Snapshot().Reserve
		var paid int64
		for _, id := range bidIDs {
			payout, err := f.eng.Claim(id, 1100)
			if err != nil {
				rt.Fatalf("claim %s: %v", id, err)
			}
			if payout < 0 {
				rt.Fatalf("negative payout %d", payout)
			}
			paid += payout
			if paid > reserve {
				rt.Fatalf("claims paid %d exceed reserve %d", paid, reserve)
			}
		}
	})
}
