package auction

import (
	"fmt"

	"github.com/whetstoneresearch/doppler-sub010/internal/book"
	"github.com/whetstoneresearch/doppler-sub010/internal/event"
)

// Migrate hands off final balances downstream. Callable once, by the
// configured migrator, only once Settled. Every live bid is harvested and
// destroyed (its credit stays claimable by ID) and everything the auction
// holds except the still-unclaimed incentive reserve moves to the
// recipient, so future claims remain honorable.
func (e *Engine) Migrate(caller, recipient string, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Migrator {
		return ErrUnauthorized
	}
	if e.phase != PhaseSettled {
		return ErrWrongPhase
	}
	if e.migrated {
		return ErrAlreadyMigrated
	}

	// Sweep the book: accumulators are frozen at the auction end, so the
	// harvest amounts are final.
	var live []*book.Bid
	e.ledger.EachLive(func(b *book.Bid) bool {
		live = append(live, b)
		return true
	})
	for _, bid := range live {
		lvl := e.store.Get(bid.Key.Tick)
		harvested := e.tracker.Harvest(bid, lvl, now)
		lvl.Liquidity -= bid.Size
		e.ledger.Release(bid, harvested)
		if lvl.Liquidity == 0 {
			e.store.Remove(bid.Key.Tick)
		}
	}

	unclaimed := e.reserve - e.claimedTotal
	held := e.vault.BalanceOf(HolderAuction)
	assetMove := held.Asset - unclaimed
	numeraireMove := held.Numeraire

	if assetMove < 0 {
		panic(fmt.Sprintf("FATAL: reserve %d exceeds held asset %d", unclaimed, held.Asset))
	}
	if assetMove > 0 {
		if err := e.vault.TransferAsset(HolderAuction, recipient, assetMove); err != nil {
			panic(fmt.Sprintf("FATAL: migration asset transfer failed: %v", err))
		}
	}
	if numeraireMove > 0 {
		if err := e.vault.TransferNumeraire(HolderAuction, recipient, numeraireMove); err != nil {
			panic(fmt.Sprintf("FATAL: migration numeraire transfer failed: %v", err))
		}
	}

	e.migrated = true
	e.postCheckInvariants()
	e.updateBookGauges()

	e.log.Info().
		Str("recipient", recipient).
		Int64("asset", assetMove).
		Int64("numeraire", numeraireMove).
		Int64("reserve_retained", unclaimed).
		Msg("balances migrated")

	e.emit(event.TypeMigrated, now, event.Migrated{
		Recipient:       recipient,
		AssetMoved:      assetMove,
		NumeraireMoved:  numeraireMove,
		ReserveRetained: unclaimed,
	})
	return nil
}
