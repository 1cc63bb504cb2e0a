package market

import (
	"context"

	"github.com/whetstoneresearch/doppler-sub010/internal/fixedpoint"
	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
)

// Orientation selects which end of the book absorbs the sale first.
type Orientation int32

const (
	// SellAsset walks highest tick first: the auction sells asset and the
	// best bid is the highest price.
	SellAsset Orientation = iota
	// SellNumeraire mirrors the walk, lowest tick first.
	SellNumeraire
)

// BookVenue is a venue backed directly by the auction's level store:
// selling walks active levels best-price-first per the orientation, each
// level absorbing asset up to its liquidity, paying take×price in
// numeraire. It serves local runs and tests; a production deployment
// points Market at a real venue instead.
//
// Execute mutates only the venue's own reserve counters, never the book;
// bid bookkeeping stays with the ledger.
type BookVenue struct {
	store      *levels.Store
	floorPrice int64
	orient     Orientation

	// External reserve state.
	totalSold   int64 // asset sold into the venue
	totalRaised int64 // numeraire paid out for it
}

// NewBookVenue creates a venue over the given level store. floorPrice is
// returned when liquidity cannot absorb the sale (or none exists). orient
// must match the auction's orientation or the walk order contradicts the
// engine's in-range bookkeeping.
func NewBookVenue(store *levels.Store, floorPrice int64, orient Orientation) *BookVenue {
	return &BookVenue{store: store, floorPrice: floorPrice, orient: orient}
}

// Quote walks the book without side effects and returns the price at which
// sellAmount is fully absorbed, or the floor price if liquidity runs out.
func (v *BookVenue) Quote(_ context.Context, sellAmount int64) (int64, error) {
	_, _, price := v.walk(sellAmount)
	return price, nil
}

// Execute performs the trade and records it against the venue's reserves.
func (v *BookVenue) Execute(_ context.Context, sellAmount int64) (int64, int64, int64, error) {
	filled, proceeds, price := v.walk(sellAmount)
	v.totalSold += filled
	v.totalRaised += proceeds
	return filled, proceeds, price, nil
}

// walk consumes sellAmount against active levels best-price-first:
// highest tick first when selling asset, lowest first when mirrored.
// Returns filled asset, numeraire proceeds (rounded down per level), and
// the price of the last level touched, or the floor when the sale is not
// fully absorbed.
func (v *BookVenue) walk(sellAmount int64) (filled, proceeds, price int64) {
	remaining := sellAmount
	price = v.floorPrice

	visit := v.store.Descend
	if v.orient == SellNumeraire {
		visit = v.store.Ascend
	}
	visit(func(lvl *levels.Level) bool {
		if remaining <= 0 {
			return false
		}
		if lvl.Liquidity <= 0 {
			return true
		}

		take := lvl.Liquidity
		if take > remaining {
			take = remaining
		}

		paid := fixedpoint.Mul(take, int64(lvl.Tick))
		proceeds += fixedpoint.Div(paid, fixedpoint.PriceConfig.Scale, fixedpoint.RoundDown)
		fixedpoint.PutBig(paid)

		filled += take
		remaining -= take

		if remaining <= 0 {
			price = int64(lvl.Tick)
			return false
		}
		return true
	})

	// Partial absorption clears at the floor.
	if remaining > 0 {
		price = v.floorPrice
	}
	return filled, proceeds, price
}

// TotalSold returns the asset sold through this venue so far.
func (v *BookVenue) TotalSold() int64 { return v.totalSold }

// TotalRaised returns the numeraire raised through this venue so far.
func (v *BookVenue) TotalRaised() int64 { return v.totalRaised }
