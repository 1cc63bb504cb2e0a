package market

import (
	"context"
)

// Market is the external venue the auction clears against.
//
// Quote simulates selling sellAmount into current liquidity and returns the
// resulting price without side effects. Execute performs the one real trade,
// mutating the venue's reserves. Prices are in fixedpoint.PriceConfig units
// (numeraire per asset).
type Market interface {
	Quote(ctx context.Context, sellAmount int64) (price int64, err error)
	Execute(ctx context.Context, sellAmount int64) (filled, proceeds, price int64, err error)
}
