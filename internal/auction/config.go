package auction

import (
	"github.com/whetstoneresearch/doppler-sub010/internal/fixedpoint"
	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
)

// Orientation fixes which way prices improve. SellingAsset is the standard
// deployment: the auction sells the asset for numeraire, bids sit at or
// above the floor, and a level is in range when the clearing estimate sits
// at or below it. SellingNumeraire mirrors every comparison.
type Orientation int32

const (
	SellingAsset Orientation = iota
	SellingNumeraire
)

func (o Orientation) String() string {
	if o == SellingNumeraire {
		return "selling_numeraire"
	}
	return "selling_asset"
}

// Config is the auction's immutable construction-time configuration.
type Config struct {
	AuctionID string

	// Duration of the bidding phase in seconds.
	Duration int64
	// FloorPrice in fixedpoint.PriceConfig units, aligned to Granularity.
	FloorPrice int64
	// Granularity is the tick spacing; bids and the clearing price are
	// discretized to it.
	Granularity int32
	// MinBidSize is the minimum liquidity per bid, in numeraire units.
	MinBidSize int64
	// Allocation is the total asset deposited for sale, incentive reserve
	// included.
	Allocation int64
	// IncentiveShareBps of the allocation is reserved for time-weighted
	// incentives (basis points).
	IncentiveShareBps int64
	// ClaimWindow is the number of seconds after auction end during which
	// incentive claims are honored.
	ClaimWindow int64

	Orientation Orientation

	// Owner may start the auction, recover a dead reserve, and sweep the
	// unclaimed remainder. Migrator may pull final balances downstream.
	Owner    string
	Migrator string
}

// Validate rejects bad construction parameters with a ConfigurationError.
func (c Config) Validate() error {
	if c.AuctionID == "" {
		return NewConfigError("auction id required")
	}
	if c.Duration <= 0 {
		return NewConfigError("duration must be positive, got %d", c.Duration)
	}
	if c.Granularity <= 0 {
		return NewConfigError("granularity must be positive, got %d", c.Granularity)
	}
	if c.FloorPrice <= 0 {
		return NewConfigError("floor price must be positive, got %d", c.FloorPrice)
	}
	if !levels.Tick(c.FloorPrice).AlignedTo(c.Granularity) {
		return NewConfigError("floor price %d not aligned to granularity %d", c.FloorPrice, c.Granularity)
	}
	if c.MinBidSize <= 0 {
		return NewConfigError("minimum bid size must be positive, got %d", c.MinBidSize)
	}
	if c.Allocation <= 0 {
		return NewConfigError("allocation must be positive, got %d", c.Allocation)
	}
	if c.IncentiveShareBps < 0 || c.IncentiveShareBps >= fixedpoint.BpsDenominator {
		return NewConfigError("incentive share %d bps out of [0, %d)", c.IncentiveShareBps, fixedpoint.BpsDenominator)
	}
	if c.ClaimWindow <= 0 {
		return NewConfigError("claim window must be positive, got %d", c.ClaimWindow)
	}
	if c.Owner == "" || c.Migrator == "" {
		return NewConfigError("owner and migrator identities required")
	}
	return nil
}

// FloorTick is the floor price as a tick.
func (c Config) FloorTick() levels.Tick {
	return levels.Tick(c.FloorPrice)
}

// ViolatesFloor reports whether a price breaches the floor,
// orientation-aware.
func (c Config) ViolatesFloor(price int64) bool {
	if c.Orientation == SellingNumeraire {
		return price > c.FloorPrice
	}
	return price < c.FloorPrice
}

// BelowFloor reports whether a bid tick is on the wrong side of the floor.
func (c Config) BelowFloor(tick levels.Tick) bool {
	return c.ViolatesFloor(int64(tick))
}

// InRange reports whether a level at tick would be consumed by a clearing
// price at the given estimate.
func (c Config) InRange(tick, estimate levels.Tick) bool {
	if c.Orientation == SellingNumeraire {
		return tick <= estimate
	}
	return tick >= estimate
}
