package book

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
)

// Key identifies a live bid slot. One owner may hold several bids at the
// same tick by varying the salt.
type Key struct {
	Owner string
	Tick  levels.Tick
	Salt  uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Owner, k.Tick, k.Salt)
}

// Bid is a liquidity commitment exactly one price level wide.
//
// RewardDebt is the level accumulator at creation time; it excludes accrual
// that happened before the bid existed. After withdrawal the slot is freed
// but the record stays addressable by ID with Harvested set, so incentive
// claims survive the withdrawal.
type Bid struct {
	ID         uuid.UUID
	Key        Key
	Size       int64
	RewardDebt int64
	CreatedAt  int64
	Harvested  *big.Int // earned credit banked at withdrawal; nil while live
	Claimed    bool
}

// Live reports whether the bid still holds liquidity on its level.
func (b *Bid) Live() bool {
	return b.Harvested == nil
}
