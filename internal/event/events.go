package event

import (
	"github.com/google/uuid"
)

// Payload structs for each transition. Fields are JSON-tagged because the
// outbound publisher and the event-log writer both serialize envelopes as
// JSON.

type AuctionStarted struct {
	Allocation      int64 `json:"allocation"`
	SaleAmount      int64 `json:"sale_amount"`
	Reserve         int64 `json:"reserve"`
	StartTime       int64 `json:"start_time"`
	EndTime         int64 `json:"end_time"`
	ClaimDeadline   int64 `json:"claim_deadline"`
	FloorPrice      int64 `json:"floor_price"`
	Granularity     int32 `json:"granularity"`
	InitialEstimate int32 `json:"initial_estimate"`
}

type BidPlaced struct {
	BidID uuid.UUID `json:"bid_id"`
	Owner string    `json:"owner"`
	Tick  int32     `json:"tick"`
	Size  int64     `json:"size"`
	Salt  uint64    `json:"salt"`
}

type BidWithdrawn struct {
	BidID     uuid.UUID `json:"bid_id"`
	Owner     string    `json:"owner"`
	Tick      int32     `json:"tick"`
	Size      int64     `json:"size"`
	Harvested string    `json:"harvested_credit"` // wide int, decimal string
}

type EstimateUpdated struct {
	OldTick int32 `json:"old_tick"`
	NewTick int32 `json:"new_tick"`
}

type LevelRangeChange struct {
	Tick      int32 `json:"tick"`
	Liquidity int64 `json:"liquidity"`
}

type Settled struct {
	ClearingTick int32 `json:"clearing_tick"`
	Price        int64 `json:"price"`
	Sold         int64 `json:"sold"`
	Proceeds     int64 `json:"proceeds"`
	Executed     bool  `json:"executed"` // false when the floor fallback applied
}

type Claimed struct {
	BidID  uuid.UUID `json:"bid_id"`
	Owner  string    `json:"owner"`
	Payout int64     `json:"payout"`
}

type Migrated struct {
	Recipient       string `json:"recipient"`
	AssetMoved      int64  `json:"asset_moved"`
	NumeraireMoved  int64  `json:"numeraire_moved"`
	ReserveRetained int64  `json:"reserve_retained"`
}

type Recovered struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

type Swept struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}
