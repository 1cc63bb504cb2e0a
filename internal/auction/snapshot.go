package auction

import (
	"github.com/google/uuid"

	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
)

// Snapshot is a read-only view of the aggregate for the query surface.
type Snapshot struct {
	AuctionID     string      `json:"auction_id"`
	Phase         string      `json:"phase"`
	Orientation   string      `json:"orientation"`
	StartTime     int64       `json:"start_time"`
	EndTime       int64       `json:"end_time"`
	ClaimDeadline int64       `json:"claim_deadline"`
	SaleAmount    int64       `json:"sale_amount"`
	Reserve       int64       `json:"reserve"`
	ClaimedTotal  int64       `json:"claimed_total"`
	EstimateTick  int32       `json:"estimate_tick"`
	LiveBids      int         `json:"live_bids"`
	BookLiquidity int64       `json:"book_liquidity"`
	ActiveLevels  int         `json:"active_levels"`
	Migrated      bool        `json:"migrated"`
	Result        *ResultView `json:"result,omitempty"`
}

// ResultView mirrors SettlementResult for JSON consumers.
type ResultView struct {
	ClearingTick int32 `json:"clearing_tick"`
	Price        int64 `json:"price"`
	Sold         int64 `json:"sold"`
	Proceeds     int64 `json:"proceeds"`
	Executed     bool  `json:"executed"`
}

// LevelView is a read-only view of one active price level.
type LevelView struct {
	Tick        int32 `json:"tick"`
	Liquidity   int64 `json:"liquidity"`
	InRange     bool  `json:"in_range"`
	Accumulator int64 `json:"accumulator"`
}

// BidView is a read-only view of one bid, live or harvested.
type BidView struct {
	BidID   uuid.UUID `json:"bid_id"`
	Owner   string    `json:"owner"`
	Tick    int32     `json:"tick"`
	Salt    uint64    `json:"salt"`
	Size    int64     `json:"size"`
	Live    bool      `json:"live"`
	Claimed bool      `json:"claimed"`
	Credit  string    `json:"credit"` // wide int, decimal string
}

// Snapshot captures the aggregate state in one atomic read.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		AuctionID:     e.cfg.AuctionID,
		Phase:         e.phase.String(),
		Orientation:   e.cfg.Orientation.String(),
		StartTime:     e.startTime,
		EndTime:       e.endTime,
		ClaimDeadline: e.claimDeadline,
		SaleAmount:    e.saleAmount,
		Reserve:       e.reserve,
		ClaimedTotal:  e.claimedTotal,
		EstimateTick:  int32(e.estimate),
		LiveBids:      e.ledger.LiveCount(),
		BookLiquidity: e.ledger.TotalSize(),
		ActiveLevels:  e.store.Len(),
		Migrated:      e.migrated,
	}
	if e.result != nil {
		s.Result = &ResultView{
			ClearingTick: int32(e.result.ClearingTick),
			Price:        e.result.Price,
			Sold:         e.result.Sold,
			Proceeds:     e.result.Proceeds,
			Executed:     e.result.Executed,
		}
	}
	return s
}

// Levels returns every active level in ascending tick order.
func (e *Engine) Levels() []LevelView {
	e.mu.Lock()
	defer e.mu.Unlock()

	views := make([]LevelView, 0, e.store.Len())
	e.store.Ascend(func(lvl *levels.Level) bool {
		views = append(views, LevelView{
			Tick:        int32(lvl.Tick),
			Liquidity:   lvl.Liquidity,
			InRange:     lvl.InRange,
			Accumulator: lvl.Accumulator,
		})
		return true
	})
	return views
}

// Bid returns a view of one bid by ID. Credit is only populated once
// settlement has finalized the accumulators.
func (e *Engine) Bid(id uuid.UUID) (BidView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bid, ok := e.ledger.Get(id)
	if !ok {
		return BidView{}, ErrNotFound
	}

	v := BidView{
		BidID:   bid.ID,
		Owner:   bid.Key.Owner,
		Tick:    int32(bid.Key.Tick),
		Salt:    bid.Key.Salt,
		Size:    bid.Size,
		Live:    bid.Live(),
		Claimed: bid.Claimed,
	}
	if e.tracker != nil && e.tracker.Finalized() {
		v.Credit = e.tracker.Credit(bid).String()
	}
	return v, nil
}

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Result returns a copy of the settlement result, or nil before settlement.
func (e *Engine) Result() *SettlementResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return nil
	}
	res := *e.result
	return &res
}
