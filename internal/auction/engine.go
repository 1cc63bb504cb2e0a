package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/whetstoneresearch/doppler-sub010/internal/accrual"
	"github.com/whetstoneresearch/doppler-sub010/internal/book"
	"github.com/whetstoneresearch/doppler-sub010/internal/custody"
	"github.com/whetstoneresearch/doppler-sub010/internal/event"
	"github.com/whetstoneresearch/doppler-sub010/internal/fixedpoint"
	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
	"github.com/whetstoneresearch/doppler-sub010/internal/market"
	"github.com/whetstoneresearch/doppler-sub010/internal/observability"
)

// Custody holder identities used by the engine.
const (
	HolderAuction = "auction"
	HolderVenue   = "venue"
)

// SettlementResult is written exactly once, at settlement.
type SettlementResult struct {
	ClearingTick levels.Tick
	Price        int64
	Sold         int64
	Proceeds     int64
	Executed     bool // false when the floor fallback applied
}

// Engine is the batch-auction aggregate. It owns the bid ledger, the level
// store, range accrual, the clearing estimate, and the phase machine.
//
// The engine is logically single-threaded: every external call executes as
// one atomic step under the mutex, and the engine never reads the wall
// clock: every operation takes its timestamp as an input. The only
// suspension point is the Market.Execute call during settlement, which runs
// outside the mutex behind the settling guard.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	log     zerolog.Logger
	metrics *observability.Metrics
	sink    event.Sink

	vault *custody.Vault
	mkt   market.Market

	store   *levels.Store
	ledger  *book.Ledger
	tracker *accrual.Tracker

	phase         Phase
	startTime     int64
	endTime       int64
	claimDeadline int64

	saleAmount int64 // allocation minus incentive reserve
	reserve    int64

	estimate levels.Tick

	settling bool
	result   *SettlementResult

	claimedTotal int64
	migrated     bool

	seq int64
}

// NewEngine validates the configuration and builds an engine in the
// NotStarted phase. The level store is injected so a book-backed venue can
// share it. The sale allocation must be on deposit with the vault under
// HolderAuction before Start.
func NewEngine(
	cfg Config,
	store *levels.Store,
	vault *custody.Vault,
	mkt market.Market,
	sink event.Sink,
	log zerolog.Logger,
	metrics *observability.Metrics,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = event.Discard{}
	}

	return &Engine{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		sink:    sink,
		vault:   vault,
		mkt:     mkt,
		store:   store,
		ledger:  book.NewLedger(),
		phase:   PhaseNotStarted,
	}, nil
}

// Start opens bidding: NotStarted → Active. Owner only. The incentive
// reserve is carved out of the allocation, rounded down, so the sale amount
// is allocation − reserve.
func (e *Engine) Start(ctx context.Context, caller string, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Owner {
		return ErrUnauthorized
	}
	if e.phase != PhaseNotStarted {
		return ErrWrongPhase
	}
	if held := e.vault.BalanceOf(HolderAuction).Asset; held < e.cfg.Allocation {
		return NewConfigError("allocation %d not on deposit, held %d", e.cfg.Allocation, held)
	}

	e.reserve = fixedpoint.BpsShare(e.cfg.Allocation, e.cfg.IncentiveShareBps)
	e.saleAmount = e.cfg.Allocation - e.reserve

	e.startTime = now
	e.endTime = now + e.cfg.Duration
	e.claimDeadline = e.endTime + e.cfg.ClaimWindow
	e.estimate = e.cfg.FloorTick()
	e.tracker = accrual.NewTracker(e.store, e.endTime)
	e.transition(PhaseActive)

	e.log.Info().
		Int64("sale_amount", e.saleAmount).
		Int64("reserve", e.reserve).
		Int64("end_time", e.endTime).
		Msg("auction started")

	e.emit(event.TypeAuctionStarted, now, event.AuctionStarted{
		Allocation:      e.cfg.Allocation,
		SaleAmount:      e.saleAmount,
		Reserve:         e.reserve,
		StartTime:       e.startTime,
		EndTime:         e.endTime,
		ClaimDeadline:   e.claimDeadline,
		FloorPrice:      e.cfg.FloorPrice,
		Granularity:     e.cfg.Granularity,
		InitialEstimate: int32(e.estimate),
	})
	return nil
}

// Place registers a bid spanning [tickLower, tickUpper), which must be
// exactly one granularity unit wide. The bid's numeraire deposit is
// credited to the auction, reward debt is snapshotted before the level
// mutates, and the clearing estimate is recomputed.
func (e *Engine) Place(ctx context.Context, owner string, tickLower, tickUpper levels.Tick, size int64, salt uint64, now int64) (uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validatePlace(owner, tickLower, tickUpper, size, salt, now); err != nil {
		e.rejectBid(err)
		return uuid.Nil, err
	}

	key := book.Key{Owner: owner, Tick: tickLower, Salt: salt}
	lvl := e.store.Ensure(tickLower, now, e.cfg.InRange(tickLower, e.estimate))
	e.tracker.Advance(lvl, now)

	bid := &book.Bid{
		ID:        uuid.New(),
		Key:       key,
		Size:      size,
		CreatedAt: now,
	}
	// Debt snapshot happens against the advanced accumulator, before the
	// level's liquidity changes.
	e.tracker.OnPlace(bid, lvl)
	lvl.Liquidity += size
	e.ledger.Register(bid)
	e.vault.CreditNumeraire(HolderAuction, size)

	if err := e.recomputeEstimate(ctx, now); err != nil {
		e.log.Warn().Err(err).Msg("estimate recompute failed after placement")
	}

	e.postCheckInvariants()
	e.updateBookGauges()

	e.log.Debug().
		Str("owner", owner).
		Int32("tick", int32(tickLower)).
		Int64("size", size).
		Msg("bid placed")

	e.emit(event.TypeBidPlaced, now, event.BidPlaced{
		BidID: bid.ID,
		Owner: owner,
		Tick:  int32(tickLower),
		Size:  size,
		Salt:  salt,
	})
	if e.metrics != nil {
		e.metrics.BidsPlaced.Inc()
	}
	return bid.ID, nil
}

func (e *Engine) validatePlace(owner string, tickLower, tickUpper levels.Tick, size int64, salt uint64, now int64) error {
	if e.phase != PhaseActive || now >= e.endTime {
		return ErrBiddingClosed
	}
	if owner == "" {
		return ErrInvalidOwner
	}
	spacing := levels.Tick(e.cfg.Granularity)
	if !tickLower.AlignedTo(e.cfg.Granularity) || tickUpper != tickLower+spacing {
		return ErrInvalidWidth
	}
	if size < e.cfg.MinBidSize {
		return fmt.Errorf("%w: %d < %d", ErrInsufficientSize, size, e.cfg.MinBidSize)
	}
	if e.cfg.BelowFloor(tickLower) {
		return ErrPriceBelowFloor
	}
	if _, live := e.ledger.Lookup(book.Key{Owner: owner, Tick: tickLower, Salt: salt}); live {
		return ErrDuplicateBid
	}
	return nil
}

// Withdraw removes a bid in full, harvesting its earned credit into a
// permanent per-bid entry. In the Active phase a bid whose level the
// current estimate would fill is locked; during the Closed settlement
// freeze every withdrawal is rejected; once Settled, withdrawal is
// unconditional. No estimate recompute follows: only out-of-range levels
// can be withdrawn while Active, so the estimate cannot move.
func (e *Engine) Withdraw(ctx context.Context, owner string, tick levels.Tick, salt uint64, size int64, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhaseNotStarted || e.phase == PhaseClosed {
		return ErrWrongPhase
	}

	key := book.Key{Owner: owner, Tick: tick, Salt: salt}
	bid, ok := e.ledger.Lookup(key)
	if !ok {
		return ErrNotFound
	}
	if size != bid.Size {
		return fmt.Errorf("%w: requested %d, bid holds %d", ErrPartialNotAllowed, size, bid.Size)
	}
	if e.phase == PhaseActive && e.cfg.InRange(tick, e.estimate) {
		return ErrLocked
	}

	lvl := e.store.Get(tick)
	harvested := e.tracker.Harvest(bid, lvl, now)
	lvl.Liquidity -= size
	e.ledger.Release(bid, harvested)
	if lvl.Liquidity == 0 {
		e.store.Remove(tick)
	}

	if err := e.vault.TransferNumeraire(HolderAuction, owner, size); err != nil {
		// Deposits always accompany placement, so the vault cannot run dry.
		panic(fmt.Sprintf("FATAL: withdrawal refund failed: %v", err))
	}

	e.postCheckInvariants()
	e.updateBookGauges()

	e.emit(event.TypeBidWithdrawn, now, event.BidWithdrawn{
		BidID:     bid.ID,
		Owner:     owner,
		Tick:      int32(tick),
		Size:      size,
		Harvested: harvested.String(),
	})
	if e.metrics != nil {
		e.metrics.BidsWithdrawn.Inc()
	}
	return nil
}

// emit wraps a payload in an envelope with the next sequence number.
// Callers hold the mutex.
func (e *Engine) emit(t event.Type, now int64, payload any) {
	e.seq++
	e.sink.Emit(event.Envelope{
		Sequence:  e.seq,
		Type:      t,
		AuctionID: e.cfg.AuctionID,
		Timestamp: now,
		Payload:   payload,
	})
	if e.metrics != nil {
		e.metrics.EventsEmitted.WithLabelValues(t.String()).Inc()
	}
}

func (e *Engine) rejectBid(err error) {
	if e.metrics == nil {
		return
	}
	reason := "other"
	var ae *Error
	if errors.As(err, &ae) {
		reason = ae.Code
	}
	e.metrics.BidsRejected.WithLabelValues(reason).Inc()
}

// transition advances the phase machine, panicking on a step the table
// forbids. Callers hold the mutex.
func (e *Engine) transition(next Phase) {
	if !e.phase.CanTransitionTo(next) {
		panic(fmt.Sprintf("FATAL: illegal phase transition %v -> %v", e.phase, next))
	}
	e.phase = next
}

// postCheckInvariants validates aggregate invariants after a mutation.
// A violation is a programming error, not a caller error.
func (e *Engine) postCheckInvariants() {
	ledgerTotal := e.ledger.TotalSize()
	storeTotal := e.store.TotalLiquidity()
	if ledgerTotal != storeTotal {
		panic(fmt.Sprintf("FATAL: liquidity mismatch: ledger %d, levels %d", ledgerTotal, storeTotal))
	}
	if e.claimedTotal > e.reserve {
		panic(fmt.Sprintf("FATAL: claimed %d exceeds reserve %d", e.claimedTotal, e.reserve))
	}
}

func (e *Engine) updateBookGauges() {
	if e.metrics == nil {
		return
	}
	e.metrics.LiveBids.Set(float64(e.ledger.LiveCount()))
	e.metrics.BookLiquidity.Set(float64(e.ledger.TotalSize()))
	e.metrics.LevelsActive.Set(float64(e.store.Len()))

	inRange := 0
	e.store.Ascend(func(lvl *levels.Level) bool {
		if lvl.InRange {
			inRange++
		}
		return true
	})
	e.metrics.LevelsInRange.Set(float64(inRange))
}

func (e *Engine) remainingSale() int64 {
	if e.result != nil {
		return e.saleAmount - e.result.Sold
	}
	return e.saleAmount
}
