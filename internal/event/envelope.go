package event

// Type discriminator for event payloads.
type Type int32

const (
	TypeUnknown Type = iota
	TypeAuctionStarted
	TypeBidPlaced
	TypeBidWithdrawn
	TypeEstimateUpdated
	TypeLevelEnteredRange
	TypeLevelExitedRange
	TypeSettled
	TypeClaimed
	TypeMigrated
	TypeRecovered
	TypeSwept
)

// Envelope wraps every event the engine emits. Sequence is the engine's
// monotonic counter; Timestamp is the versioned input time of the step that
// produced the event, never a wall-clock read.
type Envelope struct {
	Sequence  int64  `json:"sequence"`
	Type      Type   `json:"type"`
	AuctionID string `json:"auction_id"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// Sink receives every envelope the engine emits, in order. The durable
// path may apply backpressure (a full persist queue stalls bidding rather
// than losing an event); best-effort paths must drop instead of blocking.
type Sink interface {
	Emit(Envelope)
}

// Discard is a Sink that drops everything. Used by tests and as a default.
type Discard struct{}

func (Discard) Emit(Envelope) {}

func (t Type) String() string {
	switch t {
	case TypeAuctionStarted:
		return "auction_started"
	case TypeBidPlaced:
		return "bid_placed"
	case TypeBidWithdrawn:
		return "bid_withdrawn"
	case TypeEstimateUpdated:
		return "estimate_updated"
	case TypeLevelEnteredRange:
		return "level_entered_range"
	case TypeLevelExitedRange:
		return "level_exited_range"
	case TypeSettled:
		return "settled"
	case TypeClaimed:
		return "claimed"
	case TypeMigrated:
		return "migrated"
	case TypeRecovered:
		return "recovered"
	case TypeSwept:
		return "swept"
	default:
		return "unknown"
	}
}
