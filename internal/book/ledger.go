package book

import (
	"math/big"

	"github.com/google/uuid"
)

// Ledger stores bids by slot key and by ID. It is pure bookkeeping: the
// auction engine owns validation and decides when a slot opens or closes.
type Ledger struct {
	live      map[Key]*Bid
	byID      map[uuid.UUID]*Bid
	totalSize int64
}

// NewLedger creates an empty bid ledger.
func NewLedger() *Ledger {
	return &Ledger{
		live: make(map[Key]*Bid),
		byID: make(map[uuid.UUID]*Bid),
	}
}

// Lookup returns the live bid in the given slot, if any.
func (l *Ledger) Lookup(key Key) (*Bid, bool) {
	b, ok := l.live[key]
	return b, ok
}

// Get returns a bid by ID, live or harvested.
func (l *Ledger) Get(id uuid.UUID) (*Bid, bool) {
	b, ok := l.byID[id]
	return b, ok
}

// Register records a new live bid. The slot must be free.
func (l *Ledger) Register(b *Bid) {
	if _, exists := l.live[b.Key]; exists {
		panic("book: registering over a live slot")
	}
	l.live[b.Key] = b
	l.byID[b.ID] = b
	l.totalSize += b.Size
}

// Release frees the bid's slot, banking the harvested credit on the record.
// The bid stays addressable by ID for incentive claims.
func (l *Ledger) Release(b *Bid, harvested *big.Int) {
	delete(l.live, b.Key)
	l.totalSize -= b.Size
	b.Size = 0
	b.Harvested = harvested
}

// LiveCount returns the number of live bids.
func (l *Ledger) LiveCount() int {
	return len(l.live)
}

// TotalSize returns the summed size of all live bids. This must equal the
// level store's total liquidity at every quiescent point.
func (l *Ledger) TotalSize() int64 {
	return l.totalSize
}

// EachLive visits every live bid. Iteration order is unspecified.
func (l *Ledger) EachLive(fn func(*Bid) bool) {
	for _, b := range l.live {
		if !fn(b) {
			return
		}
	}
}
