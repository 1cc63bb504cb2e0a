package levels

import (
	"github.com/google/btree"
)

// Store is the sparse set of active price levels: a B-tree over ticks for
// bounded nearest-neighbor scans plus a map for O(1) state lookup. A tick is
// active while its level holds non-zero liquidity; Remove is only legal once
// liquidity has returned to zero.
type Store struct {
	index  *btree.BTreeG[Tick]
	levels map[Tick]*Level
}

func tickLess(a, b Tick) bool { return a < b }

// NewStore creates an empty level store.
func NewStore() *Store {
	const degree = 32
	return &Store{
		index:  btree.NewG[Tick](degree, tickLess),
		levels: make(map[Tick]*Level),
	}
}

// Get returns the level at tick, or nil if the tick is not active.
func (s *Store) Get(tick Tick) *Level {
	return s.levels[tick]
}

// Ensure returns the level at tick, creating and indexing it if absent.
// Idempotent: an already-active tick keeps its existing state.
func (s *Store) Ensure(tick Tick, now int64, inRange bool) *Level {
	if lvl, ok := s.levels[tick]; ok {
		return lvl
	}
	lvl := NewLevel(tick, now, inRange)
	s.levels[tick] = lvl
	s.index.ReplaceOrInsert(tick)
	return lvl
}

// Remove drops the tick from the active set. It panics if the level still
// holds liquidity: a level may only leave the index once empty.
func (s *Store) Remove(tick Tick) {
	lvl, ok := s.levels[tick]
	if !ok {
		return
	}
	if lvl.Liquidity != 0 {
		panic("levels: removing tick with live liquidity")
	}
	delete(s.levels, tick)
	s.index.Delete(tick)
}

// Len returns the number of active levels.
func (s *Store) Len() int {
	return s.index.Len()
}

// NextActive returns the nearest active tick at or beyond from in the given
// direction, stopping at bound (inclusive). The scan touches only active
// ticks, never the full price space.
func (s *Store) NextActive(from Tick, dir Direction, bound Tick) (Tick, bool) {
	var found Tick
	ok := false

	if dir == Up {
		s.index.AscendGreaterOrEqual(from, func(t Tick) bool {
			if t > bound {
				return false
			}
			found, ok = t, true
			return false
		})
	} else {
		s.index.DescendLessOrEqual(from, func(t Tick) bool {
			if t < bound {
				return false
			}
			found, ok = t, true
			return false
		})
	}

	return found, ok
}

// Ascend visits every active level in ascending tick order.
func (s *Store) Ascend(fn func(*Level) bool) {
	s.index.Ascend(func(t Tick) bool {
		return fn(s.levels[t])
	})
}

// Descend visits every active level in descending tick order. Used by the
// book-backed venue to consume liquidity best-price-first.
func (s *Store) Descend(fn func(*Level) bool) {
	s.index.Descend(func(t Tick) bool {
		return fn(s.levels[t])
	})
}

// TotalLiquidity sums liquidity across all active levels. O(n); meant for
// invariant checks and snapshots, not hot paths.
func (s *Store) TotalLiquidity() int64 {
	var total int64
	for _, lvl := range s.levels {
		total += lvl.Liquidity
	}
	return total
}
