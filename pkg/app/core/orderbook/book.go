package orderbook

import (
	"fmt"
	"iter"
	"sort"
)

// Book holds both sides of one symbol's order book.
//
// Buys are sorted by price descending, sells by price ascending; ties on
// either side break by ascending order ID (first come, first served).
// Every resting order has Filled < Amount - fully filled orders are removed
// immediately, never retained.
//
// Book is single-writer and deterministic: the matching engine serializes
// all mutation, so the book itself carries no lock.
type Book struct {
	symbol string
	buys   []*Order
	sells  []*Order
}

func NewBook(symbol string) *Book {
	return &Book{symbol: symbol}
}

func (b *Book) Symbol() string { return b.symbol }

func (b *Book) side(s Side) *[]*Order {
	if s == Buy {
		return &b.buys
	}
	return &b.sells
}

// Len returns the number of resting orders on side s.
func (b *Book) Len(s Side) int { return len(*b.side(s)) }

// Insert places a limit order at the position preserving the sort invariant.
// Equal-priced orders keep submission order: the newcomer goes after them.
func (b *Book) Insert(o *Order) error {
	if o.Amount <= 0 {
		return fmt.Errorf("orderbook %s: insert order %d with non-positive amount %d", b.symbol, o.ID, o.Amount)
	}
	if o.Price <= 0 {
		return fmt.Errorf("orderbook %s: insert order %d with non-positive price %d", b.symbol, o.ID, o.Price)
	}
	if o.Filled >= o.Amount {
		return fmt.Errorf("orderbook %s: insert fully filled order %d (%d/%d)", b.symbol, o.ID, o.Filled, o.Amount)
	}
	if o.Symbol != b.symbol {
		return fmt.Errorf("orderbook %s: insert order %d for symbol %s", b.symbol, o.ID, o.Symbol)
	}

	entries := b.side(o.Side)
	var at int
	if o.Side == Buy {
		at = sort.Search(len(*entries), func(i int) bool { return (*entries)[i].Price < o.Price })
	} else {
		at = sort.Search(len(*entries), func(i int) bool { return (*entries)[i].Price > o.Price })
	}

	*entries = append(*entries, nil)
	copy((*entries)[at+1:], (*entries)[at:])
	(*entries)[at] = o
	return nil
}

// Best returns the head (best-priced) order of side s.
func (b *Book) Best(s Side) (*Order, bool) {
	entries := *b.side(s)
	if len(entries) == 0 {
		return nil, false
	}
	return entries[0], true
}

// BestOpposite returns the head of the side opposite s.
func (b *Book) BestOpposite(s Side) (*Order, bool) {
	return b.Best(s.Opposite())
}

// RemoveHead discards the current head of side s, used once the head is
// fully filled. Removing from an empty side is a programming error.
func (b *Book) RemoveHead(s Side) error {
	entries := b.side(s)
	if len(*entries) == 0 {
		return fmt.Errorf("orderbook %s: remove head of empty %s side", b.symbol, s)
	}
	(*entries)[0] = nil // release for GC
	*entries = (*entries)[1:]
	return nil
}

// MutateHeadFilled increases the head order's Filled by delta. Price is
// untouched, so the sort invariant is preserved.
func (b *Book) MutateHeadFilled(s Side, delta int64) error {
	head, ok := b.Best(s)
	if !ok {
		return fmt.Errorf("orderbook %s: mutate head of empty %s side", b.symbol, s)
	}
	if delta <= 0 {
		return fmt.Errorf("orderbook %s: mutate head of %s side by non-positive delta %d", b.symbol, s, delta)
	}
	if head.Filled+delta > head.Amount {
		return fmt.Errorf("orderbook %s: order %d fill %d+%d exceeds amount %d", b.symbol, head.ID, head.Filled, delta, head.Amount)
	}
	head.Filled += delta
	return nil
}

// Snapshot returns a copy of side s in book order. The copy is detached:
// later book mutation is not visible through it.
func (b *Book) Snapshot(s Side) []Order {
	entries := *b.side(s)
	out := make([]Order, len(entries))
	for i, o := range entries {
		out[i] = *o
	}
	return out
}

// Orders returns a restartable sequence over a consistent copy of side s.
// No entry is consumed by reading it.
func (b *Book) Orders(s Side) iter.Seq[Order] {
	snap := b.Snapshot(s)
	return func(yield func(Order) bool) {
		for _, o := range snap {
			if !yield(o) {
				return
			}
		}
	}
}
