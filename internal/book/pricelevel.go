// Package book implements the ordered, per-side price-level index that
// backs one trading pair's resting orders (spec.md §4.1). The ordering
// structure is a B-tree keyed by price (grounded on the pack's
// tidwall/btree-based order book), giving O(log L) insert/delete by
// price and O(1) best-price access through the tree's Min.
package book

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// RestingOrder is the minimal record the index needs per resting order:
// enough to order and to report back to the caller without the index
// reaching into the OrderBook's order registry.
type RestingOrder struct {
	OrderID        string
	RemainingQty   decimal.Decimal
	SequenceNumber uint64
}

// PriceLevel is the aggregated, derived state at one price (spec.md §3).
// Orders are a FIFO queue: index 0 is always the head for matching.
type PriceLevel struct {
	Price         decimal.Decimal
	TotalQuantity decimal.Decimal
	Count         int
	Orders        []RestingOrder
}

func (l *PriceLevel) OrderCount() int { return l.Count }

// PriceLevelIndex is one side (bid or ask) of one pair's order book.
type PriceLevelIndex struct {
	levels *btree.BTreeG[*PriceLevel]
	isBid  bool
}

// NewPriceLevelIndex builds an ascending (ask) or descending (bid) index.
// The ordering relation is fixed at construction, per spec §4.1.
func NewPriceLevelIndex(isBid bool) *PriceLevelIndex {
	var less func(a, b *PriceLevel) bool
	if isBid {
		less = func(a, b *PriceLevel) bool { return a.Price.GreaterThan(b.Price) }
	} else {
		less = func(a, b *PriceLevel) bool { return a.Price.LessThan(b.Price) }
	}
	return &PriceLevelIndex{
		levels: btree.NewBTreeG(less),
		isBid:  isBid,
	}
}

// Insert appends order_id to the FIFO tail of its price level, creating
// the level if needed (spec §4.1 insert).
func (idx *PriceLevelIndex) Insert(price decimal.Decimal, orderID string, remainingQty decimal.Decimal, seq uint64) {
	key := &PriceLevel{Price: price}
	if existing, ok := idx.levels.GetMut(key); ok {
		existing.Orders = append(existing.Orders, RestingOrder{OrderID: orderID, RemainingQty: remainingQty, SequenceNumber: seq})
		existing.TotalQuantity = existing.TotalQuantity.Add(remainingQty)
		existing.Count = len(existing.Orders)
		return
	}
	idx.levels.Set(&PriceLevel{
		Price:         price,
		TotalQuantity: remainingQty,
		Count:         1,
		Orders:        []RestingOrder{{OrderID: orderID, RemainingQty: remainingQty, SequenceNumber: seq}},
	})
}

// Remove decrements total_quantity/order_count at price and deletes the
// level if it becomes empty (spec §4.1 remove).
func (idx *PriceLevelIndex) Remove(price decimal.Decimal, orderID string) bool {
	key := &PriceLevel{Price: price}
	level, ok := idx.levels.GetMut(key)
	if !ok {
		return false
	}
	for i, o := range level.Orders {
		if o.OrderID == orderID {
			level.TotalQuantity = level.TotalQuantity.Sub(o.RemainingQty)
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			level.Count = len(level.Orders)
			if len(level.Orders) == 0 {
				idx.levels.Delete(key)
			}
			return true
		}
	}
	return false
}

// DecrementHead reduces the head order's remaining quantity by qty,
// popping it off the level (and deleting the level if now empty) once it
// reaches zero. Used by MatchingCore as it consumes liquidity.
func (idx *PriceLevelIndex) DecrementHead(price decimal.Decimal, qty decimal.Decimal) {
	key := &PriceLevel{Price: price}
	level, ok := idx.levels.GetMut(key)
	if !ok || len(level.Orders) == 0 {
		return
	}
	level.TotalQuantity = level.TotalQuantity.Sub(qty)
	head := &level.Orders[0]
	head.RemainingQty = head.RemainingQty.Sub(qty)
	if head.RemainingQty.Sign() <= 0 {
		level.Orders = level.Orders[1:]
		level.Count = len(level.Orders)
		if len(level.Orders) == 0 {
			idx.levels.Delete(key)
		}
	}
}

// SkipHead moves the head order of price to the back of the FIFO queue
// without consuming it, used by self-trade prevention's "skip" policy:
// the resting head is not consumed and the taker advances to the next
// resting order at that price.
func (idx *PriceLevelIndex) SkipHead(price decimal.Decimal) {
	key := &PriceLevel{Price: price}
	level, ok := idx.levels.GetMut(key)
	if !ok || len(level.Orders) < 2 {
		return
	}
	head := level.Orders[0]
	level.Orders = append(level.Orders[1:], head)
}

// BestPrice returns the best (lowest ask / highest bid) price level, or
// false if the side is empty.
func (idx *PriceLevelIndex) BestPrice() (decimal.Decimal, bool) {
	level, ok := idx.levels.Min()
	if !ok {
		return decimal.Zero, false
	}
	return level.Price, true
}

// HeadOrder returns the front-of-FIFO resting order at price.
func (idx *PriceLevelIndex) HeadOrder(price decimal.Decimal) (RestingOrder, bool) {
	level, ok := idx.levels.Get(&PriceLevel{Price: price})
	if !ok || len(level.Orders) == 0 {
		return RestingOrder{}, false
	}
	return level.Orders[0], true
}

// Len reports the number of distinct price levels.
func (idx *PriceLevelIndex) Len() int { return idx.levels.Len() }

// Empty reports whether the side has no resting liquidity at all.
func (idx *PriceLevelIndex) Empty() bool { return idx.levels.Len() == 0 }

// TopLevels returns up to n best levels, aggregated (no order IDs), for
// snapshots (spec §4.1 top_levels).
func (idx *PriceLevelIndex) TopLevels(n int) []PriceLevel {
	out := make([]PriceLevel, 0, n)
	idx.levels.Scan(func(level *PriceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, PriceLevel{Price: level.Price, TotalQuantity: level.TotalQuantity, Count: level.Count, Orders: nil})
		return true
	})
	return out
}

// QuantityAtOrBetter sums quantity at prices <= limit (ask side) or >=
// limit (bid side) — the side's own ordering already walks in that
// direction, so this simply accumulates until price crosses limit.
func (idx *PriceLevelIndex) QuantityAtOrBetter(limit decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	idx.levels.Scan(func(level *PriceLevel) bool {
		if idx.isBid {
			if level.Price.LessThan(limit) {
				return false
			}
		} else {
			if level.Price.GreaterThan(limit) {
				return false
			}
		}
		total = total.Add(level.TotalQuantity)
		return true
	})
	return total
}

// QuantityAvailable sums the total resting quantity on the side,
// regardless of price — used by market-order FOK/empty-side checks.
func (idx *PriceLevelIndex) QuantityAvailable() decimal.Decimal {
	total := decimal.Zero
	idx.levels.Scan(func(level *PriceLevel) bool {
		total = total.Add(level.TotalQuantity)
		return true
	})
	return total
}

// RestingOrdersAtOrBetter returns copies of the resting orders at levels
// at-or-better than limit (all levels if hasLimit is false), in
// price-time priority order. Read-only: used by MatchingCore's FOK
// dry-run and self-trade exclusion, never mutates the index.
func (idx *PriceLevelIndex) RestingOrdersAtOrBetter(limit decimal.Decimal, hasLimit bool) []RestingOrder {
	var out []RestingOrder
	idx.levels.Scan(func(level *PriceLevel) bool {
		if hasLimit {
			if idx.isBid && level.Price.LessThan(limit) {
				return false
			}
			if !idx.isBid && level.Price.GreaterThan(limit) {
				return false
			}
		}
		out = append(out, level.Orders...)
		return true
	})
	return out
}

// CountAt reports how many resting orders sit at price, used to bound
// self-trade "skip" rotation so it terminates instead of cycling forever
// when a whole level belongs to the taker.
func (idx *PriceLevelIndex) CountAt(price decimal.Decimal) int {
	level, ok := idx.levels.Get(&PriceLevel{Price: price})
	if !ok {
		return 0
	}
	return len(level.Orders)
}

// Clone copies the index's levels for a consistent concurrent read
// between writer steps (spec §5). Each level and its resting-order FIFO
// slice is copied so later writer mutation never races with the reader.
func (idx *PriceLevelIndex) Clone() *PriceLevelIndex {
	clone := NewPriceLevelIndex(idx.isBid)
	idx.levels.Scan(func(level *PriceLevel) bool {
		orders := make([]RestingOrder, len(level.Orders))
		copy(orders, level.Orders)
		clone.levels.Set(&PriceLevel{Price: level.Price, TotalQuantity: level.TotalQuantity, Count: level.Count, Orders: orders})
		return true
	})
	return clone
}
