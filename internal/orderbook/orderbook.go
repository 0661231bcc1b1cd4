// Package orderbook hosts one trading pair's resting orders: the bid and
// ask PriceLevelIndex, the order registry, and the public operations the
// Engine uses (spec.md §4.2). Matching itself is delegated to the
// sibling matching package to keep OrderBook and MatchingCore as
// separate, independently testable components without an import cycle
// (matching depends on orderbook, never the reverse).
package orderbook

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradsys/clob/internal/book"
	"github.com/tradsys/clob/internal/types"
	clobErrors "github.com/tradsys/clob/pkg/errors"
)

// OrderBook owns exactly one pair's resting liquidity. All mutation runs
// under the pair's single-writer discipline (spec §5); RLock is offered
// for readers of Snapshot/MarketStats observing between writer steps.
type OrderBook struct {
	Pair types.TradingPair

	mu     sync.RWMutex
	bids   *book.PriceLevelIndex
	asks   *book.PriceLevelIndex
	orders map[string]*types.Order

	lastTradePrice decimal.Decimal
	lastTradeAt    time.Time
}

// New creates an empty order book for pair.
func New(pair types.TradingPair) *OrderBook {
	return &OrderBook{
		Pair:   pair,
		bids:   book.NewPriceLevelIndex(true),
		asks:   book.NewPriceLevelIndex(false),
		orders: make(map[string]*types.Order),
	}
}

// Side returns the index for side (buy->bids, sell->asks).
func (ob *OrderBook) Side(side types.OrderSide) *book.PriceLevelIndex {
	if side == types.OrderSideBuy {
		return ob.bids
	}
	return ob.asks
}

// OppositeSide returns the index on the other side from side.
func (ob *OrderBook) OppositeSide(side types.OrderSide) *book.PriceLevelIndex {
	return ob.Side(side.Opposite())
}

// Validate performs the book-owned pre-trade checks of spec §4.2:
// quantity bounds, limit-price presence/precision, and pair activity.
// Balance/rate/price-band checks are delegated to RiskGate.
func (ob *OrderBook) Validate(intent types.OrderIntent) error {
	if !ob.Pair.Active {
		return clobErrors.Validation("trading pair %s is not active", ob.Pair.Symbol)
	}
	if intent.Quantity.LessThan(ob.Pair.MinOrderSize) || intent.Quantity.GreaterThan(ob.Pair.MaxOrderSize) {
		return clobErrors.Validation("quantity %s outside bounds [%s, %s]", intent.Quantity, ob.Pair.MinOrderSize, ob.Pair.MaxOrderSize)
	}
	if intent.OrderType == types.OrderTypeLimit {
		if intent.Price.Sign() <= 0 {
			return clobErrors.Validation("limit order requires price > 0")
		}
		if !ob.Pair.PriceIsOnTick(intent.Price) {
			return clobErrors.Validation("price %s is not compatible with tick precision %d", intent.Price, ob.Pair.PricePrecision)
		}
	}
	return nil
}

// RegisterOrder places order in the order registry. The order is not yet
// resting on an index; callers insert it separately if it survives
// matching under its time-in-force rule.
func (ob *OrderBook) RegisterOrder(o *types.Order) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.orders[o.OrderID] = o
}

// GetOrder looks up an order by ID regardless of resting/terminal state.
func (ob *OrderBook) GetOrder(orderID string) (*types.Order, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	o, ok := ob.orders[orderID]
	return o, ok
}

// InsertResting adds order onto its side's index at its limit price,
// keyed by (side, limit_price, sequence_number) per spec §3.
func (ob *OrderBook) InsertResting(o *types.Order) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.Side(o.Side).Insert(o.LimitPrice, o.OrderID, o.RemainingQuantity(), o.SequenceNumber)
}

// Cancel removes a resting order. Returns false if not found or already
// terminal (spec §4.2 cancel). On success, funds are not unlocked here —
// that is the RiskGate's job, invoked by the caller (Engine/Executor)
// after Cancel reports success.
func (ob *OrderBook) Cancel(orderID string) (*types.Order, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	o, ok := ob.orders[orderID]
	if !ok || o.Status.IsTerminal() {
		return nil, false
	}
	if !ob.Side(o.Side).Remove(o.LimitPrice, orderID) {
		return nil, false
	}
	o.Status = types.OrderStatusCancelled
	o.UpdatedAt = time.Now()
	return o, true
}

// LastTrade returns the last recorded trade price and its timestamp.
func (ob *OrderBook) LastTrade() (decimal.Decimal, time.Time) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastTradePrice, ob.lastTradeAt
}

// RecordTrade updates the book's last-trade state. Called by
// matching.Match once per fill.
func (ob *OrderBook) RecordTrade(price decimal.Decimal, at time.Time) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.lastTradePrice = price
	ob.lastTradeAt = at
}

// BestBidAsk returns the book's best bid and ask prices (zero + false if
// that side is empty).
func (ob *OrderBook) BestBidAsk() (bid decimal.Decimal, bidOK bool, ask decimal.Decimal, askOK bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	bid, bidOK = ob.bids.BestPrice()
	ask, askOK = ob.asks.BestPrice()
	return
}

// Snapshot returns the aggregated top-`depth` levels on both sides
// (spec §4.2 snapshot / §6 Snapshot schema). Depth defaults to 20 when
// <= 0.
func (ob *OrderBook) Snapshot(depth int) types.Snapshot {
	if depth <= 0 {
		depth = 20
	}
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return types.Snapshot{
		TradingPair: ob.Pair.Symbol,
		Bids:        toLevelViews(ob.bids.TopLevels(depth)),
		Asks:        toLevelViews(ob.asks.TopLevels(depth)),
		Timestamp:   time.Now().UnixMilli(),
	}
}

func toLevelViews(levels []book.PriceLevel) []types.PriceLevelView {
	out := make([]types.PriceLevelView, 0, len(levels))
	for _, l := range levels {
		out = append(out, types.PriceLevelView{
			Price:      l.Price,
			Quantity:   l.TotalQuantity,
			OrderCount: l.OrderCount(),
		})
	}
	return out
}
