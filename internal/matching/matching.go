// Package matching implements MatchingCore (spec.md §4.3): the pure
// price-time-priority matching algorithm for limit/market orders under
// GTC/IOC/FOK, including self-trade prevention. It mutates the
// orderbook.OrderBook it is given but publishes no events and settles no
// risk — TradeExecutor does that per fill, one layer up.
package matching

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradsys/clob/internal/orderbook"
	"github.com/tradsys/clob/internal/types"
	clobErrors "github.com/tradsys/clob/pkg/errors"
)

// SelfTradePolicy controls what happens when incoming.user_id equals a
// resting head's user_id (spec §4.3 self-trade prevention, §6
// self_trade_policy config key).
type SelfTradePolicy string

const (
	// SelfTradeSkip is this version's default: the resting order is not
	// consumed, the incoming order advances to the next resting order at
	// that price (or, once every order at the level belongs to the
	// taker, to the next price).
	SelfTradeSkip SelfTradePolicy = "skip"
	// SelfTradeCancelTaker cancels the remainder of the incoming order
	// the instant a self-trade would occur.
	SelfTradeCancelTaker SelfTradePolicy = "cancel_taker"
	// SelfTradeCancelMaker cancels the resting maker order and continues
	// matching the incoming order against the next resting order.
	SelfTradeCancelMaker SelfTradePolicy = "cancel_maker"
)

// RestingUpdate describes the post-fill (or post-cancel) state of a
// resting order MatchingCore touched, for TradeExecutor/Engine to
// persist and publish without re-deriving it from the book.
type RestingUpdate struct {
	OrderID     string
	FillQty     decimal.Decimal
	FillPrice   decimal.Decimal
	Cancelled   bool // self-trade "cancel_maker" took this order out
	NowTerminal bool
}

// MatchResult carries the fills produced plus enough context for
// TradeExecutor to settle risk per fill without re-walking the book.
type MatchResult struct {
	Fills             []types.Fill
	RestingUpdates    []RestingUpdate
	IncomingRemaining decimal.Decimal
}

// Match runs incoming against ob's opposite side to completion (subject
// to TIF and self-trade prevention), then — for GTC limit orders with
// remaining quantity — inserts incoming onto its own side. IOC orders
// that fill nothing and FOK orders that cannot be fully filled return a
// KindUnfulfillable error with zero side effects on ob.
func Match(ob *orderbook.OrderBook, incoming *types.Order, policy SelfTradePolicy, now time.Time) (*MatchResult, error) {
	opposite := ob.OppositeSide(incoming.Side)

	if incoming.OrderType == types.OrderTypeMarket && opposite.Empty() {
		return nil, clobErrors.Unfulfillable("no resting liquidity on %s side of %s", incoming.Side.Opposite(), incoming.TradingPair)
	}

	if incoming.TimeInForce == types.TimeInForceFOK && !fokFillable(ob, incoming, policy) {
		return nil, clobErrors.Unfulfillable("FOK order %s not fully executable at submission time", incoming.OrderID)
	}

	result := walk(ob, incoming, policy, now)

	switch incoming.TimeInForce {
	case types.TimeInForceGTC:
		if incoming.OrderType == types.OrderTypeLimit && incoming.RemainingQuantity().Sign() > 0 && incoming.Status != types.OrderStatusCancelled {
			ob.InsertResting(incoming)
			if incoming.FilledQuantity.Sign() == 0 {
				incoming.Status = types.OrderStatusOpen
			}
		}
	case types.TimeInForceIOC:
		if incoming.FilledQuantity.Sign() == 0 {
			return nil, clobErrors.Unfulfillable("IOC order %s executed zero quantity", incoming.OrderID)
		}
		// residual quantity is discarded, not rested; ApplyFill already set
		// Status to filled/partially_filled, which stands as-is.
	case types.TimeInForceFOK:
		// fokFillable already guaranteed full execution; nothing rests.
	}

	return result, nil
}

// walk consumes opposite-side liquidity in price-time priority until
// incoming is exhausted, the opposite side runs dry, or (for limit
// orders) the best opposite price is no longer marketable.
func walk(ob *orderbook.OrderBook, incoming *types.Order, policy SelfTradePolicy, now time.Time) *MatchResult {
	result := &MatchResult{}
	opposite := ob.OppositeSide(incoming.Side)

	var priceInProgress decimal.Decimal
	havePriceInProgress := false
	skipsAtPrice := 0
	exhaustedLevels := 0 // leading opposite levels owned entirely by the taker (skip policy)

	for incoming.RemainingQuantity().Sign() > 0 {
		levels := opposite.TopLevels(exhaustedLevels + 1)
		if len(levels) <= exhaustedLevels {
			break
		}
		bestPrice := levels[exhaustedLevels].Price
		if incoming.OrderType == types.OrderTypeLimit && !priceIsMarketable(incoming, bestPrice) {
			break
		}

		if !havePriceInProgress || !bestPrice.Equal(priceInProgress) {
			priceInProgress = bestPrice
			havePriceInProgress = true
			skipsAtPrice = 0
		}

		head, ok := opposite.HeadOrder(bestPrice)
		if !ok {
			break
		}
		resting, ok := ob.GetOrder(head.OrderID)
		if !ok {
			// Index and registry disagree; drop the dangling entry and retry.
			opposite.Remove(bestPrice, head.OrderID)
			continue
		}

		if incoming.UserID != "" && resting.UserID == incoming.UserID {
			switch policy {
			case SelfTradeCancelTaker:
				incoming.Status = types.OrderStatusCancelled
				incoming.UpdatedAt = now
				result.IncomingRemaining = incoming.RemainingQuantity()
				return result
			case SelfTradeCancelMaker:
				opposite.Remove(bestPrice, resting.OrderID)
				resting.Status = types.OrderStatusCancelled
				resting.UpdatedAt = now
				result.RestingUpdates = append(result.RestingUpdates, RestingUpdate{OrderID: resting.OrderID, Cancelled: true, NowTerminal: true})
				continue
			default: // SelfTradeSkip
				levelCount := opposite.CountAt(bestPrice)
				if skipsAtPrice >= levelCount {
					// Every order at this price belongs to the taker;
					// move on to the next price level.
					exhaustedLevels++
					continue
				}
				opposite.SkipHead(bestPrice)
				skipsAtPrice++
				continue
			}
		}

		fillQty := decimal.Min(incoming.RemainingQuantity(), resting.RemainingQuantity())
		fillPrice := bestPrice

		opposite.DecrementHead(bestPrice, fillQty)
		incoming.ApplyFill(fillQty, fillPrice, now)
		resting.ApplyFill(fillQty, fillPrice, now)
		ob.RecordTrade(fillPrice, now)
		skipsAtPrice = 0

		matchType := classifyMatch(incoming, resting)
		trade := types.Fill{
			TradingPair: incoming.TradingPair,
			Price:       fillPrice,
			Quantity:    fillQty,
			Timestamp:   now,
			MatchType:   matchType,
		}
		if incoming.Side == types.OrderSideBuy {
			trade.BuyerOrderID, trade.BuyerUserID = incoming.OrderID, incoming.UserID
			trade.SellerOrderID, trade.SellerUserID = resting.OrderID, resting.UserID
		} else {
			trade.SellerOrderID, trade.SellerUserID = incoming.OrderID, incoming.UserID
			trade.BuyerOrderID, trade.BuyerUserID = resting.OrderID, resting.UserID
		}
		result.Fills = append(result.Fills, trade)
		result.RestingUpdates = append(result.RestingUpdates, RestingUpdate{
			OrderID:     resting.OrderID,
			FillQty:     fillQty,
			FillPrice:   fillPrice,
			NowTerminal: resting.RemainingQuantity().Sign() == 0,
		})
	}

	result.IncomingRemaining = incoming.RemainingQuantity()
	return result
}

func priceIsMarketable(incoming *types.Order, bestOppositePrice decimal.Decimal) bool {
	if incoming.Side == types.OrderSideBuy {
		return incoming.LimitPrice.GreaterThanOrEqual(bestOppositePrice)
	}
	return incoming.LimitPrice.LessThanOrEqual(bestOppositePrice)
}

func classifyMatch(incoming, resting *types.Order) types.MatchType {
	incomingDone := incoming.RemainingQuantity().Sign() == 0
	restingDone := resting.RemainingQuantity().Sign() == 0
	switch {
	case incomingDone && restingDone:
		return types.MatchTypeFull
	case incomingDone:
		if incoming.Side == types.OrderSideBuy {
			return types.MatchTypePartialBuyer
		}
		return types.MatchTypePartialSeller
	case restingDone:
		if resting.Side == types.OrderSideBuy {
			return types.MatchTypePartialBuyer
		}
		return types.MatchTypePartialSeller
	default:
		return types.MatchTypePartialBoth
	}
}

// fokFillable performs a read-only dry run: enough marketable,
// non-self-owned (under the skip policy) opposite-side quantity must
// exist to fill incoming fully before any book mutation happens.
func fokFillable(ob *orderbook.OrderBook, incoming *types.Order, policy SelfTradePolicy) bool {
	return availableAtOrBetter(ob, incoming, policy).GreaterThanOrEqual(incoming.RemainingQuantity())
}

// availableAtOrBetter sums marketable opposite-side quantity, excluding
// quantity resting under incoming's own user_id when policy is
// SelfTradeSkip (that liquidity can never be consumed by this order).
func availableAtOrBetter(ob *orderbook.OrderBook, incoming *types.Order, policy SelfTradePolicy) decimal.Decimal {
	opposite := ob.OppositeSide(incoming.Side)
	hasLimit := incoming.OrderType == types.OrderTypeLimit

	orders := opposite.RestingOrdersAtOrBetter(incoming.LimitPrice, hasLimit)
	total := decimal.Zero
	for _, o := range orders {
		if policy == SelfTradeSkip && incoming.UserID != "" {
			if resting, ok := ob.GetOrder(o.OrderID); ok && resting.UserID == incoming.UserID {
				continue
			}
		}
		total = total.Add(o.RemainingQty)
	}
	return total
}
