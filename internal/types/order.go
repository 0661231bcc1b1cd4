package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType is limit or market.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TimeInForce governs what happens to the residual quantity after matching.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// OrderStatus is the order's position in the state machine of spec.md §4.2.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// IsTerminal reports whether the status is one the engine must never
// re-introduce into the book.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// Order is the mutable resting-order record owned exclusively by the
// OrderBook that holds it. It is never aliased across sides or books.
type Order struct {
	OrderID          string
	UserID           string
	TradingPair      string
	Side             OrderSide
	OrderType        OrderType
	TimeInForce      TimeInForce
	LimitPrice       decimal.Decimal
	OriginalQuantity decimal.Decimal
	FilledQuantity   decimal.Decimal
	AverageFillPrice decimal.Decimal
	Status           OrderStatus
	SequenceNumber   uint64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RemainingQuantity returns original - filled.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.OriginalQuantity.Sub(o.FilledQuantity)
}

// ApplyFill records fill_qty at fill_price against the order, updating
// FilledQuantity, AverageFillPrice, Status and UpdatedAt. It does not
// decide the final TIF-driven status for unrested quantity; callers
// finalize that separately.
func (o *Order) ApplyFill(fillQty, fillPrice decimal.Decimal, at time.Time) {
	if fillQty.Sign() <= 0 {
		return
	}
	priorNotional := o.AverageFillPrice.Mul(o.FilledQuantity)
	newFilled := o.FilledQuantity.Add(fillQty)
	o.AverageFillPrice = priorNotional.Add(fillPrice.Mul(fillQty)).Div(newFilled)
	o.FilledQuantity = newFilled
	o.UpdatedAt = at

	if o.RemainingQuantity().Sign() == 0 {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
}
