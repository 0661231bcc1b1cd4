package types

import "github.com/shopspring/decimal"

// OrderIntent is the validated external order request handed to the
// engine by the ingress transport (spec.md §6). It is distinct from
// Order: the engine assigns OrderID/SequenceNumber at acceptance.
type OrderIntent struct {
	TradingPair string          `json:"trading_pair" validate:"required"`
	Side        OrderSide       `json:"side" validate:"required,oneof=buy sell"`
	OrderType   OrderType       `json:"order_type" validate:"required,oneof=limit market"`
	Price       decimal.Decimal `json:"price,omitempty"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	TimeInForce TimeInForce     `json:"time_in_force,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	OrderID     string          `json:"-"` // minted by Engine.SubmitOrder when empty
}

// CancelIntent requests cancellation of a resting order.
type CancelIntent struct {
	OrderID     string `json:"order_id" validate:"required"`
	TradingPair string `json:"trading_pair" validate:"required"`
}

// CancelResult is the outcome of a CancelIntent.
type CancelResult struct {
	Cancelled bool   `json:"cancelled"`
	Reason    string `json:"reason,omitempty"`
}

// OrderResult is returned synchronously for every admitted or rejected
// OrderIntent.
type OrderResult struct {
	OrderID            string          `json:"order_id"`
	Status             OrderStatus     `json:"status"`
	ExecutedQuantity   decimal.Decimal `json:"executed_quantity"`
	RemainingQuantity  decimal.Decimal `json:"remaining_quantity"`
	AveragePrice       decimal.Decimal `json:"average_price"`
	Fills              []Fill          `json:"fills"`
	Message            string          `json:"message,omitempty"`
}

// PriceLevelView is one aggregated level in a Snapshot.
type PriceLevelView struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderCount int             `json:"order_count"`
}

// Snapshot is the aggregated top-N-levels view of one pair's book.
type Snapshot struct {
	TradingPair string           `json:"trading_pair"`
	Bids        []PriceLevelView `json:"bids"`
	Asks        []PriceLevelView `json:"asks"`
	Timestamp   int64            `json:"timestamp"`
}

// MarketStats is the public §4.2 market_stats() response.
type MarketStats struct {
	TradingPair    string          `json:"trading_pair"`
	LastPrice      decimal.Decimal `json:"last_price"`
	BestBid        decimal.Decimal `json:"best_bid"`
	BestAsk        decimal.Decimal `json:"best_ask"`
	Volume24h      decimal.Decimal `json:"volume_24h"`
	PriceChange24h decimal.Decimal `json:"price_change_24h"`
}
