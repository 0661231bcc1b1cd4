// Package events defines the engine's published event shapes and the
// channel-address scheme they travel on (spec.md §6), plus a
// watermill/NATS-backed Publisher that replaces the broker this package
// used to wrap (see publisher.go).
package events

import (
	"encoding/json"
	"time"

	"github.com/tradsys/clob/internal/types"
)

// Kind discriminates the Event union.
type Kind string

const (
	KindTrade             Kind = "trade"
	KindOrderUpdate       Kind = "order_update"
	KindOrderbookSnapshot Kind = "orderbook_snapshot"
)

// Event is the tagged-union envelope published for every order-book
// mutation. Exactly one of Trade/OrderUpdate/Snapshot is set, matching
// Kind. Engine publishes these in a fixed per-submission order: trade(s)
// first, then the resting order-update(s) they touched, then the
// orderbook snapshot, then the incoming order's own update (spec §6,
// §9 ordering note).
type Event struct {
	Kind      Kind            `json:"kind"`
	Pair      string          `json:"trading_pair"`
	Sequence  uint64          `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	Trade     *types.Fill     `json:"trade,omitempty"`
	Order     *OrderUpdate    `json:"order,omitempty"`
	Snapshot  *types.Snapshot `json:"snapshot,omitempty"`
}

// OrderUpdate is the per-order delta published whenever an order's
// status or filled quantity changes.
type OrderUpdate struct {
	OrderID           string           `json:"order_id"`
	UserID            string           `json:"user_id"`
	TradingPair       string           `json:"trading_pair"`
	Status            types.OrderStatus `json:"status"`
	FilledQuantity    string           `json:"filled_quantity"`
	RemainingQuantity string           `json:"remaining_quantity"`
}

// Marshal serializes e for transport.
func (e Event) Marshal() ([]byte, error) { return json.Marshal(e) }

// TradeChannel is the address trades for pair are published on. This is
// deliberately NOT per-order — spec §9 flags the original design's
// per-order-derived trade channel as a bug (it fragmented a pair's
// trade tape across one channel per resting order touched), so every
// trade for a pair lands on one channel regardless of which orders
// produced it.
func TradeChannel(pair string) string { return "trade." + pair }

// OrderbookChannel is the address a pair's snapshots/deltas publish on.
func OrderbookChannel(pair string) string { return "orderbook." + pair }

// OrderUpdateChannel is the address a given user's own order updates
// publish on, across all pairs.
func OrderUpdateChannel(userID string) string { return "order-update." + userID }

// AllTradesChannel aggregates every pair's trade tape, for
// market-data consumers that don't want to subscribe per pair.
const AllTradesChannel = "trades.all"

// AllOrdersChannel aggregates every user's order updates, for internal
// monitoring/audit consumers only (never exposed to end users).
const AllOrdersChannel = "orders.all"
