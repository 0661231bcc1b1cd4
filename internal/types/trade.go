package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchType classifies how much of each side of a fill was consumed.
type MatchType string

const (
	MatchTypeFull          MatchType = "full"
	MatchTypePartialBuyer  MatchType = "partial_buyer"
	MatchTypePartialSeller MatchType = "partial_seller"
	MatchTypePartialBoth   MatchType = "partial_both"
)

// Fill (a.k.a. Trade) is immutable once emitted and transferred by value
// to the event sink and ledger.
type Fill struct {
	TradeID       string
	TradingPair   string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	BuyerOrderID  string
	SellerOrderID string
	BuyerUserID   string
	SellerUserID  string
	BuyerFee      decimal.Decimal
	SellerFee     decimal.Decimal
	Timestamp     time.Time
	MatchType     MatchType
}

// Notional returns price * quantity.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Quantity)
}
