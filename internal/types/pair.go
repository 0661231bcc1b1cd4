// Package types holds the data model shared by the matching core: trading
// pairs, orders, fills, user positions and market state. Prices and
// quantities are decimal.Decimal throughout so that matching and fee
// computation stay deterministic and reproducible on replay.
package types

import "github.com/shopspring/decimal"

// TradingPair is immutable configuration for one market, e.g. BTC-USDT.
type TradingPair struct {
	Symbol            string
	BaseAsset         string
	QuoteAsset        string
	MinOrderSize      decimal.Decimal
	MaxOrderSize      decimal.Decimal
	PricePrecision    int32
	QuantityPrecision int32
	Active            bool
}

// RoundPrice rounds p to the pair's price precision.
func (p TradingPair) RoundPrice(v decimal.Decimal) decimal.Decimal {
	return v.Round(p.PricePrecision)
}

// RoundQuantity rounds q to the pair's quantity precision.
func (p TradingPair) RoundQuantity(v decimal.Decimal) decimal.Decimal {
	return v.Round(p.QuantityPrecision)
}

// PriceIsOnTick reports whether v has no more precision than the pair allows.
func (p TradingPair) PriceIsOnTick(v decimal.Decimal) bool {
	return v.Equal(p.RoundPrice(v))
}
