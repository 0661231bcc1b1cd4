// Package marketstats computes market_stats() (spec.md §4.2): the
// derived 24h ticker (last price, best bid/ask, 24h volume, 24h price
// change) plus a short SMA momentum reading, following the same
// talib/gonum indicator pattern as the trading package's timeframe
// indicator calculator.
package marketstats

import (
	"sync"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/tradsys/clob/internal/ledger"
	"github.com/tradsys/clob/internal/types"
)

// window bounds how far back a 24h rollup looks.
const window = 24 * time.Hour

// BookLookup returns the current top-of-book for pair, mirroring
// Engine.Snapshot(pair, 1).
type BookLookup func(pair string) (types.Snapshot, error)

// Reading is market_stats()'s full return shape: the spec's
// MarketStats plus a short SMA-based momentum indicator.
type Reading struct {
	types.MarketStats
	SMA      decimal.Decimal // last value of an up-to-12-trade simple moving average over trade price
	Momentum decimal.Decimal // SMA - the window's first trade price, i.e. trend direction/size
}

// Calculator computes Reading for a pair from the ledger's recent
// trades plus the live order book's best bid/ask.
type Calculator struct {
	ledger ledger.Ledger
	books  BookLookup

	mu    sync.RWMutex
	cache map[string]Reading
}

// NewCalculator builds a Calculator. books supplies top-of-book so
// best bid/ask stay current between trades.
func NewCalculator(l ledger.Ledger, books BookLookup) *Calculator {
	return &Calculator{ledger: l, books: books, cache: make(map[string]Reading)}
}

// Compute derives a fresh Reading for pair from up to 500 recent
// trades, keeping only the ones within the last 24h for the rollup.
func (c *Calculator) Compute(pair string) Reading {
	now := time.Now()
	reading := Reading{MarketStats: types.MarketStats{TradingPair: pair}}

	if snap, err := c.books(pair); err == nil {
		if len(snap.Bids) > 0 {
			reading.BestBid = snap.Bids[0].Price
		}
		if len(snap.Asks) > 0 {
			reading.BestAsk = snap.Asks[0].Price
		}
	}

	trades := c.ledger.RecentTrades(pair, 500)
	var recent []types.Fill
	for _, t := range trades {
		if now.Sub(t.Timestamp) <= window {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		c.store(pair, reading)
		return reading
	}

	last := recent[len(recent)-1]
	reading.LastPrice = last.Price
	reading.PriceChange24h = last.Price.Sub(recent[0].Price)

	volume := decimal.Zero
	closes := make([]float64, len(recent))
	for i, t := range recent {
		volume = volume.Add(t.Quantity)
		closes[i] = t.Price.InexactFloat64()
	}
	reading.Volume24h = volume

	period := 12
	if len(closes) < period {
		period = len(closes)
	}
	if period > 0 {
		sma := talib.Sma(closes, period)
		if v := sma[len(sma)-1]; !isNaN(v) {
			reading.SMA = decimal.NewFromFloat(v)
			reading.Momentum = decimal.NewFromFloat(v - stat.Mean(closes[:1], nil))
		}
	}

	c.store(pair, reading)
	return reading
}

// Cached returns the most recently computed Reading for pair without
// recomputing it, or false if Compute has never run for that pair.
func (c *Calculator) Cached(pair string) (Reading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.cache[pair]
	return r, ok
}

func (c *Calculator) store(pair string, r Reading) {
	c.mu.Lock()
	c.cache[pair] = r
	c.mu.Unlock()
}

func isNaN(f float64) bool { return f != f }
