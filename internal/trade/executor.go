// Package trade implements TradeExecutor (spec.md §4.5): turns the
// fills MatchingCore produces into priced, fee-applied, persisted
// trades, and settles each side's funds through RiskGate.
package trade

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradsys/clob/internal/config"
	"github.com/tradsys/clob/internal/ledger"
	"github.com/tradsys/clob/internal/matching"
	"github.com/tradsys/clob/internal/risk"
	"github.com/tradsys/clob/internal/types"
)

// FeeSchedule computes the maker/taker fee (in the quote asset) for a
// fill given a user's trailing volume, applying VIP tier discounts.
type FeeSchedule struct {
	MakerBps int64
	TakerBps int64
	Tiers    []config.VIPFeeTier // sorted ascending by MinVolume30d
}

// NewFeeScheduleFromConfig builds a FeeSchedule from the engine's
// static fee configuration.
func NewFeeScheduleFromConfig(cfg config.Config) FeeSchedule {
	return FeeSchedule{MakerBps: cfg.Fee.MakerBps, TakerBps: cfg.Fee.TakerBps, Tiers: cfg.Fee.VIPTiers}
}

func (f FeeSchedule) bpsFor(volume30d decimal.Decimal, maker bool) int64 {
	makerBps, takerBps := f.MakerBps, f.TakerBps
	vol, _ := volume30d.Float64()
	for _, tier := range f.Tiers {
		if vol >= tier.MinVolume30d {
			makerBps, takerBps = tier.MakerBps, tier.TakerBps
		}
	}
	if maker {
		return makerBps
	}
	return takerBps
}

// Fee returns the fee owed on notional for a maker or taker fill.
func (f FeeSchedule) Fee(notional, volume30d decimal.Decimal, maker bool) decimal.Decimal {
	bps := f.bpsFor(volume30d, maker)
	return notional.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(10000))
}

// Executor prices, persists and settles the fills a matching pass
// produced.
type Executor struct {
	fees   FeeSchedule
	ledger ledger.Ledger
	gate   *risk.Gate
	seq    uint64
}

// NewExecutor builds an Executor.
func NewExecutor(fees FeeSchedule, l ledger.Ledger, gate *risk.Gate) *Executor {
	return &Executor{fees: fees, ledger: l, gate: gate}
}

// Execute prices every fill in result (minting trade IDs, computing
// fees, settling both sides via RiskGate, and writing to the ledger),
// mutating each Fill in place before returning. takerOrderID is the
// incoming order's ID: in CLOB semantics the resting side is always the
// maker, since it was on the book first, so whichever side of each fill
// matches takerOrderID gets the taker fee rate and the other the maker
// rate. volume30d maps user_id to trailing volume for VIP tier lookup.
func (e *Executor) Execute(ctx context.Context, result *matching.MatchResult, takerOrderID string, volume30d map[string]decimal.Decimal) error {
	for i := range result.Fills {
		fill := &result.Fills[i]
		fill.TradeID = e.nextTradeID(fill.Timestamp)

		buyerIsTaker := fill.BuyerOrderID == takerOrderID
		notional := fill.Notional()

		var buyerVol, sellerVol decimal.Decimal
		if v, ok := volume30d[fill.BuyerUserID]; ok {
			buyerVol = v
		}
		if v, ok := volume30d[fill.SellerUserID]; ok {
			sellerVol = v
		}

		fill.BuyerFee = e.fees.Fee(notional, buyerVol, !buyerIsTaker)
		fill.SellerFee = e.fees.Fee(notional, sellerVol, buyerIsTaker)

		e.gate.Settle(fill.BuyerUserID, fill.TradingPair, types.OrderSideBuy, fill.Price, fill.Quantity, fill.BuyerFee)
		e.gate.Settle(fill.SellerUserID, fill.TradingPair, types.OrderSideSell, fill.Price, fill.Quantity, fill.SellerFee)

		if err := e.ledger.StoreTrade(ctx, *fill); err != nil {
			return err
		}
	}
	return nil
}

// nextTradeID mints trade_<ms-epoch>_<seq> (spec §4.5), unique within
// this Executor's process lifetime via an atomic sequence counter.
func (e *Executor) nextTradeID(at time.Time) string {
	n := atomic.AddUint64(&e.seq, 1)
	return "trade_" + strconv.FormatInt(at.UnixMilli(), 10) + "_" + strconv.FormatUint(n, 10)
}
