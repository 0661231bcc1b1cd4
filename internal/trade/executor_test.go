package trade

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/config"
	"github.com/tradsys/clob/internal/ledger"
	"github.com/tradsys/clob/internal/matching"
	"github.com/tradsys/clob/internal/risk"
	"github.com/tradsys/clob/internal/types"
)

func TestFeeSchedule_AppliesVIPTierDiscount(t *testing.T) {
	fees := FeeSchedule{
		MakerBps: 10,
		TakerBps: 20,
		Tiers: []config.VIPFeeTier{
			{MinVolume30d: 1_000_000, MakerBps: 2, TakerBps: 5},
		},
	}

	notional := decimal.NewFromInt(1000)
	assert.True(t, fees.Fee(notional, decimal.Zero, true).Equal(decimal.NewFromFloat(1.0)))   // 10bps, no tier
	assert.True(t, fees.Fee(notional, decimal.NewFromInt(2_000_000), true).Equal(decimal.NewFromFloat(0.2))) // 2bps tier
}

func TestExecutor_SettlesFeesAndMintsTradeID(t *testing.T) {
	gate := risk.NewGate(zap.NewNop(), risk.NewMemoryPositionStore())
	l := ledger.NewMemoryLedger(10)
	fees := FeeSchedule{MakerBps: 10, TakerBps: 20}
	exec := NewExecutor(fees, l, gate)

	now := time.Now()
	result := &matching.MatchResult{
		Fills: []types.Fill{
			{
				TradingPair:   "BTC-USDT",
				Price:         decimal.NewFromInt(100),
				Quantity:      decimal.NewFromInt(2),
				BuyerOrderID:  "taker-1",
				SellerOrderID: "maker-1",
				BuyerUserID:   "bob",
				SellerUserID:  "alice",
				Timestamp:     now,
				MatchType:     types.MatchTypeFull,
			},
		},
	}

	err := exec.Execute(context.Background(), result, "taker-1", map[string]decimal.Decimal{})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Fills[0].TradeID)
	assert.True(t, result.Fills[0].BuyerFee.Equal(decimal.NewFromFloat(0.4)))  // taker (20bps) on 200 notional
	assert.True(t, result.Fills[0].SellerFee.Equal(decimal.NewFromFloat(0.2))) // maker (10bps) on 200 notional

	recent := l.RecentTrades("BTC-USDT", 0)
	require.Len(t, recent, 1)
	assert.Equal(t, result.Fills[0].TradeID, recent[0].TradeID)
}
