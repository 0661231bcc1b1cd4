package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradsys/clob/internal/types"
)

func TestMemoryLedger_StoreTradeIsIdempotent(t *testing.T) {
	l := NewMemoryLedger(10)
	trade := types.Fill{TradeID: "trade_1_1", TradingPair: "BTC-USDT", Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1), Timestamp: time.Now()}

	require.NoError(t, l.StoreTrade(context.Background(), trade))
	require.NoError(t, l.StoreTrade(context.Background(), trade))

	assert.Len(t, l.RecentTrades("BTC-USDT", 0), 1)
}

func TestMemoryLedger_RecentTradesBoundedPerPair(t *testing.T) {
	l := NewMemoryLedger(3)
	for i := 0; i < 5; i++ {
		trade := types.Fill{
			TradeID:     "trade_" + decimal.NewFromInt(int64(i)).String(),
			TradingPair: "BTC-USDT",
			Price:       decimal.NewFromInt(100),
			Quantity:    decimal.NewFromInt(1),
			Timestamp:   time.Now(),
		}
		require.NoError(t, l.StoreTrade(context.Background(), trade))
	}
	assert.Len(t, l.RecentTrades("BTC-USDT", 0), 3)
}

func TestMemoryLedger_SnapshotOverwritesPerPair(t *testing.T) {
	l := NewMemoryLedger(10)
	require.NoError(t, l.StoreSnapshot(context.Background(), types.Snapshot{TradingPair: "BTC-USDT", Timestamp: 1}))
	require.NoError(t, l.StoreSnapshot(context.Background(), types.Snapshot{TradingPair: "BTC-USDT", Timestamp: 2}))
	assert.Equal(t, int64(2), l.snapshots["BTC-USDT"].Timestamp)
}
