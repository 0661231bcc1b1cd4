package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/ledger"
	"github.com/tradsys/clob/internal/matching"
	"github.com/tradsys/clob/internal/risk"
	"github.com/tradsys/clob/internal/trade"
	"github.com/tradsys/clob/internal/types"
)

func edec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testEngine(t *testing.T) (*Engine, *risk.MemoryPositionStore, *ledger.MemoryLedger) {
	t.Helper()
	store := risk.NewMemoryPositionStore()
	gate := risk.NewGate(zap.NewNop(), store)
	l := ledger.NewMemoryLedger(100)

	eng := New(Params{
		Logger:    zap.NewNop(),
		Gate:      gate,
		Publisher: nil, // nil publisher is a no-op in this version's writer
		Ledger:    l,
		Fees:      trade.FeeSchedule{MakerBps: 10, TakerBps: 20},
		Policy:    matching.SelfTradeSkip,
	})

	pair := types.TradingPair{
		Symbol: "BTC-USDT", MinOrderSize: edec("0.0001"), MaxOrderSize: edec("1000"),
		PricePrecision: 2, QuantityPrecision: 6, Active: true,
	}
	eng.RegisterPair(pair, risk.PairLimits{MaxOrderSize: edec("100"), MaxPosition: edec("1000")}, 0)
	return eng, store, l
}

func TestEngine_SubmitOrder_RejectsWithoutFunds(t *testing.T) {
	eng, _, _ := testEngine(t)
	_, err := eng.SubmitOrder(context.Background(), types.OrderIntent{
		TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit,
		Price: edec("100"), Quantity: edec("1"), UserID: "bob",
	})
	assert.Error(t, err)
}

func TestEngine_SubmitOrder_RestsThenMatchesAcrossTwoSubmissions(t *testing.T) {
	eng, store, l := testEngine(t)
	store.Seed(types.UserPosition{UserID: "alice", TradingPair: "BTC-USDT", BaseBalance: edec("10")})
	store.Seed(types.UserPosition{UserID: "bob", TradingPair: "BTC-USDT", QuoteBalance: edec("10000")})

	sellResult, err := eng.SubmitOrder(context.Background(), types.OrderIntent{
		TradingPair: "BTC-USDT", Side: types.OrderSideSell, OrderType: types.OrderTypeLimit,
		Price: edec("100"), Quantity: edec("1"), UserID: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusOpen, sellResult.Status)

	buyResult, err := eng.SubmitOrder(context.Background(), types.OrderIntent{
		TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit,
		Price: edec("100"), Quantity: edec("1"), UserID: "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, buyResult.Status)
	require.Len(t, buyResult.Fills, 1)
	assert.NotEmpty(t, buyResult.Fills[0].TradeID)

	alicePos, _ := store.Get("alice", "BTC-USDT")
	assert.True(t, alicePos.LockedBase.IsZero())
	assert.True(t, alicePos.QuoteBalance.GreaterThan(decimal.Zero))

	bobPos, _ := store.Get("bob", "BTC-USDT")
	assert.True(t, bobPos.BaseBalance.GreaterThan(decimal.Zero))

	recent := l.RecentTrades("BTC-USDT", 0)
	assert.Len(t, recent, 1)
}

func TestEngine_CancelOrder_UnlocksFunds(t *testing.T) {
	eng, store, _ := testEngine(t)
	store.Seed(types.UserPosition{UserID: "alice", TradingPair: "BTC-USDT", QuoteBalance: edec("1000")})

	result, err := eng.SubmitOrder(context.Background(), types.OrderIntent{
		TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit,
		Price: edec("100"), Quantity: edec("1"), UserID: "alice",
	})
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusOpen, result.Status)

	posBeforeCancel, _ := store.Get("alice", "BTC-USDT")
	assert.True(t, posBeforeCancel.LockedQuote.Equal(edec("100")))

	cancelResult, err := eng.CancelOrder(context.Background(), types.CancelIntent{OrderID: result.OrderID, TradingPair: "BTC-USDT"})
	require.NoError(t, err)
	assert.True(t, cancelResult.Cancelled)

	posAfterCancel, _ := store.Get("alice", "BTC-USDT")
	assert.True(t, posAfterCancel.LockedQuote.IsZero())
	assert.True(t, posAfterCancel.QuoteBalance.Equal(edec("1000")))
}

func TestEngine_CancelOrder_NotFoundIsError(t *testing.T) {
	eng, _, _ := testEngine(t)
	_, err := eng.CancelOrder(context.Background(), types.CancelIntent{OrderID: "nonexistent", TradingPair: "BTC-USDT"})
	assert.Error(t, err)
}

func TestEngine_SubmitOrder_UnregisteredPairIsError(t *testing.T) {
	eng, _, _ := testEngine(t)
	_, err := eng.SubmitOrder(context.Background(), types.OrderIntent{
		TradingPair: "ETH-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit,
		Price: edec("100"), Quantity: edec("1"), UserID: "bob",
	})
	assert.Error(t, err)
}

func TestEngine_Snapshot_ReflectsRestingOrders(t *testing.T) {
	eng, store, _ := testEngine(t)
	store.Seed(types.UserPosition{UserID: "alice", TradingPair: "BTC-USDT", BaseBalance: edec("10")})

	_, err := eng.SubmitOrder(context.Background(), types.OrderIntent{
		TradingPair: "BTC-USDT", Side: types.OrderSideSell, OrderType: types.OrderTypeLimit,
		Price: edec("100"), Quantity: edec("1"), UserID: "alice",
	})
	require.NoError(t, err)

	snapshot, err := eng.Snapshot("BTC-USDT", 10)
	require.NoError(t, err)
	require.Len(t, snapshot.Asks, 1)
	assert.True(t, snapshot.Asks[0].Price.Equal(edec("100")))
}

func TestEngine_IOCDoesNotRest(t *testing.T) {
	eng, store, _ := testEngine(t)
	store.Seed(types.UserPosition{UserID: "bob", TradingPair: "BTC-USDT", QuoteBalance: edec("10000")})

	_, err := eng.SubmitOrder(context.Background(), types.OrderIntent{
		TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit,
		Price: edec("100"), Quantity: edec("1"), TimeInForce: types.TimeInForceIOC, UserID: "bob",
	})
	assert.Error(t, err) // zero liquidity, zero execution -> unfulfillable

	bobPos, _ := store.Get("bob", "BTC-USDT")
	assert.True(t, bobPos.QuoteBalance.Equal(edec("10000")))
	assert.True(t, bobPos.LockedQuote.IsZero())

	_ = time.Now()
}
