package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradsys/clob/internal/orderbook"
	"github.com/tradsys/clob/internal/types"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testPair() types.TradingPair {
	return types.TradingPair{
		Symbol:            "BTC-USDT",
		MinOrderSize:      dec("0.0001"),
		MaxOrderSize:      dec("1000"),
		PricePrecision:    2,
		QuantityPrecision: 6,
		Active:            true,
	}
}

var seq uint64

func nextSeq() uint64 {
	seq++
	return seq
}

func newOrder(userID string, side types.OrderSide, orderType types.OrderType, tif types.TimeInForce, price, qty string) *types.Order {
	return &types.Order{
		OrderID:          "o" + decimal.NewFromInt(int64(nextSeq())).String(),
		UserID:           userID,
		TradingPair:      "BTC-USDT",
		Side:             side,
		OrderType:        orderType,
		TimeInForce:      tif,
		LimitPrice:       dec(price),
		OriginalQuantity: dec(qty),
		SequenceNumber:   nextSeq(),
		Status:           types.OrderStatusPending,
		CreatedAt:        time.Now(),
	}
}

func rest(t *testing.T, ob *orderbook.OrderBook, o *types.Order) {
	t.Helper()
	ob.RegisterOrder(o)
	ob.InsertResting(o)
	o.Status = types.OrderStatusOpen
}

func TestMatch_LimitCrossesRestingAsk_FullFill(t *testing.T) {
	ob := orderbook.New(testPair())
	maker := newOrder("alice", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "1")
	rest(t, ob, maker)

	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeLimit, types.TimeInForceGTC, "100", "1")
	ob.RegisterOrder(taker)

	result, err := Match(ob, taker, SelfTradeSkip, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Fills, 1)
	assert.True(t, result.Fills[0].Price.Equal(dec("100")))
	assert.True(t, result.Fills[0].Quantity.Equal(dec("1")))
	assert.Equal(t, types.OrderStatusFilled, taker.Status)
	assert.Equal(t, types.OrderStatusFilled, maker.Status)
}

func TestMatch_PriceTimePriority_BestPriceFirstThenFIFO(t *testing.T) {
	ob := orderbook.New(testPair())
	worse := newOrder("alice", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "101", "1")
	better1 := newOrder("alice", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "1")
	better2 := newOrder("carol", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "1")
	rest(t, ob, worse)
	rest(t, ob, better1)
	rest(t, ob, better2)

	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeLimit, types.TimeInForceGTC, "101", "1.5")
	ob.RegisterOrder(taker)

	result, err := Match(ob, taker, SelfTradeSkip, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Fills, 2)
	assert.Equal(t, better1.OrderID, result.Fills[0].SellerOrderID)
	assert.True(t, result.Fills[0].Price.Equal(dec("100")))
	assert.Equal(t, better2.OrderID, result.Fills[1].SellerOrderID)
	assert.True(t, result.Fills[1].Quantity.Equal(dec("0.5")))
}

func TestMatch_GTCRestsRemainderWhenNoFullMatch(t *testing.T) {
	ob := orderbook.New(testPair())
	maker := newOrder("alice", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "0.4")
	rest(t, ob, maker)

	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeLimit, types.TimeInForceGTC, "100", "1")
	ob.RegisterOrder(taker)

	result, err := Match(ob, taker, SelfTradeSkip, time.Now())
	require.NoError(t, err)
	assert.True(t, result.IncomingRemaining.Equal(dec("0.6")))
	assert.Equal(t, types.OrderStatusPartiallyFilled, taker.Status)

	bestBid, ok := ob.Side(types.OrderSideBuy).BestPrice()
	require.True(t, ok)
	assert.True(t, bestBid.Equal(dec("100")))
}

func TestMatch_IOCDiscardsResidualWithoutResting(t *testing.T) {
	ob := orderbook.New(testPair())
	maker := newOrder("alice", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "0.5")
	rest(t, ob, maker)

	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeLimit, types.TimeInForceIOC, "100", "1")
	ob.RegisterOrder(taker)

	result, err := Match(ob, taker, SelfTradeSkip, time.Now())
	require.NoError(t, err)
	assert.True(t, result.IncomingRemaining.Equal(dec("0.5")))
	assert.Equal(t, types.OrderStatusPartiallyFilled, taker.Status)
	assert.Equal(t, 0, ob.Side(types.OrderSideBuy).Len())
}

func TestMatch_IOCZeroExecutionIsUnfulfillable(t *testing.T) {
	ob := orderbook.New(testPair())
	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeLimit, types.TimeInForceIOC, "100", "1")
	ob.RegisterOrder(taker)

	_, err := Match(ob, taker, SelfTradeSkip, time.Now())
	assert.Error(t, err)
}

func TestMatch_FOKRejectsWhenInsufficientLiquidity_NoSideEffects(t *testing.T) {
	ob := orderbook.New(testPair())
	maker := newOrder("alice", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "0.5")
	rest(t, ob, maker)

	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeLimit, types.TimeInForceFOK, "100", "1")
	ob.RegisterOrder(taker)

	_, err := Match(ob, taker, SelfTradeSkip, time.Now())
	require.Error(t, err)
	assert.Equal(t, types.OrderStatusPending, taker.Status)
	assert.True(t, maker.RemainingQuantity().Equal(dec("0.5")))
}

func TestMatch_FOKFillsFullyWhenLiquiditySufficient(t *testing.T) {
	ob := orderbook.New(testPair())
	maker1 := newOrder("alice", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "0.6")
	maker2 := newOrder("carol", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "0.6")
	rest(t, ob, maker1)
	rest(t, ob, maker2)

	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeLimit, types.TimeInForceFOK, "100", "1")
	ob.RegisterOrder(taker)

	result, err := Match(ob, taker, SelfTradeSkip, time.Now())
	require.NoError(t, err)
	assert.True(t, result.IncomingRemaining.Sign() == 0)
	assert.Equal(t, types.OrderStatusFilled, taker.Status)
}

func TestMatch_SelfTradeSkip_AdvancesPastOwnOrder(t *testing.T) {
	ob := orderbook.New(testPair())
	own := newOrder("bob", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "1")
	other := newOrder("alice", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "1")
	rest(t, ob, own)
	rest(t, ob, other)

	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeLimit, types.TimeInForceGTC, "100", "1")
	ob.RegisterOrder(taker)

	result, err := Match(ob, taker, SelfTradeSkip, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Fills, 1)
	assert.Equal(t, other.OrderID, result.Fills[0].SellerOrderID)
	assert.True(t, own.RemainingQuantity().Equal(dec("1")))
	assert.Equal(t, types.OrderStatusOpen, own.Status)
}

func TestMatch_SelfTradeSkip_WholeLevelOwnedByTaker_RestsInstead(t *testing.T) {
	ob := orderbook.New(testPair())
	own := newOrder("bob", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "1")
	rest(t, ob, own)

	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeLimit, types.TimeInForceGTC, "100", "1")
	ob.RegisterOrder(taker)

	result, err := Match(ob, taker, SelfTradeSkip, time.Now())
	require.NoError(t, err)
	assert.Len(t, result.Fills, 0)
	assert.True(t, result.IncomingRemaining.Equal(dec("1")))

	bestBid, ok := ob.Side(types.OrderSideBuy).BestPrice()
	require.True(t, ok)
	assert.True(t, bestBid.Equal(dec("100")))
}

func TestMatch_MarketOrderWithNoLiquidity_IsUnfulfillable(t *testing.T) {
	ob := orderbook.New(testPair())
	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeMarket, types.TimeInForceIOC, "", "1")
	ob.RegisterOrder(taker)

	_, err := Match(ob, taker, SelfTradeSkip, time.Now())
	assert.Error(t, err)
}

func TestMatch_MarketOrderNeverRests(t *testing.T) {
	ob := orderbook.New(testPair())
	maker := newOrder("alice", types.OrderSideSell, types.OrderTypeLimit, types.TimeInForceGTC, "100", "0.4")
	rest(t, ob, maker)

	taker := newOrder("bob", types.OrderSideBuy, types.OrderTypeMarket, types.TimeInForceGTC, "", "1")
	ob.RegisterOrder(taker)

	_, err := Match(ob, taker, SelfTradeSkip, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, ob.Side(types.OrderSideBuy).Len())
}
