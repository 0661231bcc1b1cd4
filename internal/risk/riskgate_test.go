package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/types"
)

func gdec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestGate() (*Gate, *MemoryPositionStore) {
	store := NewMemoryPositionStore()
	gate := NewGate(zap.NewNop(), store)
	gate.SetPairLimits("BTC-USDT", PairLimits{
		MaxOrderSize:     gdec("10"),
		MaxPosition:      gdec("100"),
		PriceBandPercent: gdec("0.1"),
	})
	return gate, store
}

func TestGate_CheckRejectsOversizedOrder(t *testing.T) {
	gate, store := newTestGate()
	store.Seed(types.UserPosition{UserID: "u1", TradingPair: "BTC-USDT", QuoteBalance: gdec("1000000")})

	intent := types.OrderIntent{TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit, Price: gdec("100"), Quantity: gdec("11")}
	pos, _ := store.Get("u1", "BTC-USDT")
	err := gate.Check(intent, pos)
	assert.Error(t, err)
}

func TestGate_CheckRejectsInsufficientBalance(t *testing.T) {
	gate, store := newTestGate()
	store.Seed(types.UserPosition{UserID: "u1", TradingPair: "BTC-USDT", QuoteBalance: gdec("10")})

	intent := types.OrderIntent{TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit, Price: gdec("100"), Quantity: gdec("1")}
	pos, _ := store.Get("u1", "BTC-USDT")
	err := gate.Check(intent, pos)
	assert.Error(t, err)
}

func TestGate_CheckRejectsOutsidePriceBand(t *testing.T) {
	gate, store := newTestGate()
	gate.ObserveMark("BTC-USDT", gdec("100"))
	store.Seed(types.UserPosition{UserID: "u1", TradingPair: "BTC-USDT", QuoteBalance: gdec("1000000")})

	intent := types.OrderIntent{TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit, Price: gdec("500"), Quantity: gdec("1")}
	pos, _ := store.Get("u1", "BTC-USDT")
	err := gate.Check(intent, pos)
	assert.Error(t, err)
}

func TestGate_CheckPassesWithinBandAndBalance(t *testing.T) {
	gate, store := newTestGate()
	gate.ObserveMark("BTC-USDT", gdec("100"))
	store.Seed(types.UserPosition{UserID: "u1", TradingPair: "BTC-USDT", QuoteBalance: gdec("1000")})

	intent := types.OrderIntent{TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit, Price: gdec("101"), Quantity: gdec("1")}
	pos, _ := store.Get("u1", "BTC-USDT")
	assert.NoError(t, gate.Check(intent, pos))
}

func TestGate_LockMovesQuoteToLocked(t *testing.T) {
	gate, store := newTestGate()
	store.Seed(types.UserPosition{UserID: "u1", TradingPair: "BTC-USDT", QuoteBalance: gdec("1000")})

	intent := types.OrderIntent{TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit, Price: gdec("100"), Quantity: gdec("2")}
	pos, err := gate.Lock("u1", "BTC-USDT", intent)
	require.NoError(t, err)
	assert.True(t, pos.QuoteBalance.Equal(gdec("800")))
	assert.True(t, pos.LockedQuote.Equal(gdec("200")))
}

func TestGate_LockSellMovesBaseToLocked(t *testing.T) {
	gate, store := newTestGate()
	store.Seed(types.UserPosition{UserID: "u1", TradingPair: "BTC-USDT", BaseBalance: gdec("5")})

	intent := types.OrderIntent{TradingPair: "BTC-USDT", Side: types.OrderSideSell, OrderType: types.OrderTypeLimit, Price: gdec("100"), Quantity: gdec("2")}
	pos, err := gate.Lock("u1", "BTC-USDT", intent)
	require.NoError(t, err)
	assert.True(t, pos.BaseBalance.Equal(gdec("3")))
	assert.True(t, pos.LockedBase.Equal(gdec("2")))
}

func TestGate_UnlockReturnsFundsToFreeBalance(t *testing.T) {
	gate, store := newTestGate()
	store.Seed(types.UserPosition{UserID: "u1", TradingPair: "BTC-USDT", QuoteBalance: gdec("1000")})
	intent := types.OrderIntent{TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit, Price: gdec("100"), Quantity: gdec("2")}
	_, err := gate.Lock("u1", "BTC-USDT", intent)
	require.NoError(t, err)

	gate.Unlock("u1", "BTC-USDT", types.OrderSideBuy, gdec("100"), gdec("2"))
	pos, _ := store.Get("u1", "BTC-USDT")
	assert.True(t, pos.QuoteBalance.Equal(gdec("1000")))
	assert.True(t, pos.LockedQuote.IsZero())
}

func TestGate_SettleBuyerReceivesFullBaseAndPaysFeeInQuote(t *testing.T) {
	gate, store := newTestGate()
	store.Seed(types.UserPosition{UserID: "u1", TradingPair: "BTC-USDT", QuoteBalance: gdec("1000")})
	intent := types.OrderIntent{TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit, Price: gdec("100"), Quantity: gdec("2")}
	_, err := gate.Lock("u1", "BTC-USDT", intent)
	require.NoError(t, err)

	// notional = 100*2 = 200, locked quote = 200; settling spends
	// notional+fee = 200.01: the whole 200 lock plus 0.01 from the free
	// 800, base received is the full fill quantity (fee is
	// quote-denominated, not deducted from base).
	gate.Settle("u1", "BTC-USDT", types.OrderSideBuy, gdec("100"), gdec("2"), gdec("0.01"))
	pos, _ := store.Get("u1", "BTC-USDT")
	assert.True(t, pos.LockedQuote.IsZero())
	assert.True(t, pos.BaseBalance.Equal(gdec("2")))
	assert.True(t, pos.QuoteBalance.Equal(gdec("799.99")))
}

func TestGate_CheckRejectsWhenOpenOrdersAtLimit(t *testing.T) {
	gate, store := newTestGate()
	gate.SetPairLimits("BTC-USDT", PairLimits{
		MaxOrderSize:     gdec("10"),
		MaxPosition:      gdec("100"),
		PriceBandPercent: gdec("0.1"),
		MaxOpenOrders:    2,
	})
	store.Seed(types.UserPosition{UserID: "u1", TradingPair: "BTC-USDT", QuoteBalance: gdec("1000000"), OpenOrderCount: 2})

	intent := types.OrderIntent{TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit, Price: gdec("100"), Quantity: gdec("1")}
	pos, _ := store.Get("u1", "BTC-USDT")
	assert.Error(t, gate.Check(intent, pos))
}

func TestGate_CheckRejectsWhenDailyVolumeWouldExceedLimit(t *testing.T) {
	gate, store := newTestGate()
	gate.SetPairLimits("BTC-USDT", PairLimits{
		MaxOrderSize:     gdec("10"),
		MaxPosition:      gdec("100"),
		PriceBandPercent: gdec("0.1"),
		MaxDailyVolume:   gdec("500"),
	})
	store.Seed(types.UserPosition{UserID: "u1", TradingPair: "BTC-USDT", QuoteBalance: gdec("1000000"), DailyVolume: gdec("450")})

	intent := types.OrderIntent{TradingPair: "BTC-USDT", Side: types.OrderSideBuy, OrderType: types.OrderTypeLimit, Price: gdec("100"), Quantity: gdec("1")}
	pos, _ := store.Get("u1", "BTC-USDT")
	assert.Error(t, gate.Check(intent, pos))
}

func TestGate_AdmitEnforcesMinOrderInterval(t *testing.T) {
	gate, _ := newTestGate()
	require.NoError(t, gate.Admit("u1", 50*time.Millisecond))
	assert.Error(t, gate.Admit("u1", 50*time.Millisecond))
}

func TestGate_AdmitNoLimitWhenIntervalZero(t *testing.T) {
	gate, _ := newTestGate()
	assert.NoError(t, gate.Admit("u1", 0))
	assert.NoError(t, gate.Admit("u1", 0))
}
