// Package risk implements RiskGate (spec.md §4.4): the pre-trade check
// and fund-lock protocol that sits between ingress and MatchingCore.
// Per-user/per-pair state lives behind a PositionStore; the arithmetic
// is decimal throughout. Check runs the spec's six pre-trade checks —
// order-size bound, resulting-position bound, price-band, open-order
// count, daily notional, and available balance — and Admit applies a
// per-user min-order-interval rate limit; Lock/Unlock/Settle implement
// the fund-lock protocol.
package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/stat"

	"github.com/tradsys/clob/internal/types"
	clobErrors "github.com/tradsys/clob/pkg/errors"
)

// PairLimits is the per-trading-pair risk configuration (spec §6
// risk_limits config block).
type PairLimits struct {
	MaxOrderSize     decimal.Decimal
	MaxPosition      decimal.Decimal
	PriceBandPercent decimal.Decimal // reject if |price - mark| / mark exceeds this
	MinOrderInterval time.Duration
	MaxOpenOrders    int             // reject if pos.OpenOrderCount would exceed this
	MaxDailyVolume   decimal.Decimal // reject if pos.DailyVolume + order notional would exceed this
}

// PositionStore is the persistence seam RiskGate uses for per-(user,pair)
// balances and locks. internal/riskstore provides a sqlx-backed
// implementation; tests use the in-memory one in memory_store.go.
type PositionStore interface {
	Get(userID, pair string) (types.UserPosition, bool)
	Put(pos types.UserPosition)
}

// Gate is RiskGate: pre-trade admission control plus the fund-lock
// protocol, one instance shared across all pairs (each pair's limits
// looked up by symbol).
type Gate struct {
	logger *zap.Logger

	mu      sync.RWMutex
	limits  map[string]PairLimits       // pair -> limits
	marks   map[string][]float64        // pair -> recent mark prices, for price-band smoothing
	buckets map[string]*rate.Limiter    // userID -> order-submission limiter

	store PositionStore
}

// NewGate builds a RiskGate backed by store, logging via logger.
func NewGate(logger *zap.Logger, store PositionStore) *Gate {
	return &Gate{
		logger:  logger,
		limits:  make(map[string]PairLimits),
		marks:   make(map[string][]float64),
		buckets: make(map[string]*rate.Limiter),
		store:   store,
	}
}

// Get returns a user's current position on pair, or a zero-valued one
// if they have never been seen, for callers (Engine) that need to read
// it before calling Check.
func (g *Gate) Get(userID, pair string) (types.UserPosition, bool) {
	return g.store.Get(userID, pair)
}

// SetPairLimits installs or replaces the limits for pair.
func (g *Gate) SetPairLimits(pair string, limits PairLimits) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limits[pair] = limits
}

// ObserveMark records a fresh reference price for pair (typically the
// last trade price) for use by the price-band check. Only the most
// recent few marks are retained, smoothed via their mean.
func (g *Gate) ObserveMark(pair string, price decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, _ := price.Float64()
	marks := append(g.marks[pair], f)
	if len(marks) > 20 {
		marks = marks[len(marks)-20:]
	}
	g.marks[pair] = marks
}

func (g *Gate) referenceMark(pair string) (decimal.Decimal, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	marks := g.marks[pair]
	if len(marks) == 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(stat.Mean(marks, nil)), true
}

// Check runs RiskGate's pre-trade admission checks for intent against
// pos, the caller's current position on that pair. It does not mutate
// pos or the rate limiter; callers that admit the order must also call
// Admit (rate limit) and Lock (funds) themselves, in that order, so a
// rejected order never consumes the user's rate-limit budget.
func (g *Gate) Check(intent types.OrderIntent, pos types.UserPosition) error {
	g.mu.RLock()
	limits, haveLimits := g.limits[intent.TradingPair]
	g.mu.RUnlock()

	if haveLimits {
		if !limits.MaxOrderSize.IsZero() && intent.Quantity.GreaterThan(limits.MaxOrderSize) {
			return clobErrors.RiskRejection("order quantity %s exceeds max_order_size %s", intent.Quantity, limits.MaxOrderSize)
		}
		if !limits.MaxPosition.IsZero() {
			projected := projectedPosition(intent, pos)
			if projected.Abs().GreaterThan(limits.MaxPosition) {
				return clobErrors.RiskRejection("resulting position %s would exceed max_position %s", projected, limits.MaxPosition)
			}
		}
		if intent.OrderType == types.OrderTypeLimit && !limits.PriceBandPercent.IsZero() {
			if mark, ok := g.referenceMark(intent.TradingPair); ok && mark.Sign() > 0 {
				deviation := intent.Price.Sub(mark).Abs().Div(mark)
				if deviation.GreaterThan(limits.PriceBandPercent) {
					return clobErrors.RiskRejection("price %s deviates %s from mark %s, exceeding band %s", intent.Price, deviation, mark, limits.PriceBandPercent)
				}
			}
		}
		if limits.MaxOpenOrders > 0 && pos.OpenOrderCount >= limits.MaxOpenOrders {
			return clobErrors.RiskRejection("open order count %d would exceed max_open_orders %d", pos.OpenOrderCount, limits.MaxOpenOrders)
		}
		if !limits.MaxDailyVolume.IsZero() {
			notional := intent.Price.Mul(intent.Quantity)
			projected := pos.DailyVolume.Add(notional)
			if projected.GreaterThan(limits.MaxDailyVolume) {
				return clobErrors.RiskRejection("daily notional %s would exceed max_daily_volume %s", projected, limits.MaxDailyVolume)
			}
		}
	}

	required, asset := requiredLock(intent)
	available := availableBalance(pos, asset)
	if required.GreaterThan(available) {
		return clobErrors.RiskRejection("insufficient %s balance: have %s, need %s", asset, available, required)
	}
	return nil
}

// Admit applies the per-user min-order-interval rate limit, lazily
// creating a token-bucket limiter sized at 1 event per interval with a
// burst of 1. Returns a KindRiskRejection error if the user is over
// their rate.
func (g *Gate) Admit(userID string, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	g.mu.Lock()
	limiter, ok := g.buckets[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
		g.buckets[userID] = limiter
	}
	g.mu.Unlock()

	if !limiter.Allow() {
		return clobErrors.RiskRejection("user %s submitting orders faster than min_order_interval %s", userID, interval)
	}
	return nil
}

// Lock reserves the funds an admitted order needs, moving them from
// the free balance into the locked balance (spec §4.4 fund-lock
// protocol, step "lock").
func (g *Gate) Lock(userID, pair string, intent types.OrderIntent) (types.UserPosition, error) {
	pos, _ := g.store.Get(userID, pair)
	pos.UserID, pos.TradingPair = userID, pair

	required, asset := requiredLock(intent)
	if asset == assetQuote {
		if required.GreaterThan(pos.QuoteBalance) {
			return pos, clobErrors.Invariant("lock requested %s quote beyond free balance %s for user %s", required, pos.QuoteBalance, userID)
		}
		pos.QuoteBalance = pos.QuoteBalance.Sub(required)
		pos.LockedQuote = pos.LockedQuote.Add(required)
	} else {
		if required.GreaterThan(pos.BaseBalance) {
			return pos, clobErrors.Invariant("lock requested %s base beyond free balance %s for user %s", required, pos.BaseBalance, userID)
		}
		pos.BaseBalance = pos.BaseBalance.Sub(required)
		pos.LockedBase = pos.LockedBase.Add(required)
	}
	pos.OpenOrderCount++
	pos.LastOrderTime = time.Now()
	g.store.Put(pos)
	return pos, nil
}

// Unlock releases previously locked funds back to the free balance, for
// an order that is cancelled or rejected after having been locked, or
// for the unfilled remainder of an IOC/FOK order (spec §4.4 "unlock").
func (g *Gate) Unlock(userID, pair string, side types.OrderSide, limitPrice, remainingQty decimal.Decimal) {
	pos, ok := g.store.Get(userID, pair)
	if !ok {
		return
	}
	if side == types.OrderSideBuy {
		amount := limitPrice.Mul(remainingQty)
		if amount.GreaterThan(pos.LockedQuote) {
			amount = pos.LockedQuote
		}
		pos.LockedQuote = pos.LockedQuote.Sub(amount)
		pos.QuoteBalance = pos.QuoteBalance.Add(amount)
	} else {
		if remainingQty.GreaterThan(pos.LockedBase) {
			remainingQty = pos.LockedBase
		}
		pos.LockedBase = pos.LockedBase.Sub(remainingQty)
		pos.BaseBalance = pos.BaseBalance.Add(remainingQty)
	}
	if pos.OpenOrderCount > 0 {
		pos.OpenOrderCount--
	}
	g.store.Put(pos)
}

// Settle applies one fill's worth of base/quote movement for one side
// of a trade (spec §4.4 "settle", §8 conservation of value). A buyer's
// base_balance grows by exactly fillQty and pays notional+fee, taken
// from LockedQuote first and any remainder from quote_balance; a seller's base_balance/LockedBase shrinks by
// fillQty and quote_balance grows by notional-fee. side is this user's
// side in the trade.
func (g *Gate) Settle(userID, pair string, side types.OrderSide, fillPrice, fillQty, fee decimal.Decimal) {
	pos, ok := g.store.Get(userID, pair)
	if !ok {
		pos = types.UserPosition{UserID: userID, TradingPair: pair}
	}
	notional := fillPrice.Mul(fillQty)
	if side == types.OrderSideBuy {
		spend := notional.Add(fee)
		fromLocked := decimal.Min(spend, pos.LockedQuote)
		pos.LockedQuote = pos.LockedQuote.Sub(fromLocked)
		pos.QuoteBalance = pos.QuoteBalance.Sub(spend.Sub(fromLocked))
		pos.BaseBalance = pos.BaseBalance.Add(fillQty)
	} else {
		if fillQty.GreaterThan(pos.LockedBase) {
			fillQty = pos.LockedBase
		}
		pos.LockedBase = pos.LockedBase.Sub(fillQty)
		pos.QuoteBalance = pos.QuoteBalance.Add(notional.Sub(fee))
	}
	pos.DailyVolume = pos.DailyVolume.Add(notional)
	g.store.Put(pos)
}

type asset int

const (
	assetBase asset = iota
	assetQuote
)

// requiredLock returns the amount and asset an intent must lock: a buy
// locks quote (price*qty, or an upper-bound estimate for market buys
// per spec §9), a sell locks base (quantity).
func requiredLock(intent types.OrderIntent) (decimal.Decimal, asset) {
	if intent.Side == types.OrderSideSell {
		return intent.Quantity, assetBase
	}
	if intent.OrderType == types.OrderTypeMarket {
		// Resolved Open Question (spec §9): lock best_ask * qty *
		// (1 + slippage_allowance) for market buys, since the exact
		// fill price is unknown until matching runs.
		const slippageAllowance = "0"
		allowance, _ := decimal.NewFromString(slippageAllowance)
		return intent.Price.Mul(intent.Quantity).Mul(decimal.NewFromInt(1).Add(allowance)), assetQuote
	}
	return intent.Price.Mul(intent.Quantity), assetQuote
}

func availableBalance(pos types.UserPosition, a asset) decimal.Decimal {
	if a == assetQuote {
		return pos.QuoteBalance
	}
	return pos.BaseBalance
}

func projectedPosition(intent types.OrderIntent, pos types.UserPosition) decimal.Decimal {
	current := pos.BaseBalance.Add(pos.LockedBase)
	if intent.Side == types.OrderSideBuy {
		return current.Add(intent.Quantity)
	}
	return current.Sub(intent.Quantity)
}
