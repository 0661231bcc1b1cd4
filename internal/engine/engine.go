// Package engine implements Engine (spec.md §4.6): the composition root
// that owns every trading pair's OrderBook and runs each one behind a
// single writer goroutine (spec §5), so all of OrderBook, RiskGate and
// TradeExecutor's mutation for one pair is strictly serialized while
// different pairs run fully concurrently.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/events"
	"github.com/tradsys/clob/internal/ledger"
	"github.com/tradsys/clob/internal/matching"
	"github.com/tradsys/clob/internal/metrics"
	"github.com/tradsys/clob/internal/orderbook"
	"github.com/tradsys/clob/internal/risk"
	"github.com/tradsys/clob/internal/trade"
	"github.com/tradsys/clob/internal/types"
	clobErrors "github.com/tradsys/clob/pkg/errors"
)

// Engine owns every registered pair's OrderBook and routes
// OrderIntent/CancelIntent to the right pair's single writer.
type Engine struct {
	logger    *zap.Logger
	gate      *risk.Gate
	publisher *events.Publisher
	ledger    ledger.Ledger
	fees      trade.FeeSchedule
	policy    matching.SelfTradePolicy
	metrics   *metrics.EngineMetrics

	mu    sync.RWMutex
	pairs map[string]*pairWorker
}

// Params bundles Engine's dependencies (assembled by cmd/engine's fx
// composition root).
type Params struct {
	Logger    *zap.Logger
	Gate      *risk.Gate
	Publisher *events.Publisher
	Ledger    ledger.Ledger
	Fees      trade.FeeSchedule
	Policy    matching.SelfTradePolicy
	Metrics   *metrics.EngineMetrics
}

// New builds an Engine with no pairs registered yet.
func New(p Params) *Engine {
	return &Engine{
		logger:    p.Logger,
		gate:      p.Gate,
		publisher: p.Publisher,
		ledger:    p.Ledger,
		fees:      p.Fees,
		policy:    p.Policy,
		metrics:   p.Metrics,
		pairs:     make(map[string]*pairWorker),
	}
}

// RegisterPair brings a trading pair online: an empty OrderBook, its
// own RiskGate limits, and a dedicated writer goroutine.
func (e *Engine) RegisterPair(pair types.TradingPair, limits risk.PairLimits, minOrderInterval time.Duration) {
	e.gate.SetPairLimits(pair.Symbol, limits)

	w := &pairWorker{
		ob:               orderbook.New(pair),
		executor:         trade.NewExecutor(e.fees, e.ledger, e.gate),
		gate:             e.gate,
		publisher:        e.publisher,
		ledger:           e.ledger,
		logger:           e.logger,
		policy:           e.policy,
		metrics:          e.metrics,
		minOrderInterval: minOrderInterval,
		cmds:             make(chan command, 256),
	}
	e.mu.Lock()
	e.pairs[pair.Symbol] = w
	e.mu.Unlock()

	go w.run()
}

// Shutdown closes every pair's writer channel, draining in-flight
// commands first via the channel close signal.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range e.pairs {
		close(w.cmds)
	}
}

func (e *Engine) worker(pair string) (*pairWorker, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	w, ok := e.pairs[pair]
	if !ok {
		return nil, clobErrors.NotFound("trading pair %s is not registered", pair)
	}
	return w, nil
}

// SubmitOrder mints an order_id if absent and defaults an empty
// time_in_force to GTC, then routes intent to its pair's single writer
// and blocks for the synchronous OrderResult (spec §4.2 submit / §6).
func (e *Engine) SubmitOrder(ctx context.Context, intent types.OrderIntent) (types.OrderResult, error) {
	w, err := e.worker(intent.TradingPair)
	if err != nil {
		return types.OrderResult{}, err
	}
	if intent.OrderID == "" {
		intent.OrderID = ksuid.New().String()
	}
	if intent.TimeInForce == "" {
		intent.TimeInForce = types.TimeInForceGTC
	}

	resp := make(chan response, 1)
	select {
	case w.cmds <- command{kind: cmdSubmit, intent: intent, resp: resp}:
	case <-ctx.Done():
		return types.OrderResult{}, ctx.Err()
	}

	select {
	case r := <-resp:
		return r.orderResult, r.err
	case <-ctx.Done():
		return types.OrderResult{}, ctx.Err()
	}
}

// CancelOrder routes a CancelIntent to its pair's single writer.
func (e *Engine) CancelOrder(ctx context.Context, intent types.CancelIntent) (types.CancelResult, error) {
	w, err := e.worker(intent.TradingPair)
	if err != nil {
		return types.CancelResult{}, err
	}

	resp := make(chan response, 1)
	select {
	case w.cmds <- command{kind: cmdCancel, cancel: intent, resp: resp}:
	case <-ctx.Done():
		return types.CancelResult{}, ctx.Err()
	}

	select {
	case r := <-resp:
		return r.cancelResult, r.err
	case <-ctx.Done():
		return types.CancelResult{}, ctx.Err()
	}
}

// Snapshot returns the current top-depth levels for pair, read directly
// off its OrderBook (safe: OrderBook's own RWMutex guards this against
// the pair's writer goroutine).
func (e *Engine) Snapshot(pair string, depth int) (types.Snapshot, error) {
	w, err := e.worker(pair)
	if err != nil {
		return types.Snapshot{}, err
	}
	return w.ob.Snapshot(depth), nil
}

// GetOrder looks up an order on pair regardless of resting/terminal state.
func (e *Engine) GetOrder(pair, orderID string) (*types.Order, bool) {
	w, err := e.worker(pair)
	if err != nil {
		return nil, false
	}
	return w.ob.GetOrder(orderID)
}

const (
	cmdSubmit = "submit"
	cmdCancel = "cancel"
)

type command struct {
	kind   string
	intent types.OrderIntent
	cancel types.CancelIntent
	resp   chan response
}

type response struct {
	orderResult  types.OrderResult
	cancelResult types.CancelResult
	err          error
}

// pairWorker is the single writer for one pair: every command it
// receives runs to completion before the next is read off cmds, so
// OrderBook/RiskGate/TradeExecutor mutation for this pair is never
// concurrent with itself (spec §5).
type pairWorker struct {
	ob               *orderbook.OrderBook
	executor         *trade.Executor
	gate             *risk.Gate
	publisher        *events.Publisher
	ledger           ledger.Ledger
	logger           *zap.Logger
	policy           matching.SelfTradePolicy
	metrics          *metrics.EngineMetrics
	minOrderInterval time.Duration
	seq              uint64
	cmds             chan command
}

func (w *pairWorker) run() {
	for cmd := range w.cmds {
		switch cmd.kind {
		case cmdSubmit:
			result, err := w.handleSubmit(cmd.intent)
			cmd.resp <- response{orderResult: result, err: err}
		case cmdCancel:
			result, err := w.handleCancel(cmd.cancel)
			cmd.resp <- response{cancelResult: result, err: err}
		}
	}
}

func (w *pairWorker) handleSubmit(intent types.OrderIntent) (types.OrderResult, error) {
	ctx := context.Background()
	now := time.Now()

	if err := w.ob.Validate(intent); err != nil {
		w.recordRejection("validate")
		return types.OrderResult{Status: types.OrderStatusRejected, Message: err.Error()}, err
	}

	pair := w.ob.Pair
	intent.Price = pair.RoundPrice(intent.Price)
	intent.Quantity = pair.RoundQuantity(intent.Quantity)

	if intent.OrderType == types.OrderTypeMarket && intent.Side == types.OrderSideBuy {
		if ask, ok := w.ob.Side(types.OrderSideSell).BestPrice(); ok {
			intent.Price = ask
		}
	}

	pos, _ := w.gate.Get(intent.UserID, pair.Symbol)
	if err := w.gate.Check(intent, pos); err != nil {
		w.recordRejection("risk_check")
		return types.OrderResult{OrderID: intent.OrderID, Status: types.OrderStatusRejected, Message: err.Error()}, err
	}
	if err := w.gate.Admit(intent.UserID, w.minOrderInterval); err != nil {
		w.recordRejection("rate_limit")
		return types.OrderResult{OrderID: intent.OrderID, Status: types.OrderStatusRejected, Message: err.Error()}, err
	}
	if _, err := w.gate.Lock(intent.UserID, pair.Symbol, intent); err != nil {
		w.recordRejection("insufficient_funds")
		return types.OrderResult{OrderID: intent.OrderID, Status: types.OrderStatusRejected, Message: err.Error()}, err
	}
	w.recordSubmission(pair.Symbol, string(intent.Side), string(intent.OrderType))

	w.seq++
	order := &types.Order{
		OrderID:          intent.OrderID,
		UserID:           intent.UserID,
		TradingPair:      intent.TradingPair,
		Side:             intent.Side,
		OrderType:        intent.OrderType,
		TimeInForce:      intent.TimeInForce,
		LimitPrice:       intent.Price,
		OriginalQuantity: intent.Quantity,
		Status:           types.OrderStatusPending,
		SequenceNumber:   w.seq,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	w.ob.RegisterOrder(order)

	matchStart := time.Now()
	result, err := matching.Match(w.ob, order, w.policy, now)
	if w.metrics != nil {
		w.metrics.ObserveMatchLatency(pair.Symbol, time.Since(matchStart).Seconds())
	}
	if err != nil {
		w.gate.Unlock(intent.UserID, pair.Symbol, order.Side, order.LimitPrice, order.RemainingQuantity())
		order.Status = types.OrderStatusRejected
		w.recordRejection("match_error")
		return types.OrderResult{OrderID: order.OrderID, Status: order.Status, Message: err.Error()}, err
	}
	if w.metrics != nil {
		w.metrics.RecordFills(pair.Symbol, len(result.Fills))
	}

	if len(result.Fills) > 0 {
		volume30d := map[string]decimal.Decimal{} // see DESIGN.md: approximated from UserPosition.DailyVolume
		for _, f := range result.Fills {
			for _, uid := range []string{f.BuyerUserID, f.SellerUserID} {
				if p, ok := w.gate.Get(uid, pair.Symbol); ok {
					volume30d[uid] = p.DailyVolume
				}
			}
		}
		if err := w.executor.Execute(ctx, result, order.OrderID, volume30d); err != nil {
			w.logger.Error("trade execution failed", zap.Error(err), zap.String("pair", pair.Symbol))
		}
		last := result.Fills[len(result.Fills)-1]
		w.gate.ObserveMark(pair.Symbol, last.Price)

		for i := range result.Fills {
			fill := result.Fills[i]
			w.publish(events.Event{Kind: events.KindTrade, Pair: pair.Symbol, Sequence: w.seq, Timestamp: now, Trade: &fill}, events.TradeChannel(pair.Symbol))
		}
		for _, ru := range result.RestingUpdates {
			if resting, ok := w.ob.GetOrder(ru.OrderID); ok {
				w.publishOrderUpdate(resting)
			}
		}
	}

	// Residual handling: a GTC limit order rests its remainder, which
	// stays locked. Any other remainder (an IOC or market residual, or a
	// taker cancelled by self-trade prevention) is discarded by Match,
	// so its lock is released here. FOK never has a residual.
	rested := order.OrderType == types.OrderTypeLimit && order.TimeInForce == types.TimeInForceGTC && order.Status != types.OrderStatusCancelled
	if !rested && order.RemainingQuantity().Sign() > 0 {
		w.gate.Unlock(intent.UserID, pair.Symbol, order.Side, order.LimitPrice, order.RemainingQuantity())
	}

	snapshot := w.ob.Snapshot(20)
	if err := w.ledger.StoreSnapshot(ctx, snapshot); err != nil {
		w.logger.Warn("snapshot persist failed", zap.Error(err))
	}
	w.publish(events.Event{Kind: events.KindOrderbookSnapshot, Pair: pair.Symbol, Sequence: w.seq, Timestamp: now, Snapshot: &snapshot}, events.OrderbookChannel(pair.Symbol))
	if w.metrics != nil {
		w.metrics.SetDepth(pair.Symbol, "bid", len(snapshot.Bids))
		w.metrics.SetDepth(pair.Symbol, "ask", len(snapshot.Asks))
		w.metrics.SetQueueDepth(pair.Symbol, len(w.cmds))
	}

	w.publishOrderUpdate(order)

	return types.OrderResult{
		OrderID:           order.OrderID,
		Status:            order.Status,
		ExecutedQuantity:  order.FilledQuantity,
		RemainingQuantity: order.RemainingQuantity(),
		AveragePrice:      order.AverageFillPrice,
		Fills:             result.Fills,
	}, nil
}

func (w *pairWorker) recordSubmission(pair, side, orderType string) {
	if w.metrics != nil {
		w.metrics.RecordSubmission(pair, side, orderType)
	}
}

func (w *pairWorker) recordRejection(reason string) {
	if w.metrics != nil {
		w.metrics.RecordRejection(w.ob.Pair.Symbol, reason)
	}
}

func (w *pairWorker) handleCancel(intent types.CancelIntent) (types.CancelResult, error) {
	order, ok := w.ob.Cancel(intent.OrderID)
	if !ok {
		return types.CancelResult{Cancelled: false, Reason: "order not found or already terminal"}, clobErrors.NotFound("order %s not found or already terminal", intent.OrderID)
	}
	w.gate.Unlock(order.UserID, intent.TradingPair, order.Side, order.LimitPrice, order.RemainingQuantity())
	w.publishOrderUpdate(order)
	return types.CancelResult{Cancelled: true}, nil
}

func (w *pairWorker) publishOrderUpdate(o *types.Order) {
	update := &events.OrderUpdate{
		OrderID:           o.OrderID,
		UserID:            o.UserID,
		TradingPair:       o.TradingPair,
		Status:            o.Status,
		FilledQuantity:    o.FilledQuantity.String(),
		RemainingQuantity: o.RemainingQuantity().String(),
	}
	w.publish(events.Event{Kind: events.KindOrderUpdate, Pair: o.TradingPair, Timestamp: time.Now(), Order: update}, events.OrderUpdateChannel(o.UserID))
}

func (w *pairWorker) publish(e events.Event, channel string) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(channel, e); err != nil {
		w.logger.Error("event publish failed", zap.String("channel", channel), zap.Error(err))
	}
}
