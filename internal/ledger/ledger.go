// Package ledger persists trades and order-book snapshots (spec.md §6
// store_trade/store_snapshot). Writes are idempotent on trade_id and
// wrapped in a circuit breaker so a struggling database degrades the
// writer step (spec §7 TransientFailure) instead of blocking a pair
// indefinitely.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/types"
	clobErrors "github.com/tradsys/clob/pkg/errors"
)

// Ledger is the storage seam TradeExecutor writes through.
type Ledger interface {
	StoreTrade(ctx context.Context, trade types.Fill) error
	StoreSnapshot(ctx context.Context, snapshot types.Snapshot) error
	RecentTrades(pair string, limit int) []types.Fill
}

// BreakerLedger wraps an underlying Ledger in a gobreaker circuit
// breaker: repeated write failures trip the breaker and further writes
// fail fast as KindTransient rather than piling up behind a dead
// database connection.
type BreakerLedger struct {
	inner   Ledger
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewBreakerLedger wraps inner with a breaker named for pair-agnostic
// logging; it trips after 5 consecutive failures and probes again after
// 10s half-open.
func NewBreakerLedger(inner Ledger, logger *zap.Logger) *BreakerLedger {
	settings := gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ledger circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &BreakerLedger{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings), logger: logger}
}

// StoreTrade implements Ledger.
func (b *BreakerLedger) StoreTrade(ctx context.Context, trade types.Fill) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.StoreTrade(ctx, trade)
	})
	if err != nil {
		return clobErrors.Transient("ledger store_trade failed: %v", err)
	}
	return nil
}

// StoreSnapshot implements Ledger.
func (b *BreakerLedger) StoreSnapshot(ctx context.Context, snapshot types.Snapshot) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.StoreSnapshot(ctx, snapshot)
	})
	if err != nil {
		return clobErrors.Transient("ledger store_snapshot failed: %v", err)
	}
	return nil
}

// RecentTrades implements Ledger, bypassing the breaker since reads
// degrade gracefully to an empty slice rather than failing the writer.
func (b *BreakerLedger) RecentTrades(pair string, limit int) []types.Fill {
	return b.inner.RecentTrades(pair, limit)
}

// MemoryLedger is an in-memory Ledger for tests and the no-database dev
// mode, keeping only the most recent maxPerPair trades per pair (spec
// §4.5: "bounded recent-trades-per-pair cache").
type MemoryLedger struct {
	mu         sync.RWMutex
	maxPerPair int
	trades     map[string][]types.Fill
	seen       map[string]struct{} // trade_id -> seen, for idempotency
	snapshots  map[string]types.Snapshot
}

// NewMemoryLedger returns an empty ledger retaining up to maxPerPair
// trades per pair (default 1000 if <= 0).
func NewMemoryLedger(maxPerPair int) *MemoryLedger {
	if maxPerPair <= 0 {
		maxPerPair = 1000
	}
	return &MemoryLedger{
		maxPerPair: maxPerPair,
		trades:     make(map[string][]types.Fill),
		seen:       make(map[string]struct{}),
		snapshots:  make(map[string]types.Snapshot),
	}
}

// StoreTrade implements Ledger; re-storing the same trade_id is a no-op.
func (m *MemoryLedger) StoreTrade(_ context.Context, trade types.Fill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[trade.TradeID]; dup {
		return nil
	}
	m.seen[trade.TradeID] = struct{}{}

	list := append(m.trades[trade.TradingPair], trade)
	if len(list) > m.maxPerPair {
		list = list[len(list)-m.maxPerPair:]
	}
	m.trades[trade.TradingPair] = list
	return nil
}

// StoreSnapshot implements Ledger.
func (m *MemoryLedger) StoreSnapshot(_ context.Context, snapshot types.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.TradingPair] = snapshot
	return nil
}

// RecentTrades implements Ledger.
func (m *MemoryLedger) RecentTrades(pair string, limit int) []types.Fill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.trades[pair]
	if limit <= 0 || limit >= len(list) {
		out := make([]types.Fill, len(list))
		copy(out, list)
		return out
	}
	out := make([]types.Fill, limit)
	copy(out, list[len(list)-limit:])
	return out
}
