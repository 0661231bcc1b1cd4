// Command engine is the composition root for the matching engine
// (spec.md §4.6): it wires Config, RiskGate, TradeExecutor, Ledger,
// the event Publisher/Subscriber, Engine itself and the ingress/
// websocket/metrics surfaces together via fx, the same dependency
// container the teacher's cmd entrypoints use.
package main

import (
	"context"
	"flag"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/config"
	"github.com/tradsys/clob/internal/engine"
	"github.com/tradsys/clob/internal/events"
	"github.com/tradsys/clob/internal/ingress"
	"github.com/tradsys/clob/internal/ledger"
	"github.com/tradsys/clob/internal/marketstats"
	"github.com/tradsys/clob/internal/matching"
	"github.com/tradsys/clob/internal/metrics"
	"github.com/tradsys/clob/internal/risk"
	"github.com/tradsys/clob/internal/riskstore"
	"github.com/tradsys/clob/internal/trade"
	"github.com/tradsys/clob/internal/transport/websocket"
	"github.com/tradsys/clob/internal/types"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	app := fx.New(
		fx.Provide(func() (*config.Config, error) { return config.LoadConfig(*configPath) }),
		fx.Provide(func(cfg *config.Config) config.Config { return *cfg }),
		fx.Provide(func(cfg *config.Config) (*zap.Logger, error) { return config.InitLogger(cfg) }),

		fx.Provide(newPositionStore),
		fx.Provide(risk.NewGate),
		fx.Provide(newLedger),
		fx.Provide(trade.NewFeeScheduleFromConfig),
		fx.Provide(newSelfTradePolicy),

		events.Module,
		fx.Provide(events.NewSubscriber),

		metrics.Module,

		fx.Provide(newEngine),
		fx.Provide(newMarketStatsCalculator),

		fx.Provide(ingress.NewServer),
		fx.Provide(websocket.NewServer),

		fx.Invoke(registerPairs),
		fx.Invoke(func(*ingress.Server, *websocket.Server) {}),
	)

	app.Run()
}

func newSelfTradePolicy(cfg *config.Config) matching.SelfTradePolicy {
	switch cfg.Matching.SelfTradePolicy {
	case "cancel_taker":
		return matching.SelfTradeCancelTaker
	case "cancel_maker":
		return matching.SelfTradeCancelMaker
	default:
		return matching.SelfTradeSkip
	}
}

func newPositionStore(cfg *config.Config, logger *zap.Logger) (risk.PositionStore, error) {
	if cfg.Database.Host == "" {
		return risk.NewMemoryPositionStore(), nil
	}
	dsn := postgresDSN(cfg)
	store, err := riskstore.Open(dsn, logger)
	if err != nil {
		logger.Warn("riskstore unavailable, falling back to in-memory positions", zap.Error(err))
		return risk.NewMemoryPositionStore(), nil
	}
	return store, nil
}

func postgresDSN(cfg *config.Config) string {
	return "host=" + cfg.Database.Host +
		" port=" + strconv.Itoa(cfg.Database.Port) +
		" user=" + cfg.Database.User +
		" password=" + cfg.Database.Password +
		" dbname=" + cfg.Database.Name +
		" sslmode=" + cfg.Database.SSLMode
}

func newLedger(cfg *config.Config, logger *zap.Logger) ledger.Ledger {
	if cfg.Database.Host == "" {
		return ledger.NewMemoryLedger(1000)
	}
	gormLedger, err := ledger.NewGormLedger(postgresDSN(cfg))
	if err != nil {
		logger.Warn("ledger database unavailable, falling back to in-memory ledger", zap.Error(err))
		return ledger.NewMemoryLedger(1000)
	}
	return ledger.NewBreakerLedger(gormLedger, logger)
}

type engineParams struct {
	fx.In

	Logger    *zap.Logger
	Gate      *risk.Gate
	Publisher *events.Publisher
	Ledger    ledger.Ledger
	Fees      trade.FeeSchedule
	Policy    matching.SelfTradePolicy
	Metrics   *metrics.EngineMetrics
}

func newEngine(p engineParams) *engine.Engine {
	return engine.New(engine.Params{
		Logger:    p.Logger,
		Gate:      p.Gate,
		Publisher: p.Publisher,
		Ledger:    p.Ledger,
		Fees:      p.Fees,
		Policy:    p.Policy,
		Metrics:   p.Metrics,
	})
}

func newMarketStatsCalculator(e *engine.Engine, l ledger.Ledger) *marketstats.Calculator {
	return marketstats.NewCalculator(l, func(pair string) (types.Snapshot, error) {
		return e.Snapshot(pair, 1)
	})
}

func registerPairs(lc fx.Lifecycle, cfg *config.Config, e *engine.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for _, pc := range cfg.TradingPairs {
				pair := types.TradingPair{
					Symbol:            pc.Symbol,
					BaseAsset:         pc.BaseAsset,
					QuoteAsset:        pc.QuoteAsset,
					MinOrderSize:      decimal.NewFromFloat(pc.MinOrderSize),
					MaxOrderSize:      decimal.NewFromFloat(pc.MaxOrderSize),
					PricePrecision:    pc.PricePrecision,
					QuantityPrecision: pc.QuantityPrecision,
					Active:            pc.Active,
				}
				limits := risk.PairLimits{
					MaxOrderSize:     decimal.NewFromFloat(pc.MaxOrderSize),
					MaxPosition:      decimal.NewFromFloat(pc.MaxPosition),
					PriceBandPercent: decimal.NewFromFloat(pc.PriceBandPercent),
					MinOrderInterval: time.Duration(pc.MinOrderIntervalMs) * time.Millisecond,
					MaxOpenOrders:    pc.MaxOpenOrders,
					MaxDailyVolume:   decimal.NewFromFloat(pc.MaxDailyVolume),
				}
				e.RegisterPair(pair, limits, limits.MinOrderInterval)
				logger.Info("registered trading pair", zap.String("symbol", pair.Symbol))
			}
			return nil
		},
	})
}
