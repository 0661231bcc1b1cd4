package events

import (
	"context"

	natswm "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/ThreeDotsLabs/watermill"
	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/config"
)

// Publisher is the event sink the engine writes to. It replaces this
// package's previous go-micro broker.Broker with a watermill-based one
// so every channel-address string doubles as a NATS subject.
type Publisher struct {
	pub    wmmessage.Publisher
	logger *zap.Logger
}

// PublisherParams are the fx-injected dependencies for NewPublisher.
type PublisherParams struct {
	fx.In

	Config    *config.Config
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

// NewPublisher builds a NATS-backed watermill Publisher and wires its
// Close into the fx lifecycle.
func NewPublisher(p PublisherParams) (*Publisher, error) {
	wmLogger := watermill.NewStdLoggerWithOut(nil, false, false)

	natsPub, err := natswm.NewPublisher(
		natswm.PublisherConfig{
			URL:         p.Config.Broker.Address,
			Marshaler:   &natswm.GobMarshaler{},
			NatsOptions: nil,
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	publisher := &Publisher{pub: natsPub, logger: p.Logger}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := natsPub.Close(); err != nil {
				return err
			}
			p.Logger.Info("event publisher closed")
			return nil
		},
	})

	return publisher, nil
}

// Publish sends e on its channel address (trade.<pair>, orderbook.<pair>
// or order-update.<user_id>) and mirrors it onto the matching "all"
// aggregate channel when applicable.
func (p *Publisher) Publish(channel string, e Event) error {
	body, err := e.Marshal()
	if err != nil {
		return err
	}
	msg := wmmessage.NewMessage(watermill.NewUUID(), body)

	if err := p.pub.Publish(channel, msg); err != nil {
		p.logger.Error("event publish failed", zap.String("channel", channel), zap.Error(err))
		return err
	}

	switch e.Kind {
	case KindTrade:
		if err := p.pub.Publish(AllTradesChannel, msg); err != nil {
			p.logger.Warn("aggregate trade publish failed", zap.Error(err))
		}
	case KindOrderUpdate:
		if err := p.pub.Publish(AllOrdersChannel, msg); err != nil {
			p.logger.Warn("aggregate order-update publish failed", zap.Error(err))
		}
	}
	return nil
}

// Module provides Publisher for fx-based composition (cmd/engine).
var Module = fx.Options(
	fx.Provide(NewPublisher),
)
