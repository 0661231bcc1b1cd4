package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	natswm "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/config"
)

// Subscriber is the read side of the NATS event bus, used by
// transport/websocket to bridge published channels onto client sockets.
type Subscriber struct {
	sub    wmmessage.Subscriber
	logger *zap.Logger
}

// SubscriberParams are the fx-injected dependencies for NewSubscriber.
type SubscriberParams struct {
	fx.In

	Config    *config.Config
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

// NewSubscriber builds a NATS-backed watermill Subscriber.
func NewSubscriber(p SubscriberParams) (*Subscriber, error) {
	wmLogger := watermill.NewStdLoggerWithOut(nil, false, false)

	natsSub, err := natswm.NewSubscriber(
		natswm.SubscriberConfig{
			URL:         p.Config.Broker.Address,
			Marshaler:   &natswm.GobMarshaler{},
			NatsOptions: nil,
			Unmarshaler: &natswm.GobMarshaler{},
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	subscriber := &Subscriber{sub: natsSub, logger: p.Logger}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return natsSub.Close()
		},
	})

	return subscriber, nil
}

// Subscribe returns the raw message channel for channel (a NATS
// subject). Payloads are the JSON encoding produced by Event.Marshal.
func (s *Subscriber) Subscribe(ctx context.Context, channel string) (<-chan *wmmessage.Message, error) {
	return s.sub.Subscribe(ctx, channel)
}

// SubscriberModule provides Subscriber for fx-based composition.
var SubscriberModule = fx.Options(
	fx.Provide(NewSubscriber),
)
