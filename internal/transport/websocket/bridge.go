package websocket

import (
	"context"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/events"
)

// Bridge subscribes to a fixed set of NATS channels and republishes
// every message onto Hub, so websocket clients receive the events the
// engine publishes on those channels without each client holding its
// own NATS subscription.
type Bridge struct {
	sub    *events.Subscriber
	hub    *Hub
	logger *zap.Logger
}

// NewBridge builds a Bridge. Run must be called to start forwarding.
func NewBridge(sub *events.Subscriber, hub *Hub, logger *zap.Logger) *Bridge {
	return &Bridge{sub: sub, hub: hub, logger: logger}
}

// Run subscribes to every channel in channels and forwards messages
// onto the Hub until ctx is cancelled. Each channel runs its own
// forwarding goroutine so a slow subject never blocks the others.
func (b *Bridge) Run(ctx context.Context, channels []string) error {
	for _, channel := range channels {
		msgs, err := b.sub.Subscribe(ctx, channel)
		if err != nil {
			return err
		}
		go b.forward(channel, msgs)
	}
	return nil
}

func (b *Bridge) forward(channel string, msgs <-chan *wmmessage.Message) {
	for msg := range msgs {
		b.hub.Broadcast(channel, msg.Payload)
		msg.Ack()
	}
	b.logger.Info("bridge subscription closed", zap.String("channel", channel))
}
