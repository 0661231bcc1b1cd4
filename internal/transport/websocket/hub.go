// Package websocket is the fan-out transport in front of the events
// package (spec.md §9): it bridges each configured pair's trade.<pair>
// and orderbook.<pair> channels plus trades.all and orders.all onto
// per-client gorilla/websocket connections, with idle connections
// dropped via ping/pong deadlines. Per-user order-update.<user_id>
// channels are not bridged.
// Hub/Client follow the teacher's original client.go pump design; Hub
// itself fills a gap the teacher's websocket_components files left
// unimplemented (Client, MarketDataHandler and OrdersHandler all
// referenced a *Hub type this package never defined).
package websocket

import (
	"sync"

	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/metrics"
)

// Hub owns every connected Client and the set of channels each one has
// subscribed to. One Hub serves the whole process; channel names are
// the same strings events.TradeChannel/OrderbookChannel/
// OrderUpdateChannel produce.
type Hub struct {
	logger  *zap.Logger
	metrics *metrics.WebSocketMetrics

	mu          sync.RWMutex
	clients     map[*Client]bool
	subscribers map[string]map[*Client]bool // channel -> subscribed clients

	Register   chan *Client
	Unregister chan *Client
}

// NewHub builds an empty Hub and starts its run loop.
func NewHub(logger *zap.Logger, m *metrics.WebSocketMetrics) *Hub {
	h := &Hub{
		logger:      logger,
		metrics:     m,
		clients:     make(map[*Client]bool),
		subscribers: make(map[string]map[*Client]bool),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.Register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.RecordConnectionOpen(c.ID)
			}
		case c := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				for channel, subs := range h.subscribers {
					delete(subs, c)
					if len(subs) == 0 {
						delete(h.subscribers, channel)
					}
				}
				close(c.Send)
			}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.RecordConnectionClose(c.ID)
			}
		}
	}
}

// Subscribe adds client to channel's subscriber set.
func (h *Hub) Subscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[channel]
	if !ok {
		subs = make(map[*Client]bool)
		h.subscribers[channel] = subs
	}
	subs[c] = true
	if h.metrics != nil {
		h.metrics.RecordSubscriptionAdd()
	}
}

// Unsubscribe removes client from channel's subscriber set.
func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.subscribers, channel)
		}
	}
	if h.metrics != nil {
		h.metrics.RecordSubscriptionRemove()
	}
}

// Broadcast pushes payload to every client currently subscribed to
// channel, dropping it for any client whose send buffer is full rather
// than blocking the bridge goroutine.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subscribers[channel] {
		select {
		case c.Send <- payload:
		default:
			h.logger.Warn("dropping message for slow client", zap.String("client_id", c.ID), zap.String("channel", channel))
		}
	}
}

// HandleMessage processes one client-originated Message (spec.md §9
// client protocol: subscribe/unsubscribe to a channel).
func (h *Hub) HandleMessage(c *Client, msg *Message) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(c, msg.Channel)
	case "unsubscribe":
		h.Unsubscribe(c, msg.Channel)
	default:
		h.logger.Warn("unknown websocket action", zap.String("action", msg.Action), zap.String("client_id", c.ID))
	}
}

// ConnectionCount reports how many clients are currently registered.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
