package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(hub *Hub) *Client {
	return &Client{ID: "client-1", Hub: hub, Send: make(chan []byte, 4), Logger: zap.NewNop()}
}

func TestHub_SubscribeThenBroadcastDeliversToSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := newTestClient(hub)
	hub.Register <- c
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, time.Millisecond)

	hub.Subscribe(c, "trade.BTC-USDT")
	hub.Broadcast("trade.BTC-USDT", []byte(`{"kind":"trade"}`))

	select {
	case msg := <-c.Send:
		assert.Equal(t, `{"kind":"trade"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("expected a message on client's send channel")
	}
}

func TestHub_BroadcastToUnsubscribedChannelDeliversNothing(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := newTestClient(hub)
	hub.Register <- c
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, time.Millisecond)

	hub.Broadcast("orderbook.BTC-USDT", []byte("noop"))

	select {
	case <-c.Send:
		t.Fatal("did not expect a message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := newTestClient(hub)
	hub.Register <- c
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, time.Millisecond)

	hub.Subscribe(c, "trade.BTC-USDT")
	hub.Unsubscribe(c, "trade.BTC-USDT")
	hub.Broadcast("trade.BTC-USDT", []byte("noop"))

	select {
	case <-c.Send:
		t.Fatal("did not expect a message after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterRemovesFromAllChannelsAndClosesSend(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := newTestClient(hub)
	hub.Register <- c
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, time.Millisecond)

	hub.Subscribe(c, "trade.BTC-USDT")
	hub.Unregister <- c
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, time.Second, time.Millisecond)

	_, ok := <-c.Send
	assert.False(t, ok, "send channel should be closed on unregister")
}

func TestHub_HandleMessage_SubscribeAction(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := newTestClient(hub)
	hub.Register <- c
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, time.Millisecond)

	hub.HandleMessage(c, &Message{Action: "subscribe", Channel: "order-update.alice"})
	hub.Broadcast("order-update.alice", []byte("hi"))

	select {
	case msg := <-c.Send:
		assert.Equal(t, "hi", string(msg))
	case <-time.After(time.Second):
		t.Fatal("expected delivery after subscribe action")
	}
}
