package websocket

import "encoding/json"

// Message is the wire envelope for every frame exchanged over the
// socket: client-to-server subscribe/unsubscribe commands, and
// server-to-client channel pushes (spec.md §9 event channels).
type Message struct {
	Action  string          `json:"action,omitempty"`  // "subscribe" | "unsubscribe", client -> server only
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data,omitempty"`
}
