package websocket

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/config"
	"github.com/tradsys/clob/internal/events"
	"github.com/tradsys/clob/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServerParams bundles Server's fx dependencies.
type ServerParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Logger     *zap.Logger
	Config     *config.Config
	Subscriber *events.Subscriber
	Metrics    *metrics.WebSocketMetrics `optional:"true"`
}

// Server is the gorilla/mux HTTP server hosting the /ws upgrade
// endpoint, backed by a Hub fed by a Bridge subscribed to every
// registered pair's trade/orderbook channels plus the aggregate
// order-update channel.
type Server struct {
	hub    *Hub
	bridge *Bridge
	router *mux.Router
	http   *http.Server
	logger *zap.Logger
}

// NewServer builds a Server and wires its lifecycle (bridge
// subscriptions on start, listener shutdown on stop) into fx.
func NewServer(p ServerParams) *Server {
	hub := NewHub(p.Logger, p.Metrics)
	bridge := NewBridge(p.Subscriber, hub, p.Logger)

	router := mux.NewRouter()
	s := &Server{
		hub:    hub,
		bridge: bridge,
		router: router,
		logger: p.Logger,
		http:   &http.Server{Addr: p.Config.WebSocket.Host + ":" + strconv.Itoa(p.Config.WebSocket.Port), Handler: router},
	}
	router.HandleFunc(p.Config.WebSocket.Path, s.handleUpgrade)

	channels := []string{events.AllTradesChannel, events.AllOrdersChannel}
	for _, pair := range p.Config.TradingPairs {
		channels = append(channels, events.TradeChannel(pair.Symbol), events.OrderbookChannel(pair.Symbol))
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := bridge.Run(context.Background(), channels); err != nil {
				return err
			}
			go func() {
				if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					p.Logger.Error("websocket server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.http.Shutdown(ctx)
		},
	})

	return s
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), conn, s.hub, s.logger)
	s.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
