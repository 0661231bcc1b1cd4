// Package ingress is the HTTP surface in front of Engine (spec.md §6):
// gin handlers that bind and validate OrderIntent/CancelIntent, apply a
// per-IP rate limit, and translate Engine's results into the REST
// response shapes. Structurally this follows the gateway package's
// Server/Router split and the api/middleware package's security
// middleware, adapted from an auth-gateway proxy into a direct handler
// for the matching engine.
package ingress

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/config"
	"github.com/tradsys/clob/internal/engine"
)

// ServerParams bundles Server's fx dependencies.
type ServerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
	Config    config.Config
	Engine    *engine.Engine
}

// Server is the HTTP front door for order submission, cancellation,
// order lookup and book snapshots.
type Server struct {
	router   *gin.Engine
	logger   *zap.Logger
	engine   *engine.Engine
	validate *validator.Validate
	http     *http.Server
}

// NewServer builds a gin-backed Server and wires it into the fx
// lifecycle.
func NewServer(p ServerParams) *Server {
	if p.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(p.Logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	rate := limiter.Rate{Period: time.Minute, Limit: 300}
	router.Use(ginlimiter.NewMiddleware(limiter.New(memory.NewStore(), rate)))

	s := &Server{
		router:   router,
		logger:   p.Logger,
		engine:   p.Engine,
		validate: validator.New(),
		http:     &http.Server{Addr: p.Config.Ingress.Address, Handler: router},
	}
	s.registerRoutes()

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					p.Logger.Error("ingress server stopped", zap.Error(err))
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

// Router exposes the underlying gin.Engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) registerRoutes() {
	api := s.router.Group("/api/v1")
	api.POST("/orders", s.handleSubmitOrder)
	api.DELETE("/orders/:id", s.handleCancelOrder)
	api.GET("/orders/:id", s.handleGetOrder)
	api.GET("/orderbook/:pair", s.handleSnapshot)
	s.router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
