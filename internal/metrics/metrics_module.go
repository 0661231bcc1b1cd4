package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/config"
)

// Module provides the metrics components
var Module = fx.Options(
	// Provide the Prometheus registry
	fx.Provide(NewPrometheusRegistry),

	// Provide the metrics components
	fx.Provide(provideWebSocketMetrics),
	fx.Provide(provideEngineMetrics),

	// Register the metrics HTTP handler
	fx.Invoke(RegisterMetricsHandler),
)

// NewPrometheusRegistry creates a new Prometheus registry
func NewPrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterMetricsHandler registers the metrics HTTP handler
func RegisterMetricsHandler(
	lifecycle fx.Lifecycle,
	registry *prometheus.Registry,
	logger *zap.Logger,
	cfg *config.Config,
) {
	// Create the HTTP handler
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// Create the HTTP server
	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Monitoring.PrometheusPort),
		Handler: handler,
	}
	
	// Register lifecycle hooks
	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("Starting metrics server", zap.String("addr", server.Addr))
			
			// Start the server in a goroutine
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Metrics server error", zap.Error(err))
				}
			}()
			
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping metrics server")
			return server.Shutdown(ctx)
		},
	})
}

// MetricsParams contains parameters for metrics components
type MetricsParams struct {
	fx.In

	Registry *prometheus.Registry
	Logger   *zap.Logger
}

func provideWebSocketMetrics(params MetricsParams) *WebSocketMetrics {
	return NewWebSocketMetrics(params.Registry, params.Logger)
}

func provideEngineMetrics(params MetricsParams) *EngineMetrics {
	return NewEngineMetrics(params.Registry)
}

