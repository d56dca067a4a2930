package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/shakeout/shakeout/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"

	shutdownTimeout = 5 * time.Second
)

// Service bundles the optional HTTP surfaces of a long-running suite
// watch: /healthz reporting the latest pass outcome, and the
// Prometheus /metrics exporter. Only the suite command with metrics
// enabled starts it.
type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer
}

// New creates the service. status feeds the healthz payload and may
// be nil.
func New(status StatusFunc) *Service {
	return &Service{
		Healthz: NewHealthzServer(status),
		Metrics: &MetricsServer{},
	}
}

// Start brings both servers up in the background. Listen failures are
// logged and counted, not fatal: the suite keeps running without its
// HTTP surfaces.
func (s *Service) Start(ctx context.Context) {
	go serve(ctx, "healthz", net.JoinHostPort(HealthzHost, HealthzPort), s.Healthz.Start)
	go serve(ctx, "metrics", net.JoinHostPort(MetricsHost, MetricsPort), s.Metrics.Start)
}

func serve(ctx context.Context, name, addr string, start func(context.Context, string) error) {
	log.Info("starting http server", "server", name, "addr", addr)
	if err := start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server failed", "server", name, "err", err)
		metrics.RecordErrorDetails("error starting "+name+" server", err)
	}
}

// Shutdown stops both servers, waiting up to the shutdown timeout for
// in-flight requests.
func (s *Service) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.Healthz.Shutdown(ctx); err != nil {
		log.Error("error shutting down healthz server", "err", err)
	}
	if err := s.Metrics.Shutdown(ctx); err != nil {
		log.Error("error shutting down metrics server", "err", err)
	}
	log.Info("service stopped")
}
