package watch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moolen/primeline/internal/logging"
)

// MetricsServer exposes the watcher's Prometheus metrics over HTTP at
// /metrics, plus a /health endpoint.
type MetricsServer struct {
	addr     string
	logger   *logging.Logger
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer creates a server for the given registry. The
// listener binds when Start is called.
func NewMetricsServer(addr string, registry *prometheus.Registry) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		addr:   addr,
		logger: logging.GetLogger("watch.metrics"),
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Name identifies the component in logs.
func (s *MetricsServer) Name() string {
	return "metrics-server"
}

// Start binds the listener and serves in the background. A busy port
// fails Start; later serve errors are logged.
func (s *MetricsServer) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = lis

	go func() {
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error: %v", err)
		}
	}()

	s.logger.Info("metrics server listening on %s", lis.Addr().String())
	return nil
}

// Addr returns the bound address once Start has returned.
func (s *MetricsServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests within the context deadline.
func (s *MetricsServer) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
