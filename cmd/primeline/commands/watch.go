package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moolen/primeline/internal/analysis"
	"github.com/moolen/primeline/internal/lifecycle"
	"github.com/moolen/primeline/internal/session"
	"github.com/moolen/primeline/internal/tracing"
	"github.com/moolen/primeline/internal/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	watchDir             string
	watchMetricsPort     int
	watchQuiesce         time.Duration
	watchOneBased        bool
	watchTracingEnabled  bool
	watchTracingEndpoint string
	watchTracingTLSCA    string
	watchTracingInsecure bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the session directory and analyze artifacts as they land",
	Long: `Watch runs as a daemon over the session directory. Every events
artifact that appears or changes is analyzed after a quiesce period and
the report is written next to it. Prometheus metrics are served on the
metrics port.`,
	Run: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "Session directory to watch (default from config)")
	watchCmd.Flags().IntVar(&watchMetricsPort, "metrics-port", 0, "Port for the Prometheus metrics endpoint (default 9464)")
	watchCmd.Flags().DurationVar(&watchQuiesce, "quiesce", 0, "Quiet period after the last change before analyzing (default 500ms)")
	watchCmd.Flags().BoolVar(&watchOneBased, "one-based", false, "Treat artifact caller/callee indices as 1-based")
	watchCmd.Flags().BoolVar(&watchTracingEnabled, "tracing-enabled", false, "Enable OpenTelemetry tracing (default: false)")
	watchCmd.Flags().StringVar(&watchTracingEndpoint, "tracing-endpoint", "", "OTLP gRPC endpoint for traces (e.g., localhost:4317)")
	watchCmd.Flags().StringVar(&watchTracingTLSCA, "tracing-tls-ca", "", "Path to CA certificate for TLS verification (optional)")
	watchCmd.Flags().BoolVar(&watchTracingInsecure, "tracing-tls-insecure", false, "Skip TLS certificate verification (insecure, use only for testing)")
}

func runWatch(cmd *cobra.Command, args []string) {
	cfg, logger := setup("watch")

	logger.Info("Starting primeline v%s", Version)

	dir := watchDir
	if dir == "" {
		dir = cfg.SessionDir
	}
	store, err := session.NewStore(dir)
	if err != nil {
		HandleError(err, "Failed to open session directory")
	}

	manager := lifecycle.NewManager()

	// Initialize tracing provider
	tracingCfg := tracingConfig(cfg, watchTracingEnabled, watchTracingEndpoint, watchTracingTLSCA, watchTracingInsecure)
	tracingProvider, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		logger.Warn("Failed to initialize tracing (continuing without tracing): %v", err)
		tracingProvider = nil
	}
	if tracingProvider != nil {
		if err := manager.Register(tracingProvider); err != nil {
			HandleError(err, "Tracing registration error")
		}
	}

	quiesce := watchQuiesce
	if quiesce == 0 {
		quiesce = time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond
	}

	popts := pipelineOptions(cfg, 0, 0, 0, 0, 0)
	if tracingProvider != nil && tracingProvider.IsEnabled() {
		popts = append(popts, analysis.WithTracer(tracingProvider.GetTracer("analysis")))
	}

	registry := prometheus.NewRegistry()
	metrics := watch.NewMetrics(registry)

	watcher, err := watch.NewWatcher(watch.Config{
		Debounce:        quiesce,
		LoadOptions:     loadOptions(cfg, watchOneBased),
		PipelineOptions: popts,
	}, store, metrics)
	if err != nil {
		HandleError(err, "Watcher initialization error")
	}

	metricsAddr := cfg.Watch.MetricsAddr
	if watchMetricsPort != 0 {
		metricsAddr = fmt.Sprintf(":%d", watchMetricsPort)
	}
	metricsServer := watch.NewMetricsServer(metricsAddr, registry)

	if err := manager.Register(watcher); err != nil {
		HandleError(err, "Watcher registration error")
	}
	if err := manager.Register(metricsServer); err != nil {
		HandleError(err, "Metrics server registration error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(ctx); err != nil {
		HandleError(err, "Startup error")
	}

	logger.Info("Watching %s for session artifacts", store.Dir())
	logger.Info("Metrics available on %s/metrics", metricsServer.Addr())

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}

	logger.Info("Shutdown complete")
}
