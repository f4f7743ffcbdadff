package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/moolen/primeline/internal/analysis"
	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/config"
	"github.com/moolen/primeline/internal/logging"
	"github.com/moolen/primeline/internal/report"
	"github.com/moolen/primeline/internal/session"
	"github.com/moolen/primeline/internal/tracing"
	"github.com/spf13/cobra"
)

var (
	analyzeEventsPath      string
	analyzeSessionID       string
	analyzeSessionDir      string
	analyzeAdjacencyPath   string
	analyzeOutPath         string
	analyzeSamples         int
	analyzeModes           int
	analyzeSigma           float64
	analyzeTopN            int
	analyzeBinWidth        float64
	analyzeOneBased        bool
	analyzeTracingEnabled  bool
	analyzeTracingEndpoint string
	analyzeTracingTLSCA    string
	analyzeTracingInsecure bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analysis battery over a session's events",
	Long: `Analyze loads a closed session's event artifact, rebuilds the label
space embedded in it, and runs the full battery: spectral content,
recurring patterns, anomalies, transition structure, and the statistics
digest. The JSON report lands next to the artifact when the session
lives in a store, or at --out.`,
	Run: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeEventsPath, "events", "", "Path to an events artifact (alternative to --session)")
	analyzeCmd.Flags().StringVar(&analyzeSessionID, "session", "", "Session id within the session directory")
	analyzeCmd.Flags().StringVar(&analyzeSessionDir, "session-dir", "", "Session directory (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeAdjacencyPath, "adjacency", "", "Path to an adjacency artifact to check against the events")
	analyzeCmd.Flags().StringVar(&analyzeOutPath, "out", "", "Write the JSON report to this path")
	analyzeCmd.Flags().IntVar(&analyzeSamples, "samples", 0, "Resample count for the spectral stage (default 128)")
	analyzeCmd.Flags().IntVar(&analyzeModes, "modes", 0, "SVD modes retained by the pattern stage (default 4)")
	analyzeCmd.Flags().Float64Var(&analyzeSigma, "sigma", 0, "Anomaly threshold in standard deviations (default 3.0)")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top", 0, "Offender ranking depth in the stats digest (default 10)")
	analyzeCmd.Flags().Float64Var(&analyzeBinWidth, "bin-width", 0, "Spectral bin width in seconds; switches to count-per-bin resampling")
	analyzeCmd.Flags().BoolVar(&analyzeOneBased, "one-based", false, "Treat artifact caller/callee indices as 1-based")
	analyzeCmd.Flags().BoolVar(&analyzeTracingEnabled, "tracing-enabled", false, "Enable OpenTelemetry tracing (default: false)")
	analyzeCmd.Flags().StringVar(&analyzeTracingEndpoint, "tracing-endpoint", "", "OTLP gRPC endpoint for traces (e.g., localhost:4317)")
	analyzeCmd.Flags().StringVar(&analyzeTracingTLSCA, "tracing-tls-ca", "", "Path to CA certificate for TLS verification (optional)")
	analyzeCmd.Flags().BoolVar(&analyzeTracingInsecure, "tracing-tls-insecure", false, "Skip TLS certificate verification (insecure, use only for testing)")
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg, logger := setup("analyze")

	eventsPath, sess, err := resolveEvents(cfg, analyzeEventsPath, analyzeSessionID, analyzeSessionDir)
	if err != nil {
		HandleError(err, "Cannot locate events artifact")
	}

	events, loadReport, err := artifact.LoadEvents(eventsPath, loadOptions(cfg, analyzeOneBased)...)
	if err != nil {
		HandleError(err, "Failed to load events artifact")
	}
	warnLoadReport(logger, loadReport)

	adjacencyPath := analyzeAdjacencyPath
	if adjacencyPath == "" && sess != nil {
		if _, err := os.Stat(sess.AdjacencyPath()); err == nil {
			adjacencyPath = sess.AdjacencyPath()
		}
	}
	if adjacencyPath != "" {
		adj, err := artifact.LoadAdjacency(adjacencyPath)
		if err != nil {
			HandleError(err, "Failed to load adjacency artifact")
		}
		if err := artifact.CheckConsistency(events, adj); err != nil {
			HandleError(err, "Adjacency artifact does not match the events")
		}
		logger.Debug("adjacency artifact %s is consistent with the events", adjacencyPath)
	}

	dec, err := codec.NewCodec(events.Space)
	if err != nil {
		HandleError(err, "Invalid label space in artifact")
	}

	popts := pipelineOptions(cfg, analyzeSamples, analyzeModes, analyzeSigma, analyzeTopN, analyzeBinWidth)

	tracingCfg := tracingConfig(cfg, analyzeTracingEnabled, analyzeTracingEndpoint, analyzeTracingTLSCA, analyzeTracingInsecure)
	if tracingCfg.Enabled {
		provider, err := tracing.NewProvider(tracingCfg)
		if err != nil {
			logger.Warn("Failed to initialize tracing (continuing without tracing): %v", err)
		} else if err := provider.Start(cmd.Context()); err != nil {
			logger.Warn("Failed to start tracing (continuing without tracing): %v", err)
		} else {
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := provider.Stop(stopCtx); err != nil {
					logger.Warn("Failed to flush traces: %v", err)
				}
			}()
			popts = append(popts, analysis.WithTracer(provider.GetTracer("analysis")))
		}
	}

	pipeline := analysis.NewPipeline(dec, popts...)
	rep, err := pipeline.Run(cmd.Context(), analysis.Input{
		SessionID:  events.SessionID,
		Components: events.Components,
		Events:     events.Events,
	})
	if err != nil {
		HandleError(err, "Analysis failed")
	}

	outPath := analyzeOutPath
	if outPath == "" && sess != nil {
		outPath = sess.AnalysisPath()
	}
	if outPath != "" {
		if err := analysis.WriteReport(outPath, rep); err != nil {
			HandleError(err, "Failed to write report")
		}
		logger.Info("Report written to %s", outPath)
	}

	fmt.Println(report.Summary(rep))
}

// resolveEvents locates the events artifact from either an explicit
// path or a session id in the store. Exactly one of the two must be
// given; the returned session is nil for explicit paths.
func resolveEvents(cfg *config.Config, eventsPath, sessionID, sessionDir string) (string, *session.Session, error) {
	switch {
	case eventsPath != "" && sessionID != "":
		return "", nil, fmt.Errorf("--events and --session are mutually exclusive")
	case eventsPath != "":
		return eventsPath, nil, nil
	case sessionID != "":
		store, err := session.NewStore(resolveSessionDir(cfg, sessionDir))
		if err != nil {
			return "", nil, err
		}
		sess, err := store.Get(sessionID)
		if err != nil {
			return "", nil, err
		}
		return sess.EventsPath(), sess, nil
	default:
		return "", nil, fmt.Errorf("either --events or --session is required")
	}
}

// resolveSessionDir applies the config default when no flag is given.
func resolveSessionDir(cfg *config.Config, flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.SessionDir
}

// loadOptions builds the artifact load options shared by the commands.
func loadOptions(cfg *config.Config, oneBased bool) []artifact.LoadOption {
	if oneBased || cfg.OneBased {
		return []artifact.LoadOption{artifact.OneBased()}
	}
	return nil
}

// warnLoadReport surfaces lenient-load rejections and advisories.
func warnLoadReport(logger *logging.Logger, rep *artifact.LoadReport) {
	if rep == nil {
		return
	}
	if len(rep.Rejected) > 0 {
		logger.Warn("%d records were rejected during load, continuing with the remaining %d",
			len(rep.Rejected), rep.Accepted)
	}
	for _, advisory := range rep.Advisories {
		logger.Warn("%s", advisory)
	}
}

// pipelineOptions merges flag values over the config file's analysis
// section. Zero means the analyzer default.
func pipelineOptions(cfg *config.Config, samples, modes int, sigma float64, topN int, binWidth float64) []analysis.PipelineOption {
	if samples == 0 {
		samples = cfg.Analysis.Samples
	}
	if modes == 0 {
		modes = cfg.Analysis.Modes
	}
	if sigma == 0 {
		sigma = cfg.Analysis.Sigma
	}
	if topN == 0 {
		topN = cfg.Analysis.TopN
	}
	if binWidth == 0 {
		binWidth = cfg.Analysis.BinWidth
	}

	var opts []analysis.PipelineOption
	if samples > 0 {
		opts = append(opts, analysis.WithSampleCount(samples))
	}
	if modes > 0 {
		opts = append(opts, analysis.WithModes(modes))
	}
	if sigma > 0 {
		opts = append(opts, analysis.WithSigmaMultiplier(sigma))
	}
	if topN > 0 {
		opts = append(opts, analysis.WithTopN(topN))
	}
	if binWidth > 0 {
		opts = append(opts, analysis.WithCountBins(binWidth))
	}
	return opts
}

// tracingConfig merges tracing flags over the config file settings.
func tracingConfig(cfg *config.Config, enabled bool, endpoint, tlsCA string, insecure bool) tracing.Config {
	out := tracing.Config{
		Enabled:     enabled || cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		TLSCAPath:   cfg.Tracing.TLSCAPath,
		TLSInsecure: insecure || cfg.Tracing.TLSInsecure,
	}
	if endpoint != "" {
		out.Endpoint = endpoint
	}
	if tlsCA != "" {
		out.TLSCAPath = tlsCA
	}
	return out
}
