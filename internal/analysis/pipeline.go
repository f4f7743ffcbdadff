package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/logging"
	"github.com/moolen/primeline/internal/tensor"
)

// Pipeline runs the full analysis battery over one session: it builds the
// tensor once, then fans the analyzers out in parallel over read-only
// views of it. Analyzer failures become skip reasons on the report, never
// failures of the whole run.
type Pipeline struct {
	codec       *codec.Codec
	sampleCount int
	modes       int
	sigma       float64
	topN        int
	binWidth    float64
	tracer      trace.Tracer
	logger      *logging.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSampleCount sets the spectral resampling grid size.
func WithSampleCount(n int) PipelineOption {
	return func(p *Pipeline) { p.sampleCount = n }
}

// WithModes sets the number of singular value modes reported.
func WithModes(k int) PipelineOption {
	return func(p *Pipeline) { p.modes = k }
}

// WithSigmaMultiplier sets the anomaly threshold multiplier.
func WithSigmaMultiplier(sigma float64) PipelineOption {
	return func(p *Pipeline) { p.sigma = sigma }
}

// WithTopN bounds the stats digest rankings.
func WithTopN(n int) PipelineOption {
	return func(p *Pipeline) { p.topN = n }
}

// WithCountBins switches the spectral stage to the count-per-bin variant
// with the given bin width in seconds.
func WithCountBins(width float64) PipelineOption {
	return func(p *Pipeline) { p.binWidth = width }
}

// WithTracer attaches an OTel tracer; stages then open spans.
func WithTracer(tracer trace.Tracer) PipelineOption {
	return func(p *Pipeline) { p.tracer = tracer }
}

// NewPipeline creates a pipeline decoding against the given codec.
// Unset options fall back to each analyzer's default.
func NewPipeline(dec *codec.Codec, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		codec:  dec,
		logger: logging.GetLogger("analysis.pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Input is one closed session batch.
type Input struct {
	SessionID  string
	Components []string
	Events     []tensor.Event
}

// Run executes the battery and returns the combined report. It fails only
// when the tensor itself cannot be built; per-analysis problems are
// recorded under Skipped.
func (p *Pipeline) Run(ctx context.Context, input Input) (*Report, error) {
	n := len(input.Components)
	if n == 0 {
		return nil, fmt.Errorf("no components declared")
	}

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "analysis.pipeline")
		defer span.End()
	}

	start := time.Now()
	errTensor, err := tensor.Build(input.Events, n)
	if err != nil {
		if span != nil {
			span.RecordError(err)
		}
		return nil, fmt.Errorf("failed to build error tensor: %w", err)
	}
	if span != nil {
		span.SetAttributes(
			attribute.String("session_id", input.SessionID),
			attribute.Int("event_count", errTensor.T()),
			attribute.Int("component_count", n),
		)
	}

	report := &Report{
		SessionID:      input.SessionID,
		GeneratedAt:    time.Now().UTC(),
		EventCount:     errTensor.T(),
		ComponentCount: n,
		Skipped:        map[string]string{},
	}

	times := make([]float64, len(input.Events))
	values := make([]float64, len(input.Events))
	for i, e := range input.Events {
		times[i] = e.Time
		values[i] = e.LogValue
	}

	var mu sync.Mutex
	skip := func(name string, reason error) {
		p.logger.Warn("skipping %s analysis: %v", name, reason)
		mu.Lock()
		report.Skipped[name] = reason.Error()
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer p.stageSpan(gctx, "analysis.spectral")()
		var out *SpectralReport
		var err error
		if p.binWidth > 0 {
			var counts []float64
			counts, err = CountSeries(times, p.binWidth)
			if err == nil {
				out, err = NewSpectralAnalyzer(p.sampleCount).AnalyzeCounts(counts, p.binWidth)
			}
		} else {
			out, err = NewSpectralAnalyzer(p.sampleCount).Analyze(times, values)
		}
		if err != nil {
			skip("spectral", err)
			return nil
		}
		report.Spectral = out
		return nil
	})

	g.Go(func() error {
		defer p.stageSpan(gctx, "analysis.pattern")()
		m, err := errTensor.FlattenSpatial()
		if err == nil {
			var out *PatternReport
			out, err = NewPatternExtractor(p.modes).Extract(m)
			if err == nil {
				report.Patterns = out
				return nil
			}
		}
		skip("pattern", err)
		return nil
	})

	g.Go(func() error {
		defer p.stageSpan(gctx, "analysis.anomaly")()
		report.Anomalies = NewAnomalyDetector(p.sigma).Detect(values)
		return nil
	})

	g.Go(func() error {
		defer p.stageSpan(gctx, "analysis.transition")()
		out, err := NewTransitionModel().Build(input.Events, n)
		if err != nil {
			skip("transition", err)
			return nil
		}
		report.Transitions = out
		return nil
	})

	g.Go(func() error {
		defer p.stageSpan(gctx, "analysis.stats")()
		out, err := BuildStats(input.Events, input.Components, p.codec, p.topN)
		if err != nil {
			skip("stats", err)
			return nil
		}
		report.Stats = out
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.InfoWithFields("analysis complete",
		logging.Field("session_id", input.SessionID),
		logging.Field("events", report.EventCount),
		logging.Field("components", n),
		logging.Field("skipped", len(report.Skipped)),
		logging.Field("duration", time.Since(start).String()),
	)
	return report, nil
}

// stageSpan opens a per-stage span when tracing is attached and returns
// the matching end function.
func (p *Pipeline) stageSpan(ctx context.Context, name string) func() {
	if p.tracer == nil {
		return func() {}
	}
	_, span := p.tracer.Start(ctx, name)
	return func() { span.End() }
}
