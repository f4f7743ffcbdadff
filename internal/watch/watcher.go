// Package watch runs the analysis pipeline automatically as event
// artifacts appear in a session directory. New and rewritten artifacts
// are debounced per session so editor-style save sequences and slow
// uploads trigger a single run.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/moolen/primeline/internal/analysis"
	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/logging"
	"github.com/moolen/primeline/internal/session"
)

const (
	defaultDebounce = 500 * time.Millisecond
	startTimeout    = 5 * time.Second
)

// Config holds configuration for the Watcher.
type Config struct {
	// Debounce is the quiet period after the last change to an artifact
	// before it is analyzed. Default: 500ms.
	Debounce time.Duration

	// LoadOptions apply to every artifact load, for example OneBased
	// index translation.
	LoadOptions []artifact.LoadOption

	// PipelineOptions configure every analysis run.
	PipelineOptions []analysis.PipelineOption
}

// Watcher is a lifecycle component that analyzes session artifacts as
// they land. Analysis failures are logged and counted but never stop
// the watch loop.
type Watcher struct {
	config  Config
	store   *session.Store
	metrics *Metrics
	logger  *logging.Logger

	cancel  context.CancelFunc
	stopped chan struct{}
	ready   chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher over the store's session directory.
func NewWatcher(config Config, store *session.Store, metrics *Metrics) (*Watcher, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}
	if config.Debounce <= 0 {
		config.Debounce = defaultDebounce
	}
	return &Watcher{
		config:  config,
		store:   store,
		metrics: metrics,
		logger:  logging.GetLogger("watch"),
		stopped: make(chan struct{}),
		ready:   make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Name identifies the component in logs.
func (w *Watcher) Name() string {
	return "artifact-watcher"
}

// Start begins watching the session directory. It returns once the
// file watcher is fully initialized, so artifacts written after Start
// are never missed; sessions already on disk without an analysis are
// picked up by an initial scan.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.store.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.watchLoop(watchCtx)

	select {
	case <-w.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(startTimeout):
		return fmt.Errorf("timeout waiting for file watcher to initialize")
	}
	return nil
}

// Stop cancels the watch loop, drops debounced work that has not
// started, and waits for in-flight analyses within the context
// deadline.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	w.mu.Lock()
	for id, timer := range w.pending {
		timer.Stop()
		delete(w.pending, id)
		w.metrics.QueueDepth.Dec()
	}
	w.mu.Unlock()

	select {
	case <-w.stopped:
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for watch loop to stop")
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for in-flight analyses")
	}
}

// signalReady closes the ready channel exactly once.
func (w *Watcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.store.Dir()); err != nil {
		w.logger.Error("failed to watch %s: %v", w.store.Dir(), err)
		return
	}

	w.logger.InfoWithFields("watching session directory",
		logging.Field("dir", w.store.Dir()),
		logging.Field("debounce", w.config.Debounce.String()))
	w.signalReady()

	w.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				w.logger.Warn("watcher events channel closed")
				return
			}
			// Atomic writes land as a rename into place, plain writes as
			// create followed by writes. Removals need no reaction.
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Rename == fsnotify.Rename {
				id, isEvents := session.IDFromEventsFile(filepath.Base(event.Name))
				if !isEvents {
					continue
				}
				w.schedule(ctx, id)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				w.logger.Warn("watcher errors channel closed")
				return
			}
			w.logger.Warn("watcher error: %v", err)
		}
	}
}

// scanExisting schedules sessions that already have events on disk but
// no analysis yet. Sessions written while the daemon was down are
// picked up this way.
func (w *Watcher) scanExisting(ctx context.Context) {
	infos, err := w.store.List()
	if err != nil {
		w.logger.Warn("failed to scan existing sessions: %v", err)
		return
	}
	for _, info := range infos {
		if info.HasAnalysis {
			continue
		}
		w.schedule(ctx, info.ID)
	}
}

// schedule starts or resets the debounce timer for one session.
func (w *Watcher) schedule(ctx context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[id]; ok {
		timer.Stop()
	} else {
		w.metrics.QueueDepth.Inc()
	}
	w.pending[id] = time.AfterFunc(w.config.Debounce, func() {
		w.process(ctx, id)
	})
}

// process runs the analysis battery for one session and writes the
// report next to its artifacts.
func (w *Watcher) process(ctx context.Context, id string) {
	w.mu.Lock()
	if _, ok := w.pending[id]; !ok {
		// Dropped by Stop between the timer firing and this lock.
		w.mu.Unlock()
		return
	}
	delete(w.pending, id)
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	w.metrics.QueueDepth.Dec()
	if ctx.Err() != nil {
		return
	}

	started := time.Now()
	sess, err := w.store.Get(id)
	if err != nil {
		w.fail(id, "failed to resolve session", err)
		return
	}

	events, report, err := artifact.LoadEvents(sess.EventsPath(), w.config.LoadOptions...)
	if err != nil {
		w.fail(id, "failed to load event artifact", err)
		return
	}
	if len(report.Rejected) > 0 {
		w.logger.WarnWithFields("event artifact has rejected records",
			logging.Field("session_id", id),
			logging.Field("rejected", len(report.Rejected)))
	}

	dec, err := codec.NewCodec(events.Space)
	if err != nil {
		w.fail(id, "failed to build codec", err)
		return
	}

	pipeline := analysis.NewPipeline(dec, w.config.PipelineOptions...)
	result, err := pipeline.Run(ctx, analysis.Input{
		SessionID:  id,
		Components: events.Components,
		Events:     events.Events,
	})
	if err != nil {
		w.fail(id, "analysis run failed", err)
		return
	}

	if err := analysis.WriteReport(sess.AnalysisPath(), result); err != nil {
		w.fail(id, "failed to write analysis report", err)
		return
	}

	w.metrics.ArtifactsProcessed.Inc()
	w.metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
	w.logger.InfoWithFields("analysis written",
		logging.Field("session_id", id),
		logging.Field("events", result.EventCount),
		logging.Field("duration", time.Since(started).String()))
}

func (w *Watcher) fail(id, msg string, err error) {
	w.metrics.AnalysisErrors.Inc()
	w.logger.ErrorWithFields(msg,
		logging.Field("session_id", id),
		logging.Field("error", err.Error()))
}
