package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospector/internal/browser"
	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/internal/store"
)

// SessionManager supplies browser sessions to extraction workers.
type SessionManager interface {
	Acquire(ctx context.Context) (*browser.Session, error)
	Release(s *browser.Session)
	Navigate(ctx context.Context, s *browser.Session, url, wait string) (string, error)
	Discard(s *browser.Session)
}

// Extractor converts rendered markup into a structured record.
type Extractor interface {
	Extract(raw, url string, spec model.ExtractionSpec) (*model.ExtractionRecord, error)
}

// Generator produces derived text from an extraction record. The attempt
// count is reported on success and failure alike.
type Generator interface {
	Generate(ctx context.Context, record *model.ExtractionRecord, template string) (*model.GenerationResult, int, error)
}

// SummarySink writes the tabular run artifact.
type SummarySink interface {
	Export(run *model.PipelineRun) error
}

// DocumentSink writes the per-target document artifact.
type DocumentSink interface {
	ExportDocument(t *model.Target) (string, error)
}

// Coordinator drives each target through the pipeline state machine:
// Queued → Extracting → Extracted → Generating → Generated → Exported,
// with Failed absorbing non-retryable errors and exhausted budgets. Up to
// pool-size targets advance concurrently; a failure in one never blocks
// or cancels the others.
type Coordinator struct {
	cfg       *config.Config
	sessions  SessionManager
	extractor Extractor
	generator Generator
	summary   SummarySink
	documents DocumentSink
	store     store.Store

	events chan StatusEvent
}

// New creates a Coordinator. summary, documents, and st may be nil, which
// disables the corresponding side output.
func New(
	cfg *config.Config,
	sessions SessionManager,
	extractor Extractor,
	generator Generator,
	summary SummarySink,
	documents DocumentSink,
	st store.Store,
) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		sessions:  sessions,
		extractor: extractor,
		generator: generator,
		summary:   summary,
		documents: documents,
		store:     st,
		events:    make(chan StatusEvent, 256),
	}
}

// Run processes all targets and returns the finalized run. Cancelling ctx
// stops admission of new stage entries; in-flight operations get the
// configured grace period before being abandoned. Per-target failures are
// recorded on the targets, never returned as an error — partial failure
// does not abort the run.
func (c *Coordinator) Run(ctx context.Context, targets []*model.Target) (*model.PipelineRun, error) {
	run := &model.PipelineRun{
		ID:        uuid.New().String(),
		Targets:   targets,
		StartedAt: time.Now().UTC(),
	}

	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting run",
		zap.Int("targets", len(targets)),
		zap.Int("workers", c.cfg.Browser.PoolSize),
	)

	for _, t := range targets {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.Status = model.StatusQueued
		t.EnqueuedAt = time.Now().UTC()
	}

	if c.store != nil {
		if err := c.store.CreateRun(ctx, run); err != nil {
			log.Warn("pipeline: create run record failed", zap.Error(err))
		}
		for _, t := range targets {
			c.persist(run.ID, t)
		}
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.Browser.PoolSize)
	for _, t := range targets {
		g.Go(func() error {
			c.process(ctx, run, t)
			return nil
		})
	}
	_ = g.Wait()

	for _, t := range targets {
		if t.Generation != nil {
			run.Usage.Add(t.Generation.Usage)
		}
	}
	run.FinishedAt = time.Now().UTC()

	if c.summary != nil {
		if err := c.summary.Export(run); err != nil {
			// Export failures are reported but never alter target status.
			log.Error("pipeline: summary export failed", zap.Error(err))
			c.emit(StatusEvent{Kind: model.FailureExportIO, Err: err.Error(), At: time.Now().UTC()})
		}
	}

	if c.store != nil {
		if err := c.store.FinishRun(ctx, run); err != nil {
			log.Warn("pipeline: finish run record failed", zap.Error(err))
		}
	}

	close(c.events)

	summary := run.Summary()
	log.Info("pipeline: run complete",
		zap.Int("exported", summary.Exported),
		zap.Int("failed", summary.Failed),
		zap.Int64("duration_ms", summary.DurationMS),
		zap.Int64("input_tokens", run.Usage.InputTokens),
		zap.Int64("output_tokens", run.Usage.OutputTokens),
	)

	return run, nil
}

// process drives one target through all stages sequentially. Stage order
// is never reordered; each stage entry is admission-gated on the run
// context.
func (c *Coordinator) process(ctx context.Context, run *model.PipelineRun, t *model.Target) {
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("target_id", t.ID), zap.String("url", t.URL))

	// ----- Extraction -----
	if ctx.Err() != nil {
		c.fail(run, t, model.FailureCanceled, ctx.Err())
		return
	}
	c.transition(run, t, model.StatusExtracting)

	record, err := c.extractTarget(ctx, t)
	if err != nil {
		kind := model.KindOf(err)
		if kind == model.FailureUnknown && ctx.Err() != nil {
			kind = model.FailureCanceled
		}
		log.Warn("pipeline: extraction failed",
			zap.Int("attempts", t.ExtractAttempts),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		c.fail(run, t, kind, err)
		return
	}
	t.Record = record
	c.transition(run, t, model.StatusExtracted)

	// ----- Generation -----
	if ctx.Err() != nil {
		c.fail(run, t, model.FailureCanceled, ctx.Err())
		return
	}
	c.transition(run, t, model.StatusGenerating)

	opCtx, done := c.graceful(ctx)
	result, attempts, err := c.generator.Generate(opCtx, t.Record, t.PromptTemplate)
	done()
	t.GenerateAttempts = attempts
	if err != nil {
		kind := model.KindOf(err)
		if kind == model.FailureUnknown && ctx.Err() != nil {
			kind = model.FailureCanceled
		}
		log.Warn("pipeline: generation failed",
			zap.Int("attempts", attempts),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		c.fail(run, t, kind, err)
		return
	}
	t.Generation = result
	c.transition(run, t, model.StatusGenerated)

	// ----- Export -----
	if c.documents != nil {
		if _, err := c.documents.ExportDocument(t); err != nil {
			// Reported, not retried; the target keeps its Generated status.
			log.Error("pipeline: document export failed", zap.Error(err))
			c.emit(StatusEvent{
				TargetID: t.ID, URL: t.URL,
				From: t.Status, To: t.Status,
				Kind: model.FailureExportIO, Err: err.Error(),
				At: time.Now().UTC(),
			})
			return
		}
	}
	c.transition(run, t, model.StatusExported)
}

// extractTarget runs the extraction stage under its retry budget.
// Transient navigation failures (timeouts, crashed sessions) are retried;
// content errors are not. The attempt count is recorded on the target.
func (c *Coordinator) extractTarget(ctx context.Context, t *model.Target) (*model.ExtractionRecord, error) {
	policy := resilience.Policy{
		MaxRetries:     c.cfg.Pipeline.ExtractionRetryLimit,
		InitialBackoff: time.Second,
		ShouldRetry: func(err error) bool {
			return model.KindOf(err).Retryable()
		},
		OnRetry: resilience.RetryLogger("pipeline", "extract"),
	}

	record, attempts, err := resilience.Do(ctx, policy, func(ctx context.Context) (*model.ExtractionRecord, error) {
		return c.extractOnce(ctx, t)
	})
	t.ExtractAttempts = attempts
	return record, err
}

// extractOnce acquires a session, navigates, and extracts. The session is
// always returned to the pool; an operation abandoned at shutdown
// discards it instead of reusing a browser in an unknown state.
func (c *Coordinator) extractOnce(ctx context.Context, t *model.Target) (*model.ExtractionRecord, error) {
	s, err := c.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.sessions.Release(s)

	spec := model.ExtractionSpec{}
	if t.Spec != nil {
		spec = *t.Spec
	}

	opCtx, done := c.graceful(ctx)
	defer done()

	raw, err := c.sessions.Navigate(opCtx, s, t.URL, spec.Wait)
	if err != nil {
		if ctx.Err() != nil {
			c.sessions.Discard(s)
		}
		return nil, err
	}

	return c.extractor.Extract(raw, t.URL, spec)
}

// graceful returns a context that survives run cancellation for the
// configured grace period, so started browser and network operations are
// completed or timed out rather than silently abandoned.
func (c *Coordinator) graceful(runCtx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(context.WithoutCancel(runCtx))
	stop := context.AfterFunc(runCtx, func() {
		timer := time.NewTimer(c.cfg.Pipeline.ShutdownGrace())
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-opCtx.Done():
		}
	})
	return opCtx, func() {
		stop()
		cancel()
	}
}

// transition advances the target's status, emitting and persisting the
// change. Transitions are driven only from the owning worker, so a state
// machine violation here is a programming error.
func (c *Coordinator) transition(run *model.PipelineRun, t *model.Target, next model.TargetStatus) {
	from := t.Status
	if err := t.Advance(next); err != nil {
		zap.L().Error("pipeline: illegal transition", zap.Error(err))
		return
	}
	c.emit(StatusEvent{
		TargetID: t.ID, URL: t.URL,
		From: from, To: next,
		At: time.Now().UTC(),
	})
	c.persist(run.ID, t)
}

// fail moves the target to Failed with its reason, emitting and persisting.
func (c *Coordinator) fail(run *model.PipelineRun, t *model.Target, kind model.FailureKind, err error) {
	from := t.Status
	t.Fail(kind, err)
	ev := StatusEvent{
		TargetID: t.ID, URL: t.URL,
		From: from, To: model.StatusFailed,
		Kind: kind,
		At:   time.Now().UTC(),
	}
	if err != nil {
		ev.Err = err.Error()
	}
	c.emit(ev)
	c.persist(run.ID, t)
}

// persist snapshots the target's state; store failures are logged only.
func (c *Coordinator) persist(runID string, t *model.Target) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.UpsertTarget(ctx, runID, t); err != nil {
		zap.L().Warn("pipeline: persist target failed",
			zap.String("target_id", t.ID), zap.Error(err))
	}
}
