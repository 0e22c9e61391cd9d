package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valpere/bilingua/internal"
	"github.com/valpere/bilingua/internal/chunker"
	"github.com/valpere/bilingua/internal/dom"
	"github.com/valpere/bilingua/internal/metrics"
	"github.com/valpere/bilingua/internal/orchestrator"
	"github.com/valpere/bilingua/internal/translator"
)

const DefaultSettleDelay = 3 * time.Second

// Control labels shown through the Reporter.
const (
	LabelStart = "Start translation"
	LabelStop  = "Stop translation"
)

// Reporter is the control surface: a status line with a primary label, a
// secondary detail and an active flag, plus one-off notices.
type Reporter interface {
	Status(primary, secondary string, active bool)
	Notify(msg string)
}

// Recorder persists run summaries. Errors are logged, never fatal.
type Recorder interface {
	SaveRun(ctx context.Context, run internal.RunRecord) error
	SaveFailure(ctx context.Context, f internal.BatchFailure) error
}

// Options are the per-document session settings.
type Options struct {
	// Document names the translated document in the run journal.
	Document   string
	URL        string
	TargetLang string
	BatchSize  int
	// SettleDelay is how long a settled session stays visible before the
	// controller returns to Idle.
	SettleDelay time.Duration
}

// Config wires a Controller to its collaborators. Reporter and Recorder
// may be nil.
type Config struct {
	Document     *dom.Document
	Selector     *dom.Selector
	Orchestrator *orchestrator.Orchestrator
	Reporter     Reporter
	Recorder     Recorder
	Logger       *zap.Logger
	Options      Options
}

// Controller supervises sessions over one document. Only one session is
// live at a time: Start while a session is live stops it instead.
type Controller struct {
	doc      *dom.Document
	selector *dom.Selector
	injector *dom.Injector
	orch     *orchestrator.Orchestrator
	reporter Reporter
	recorder Recorder
	opts     Options
	logger   *zap.Logger

	mu      sync.Mutex
	current *Session
	reset   *time.Timer
}

func New(cfg Config) (*Controller, error) {
	if cfg.Document == nil || cfg.Selector == nil || cfg.Orchestrator == nil {
		return nil, errors.New("session: document, selector and orchestrator are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = nopReporter{}
	}
	if cfg.Options.BatchSize <= 0 {
		cfg.Options.BatchSize = chunker.DefaultBatchSize
	}
	if cfg.Options.SettleDelay <= 0 {
		cfg.Options.SettleDelay = DefaultSettleDelay
	}
	return &Controller{
		doc:      cfg.Document,
		selector: cfg.Selector,
		injector: dom.NewInjector(cfg.Document, cfg.Logger),
		orch:     cfg.Orchestrator,
		reporter: cfg.Reporter,
		recorder: cfg.Recorder,
		opts:     cfg.Options,
		logger:   cfg.Logger,
	}, nil
}

// Start begins a new session and returns it. If a session is already live
// it is stopped instead and Start returns nil.
func (c *Controller) Start(ctx context.Context) *Session {
	c.mu.Lock()
	if c.current != nil && c.current.live() {
		c.mu.Unlock()
		c.Stop()
		return nil
	}
	if c.reset != nil {
		c.reset.Stop()
		c.reset = nil
	}

	sctx, cancel := context.WithCancel(ctx)
	s := newSession(uuid.NewString(), cancel)
	s.setState(Scanning)
	c.current = s
	c.mu.Unlock()

	c.logger.Info("session started", zap.String("session", s.ID))
	c.reporter.Status(LabelStop, "scanning…", true)

	go c.run(sctx, s)
	return s
}

// Toggle starts a session when none is live and stops the live one
// otherwise. It reports whether a session was started.
func (c *Controller) Toggle(ctx context.Context) bool {
	return c.Start(ctx) != nil
}

// Stop cancels the live session, if any, and releases the in-flight marks
// of its units. Insertions already under way complete; none start after.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil || !s.beginStop() {
		return false
	}

	s.cancel()
	released := c.injector.Release(s.selected())
	c.logger.Info("session stopping",
		zap.String("session", s.ID),
		zap.Int("released", released))
	c.reporter.Status(LabelStart, StatusStopped, false)
	return true
}

// Current returns the live or most recently settled session, or nil once
// the controller is back to Idle.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// State returns the state of the current session, or Idle.
func (c *Controller) State() State {
	if s := c.Current(); s != nil {
		return s.State()
	}
	return Idle
}

// Wait blocks until the current session settles or ctx is done.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	s := c.Current()
	if s == nil {
		return Snapshot{State: Idle}, nil
	}
	select {
	case <-s.Done():
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// AutoStart starts a session after delay unless ctx ends first or a
// session is already live.
func (c *Controller) AutoStart(ctx context.Context, delay time.Duration) *Session {
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
	if s := c.Current(); s != nil && s.live() {
		return nil
	}
	return c.Start(ctx)
}

func (c *Controller) run(ctx context.Context, s *Session) {
	defer close(s.done)

	units := c.selector.Select(c.doc)
	s.scanned(units)

	if len(units) == 0 {
		c.finish(s, true)
		return
	}

	total := len(units)
	batches := chunker.Partition(units, c.opts.BatchSize)
	c.logger.Info("session running",
		zap.String("session", s.ID),
		zap.Int("units", total),
		zap.Int("batches", len(batches)))
	if s.State() == Running {
		c.reporter.Status(LabelStop, fmt.Sprintf("0 / %d", total), true)
	}

	job := orchestrator.Job{URL: c.opts.URL, TargetLang: c.opts.TargetLang}
	res := c.orch.Execute(ctx, job, batches, orchestrator.Hooks{
		OnResult: func(ctx context.Context, b internal.Batch, translations []string) error {
			n, err := c.injector.InjectBatch(ctx, b.Units, translations)
			metrics.UnitsInjected.Add(float64(n))
			return err
		},
		OnFailure: func(b internal.Batch, err error, class translator.Class) {
			c.injector.Release(b.Units)
			if class == translator.ClassCancelled {
				return
			}
			s.addFailed(len(b.Units))
			c.reporter.Notify(translator.Describe(err))
			c.saveFailure(internal.BatchFailure{
				RunID:      s.ID,
				BatchID:    b.ID,
				Units:      len(b.Units),
				ErrorClass: class.String(),
				Message:    err.Error(),
				OccurredAt: time.Now(),
			})
		},
		OnProgress: func(done, total int) {
			s.progress(done)
			if s.State() == Running {
				c.reporter.Status(LabelStop, fmt.Sprintf("%d / %d", min(done, total), total), true)
			}
		},
	})

	// Units of batches never dispatched still carry InFlight.
	c.injector.Release(units)
	s.progress(res.Completed)
	c.finish(s, false)
}

func (c *Controller) finish(s *Session, nothingFound bool) {
	status := s.settle(nothingFound)
	metrics.SessionsTotal.WithLabelValues(status).Inc()

	snap := s.Snapshot()
	c.logger.Info("session settled",
		zap.String("session", s.ID),
		zap.String("status", status),
		zap.Int("completed", snap.Completed),
		zap.Int("total", snap.Total),
		zap.Int("failed", snap.Failed))
	c.reporter.Status(LabelStart, status, false)

	if c.recorder != nil {
		rec := s.record(c.opts.Document, c.opts.URL, c.opts.TargetLang)
		if err := c.recorder.SaveRun(context.Background(), rec); err != nil {
			c.logger.Warn("failed to record run", zap.String("session", s.ID), zap.Error(err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != s {
		return
	}
	c.reset = time.AfterFunc(c.opts.SettleDelay, func() {
		c.mu.Lock()
		if c.current != s {
			c.mu.Unlock()
			return
		}
		c.current = nil
		c.reset = nil
		c.mu.Unlock()
		c.reporter.Status(LabelStart, "", false)
	})
}

func (c *Controller) saveFailure(f internal.BatchFailure) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.SaveFailure(context.Background(), f); err != nil {
		c.logger.Warn("failed to record batch failure", zap.String("session", f.RunID), zap.Error(err))
	}
}

type nopReporter struct{}

func (nopReporter) Status(string, string, bool) {}
func (nopReporter) Notify(string)               {}
