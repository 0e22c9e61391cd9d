// Package orchestrator dispatches batches to a translation backend with a
// fixed number of workers sharing one FIFO queue. Each batch is attempted
// exactly once; failures are reported per batch and never stop the run.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/bilingua/internal"
	"github.com/valpere/bilingua/internal/chunker"
	"github.com/valpere/bilingua/internal/metrics"
	"github.com/valpere/bilingua/internal/translator"
)

// Defaults applied by New to zero config fields.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 60 * time.Second
)

// OrchestratorConfig bounds how batches are dispatched.
type OrchestratorConfig struct {
	// Concurrency caps the number of in-flight requests.
	Concurrency int
	// Timeout bounds each backend request.
	Timeout time.Duration
}

// Job carries the request fields shared by every batch of a run.
type Job struct {
	URL        string
	TargetLang string
}

// Hooks connect the dispatcher to its caller. All hooks may be nil and are
// called from worker goroutines.
type Hooks struct {
	// OnResult receives the translations of a successful batch, in unit
	// order. A non-nil error turns the batch into a failure.
	OnResult func(ctx context.Context, batch internal.Batch, translations []string) error
	// OnFailure is called once for every batch that did not complete.
	OnFailure func(batch internal.Batch, err error, class translator.Class)
	// OnProgress reports completed units after each successful batch.
	OnProgress func(done, total int)
}

// BatchError describes one failed batch.
type BatchError struct {
	BatchID int
	Units   int
	Class   translator.Class
	Err     error
}

func (e BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d units, %s): %v", e.BatchID, e.Units, e.Class, e.Err)
}

func (e BatchError) Unwrap() error { return e.Err }

// OrchestratorResult summarises one Execute call.
type OrchestratorResult struct {
	Total     int
	Completed int
	// Failed counts units of batches that failed for a reason other than
	// cancellation.
	Failed int
	// Pending counts batches never taken from the queue.
	Pending   int
	Succeeded int
	Errors    []BatchError
	Cancelled bool
}

// Orchestrator sends batches to one translation service.
type Orchestrator struct {
	service translator.Service
	config  OrchestratorConfig
	logger  *zap.Logger
}

// New returns an Orchestrator for service. Zero config fields take the
// defaults and a nil logger discards output.
func New(service translator.Service, config OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{service: service, config: config, logger: logger}
}

// Execute runs batches through min(Concurrency, len(batches)) workers and
// blocks until every worker has exited. Workers check ctx before taking
// the next batch, so after cancellation no new request starts; requests in
// flight are aborted through their context.
func (o *Orchestrator) Execute(ctx context.Context, job Job, batches []internal.Batch, hooks Hooks) *OrchestratorResult {
	result := &OrchestratorResult{Total: chunker.Count(batches)}
	if len(batches) == 0 {
		return result
	}

	queue := make(chan internal.Batch, len(batches))
	for _, b := range batches {
		queue <- b
	}
	close(queue)

	var (
		mu        sync.Mutex
		completed atomic.Int64
	)

	fail := func(batch internal.Batch, err error) {
		class := translator.Classify(err)
		if ctx.Err() != nil {
			class = translator.ClassCancelled
		}
		metrics.BatchesTotal.WithLabelValues(class.String()).Inc()

		mu.Lock()
		result.Errors = append(result.Errors, BatchError{BatchID: batch.ID, Units: len(batch.Units), Class: class, Err: err})
		if class != translator.ClassCancelled {
			result.Failed += len(batch.Units)
		}
		mu.Unlock()

		if class == translator.ClassCancelled {
			o.logger.Debug("batch cancelled", zap.Int("batch", batch.ID))
		} else {
			o.logger.Warn("batch failed",
				zap.Int("batch", batch.ID),
				zap.Int("units", len(batch.Units)),
				zap.Stringer("class", class),
				zap.Error(err))
		}
		if hooks.OnFailure != nil {
			hooks.OnFailure(batch, err, class)
		}
	}

	process := func(batch internal.Batch) {
		reqCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()

		start := time.Now()
		resp, err := o.service.Translate(reqCtx, translator.Request{
			URL:        job.URL,
			Segments:   batch.Segments(),
			TargetLang: job.TargetLang,
		})
		metrics.BatchDuration.WithLabelValues(o.service.Name()).Observe(time.Since(start).Seconds())

		if err == nil && len(resp.Translations) != len(batch.Units) {
			err = &translator.ProtocolError{
				Reason: fmt.Sprintf("got %d translations for %d segments", len(resp.Translations), len(batch.Units)),
			}
		}
		if err != nil {
			fail(batch, err)
			return
		}

		if hooks.OnResult != nil {
			if err := hooks.OnResult(ctx, batch, resp.Translations); err != nil {
				fail(batch, err)
				return
			}
		}

		done := completed.Add(int64(len(batch.Units)))
		metrics.BatchesTotal.WithLabelValues("ok").Inc()
		mu.Lock()
		result.Succeeded++
		mu.Unlock()

		o.logger.Debug("batch completed",
			zap.Int("batch", batch.ID),
			zap.Int("units", len(batch.Units)),
			zap.Duration("latency", time.Since(start)))
		if hooks.OnProgress != nil {
			hooks.OnProgress(int(done), result.Total)
		}
	}

	workers := min(o.config.Concurrency, len(batches))
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for ctx.Err() == nil {
				batch, ok := <-queue
				if !ok {
					return nil
				}
				process(batch)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Completed = int(completed.Load())
	result.Pending = len(queue)
	result.Cancelled = ctx.Err() != nil
	return result
}
