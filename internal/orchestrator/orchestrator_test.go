package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/bilingua/internal"
	"github.com/valpere/bilingua/internal/chunker"
	"github.com/valpere/bilingua/internal/translator"
)

type mockService struct {
	nameVal       string
	translateFunc func(ctx context.Context, req translator.Request) (*translator.Response, error)
	callCount     atomic.Int32
	active        atomic.Int32
	maxActive     atomic.Int32
}

func (m *mockService) Name() string { return m.nameVal }

func (m *mockService) Translate(ctx context.Context, req translator.Request) (*translator.Response, error) {
	m.callCount.Add(1)
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		cur := m.maxActive.Load()
		if n <= cur || m.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.translateFunc != nil {
		return m.translateFunc(ctx, req)
	}
	return echo(req), nil
}

func (m *mockService) IsAvailable(ctx context.Context) error { return nil }

func echo(req translator.Request) *translator.Response {
	out := make([]string, len(req.Segments))
	for i, s := range req.Segments {
		out[i] = "T:" + s
	}
	return &translator.Response{Translations: out}
}

func makeBatches(units, size int) []internal.Batch {
	us := make([]internal.TranslationUnit, units)
	for i := range us {
		us[i] = internal.TranslationUnit{RawText: fmt.Sprintf("unit %02d", i)}
	}
	return chunker.Partition(us, size)
}

func TestOrchestrator_New_Defaults(t *testing.T) {
	o := New(&mockService{nameVal: "mock"}, OrchestratorConfig{}, nil)
	if o.config.Concurrency != DefaultConcurrency {
		t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, o.config.Concurrency)
	}
	if o.config.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, o.config.Timeout)
	}
}

func TestOrchestrator_Execute_AllBatches(t *testing.T) {
	svc := &mockService{nameVal: "mock"}
	o := New(svc, OrchestratorConfig{Concurrency: 4, Timeout: time.Second}, nil)
	batches := makeBatches(40, 15)

	var (
		mu       sync.Mutex
		seen     = map[string]int{}
		progress []int
	)
	result := o.Execute(context.Background(), Job{URL: "https://example.com"}, batches, Hooks{
		OnResult: func(ctx context.Context, b internal.Batch, translations []string) error {
			mu.Lock()
			defer mu.Unlock()
			for i, u := range b.Units {
				seen[u.RawText]++
				if translations[i] != "T:"+u.RawText {
					t.Errorf("batch %d position %d: got %q for %q", b.ID, i, translations[i], u.RawText)
				}
			}
			return nil
		},
		OnProgress: func(done, total int) {
			mu.Lock()
			progress = append(progress, done)
			mu.Unlock()
			if total != 40 {
				t.Errorf("expected total 40, got %d", total)
			}
		},
	})

	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if svc.callCount.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", svc.callCount.Load())
	}
	if result.Completed != 40 || result.Total != 40 {
		t.Errorf("expected 40/40 completed, got %d/%d", result.Completed, result.Total)
	}
	if len(seen) != 40 {
		t.Errorf("expected 40 distinct units, got %d", len(seen))
	}
	for text, n := range seen {
		if n != 1 {
			t.Errorf("unit %q delivered %d times", text, n)
		}
	}
	if svc.maxActive.Load() > 3 {
		t.Errorf("more workers than batches: %d", svc.maxActive.Load())
	}
	if len(progress) != 3 || slices.Max(progress) != 40 {
		t.Errorf("unexpected progress sequence %v", progress)
	}
	if result.Cancelled || result.Failed != 0 || result.Pending != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestOrchestrator_Execute_ConcurrencyLimit(t *testing.T) {
	svc := &mockService{
		nameVal: "mock",
		translateFunc: func(ctx context.Context, req translator.Request) (*translator.Response, error) {
			time.Sleep(10 * time.Millisecond)
			return echo(req), nil
		},
	}
	o := New(svc, OrchestratorConfig{Concurrency: 2, Timeout: time.Second}, nil)
	result := o.Execute(context.Background(), Job{}, makeBatches(20, 2), Hooks{})

	if svc.maxActive.Load() > 2 {
		t.Errorf("expected at most 2 concurrent requests, saw %d", svc.maxActive.Load())
	}
	if result.Completed != 20 {
		t.Errorf("expected 20 completed, got %d", result.Completed)
	}
}

func TestOrchestrator_Execute_FailureContinues(t *testing.T) {
	svc := &mockService{
		nameVal: "mock",
		translateFunc: func(ctx context.Context, req translator.Request) (*translator.Response, error) {
			if req.Segments[0] == "unit 15" {
				return nil, &translator.StatusError{Code: 500}
			}
			return echo(req), nil
		},
	}
	o := New(svc, OrchestratorConfig{Concurrency: 1, Timeout: time.Second}, nil)

	var failures []translator.Class
	result := o.Execute(context.Background(), Job{}, makeBatches(40, 15), Hooks{
		OnFailure: func(b internal.Batch, err error, class translator.Class) {
			failures = append(failures, class)
			if b.ID != 1 {
				t.Errorf("unexpected failing batch %d", b.ID)
			}
		},
	})

	if svc.callCount.Load() != 3 {
		t.Errorf("each batch should be attempted exactly once, got %d calls", svc.callCount.Load())
	}
	if result.Completed != 25 || result.Failed != 15 {
		t.Errorf("expected 25 completed and 15 failed, got %d and %d", result.Completed, result.Failed)
	}
	if len(failures) != 1 || failures[0] != translator.ClassServer {
		t.Errorf("expected one server failure, got %v", failures)
	}
	if len(result.Errors) != 1 || result.Errors[0].BatchID != 1 {
		t.Errorf("unexpected errors %v", result.Errors)
	}
}

func TestOrchestrator_Execute_CountMismatch(t *testing.T) {
	svc := &mockService{
		nameVal: "mock",
		translateFunc: func(ctx context.Context, req translator.Request) (*translator.Response, error) {
			return &translator.Response{Translations: []string{"one"}}, nil
		},
	}
	o := New(svc, OrchestratorConfig{Timeout: time.Second}, nil)

	var results atomic.Int32
	result := o.Execute(context.Background(), Job{}, makeBatches(3, 15), Hooks{
		OnResult: func(context.Context, internal.Batch, []string) error {
			results.Add(1)
			return nil
		},
	})

	if results.Load() != 0 {
		t.Error("mismatched response must not reach OnResult")
	}
	if len(result.Errors) != 1 || result.Errors[0].Class != translator.ClassProtocol {
		t.Errorf("expected protocol failure, got %v", result.Errors)
	}
	if result.Completed != 0 {
		t.Errorf("failed batch should not count as completed, got %d", result.Completed)
	}
}

func TestOrchestrator_Execute_StopMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	svc := &mockService{
		nameVal: "mock",
		translateFunc: func(ctx context.Context, req translator.Request) (*translator.Response, error) {
			close(started)
			<-ctx.Done()
			return nil, fmt.Errorf("request failed: %w", ctx.Err())
		},
	}
	o := New(svc, OrchestratorConfig{Concurrency: 1, Timeout: 5 * time.Second}, nil)

	go func() {
		<-started
		cancel()
	}()

	var injected atomic.Int32
	var classes []translator.Class
	result := o.Execute(ctx, Job{}, makeBatches(40, 15), Hooks{
		OnResult: func(context.Context, internal.Batch, []string) error {
			injected.Add(1)
			return nil
		},
		OnFailure: func(b internal.Batch, err error, class translator.Class) {
			classes = append(classes, class)
		},
	})

	if svc.callCount.Load() != 1 {
		t.Errorf("no request should start after stop, got %d calls", svc.callCount.Load())
	}
	if injected.Load() != 0 {
		t.Error("no result should be delivered after stop")
	}
	if !result.Cancelled || result.Pending != 2 {
		t.Errorf("expected cancelled run with 2 pending batches, got %+v", result)
	}
	if len(classes) != 1 || classes[0] != translator.ClassCancelled {
		t.Errorf("expected one cancelled batch, got %v", classes)
	}
	if result.Failed != 0 {
		t.Errorf("cancelled batches are not failures, got %d", result.Failed)
	}
}

func TestOrchestrator_Execute_RequestTimeout(t *testing.T) {
	svc := &mockService{
		nameVal: "mock",
		translateFunc: func(ctx context.Context, req translator.Request) (*translator.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	o := New(svc, OrchestratorConfig{Concurrency: 2, Timeout: 20 * time.Millisecond}, nil)
	result := o.Execute(context.Background(), Job{}, makeBatches(4, 2), Hooks{})

	if result.Cancelled {
		t.Error("a request timeout must not cancel the run")
	}
	if svc.callCount.Load() != 2 {
		t.Errorf("expected both batches attempted, got %d", svc.callCount.Load())
	}
	for _, e := range result.Errors {
		if e.Class != translator.ClassNetwork {
			t.Errorf("expected network class for timeout, got %s", e.Class)
		}
		if !errors.Is(e, context.DeadlineExceeded) {
			t.Errorf("expected deadline error, got %v", e.Err)
		}
	}
}

func TestOrchestrator_Execute_Empty(t *testing.T) {
	svc := &mockService{nameVal: "mock"}
	result := New(svc, OrchestratorConfig{}, nil).Execute(context.Background(), Job{}, nil, Hooks{})
	if result.Total != 0 || svc.callCount.Load() != 0 {
		t.Errorf("empty run should not call the backend: %+v", result)
	}
}
