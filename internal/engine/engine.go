package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sagarmemane135/omnihost/internal/audit"
	"github.com/sagarmemane135/omnihost/internal/logging"
	"github.com/sagarmemane135/omnihost/internal/remote"
	"github.com/sagarmemane135/omnihost/internal/template"
)

// Engine owns the bounded worker pool that fans a command out across the
// fleet and the aggregator that reduces the results.
type Engine struct {
	exec     remote.Executor
	logger   *logging.Logger
	recorder audit.Recorder
	identity string
	observer func(HostResult)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder attaches an audit recorder notified once per invocation.
func WithRecorder(recorder audit.Recorder, identity string) Option {
	return func(e *Engine) {
		e.recorder = recorder
		e.identity = identity
	}
}

// WithObserver registers a callback invoked for each terminal host result as
// it arrives, before finalization. Used for live progress display.
func WithObserver(fn func(HostResult)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// New creates an engine backed by the given executor.
func New(exec remote.Executor, logger *logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		exec:   exec,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the request across all targets and returns the finalized
// summary. Per-host failures never abort the run; the only fatal conditions
// are an invalid request and a command template that does not expand.
//
// Cancelling ctx stops unstarted hosts immediately (they report as
// cancelled) and propagates into in-flight attempts.
func (e *Engine) Run(ctx context.Context, req Request) (*Summary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Expand the command for every target before any dispatch, so a bad
	// template fails the whole run instead of half of it.
	commands := make([]string, len(req.Targets))
	for i, host := range req.Targets {
		cmd, err := template.Expand(req.Command, host)
		if err != nil {
			return nil, err
		}
		commands[i] = cmd
	}

	workers := req.effectiveParallelism()
	e.logger.LogDispatchStart(len(req.Targets), workers, req.MaxRetries)

	startedAt := time.Now()

	// Every index is queued up front; the buffer means no producer goroutine
	// and no host is ever dropped. Workers that observe cancellation still
	// drain the queue, emitting cancelled results for unstarted hosts.
	jobs := make(chan int, len(req.Targets))
	for i := range req.Targets {
		jobs <- i
	}
	close(jobs)

	results := make(chan HostResult)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- e.runUnit(ctx, req, idx, commands[idx])
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single-consumer collection: only this loop touches the result table.
	agg := newAggregator(req.Command, len(req.Targets))
	for r := range results {
		agg.place(r)
		if e.observer != nil {
			e.observer(r)
		}
	}

	summary := agg.finalize(startedAt, time.Since(startedAt))
	e.logger.LogDispatchComplete(len(req.Targets), summary.Succeeded, summary.Failed, summary.WallClock)

	e.recordAudit(req, summary)

	return summary, nil
}

// recordAudit hands the finalized summary to the audit recorder. Best
// effort: a failed audit write is logged and otherwise ignored.
func (e *Engine) recordAudit(req Request, summary *Summary) {
	if e.recorder == nil {
		return
	}

	rec := audit.NewRecord(e.identity, req.Command, summary.TargetNames(),
		summary.Succeeded, summary.Failed, summary.StartedAt, summary.WallClock)
	if err := e.recorder.Record(context.Background(), rec); err != nil {
		e.logger.LogAuditError(err)
	}
}
