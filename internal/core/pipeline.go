package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JonMunkholm/testsets/internal/retry"
)

// Pipeline writes a document to a store, one row at a time, in stage order.
type Pipeline struct {
	store    Store
	policy   retry.Policy
	metrics  *Metrics
	progress ProgressCallback
	logger   *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRetryPolicy replaces the retry policy. A policy without a Retryable
// predicate retries only transient errors.
func WithRetryPolicy(p retry.Policy) PipelineOption {
	return func(pl *Pipeline) { pl.policy = p }
}

// WithMetrics records row and retry counts on m.
func WithMetrics(m *Metrics) PipelineOption {
	return func(pl *Pipeline) { pl.metrics = m }
}

// WithProgress reports every state transition to fn.
func WithProgress(fn ProgressCallback) PipelineOption {
	return func(pl *Pipeline) { pl.progress = fn }
}

// WithLogger sets the logger used for stage and retry events.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(pl *Pipeline) { pl.logger = l }
}

// NewPipeline returns a pipeline writing to store.
func NewPipeline(store Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:  store,
		policy: retry.DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.policy.Retryable == nil {
		p.policy.Retryable = IsTransient
	}
	return p
}

// Run validates doc and upserts every row in stage order.
//
// The first failing row aborts the run: no further rows of that stage or any
// later stage are attempted, and the result carries the number of rows
// committed before the failure. Committed rows are never rolled back.
func (p *Pipeline) Run(ctx context.Context, doc *Document) Result {
	committed := 0
	p.report(PhaseValidating, committed, 0)

	if err := Validate(doc); err != nil {
		p.report(PhaseFailed, committed, 0)
		return failed(err, committed)
	}
	if extra := len(doc.TestForms) - 1; extra > 0 {
		p.logger.Warn("ignoring extra test forms", "extra", extra)
	}

	res := NewResolver()
	for _, kind := range Plan() {
		rows := doc.Entities(kind)
		p.report(kind.Phase(), committed, len(rows))
		p.logger.Debug("stage started", "kind", kind.String(), "rows", len(rows))

		for i, e := range rows {
			if err := ctx.Err(); err != nil {
				return p.fail(&CancelledError{Kind: kind, Row: i, Err: err}, committed)
			}
			if err := p.upsertRow(ctx, res, kind, i, e); err != nil {
				return p.fail(err, committed)
			}
			committed++
		}

		p.logger.Debug("stage complete", "kind", kind.String(), "rows", len(rows), "total", committed)
	}

	p.report(PhaseSuccess, committed, 0)
	return succeeded(committed)
}

// upsertRow resolves the row's parents, writes it, and records its id.
func (p *Pipeline) upsertRow(ctx context.Context, res *Resolver, kind Kind, i int, e Entity) error {
	proj, err := e.project(res)
	if err != nil {
		var refErr *UnresolvedReferenceError
		if errors.As(err, &refErr) {
			refErr.Kind, refErr.Row = kind, i
		}
		return err
	}

	req := UpsertRequest{
		Table:          kind.Table(),
		Fields:         proj.fields,
		ConflictTarget: kind.ConflictTarget(),
	}

	policy := p.policy
	attempts := 0
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		p.metrics.observeRetry(kind)
		p.logger.Warn("retrying upsert",
			"kind", kind.String(),
			"row", i,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	start := time.Now()
	persisted, err := retry.Do(ctx, policy, func(ctx context.Context) (Persisted, error) {
		attempts++
		return p.store.Upsert(ctx, req)
	})
	p.metrics.observeUpsert(kind, time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil {
			return &CancelledError{Kind: kind, Row: i, Err: err}
		}
		return &RemoteWriteError{Kind: kind, Row: i, Attempts: attempts, Err: err}
	}

	res.Record(proj.key, persisted.ID)
	return nil
}

func (p *Pipeline) fail(err error, committed int) Result {
	p.logger.Error("test set upsert aborted", "error", err, "rows_upserted", committed)
	p.report(PhaseFailed, committed, 0)
	return failed(err, committed)
}

func (p *Pipeline) report(phase Phase, rows, stageRows int) {
	if p.progress != nil {
		p.progress(Progress{Phase: phase, RowsUpserted: rows, StageRows: stageRows})
	}
}
