package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/testsets/internal/logging"
	"github.com/JonMunkholm/testsets/internal/retry"
)

// DefaultSubmissionTimeout bounds a whole submission, retries included.
const DefaultSubmissionTimeout = 10 * time.Minute

// ServiceConfig tunes submission handling.
type ServiceConfig struct {
	Timeout       time.Duration // zero selects DefaultSubmissionTimeout
	MaxConcurrent int           // zero selects DefaultMaxConcurrentSubmissions
	MaxWait       time.Duration // zero selects DefaultMaxWaitTime
	Retry         *retry.Policy // nil selects retry.DefaultPolicy
}

// Service is the entry point for saving test sets. It assigns submission
// ids, admits submissions through a limiter, connects to the store, and runs
// the pipeline.
type Service struct {
	connect Connector
	cfg     ServiceConfig
	limiter *SubmissionLimiter
	metrics *Metrics
}

// NewService creates a service that obtains its store from connect.
// metrics may be nil.
func NewService(connect Connector, cfg ServiceConfig, metrics *Metrics) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSubmissionTimeout
	}
	return &Service{
		connect: connect,
		cfg:     cfg,
		limiter: NewSubmissionLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		metrics: metrics,
	}
}

// SaveTestSet writes doc to the store and reports the outcome. It never
// returns a Go error: every failure is described by the Result.
//
// The store is obtained before the document is inspected, so a missing
// configuration is reported even for an empty document.
func (s *Service) SaveTestSet(ctx context.Context, doc *Document, opts ...PipelineOption) Result {
	id := uuid.NewString()
	ctx = logging.WithSubmissionID(ctx, id)
	logger := logging.WithFields(ctx,
		"remote_addr", GetIPAddressFromContext(ctx),
		"user_agent", GetUserAgentFromContext(ctx),
	)

	start := time.Now()
	res := s.save(ctx, doc, opts...)
	res.SubmissionID = id
	s.metrics.observeSubmission(res.Status)

	if res.Succeeded() {
		logger.Info("test set saved",
			"rows_upserted", res.RowsUpserted,
			"duration", time.Since(start),
		)
	} else {
		logger.Error("test set not saved",
			"rows_upserted", res.RowsUpserted,
			"code", MapError(res.Err).Code,
			"error", res.Err,
			"duration", time.Since(start),
		)
	}
	return res
}

func (s *Service) save(ctx context.Context, doc *Document, opts ...PipelineOption) Result {
	if err := s.limiter.Acquire(ctx); err != nil {
		return failed(err, 0)
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	store, err := s.connect(ctx)
	if err != nil {
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			err = &ConfigurationError{Err: err}
		}
		return failed(err, 0)
	}

	policy := retry.DefaultPolicy()
	if s.cfg.Retry != nil {
		policy = *s.cfg.Retry
	}
	base := []PipelineOption{
		WithRetryPolicy(policy),
		WithMetrics(s.metrics),
		WithLogger(logging.FromContext(ctx)),
	}
	return NewPipeline(store, append(base, opts...)...).Run(ctx, doc)
}

// LimiterStatus reports how many submissions are running.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForSubmissions blocks until running submissions finish or ctx ends.
func (s *Service) WaitForSubmissions(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
